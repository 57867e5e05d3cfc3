// Package service implements customer identification: phone normalization,
// directory resolution, email validation and account enrollment.
package service

import (
	"context"

	"phoneai_backend/internal/identification/transport"
	"phoneai_backend/platform/phone"
	"phoneai_backend/platform/validator"
)

// Service is the identification facade used by the identification handler.
type Service struct {
	normalizer *phone.Normalizer
	resolver   *Resolver
	enroller   *Enroller
}

// New wires the identification components over a directory.
func New(dir Directory, normalizer *phone.Normalizer, val *validator.Validator, defaultVendor int64) *Service {
	return &Service{
		normalizer: normalizer,
		resolver:   NewResolver(dir, val),
		enroller:   NewEnroller(dir, val, defaultVendor),
	}
}

// NormalizePhone converts raw caller input into E.164 or asks for a country code.
func (s *Service) NormalizePhone(raw, countryHint string) (phone.Normalization, error) {
	return s.normalizer.Normalize(raw, countryHint)
}

// ValidateEmail cleans dictated email text.
func (s *Service) ValidateEmail(spoken string) transport.EmailCheck {
	return ValidateEmail(spoken)
}

// ResolveByPhone looks up accounts by normalized phone.
func (s *Service) ResolveByPhone(ctx context.Context, normalizedPhone string) (transport.Resolution, error) {
	return s.resolver.ResolveByPhone(ctx, normalizedPhone)
}

// ResolveByEmail picks one of candidates by email.
func (s *Service) ResolveByEmail(ctx context.Context, normalizedEmail string, candidates []string) (transport.Resolution, error) {
	return s.resolver.ResolveByEmail(ctx, normalizedEmail, candidates)
}

// Enroll creates a new account.
func (s *Service) Enroll(ctx context.Context, draft transport.CustomerDraft) (transport.Customer, error) {
	return s.enroller.Create(ctx, draft)
}
