package service

import (
	"context"
	"slices"

	"phoneai_backend/internal/identification/transport"
	"phoneai_backend/platform/apperr"
	"phoneai_backend/platform/validator"
)

// Directory is the system of record for customer accounts.
type Directory interface {
	SearchByPhone(ctx context.Context, phone string) ([]transport.Customer, error)
	SearchByEmail(ctx context.Context, email string) (*transport.Customer, error)
	CreateCustomer(ctx context.Context, req transport.CreateCustomerRequest) (transport.Customer, error)
}

// Resolver classifies directory lookups. Each call is exactly one directory
// request and never picks among several matches.
type Resolver struct {
	dir Directory
	val *validator.Validator
}

// NewResolver creates a resolver over dir.
func NewResolver(dir Directory, val *validator.Validator) *Resolver {
	return &Resolver{dir: dir, val: val}
}

// ResolveByPhone looks up a normalized E.164 number.
func (r *Resolver) ResolveByPhone(ctx context.Context, normalizedPhone string) (transport.Resolution, error) {
	if err := r.val.Var(normalizedPhone, "required,phone_e164"); err != nil {
		return transport.Resolution{}, apperr.Validation("phone number must be normalized to E.164 before lookup").WithDetails(validator.Describe(err))
	}

	customers, err := r.dir.SearchByPhone(ctx, normalizedPhone)
	if err != nil {
		return transport.Resolution{}, err
	}

	for i := range customers {
		if customers[i].Phone == "" {
			customers[i].Phone = normalizedPhone
		}
	}

	switch len(customers) {
	case 0:
		return transport.Resolution{Outcome: transport.OutcomeNotFound}, nil
	case 1:
		customer := customers[0]
		return transport.Resolution{Outcome: transport.OutcomeSingleMatch, Customer: &customer}, nil
	default:
		return transport.Resolution{
			Outcome:        transport.OutcomeMultipleMatches,
			Candidates:     customers,
			DisambiguateBy: transport.DisambiguateByEmail,
		}, nil
	}
}

// ResolveByEmail disambiguates a previous multiple match. candidates are the
// ids that phone lookup returned; a record outside them is not a match.
func (r *Resolver) ResolveByEmail(ctx context.Context, normalizedEmail string, candidates []string) (transport.Resolution, error) {
	if len(candidates) < 2 {
		return transport.Resolution{}, apperr.Validation("email lookup is only used to choose between several accounts sharing a phone number")
	}
	if !emailPattern.MatchString(normalizedEmail) {
		return transport.Resolution{}, apperr.Validation("email must be validated before lookup")
	}

	customer, err := r.dir.SearchByEmail(ctx, normalizedEmail)
	if err != nil {
		return transport.Resolution{}, err
	}
	if customer == nil || !slices.Contains(candidates, customer.ID) {
		return transport.Resolution{Outcome: transport.OutcomeNotFound}, nil
	}
	if customer.Email == "" {
		customer.Email = normalizedEmail
	}
	return transport.Resolution{Outcome: transport.OutcomeSingleMatch, Customer: customer}, nil
}
