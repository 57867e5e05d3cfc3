// Package identification provides the customer identification bounded context.
package identification

import (
	"phoneai_backend/internal/identification/client"
	"phoneai_backend/internal/identification/service"
	"phoneai_backend/internal/observability/metrics"
	"phoneai_backend/platform/config"
	"phoneai_backend/platform/logger"
	"phoneai_backend/platform/phone"
	"phoneai_backend/platform/validator"
)

// Module wires the directory client and identification services.
type Module struct {
	client  *client.Client
	service *service.Service
}

// NewModule creates the identification module. It fails when the default
// calling code is not in the country table.
func NewModule(cfg *config.Config, val *validator.Validator, m *metrics.Metrics, log *logger.Logger) (*Module, error) {
	normalizer, err := phone.NewNormalizer(cfg.GetDefaultCallingCode())
	if err != nil {
		return nil, err
	}

	dir := client.New(cfg, m, log)
	svc := service.New(dir, normalizer, val, dir.VendorID())

	return &Module{client: dir, service: svc}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "identification"
}

// Service returns the identification service for the handler operations.
func (m *Module) Service() *service.Service {
	return m.service
}
