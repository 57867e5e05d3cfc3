package agents

import (
	"context"
	"fmt"

	"phoneai_backend/internal/events"
	"phoneai_backend/internal/handoff"
	"phoneai_backend/internal/identification/transport"
	"phoneai_backend/internal/toolkit"
	"phoneai_backend/platform/apperr"
	"phoneai_backend/platform/phone"
)

type normalizePhoneInput struct {
	PhoneInput  string `json:"phone_input" jsonschema:"phone number exactly as the caller said it"`
	CountryCode string `json:"country_code,omitempty" jsonschema:"numeric calling code such as +41 when the caller gave one"`
}

type phoneNumberInput struct {
	PhoneNumber string `json:"phone_number" jsonschema:"normalized E.164 phone number"`
}

type emailInput struct {
	Email string `json:"email" jsonschema:"email address as spelled by the caller"`
}

type createCustomerInput struct {
	VendorID    int64  `json:"vendor_id,omitempty" jsonschema:"vendor identifier, defaults to the configured vendor"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number" jsonschema:"normalized E.164 phone number"`
	DateOfBirth string `json:"date_of_birth" jsonschema:"date of birth as YYYY-MM-DD or DD/MM/YYYY"`
}

type normalizeResult struct {
	phone.Normalization
	Message string `json:"message"`
}

type resolutionResult struct {
	transport.Resolution
	Found          bool   `json:"found"`
	ActionRequired string `json:"action_required,omitempty"`
	Message        string `json:"message"`
}

type emailResult struct {
	transport.EmailCheck
	Message string `json:"message"`
}

type createResult struct {
	Success    bool               `json:"success"`
	CustomerID string             `json:"customer_id"`
	Customer   transport.Customer `json:"customer"`
	Message    string             `json:"message"`
}

func (o *Operations) registerIdentification(reg *toolkit.Registry) error {
	owner := handoff.Identification
	if err := toolkit.Register(reg, owner, "normalize_phone_number", "Normalise le numéro de téléphone dicté au format international E.164.", o.normalizePhone); err != nil {
		return err
	}
	if err := toolkit.Register(reg, owner, "search_customers_by_phone", "Recherche les clients par numéro de téléphone normalisé.", o.searchByPhone); err != nil {
		return err
	}
	if err := toolkit.Register(reg, owner, "validate_email_format", "Nettoie et valide un email épelé.", o.validateEmail); err != nil {
		return err
	}
	if err := toolkit.Register(reg, owner, "search_customer_by_email", "Choisit parmi plusieurs comptes partageant le même téléphone à l'aide de l'email.", o.searchByEmail); err != nil {
		return err
	}
	return toolkit.Register(reg, owner, "create_customer", "Crée un nouveau compte client avec toutes les informations collectées.", o.createCustomer)
}

func (o *Operations) normalizePhone(ctx context.Context, call *toolkit.Call, in normalizePhoneInput) (toolkit.Result, error) {
	res, err := o.identifier.NormalizePhone(in.PhoneInput, in.CountryCode)
	if err != nil {
		return toolkit.Result{}, err
	}
	if res.NeedsCountryCode {
		return toolkit.Result{Data: normalizeResult{
			Normalization: res,
			Message:       "Indicatif pays manquant : demandez au client de quel pays est son numéro.",
		}}, nil
	}

	call.Session.RecordPhone(res.Number.Normalized)
	return toolkit.Result{Data: normalizeResult{
		Normalization: res,
		Message:       fmt.Sprintf("Numéro normalisé : %s (%s)", res.Number.Normalized, res.Number.Region),
	}}, nil
}

func (o *Operations) searchByPhone(ctx context.Context, call *toolkit.Call, in phoneNumberInput) (toolkit.Result, error) {
	res, err := o.identifier.ResolveByPhone(ctx, in.PhoneNumber)
	if err != nil {
		return toolkit.Result{}, err
	}
	call.Session.RecordPhone(in.PhoneNumber)
	call.Session.ClearPendingCandidates()

	switch res.Outcome {
	case transport.OutcomeSingleMatch:
		if err := call.Session.IdentifyCustomer(res.Customer.ID); err != nil {
			return toolkit.Result{}, err
		}
		return toolkit.Result{
			Data: resolutionResult{
				Resolution: res,
				Found:      true,
				Message:    fmt.Sprintf("Client trouvé : %s", res.Customer.DisplayName()),
			},
			Events: []events.Event{identified(call, res.Customer.ID, "phone")},
		}, nil
	case transport.OutcomeMultipleMatches:
		call.Session.SetPendingCandidates(in.PhoneNumber, res.CandidateIDs())
		return toolkit.Result{Data: resolutionResult{
			Resolution:     res,
			Found:          true,
			ActionRequired: "ask_email",
			Message:        fmt.Sprintf("%d comptes partagent ce numéro : demandez l'email du client.", len(res.Candidates)),
		}}, nil
	default:
		return toolkit.Result{Data: resolutionResult{
			Resolution:     res,
			ActionRequired: "create_customer",
			Message:        "Aucun client avec ce numéro : proposez de créer un compte.",
		}}, nil
	}
}

func (o *Operations) validateEmail(ctx context.Context, call *toolkit.Call, in emailInput) (toolkit.Result, error) {
	check := o.identifier.ValidateEmail(in.Email)
	msg := "Email invalide : demandez au client de l'épeler à nouveau."
	if check.Valid {
		call.Session.RecordEmail(check.Normalized)
		msg = fmt.Sprintf("Email validé : %s", check.Normalized)
	}
	return toolkit.Result{Data: emailResult{EmailCheck: check, Message: msg}}, nil
}

func (o *Operations) searchByEmail(ctx context.Context, call *toolkit.Call, in emailInput) (toolkit.Result, error) {
	check := o.identifier.ValidateEmail(in.Email)
	if !check.Valid {
		return toolkit.Result{}, apperr.Validation("email invalide").WithDetails(check)
	}

	// Candidates only count for the phone number currently on the call.
	candidates := call.Session.CandidatesFor(call.Session.CollectedPhone)
	res, err := o.identifier.ResolveByEmail(ctx, check.Normalized, candidates)
	if err != nil {
		return toolkit.Result{}, err
	}
	call.Session.RecordEmail(check.Normalized)

	if res.Outcome != transport.OutcomeSingleMatch {
		return toolkit.Result{Data: resolutionResult{
			Resolution: res,
			Message:    "Aucun des comptes de ce numéro ne correspond à cet email.",
		}}, nil
	}
	if err := call.Session.IdentifyCustomer(res.Customer.ID); err != nil {
		return toolkit.Result{}, err
	}
	return toolkit.Result{
		Data: resolutionResult{
			Resolution: res,
			Found:      true,
			Message:    fmt.Sprintf("Client trouvé : %s", res.Customer.DisplayName()),
		},
		Events: []events.Event{identified(call, res.Customer.ID, "email")},
	}, nil
}

func (o *Operations) createCustomer(ctx context.Context, call *toolkit.Call, in createCustomerInput) (toolkit.Result, error) {
	if call.Session.Identified() {
		return toolkit.Result{}, apperr.Validation("la conversation est déjà associée à un client").WithDetails(map[string]string{
			"customerId": call.Session.CustomerID,
		})
	}

	customer, err := o.identifier.Enroll(ctx, transport.CustomerDraft{
		VendorID:    in.VendorID,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Email:       in.Email,
		Phone:       in.PhoneNumber,
		DateOfBirth: in.DateOfBirth,
	})
	if err != nil {
		return toolkit.Result{}, err
	}
	if err := call.Session.IdentifyCustomer(customer.ID); err != nil {
		return toolkit.Result{}, err
	}
	call.Session.RecordPhone(customer.Phone)
	call.Session.RecordEmail(customer.Email)

	return toolkit.Result{
		Data: createResult{
			Success:    true,
			CustomerID: customer.ID,
			Customer:   customer,
			Message:    fmt.Sprintf("Compte créé pour %s", customer.DisplayName()),
		},
		Events: []events.Event{events.CustomerEnrolled{
			BaseEvent:      events.NewBaseEvent(),
			ConversationID: call.ConversationID,
			CustomerID:     customer.ID,
			VendorID:       customer.VendorID,
		}},
	}, nil
}

func identified(call *toolkit.Call, customerID, method string) events.Event {
	return events.CustomerIdentified{
		BaseEvent:      events.NewBaseEvent(),
		ConversationID: call.ConversationID,
		CustomerID:     customerID,
		Method:         method,
	}
}
