package service

import (
	"context"
	"strings"
	"time"

	"phoneai_backend/internal/identification/transport"
	"phoneai_backend/platform/apperr"
	"phoneai_backend/platform/sanitize"
	"phoneai_backend/platform/validator"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const isoDate = "2006-01-02"

// Accepted spoken/typed birth date layouts, tried in order.
var birthDateLayouts = []string{isoDate, "02/01/2006", "02-01-2006", "2/1/2006"}

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", "\t", "")

// Enroller validates drafts and submits new accounts.
type Enroller struct {
	dir           Directory
	val           *validator.Validator
	defaultVendor int64
	now           func() time.Time
}

// NewEnroller creates an enroller. defaultVendor is used when a draft has no vendor.
func NewEnroller(dir Directory, val *validator.Validator, defaultVendor int64) *Enroller {
	return &Enroller{dir: dir, val: val, defaultVendor: defaultVendor, now: time.Now}
}

// Prepare normalizes a draft into the directory payload without sending it.
func (e *Enroller) Prepare(draft transport.CustomerDraft) (transport.CreateCustomerRequest, error) {
	req := transport.CreateCustomerRequest{
		VendorID:    draft.VendorID,
		FirstName:   cases.Title(language.French).String(strings.ToLower(sanitize.Text(draft.FirstName))),
		LastName:    cases.Upper(language.French).String(sanitize.Text(draft.LastName)),
		Email:       strings.ToLower(strings.TrimSpace(draft.Email)),
		PhoneNumber: phoneSeparators.Replace(strings.TrimSpace(draft.Phone)),
	}
	if req.VendorID == 0 {
		req.VendorID = e.defaultVendor
	}

	dob := strings.TrimSpace(draft.DateOfBirth)
	if dob != "" {
		iso, err := e.normalizeBirthDate(dob)
		if err != nil {
			return transport.CreateCustomerRequest{}, err
		}
		req.DateOfBirth = iso
	}

	if err := e.val.Struct(req); err != nil {
		return transport.CreateCustomerRequest{}, apperr.Validation(validator.Describe(err)).WithDetails(err.Error())
	}
	return req, nil
}

// Create submits one creation request and returns the created record.
// Rejections are not retried.
func (e *Enroller) Create(ctx context.Context, draft transport.CustomerDraft) (transport.Customer, error) {
	req, err := e.Prepare(draft)
	if err != nil {
		return transport.Customer{}, err
	}

	customer, err := e.dir.CreateCustomer(ctx, req)
	if err != nil {
		return transport.Customer{}, err
	}

	if customer.FirstName == "" {
		customer.FirstName = req.FirstName
	}
	if customer.LastName == "" {
		customer.LastName = req.LastName
	}
	if customer.Email == "" {
		customer.Email = req.Email
	}
	if customer.Phone == "" {
		customer.Phone = req.PhoneNumber
	}
	if customer.VendorID == 0 {
		customer.VendorID = req.VendorID
	}
	return customer, nil
}

func (e *Enroller) normalizeBirthDate(raw string) (string, error) {
	for _, layout := range birthDateLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		if t.After(e.now()) {
			return "", apperr.Validation("date of birth is in the future")
		}
		return t.Format(isoDate), nil
	}
	return "", apperr.Validation("date of birth must look like YYYY-MM-DD or DD/MM/YYYY")
}
