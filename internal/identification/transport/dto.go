// Package transport provides DTOs for the customer identification domain.
package transport

// Customer is a read copy of a directory record. Sparse fields are empty.
type Customer struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	VendorID  int64  `json:"vendorId,omitempty"`
}

// DisplayName returns "First Last" with empty parts skipped.
func (c Customer) DisplayName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}

// Outcome classifies a directory lookup.
type Outcome string

const (
	OutcomeNotFound        Outcome = "not_found"
	OutcomeSingleMatch     Outcome = "single_match"
	OutcomeMultipleMatches Outcome = "multiple_matches"
)

// DisambiguateByEmail is the only disambiguation key the directory supports.
const DisambiguateByEmail = "email"

// Resolution is the result of a resolver lookup. Customer is set for a
// single match; Candidates for multiple matches.
type Resolution struct {
	Outcome        Outcome    `json:"outcome"`
	Customer       *Customer  `json:"customer,omitempty"`
	Candidates     []Customer `json:"candidates,omitempty"`
	DisambiguateBy string     `json:"disambiguateBy,omitempty"`
}

// CandidateIDs returns the ids of a multiple match.
func (r Resolution) CandidateIDs() []string {
	ids := make([]string, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		ids = append(ids, c.ID)
	}
	return ids
}

// EmailCheck is the result of cleaning and validating dictated email text.
// Normalized is returned whether or not it is valid.
type EmailCheck struct {
	Original   string `json:"original"`
	Normalized string `json:"normalized"`
	Valid      bool   `json:"valid"`
}

// CustomerDraft is a pending account creation as collected from the caller.
// VendorID zero means the configured vendor.
type CustomerDraft struct {
	VendorID    int64  `json:"vendorId,omitempty"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	DateOfBirth string `json:"dateOfBirth"`
}

// CreateCustomerRequest is the normalized payload sent to the directory.
type CreateCustomerRequest struct {
	VendorID    int64  `json:"vendor_id" validate:"gt=0"`
	FirstName   string `json:"first_name" validate:"notblank,max=100"`
	LastName    string `json:"last_name" validate:"notblank,max=100"`
	Email       string `json:"email" validate:"notblank,email"`
	PhoneNumber string `json:"phone_number" validate:"notblank,phone_e164"`
	DateOfBirth string `json:"date_of_birth" validate:"notblank,datetime=2006-01-02"`
}
