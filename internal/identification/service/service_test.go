package service

import (
	"context"
	"testing"
	"time"

	"phoneai_backend/internal/identification/transport"
	"phoneai_backend/platform/apperr"
	"phoneai_backend/platform/phone"
	"phoneai_backend/platform/validator"
)

type fakeDirectory struct {
	byPhone   []transport.Customer
	byEmail   *transport.Customer
	created   transport.Customer
	createErr error
	searchErr error

	phoneCalls  int
	emailCalls  int
	createCalls []transport.CreateCustomerRequest
}

func (f *fakeDirectory) SearchByPhone(ctx context.Context, p string) ([]transport.Customer, error) {
	f.phoneCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	out := make([]transport.Customer, len(f.byPhone))
	copy(out, f.byPhone)
	return out, nil
}

func (f *fakeDirectory) SearchByEmail(ctx context.Context, email string) (*transport.Customer, error) {
	f.emailCalls++
	if f.byEmail == nil {
		return nil, nil
	}
	c := *f.byEmail
	return &c, nil
}

func (f *fakeDirectory) CreateCustomer(ctx context.Context, req transport.CreateCustomerRequest) (transport.Customer, error) {
	f.createCalls = append(f.createCalls, req)
	if f.createErr != nil {
		return transport.Customer{}, f.createErr
	}
	return f.created, nil
}

func TestResolveByPhoneOutcomes(t *testing.T) {
	tests := []struct {
		name      string
		customers []transport.Customer
		want      transport.Outcome
	}{
		{"none", nil, transport.OutcomeNotFound},
		{"one", []transport.Customer{{ID: "1", FirstName: "Jean"}}, transport.OutcomeSingleMatch},
		{"two", []transport.Customer{{ID: "1"}, {ID: "2"}}, transport.OutcomeMultipleMatches},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := &fakeDirectory{byPhone: tt.customers}
			res, err := NewResolver(dir, validator.New()).ResolveByPhone(context.Background(), "+33781602352")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Outcome != tt.want {
				t.Fatalf("want %s, got %s", tt.want, res.Outcome)
			}
			if dir.phoneCalls != 1 {
				t.Fatalf("want exactly one directory call, got %d", dir.phoneCalls)
			}
		})
	}
}

func TestResolveByPhoneSingleMatchBackfillsPhone(t *testing.T) {
	dir := &fakeDirectory{byPhone: []transport.Customer{{ID: "1"}}}
	res, err := NewResolver(dir, validator.New()).ResolveByPhone(context.Background(), "+33781602352")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Customer == nil || res.Customer.Phone != "+33781602352" {
		t.Fatalf("want phone backfilled, got %+v", res.Customer)
	}
}

func TestResolveByPhoneMultipleNeverPicks(t *testing.T) {
	dir := &fakeDirectory{byPhone: []transport.Customer{{ID: "1"}, {ID: "2"}, {ID: "3"}}}
	res, err := NewResolver(dir, validator.New()).ResolveByPhone(context.Background(), "+33781602352")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Customer != nil {
		t.Fatalf("multiple matches must not select a customer, got %+v", res.Customer)
	}
	if res.DisambiguateBy != transport.DisambiguateByEmail {
		t.Fatalf("want email disambiguation, got %q", res.DisambiguateBy)
	}
	if got := res.CandidateIDs(); len(got) != 3 || got[0] != "1" || got[2] != "3" {
		t.Fatalf("unexpected candidates %v", got)
	}
}

func TestResolveByPhoneRejectsRawInput(t *testing.T) {
	dir := &fakeDirectory{}
	_, err := NewResolver(dir, validator.New()).ResolveByPhone(context.Background(), "07 81 60 23 52")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
	if dir.phoneCalls != 0 {
		t.Fatalf("directory must not be called for raw input")
	}
}

func TestResolveByPhonePropagatesNetworkError(t *testing.T) {
	dir := &fakeDirectory{searchErr: apperr.Network("directory unreachable", nil)}
	_, err := NewResolver(dir, validator.New()).ResolveByPhone(context.Background(), "+33781602352")
	if !apperr.Is(err, apperr.KindNetwork) {
		t.Fatalf("want network error, got %v", err)
	}
}

func TestResolveByEmail(t *testing.T) {
	candidates := []string{"1", "2"}

	tests := []struct {
		name    string
		byEmail *transport.Customer
		want    transport.Outcome
	}{
		{"candidate", &transport.Customer{ID: "2"}, transport.OutcomeSingleMatch},
		{"outside candidates", &transport.Customer{ID: "9"}, transport.OutcomeNotFound},
		{"unknown email", nil, transport.OutcomeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := &fakeDirectory{byEmail: tt.byEmail}
			res, err := NewResolver(dir, validator.New()).ResolveByEmail(context.Background(), "jean@example.com", candidates)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Outcome != tt.want {
				t.Fatalf("want %s, got %s", tt.want, res.Outcome)
			}
		})
	}
}

func TestResolveByEmailRequiresPendingCandidates(t *testing.T) {
	dir := &fakeDirectory{byEmail: &transport.Customer{ID: "1"}}
	_, err := NewResolver(dir, validator.New()).ResolveByEmail(context.Background(), "jean@example.com", []string{"1"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
	if dir.emailCalls != 0 {
		t.Fatalf("directory must not be called without an ambiguous match")
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		in        string
		want      string
		wantValid bool
	}{
		{"Jean.Dupont@Example.com", "jean.dupont@example.com", true},
		{"jean arobase example point com", "jean@example.com", true},
		{"jean dot dupont at example dot fr", "jean.dupont@example.fr", true},
		{"jean tiret-bas dupont arobase mail point ch", "jean_dupont@mail.ch", true},
		{"jean at example", "jean@example", false},
		{"not an email", "notanemail", false},
	}

	for _, tt := range tests {
		got := ValidateEmail(tt.in)
		if got.Normalized != tt.want || got.Valid != tt.wantValid {
			t.Fatalf("ValidateEmail(%q): want %q/%v, got %q/%v", tt.in, tt.want, tt.wantValid, got.Normalized, got.Valid)
		}
		if got.Original != tt.in {
			t.Fatalf("original must be preserved, got %q", got.Original)
		}
	}
}

func newTestEnroller(dir Directory) *Enroller {
	e := NewEnroller(dir, validator.New(), 4)
	e.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return e
}

func TestEnrollNormalizesFields(t *testing.T) {
	dir := &fakeDirectory{created: transport.Customer{ID: "99"}}
	got, err := newTestEnroller(dir).Create(context.Background(), transport.CustomerDraft{
		FirstName:   " jean ",
		LastName:    "dupont",
		Email:       "Jean.Dupont@Example.com ",
		Phone:       "+33 7 81-60-23-52",
		DateOfBirth: "14/03/1990",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dir.createCalls) != 1 {
		t.Fatalf("want one creation request, got %d", len(dir.createCalls))
	}

	req := dir.createCalls[0]
	if req.FirstName != "Jean" || req.LastName != "DUPONT" || req.Email != "jean.dupont@example.com" {
		t.Fatalf("unexpected normalized names %+v", req)
	}
	if req.PhoneNumber != "+33781602352" || req.DateOfBirth != "1990-03-14" || req.VendorID != 4 {
		t.Fatalf("unexpected normalized payload %+v", req)
	}
	if got.ID != "99" || got.LastName != "DUPONT" || got.VendorID != 4 {
		t.Fatalf("unexpected created customer %+v", got)
	}
}

func TestEnrollValidation(t *testing.T) {
	valid := transport.CustomerDraft{
		FirstName:   "Jean",
		LastName:    "Dupont",
		Email:       "jean@example.com",
		Phone:       "+33781602352",
		DateOfBirth: "1990-03-14",
	}

	tests := []struct {
		name   string
		mutate func(d *transport.CustomerDraft)
	}{
		{"blank first name", func(d *transport.CustomerDraft) { d.FirstName = "   " }},
		{"blank last name", func(d *transport.CustomerDraft) { d.LastName = "" }},
		{"bad email", func(d *transport.CustomerDraft) { d.Email = "jean" }},
		{"raw phone", func(d *transport.CustomerDraft) { d.Phone = "0781602352" }},
		{"missing birth date", func(d *transport.CustomerDraft) { d.DateOfBirth = "" }},
		{"unparseable birth date", func(d *transport.CustomerDraft) { d.DateOfBirth = "March 14th" }},
		{"future birth date", func(d *transport.CustomerDraft) { d.DateOfBirth = "2030-01-01" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := valid
			tt.mutate(&draft)
			dir := &fakeDirectory{}
			_, err := newTestEnroller(dir).Create(context.Background(), draft)
			if !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("want validation error, got %v", err)
			}
			if len(dir.createCalls) != 0 {
				t.Fatalf("invalid drafts must not reach the directory")
			}
		})
	}
}

func TestEnrollRejectionIsNotRetried(t *testing.T) {
	dir := &fakeDirectory{createErr: apperr.Enrollment("customer creation rejected: duplicate")}
	_, err := newTestEnroller(dir).Create(context.Background(), transport.CustomerDraft{
		FirstName:   "Jean",
		LastName:    "Dupont",
		Email:       "jean@example.com",
		Phone:       "+33781602352",
		DateOfBirth: "1990-03-14",
	})
	if !apperr.Is(err, apperr.KindEnrollment) {
		t.Fatalf("want enrollment error, got %v", err)
	}
	if len(dir.createCalls) != 1 {
		t.Fatalf("want exactly one attempt, got %d", len(dir.createCalls))
	}
}

func TestServiceNormalizePhone(t *testing.T) {
	normalizer, err := phone.NewNormalizer(phone.DefaultCallingCode)
	if err != nil {
		t.Fatalf("normalizer: %v", err)
	}
	svc := New(&fakeDirectory{}, normalizer, validator.New(), 4)

	got, err := svc.NormalizePhone("07 81 60 23 52", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Number.Normalized != "+33781602352" || !got.Number.AssumedDefaultRegion {
		t.Fatalf("unexpected normalization %+v", got)
	}
}
