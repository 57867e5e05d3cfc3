package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"phoneai_backend/internal/identification/transport"
	"phoneai_backend/platform/apperr"
	"phoneai_backend/platform/config"
	"phoneai_backend/platform/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := &config.Config{
		DirectoryBaseURL:  srv.URL,
		DirectoryVendorID: 4,
		DirectoryTimeout:  time.Second,
	}
	return New(cfg, nil, logger.Nop())
}

func TestSearchByPhoneShapes(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantIDs []string
	}{
		{"empty list", http.StatusOK, `[]`, nil},
		{"not found", http.StatusNotFound, `{"detail":"Not found"}`, nil},
		{"single object", http.StatusOK, `{"id": 12, "first_name": "Jean"}`, []string{"12"}},
		{"list", http.StatusOK, `[{"id": 12}, {"id": "c-13", "email": "a@b.fr"}]`, []string{"12", "c-13"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/customers/search-by-phone" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if r.URL.Query().Get("vendor_id") != "4" || r.URL.Query().Get("phone") != "+33781602352" {
					t.Errorf("unexpected query %s", r.URL.RawQuery)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			got, err := c.SearchByPhone(context.Background(), "+33781602352")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("want %d customers, got %d", len(tt.wantIDs), len(got))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Fatalf("want id %s at %d, got %s", id, i, got[i].ID)
				}
			}
		})
	}
}

func TestSearchByPhoneErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   apperr.Kind
	}{
		{"server error", http.StatusInternalServerError, `oops`, apperr.KindBackend},
		{"bad json", http.StatusOK, `[{"id":`, apperr.KindMalformedResponse},
		{"wrong shape", http.StatusOK, `"hello"`, apperr.KindMalformedResponse},
		{"missing id", http.StatusOK, `[{"first_name":"Jean"}]`, apperr.KindMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.SearchByPhone(context.Background(), "+33781602352")
			if !apperr.Is(err, tt.want) {
				t.Fatalf("want %s, got %v", tt.want, err)
			}
		})
	}
}

func TestTimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := New(&config.Config{DirectoryBaseURL: srv.URL, DirectoryVendorID: 4, DirectoryTimeout: 50 * time.Millisecond}, nil, logger.Nop())
	_, err := c.SearchByEmail(context.Background(), "jean@example.com")
	if !apperr.Is(err, apperr.KindNetwork) {
		t.Fatalf("want network error, got %v", err)
	}
}

func TestUnreachableIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(&config.Config{DirectoryBaseURL: url, DirectoryVendorID: 4, DirectoryTimeout: time.Second}, nil, logger.Nop())
	_, err := c.SearchByPhone(context.Background(), "+33781602352")
	if !apperr.Is(err, apperr.KindNetwork) {
		t.Fatalf("want network error, got %v", err)
	}
}

func TestSearchByEmail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("email") == "missing@example.com" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"id": 7, "first_name": "Jean", "last_name": "DUPONT", "email": "jean@example.com"}`))
	})

	got, err := c.SearchByEmail(context.Background(), "jean@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != "7" || got.LastName != "DUPONT" {
		t.Fatalf("unexpected customer %+v", got)
	}

	missing, err := c.SearchByEmail(context.Background(), "missing@example.com")
	if err != nil || missing != nil {
		t.Fatalf("want nil customer on 404, got %+v, %v", missing, err)
	}
}

func TestCreateCustomer(t *testing.T) {
	var received map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/customers/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"customer": {"id": 99, "first_name": "Jean", "last_name": "DUPONT"}}`))
	})

	got, err := c.CreateCustomer(context.Background(), transport.CreateCustomerRequest{
		VendorID:    4,
		FirstName:   "Jean",
		LastName:    "DUPONT",
		Email:       "jean.dupont@example.com",
		PhoneNumber: "+33781602352",
		DateOfBirth: "1990-03-14",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "99" {
		t.Fatalf("want id 99, got %q", got.ID)
	}
	if received["vendor_id"] != float64(4) || received["phone_number"] != "+33781602352" {
		t.Fatalf("unexpected payload %v", received)
	}
}

func TestCreateCustomerBareObject(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "abc", "first_name": "Jean"}`))
	})
	got, err := c.CreateCustomer(context.Background(), transport.CreateCustomerRequest{VendorID: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "abc" {
		t.Fatalf("want id abc, got %q", got.ID)
	}
}

func TestCreateCustomerRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail": "Email already registered"}`))
	})

	_, err := c.CreateCustomer(context.Background(), transport.CreateCustomerRequest{VendorID: 4})
	if !apperr.Is(err, apperr.KindEnrollment) {
		t.Fatalf("want enrollment error, got %v", err)
	}
	appErr, _ := apperr.As(err)
	if appErr.Message != "customer creation rejected: Email already registered" {
		t.Fatalf("backend detail not surfaced: %q", appErr.Message)
	}
}
