// Package client provides the HTTP client for the backend customer directory.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"phoneai_backend/internal/identification/transport"
	"phoneai_backend/internal/observability/metrics"
	"phoneai_backend/platform/apperr"
	"phoneai_backend/platform/config"
	"phoneai_backend/platform/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	endpointSearchByPhone = "search-by-phone"
	endpointSearchByEmail = "search-by-email"
	endpointCreate        = "create"

	maxBodyBytes   = 1 << 20
	maxDetailChars = 300
)

// Client is the HTTP client for the customer directory. Every call is a
// single request with the configured timeout; nothing is retried.
type Client struct {
	httpClient *http.Client
	baseURL    string
	vendorID   int64
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	log        *logger.Logger
}

// New creates a new directory client.
func New(cfg config.DirectoryConfig, m *metrics.Metrics, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.GetDirectoryTimeout()},
		baseURL:    strings.TrimRight(cfg.GetDirectoryBaseURL(), "/"),
		vendorID:   cfg.GetDirectoryVendorID(),
		metrics:    m,
		tracer:     otel.Tracer("phoneai.internal.identification.client"),
		log:        log.WithComponent("directory"),
	}
}

// VendorID returns the vendor every lookup is scoped to.
func (c *Client) VendorID() int64 {
	return c.vendorID
}

// SearchByPhone returns every customer registered with phone. A 404 is an
// empty result. The body may be a JSON array or a single object.
func (c *Client) SearchByPhone(ctx context.Context, phone string) ([]transport.Customer, error) {
	params := url.Values{}
	params.Set("vendor_id", strconv.FormatInt(c.vendorID, 10))
	params.Set("phone", phone)

	body, status, err := c.do(ctx, endpointSearchByPhone, http.MethodGet, "/customers/search-by-phone?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, c.fail(endpointSearchByPhone, backendError(status, body).WithOp("directory.SearchByPhone"))
	}

	customers, decErr := decodeCustomerList(body)
	if decErr != nil {
		return nil, c.fail(endpointSearchByPhone, decErr.WithOp("directory.SearchByPhone"))
	}
	return customers, nil
}

// SearchByEmail returns the customer registered with email, or nil on 404.
func (c *Client) SearchByEmail(ctx context.Context, email string) (*transport.Customer, error) {
	params := url.Values{}
	params.Set("vendor_id", strconv.FormatInt(c.vendorID, 10))
	params.Set("email", email)

	body, status, err := c.do(ctx, endpointSearchByEmail, http.MethodGet, "/customers/search-by-email?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, c.fail(endpointSearchByEmail, backendError(status, body).WithOp("directory.SearchByEmail"))
	}

	var raw apiCustomer
	if err := decodeObject(body, &raw); err != nil {
		return nil, c.fail(endpointSearchByEmail, err.WithOp("directory.SearchByEmail"))
	}
	customer, convErr := raw.toTransport()
	if convErr != nil {
		return nil, c.fail(endpointSearchByEmail, convErr.WithOp("directory.SearchByEmail"))
	}
	return &customer, nil
}

// CreateCustomer submits one creation request. A non-2xx status is an
// enrollment error carrying the directory's detail message.
func (c *Client) CreateCustomer(ctx context.Context, req transport.CreateCustomerRequest) (transport.Customer, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return transport.Customer{}, apperr.Wrap(apperr.KindInternal, "encode customer", err)
	}

	body, status, callErr := c.do(ctx, endpointCreate, http.MethodPost, "/customers/", payload)
	if callErr != nil {
		return transport.Customer{}, callErr
	}

	if status < 200 || status > 299 {
		detail := extractDetail(body)
		msg := fmt.Sprintf("customer creation rejected (status %d)", status)
		if detail != "" {
			msg = fmt.Sprintf("customer creation rejected: %s", detail)
		}
		return transport.Customer{}, c.fail(endpointCreate, apperr.Enrollment(msg).
			WithOp("directory.CreateCustomer").
			WithDetails(map[string]any{"status": status, "detail": detail}))
	}

	var envelope struct {
		Customer *apiCustomer `json:"customer"`
	}
	if err := decodeObject(body, &envelope); err != nil {
		return transport.Customer{}, c.fail(endpointCreate, err.WithOp("directory.CreateCustomer"))
	}
	raw := envelope.Customer
	if raw == nil {
		raw = &apiCustomer{}
		if err := decodeObject(body, raw); err != nil {
			return transport.Customer{}, c.fail(endpointCreate, err.WithOp("directory.CreateCustomer"))
		}
	}
	customer, convErr := raw.toTransport()
	if convErr != nil {
		return transport.Customer{}, c.fail(endpointCreate, convErr.WithOp("directory.CreateCustomer"))
	}
	return customer, nil
}

// do performs one request and returns the body and status. Transport
// failures and timeouts are network errors.
func (c *Client) do(ctx context.Context, endpoint, method, path string, payload []byte) ([]byte, int, error) {
	ctx, span := c.tracer.Start(ctx, "directory."+endpoint)
	defer span.End()
	span.SetAttributes(attribute.String("directory.endpoint", endpoint))

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.KindInternal, "create directory request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("ngrok-skip-browser-warning", "true")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		span.RecordError(err)
		netErr := networkError(err).WithOp("directory." + endpoint)
		c.metrics.ObserveDirectoryCall(endpoint, netErr.Code(), latency)
		c.log.WithContext(ctx).DirectoryCall(endpoint, 0, latency, netErr)
		return nil, 0, netErr
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		span.RecordError(err)
		netErr := apperr.Network("directory response interrupted", err).WithOp("directory." + endpoint)
		c.metrics.ObserveDirectoryCall(endpoint, netErr.Code(), latency)
		c.log.WithContext(ctx).DirectoryCall(endpoint, resp.StatusCode, latency, netErr)
		return nil, 0, netErr
	}

	outcome := "ok"
	switch {
	case resp.StatusCode == http.StatusNotFound:
		outcome = "not_found"
	case resp.StatusCode >= 300:
		outcome = "status_" + strconv.Itoa(resp.StatusCode)
	}
	c.metrics.ObserveDirectoryCall(endpoint, outcome, latency)
	c.log.WithContext(ctx).DirectoryCall(endpoint, resp.StatusCode, latency, nil)
	return body, resp.StatusCode, nil
}

// fail logs a decoded failure and passes it through.
func (c *Client) fail(endpoint string, err *apperr.Error) error {
	c.log.Warn("directory request failed", "endpoint", endpoint, "code", err.Code(), "error", err.Error())
	return err
}

func networkError(err error) *apperr.Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return apperr.Network("directory request timed out", err)
	}
	return apperr.Network("directory unreachable", err)
}

func backendError(status int, body []byte) *apperr.Error {
	return apperr.Backend(fmt.Sprintf("directory returned status %d", status)).
		WithDetails(map[string]any{"status": status, "detail": extractDetail(body)})
}

// extractDetail returns the "detail" field of a JSON error body, or a
// truncated copy of the raw body.
func extractDetail(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(trimmed, &payload); err == nil && len(payload.Detail) > 0 {
		var text string
		if err := json.Unmarshal(payload.Detail, &text); err == nil {
			return truncate(text)
		}
		return truncate(string(payload.Detail))
	}
	return truncate(string(trimmed))
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxDetailChars {
		return s
	}
	return s[:maxDetailChars] + "..."
}

func decodeCustomerList(body []byte) ([]transport.Customer, *apperr.Error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var raws []apiCustomer
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, apperr.MalformedResponse("customer list does not match schema", err)
		}
	case '{':
		var single apiCustomer
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, apperr.MalformedResponse("customer does not match schema", err)
		}
		raws = []apiCustomer{single}
	default:
		return nil, apperr.MalformedResponse("expected a customer list or object", nil)
	}

	customers := make([]transport.Customer, 0, len(raws))
	for _, raw := range raws {
		customer, err := raw.toTransport()
		if err != nil {
			return nil, err
		}
		customers = append(customers, customer)
	}
	return customers, nil
}

func decodeObject(body []byte, target any) *apperr.Error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return apperr.MalformedResponse("expected a JSON object", nil)
	}
	if err := json.Unmarshal(trimmed, target); err != nil {
		return apperr.MalformedResponse("object does not match schema", err)
	}
	return nil
}

// apiCustomer is the raw directory representation.
type apiCustomer struct {
	ID        flexibleID `json:"id"`
	FirstName *string    `json:"first_name"`
	LastName  *string    `json:"last_name"`
	Email     *string    `json:"email"`
	Phone     *string    `json:"phone"`
}

func (a apiCustomer) toTransport() (transport.Customer, *apperr.Error) {
	if a.ID == "" {
		return transport.Customer{}, apperr.MalformedResponse("customer has no id", nil)
	}
	return transport.Customer{
		ID:        string(a.ID),
		FirstName: deref(a.FirstName),
		LastName:  deref(a.LastName),
		Email:     deref(a.Email),
		Phone:     deref(a.Phone),
	}, nil
}

// flexibleID accepts a JSON string or number.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*f = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = flexibleID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("customer id must be a string or number: %w", err)
	}
	*f = flexibleID(n.String())
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
