package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindNotFound, http.StatusNotFound},
		{KindParse, http.StatusBadRequest},
		{KindUnsupportedCountry, http.StatusBadRequest},
		{KindAmbiguousMatch, http.StatusConflict},
		{KindNetwork, http.StatusServiceUnavailable},
		{KindMalformedResponse, http.StatusBadGateway},
		{KindEnrollment, http.StatusUnprocessableEntity},
		{KindIllegalHandoff, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.Code(), func(t *testing.T) {
			got := New(tt.kind, "boom").HTTPStatus()
			if got != tt.want {
				t.Fatalf("want status %d, got %d", tt.want, got)
			}
		})
	}
}

func TestGetKindFollowsWrapping(t *testing.T) {
	base := Network("directory unreachable", errors.New("dial tcp: refused"))
	wrapped := fmt.Errorf("resolve by phone: %w", base)

	if !Is(wrapped, KindNetwork) {
		t.Fatalf("expected wrapped error to keep KindNetwork, got %s", GetKind(wrapped))
	}
	if GetKind(errors.New("plain")) != KindUnknown {
		t.Fatal("plain errors should map to KindUnknown")
	}
}

func TestRecoverable(t *testing.T) {
	if !Backend("status 500").Recoverable() {
		t.Fatal("backend errors must be recoverable")
	}
	if IllegalHandoff("welcome -> product_consultation").Recoverable() {
		t.Fatal("illegal handoffs are defects, not recoverable conditions")
	}
}

func TestErrorMessageIncludesOpAndCause(t *testing.T) {
	err := Wrap(KindNetwork, "request failed", errors.New("timeout")).WithOp("directory.SearchByPhone")
	want := "directory.SearchByPhone: request failed: timeout"
	if err.Error() != want {
		t.Fatalf("want %q, got %q", want, err.Error())
	}
}
