package identification

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"phoneai_backend/platform/apperr"
	"phoneai_backend/platform/config"
	"phoneai_backend/platform/logger"
	"phoneai_backend/platform/validator"
)

func TestModuleTagsDirectoryLogsOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	cfg := &config.Config{
		DirectoryBaseURL:   srv.URL,
		DirectoryVendorID:  4,
		DirectoryTimeout:   time.Second,
		DefaultCallingCode: 33,
	}
	m, err := NewModule(cfg, validator.New(), nil, logger.NewWithWriter("production", &buf))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = m.Service().ResolveByPhone(context.Background(), "+33781602352")
	if !apperr.Is(err, apperr.KindBackend) {
		t.Fatalf("want backend error, got %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) == 0 || lines[0] == "" {
		t.Fatal("expected a directory failure log line")
	}
	for _, line := range lines {
		if !strings.Contains(line, `"component":"directory"`) {
			t.Fatalf("directory log line not tagged: %s", line)
		}
		if n := strings.Count(line, `"component"`); n != 1 {
			t.Fatalf("want the component attribute once, got %d in %s", n, line)
		}
	}
}

func TestModuleRejectsUnknownCallingCode(t *testing.T) {
	cfg := &config.Config{DirectoryBaseURL: "http://localhost", DirectoryVendorID: 4, DirectoryTimeout: time.Second, DefaultCallingCode: 999}
	if _, err := NewModule(cfg, validator.New(), nil, logger.Nop()); !apperr.Is(err, apperr.KindConfig) {
		t.Fatalf("want config error, got %v", err)
	}
}
