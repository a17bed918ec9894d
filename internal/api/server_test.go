package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"spinrank/internal/bots"
	"spinrank/internal/config"
)

func testServer() *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := bots.NewService(nil, logger, bots.DefaultTuning())
	return New(config.ServiceConfig{AdminToken: "sekret"}, logger, svc)
}

func doRequest(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	testServer().Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthzNeedsNoAuth(t *testing.T) {
	rec := doRequest(t, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d want 200", rec.Code)
	}
}

func TestAdminAuth(t *testing.T) {
	rec := doRequest(t, http.MethodGet, "/v1/bots", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: got %d want 401", rec.Code)
	}
	rec = doRequest(t, http.MethodGet, "/v1/bots", "wrong", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: got %d want 401", rec.Code)
	}
}

func TestGenerateRejectsBadWeekKey(t *testing.T) {
	rec := doRequest(t, http.MethodPost, "/v1/bots/generate", "sekret", `{"week_key":"not-a-week"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got %d want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestGenerateRejectsUnknownFields(t *testing.T) {
	rec := doRequest(t, http.MethodPost, "/v1/bots/generate", "sekret", `{"week":"2025-W36"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got %d want 400", rec.Code)
	}
}

func TestHardDeleteRequiresConfirm(t *testing.T) {
	rec := doRequest(t, http.MethodDelete, "/v1/bots", "sekret", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got %d want 400", rec.Code)
	}
}

func TestRunWindowRejectsBadForcedDay(t *testing.T) {
	rec := doRequest(t, http.MethodPost, "/v1/sim/run", "sekret", `{"forced_day":9}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got %d want 400", rec.Code)
	}
}

func TestSetOverrideRejectsBadForcedDay(t *testing.T) {
	rec := doRequest(t, http.MethodPut, "/v1/sim/override", "sekret", `{"forced_day":-1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got %d want 400", rec.Code)
	}
}

func TestLotteryRejectsUnknownPrize(t *testing.T) {
	rec := doRequest(t, http.MethodPost, "/v1/lottery/yacht/winner?week=2025-W36", "sekret", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got %d want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestBearerToken(t *testing.T) {
	if got := bearerToken("Bearer abc"); got != "abc" {
		t.Fatalf("got %q", got)
	}
	if got := bearerToken("bearer abc"); got != "abc" {
		t.Fatalf("lowercase scheme: got %q", got)
	}
	if got := bearerToken("Basic abc"); got != "" {
		t.Fatalf("non-bearer scheme must yield empty, got %q", got)
	}
	if got := bearerToken(""); got != "" {
		t.Fatalf("empty header must yield empty, got %q", got)
	}
}
