package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// passHandler answers 200 "ok".
var passHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
})

func callWithKey(t *testing.T, mw func(http.Handler) http.Handler, header, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/agents", nil)
	if key != "" {
		req.Header.Set(header, key)
	}
	rr := httptest.NewRecorder()
	mw(passHandler).ServeHTTP(rr, req)
	return rr
}

func TestAPIKeyMiddleware_ModeNone_PassesThrough(t *testing.T) {
	mw := APIKeyMiddleware("none", "x-agent-key", []string{"secret"})
	// No key on the request; passes because mode != "apikey".
	if rr := callWithKey(t, mw, "x-agent-key", ""); rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
}

func TestAPIKeyMiddleware_NoKeys_PassesThrough(t *testing.T) {
	// No keys means auth is not configured → allow all.
	mw := APIKeyMiddleware("apikey", "x-agent-key", nil)
	if rr := callWithKey(t, mw, "x-agent-key", ""); rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
}

func TestAPIKeyMiddleware_ValidKey(t *testing.T) {
	mw := APIKeyMiddleware("apikey", "x-agent-key", []string{"first", "correct-key"})
	rr := callWithKey(t, mw, "x-agent-key", "correct-key")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("got %d %q, want 200 ok", rr.Code, rr.Body.String())
	}
}

func TestAPIKeyMiddleware_HeaderIsCaseInsensitive(t *testing.T) {
	mw := APIKeyMiddleware("apikey", "x-agent-key", []string{"k1"})
	if rr := callWithKey(t, mw, "X-Agent-Key", "k1"); rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
}

func TestAPIKeyMiddleware_Rejections(t *testing.T) {
	mw := APIKeyMiddleware("apikey", "x-agent-key", []string{"correct-key"})
	tests := []struct {
		name   string
		header string
		key    string
	}{
		{"missing key", "x-agent-key", ""},
		{"wrong key", "x-agent-key", "wrong-key"},
		{"prefix of key", "x-agent-key", "correct"},
		{"wrong header", "x-api-key", "correct-key"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := callWithKey(t, mw, tc.header, tc.key)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("status: got %d, want 401", rr.Code)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type: got %q", ct)
			}
		})
	}
}
