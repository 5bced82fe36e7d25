package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGuardDisabledWithoutTokens(t *testing.T) {
	guard := NewGuard(nil)
	if guard.Enabled() {
		t.Fatal("guard without tokens must be disabled")
	}
	if !guard.Authenticate("") {
		t.Fatal("disabled guard must accept everything")
	}

	guard = NewGuard([]string{"", "  "})
	if guard.Enabled() {
		t.Fatal("blank tokens must not enable the guard")
	}
}

func TestGuardAuthenticate(t *testing.T) {
	guard := NewGuard([]string{"alpha", "beta"})

	cases := []struct {
		header string
		want   bool
	}{
		{"Bearer alpha", true},
		{"Bearer beta", true},
		{"Bearer  alpha ", true},
		{"Bearer gamma", false},
		{"alpha", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := guard.Authenticate(tc.header); got != tc.want {
			t.Fatalf("Authenticate(%q) = %v, want %v", tc.header, got, tc.want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	guard := NewGuard([]string{"secret"})
	handler := guard.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d without token, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status %d with token, want 204", rec.Code)
	}
}
