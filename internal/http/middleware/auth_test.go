package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequireUser(t *testing.T) {
	var reached bool
	h := RequireUser(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		reached = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/favorites", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without identity, got %d", rec.Code)
	}
	if reached {
		t.Error("handler must not run without identity")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/favorites", nil)
	req = req.WithContext(context.WithValue(req.Context(), UserIDKey, "u1"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if !reached {
		t.Error("handler should run with identity present")
	}
}
