package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"EmberFM/core/auth"
	"EmberFM/core/fault"
)

func TestWriteErrorMapsFaultKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", fault.Newf(fault.KindValidation, "bad input"), http.StatusBadRequest},
		{"not found", fault.Newf(fault.KindNotFound, "missing"), http.StatusNotFound},
		{"permission", fault.Newf(fault.KindPermission, "denied"), http.StatusForbidden},
		{"transient", fault.Newf(fault.KindTransient, "down"), http.StatusServiceUnavailable},
		{"unclassified counts as transient", errors.New("weird"), http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tc.err)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("content type = %q", ct)
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	auth.InitJWT("test-secret", time.Hour)
	h := &APIHandler{gateway: auth.NewGateway(nil)}

	var sawPrincipal string
	protected := h.AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		p, err := GetPrincipalFromContext(r.Context())
		if err != nil {
			t.Fatalf("principal missing inside handler: %v", err)
		}
		sawPrincipal = p.ID
		w.WriteHeader(http.StatusOK)
	})

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected(rec, httptest.NewRequest(http.MethodGet, "/api/tracks", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/tracks", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()
		protected(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/tracks", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		rec := httptest.NewRecorder()
		protected(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := auth.GenerateToken("u1", "u1@example.com", "One")
		if err != nil {
			t.Fatalf("GenerateToken: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/api/tracks", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		protected(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if sawPrincipal != "u1" {
			t.Fatalf("handler saw principal %q, want u1", sawPrincipal)
		}
	})
}
