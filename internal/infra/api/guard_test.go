//go:build !integration

package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"finance-copilot/internal/domain"
	"finance-copilot/internal/infra/api"
	"finance-copilot/internal/infra/logging"
)

func nopLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) api.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := api.Chain(ok, mark("a"), mark("b"), mark("c"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if len(order) != 3 || order[0] != "a" || order[2] != "c" {
		t.Fatalf("order = %v", order)
	}
}

func TestCORS(t *testing.T) {
	h := api.CORS("http://localhost:3000/")(ok)

	t.Run("preflight from the frontend", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/watchlist/all", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", "GET")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("want 204, got %d", rec.Code)
		}
		if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" ||
			rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
			t.Fatalf("headers = %v", rec.Header())
		}
	})

	t.Run("other origins get no headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Fatal("foreign origin allowed")
		}
	})
}

func TestTraceID(t *testing.T) {
	var seen string
	h := api.TraceID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.TraceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "abc-123" || rec.Header().Get("X-Request-ID") != "abc-123" {
		t.Fatalf("trace id = %q / %q", seen, rec.Header().Get("X-Request-ID"))
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || seen == "abc-123" {
		t.Fatalf("expected a fresh id, got %q", seen)
	}
}

func TestRecover(t *testing.T) {
	h := api.Recover(nopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", rec.Code)
	}
}

func TestTimeout(t *testing.T) {
	var deadline bool
	h := api.Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, deadline = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !deadline {
		t.Fatal("no deadline on request context")
	}
}

func TestAuth(t *testing.T) {
	authn := api.AuthenticatorFunc(func(ctx context.Context, tok string) (string, error) {
		switch tok {
		case "good":
			return "u1", nil
		case "broken":
			return "", errors.New("db down")
		}
		return "", domain.ErrUnauthorized
	})
	var user, token string
	h := api.Auth(authn, nopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, token = api.UserID(r.Context()), api.Token(r.Context())
	}))

	cases := []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"Basic xyz", http.StatusUnauthorized},
		{"Bearer bad", http.StatusUnauthorized},
		{"Bearer broken", http.StatusUnauthorized},
		{"Bearer good", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%q: want %d, got %d", tc.header, tc.want, rec.Code)
		}
	}
	if user != "u1" || token != "good" {
		t.Fatalf("context = %q/%q", user, token)
	}
}
