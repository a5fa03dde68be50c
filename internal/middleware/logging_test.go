package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"clinigate/internal/ids"
)

func TestLogger(t *testing.T) {
	t.Run("calls next handler and returns correct status", func(t *testing.T) {
		var called bool
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
		rr := httptest.NewRecorder()
		Logger(inner).ServeHTTP(rr, req)

		if !called {
			t.Error("next handler should have been called")
		}
		if rr.Code != http.StatusOK {
			t.Errorf("status: got %d, want 200", rr.Code)
		}
	})

	t.Run("captures non-200 status code", func(t *testing.T) {
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		rr := httptest.NewRecorder()
		Logger(inner).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/not-found", nil))

		if rr.Code != http.StatusNotFound {
			t.Errorf("status: got %d, want 404", rr.Code)
		}
	})

	t.Run("handles write without explicit WriteHeader", func(t *testing.T) {
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("hello"))
		})

		rr := httptest.NewRecorder()
		Logger(Metrics(inner)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		if rr.Code != http.StatusOK {
			t.Errorf("status: got %d, want 200", rr.Code)
		}
		if rr.Body.String() != "hello" {
			t.Errorf("body: got %q", rr.Body.String())
		}
	})
}

func TestResponseWriterFirstStatusWins(t *testing.T) {
	rr := httptest.NewRecorder()
	rw := wrap(rr)
	rw.WriteHeader(http.StatusTeapot)
	rw.WriteHeader(http.StatusOK)
	if rw.statusCode != http.StatusTeapot {
		t.Errorf("status: got %d, want 418", rw.statusCode)
	}
	if wrap(rw) != rw {
		t.Error("wrapping twice should reuse the writer")
	}
}

func TestRequestID(t *testing.T) {
	t.Run("generates id when absent", func(t *testing.T) {
		var seen string
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = RequestIDFromContext(r.Context())
		})

		rr := httptest.NewRecorder()
		RequestID(inner).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		if !ids.Valid(seen) {
			t.Fatalf("expected a ULID in context, got %q", seen)
		}
		if got := rr.Header().Get(RequestIDHeader); got != seen {
			t.Errorf("response header: got %q, want %q", got, seen)
		}
	})

	t.Run("keeps well-formed client id", func(t *testing.T) {
		id := ids.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, id)

		rr := httptest.NewRecorder()
		RequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rr, req)

		if got := rr.Header().Get(RequestIDHeader); got != id {
			t.Errorf("got %q, want %q", got, id)
		}
	})

	t.Run("replaces malformed client id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "<script>")

		rr := httptest.NewRecorder()
		RequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rr, req)

		if got := rr.Header().Get(RequestIDHeader); !ids.Valid(got) {
			t.Errorf("expected generated id, got %q", got)
		}
	})
}
