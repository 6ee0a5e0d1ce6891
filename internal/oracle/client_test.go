package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketflow/pkg/platform/sentinel"
)

func TestClientValidate(t *testing.T) {
	ctx := context.Background()

	t.Run("maps 2xx success body to validated", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "8145455", r.URL.Query().Get("id"))
			assert.Equal(t, "AB21d15B", r.URL.Query().Get("ticket_id"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"status": "success",
				"data": {"event": "Concert A", "ticket_id": "AB21d15B", "user_id": "8145455", "date": "2026-09-01"}
			}`))
		}))
		defer srv.Close()

		verdict, err := New(srv.URL, time.Second).Validate(ctx, "8145455", "AB21d15B")
		require.NoError(t, err)
		assert.Equal(t, StatusValidated, verdict.Status)
		assert.True(t, verdict.Terminal())
		require.NotNil(t, verdict.Data)
		assert.Equal(t, "Concert A", verdict.Data.Event)
		assert.Contains(t, verdict.Details, "Concert A")
	})

	t.Run("maps 404 to not_found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status": "error", "message": "Ticket not found"}`))
		}))
		defer srv.Close()

		verdict, err := New(srv.URL, time.Second).Validate(ctx, "1", "missing")
		require.NoError(t, err)
		assert.Equal(t, StatusNotFound, verdict.Status)
		assert.True(t, verdict.Terminal())
		assert.Equal(t, "Ticket not found", verdict.Details)
		assert.Nil(t, verdict.Data)
	})

	t.Run("maps 403 to owner_mismatch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"status": "error", "message": "Ticket does not belong to user"}`))
		}))
		defer srv.Close()

		verdict, err := New(srv.URL, time.Second).Validate(ctx, "2", "AB1")
		require.NoError(t, err)
		assert.Equal(t, StatusOwnerMismatch, verdict.Status)
		assert.True(t, verdict.Terminal())
	})

	t.Run("maps 2xx error body to validation_failed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status": "error", "message": "backend degraded"}`))
		}))
		defer srv.Close()

		verdict, err := New(srv.URL, time.Second).Validate(ctx, "3", "AB2")
		require.NoError(t, err)
		assert.Equal(t, StatusValidationFailed, verdict.Status)
		assert.False(t, verdict.Terminal())
		assert.Contains(t, verdict.Details, "backend degraded")
	})

	t.Run("maps 5xx to an unavailable error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := New(srv.URL, time.Second).Validate(ctx, "4", "AB3")
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})

	t.Run("maps timeout to an unavailable error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		_, err := New(srv.URL, 20*time.Millisecond).Validate(ctx, "5", "AB4")
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})

	t.Run("maps connection failure to an unavailable error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		_, err := New(srv.URL, time.Second).Validate(ctx, "6", "AB5")
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})

	t.Run("maps undecodable success body to an unavailable error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{broken`))
		}))
		defer srv.Close()

		_, err := New(srv.URL, time.Second).Validate(ctx, "7", "AB6")
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})
}
