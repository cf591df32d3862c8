package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nettuhq/scheduler/domain"
)

func TestDispatchSendsEventsAndKeyHeader(t *testing.T) {
	var gotKey string
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("nettu-scheduler-webhook-key")
		buf := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(buf)
		gotBody = string(buf)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher()
	events := []domain.CalendarEvent{{ID: "e1"}}
	err := d.Dispatch(context.Background(), domain.WebhookSettings{URL: srv.URL, Key: "secret"}, events)
	require.NoError(t, err)
	assert.Equal(t, "secret", gotKey)
	assert.Contains(t, gotBody, `"e1"`)
}

func TestDispatchReturnsErrorOnNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewDispatcher()
	err := d.Dispatch(context.Background(), domain.WebhookSettings{URL: srv.URL}, []domain.CalendarEvent{{ID: "e1"}})
	assert.Error(t, err)
}

func TestDispatchRespectsContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()

	d := NewDispatcher()
	err := d.Dispatch(ctx, domain.WebhookSettings{URL: srv.URL}, []domain.CalendarEvent{{ID: "e1"}})
	assert.Error(t, err)
}
