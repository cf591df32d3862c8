package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPrometheusExporter(t *testing.T) {
	exporter := NewPrometheusExporter(DefaultConfig())

	t.Run("RecordBookingSlots", func(t *testing.T) {
		exporter.RecordBookingSlots(10*time.Millisecond, true)
		exporter.RecordBookingSlots(20*time.Millisecond, false)
	})

	t.Run("RecordFreeBusy", func(t *testing.T) {
		exporter.RecordFreeBusy(5*time.Millisecond, true)
	})

	t.Run("RecordReminderExpansion", func(t *testing.T) {
		exporter.RecordReminderExpansion(100*time.Millisecond, 3)
	})

	t.Run("RecordReminderDispatched", func(t *testing.T) {
		exporter.RecordReminderDispatched("acc_1", 2, 15*time.Millisecond)
	})

	t.Run("RecordReminderDropped", func(t *testing.T) {
		exporter.RecordReminderDropped("no_webhook", 1)
		exporter.RecordReminderDropped("stale_version", 1)
	})

	t.Run("RecordReminderDispatchFailure", func(t *testing.T) {
		exporter.RecordReminderDispatchFailure(30 * time.Millisecond)
	})
}

func TestPrometheusExporterHandler(t *testing.T) {
	exporter := NewPrometheusExporter(DefaultConfig())

	exporter.RecordBookingSlots(10*time.Millisecond, true)
	exporter.RecordFreeBusy(5*time.Millisecond, true)
	exporter.RecordReminderExpansion(100*time.Millisecond, 1)
	exporter.RecordReminderDispatched("acc_1", 1, 15*time.Millisecond)
	exporter.RecordReminderDropped("no_webhook", 1)

	req := httptest.NewRequest("GET", "/metrics", http.NoBody)
	w := httptest.NewRecorder()

	exporter.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	for _, want := range []string{
		"scheduler_booking_slots_requests_total",
		"scheduler_freebusy_compute_requests_total",
		"scheduler_reminder_expanded_total",
		"scheduler_reminder_dispatched_total",
		"scheduler_reminder_dropped_total",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s metric in output", want)
		}
	}
}

func TestDefaultConfigRegistry(t *testing.T) {
	exporter := NewPrometheusExporter(Config{})
	if exporter.GetRegistry() == nil {
		t.Fatal("expected a non-nil registry")
	}
}
