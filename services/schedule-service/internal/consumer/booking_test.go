package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/tbraddock/clinicflow/services/schedule-service/internal/model"
)

type fakeMirror struct {
	upserted  []model.Appointment
	cancelled []string
}

func (f *fakeMirror) UpsertMirroredAppointment(ctx context.Context, a model.Appointment) error {
	f.upserted = append(f.upserted, a)
	return nil
}

func (f *fakeMirror) MarkAppointmentCancelled(ctx context.Context, practiceID, appointmentID string, cancelledAt time.Time) error {
	f.cancelled = append(f.cancelled, appointmentID)
	return nil
}

func TestAppointmentBookedHandler(t *testing.T) {
	store := &fakeMirror{}
	h := AppointmentBookedHandler(store)

	msg := kafka.Message{Value: []byte(`{
		"appointment_id": "appt-1",
		"practice_id": "prac-1",
		"provider_id": "prov-1",
		"start_time": "2026-03-02T10:00:00Z",
		"end_time": "2026-03-02T11:00:00Z"
	}`)}
	if err := h(context.Background(), msg); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if len(store.upserted) != 1 {
		t.Fatalf("expected 1 upsert, got %d", len(store.upserted))
	}
	got := store.upserted[0]
	if got.ID != "appt-1" || got.ProviderID != "prov-1" || got.Status != "booked" {
		t.Fatalf("unexpected appointment: %+v", got)
	}
	if !got.EndTime.Equal(got.StartTime.Add(time.Hour)) {
		t.Fatalf("unexpected interval: %v to %v", got.StartTime, got.EndTime)
	}
}

func TestAppointmentBookedHandlerRejectsBadPayloads(t *testing.T) {
	store := &fakeMirror{}
	h := AppointmentBookedHandler(store)

	cases := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing ids", `{"start_time":"2026-03-02T10:00:00Z","end_time":"2026-03-02T11:00:00Z"}`},
		{"empty interval", `{"appointment_id":"a","practice_id":"p","provider_id":"s","start_time":"2026-03-02T10:00:00Z","end_time":"2026-03-02T10:00:00Z"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := h(context.Background(), kafka.Message{Value: []byte(tc.body)}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if len(store.upserted) != 0 {
		t.Fatalf("bad payloads must not reach the store: %+v", store.upserted)
	}
}

func TestAppointmentCancelledHandler(t *testing.T) {
	store := &fakeMirror{}
	h := AppointmentCancelledHandler(store)

	msg := kafka.Message{Value: []byte(`{
		"appointment_id": "appt-1",
		"practice_id": "prac-1",
		"cancelled_at": "2026-03-02T09:30:00Z"
	}`)}
	if err := h(context.Background(), msg); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if len(store.cancelled) != 1 || store.cancelled[0] != "appt-1" {
		t.Fatalf("unexpected cancels: %v", store.cancelled)
	}
}
