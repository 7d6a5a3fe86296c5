package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/tbraddock/clinicflow/services/schedule-service/internal/model"
)

// Topics published by the booking system that feed the local appointment
// mirror used for conflict detection.
const (
	TopicAppointmentBooked    = "booking.appointment.booked.v1"
	TopicAppointmentCancelled = "booking.appointment.cancelled.v1"
)

// MirrorStore is the slice of the repository the booking handlers need.
type MirrorStore interface {
	UpsertMirroredAppointment(ctx context.Context, a model.Appointment) error
	MarkAppointmentCancelled(ctx context.Context, practiceID, appointmentID string, cancelledAt time.Time) error
}

type appointmentBookedPayload struct {
	AppointmentID string    `json:"appointment_id"`
	PracticeID    string    `json:"practice_id"`
	ProviderID    string    `json:"provider_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}

type appointmentCancelledPayload struct {
	AppointmentID string     `json:"appointment_id"`
	PracticeID    string     `json:"practice_id"`
	CancelledAt   *time.Time `json:"cancelled_at"`
}

// AppointmentBookedHandler mirrors a newly booked appointment so the slot
// generator sees it as busy.
func AppointmentBookedHandler(store MirrorStore) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var p appointmentBookedPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			return fmt.Errorf("decode booked payload: %w", err)
		}
		if p.AppointmentID == "" || p.PracticeID == "" || p.ProviderID == "" {
			return fmt.Errorf("booked payload missing ids")
		}
		if !p.EndTime.After(p.StartTime) {
			return fmt.Errorf("booked payload has empty interval")
		}
		return store.UpsertMirroredAppointment(ctx, model.Appointment{
			ID:         p.AppointmentID,
			PracticeID: p.PracticeID,
			ProviderID: p.ProviderID,
			StartTime:  p.StartTime,
			EndTime:    p.EndTime,
			Status:     "booked",
		})
	}
}

// AppointmentCancelledHandler releases a mirrored appointment's time.
func AppointmentCancelledHandler(store MirrorStore) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var p appointmentCancelledPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			return fmt.Errorf("decode cancelled payload: %w", err)
		}
		if p.AppointmentID == "" || p.PracticeID == "" {
			return fmt.Errorf("cancelled payload missing ids")
		}
		cancelledAt := time.Now().UTC()
		if p.CancelledAt != nil {
			cancelledAt = *p.CancelledAt
		}
		return store.MarkAppointmentCancelled(ctx, p.PracticeID, p.AppointmentID, cancelledAt)
	}
}
