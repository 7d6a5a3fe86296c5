package model

import "time"

// WeeklyAvailability is a provider's configured working window for one
// weekday. At most one row exists per (provider, weekday); updates replace
// the row. Times are minutes from local midnight in the practice timezone.
type WeeklyAvailability struct {
	PracticeID       string
	ProviderID       string
	Weekday          int // 0 = Sunday
	StartMinute      int
	EndMinute        int
	BreakStartMinute *int
	BreakEndMinute   *int
	IsAvailable      bool
	UpdatedAt        time.Time
}

// HasBreak reports whether a non-degenerate break window is configured.
func (w WeeklyAvailability) HasBreak() bool {
	return w.BreakStartMinute != nil && w.BreakEndMinute != nil &&
		*w.BreakEndMinute > *w.BreakStartMinute
}

// BlockedRange is an ad-hoc provider unavailability window (vacation,
// meeting, training) stored as absolute instants. Recurrence metadata is
// carried verbatim; recurring blocks are expanded into concrete rows at
// write time, never by the slot generator.
type BlockedRange struct {
	ID         string
	PracticeID string
	ProviderID string
	Title      string
	StartTime  time.Time
	EndTime    time.Time
	Reason     string
	Recurrence string
	CreatedAt  time.Time
}

// Appointment is a locally mirrored copy of a booking owned by the booking
// system. This service only ever reads it for conflict detection; a
// cancelled appointment never counts as busy.
type Appointment struct {
	ID          string
	PracticeID  string
	ProviderID  string
	StartTime   time.Time
	EndTime     time.Time
	Status      string
	CancelledAt *time.Time
	UpdatedAt   time.Time
}

const AppointmentStatusCancelled = "cancelled"

// AvailableSlot is a computed bookable range. End-Start always equals the
// requested duration; the buffer only spaces consecutive candidates.
type AvailableSlot struct {
	ProviderID      string
	Start           time.Time
	End             time.Time
	DurationMinutes int
}

// PracticeProfile supplies the local time context used to anchor a calendar
// date before slot generation.
type PracticeProfile struct {
	PracticeID string
	Name       string
	Timezone   string
}
