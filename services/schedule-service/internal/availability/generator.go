package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tbraddock/clinicflow/services/schedule-service/internal/model"
)

var (
	// ErrInvalidInput marks requests rejected before any store access.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStoreUnavailable wraps storage failures so callers can map them
	// to a retryable response without inspecting driver errors.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Store is the read surface the generator needs. The repository in
// internal/storage implements it against Postgres; tests supply stubs.
type Store interface {
	WeeklyAvailability(ctx context.Context, practiceID, providerID string, weekday int) (model.WeeklyAvailability, bool, error)
	BlockedRanges(ctx context.Context, practiceID, providerID string, from, to time.Time) ([]model.BlockedRange, error)
	BookedAppointments(ctx context.Context, practiceID, providerID string, from, to time.Time) ([]model.Appointment, error)
}

// Generator computes open appointment slots for a provider on a given day.
type Generator struct {
	store Store
}

func NewGenerator(store Store) *Generator {
	return &Generator{store: store}
}

// Generate returns the bookable slots for providerID on the day starting at
// day, which must be midnight in the practice's timezone. A provider with no
// weekly row for that weekday, or one marked unavailable, yields an empty
// list rather than an error. durationMinutes must be positive and
// bufferMinutes non-negative.
//
// Candidate slots are walked from the start of the working window in steps
// of duration+buffer. A candidate overlapping the lunch break moves the
// cursor to the end of the break; one overlapping a blocked range or booked
// appointment is skipped; the walk stops once a full step no longer fits
// before the end of the window.
func (g *Generator) Generate(ctx context.Context, practiceID, providerID string, day time.Time, durationMinutes, bufferMinutes int) ([]model.AvailableSlot, error) {
	if practiceID == "" || providerID == "" {
		return nil, fmt.Errorf("%w: practice and provider ids are required", ErrInvalidInput)
	}
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}
	if bufferMinutes < 0 {
		return nil, fmt.Errorf("%w: buffer must not be negative", ErrInvalidInput)
	}

	weekday := int(day.Weekday())
	wa, ok, err := g.store.WeeklyAvailability(ctx, practiceID, providerID, weekday)
	if err != nil {
		return nil, fmt.Errorf("%w: weekly availability: %v", ErrStoreUnavailable, err)
	}
	if !ok || !wa.IsAvailable || wa.EndMinute <= wa.StartMinute {
		return []model.AvailableSlot{}, nil
	}

	windowStart := day.Add(time.Duration(wa.StartMinute) * time.Minute)
	windowEnd := day.Add(time.Duration(wa.EndMinute) * time.Minute)

	var breakStart, breakEnd time.Time
	hasBreak := wa.HasBreak()
	if hasBreak {
		breakStart = day.Add(time.Duration(*wa.BreakStartMinute) * time.Minute)
		breakEnd = day.Add(time.Duration(*wa.BreakEndMinute) * time.Minute)
	}

	// One range query per source covers every candidate inside the window;
	// the per-slot check below is unchanged.
	blocks, err := g.store.BlockedRanges(ctx, practiceID, providerID, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: blocked ranges: %v", ErrStoreUnavailable, err)
	}
	appts, err := g.store.BookedAppointments(ctx, practiceID, providerID, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: booked appointments: %v", ErrStoreUnavailable, err)
	}

	busy := make([]Interval, 0, len(blocks)+len(appts))
	for _, b := range blocks {
		busy = append(busy, Interval{Start: b.StartTime, End: b.EndTime})
	}
	for _, a := range appts {
		busy = append(busy, Interval{Start: a.StartTime, End: a.EndTime})
	}

	step := time.Duration(durationMinutes+bufferMinutes) * time.Minute
	slotLen := time.Duration(durationMinutes) * time.Minute

	slots := []model.AvailableSlot{}
	for cursor := windowStart; cursor.Before(windowEnd); {
		if cursor.Add(step).After(windowEnd) {
			break
		}
		slotEnd := cursor.Add(slotLen)

		if hasBreak && Overlaps(cursor, slotEnd, breakStart, breakEnd) {
			// breakEnd is strictly after cursor here, so the walk advances.
			cursor = breakEnd
			continue
		}
		if !overlapsAny(cursor, slotEnd, busy) {
			slots = append(slots, model.AvailableSlot{
				ProviderID:      providerID,
				Start:           cursor,
				End:             slotEnd,
				DurationMinutes: durationMinutes,
			})
		}
		cursor = cursor.Add(step)
	}
	return slots, nil
}
