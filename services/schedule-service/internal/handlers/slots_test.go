package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tbraddock/clinicflow/services/schedule-service/internal/availability"
	"github.com/tbraddock/clinicflow/services/schedule-service/internal/model"
)

type stubScheduleStore struct {
	weekly   model.WeeklyAvailability
	weeklyOK bool
	err      error
}

func (s *stubScheduleStore) WeeklyAvailability(ctx context.Context, practiceID, providerID string, weekday int) (model.WeeklyAvailability, bool, error) {
	return s.weekly, s.weeklyOK, s.err
}

func (s *stubScheduleStore) BlockedRanges(ctx context.Context, practiceID, providerID string, from, to time.Time) ([]model.BlockedRange, error) {
	return nil, s.err
}

func (s *stubScheduleStore) BookedAppointments(ctx context.Context, practiceID, providerID string, from, to time.Time) ([]model.Appointment, error) {
	return nil, s.err
}

type stubTZ struct{ err error }

func (s stubTZ) PracticeLocation(ctx context.Context, practiceID string) (*time.Location, error) {
	return time.UTC, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func newSlotsHandler(store availability.Store, tz TimezoneResolver) *SlotsHandler {
	return NewSlotsHandler(availability.NewGenerator(store), tz, testLogger(), 30, 0)
}

func TestSlotsReturnsGeneratedSlots(t *testing.T) {
	store := &stubScheduleStore{
		weekly: model.WeeklyAvailability{
			Weekday:     1,
			StartMinute: 9 * 60,
			EndMinute:   11 * 60,
			IsAvailable: true,
		},
		weeklyOK: true,
	}
	h := newSlotsHandler(store, stubTZ{})

	req := httptest.NewRequest("GET", "/api/v1/slots?provider_id=prov-1&date=2026-03-02&duration_minutes=60", nil)
	req.Header.Set("X-Practice-Id", "prac-1")
	rec := httptest.NewRecorder()
	h.Slots(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var items []slotItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 slots, got %v", items)
	}
	if items[0].StartTime != "2026-03-02T09:00:00Z" || items[1].StartTime != "2026-03-02T10:00:00Z" {
		t.Fatalf("unexpected slot times: %v", items)
	}
}

func TestSlotsEmptyDayIsOKNotError(t *testing.T) {
	h := newSlotsHandler(&stubScheduleStore{weeklyOK: false}, stubTZ{})

	req := httptest.NewRequest("GET", "/api/v1/slots?provider_id=prov-1&date=2026-03-02", nil)
	req.Header.Set("X-Practice-Id", "prac-1")
	rec := httptest.NewRecorder()
	h.Slots(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("expected empty array body, got %q", got)
	}
}

func TestSlotsOversizeDurationIsEmptyListNot400(t *testing.T) {
	store := &stubScheduleStore{
		weekly: model.WeeklyAvailability{
			Weekday:     1,
			StartMinute: 9 * 60,
			EndMinute:   17 * 60,
			IsAvailable: true,
		},
		weeklyOK: true,
	}
	h := newSlotsHandler(store, stubTZ{})

	// 600 minutes cannot fit an 8-hour window; the answer is no slots,
	// not a validation failure.
	req := httptest.NewRequest("GET", "/api/v1/slots?provider_id=prov-1&date=2026-03-02&duration_minutes=600", nil)
	req.Header.Set("X-Practice-Id", "prac-1")
	rec := httptest.NewRecorder()
	h.Slots(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("expected empty array body, got %q", got)
	}
}

func TestSlotsStoreFailureIs503(t *testing.T) {
	h := newSlotsHandler(&stubScheduleStore{err: errors.New("connection refused")}, stubTZ{})

	req := httptest.NewRequest("GET", "/api/v1/slots?provider_id=prov-1&date=2026-03-02", nil)
	req.Header.Set("X-Practice-Id", "prac-1")
	rec := httptest.NewRecorder()
	h.Slots(rec, req)

	if rec.Code != 503 {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestSlotsRejectsBadRequests(t *testing.T) {
	h := newSlotsHandler(&stubScheduleStore{}, stubTZ{})

	cases := []struct {
		name     string
		url      string
		practice string
	}{
		{"missing practice header", "/api/v1/slots?provider_id=p&date=2026-03-02", ""},
		{"missing provider", "/api/v1/slots?date=2026-03-02", "prac-1"},
		{"missing date", "/api/v1/slots?provider_id=p", "prac-1"},
		{"bad date", "/api/v1/slots?provider_id=p&date=03-02-2026", "prac-1"},
		{"zero duration", "/api/v1/slots?provider_id=p&date=2026-03-02&duration_minutes=0", "prac-1"},
		{"negative buffer", "/api/v1/slots?provider_id=p&date=2026-03-02&buffer_minutes=-1", "prac-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.url, nil)
			if tc.practice != "" {
				req.Header.Set("X-Practice-Id", tc.practice)
			}
			rec := httptest.NewRecorder()
			h.Slots(rec, req)
			if rec.Code != 400 {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestSlotsTimezoneLookupFailureIs503(t *testing.T) {
	h := newSlotsHandler(&stubScheduleStore{}, stubTZ{err: errors.New("connection refused")})

	req := httptest.NewRequest("GET", "/api/v1/slots?provider_id=prov-1&date=2026-03-02", nil)
	req.Header.Set("X-Practice-Id", "prac-1")
	rec := httptest.NewRecorder()
	h.Slots(rec, req)

	if rec.Code != 503 {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
