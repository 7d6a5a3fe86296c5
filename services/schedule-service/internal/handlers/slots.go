package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tbraddock/clinicflow/services/schedule-service/internal/availability"
)

// TimezoneResolver anchors a calendar date to the practice's local midnight.
type TimezoneResolver interface {
	PracticeLocation(ctx context.Context, practiceID string) (*time.Location, error)
}

type SlotsHandler struct {
	gen             *availability.Generator
	tz              TimezoneResolver
	logger          *slog.Logger
	defaultDuration int
	defaultBuffer   int
}

func NewSlotsHandler(gen *availability.Generator, tz TimezoneResolver, logger *slog.Logger, defaultDuration, defaultBuffer int) *SlotsHandler {
	if defaultDuration <= 0 {
		defaultDuration = 30
	}
	if defaultBuffer < 0 {
		defaultBuffer = 0
	}
	return &SlotsHandler{
		gen:             gen,
		tz:              tz,
		logger:          logger,
		defaultDuration: defaultDuration,
		defaultBuffer:   defaultBuffer,
	}
}

type slotItem struct {
	ProviderID      string `json:"provider_id"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

func (h *SlotsHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	practiceID := practiceIDFromHeader(r)
	if practiceID == "" {
		http.Error(w, "missing X-Practice-Id", http.StatusBadRequest)
		return
	}
	providerID := strings.TrimSpace(r.URL.Query().Get("provider_id"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if providerID == "" || dateStr == "" {
		http.Error(w, "provider_id and date are required", http.StatusBadRequest)
		return
	}

	duration := h.defaultDuration
	if raw := strings.TrimSpace(r.URL.Query().Get("duration_minutes")); raw != "" {
		n, err := strconv.Atoi(raw)
		// A duration longer than the day's window yields an empty list,
		// so only non-positive values are rejected here.
		if err != nil || n <= 0 {
			http.Error(w, "invalid duration_minutes", http.StatusBadRequest)
			return
		}
		duration = n
	}
	buffer := h.defaultBuffer
	if raw := strings.TrimSpace(r.URL.Query().Get("buffer_minutes")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "invalid buffer_minutes", http.StatusBadRequest)
			return
		}
		buffer = n
	}

	loc, err := h.tz.PracticeLocation(r.Context(), practiceID)
	if err != nil {
		h.logger.Error("practice timezone lookup failed", "err", err)
		http.Error(w, "schedule store unavailable", http.StatusServiceUnavailable)
		return
	}
	day, err := time.ParseInLocation("2006-01-02", dateStr, loc)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	slots, err := h.gen.Generate(r.Context(), practiceID, providerID, day, duration, buffer)
	if err != nil {
		if errors.Is(err, availability.ErrInvalidInput) {
			http.Error(w, "invalid slot parameters", http.StatusBadRequest)
			return
		}
		if errors.Is(err, availability.ErrStoreUnavailable) {
			h.logger.Error("slot generation failed", "err", err, "provider_id", providerID)
			http.Error(w, "schedule store unavailable", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, "failed to compute slots", http.StatusInternalServerError)
		return
	}

	// A day with nothing open is a valid answer, not an error.
	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{
			ProviderID:      s.ProviderID,
			StartTime:       s.Start.UTC().Format(time.RFC3339),
			EndTime:         s.End.UTC().Format(time.RFC3339),
			DurationMinutes: s.DurationMinutes,
		})
	}

	body, err := json.Marshal(items)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
