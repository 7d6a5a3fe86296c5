package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tbraddock/clinicflow/services/schedule-service/internal/authz"
	"github.com/tbraddock/clinicflow/services/schedule-service/internal/model"
	"github.com/tbraddock/clinicflow/services/schedule-service/internal/outbox"
	"github.com/tbraddock/clinicflow/services/schedule-service/internal/storage"
)

type ScheduleHandler struct {
	repo       *storage.ScheduleRepository
	outboxRepo *outbox.Repository
	logger     *slog.Logger
}

func NewScheduleHandler(repo *storage.ScheduleRepository, outboxRepo *outbox.Repository, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{repo: repo, outboxRepo: outboxRepo, logger: logger}
}

func practiceIDFromHeader(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Practice-Id"))
}

func callerFromHeaders(r *http.Request) (userID, role string) {
	return strings.TrimSpace(r.Header.Get("X-User-Id")), strings.TrimSpace(r.Header.Get("X-Role"))
}

// parseClock converts "HH:MM" to minutes from midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

type weeklyDayItem struct {
	Weekday     int    `json:"weekday"`
	Start       string `json:"start"`
	End         string `json:"end"`
	BreakStart  string `json:"break_start,omitempty"`
	BreakEnd    string `json:"break_end,omitempty"`
	IsAvailable bool   `json:"is_available"`
}

func (h *ScheduleHandler) GetWeekly(w http.ResponseWriter, r *http.Request) {
	practiceID := practiceIDFromHeader(r)
	if practiceID == "" {
		http.Error(w, "missing X-Practice-Id", http.StatusBadRequest)
		return
	}
	providerID := strings.TrimSpace(r.URL.Query().Get("provider_id"))
	if providerID == "" {
		http.Error(w, "provider_id is required", http.StatusBadRequest)
		return
	}

	rows, err := h.repo.ListWeeklyAvailability(r.Context(), practiceID, providerID)
	if err != nil {
		http.Error(w, "failed to load weekly schedule", http.StatusInternalServerError)
		return
	}

	items := make([]weeklyDayItem, 0, len(rows))
	for _, wa := range rows {
		item := weeklyDayItem{
			Weekday:     wa.Weekday,
			Start:       formatClock(wa.StartMinute),
			End:         formatClock(wa.EndMinute),
			IsAvailable: wa.IsAvailable,
		}
		if wa.HasBreak() {
			item.BreakStart = formatClock(*wa.BreakStartMinute)
			item.BreakEnd = formatClock(*wa.BreakEndMinute)
		}
		items = append(items, item)
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

type putWeeklyRequest struct {
	ProviderID string          `json:"provider_id"`
	Days       []weeklyDayItem `json:"days"`
}

func (h *ScheduleHandler) PutWeekly(w http.ResponseWriter, r *http.Request) {
	practiceID := practiceIDFromHeader(r)
	if practiceID == "" {
		http.Error(w, "missing X-Practice-Id", http.StatusBadRequest)
		return
	}

	var req putWeeklyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	if req.ProviderID == "" || len(req.Days) == 0 {
		http.Error(w, "provider_id and days are required", http.StatusBadRequest)
		return
	}

	userID, role := callerFromHeaders(r)
	if err := authz.AuthorizeScheduleMutation(userID, role, req.ProviderID); err != nil {
		http.Error(w, "not allowed to edit this provider's schedule", http.StatusForbidden)
		return
	}

	seen := make(map[int]bool, len(req.Days))
	rows := make([]model.WeeklyAvailability, 0, len(req.Days))
	for _, d := range req.Days {
		wa, err := weeklyRowFromItem(practiceID, req.ProviderID, d)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if seen[d.Weekday] {
			http.Error(w, "duplicate weekday", http.StatusBadRequest)
			return
		}
		seen[d.Weekday] = true
		rows = append(rows, wa)
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, wa := range rows {
		if err := h.repo.UpsertWeeklyAvailability(ctx, tx, wa); err != nil {
			http.Error(w, "failed to save weekly schedule", http.StatusInternalServerError)
			return
		}
		if err := h.outboxRepo.Insert(ctx, tx, outbox.AvailabilityUpdated(practiceID, req.ProviderID, wa.Weekday)); err != nil {
			http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func weeklyRowFromItem(practiceID, providerID string, d weeklyDayItem) (model.WeeklyAvailability, error) {
	if d.Weekday < 0 || d.Weekday > 6 {
		return model.WeeklyAvailability{}, errors.New("weekday must be between 0 and 6")
	}
	wa := model.WeeklyAvailability{
		PracticeID:  practiceID,
		ProviderID:  providerID,
		Weekday:     d.Weekday,
		IsAvailable: d.IsAvailable,
	}
	if !d.IsAvailable {
		return wa, nil
	}

	start, err := parseClock(d.Start)
	if err != nil {
		return model.WeeklyAvailability{}, errors.New("invalid start, expected HH:MM")
	}
	end, err := parseClock(d.End)
	if err != nil {
		return model.WeeklyAvailability{}, errors.New("invalid end, expected HH:MM")
	}
	if end <= start {
		return model.WeeklyAvailability{}, errors.New("end must be after start")
	}
	wa.StartMinute = start
	wa.EndMinute = end

	if d.BreakStart == "" && d.BreakEnd == "" {
		return wa, nil
	}
	if d.BreakStart == "" || d.BreakEnd == "" {
		return model.WeeklyAvailability{}, errors.New("break_start and break_end must be set together")
	}
	bs, err := parseClock(d.BreakStart)
	if err != nil {
		return model.WeeklyAvailability{}, errors.New("invalid break_start, expected HH:MM")
	}
	be, err := parseClock(d.BreakEnd)
	if err != nil {
		return model.WeeklyAvailability{}, errors.New("invalid break_end, expected HH:MM")
	}
	if be <= bs || bs < start || be > end {
		return model.WeeklyAvailability{}, errors.New("break must fall within working hours")
	}
	wa.BreakStartMinute = &bs
	wa.BreakEndMinute = &be
	return wa, nil
}

type blockItem struct {
	ID         string `json:"id"`
	ProviderID string `json:"provider_id"`
	Title      string `json:"title"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Reason     string `json:"reason,omitempty"`
	Recurrence string `json:"recurrence,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func (h *ScheduleHandler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	practiceID := practiceIDFromHeader(r)
	if practiceID == "" {
		http.Error(w, "missing X-Practice-Id", http.StatusBadRequest)
		return
	}
	providerID := strings.TrimSpace(r.URL.Query().Get("provider_id"))
	if providerID == "" {
		http.Error(w, "provider_id is required", http.StatusBadRequest)
		return
	}

	from := time.Now().UTC()
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid from", http.StatusBadRequest)
			return
		}
		from = t
	}
	limit := 100
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	var blocks []model.BlockedRange
	var err error
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		to, parseErr := time.Parse(time.RFC3339, raw)
		if parseErr != nil || !to.After(from) {
			http.Error(w, "invalid to", http.StatusBadRequest)
			return
		}
		blocks, err = h.repo.BlockedRanges(r.Context(), practiceID, providerID, from, to)
	} else {
		blocks, err = h.repo.ListBlockedRanges(r.Context(), practiceID, providerID, from, limit)
	}
	if err != nil {
		http.Error(w, "failed to list blocked ranges", http.StatusInternalServerError)
		return
	}

	items := make([]blockItem, 0, len(blocks))
	for _, b := range blocks {
		items = append(items, blockItem{
			ID:         b.ID,
			ProviderID: b.ProviderID,
			Title:      b.Title,
			StartTime:  b.StartTime.UTC().Format(time.RFC3339),
			EndTime:    b.EndTime.UTC().Format(time.RFC3339),
			Reason:     b.Reason,
			Recurrence: b.Recurrence,
			CreatedAt:  b.CreatedAt.UTC().Format(time.RFC3339),
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

type createBlockRequest struct {
	ProviderID  string `json:"provider_id"`
	Title       string `json:"title"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Reason      string `json:"reason"`
	Recurrence  string `json:"recurrence"`
	Occurrences int    `json:"occurrences"`
}

type createBlockResponse struct {
	BlockIDs []string `json:"block_ids"`
}

const maxBlockOccurrences = 52

func (h *ScheduleHandler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	practiceID := practiceIDFromHeader(r)
	if practiceID == "" {
		http.Error(w, "missing X-Practice-Id", http.StatusBadRequest)
		return
	}

	var req createBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	req.Title = strings.TrimSpace(req.Title)
	req.Recurrence = strings.TrimSpace(req.Recurrence)
	if req.ProviderID == "" || req.Title == "" {
		http.Error(w, "provider_id and title are required", http.StatusBadRequest)
		return
	}

	userID, role := callerFromHeaders(r)
	if err := authz.AuthorizeScheduleMutation(userID, role, req.ProviderID); err != nil {
		http.Error(w, "not allowed to edit this provider's schedule", http.StatusForbidden)
		return
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		http.Error(w, "invalid end_time", http.StatusBadRequest)
		return
	}
	if !endTime.After(startTime) {
		http.Error(w, "end_time must be after start_time", http.StatusBadRequest)
		return
	}

	// Recurring blocks expand into concrete rows now; slot generation never
	// interprets recurrence rules.
	var stride time.Duration
	switch req.Recurrence {
	case "":
		req.Occurrences = 1
	case "daily":
		stride = 24 * time.Hour
	case "weekly":
		stride = 7 * 24 * time.Hour
	default:
		http.Error(w, "recurrence must be daily or weekly", http.StatusBadRequest)
		return
	}
	if req.Recurrence != "" {
		if req.Occurrences <= 0 {
			req.Occurrences = 1
		}
		if req.Occurrences > maxBlockOccurrences {
			http.Error(w, "too many occurrences", http.StatusBadRequest)
			return
		}
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]string, 0, req.Occurrences)
	for i := 0; i < req.Occurrences; i++ {
		offset := time.Duration(i) * stride
		b := &model.BlockedRange{
			PracticeID: practiceID,
			ProviderID: req.ProviderID,
			Title:      req.Title,
			StartTime:  startTime.Add(offset),
			EndTime:    endTime.Add(offset),
			Reason:     strings.TrimSpace(req.Reason),
			Recurrence: req.Recurrence,
		}
		id, err := h.repo.CreateBlockedRange(ctx, tx, b)
		if err != nil {
			http.Error(w, "failed to create blocked range", http.StatusInternalServerError)
			return
		}
		if err := h.outboxRepo.Insert(ctx, tx, outbox.BlockCreated(id, practiceID, req.ProviderID, b.StartTime, b.EndTime)); err != nil {
			http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
			return
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(createBlockResponse{BlockIDs: ids})
}

func (h *ScheduleHandler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	practiceID := practiceIDFromHeader(r)
	if practiceID == "" {
		http.Error(w, "missing X-Practice-Id", http.StatusBadRequest)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	block, err := h.repo.GetBlockedRange(ctx, practiceID, id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "blocked range not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load blocked range", http.StatusInternalServerError)
		return
	}

	userID, role := callerFromHeaders(r)
	if err := authz.AuthorizeScheduleMutation(userID, role, block.ProviderID); err != nil {
		http.Error(w, "not allowed to edit this provider's schedule", http.StatusForbidden)
		return
	}

	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.DeleteBlockedRange(ctx, tx, practiceID, id); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "blocked range not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to delete blocked range", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.BlockDeleted(id, practiceID, block.ProviderID)); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ScheduleHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	practiceID := practiceIDFromHeader(r)
	if practiceID == "" {
		http.Error(w, "missing X-Practice-Id", http.StatusBadRequest)
		return
	}

	p, err := h.repo.GetOrCreateProfile(r.Context(), practiceID)
	if err != nil {
		http.Error(w, "failed to load profile", http.StatusInternalServerError)
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"practice_id": p.PracticeID,
		"name":        p.Name,
		"timezone":    p.Timezone,
	})
}

func (h *ScheduleHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	practiceID := practiceIDFromHeader(r)
	if practiceID == "" {
		http.Error(w, "missing X-Practice-Id", http.StatusBadRequest)
		return
	}
	if _, role := callerFromHeaders(r); role != authz.RoleAdmin {
		http.Error(w, "admin role required", http.StatusForbidden)
		return
	}

	var req struct {
		Name     string `json:"name"`
		Timezone string `json:"timezone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Timezone = strings.TrimSpace(req.Timezone)
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		http.Error(w, "invalid timezone", http.StatusBadRequest)
		return
	}

	if err := h.repo.UpdateProfile(r.Context(), practiceID, req.Name, req.Timezone); err != nil {
		http.Error(w, "failed to update profile", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
