package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tbraddock/clinicflow/libs/db"
	"github.com/tbraddock/clinicflow/services/schedule-service/internal/model"
)

type ScheduleRepository struct {
	pool *db.Pool
}

func NewScheduleRepository(pool *db.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

// Begin opens a transaction so schedule mutations and their outbox rows
// commit atomically.
func (r *ScheduleRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *ScheduleRepository) WeeklyAvailability(ctx context.Context, practiceID, providerID string, weekday int) (model.WeeklyAvailability, bool, error) {
	var wa model.WeeklyAvailability
	err := r.pool.QueryRow(ctx, `
		SELECT practice_id::text, provider_id::text, weekday, start_minute, end_minute,
			break_start_minute, break_end_minute, is_available, updated_at
		FROM provider_weekly_availability
		WHERE practice_id = $1 AND provider_id = $2 AND weekday = $3
	`, practiceID, providerID, weekday).Scan(
		&wa.PracticeID,
		&wa.ProviderID,
		&wa.Weekday,
		&wa.StartMinute,
		&wa.EndMinute,
		&wa.BreakStartMinute,
		&wa.BreakEndMinute,
		&wa.IsAvailable,
		&wa.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.WeeklyAvailability{}, false, nil
	}
	if err != nil {
		return model.WeeklyAvailability{}, false, err
	}
	return wa, true, nil
}

func (r *ScheduleRepository) ListWeeklyAvailability(ctx context.Context, practiceID, providerID string) ([]model.WeeklyAvailability, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT practice_id::text, provider_id::text, weekday, start_minute, end_minute,
			break_start_minute, break_end_minute, is_available, updated_at
		FROM provider_weekly_availability
		WHERE practice_id = $1 AND provider_id = $2
		ORDER BY weekday ASC
	`, practiceID, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WeeklyAvailability
	for rows.Next() {
		var wa model.WeeklyAvailability
		if err := rows.Scan(
			&wa.PracticeID,
			&wa.ProviderID,
			&wa.Weekday,
			&wa.StartMinute,
			&wa.EndMinute,
			&wa.BreakStartMinute,
			&wa.BreakEndMinute,
			&wa.IsAvailable,
			&wa.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, wa)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *ScheduleRepository) UpsertWeeklyAvailability(ctx context.Context, tx pgx.Tx, wa model.WeeklyAvailability) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO provider_weekly_availability
			(practice_id, provider_id, weekday, start_minute, end_minute,
			 break_start_minute, break_end_minute, is_available)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (practice_id, provider_id, weekday) DO UPDATE
		SET start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute,
			break_start_minute = EXCLUDED.break_start_minute,
			break_end_minute = EXCLUDED.break_end_minute,
			is_available = EXCLUDED.is_available,
			updated_at = now()
	`, wa.PracticeID, wa.ProviderID, wa.Weekday, wa.StartMinute, wa.EndMinute,
		wa.BreakStartMinute, wa.BreakEndMinute, wa.IsAvailable)
	return err
}

func (r *ScheduleRepository) BlockedRanges(ctx context.Context, practiceID, providerID string, from, to time.Time) ([]model.BlockedRange, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, practice_id::text, provider_id::text, title, start_time, end_time,
			COALESCE(reason, ''), COALESCE(recurrence, ''), created_at
		FROM provider_blocked_ranges
		WHERE practice_id = $1
			AND provider_id = $2
			AND end_time > $3
			AND start_time < $4
		ORDER BY start_time ASC
	`, practiceID, providerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBlockedRanges(rows)
}

func (r *ScheduleRepository) ListBlockedRanges(ctx context.Context, practiceID, providerID string, from time.Time, limit int) ([]model.BlockedRange, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, practice_id::text, provider_id::text, title, start_time, end_time,
			COALESCE(reason, ''), COALESCE(recurrence, ''), created_at
		FROM provider_blocked_ranges
		WHERE practice_id = $1
			AND provider_id = $2
			AND end_time > $3
		ORDER BY start_time ASC
		LIMIT $4
	`, practiceID, providerID, from, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBlockedRanges(rows)
}

func scanBlockedRanges(rows pgx.Rows) ([]model.BlockedRange, error) {
	var out []model.BlockedRange
	for rows.Next() {
		var b model.BlockedRange
		if err := rows.Scan(
			&b.ID,
			&b.PracticeID,
			&b.ProviderID,
			&b.Title,
			&b.StartTime,
			&b.EndTime,
			&b.Reason,
			&b.Recurrence,
			&b.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *ScheduleRepository) CreateBlockedRange(ctx context.Context, tx pgx.Tx, b *model.BlockedRange) (string, error) {
	id := uuid.NewString()
	_, err := tx.Exec(ctx, `
		INSERT INTO provider_blocked_ranges
			(id, practice_id, provider_id, title, start_time, end_time, reason, recurrence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, b.PracticeID, b.ProviderID, b.Title, b.StartTime, b.EndTime, b.Reason, b.Recurrence)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *ScheduleRepository) GetBlockedRange(ctx context.Context, practiceID, blockID string) (model.BlockedRange, error) {
	var b model.BlockedRange
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, practice_id::text, provider_id::text, title, start_time, end_time,
			COALESCE(reason, ''), COALESCE(recurrence, ''), created_at
		FROM provider_blocked_ranges
		WHERE practice_id = $1 AND id = $2
	`, practiceID, blockID).Scan(
		&b.ID,
		&b.PracticeID,
		&b.ProviderID,
		&b.Title,
		&b.StartTime,
		&b.EndTime,
		&b.Reason,
		&b.Recurrence,
		&b.CreatedAt,
	)
	if err != nil {
		return model.BlockedRange{}, err
	}
	return b, nil
}

func (r *ScheduleRepository) DeleteBlockedRange(ctx context.Context, tx pgx.Tx, practiceID, blockID string) error {
	tag, err := tx.Exec(ctx, `
		DELETE FROM provider_blocked_ranges
		WHERE practice_id = $1 AND id = $2
	`, practiceID, blockID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ScheduleRepository) BookedAppointments(ctx context.Context, practiceID, providerID string, from, to time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, practice_id::text, provider_id::text, start_time, end_time,
			status, cancelled_at, updated_at
		FROM mirrored_appointments
		WHERE practice_id = $1
			AND provider_id = $2
			AND status <> 'cancelled'
			AND start_time < $4
			AND end_time > $3
		ORDER BY start_time ASC
	`, practiceID, providerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		var a model.Appointment
		if err := rows.Scan(
			&a.ID,
			&a.PracticeID,
			&a.ProviderID,
			&a.StartTime,
			&a.EndTime,
			&a.Status,
			&a.CancelledAt,
			&a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// UpsertMirroredAppointment applies a booked event from the booking system.
// Replays overwrite the row, so consuming the same event twice is harmless.
func (r *ScheduleRepository) UpsertMirroredAppointment(ctx context.Context, a model.Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO mirrored_appointments
			(id, practice_id, provider_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			status = EXCLUDED.status,
			updated_at = now()
	`, a.ID, a.PracticeID, a.ProviderID, a.StartTime, a.EndTime, a.Status)
	return err
}

// MarkAppointmentCancelled tolerates unknown appointment ids: a cancel event
// may arrive before we ever saw the booking, and an absent row already does
// not count as busy.
func (r *ScheduleRepository) MarkAppointmentCancelled(ctx context.Context, practiceID, appointmentID string, cancelledAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE mirrored_appointments
		SET status = 'cancelled',
			cancelled_at = $3,
			updated_at = now()
		WHERE practice_id = $1 AND id = $2
	`, practiceID, appointmentID, cancelledAt)
	return err
}

func (r *ScheduleRepository) GetOrCreateProfile(ctx context.Context, practiceID string) (model.PracticeProfile, error) {
	// Create a default profile if missing (keeps dev UX smooth while other services mature).
	_, err := r.pool.Exec(ctx, `
		INSERT INTO practice_profiles (practice_id)
		VALUES ($1)
		ON CONFLICT (practice_id) DO NOTHING
	`, practiceID)
	if err != nil {
		return model.PracticeProfile{}, err
	}

	var p model.PracticeProfile
	err = r.pool.QueryRow(ctx, `
		SELECT practice_id::text, name, timezone
		FROM practice_profiles
		WHERE practice_id = $1
	`, practiceID).Scan(&p.PracticeID, &p.Name, &p.Timezone)
	return p, err
}

func (r *ScheduleRepository) UpdateProfile(ctx context.Context, practiceID, name, timezone string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO practice_profiles (practice_id, name, timezone)
		VALUES ($1, $2, $3)
		ON CONFLICT (practice_id) DO UPDATE
		SET name = EXCLUDED.name,
			timezone = EXCLUDED.timezone,
			updated_at = now()
	`, practiceID, name, timezone)
	return err
}

// PracticeLocation loads the practice's IANA timezone, falling back to UTC
// for missing or unparseable values.
func (r *ScheduleRepository) PracticeLocation(ctx context.Context, practiceID string) (*time.Location, error) {
	p, err := r.GetOrCreateProfile(ctx, practiceID)
	if err != nil {
		return nil, err
	}
	if p.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC, nil
	}
	return loc, nil
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
