package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"frontdesk/internal/clock"
	"frontdesk/internal/domain"
	"frontdesk/internal/events"
	"frontdesk/internal/metrics"
	"frontdesk/internal/models"
	"frontdesk/internal/store"

	"github.com/rs/zerolog"
)

// Tracker persists attendance windows, one record per clinic and staff member.
type Tracker struct {
	store      store.Store
	publisher  events.Publisher
	windowDays int
	attempts   int
	logger     zerolog.Logger
}

func NewTracker(s store.Store, publisher events.Publisher, windowDays, attempts int, logger zerolog.Logger) *Tracker {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return &Tracker{
		store:      s,
		publisher:  publisher,
		windowDays: windowDays,
		attempts:   attempts,
		logger:     logger.With().Str("component", "attendance").Logger(),
	}
}

// WindowDays is the configured window length.
func (t *Tracker) WindowDays() int { return t.windowDays }

func recordKey(clinicID, staffID string) store.Key {
	return store.Key{ClinicID: clinicID, Kind: store.KindAttendance, ID: staffID}
}

// CheckIn records staff's check-in at now, clinic-local.
func (t *Tracker) CheckIn(ctx context.Context, clinicID string, staff models.Staff, now time.Time) (models.AttendanceRecord, error) {
	if strings.TrimSpace(staff.ID) == "" {
		return models.AttendanceRecord{}, fmt.Errorf("staff id: %w", domain.ErrInvalidArgument)
	}

	rec, err := store.UpdateJSON(ctx, t.store, recordKey(clinicID, staff.ID), t.attempts, func(cur *models.AttendanceRecord, found bool) error {
		if !found {
			cur.StaffID = staff.ID
		}
		if staff.Name != "" {
			cur.StaffName = staff.Name
		}
		next, err := CheckIn(*cur, now, t.windowDays)
		if err != nil {
			return err
		}
		*cur = next
		return nil
	})
	t.observe("check_in", clinicID, staff.ID, err)
	if err != nil {
		return models.AttendanceRecord{}, err
	}

	t.publisher.Publish(clinicID, events.AttendanceChanged)
	return rec, nil
}

// CheckOut records staff's check-out at now, clinic-local.
func (t *Tracker) CheckOut(ctx context.Context, clinicID, staffID string, now time.Time) (models.AttendanceRecord, error) {
	rec, err := store.UpdateJSON(ctx, t.store, recordKey(clinicID, staffID), t.attempts, func(cur *models.AttendanceRecord, found bool) error {
		if !found {
			return domain.ErrNotCheckedIn
		}
		next, err := CheckOut(*cur, now)
		if err != nil {
			return err
		}
		*cur = next
		return nil
	})
	t.observe("check_out", clinicID, staffID, err)
	if err != nil {
		return models.AttendanceRecord{}, err
	}

	t.publisher.Publish(clinicID, events.AttendanceChanged)
	return rec, nil
}

func (t *Tracker) observe(event, clinicID, staffID string, err error) {
	metrics.IncAttendanceEvent(event, attendanceResult(err))

	switch {
	case err == nil:
		t.logger.Info().Str("clinic_id", clinicID).Str("staff_id", staffID).Str("event", event).Msg("attendance recorded")
	case domain.IsInformational(err), errors.Is(err, domain.ErrNotCheckedIn):
		t.logger.Debug().Err(err).Str("clinic_id", clinicID).Str("staff_id", staffID).Str("event", event).Msg("attendance unchanged")
	default:
		t.logger.Error().Err(err).Str("clinic_id", clinicID).Str("staff_id", staffID).Str("event", event).Msg("attendance write failed")
	}
}

func attendanceResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrAlreadyCheckedIn), errors.Is(err, domain.ErrAlreadyCheckedOut):
		return "already"
	case errors.Is(err, domain.ErrNotCheckedIn):
		return "not_checked_in"
	case errors.Is(err, domain.ErrCheckOutBeforeCheckIn):
		return "invalid"
	default:
		return "error"
	}
}

// Record returns staff's window as of today with absent days up to today
// materialized.
func (t *Tracker) Record(ctx context.Context, clinicID, staffID string, today clock.Date) (models.AttendanceRecord, error) {
	rec, _, err := store.GetJSON[models.AttendanceRecord](ctx, t.store, recordKey(clinicID, staffID))
	if err != nil {
		return models.AttendanceRecord{}, err
	}
	return View(rec, today, t.windowDays), nil
}

// List returns every staff window of a clinic as of today.
func (t *Tracker) List(ctx context.Context, clinicID string, today clock.Date) ([]models.AttendanceRecord, error) {
	recs, err := store.ListJSON[models.AttendanceRecord](ctx, t.store, clinicID, store.KindAttendance)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		recs[i] = View(recs[i], today, t.windowDays)
	}
	return recs, nil
}

// Summary reduces staff's window over w.
func (t *Tracker) Summary(ctx context.Context, clinicID, staffID string, today clock.Date, w Window, opts SummaryOptions) (StaffSummary, error) {
	rec, err := t.Record(ctx, clinicID, staffID, today)
	if err != nil {
		return StaffSummary{}, err
	}
	sum, err := Summarize(rec.PastThirtyDays, w, opts)
	if err != nil {
		return StaffSummary{}, err
	}
	return StaffSummary{StaffID: rec.StaffID, StaffName: rec.StaffName, Summary: sum}, nil
}
