// Package attendance keeps each staff member's rolling window of daily
// attendance and the reductions reports are built from.
//
// A window is newest-first, holds at most its configured number of days and
// has no calendar gaps: a day without activity is stored as an explicit
// absent entry.
package attendance

import (
	"fmt"
	"sort"
	"time"

	"frontdesk/internal/clock"
	"frontdesk/internal/domain"
	"frontdesk/internal/models"
)

// DefaultWindowDays is the length of the rolling window.
const DefaultWindowDays = 30

// CheckIn records a check-in at now, filling absent days between the newest
// entry and today. now must be clinic-local.
func CheckIn(rec models.AttendanceRecord, now time.Time, size int) (models.AttendanceRecord, error) {
	if size <= 0 {
		size = DefaultWindowDays
	}
	today := clock.DateOf(now)
	entries := Normalize(rec.PastThirtyDays, size)

	present := models.DayEntry{Date: today, Status: models.StatusPresent, CheckInTime: timePtr(now)}

	if len(entries) > 0 {
		newest := entries[0]
		switch {
		case newest.Date.After(today):
			return rec, fmt.Errorf("check-in on %s precedes recorded day %s: %w", today, newest.Date, domain.ErrInvalidArgument)
		case newest.Date == today && newest.CheckedIn():
			return rec, domain.ErrAlreadyCheckedIn
		case newest.Date == today:
			entries = entries[1:]
		}
	}

	out := make([]models.DayEntry, 0, len(entries)+1)
	out = append(out, present)
	if len(entries) > 0 {
		for d := today.AddDays(-1); d.After(entries[0].Date) && len(out) < size; d = d.AddDays(-1) {
			out = append(out, models.AbsentOn(d))
		}
	}
	out = append(out, entries...)

	rec.PastThirtyDays = truncate(out, size)
	return rec, nil
}

// CheckOut records a check-out at now on today's entry.
func CheckOut(rec models.AttendanceRecord, now time.Time) (models.AttendanceRecord, error) {
	today := clock.DateOf(now)

	entries := cloneEntries(rec.PastThirtyDays)
	idx := -1
	for i, e := range entries {
		if e.Date == today {
			idx = i
			break
		}
	}
	if idx < 0 || !entries[idx].CheckedIn() {
		return rec, domain.ErrNotCheckedIn
	}
	if entries[idx].CheckedOut() {
		return rec, domain.ErrAlreadyCheckedOut
	}
	if now.Before(*entries[idx].CheckInTime) {
		return rec, fmt.Errorf("check-out %s before check-in %s: %w",
			now.Format(time.RFC3339), entries[idx].CheckInTime.Format(time.RFC3339), domain.ErrCheckOutBeforeCheckIn)
	}

	entries[idx].CheckOutTime = timePtr(now)
	rec.PastThirtyDays = entries
	return rec, nil
}

// Normalize returns entries ordered newest first with one entry per date,
// internal gaps filled as absent and at most size entries. When a date
// appears twice the entry with more recorded activity wins.
func Normalize(entries []models.DayEntry, size int) []models.DayEntry {
	if size <= 0 {
		size = DefaultWindowDays
	}
	if len(entries) == 0 {
		return nil
	}

	byDate := make(map[clock.Date]models.DayEntry, len(entries))
	for _, e := range cloneEntries(entries) {
		if e.CheckedIn() {
			e.Status = models.StatusPresent
		} else {
			e.Status = models.StatusAbsent
			e.CheckOutTime = nil
		}
		if prev, ok := byDate[e.Date]; !ok || activity(e) > activity(prev) {
			byDate[e.Date] = e
		}
	}

	dates := make([]clock.Date, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })

	out := make([]models.DayEntry, 0, len(dates))
	for d := dates[0]; len(out) < size && !d.Before(dates[len(dates)-1]); d = d.AddDays(-1) {
		if e, ok := byDate[d]; ok {
			out = append(out, e)
		} else {
			out = append(out, models.AbsentOn(d))
		}
	}
	return out
}

// View returns the window as it reads on today: absent days between the
// newest entry and today are materialized without being persisted.
func View(rec models.AttendanceRecord, today clock.Date, size int) models.AttendanceRecord {
	if size <= 0 {
		size = DefaultWindowDays
	}
	entries := Normalize(rec.PastThirtyDays, size)
	if len(entries) == 0 || !entries[0].Date.Before(today) {
		rec.PastThirtyDays = entries
		return rec
	}

	var filled []models.DayEntry
	for d := today; d.After(entries[0].Date) && len(filled) < size; d = d.AddDays(-1) {
		filled = append(filled, models.AbsentOn(d))
	}
	rec.PastThirtyDays = truncate(append(filled, entries...), size)
	return rec
}

func activity(e models.DayEntry) int {
	n := 0
	if e.CheckedIn() {
		n++
	}
	if e.CheckedOut() {
		n++
	}
	return n
}

func truncate(entries []models.DayEntry, size int) []models.DayEntry {
	if size > 0 && len(entries) > size {
		return entries[:size]
	}
	return entries
}

func cloneEntries(entries []models.DayEntry) []models.DayEntry {
	out := make([]models.DayEntry, len(entries))
	for i, e := range entries {
		if e.CheckInTime != nil {
			e.CheckInTime = timePtr(*e.CheckInTime)
		}
		if e.CheckOutTime != nil {
			e.CheckOutTime = timePtr(*e.CheckOutTime)
		}
		out[i] = e
	}
	return out
}

func timePtr(t time.Time) *time.Time {
	return &t
}
