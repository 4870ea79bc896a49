package models

import (
	"time"

	"frontdesk/internal/clock"
)

// AttendanceStatus marks a day as worked or not.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
)

// Staff identifies a staff member.
type Staff struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DayEntry is one calendar day of a staff member's attendance.
type DayEntry struct {
	Date         clock.Date       `json:"date"`
	Status       AttendanceStatus `json:"status"`
	CheckInTime  *time.Time       `json:"check_in_time"`
	CheckOutTime *time.Time       `json:"check_out_time"`
}

// AbsentOn returns the materialized entry for a day without activity.
func AbsentOn(d clock.Date) DayEntry {
	return DayEntry{Date: d, Status: StatusAbsent}
}

// CheckedIn reports whether a check-in was recorded for the day.
func (e DayEntry) CheckedIn() bool { return e.CheckInTime != nil }

// CheckedOut reports whether a check-out was recorded for the day.
func (e DayEntry) CheckedOut() bool { return e.CheckOutTime != nil }

// AttendanceRecord is a staff member's rolling window, newest entry first.
type AttendanceRecord struct {
	StaffID        string     `json:"staff_id"`
	StaffName      string     `json:"staff_name"`
	PastThirtyDays []DayEntry `json:"past_thirty_days"`
}

// Newest returns the most recent entry, if any.
func (r *AttendanceRecord) Newest() (DayEntry, bool) {
	if len(r.PastThirtyDays) == 0 {
		return DayEntry{}, false
	}
	return r.PastThirtyDays[0], true
}

// Entry returns the entry for day d, if present.
func (r *AttendanceRecord) Entry(d clock.Date) (DayEntry, bool) {
	for _, e := range r.PastThirtyDays {
		if e.Date == d {
			return e, true
		}
	}
	return DayEntry{}, false
}
