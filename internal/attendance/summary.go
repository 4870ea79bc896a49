package attendance

import (
	"fmt"
	"time"

	"frontdesk/internal/clock"
	"frontdesk/internal/domain"
	"frontdesk/internal/models"
)

// Window is an inclusive range of calendar days.
type Window struct {
	From clock.Date `json:"from"`
	To   clock.Date `json:"to"`
}

// Today is the one-day window of today.
func Today(today clock.Date) Window {
	return Window{From: today, To: today}
}

// LastDays is the n days ending with today.
func LastDays(today clock.Date, n int) Window {
	if n < 1 {
		n = 1
	}
	return Window{From: today.AddDays(-(n - 1)), To: today}
}

// Between is the explicit range from..to.
func Between(from, to clock.Date) (Window, error) {
	if to.Before(from) {
		return Window{}, fmt.Errorf("range %s..%s: %w", from, to, domain.ErrInvalidArgument)
	}
	return Window{From: from, To: to}, nil
}

// Contains reports whether d lies in w.
func (w Window) Contains(d clock.Date) bool {
	return !d.Before(w.From) && !d.After(w.To)
}

// Days is the number of calendar days in w.
func (w Window) Days() int {
	return clock.DaysBetween(w.From, w.To) + 1
}

// TimeOfDay is a wall-clock time in minutes after midnight.
type TimeOfDay int

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// MarshalText encodes t as HH:MM.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses HH:MM.
func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := time.Parse("15:04", string(b))
	if err != nil {
		return fmt.Errorf("time of day %q: %w", b, domain.ErrInvalidArgument)
	}
	*t = timeOfDay(parsed)
	return nil
}

func timeOfDay(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

// Spent is a duration in whole minutes with its hour/minute split.
type Spent struct {
	TotalMinutes int `json:"total_minutes"`
	Hours        int `json:"hours"`
	Minutes      int `json:"minutes"`
}

// SplitMinutes turns whole minutes into a Spent.
func SplitMinutes(total int) Spent {
	return Spent{TotalMinutes: total, Hours: total / 60, Minutes: total % 60}
}

func (s Spent) String() string {
	return fmt.Sprintf("%dh%02dm", s.Hours, s.Minutes)
}

// MinutesSpent returns the whole minutes between check-in and check-out,
// zero when either is missing.
func MinutesSpent(e models.DayEntry) (int, error) {
	if !e.CheckedIn() || !e.CheckedOut() {
		return 0, nil
	}
	return minutesBetween(*e.CheckInTime, *e.CheckOutTime)
}

func minutesBetween(in, out time.Time) (int, error) {
	if out.Before(in) {
		return 0, fmt.Errorf("check-out %s before check-in %s: %w",
			out.Format(time.RFC3339), in.Format(time.RFC3339), domain.ErrCheckOutBeforeCheckIn)
	}
	return int(out.Sub(in) / time.Minute), nil
}

// SummaryOptions tune Summarize.
type SummaryOptions struct {
	// OngoingAsOf, when set, counts a check-in without check-out on that
	// instant's day as running until that instant. Otherwise such a day
	// contributes zero minutes.
	OngoingAsOf *time.Time
}

// Summary reduces a window of day entries.
type Summary struct {
	Window          Window     `json:"window"`
	PresentDays     int        `json:"present_days"`
	AbsentDays      int        `json:"absent_days"`
	Spent           Spent      `json:"spent"`
	AverageCheckIn  *TimeOfDay `json:"average_check_in"`
	AverageCheckOut *TimeOfDay `json:"average_check_out"`
	Ongoing         bool       `json:"ongoing"`
}

// StaffSummary is a Summary labelled with the staff member it covers.
type StaffSummary struct {
	StaffID   string `json:"staff_id"`
	StaffName string `json:"staff_name"`
	Summary
}

// Summarize reduces the entries that fall in w. Days the window covers but
// the entries do not are not counted either way.
func Summarize(entries []models.DayEntry, w Window, opts SummaryOptions) (Summary, error) {
	sum := Summary{Window: w}
	var (
		inTotal, inCount   int
		outTotal, outCount int
		minutes            int
	)

	for _, e := range entries {
		if !w.Contains(e.Date) {
			continue
		}
		if !e.CheckedIn() {
			sum.AbsentDays++
			continue
		}
		sum.PresentDays++
		inTotal += int(timeOfDay(*e.CheckInTime))
		inCount++

		if e.CheckedOut() {
			outTotal += int(timeOfDay(*e.CheckOutTime))
			outCount++
			m, err := MinutesSpent(e)
			if err != nil {
				return Summary{}, fmt.Errorf("%s: %w", e.Date, err)
			}
			minutes += m
			continue
		}

		if opts.OngoingAsOf != nil && clock.SameDay(*opts.OngoingAsOf, *e.CheckInTime) {
			m, err := minutesBetween(*e.CheckInTime, *opts.OngoingAsOf)
			if err != nil {
				return Summary{}, fmt.Errorf("%s: %w", e.Date, err)
			}
			minutes += m
			sum.Ongoing = true
		}
	}

	sum.Spent = SplitMinutes(minutes)
	if inCount > 0 {
		avg := TimeOfDay(inTotal / inCount)
		sum.AverageCheckIn = &avg
	}
	if outCount > 0 {
		avg := TimeOfDay(outTotal / outCount)
		sum.AverageCheckOut = &avg
	}
	return sum, nil
}
