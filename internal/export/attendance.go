// Package export renders attendance windows as spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"frontdesk/internal/attendance"
	"frontdesk/internal/models"
)

const (
	AttendanceSheet = "Attendance"
	SummarySheet    = "Summary"
)

var (
	attendanceColumns = []string{"staff_id", "staff_name", "date", "status", "check_in", "check_out", "minutes"}
	summaryColumns    = []string{"staff_id", "staff_name", "present_days", "absent_days", "time_spent", "total_minutes", "average_check_in", "average_check_out"}
)

// Filename names an attendance export of clinicID over w.
func Filename(clinicID string, w attendance.Window) string {
	return fmt.Sprintf("attendance_%s_%s_%s.xlsx", clinicID, w.From, w.To)
}

// WriteAttendance writes one row per staff-day in w followed by a per-staff
// summary sheet.
func WriteAttendance(sw SheetWriter, records []models.AttendanceRecord, w attendance.Window, opts attendance.SummaryOptions) error {
	if err := sw.AddSheet(AttendanceSheet); err != nil {
		return err
	}
	if err := sw.WriteHeader(attendanceColumns); err != nil {
		return err
	}
	for _, rec := range records {
		// Windows are stored newest first; the sheet reads oldest first.
		for i := len(rec.PastThirtyDays) - 1; i >= 0; i-- {
			e := rec.PastThirtyDays[i]
			if !w.Contains(e.Date) {
				continue
			}
			minutes, err := attendance.MinutesSpent(e)
			if err != nil {
				return fmt.Errorf("staff %s: %s: %w", rec.StaffID, e.Date, err)
			}
			row := []any{rec.StaffID, rec.StaffName, e.Date.String(), string(e.Status), clockTime(e.CheckInTime), clockTime(e.CheckOutTime), minutes}
			if err := sw.WriteRow(row); err != nil {
				return fmt.Errorf("write row: %w", err)
			}
		}
	}

	if err := sw.AddSheet(SummarySheet); err != nil {
		return err
	}
	if err := sw.WriteHeader(summaryColumns); err != nil {
		return err
	}
	for _, rec := range records {
		sum, err := attendance.Summarize(rec.PastThirtyDays, w, opts)
		if err != nil {
			return fmt.Errorf("staff %s: %w", rec.StaffID, err)
		}
		row := []any{
			rec.StaffID, rec.StaffName,
			sum.PresentDays, sum.AbsentDays,
			sum.Spent.String(), sum.Spent.TotalMinutes,
			optionalTime(sum.AverageCheckIn), optionalTime(sum.AverageCheckOut),
		}
		if err := sw.WriteRow(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	return nil
}

// AttendanceWorkbook renders records into an xlsx file on out.
func AttendanceWorkbook(out io.Writer, records []models.AttendanceRecord, w attendance.Window, opts attendance.SummaryOptions) error {
	sw := NewExcelizeWriter()
	defer sw.Close()

	if err := WriteAttendance(sw, records, w, opts); err != nil {
		return err
	}
	if err := sw.Save(out); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func clockTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("15:04")
}

func optionalTime(t *attendance.TimeOfDay) string {
	if t == nil {
		return ""
	}
	return t.String()
}
