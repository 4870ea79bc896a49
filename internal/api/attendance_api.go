package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"frontdesk/internal/attendance"
	"frontdesk/internal/clock"
	"frontdesk/internal/export"
	"frontdesk/internal/metrics"
	"frontdesk/internal/models"
)

// CheckInRequest is the optional body of a check-in.
type CheckInRequest struct {
	Name string `json:"name"`
}

// SummaryResponse reports one staff member's totals over a window.
type SummaryResponse = attendance.StaffSummary

// ClinicAttendanceResponse lists every staff window of a clinic.
type ClinicAttendanceResponse struct {
	ClinicID string                    `json:"clinic_id"`
	Date     clock.Date                `json:"date"`
	Records  []models.AttendanceRecord `json:"records"`
}

// POST /api/v1/clinics/{clinic}/staff/{staff}/check-in
func (s *HTTPServer) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("check_in")
	clinicID, now, ok := s.clinicNow(w, r)
	if !ok {
		return
	}

	var req CheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	staff := models.Staff{ID: r.PathValue("staff"), Name: req.Name}
	rec, err := s.deps.Attendance.CheckIn(r.Context(), clinicID, staff, now)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// POST /api/v1/clinics/{clinic}/staff/{staff}/check-out
func (s *HTTPServer) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("check_out")
	clinicID, now, ok := s.clinicNow(w, r)
	if !ok {
		return
	}

	rec, err := s.deps.Attendance.CheckOut(r.Context(), clinicID, r.PathValue("staff"), now)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GET /api/v1/clinics/{clinic}/staff/{staff}/attendance
func (s *HTTPServer) handleStaffAttendance(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("staff_attendance")
	clinicID, now, ok := s.clinicNow(w, r)
	if !ok {
		return
	}

	rec, err := s.deps.Attendance.Record(r.Context(), clinicID, r.PathValue("staff"), clock.DateOf(now))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GET /api/v1/clinics/{clinic}/staff/{staff}/attendance/summary?period=today|7d|30d
// or ?from=YYYY-MM-DD&to=YYYY-MM-DD, plus ongoing=true to count an open day.
func (s *HTTPServer) handleStaffSummary(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("staff_summary")
	clinicID, now, ok := s.clinicNow(w, r)
	if !ok {
		return
	}

	today := clock.DateOf(now)
	window, opts, err := s.summaryParams(r, today, now)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sum, err := s.deps.Attendance.Summary(r.Context(), clinicID, r.PathValue("staff"), today, window, opts)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// GET /api/v1/clinics/{clinic}/attendance
func (s *HTTPServer) handleClinicAttendance(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("clinic_attendance")
	clinicID, now, ok := s.clinicNow(w, r)
	if !ok {
		return
	}

	today := clock.DateOf(now)
	recs, err := s.deps.Attendance.List(r.Context(), clinicID, today)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if recs == nil {
		recs = []models.AttendanceRecord{}
	}
	writeJSON(w, http.StatusOK, ClinicAttendanceResponse{ClinicID: clinicID, Date: today, Records: recs})
}

// GET /api/v1/clinics/{clinic}/attendance.xlsx accepts the summary query.
func (s *HTTPServer) handleAttendanceExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("attendance_export")
	clinicID, now, ok := s.clinicNow(w, r)
	if !ok {
		return
	}

	today := clock.DateOf(now)
	window, opts, err := s.summaryParams(r, today, now)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	recs, err := s.deps.Attendance.List(r.Context(), clinicID, today)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(clinicID, window)))
	if err := export.AttendanceWorkbook(w, recs, window, opts); err != nil {
		// Headers are already out; all that is left is to log.
		s.logger.Error().Err(err).Str("clinic_id", clinicID).Msg("attendance export failed")
	}
}

// summaryParams reads the reporting window and ongoing flag. The default
// window is the full attendance window ending today.
func (s *HTTPServer) summaryParams(r *http.Request, today clock.Date, now time.Time) (attendance.Window, attendance.SummaryOptions, error) {
	q := r.URL.Query()
	var opts attendance.SummaryOptions
	if q.Get("ongoing") == "true" {
		opts.OngoingAsOf = &now
	}

	from, to := q.Get("from"), q.Get("to")
	if from != "" || to != "" {
		if from == "" || to == "" {
			return attendance.Window{}, opts, fmt.Errorf("from and to are required together")
		}
		f, err := clock.ParseDate(from)
		if err != nil {
			return attendance.Window{}, opts, fmt.Errorf("invalid from format; expected YYYY-MM-DD")
		}
		t, err := clock.ParseDate(to)
		if err != nil {
			return attendance.Window{}, opts, fmt.Errorf("invalid to format; expected YYYY-MM-DD")
		}
		w, err := attendance.Between(f, t)
		if err != nil {
			return attendance.Window{}, opts, fmt.Errorf("from must be before or equal to to")
		}
		return w, opts, nil
	}

	switch q.Get("period") {
	case "today":
		return attendance.Today(today), opts, nil
	case "7d":
		return attendance.LastDays(today, 7), opts, nil
	case "30d":
		return attendance.LastDays(today, 30), opts, nil
	case "":
		return attendance.LastDays(today, s.deps.Attendance.WindowDays()), opts, nil
	default:
		return attendance.Window{}, opts, fmt.Errorf("period must be today, 7d or 30d")
	}
}
