package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"frontdesk/internal/clock"
	"frontdesk/internal/metrics"
	"frontdesk/internal/models"
	"frontdesk/internal/visit"
)

// TokenResponse is the response for POST /tokens.
type TokenResponse struct {
	ClinicID string     `json:"clinic_id"`
	Token    int        `json:"token"`
	Date     clock.Date `json:"date"`
}

// CurrentTokenResponse reports the last number handed out.
type CurrentTokenResponse struct {
	ClinicID       string      `json:"clinic_id"`
	CurrentValue   int         `json:"current_value"`
	LastIssuedDate *clock.Date `json:"last_issued_date"`
}

// QueueResponse is the ranked queue of a clinic's current day.
type QueueResponse struct {
	ClinicID string         `json:"clinic_id"`
	Date     clock.Date     `json:"date"`
	DoctorID string         `json:"doctor_id,omitempty"`
	Visits   []models.Visit `json:"visits"`
}

// POST /api/v1/clinics/{clinic}/tokens
func (s *HTTPServer) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("issue_token")
	clinicID, now, ok := s.clinicNow(w, r)
	if !ok {
		return
	}

	today := clock.DateOf(now)
	tok, err := s.deps.Tokens.Issue(r.Context(), clinicID, today)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, TokenResponse{ClinicID: clinicID, Token: tok, Date: today})
}

// GET /api/v1/clinics/{clinic}/tokens/current
func (s *HTTPServer) handleCurrentToken(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("current_token")
	clinicID, now, ok := s.clinicNow(w, r)
	if !ok {
		return
	}

	tok, found, err := s.deps.Tokens.Current(r.Context(), clinicID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	resp := CurrentTokenResponse{ClinicID: clinicID}
	// A counter from an earlier day restarts at 1 on the next issue.
	if found && tok.LastIssuedDate == clock.DateOf(now) {
		resp.CurrentValue = tok.CurrentValue
		resp.LastIssuedDate = &tok.LastIssuedDate
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /api/v1/clinics/{clinic}/visits
func (s *HTTPServer) handleRegisterVisit(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("register_visit")
	clinicID, now, ok := s.clinicNow(w, r)
	if !ok {
		return
	}

	var req visit.NewVisit
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ClinicID != "" && req.ClinicID != clinicID {
		writeError(w, http.StatusBadRequest, "clinic_id does not match path")
		return
	}
	req.ClinicID = clinicID

	v, err := s.deps.Visits.Register(r.Context(), req, now)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// GET /api/v1/clinics/{clinic}/visits?doctor=ID
func (s *HTTPServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("queue")
	clinicID, now, ok := s.clinicNow(w, r)
	if !ok {
		return
	}

	doctorID := r.URL.Query().Get("doctor")
	today := clock.DateOf(now)
	visits, err := s.deps.Visits.Queue(r.Context(), clinicID, doctorID, today)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if visits == nil {
		visits = []models.Visit{}
	}
	writeJSON(w, http.StatusOK, QueueResponse{ClinicID: clinicID, Date: today, DoctorID: doctorID, Visits: visits})
}

// GET /api/v1/clinics/{clinic}/visits/{visit}
func (s *HTTPServer) handleGetVisit(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_visit")
	clinicID, _, ok := s.clinicNow(w, r)
	if !ok {
		return
	}

	v, err := s.deps.Visits.Get(r.Context(), clinicID, r.PathValue("visit"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// POST /api/v1/clinics/{clinic}/visits/{visit}/actions/{action}
func (s *HTTPServer) handleVisitAction(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("visit_action")
	clinicID, now, ok := s.clinicNow(w, r)
	if !ok {
		return
	}

	action := visit.Action(r.PathValue("action"))
	if !action.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", action))
		return
	}

	v, err := s.deps.Visits.Apply(r.Context(), clinicID, r.PathValue("visit"), action, now)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
