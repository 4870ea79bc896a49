// Package api exposes the front-desk core over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"frontdesk/internal/attendance"
	"frontdesk/internal/clinic"
	"frontdesk/internal/clock"
	"frontdesk/internal/config"
	"frontdesk/internal/domain"
	"frontdesk/internal/events"
	"frontdesk/internal/models"
	"frontdesk/internal/visit"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Tokens issues and reports daily queue numbers.
type Tokens interface {
	Issue(ctx context.Context, clinicID string, today clock.Date) (int, error)
	Current(ctx context.Context, clinicID string) (models.DailyToken, bool, error)
}

// Visits registers patients and moves them through the visit lifecycle.
type Visits interface {
	Register(ctx context.Context, in visit.NewVisit, now time.Time) (models.Visit, error)
	Apply(ctx context.Context, clinicID, visitID string, action visit.Action, at time.Time) (models.Visit, error)
	Get(ctx context.Context, clinicID, visitID string) (models.Visit, error)
	Queue(ctx context.Context, clinicID, doctorID string, today clock.Date) ([]models.Visit, error)
}

// Attendance records staff check-ins and reads their windows back.
type Attendance interface {
	CheckIn(ctx context.Context, clinicID string, staff models.Staff, now time.Time) (models.AttendanceRecord, error)
	CheckOut(ctx context.Context, clinicID, staffID string, now time.Time) (models.AttendanceRecord, error)
	Record(ctx context.Context, clinicID, staffID string, today clock.Date) (models.AttendanceRecord, error)
	List(ctx context.Context, clinicID string, today clock.Date) ([]models.AttendanceRecord, error)
	Summary(ctx context.Context, clinicID, staffID string, today clock.Date, w attendance.Window, opts attendance.SummaryOptions) (attendance.StaffSummary, error)
	WindowDays() int
}

// Clinics resolves clinic ids and their local time.
type Clinics interface {
	Get(id string) (clinic.Clinic, error)
	List() []clinic.Clinic
	Now(id string) (time.Time, error)
}

// Subscriber registers listeners for clinic events.
type Subscriber interface {
	Subscribe(clinicID string, handler events.Handler) events.Subscription
	Unsubscribe(sub events.Subscription) bool
}

// Deps are the services the HTTP layer drives.
type Deps struct {
	Tokens     Tokens
	Visits     Visits
	Attendance Attendance
	Clinics    Clinics
	Events     Subscriber
}

// HTTPServer serves the JSON API and the per-clinic event stream.
type HTTPServer struct {
	deps            Deps
	server          *http.Server
	limiter         *rate.Limiter
	shutdownTimeout time.Duration
	heartbeat       time.Duration
	logger          zerolog.Logger
}

// NewHTTPServer builds the server. A non-positive rate disables limiting.
func NewHTTPServer(cfg config.ServerConfig, deps Deps, logger zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		deps:            deps,
		shutdownTimeout: cfg.ShutdownTimeout(),
		heartbeat:       15 * time.Second,
		logger:          logger.With().Str("component", "api").Logger(),
	}
	if cfg.RateLimitPerSec > 0 {
		burst := cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), burst)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/clinics", s.handleClinics)
	mux.HandleFunc("POST /api/v1/clinics/{clinic}/tokens", s.handleIssueToken)
	mux.HandleFunc("GET /api/v1/clinics/{clinic}/tokens/current", s.handleCurrentToken)
	mux.HandleFunc("POST /api/v1/clinics/{clinic}/visits", s.handleRegisterVisit)
	mux.HandleFunc("GET /api/v1/clinics/{clinic}/visits", s.handleQueue)
	mux.HandleFunc("GET /api/v1/clinics/{clinic}/visits/{visit}", s.handleGetVisit)
	mux.HandleFunc("POST /api/v1/clinics/{clinic}/visits/{visit}/actions/{action}", s.handleVisitAction)
	mux.HandleFunc("POST /api/v1/clinics/{clinic}/staff/{staff}/check-in", s.handleCheckIn)
	mux.HandleFunc("POST /api/v1/clinics/{clinic}/staff/{staff}/check-out", s.handleCheckOut)
	mux.HandleFunc("GET /api/v1/clinics/{clinic}/staff/{staff}/attendance", s.handleStaffAttendance)
	mux.HandleFunc("GET /api/v1/clinics/{clinic}/staff/{staff}/attendance/summary", s.handleStaffSummary)
	mux.HandleFunc("GET /api/v1/clinics/{clinic}/attendance", s.handleClinicAttendance)
	mux.HandleFunc("GET /api/v1/clinics/{clinic}/attendance.xlsx", s.handleAttendanceExport)
	mux.HandleFunc("GET /api/v1/clinics/{clinic}/events", s.handleEvents)

	s.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.rateLimit(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler, rate limiting included.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(ctxShutdown); err != nil {
			s.logger.Error().Err(err).Msg("api shutdown")
		}
	}()

	s.logger.Info().Str("addr", s.server.Addr).Msg("api server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error         string `json:"error"`
	Informational bool   `json:"informational,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps core errors onto HTTP statuses. Informational
// outcomes are conflicts the client may show as a notice rather than a
// failure.
func (s *HTTPServer) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Informational: domain.IsInformational(err)})
}

func statusFor(err error) int {
	switch {
	case domain.IsInformational(err):
		return http.StatusConflict
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrIllegalTransition),
		errors.Is(err, domain.ErrNotCheckedIn),
		errors.Is(err, domain.ErrCheckOutBeforeCheckIn),
		errors.Is(err, domain.ErrConcurrentUpdateConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStoreUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// clinicNow resolves the path's clinic and its local time, answering the
// request itself when the clinic is unknown.
func (s *HTTPServer) clinicNow(w http.ResponseWriter, r *http.Request) (string, time.Time, bool) {
	clinicID := r.PathValue("clinic")
	now, err := s.deps.Clinics.Now(clinicID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return "", time.Time{}, false
	}
	return clinicID, now, true
}

// GET /api/v1/clinics
func (s *HTTPServer) handleClinics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"clinics": s.deps.Clinics.List()})
}
