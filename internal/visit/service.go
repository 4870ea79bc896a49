package visit

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

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TokenIssuer hands out the next queue number for a clinic and day.
type TokenIssuer interface {
	Issue(ctx context.Context, clinicID string, today clock.Date) (int, error)
}

// NewVisit is the front-desk submission for an arriving patient.
type NewVisit struct {
	ClinicID  string `json:"clinic_id"`
	DoctorID  string `json:"doctor_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	DOB       string `json:"dob"`
}

// Validate checks required fields and the date-of-birth format.
func (n NewVisit) Validate() error {
	var problems []string
	if strings.TrimSpace(n.ClinicID) == "" {
		problems = append(problems, "clinic_id is required")
	}
	if strings.TrimSpace(n.FirstName) == "" && strings.TrimSpace(n.LastName) == "" {
		problems = append(problems, "first_name or last_name is required")
	}
	if n.DOB != "" {
		if _, err := clock.ParseDate(n.DOB); err != nil {
			problems = append(problems, "dob must be YYYY-MM-DD")
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidArgument, strings.Join(problems, "; "))
	}
	return nil
}

// Service persists visits and announces every change.
type Service struct {
	store     store.Store
	tokens    TokenIssuer
	publisher events.Publisher
	attempts  int
	logger    zerolog.Logger
	newID     func() string
}

func NewService(s store.Store, tokens TokenIssuer, publisher events.Publisher, attempts int, logger zerolog.Logger) *Service {
	return &Service{
		store:     s,
		tokens:    tokens,
		publisher: publisher,
		attempts:  attempts,
		logger:    logger.With().Str("component", "visit_service").Logger(),
		newID:     uuid.NewString,
	}
}

func visitKey(clinicID, visitID string) store.Key {
	return store.Key{ClinicID: clinicID, Kind: store.KindVisit, ID: visitID}
}

// Register issues a token and creates the visit in the Arrived state. now
// must already be in the clinic's time zone.
func (s *Service) Register(ctx context.Context, in NewVisit, now time.Time) (models.Visit, error) {
	if err := in.Validate(); err != nil {
		return models.Visit{}, err
	}

	tok, err := s.tokens.Issue(ctx, in.ClinicID, clock.DateOf(now))
	if err != nil {
		return models.Visit{}, err
	}

	v := models.Visit{
		ID:          s.newID(),
		ClinicID:    in.ClinicID,
		DoctorID:    in.DoctorID,
		Token:       tok,
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		DOB:         in.DOB,
		ArrivalTime: now,
		State:       models.VisitArrived,
	}

	_, err = store.UpdateJSON(ctx, s.store, visitKey(v.ClinicID, v.ID), 1, func(cur *models.Visit, found bool) error {
		if found {
			return fmt.Errorf("visit %s: %w", v.ID, domain.ErrConcurrentUpdateConflict)
		}
		*cur = v
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("clinic_id", v.ClinicID).Int("token", tok).Msg("register visit failed")
		return models.Visit{}, err
	}

	s.logger.Info().
		Str("clinic_id", v.ClinicID).
		Str("visit_id", v.ID).
		Str("patient", v.FullName()).
		Int("token", v.Token).
		Msg("visit registered")
	s.publisher.Publish(v.ClinicID, events.VisitChanged)
	return v, nil
}

// Apply runs action against the stored visit as one conditional write.
func (s *Service) Apply(ctx context.Context, clinicID, visitID string, action Action, at time.Time) (models.Visit, error) {
	if !action.Valid() {
		return models.Visit{}, fmt.Errorf("action %q: %w", action, domain.ErrInvalidArgument)
	}

	v, err := store.UpdateJSON(ctx, s.store, visitKey(clinicID, visitID), s.attempts, func(cur *models.Visit, found bool) error {
		if !found {
			return fmt.Errorf("visit %s: %w", visitID, domain.ErrNotFound)
		}
		next, err := Transition(*cur, action, at)
		if err != nil {
			return err
		}
		*cur = next
		return nil
	})
	metrics.IncVisitTransition(string(action), transitionResult(err))
	if err != nil {
		ev := s.logger.Warn()
		if domain.IsInformational(err) {
			ev = s.logger.Debug()
		}
		ev.Err(err).Str("clinic_id", clinicID).Str("visit_id", visitID).Str("action", string(action)).Msg("visit action rejected")
		return models.Visit{}, err
	}

	s.logger.Info().
		Str("clinic_id", clinicID).
		Str("visit_id", visitID).
		Str("action", string(action)).
		Str("state", string(v.State)).
		Msg("visit updated")
	s.publisher.Publish(clinicID, events.VisitChanged)
	return v, nil
}

func transitionResult(err error) string {
	var te *TransitionError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &te):
		return "illegal"
	case domain.IsInformational(err):
		return "already_exited"
	case domain.IsNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}

// Get loads one visit.
func (s *Service) Get(ctx context.Context, clinicID, visitID string) (models.Visit, error) {
	v, _, err := store.GetJSON[models.Visit](ctx, s.store, visitKey(clinicID, visitID))
	return v, err
}

// List returns every stored visit of a clinic, in id order.
func (s *Service) List(ctx context.Context, clinicID string) ([]models.Visit, error) {
	return store.ListJSON[models.Visit](ctx, s.store, clinicID, store.KindVisit)
}

// Queue returns the ranked active visits of today, optionally for one doctor.
func (s *Service) Queue(ctx context.Context, clinicID, doctorID string, today clock.Date) ([]models.Visit, error) {
	all, err := s.List(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	return Rank(ForDoctor(ActiveOn(all, today), doctorID)), nil
}
