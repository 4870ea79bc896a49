// Package token issues per-clinic daily queue numbers.
package token

import (
	"context"
	"fmt"

	"frontdesk/internal/clock"
	"frontdesk/internal/domain"
	"frontdesk/internal/metrics"
	"frontdesk/internal/models"
	"frontdesk/internal/store"

	"github.com/rs/zerolog"
)

// Issuer hands out strictly increasing tokens per clinic and calendar day.
//
// Callers in the same process queue on a per-clinic lock; callers in other
// processes are kept apart by the store's compare-and-swap, so a value is
// never handed out twice for the same clinic and day.
type Issuer struct {
	store    store.Store
	locks    store.KeyedMutex
	attempts int
	logger   zerolog.Logger
}

func NewIssuer(s store.Store, attempts int, logger zerolog.Logger) *Issuer {
	return &Issuer{
		store:    s,
		attempts: attempts,
		logger:   logger.With().Str("component", "token_issuer").Logger(),
	}
}

// Next returns the counter after one issuance on today.
func Next(cur models.DailyToken, found bool, today clock.Date) (next models.DailyToken, reset bool) {
	next = cur
	if !found || cur.LastIssuedDate != today {
		next.CurrentValue = 1
		next.LastIssuedDate = today
		return next, found
	}
	next.CurrentValue++
	return next, false
}

// Issue returns the next token for clinicID on today. today must be the
// clinic-local calendar day.
func (i *Issuer) Issue(ctx context.Context, clinicID string, today clock.Date) (int, error) {
	if clinicID == "" {
		return 0, fmt.Errorf("clinic id: %w", domain.ErrInvalidArgument)
	}
	if today.IsZero() {
		return 0, fmt.Errorf("issue date: %w", domain.ErrInvalidArgument)
	}

	unlock := i.locks.Lock(clinicID)
	defer unlock()

	var reset bool
	key := store.Key{ClinicID: clinicID, Kind: store.KindToken, ID: clinicID}
	tok, err := store.UpdateJSON(ctx, i.store, key, i.attempts, func(t *models.DailyToken, found bool) error {
		*t, reset = Next(*t, found, today)
		t.ClinicID = clinicID
		return nil
	})
	if err != nil {
		i.logger.Error().Err(err).Str("clinic_id", clinicID).Msg("token issue failed")
		return 0, fmt.Errorf("issue token for %s: %w", clinicID, err)
	}

	metrics.IncTokenIssued(reset)
	i.logger.Debug().
		Str("clinic_id", clinicID).
		Int("token", tok.CurrentValue).
		Stringer("date", tok.LastIssuedDate).
		Bool("reset", reset).
		Msg("token issued")
	return tok.CurrentValue, nil
}

// Current returns the stored counter without issuing. found is false before
// the clinic's first issuance.
func (i *Issuer) Current(ctx context.Context, clinicID string) (tok models.DailyToken, found bool, err error) {
	key := store.Key{ClinicID: clinicID, Kind: store.KindToken, ID: clinicID}
	tok, _, err = store.GetJSON[models.DailyToken](ctx, i.store, key)
	if err != nil {
		if domain.IsNotFound(err) {
			return models.DailyToken{}, false, nil
		}
		return models.DailyToken{}, false, err
	}
	return tok, true, nil
}
