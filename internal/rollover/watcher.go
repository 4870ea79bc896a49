// Package rollover announces when a clinic's calendar day changes so queue
// displays drop the previous day's visits without anyone touching them.
package rollover

import (
	"context"
	"sync"
	"time"

	"frontdesk/internal/clinic"
	"frontdesk/internal/clock"
	"frontdesk/internal/events"

	"github.com/rs/zerolog"
)

// Clinics lists the clinics to watch.
type Clinics interface {
	List() []clinic.Clinic
}

// Watcher polls every clinic's local date and publishes events.DayChanged
// when it moves.
type Watcher struct {
	clinics   Clinics
	publisher events.Publisher
	clock     clock.Clock
	interval  time.Duration
	logger    zerolog.Logger

	mu      sync.Mutex
	lastDay map[string]clock.Date
	running bool
	stopCh  chan struct{}
}

func NewWatcher(clinics Clinics, publisher events.Publisher, c clock.Clock, interval time.Duration, logger zerolog.Logger) *Watcher {
	if c == nil {
		c = clock.System{}
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Watcher{
		clinics:   clinics,
		publisher: publisher,
		clock:     c,
		interval:  interval,
		logger:    logger.With().Str("component", "rollover").Logger(),
		lastDay:   make(map[string]clock.Date),
		stopCh:    make(chan struct{}),
	}
}

// Start runs the polling loop until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info().Dur("interval", w.interval).Msg("rollover watcher started")
	w.Check()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("rollover watcher stopped by context")
			return
		case <-w.stopCh:
			w.logger.Info().Msg("rollover watcher stopped")
			return
		case <-ticker.C:
			w.Check()
		}
	}
}

// Stop ends a running loop.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.running {
		w.running = false
		close(w.stopCh)
	}
	w.mu.Unlock()
}

// IsRunning reports whether the loop is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Check compares each clinic's local date with the last one seen and
// returns the clinics whose day changed. A clinic seen for the first time
// only records its date.
func (w *Watcher) Check() []string {
	now := w.clock.Now()

	var rolled []string
	w.mu.Lock()
	for _, c := range w.clinics.List() {
		today := clock.DateOf(now.In(c.Location))
		prev, seen := w.lastDay[c.ID]
		w.lastDay[c.ID] = today
		if seen && prev != today {
			rolled = append(rolled, c.ID)
		}
	}
	w.mu.Unlock()

	for _, id := range rolled {
		w.logger.Info().Str("clinic_id", id).Msg("clinic day rolled over")
		w.publisher.Publish(id, events.DayChanged)
	}
	return rolled
}
