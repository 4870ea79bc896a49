package rollover

import (
	"context"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"frontdesk/internal/clinic"
	"frontdesk/internal/clock"
	"frontdesk/internal/config"
	"frontdesk/internal/events"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) Publish(clinicID string, kind events.Kind) {
	l.mu.Lock()
	l.events = append(l.events, events.Event{ClinicID: clinicID, Kind: kind})
	l.mu.Unlock()
}

func (l *eventLog) snapshot() []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]events.Event(nil), l.events...)
}

func newDirectory(t *testing.T) *clinic.Directory {
	t.Helper()
	d := clinic.NewDirectory(nil, true)
	require.NoError(t, d.Update([]config.ClinicConfig{
		{ID: "east", Timezone: "Etc/GMT-6"}, // UTC+6
		{ID: "west", Timezone: "UTC"},
	}))
	return d
}

func TestWatcher_PublishesPerClinicRollover(t *testing.T) {
	dir := newDirectory(t)
	clk := &stepClock{now: time.Date(2025, 1, 15, 17, 0, 0, 0, time.UTC)}
	log := &eventLog{}
	w := NewWatcher(dir, log, clk, time.Minute, zerolog.Nop())

	assert.Empty(t, w.Check(), "first observation only records the date")

	clk.advance(2 * time.Hour) // 19:00 UTC, 01:00 next day at UTC+6
	assert.Equal(t, []string{"east"}, w.Check())

	clk.advance(time.Hour)
	assert.Empty(t, w.Check())

	clk.advance(4 * time.Hour) // 00:00 UTC
	assert.Equal(t, []string{"west"}, w.Check())

	assert.Equal(t, []events.Event{
		{ClinicID: "east", Kind: events.DayChanged},
		{ClinicID: "west", Kind: events.DayChanged},
	}, log.snapshot())
}

func TestWatcher_StartStop(t *testing.T) {
	dir := newDirectory(t)
	w := NewWatcher(dir, &eventLog{}, clock.Fixed(time.Now()), 5*time.Millisecond, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		w.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, w.IsRunning, time.Second, time.Millisecond)
	w.Stop()
	w.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
	assert.False(t, w.IsRunning())
}

func TestWatcher_StopsWithContext(t *testing.T) {
	w := NewWatcher(newDirectory(t), &eventLog{}, nil, 5*time.Millisecond, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher ignored context cancellation")
	}
}
