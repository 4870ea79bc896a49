package events

import (
	"sort"
	"sync"

	"frontdesk/internal/metrics"

	"github.com/rs/zerolog"
)

// Kind names what changed. Events carry no payload beyond clinic and kind;
// receivers re-fetch.
type Kind string

const (
	VisitChanged      Kind = "visitChanged"
	DayChanged        Kind = "dayChanged"
	AttendanceChanged Kind = "attendanceChanged"
)

// Event is an invalidation signal for one clinic.
type Event struct {
	ClinicID string `json:"clinicId"`
	Kind     Kind   `json:"kind"`
}

// Handler reacts to an event.
type Handler func(Event)

// Publisher is what services depend on to announce changes.
type Publisher interface {
	Publish(clinicID string, kind Kind)
}

// Subscription identifies a registered handler.
type Subscription struct {
	id       uint64
	clinicID string
}

// ClinicID returns the clinic the subscription listens to.
func (s Subscription) ClinicID() string { return s.clinicID }

// Hub fans events out to per-clinic subscribers.
//
// Every subscriber runs its handler on its own goroutine. Publish never
// blocks: repeated events of the same kind that arrive while a handler is
// busy collapse into one delivery, which is enough for signals that only say
// "re-fetch".
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]*subscriber
	nextID uint64
	closed bool
	wg     sync.WaitGroup
	logger zerolog.Logger
}

// NewHub constructs an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[uint64]*subscriber),
		logger: logger.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers handler for clinicID. Subscribing to a closed hub
// returns a subscription that never fires.
func (h *Hub) Subscribe(clinicID string, handler Handler) Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := Subscription{id: h.nextID, clinicID: clinicID}
	if h.closed {
		return sub
	}

	s := &subscriber{
		handler: handler,
		pending: make(map[Kind]struct{}),
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	if h.subs[clinicID] == nil {
		h.subs[clinicID] = make(map[uint64]*subscriber)
	}
	h.subs[clinicID][sub.id] = s
	metrics.AddSubscribers(1)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		s.run(clinicID, h.logger)
	}()
	return sub
}

// Unsubscribe removes the subscription. It reports false if it was not active.
func (h *Hub) Unsubscribe(sub Subscription) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	clinicSubs := h.subs[sub.clinicID]
	s, ok := clinicSubs[sub.id]
	if !ok {
		return false
	}
	delete(clinicSubs, sub.id)
	if len(clinicSubs) == 0 {
		delete(h.subs, sub.clinicID)
	}
	close(s.done)
	metrics.AddSubscribers(-1)
	return true
}

// Publish notifies current subscribers of clinicID. Publishing to a clinic
// nobody listens to is a no-op.
func (h *Hub) Publish(clinicID string, kind Kind) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	metrics.IncNotificationPublished(string(kind))
	for _, s := range h.subs[clinicID] {
		s.enqueue(kind)
	}
}

// SubscriberCount returns the number of active subscribers of clinicID.
func (h *Hub) SubscriberCount(clinicID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[clinicID])
}

// Close stops every subscriber and waits for running handlers to return.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for clinicID, clinicSubs := range h.subs {
		for _, s := range clinicSubs {
			close(s.done)
			metrics.AddSubscribers(-1)
		}
		delete(h.subs, clinicID)
	}
	h.mu.Unlock()
	h.wg.Wait()
}

type subscriber struct {
	handler Handler

	mu      sync.Mutex
	pending map[Kind]struct{}
	signal  chan struct{}
	done    chan struct{}
}

func (s *subscriber) enqueue(kind Kind) {
	s.mu.Lock()
	s.pending[kind] = struct{}{}
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber) drain() []Kind {
	s.mu.Lock()
	defer s.mu.Unlock()

	kinds := make([]Kind, 0, len(s.pending))
	for k := range s.pending {
		kinds = append(kinds, k)
		delete(s.pending, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func (s *subscriber) run(clinicID string, logger zerolog.Logger) {
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}
		for _, kind := range s.drain() {
			s.deliver(Event{ClinicID: clinicID, Kind: kind}, logger)
		}
	}
}

func (s *subscriber) deliver(ev Event, logger zerolog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Interface("panic", r).
				Str("clinic_id", ev.ClinicID).
				Str("kind", string(ev.Kind)).
				Msg("event handler panicked")
		}
	}()
	s.handler(ev)
}
