package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"frontdesk/internal/events"
	"frontdesk/internal/metrics"
)

// GET /api/v1/clinics/{clinic}/events streams invalidation events as
// server-sent events until the client goes away.
func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("events")
	clinicID := r.PathValue("clinic")
	if _, err := s.deps.Clinics.Get(clinicID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// The hub already coalesces, so a small buffer only absorbs a burst of
	// distinct kinds while the write below is in flight.
	ch := make(chan events.Event, 8)
	sub := s.deps.Events.Subscribe(clinicID, func(ev events.Event) {
		select {
		case ch <- ev:
		case <-r.Context().Done():
		}
	})
	defer s.deps.Events.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	s.logger.Debug().Str("clinic_id", clinicID).Msg("event stream opened")
	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug().Str("clinic_id", clinicID).Msg("event stream closed")
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev := <-ch:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
