// Package clinic resolves configured clinics and their local time.
package clinic

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"frontdesk/internal/clock"
	"frontdesk/internal/config"
	"frontdesk/internal/domain"
)

// Clinic is a configured clinic with its resolved time zone.
type Clinic struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Location *time.Location `json:"-"`
	Timezone string         `json:"timezone"`
}

// Directory is the live set of clinics. It is replaced wholesale on every
// config reload.
type Directory struct {
	mu      sync.RWMutex
	clinics map[string]Clinic
	clock   clock.Clock
	strict  bool
}

// NewDirectory returns an empty directory. When strict is set, unknown
// clinic ids are rejected; otherwise they run on UTC.
func NewDirectory(c clock.Clock, strict bool) *Directory {
	if c == nil {
		c = clock.System{}
	}
	return &Directory{clinics: make(map[string]Clinic), clock: c, strict: strict}
}

// Update replaces the directory from config. Entries with an unknown time
// zone are skipped and reported.
func (d *Directory) Update(cfgs []config.ClinicConfig) error {
	next := make(map[string]Clinic, len(cfgs))
	var bad []string
	for _, c := range cfgs {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			bad = append(bad, c.ID)
			continue
		}
		next[c.ID] = Clinic{ID: c.ID, Name: c.Name, Location: loc, Timezone: loc.String()}
	}

	d.mu.Lock()
	d.clinics = next
	d.mu.Unlock()

	if len(bad) > 0 {
		return fmt.Errorf("clinics with unknown time zone: %v", bad)
	}
	return nil
}

// Get returns the clinic with id.
func (d *Directory) Get(id string) (Clinic, error) {
	d.mu.RLock()
	c, ok := d.clinics[id]
	d.mu.RUnlock()
	if ok {
		return c, nil
	}
	if d.strict || id == "" {
		return Clinic{}, fmt.Errorf("clinic %q: %w", id, domain.ErrNotFound)
	}
	return Clinic{ID: id, Location: time.UTC, Timezone: "UTC"}, nil
}

// List returns all clinics ordered by id.
func (d *Directory) List() []Clinic {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Clinic, 0, len(d.clinics))
	for _, c := range d.clinics {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Now returns the current instant in the clinic's time zone.
func (d *Directory) Now(id string) (time.Time, error) {
	c, err := d.Get(id)
	if err != nil {
		return time.Time{}, err
	}
	return d.clock.Now().In(c.Location), nil
}

// Today returns the clinic's current calendar day.
func (d *Directory) Today(id string) (clock.Date, error) {
	now, err := d.Now(id)
	if err != nil {
		return clock.Date{}, err
	}
	return clock.DateOf(now), nil
}
