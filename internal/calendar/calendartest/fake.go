// Package calendartest provides an in-memory calendar.API for tests.
package calendartest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"google.golang.org/api/googleapi"

	"github.com/teemow/calendarlink/internal/calendar"
)

// Patch records one PatchEvent call.
type Patch struct {
	CalendarID string
	EventID    string
	Patch      calendar.EventPatch
}

// Fake is an in-memory calendar. Unknown event ids yield a googleapi 404.
type Fake struct {
	mu     sync.Mutex
	seq    int
	events map[string]calendar.Event

	// Err, when set, is returned from the next call and then cleared.
	Err error

	Listed  []calendar.ListQuery
	Created []calendar.EventInput
	Patched []Patch
	Deleted []string
	// NoCreateID makes CreateEvent return an event without an id.
	NoCreateID bool
}

var _ calendar.API = (*Fake)(nil)

// New returns an empty calendar.
func New() *Fake {
	return &Fake{events: make(map[string]calendar.Event)}
}

// Add stores ev and returns its id.
func (f *Fake) Add(ev calendar.Event) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev.ID == "" {
		f.seq++
		ev.ID = "ev-" + strconv.Itoa(f.seq)
	}
	f.events[ev.ID] = ev
	return ev.ID
}

// Has reports whether an event with id exists.
func (f *Fake) Has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.events[id]
	return ok
}

func (f *Fake) takeErr() error {
	err := f.Err
	f.Err = nil
	return err
}

// NotFound returns the error the Calendar API reports for a missing event.
func NotFound() error {
	return &googleapi.Error{Code: http.StatusNotFound, Message: "Not Found"}
}

func (f *Fake) ListEvents(_ context.Context, _ string, q calendar.ListQuery) (*calendar.EventPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Listed = append(f.Listed, q)
	if err := f.takeErr(); err != nil {
		return nil, err
	}

	page := &calendar.EventPage{Items: []calendar.Event{}}
	for _, ev := range f.events {
		page.Items = append(page.Items, ev)
	}
	return page, nil
}

func (f *Fake) GetEvent(_ context.Context, _, eventID string) (*calendar.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return nil, err
	}
	ev, ok := f.events[eventID]
	if !ok {
		return nil, fmt.Errorf("failed to get event: %w", NotFound())
	}
	return &ev, nil
}

func (f *Fake) CreateEvent(_ context.Context, _ string, in calendar.EventInput) (*calendar.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Created = append(f.Created, in)
	if err := f.takeErr(); err != nil {
		return nil, err
	}
	if f.NoCreateID {
		return &calendar.Event{}, nil
	}

	f.seq++
	ev := calendar.Event{
		ID:          "ev-" + strconv.Itoa(f.seq),
		Summary:     in.Summary,
		Description: in.Description,
		Start:       &calendar.EventTime{DateTime: in.Start, TimeZone: in.TimeZone},
		End:         &calendar.EventTime{DateTime: in.End, TimeZone: in.TimeZone},
	}
	f.events[ev.ID] = ev
	return &ev, nil
}

func (f *Fake) PatchEvent(_ context.Context, calendarID, eventID string, p calendar.EventPatch) (*calendar.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Patched = append(f.Patched, Patch{CalendarID: calendarID, EventID: eventID, Patch: p})
	if err := f.takeErr(); err != nil {
		return nil, err
	}
	ev, ok := f.events[eventID]
	if !ok {
		return nil, fmt.Errorf("failed to patch event: %w", NotFound())
	}
	if p.Summary != "" {
		ev.Summary = p.Summary
	}
	if p.Start != "" {
		ev.Start = &calendar.EventTime{DateTime: p.Start, TimeZone: p.TimeZone}
		ev.End = &calendar.EventTime{DateTime: p.End, TimeZone: p.TimeZone}
	}
	f.events[eventID] = ev
	return &ev, nil
}

func (f *Fake) DeleteEvent(_ context.Context, _, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deleted = append(f.Deleted, eventID)
	if err := f.takeErr(); err != nil {
		return err
	}
	if _, ok := f.events[eventID]; !ok {
		return fmt.Errorf("failed to delete event: %w", NotFound())
	}
	delete(f.events, eventID)
	return nil
}
