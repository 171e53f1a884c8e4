// Package store owns the master event collection: CRUD mutations, the theme
// preference, synchronous subscriber notification, and persistence through
// the key-value collaborator.
//
// Mutations against an unknown id are silent no-ops by design, not errors;
// the only errors surfaced here are persistence failures, which propagate to
// the caller untouched.
package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"simplecal/internal/caldate"
	"simplecal/internal/model"
	"simplecal/internal/storage"
)

// Persistence keys, shared with the browser build of the application.
const (
	eventsKey = "calendar-events"
	themeKey  = "calendar-theme"
)

const defaultTheme = "dark"

// Store is constructed once at process start and never torn down. All
// operations serialize on one mutex so every mutation (mutate, persist) is
// atomic with respect to readers; subscribers are invoked after the lock is
// released so they can re-read current state.
type Store struct {
	mu     sync.Mutex
	kv     storage.KV
	events []model.Event
	theme  string

	subMu       sync.Mutex
	subscribers []func()

	now    func() time.Time
	lastID int64 // monotonic guard for millisecond-derived ids
}

// New returns an empty store persisting through kv. Call Load before use to
// pick up previously saved state.
func New(kv storage.KV) *Store {
	return &Store{
		kv:     kv,
		events: []model.Event{},
		theme:  defaultTheme,
		now:    time.Now,
	}
}

// Load reads the event collection and theme preference from storage. It is
// called once at startup; missing keys leave the defaults in place.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.kv.Get(eventsKey)
	if err != nil {
		return fmt.Errorf("store: load events: %w", err)
	}
	if ok {
		var events []model.Event
		if err := json.Unmarshal([]byte(raw), &events); err != nil {
			return fmt.Errorf("store: decode events: %w", err)
		}
		s.events = events
	}

	theme, ok, err := s.kv.Get(themeKey)
	if err != nil {
		return fmt.Errorf("store: load theme: %w", err)
	}
	if ok && theme != "" {
		s.theme = theme
	}
	return nil
}

// Subscribe registers a callback invoked synchronously after every state
// mutation, in registration order, with no payload: subscribers re-derive
// what changed by reading current state.
func (s *Store) Subscribe(fn func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Store) notify() {
	s.subMu.Lock()
	subs := append([]func(){}, s.subscribers...)
	s.subMu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// Create fills a default-valued record, overlays the caller's fields,
// assigns a fresh id and appends it to the collection. Field validity is the
// caller's concern; the store accepts whatever it is given.
func (s *Store) Create(patch model.EventPatch) (model.Event, error) {
	s.mu.Lock()

	ev := model.Event{
		Type:         model.TypeEvent,
		Discussion:   []model.DiscussionMessage{},
		Participants: []model.Participant{},
		Attachments:  []model.Attachment{},
	}
	patch.Apply(&ev)

	// Date defaults to today, endDate to the start date.
	if ev.Date == "" {
		ev.Date = caldate.FromTime(s.now()).String()
	}
	if ev.EndDate == "" {
		ev.EndDate = ev.Date
	}

	ev.ID = s.nextID()
	s.events = append(s.events, ev)

	if err := s.persistLocked(); err != nil {
		s.mu.Unlock()
		return model.Event{}, err
	}
	out := ev.Clone()
	s.mu.Unlock()

	s.notify()
	return out, nil
}

// Update shallow-merges the patch over the event with the given id. An
// unknown id is a silent no-op: nothing is persisted and nobody is notified.
func (s *Store) Update(id string, patch model.EventPatch) error {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}

	patch.Apply(&s.events[idx])
	s.events[idx].ID = id // immutable regardless of payload

	if err := s.persistLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// Delete removes the event with the given id, if any. All derived
// occurrences disappear with the master record, including future ones.
// Matching the browser build, it persists and notifies even when the id was
// not present.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	kept := s.events[:0]
	for _, ev := range s.events {
		if ev.ID != id {
			kept = append(kept, ev)
		}
	}
	s.events = kept

	if err := s.persistLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// GetByID returns a copy of the master record, or ok=false.
func (s *Store) GetByID(id string) (model.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return model.Event{}, false
	}
	return s.events[idx].Clone(), true
}

// Events returns a deep-copied snapshot of the collection in insertion
// order.
func (s *Store) Events() []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Event, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Clone()
	}
	return out
}

// AppendDiscussionMessage appends a message with the current timestamp to
// the event's discussion thread, lazily initializing it. Unknown id: silent
// no-op.
func (s *Store) AppendDiscussionMessage(id, sender, text string) error {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}

	msg := model.DiscussionMessage{
		Sender:  sender,
		Message: text,
		// Same shape as JavaScript's Date.toISOString().
		Timestamp: s.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	s.events[idx].Discussion = append(s.events[idx].Discussion, msg)

	if err := s.persistLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// AppendAttachments appends attachments to the event under the store lock,
// so concurrent uploads to the same event never overwrite each other's
// additions. Unknown id: silent no-op.
func (s *Store) AppendAttachments(id string, atts []model.Attachment) error {
	if len(atts) == 0 {
		return nil
	}

	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}

	s.events[idx].Attachments = append(s.events[idx].Attachments, atts...)

	if err := s.persistLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// Theme returns the current theme preference.
func (s *Store) Theme() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// SetTheme persists the theme preference under its own key.
func (s *Store) SetTheme(theme string) error {
	s.mu.Lock()
	s.theme = theme
	if err := s.kv.Set(themeKey, theme); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("store: persist theme: %w", err)
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// persistLocked writes the full serialized collection under the events key.
// Callers hold s.mu.
func (s *Store) persistLocked() error {
	data, err := json.Marshal(s.events)
	if err != nil {
		return fmt.Errorf("store: encode events: %w", err)
	}
	if err := s.kv.Set(eventsKey, string(data)); err != nil {
		return fmt.Errorf("store: persist events: %w", err)
	}
	return nil
}

func (s *Store) indexOf(id string) int {
	for i, ev := range s.events {
		if ev.ID == id {
			return i
		}
	}
	return -1
}

// nextID derives an id from the current clock in milliseconds, bumping past
// the previous id when two creations land in the same millisecond.
func (s *Store) nextID() string {
	ms := s.now().UnixMilli()
	if ms <= s.lastID {
		ms = s.lastID + 1
	}
	s.lastID = ms
	return strconv.FormatInt(ms, 10)
}
