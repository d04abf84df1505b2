// Package hotkey implements hotkey profiles: tables mapping normalized key
// chords to opaque event ids, and the chord matcher used on live key
// streams.
//
// A Profile is shared by every session using it. Lookups take a read lock
// and may run while an administrative write (registration, reload) is in
// progress on another goroutine.
//
// Bare-modifier hotkeys are matched literally: a press matches entries
// registered without Release, and a release matches only entries that were
// registered with the Release modifier. Registering "Shift+Shift_L" fires on
// the press of Shift_L; registering "Release+Shift+Shift_L" fires when it is
// released without another key in between.
package hotkey

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"imbridge/internal/keysym"
	"imbridge/internal/modifier"
)

// EventID is the opaque token a hotkey resolves to.
type EventID string

var (
	// ErrDuplicate is returned when a chord is already registered.
	ErrDuplicate = errors.New("hotkey already registered")
	// ErrNotFound is returned when removing a chord that is not registered.
	ErrNotFound = errors.New("hotkey not registered")
)

// Chord is a keyval paired with a modifier mask.
type Chord struct {
	Keyval keysym.Keyval
	Mask   keysym.State
}

// String renders the chord in profile-file syntax, e.g. "Control+Shift+A".
func (c Chord) String() string {
	parts := modifier.Names(c.Mask)
	parts = append(parts, keysym.Name(c.Keyval))
	return strings.Join(parts, "+")
}

func (c Chord) less(o Chord) bool {
	if c.Keyval != o.Keyval {
		return c.Keyval < o.Keyval
	}
	return c.Mask < o.Mask
}

// Entry is one registered hotkey.
type Entry struct {
	Chord
	Event EventID
}

// Normalize ORs the modifier bit of k's own class into raw, so a bare
// modifier key registers and matches as holding its own modifier.
func Normalize(k keysym.Keyval, raw keysym.State) keysym.State {
	if c, ok := modifier.ClassOf(k); ok {
		raw |= c.Bit()
	}
	return raw
}

// Option configures a Profile.
type Option func(*Profile)

// WithIgnoredMask makes the profile drop the given modifier bits during
// normalization, typically Lock and Mod2 so that Caps Lock and Num Lock do
// not defeat hotkeys. The Release bit cannot be ignored.
func WithIgnoredMask(mask keysym.State) Option {
	return func(p *Profile) {
		p.ignore = mask &^ keysym.ReleaseMask
	}
}

// Profile is a hotkey table. Entries are kept sorted by chord for binary
// search, with a secondary index from event id to its chords.
type Profile struct {
	name   string
	ignore keysym.State

	mu      sync.RWMutex
	entries []Entry
	byEvent map[EventID][]Chord
}

// NewProfile creates an empty profile.
func NewProfile(name string, opts ...Option) *Profile {
	p := &Profile{
		name:    name,
		byEvent: make(map[EventID][]Chord),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the profile name.
func (p *Profile) Name() string {
	return p.name
}

// IgnoredMask returns the bits dropped during normalization.
func (p *Profile) IgnoredMask() keysym.State {
	return p.ignore
}

func (p *Profile) normalize(k keysym.Keyval, raw keysym.State) Chord {
	return Chord{Keyval: k, Mask: Normalize(k, raw) &^ p.ignore}
}

// search returns the index of c in entries, or where it would be inserted.
// The caller must hold mu.
func (p *Profile) search(c Chord) (int, bool) {
	i := sort.Search(len(p.entries), func(i int) bool {
		return !p.entries[i].Chord.less(c)
	})
	return i, i < len(p.entries) && p.entries[i].Chord == c
}

// Add registers the chord (k, raw) for ev. If the normalized chord is
// already present the table is left untouched and ErrDuplicate is returned.
func (p *Profile) Add(k keysym.Keyval, raw keysym.State, ev EventID) error {
	c := p.normalize(k, raw)

	p.mu.Lock()
	defer p.mu.Unlock()

	i, found := p.search(c)
	if found {
		return fmt.Errorf("%s: %w (event %q)", c, ErrDuplicate, p.entries[i].Event)
	}
	p.entries = append(p.entries, Entry{})
	copy(p.entries[i+1:], p.entries[i:])
	p.entries[i] = Entry{Chord: c, Event: ev}
	p.byEvent[ev] = append(p.byEvent[ev], c)
	return nil
}

// Remove unregisters the chord (k, raw).
func (p *Profile) Remove(k keysym.Keyval, raw keysym.State) error {
	c := p.normalize(k, raw)

	p.mu.Lock()
	defer p.mu.Unlock()

	i, found := p.search(c)
	if !found {
		return fmt.Errorf("%s: %w", c, ErrNotFound)
	}
	ev := p.entries[i].Event
	p.entries = append(p.entries[:i], p.entries[i+1:]...)
	p.unindex(ev, c)
	return nil
}

// unindex drops c from ev's index row, deleting the row when it empties.
// The caller must hold mu.
func (p *Profile) unindex(ev EventID, c Chord) {
	chords := p.byEvent[ev]
	for i, have := range chords {
		if have == c {
			chords = append(chords[:i], chords[i+1:]...)
			break
		}
	}
	if len(chords) == 0 {
		delete(p.byEvent, ev)
		return
	}
	p.byEvent[ev] = chords
}

// RemoveByEvent unregisters every chord bound to ev and returns how many
// were removed.
func (p *Profile) RemoveByEvent(ev EventID) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	chords, ok := p.byEvent[ev]
	if !ok {
		return 0
	}
	for _, c := range chords {
		if i, found := p.search(c); found {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
		}
	}
	delete(p.byEvent, ev)
	return len(chords)
}

// Lookup returns the event bound to the normalized chord (k, mask).
func (p *Profile) Lookup(k keysym.Keyval, mask keysym.State) (EventID, bool) {
	c := p.normalize(k, mask)

	p.mu.RLock()
	defer p.mu.RUnlock()

	if i, found := p.search(c); found {
		return p.entries[i].Event, true
	}
	return "", false
}

// Filter matches a key event against the profile given the previous event
// of the same stream. Press events are plain lookups. A release event only
// matches when the previous event was a press with exactly the same
// non-release modifier bits, and either the same keyval or, when the keyvals
// differ, both keyvals are modifiers. The latter lets "hold Shift, hold Alt,
// release Shift" resolve against a Release+Shift+Alt entry for Shift_L.
func (p *Profile) Filter(k keysym.Keyval, mask keysym.State, prevK keysym.Keyval, prevMask keysym.State) (EventID, bool) {
	cur := p.normalize(k, mask)
	prev := p.normalize(prevK, prevMask)

	if cur.Mask.IsRelease() {
		if prev.Mask.IsRelease() {
			return "", false
		}
		if cur.Mask.WithoutRelease() != prev.Mask {
			return "", false
		}
		if k != prevK && (!modifier.IsModifier(k) || !modifier.IsModifier(prevK)) {
			return "", false
		}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if i, found := p.search(cur); found {
		return p.entries[i].Event, true
	}
	return "", false
}

// Len returns the number of registered chords.
func (p *Profile) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Entries returns a copy of the table in chord order.
func (p *Profile) Entries() []Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Events returns the registered event ids in sorted order.
func (p *Profile) Events() []EventID {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]EventID, 0, len(p.byEvent))
	for ev := range p.byEvent {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ChordsFor returns the chords bound to ev in registration order.
func (p *Profile) ChordsFor(ev EventID) []Chord {
	p.mu.RLock()
	defer p.mu.RUnlock()

	chords := p.byEvent[ev]
	out := make([]Chord, len(chords))
	copy(out, chords)
	return out
}

// Replace atomically swaps the contents of p for those of other. Readers
// observe either the old table or the new one, never a mix. other is not
// modified and may be discarded afterwards. Entries are copied as other
// normalized them, so both profiles should share the same ignored mask.
func (p *Profile) Replace(other *Profile) {
	if other == p {
		return
	}
	other.mu.RLock()
	entries := make([]Entry, len(other.entries))
	copy(entries, other.entries)
	byEvent := make(map[EventID][]Chord, len(other.byEvent))
	for ev, chords := range other.byEvent {
		byEvent[ev] = append([]Chord(nil), chords...)
	}
	other.mu.RUnlock()

	p.mu.Lock()
	p.entries = entries
	p.byEvent = byEvent
	p.mu.Unlock()
}
