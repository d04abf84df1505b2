package hotkey

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"imbridge/internal/keysym"
	"imbridge/internal/modifier"
)

// LineError describes a profile-file line that failed to load.
type LineError struct {
	File string
	Line int
	Msg  string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

var errEmptyChord = errors.New("empty chord")

// ParseChord parses "+"-joined modifier names followed by a key name, e.g.
// "Control+Shift+A" or "Release+Shift_L". A literal plus key may be written
// as "plus" or as a trailing "+" ("Control++").
func ParseChord(s string) (Chord, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Chord{}, errEmptyChord
	}

	var keyName string
	var mods []string
	switch {
	case s == "+":
		keyName = "+"
	case strings.HasSuffix(s, "++"):
		keyName = "+"
		mods = strings.Split(strings.TrimSuffix(s, "++"), "+")
	default:
		parts := strings.Split(s, "+")
		keyName = parts[len(parts)-1]
		mods = parts[:len(parts)-1]
	}

	var mask keysym.State
	for _, m := range mods {
		m = strings.TrimSpace(m)
		if m == "" {
			return Chord{}, fmt.Errorf("chord %q: empty modifier", s)
		}
		bit, ok := modifier.MaskFromName(m)
		if !ok {
			return Chord{}, fmt.Errorf("chord %q: unknown modifier %q", s, m)
		}
		mask |= bit
	}

	keyName = strings.TrimSpace(keyName)
	if keyName == "" {
		return Chord{}, fmt.Errorf("chord %q: missing key", s)
	}
	k, ok := keysym.FromName(keyName)
	if !ok {
		return Chord{}, fmt.Errorf("chord %q: unknown key %q", s, keyName)
	}
	return Chord{Keyval: k, Mask: mask}, nil
}

// LoadOptions controls profile-file loading.
type LoadOptions struct {
	// Strict aborts the load on the first bad line and returns no profile.
	Strict bool

	// IgnoredMask is passed to the new profile, see WithIgnoredMask.
	IgnoredMask keysym.State
}

// Load parses a profile file. Each line binds an event to one or more
// chords:
//
//	# comment
//	toggle = Control+space
//	peek   = Shift+Shift_L, Release+Shift+Shift_L
//
// In lenient mode bad lines (syntax errors, unknown keys, duplicate chords)
// are skipped and reported; in strict mode the first one aborts the load.
// The error return is non-nil for read failures and strict aborts.
func Load(r io.Reader, name string, opts LoadOptions) (*Profile, []*LineError, error) {
	p := NewProfile(name, WithIgnoredMask(opts.IgnoredMask))
	var errs []*LineError

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		for _, err := range loadLine(p, line) {
			le := &LineError{File: name, Line: lineNo, Msg: err.Error(), Err: err}
			if opts.Strict {
				return nil, append(errs, le), le
			}
			errs = append(errs, le)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errs, fmt.Errorf("read %s: %w", name, err)
	}
	return p, errs, nil
}

func loadLine(p *Profile, line string) []error {
	ev, rhs, ok := strings.Cut(line, "=")
	ev = strings.TrimSpace(ev)
	if !ok || ev == "" || strings.ContainsAny(ev, " \t") {
		return []error{errors.New("expected: event = chord[, chord...]")}
	}

	var errs []error
	for _, field := range strings.Split(rhs, ",") {
		c, err := ParseChord(field)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := p.Add(c.Keyval, c.Mask, EventID(ev)); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// LoadFile loads the profile at path. The profile is named after the file.
func LoadFile(path string, opts LoadOptions) (*Profile, []*LineError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open profile: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Load(f, name, opts)
}

// ReloadFile loads path and swaps the result into p. A strict load that
// fails leaves p untouched.
func ReloadFile(p *Profile, path string, strict bool) ([]*LineError, error) {
	next, errs, err := LoadFile(path, LoadOptions{Strict: strict, IgnoredMask: p.IgnoredMask()})
	if err != nil {
		return errs, err
	}
	p.Replace(next)
	return errs, nil
}

// Write renders p in profile-file syntax, one line per event in sorted
// order.
func Write(w io.Writer, p *Profile) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# hotkey profile %s\n", p.Name())
	for _, ev := range p.Events() {
		chords := p.ChordsFor(ev)
		parts := make([]string, len(chords))
		for i, c := range chords {
			parts[i] = c.String()
		}
		fmt.Fprintf(bw, "%s = %s\n", ev, strings.Join(parts, ", "))
	}
	return bw.Flush()
}
