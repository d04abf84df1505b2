package keymap

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"imbridge/internal/keysym"
)

// LineError describes a malformed keymap line. Parsing continues past it.
type LineError struct {
	File string
	Line int
	Msg  string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// Resolver opens keymaps named by include directives.
type Resolver interface {
	Open(name string) (io.ReadCloser, error)
}

// DirResolver resolves includes to files in a directory.
type DirResolver string

// Open implements Resolver.
func (d DirResolver) Open(name string) (io.ReadCloser, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == ".." {
		return nil, fmt.Errorf("invalid keymap name %q", name)
	}
	return os.Open(filepath.Join(string(d), name))
}

// ErrNoResolver is reported for include directives when no Resolver is set.
var ErrNoResolver = errors.New("include without resolver")

// LoadFile parses the keymap at path, resolving includes against the
// directory containing it.
func LoadFile(path string) (*Keymap, []*LineError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open keymap: %w", err)
	}
	defer f.Close()

	return Parse(f, filepath.Base(path), DirResolver(filepath.Dir(path)))
}

// Parse reads a keymap. The grammar is line oriented:
//
//	# comment
//	include NAME
//	group N
//	[shift] [altgr] [numlock] keycode N = KEYSYM
//
// Malformed lines and failed includes are returned as LineErrors and
// skipped. The error return is reserved for read failures.
func Parse(r io.Reader, name string, res Resolver) (*Keymap, []*LineError, error) {
	p := &parser{
		km:      New(name),
		res:     res,
		visited: map[string]bool{name: true},
	}
	if err := p.parse(r, name); err != nil {
		return nil, p.errs, err
	}
	return p.km, p.errs, nil
}

type parser struct {
	km      *Keymap
	res     Resolver
	visited map[string]bool
	errs    []*LineError
}

func (p *parser) parse(r io.Reader, file string) error {
	group := 0
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		fail := func(format string, args ...any) {
			p.errs = append(p.errs, &LineError{File: file, Line: lineNo, Msg: fmt.Sprintf(format, args...)})
		}

		switch fields[0] {
		case "include":
			if len(fields) != 2 {
				fail("include takes exactly one name")
				continue
			}
			if err := p.include(fields[1]); err != nil {
				fail("include %s: %v", fields[1], err)
			}
		case "group":
			if len(fields) != 2 {
				fail("group takes exactly one number")
				continue
			}
			g, err := strconv.Atoi(fields[1])
			if err != nil || g < 0 || g > 3 {
				fail("invalid group %q", fields[1])
				continue
			}
			group = g
		default:
			level, keycode, k, err := parseEntry(fields)
			if err != nil {
				fail("%v", err)
				continue
			}
			p.km.Set(group, keycode, level, k)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	return nil
}

func (p *parser) include(name string) error {
	if p.res == nil {
		return ErrNoResolver
	}
	if p.visited[name] {
		return errors.New("include cycle")
	}
	rc, err := p.res.Open(name)
	if err != nil {
		return err
	}
	defer rc.Close()

	p.visited[name] = true
	defer delete(p.visited, name)
	return p.parse(rc, name)
}

// parseEntry parses "[prefixes] keycode N = KEYSYM".
func parseEntry(fields []string) (Level, uint32, keysym.Keyval, error) {
	var shift, altgr, numlock bool
	i := 0
	for ; i < len(fields) && fields[i] != "keycode"; i++ {
		switch fields[i] {
		case "shift":
			shift = true
		case "altgr":
			altgr = true
		case "numlock":
			numlock = true
		default:
			return 0, 0, 0, fmt.Errorf("unknown directive %q", fields[i])
		}
	}
	rest := fields[i:]
	if len(rest) != 4 || rest[2] != "=" {
		return 0, 0, 0, errors.New("expected: keycode N = KEYSYM")
	}
	code, err := strconv.ParseUint(rest[1], 0, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid keycode %q", rest[1])
	}
	k, ok := keysym.FromName(rest[3])
	if !ok {
		return 0, 0, 0, fmt.Errorf("unknown keysym %q", rest[3])
	}

	var level Level
	switch {
	case numlock && altgr:
		return 0, 0, 0, errors.New("numlock and altgr cannot be combined")
	case numlock && shift:
		level = LevelNumLockShift
	case numlock:
		level = LevelNumLock
	case shift && altgr:
		level = LevelShiftAltGr
	case altgr:
		level = LevelAltGr
	case shift:
		level = LevelShift
	default:
		level = LevelPlain
	}
	return level, uint32(code), k, nil
}
