package hotkey

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"imbridge/internal/keysym"
)

// profileSchema describes the JSON exchange format of a profile.
const profileSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "hotkey profile",
  "type": "object",
  "required": ["name", "hotkeys"],
  "additionalProperties": false,
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "ignored_mask": {"type": "integer", "minimum": 0, "maximum": 255},
    "hotkeys": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["event", "chord"],
        "additionalProperties": false,
        "properties": {
          "event": {"type": "string", "minLength": 1, "pattern": "^[^\\s=#]+$"},
          "chord": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = jsonschema.CompileString("hotkey-profile.schema.json", profileSchema)
	})
	return compiledSchema, schemaErr
}

type jsonProfile struct {
	Name        string      `json:"name"`
	IgnoredMask uint32      `json:"ignored_mask,omitempty"`
	Hotkeys     []jsonEntry `json:"hotkeys"`
}

type jsonEntry struct {
	Event string `json:"event"`
	Chord string `json:"chord"`
}

// EncodeJSON writes p in the JSON exchange format.
func EncodeJSON(w io.Writer, p *Profile) error {
	out := jsonProfile{
		Name:        p.Name(),
		IgnoredMask: uint32(p.IgnoredMask()),
		Hotkeys:     []jsonEntry{},
	}
	for _, ev := range p.Events() {
		for _, c := range p.ChordsFor(ev) {
			out.Hotkeys = append(out.Hotkeys, jsonEntry{Event: string(ev), Chord: c.String()})
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// DecodeJSON reads a profile in the JSON exchange format. The document is
// validated against the profile schema first; any bad chord or duplicate
// rejects the whole document.
func DecodeJSON(r io.Reader) (*Profile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	sch, err := schema()
	if err != nil {
		return nil, fmt.Errorf("compile profile schema: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, fmt.Errorf("validate profile: %w", err)
	}

	var in jsonProfile
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	p := NewProfile(in.Name, WithIgnoredMask(keysym.State(in.IgnoredMask)))
	for i, e := range in.Hotkeys {
		c, err := ParseChord(e.Chord)
		if err != nil {
			return nil, fmt.Errorf("hotkeys[%d]: %w", i, err)
		}
		if err := p.Add(c.Keyval, c.Mask, EventID(e.Event)); err != nil {
			return nil, fmt.Errorf("hotkeys[%d]: %w", i, err)
		}
	}
	return p, nil
}
