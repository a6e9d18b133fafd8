package build

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record holds the metadata of a single firmware build.
// The build identifier is the key of the registry document, not a field.
type Record struct {
	// Version is the human-readable firmware version string.
	Version string `json:"version"`
	// Filename is the package file backing this build.
	Filename string `json:"filename"`
	// Checksum is the cached hex SHA-256 digest of the package.
	// It is recomputable from the artifact at any time.
	Checksum string `json:"checksum,omitempty"`
	// PatchNotes describes what changed in this build.
	PatchNotes string `json:"patch_notes,omitempty"`
	// ReleaseDate is an optional YYYY-MM-DD date used by the
	// release-date ordering strategy.
	ReleaseDate string `json:"release_date,omitempty"`
}

// UpsertOutcome reports what an upsert did to the registry.
type UpsertOutcome int

const (
	// OutcomeCreated means a new record was appended to the registry.
	OutcomeCreated UpsertOutcome = iota
	// OutcomeUpdated means an existing record was replaced in place.
	OutcomeUpdated
)

// String returns the outcome name for logging.
func (o UpsertOutcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	default:
		return fmt.Sprintf("UpsertOutcome(%d)", int(o))
	}
}

// Document is an insertion-ordered mapping from build identifier to Record.
// The key order is the canonical build sequence: new builds are appended,
// updates keep their slot, deletes remove the slot. It marshals to and from
// a single JSON object whose key order is the sequence.
type Document struct {
	// order holds build identifiers in insertion order.
	order []string
	// records maps build identifiers to their metadata.
	records map[string]Record
}

// NewDocument returns an empty registry document.
func NewDocument() *Document {
	return &Document{
		records: make(map[string]Record),
	}
}

// Len returns the number of builds in the document.
func (d *Document) Len() int {
	return len(d.order)
}

// IDs returns the build identifiers in insertion order.
func (d *Document) IDs() []string {
	return append([]string(nil), d.order...)
}

// Get returns the record for the identifier, if present.
func (d *Document) Get(id string) (Record, bool) {
	rec, ok := d.records[id]

	return rec, ok
}

// IndexOf returns the insertion index of the identifier, if present.
func (d *Document) IndexOf(id string) (int, bool) {
	for i, candidate := range d.order {
		if candidate == id {
			return i, true
		}
	}

	return 0, false
}

// At returns the identifier and record at the given insertion index.
func (d *Document) At(i int) (string, Record) {
	id := d.order[i]

	return id, d.records[id]
}

// Set stores the record under the identifier.
// A new identifier is appended to the sequence; an existing one keeps its slot.
// It reports whether the record was newly created.
func (d *Document) Set(id string, rec Record) bool {
	if d.records == nil {
		d.records = make(map[string]Record)
	}

	_, exists := d.records[id]
	if !exists {
		d.order = append(d.order, id)
	}

	d.records[id] = rec

	return !exists
}

// Delete removes the identifier and its sequence slot.
// It reports whether the identifier was present.
func (d *Document) Delete(id string) bool {
	if _, ok := d.records[id]; !ok {
		return false
	}

	delete(d.records, id)

	for i, candidate := range d.order {
		if candidate == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}

	return true
}

// Clone returns a deep copy of the document so callers can hold a snapshot
// without observing later mutations.
func (d *Document) Clone() *Document {
	cloned := &Document{
		order:   append([]string(nil), d.order...),
		records: make(map[string]Record, len(d.records)),
	}

	for id, rec := range d.records {
		cloned.records[id] = rec
	}

	return cloned
}

// MarshalJSON encodes the document as a JSON object in insertion order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, id := range d.order {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(id)
		if err != nil {
			return nil, fmt.Errorf("encode build id %q: %w", id, err)
		}

		buf.Write(key)
		buf.WriteByte(':')

		value, err := json.Marshal(d.records[id])
		if err != nil {
			return nil, fmt.Errorf("encode build %q: %w", id, err)
		}

		buf.Write(value)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving its key order as the
// insertion sequence. The standard map decoding would lose the order, so the
// object is walked token by token.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode registry document: %w", err)
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("decode registry document: expected object, got %v", tok)
	}

	d.order = nil
	d.records = make(map[string]Record)

	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return fmt.Errorf("decode registry key: %w", err)
		}

		id, ok := tok.(string)
		if !ok {
			return fmt.Errorf("decode registry key: expected string, got %v", tok)
		}

		var rec Record
		if err = dec.Decode(&rec); err != nil {
			return fmt.Errorf("decode build %q: %w", id, err)
		}

		d.Set(id, rec)
	}

	if _, err = dec.Token(); err != nil {
		return fmt.Errorf("decode registry document: %w", err)
	}

	return nil
}
