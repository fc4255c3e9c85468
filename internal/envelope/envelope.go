// Package envelope encodes exported conversations either bare (raw) or wrapped
// in a version-tagged envelope, and decodes both shapes.
package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ALT-F4-LLC/llm-unify/internal/model"
)

// FormatVersion is the envelope layout written by Export.
const FormatVersion = 1

var supportedFormats = []int{FormatVersion}

// Mode selects the output shape of Export.
type Mode int

const (
	// ModeVersioned wraps the payload with format and schema versions.
	ModeVersioned Mode = iota
	// ModeRaw emits the payload alone.
	ModeRaw
)

func (m Mode) String() string {
	if m == ModeRaw {
		return "raw"
	}
	return "versioned"
}

// ErrUnsupportedFormat matches any *UnsupportedFormatError via errors.Is.
var ErrUnsupportedFormat = errors.New("unsupported envelope format")

// UnsupportedFormatError is returned for an envelope whose format_version this
// build cannot read.
type UnsupportedFormatError struct {
	Found     int
	Supported []int
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("envelope format_version %d is not supported (supported: %v)", e.Found, e.Supported)
}

func (e *UnsupportedFormatError) Unwrap() error { return ErrUnsupportedFormat }

// Envelope is the versioned wire shape. Data holds the raw payload bytes
// exactly as ModeRaw would emit them.
type Envelope struct {
	FormatVersion int             `json:"format_version"`
	SchemaVersion int             `json:"schema_version"`
	ExportedAt    time.Time       `json:"exported_at"`
	Data          json.RawMessage `json:"data"`
}

// Options carries the stamps written into a versioned envelope.
type Options struct {
	SchemaVersion int
	ExportedAt    time.Time
}

// Export serializes payload. In ModeVersioned the raw bytes are embedded
// unchanged as the data field, so Unwrap of the result equals the ModeRaw
// output byte for byte.
func Export(payload any, mode Mode, opts Options) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	if mode == ModeRaw {
		return raw, nil
	}

	exportedAt := opts.ExportedAt
	if exportedAt.IsZero() {
		exportedAt = time.Now()
	}

	env := Envelope{
		FormatVersion: FormatVersion,
		SchemaVersion: opts.SchemaVersion,
		ExportedAt:    exportedAt.UTC(),
		Data:          raw,
	}
	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}
	return out, nil
}

// Decoded is the result of reading either shape. Versioned is false for raw
// input, in which case the version fields are zero.
type Decoded struct {
	Versioned     bool
	FormatVersion int
	SchemaVersion int
	ExportedAt    time.Time
	Data          json.RawMessage
}

// IsEnvelope reports whether b is a JSON object carrying the wrapper keys.
func IsEnvelope(b []byte) bool {
	root := gjson.ParseBytes(b)
	return root.IsObject() &&
		root.Get("format_version").Exists() &&
		root.Get("data").Exists()
}

// Decode accepts a versioned envelope or a raw payload. Envelopes with an
// unknown format_version fail with *UnsupportedFormatError before the payload
// is looked at.
func Decode(b []byte) (*Decoded, error) {
	if !json.Valid(b) {
		return nil, errors.New("input is not valid JSON")
	}

	if !IsEnvelope(b) {
		return &Decoded{Data: json.RawMessage(b)}, nil
	}

	fv := gjson.GetBytes(b, "format_version")
	if fv.Type != gjson.Number || !slices.Contains(supportedFormats, int(fv.Int())) {
		return nil, &UnsupportedFormatError{Found: int(fv.Int()), Supported: slices.Clone(supportedFormats)}
	}

	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	return &Decoded{
		Versioned:     true,
		FormatVersion: env.FormatVersion,
		SchemaVersion: env.SchemaVersion,
		ExportedAt:    env.ExportedAt,
		Data:          env.Data,
	}, nil
}

// Unwrap returns the raw payload bytes of either shape.
func Unwrap(b []byte) ([]byte, error) {
	d, err := Decode(b)
	if err != nil {
		return nil, err
	}
	return d.Data, nil
}

// Conversations decodes the payload of either shape into conversations. The
// payload may be a single conversation object or an array of them.
func Conversations(b []byte) ([]*model.Conversation, error) {
	data, err := Unwrap(b)
	if err != nil {
		return nil, err
	}

	if gjson.ParseBytes(data).IsArray() {
		var convs []*model.Conversation
		if err := json.Unmarshal(data, &convs); err != nil {
			return nil, fmt.Errorf("decoding conversations: %w", err)
		}
		return convs, nil
	}

	var c model.Conversation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding conversation: %w", err)
	}
	return []*model.Conversation{&c}, nil
}

// Indent pretty-prints encoded output for terminals.
func Indent(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, b, "", "  "); err != nil {
		return nil, fmt.Errorf("indenting output: %w", err)
	}
	return buf.Bytes(), nil
}
