// Package ingest normalizes provider export files into conversations and
// writes them to the store.
package ingest

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/ALT-F4-LLC/llm-unify/internal/model"
)

// SourceNative names files written by the export command.
const SourceNative = "native"

// ErrParse matches any *ParseError via errors.Is.
var ErrParse = errors.New("parse error")

// ParseError reports a malformed or unrecognized import payload. Nothing from
// the offending file is persisted.
type ParseError struct {
	Source string
	Path   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parsing ")
	b.WriteString(e.Source)
	if e.Path != "" {
		b.WriteString(" file ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// Parser turns the bytes of one export file into conversations.
type Parser func(data []byte) ([]*model.Conversation, error)

var parsers = map[model.Provider]Parser{
	model.ProviderChatGPT: parseChatGPT,
	model.ProviderClaude:  parseClaude,
	model.ProviderGemini:  parseGemini,
	model.ProviderCopilot: parseCopilot,
}

// Sources returns the accepted import source names.
func Sources() []string {
	out := make([]string, 0, len(parsers)+1)
	for _, p := range model.Providers() {
		out = append(out, string(p))
	}
	return append(out, SourceNative)
}

// ParserFor resolves a source name (a provider or "native") to its parser.
func ParserFor(source string) (Parser, error) {
	if strings.EqualFold(strings.TrimSpace(source), SourceNative) {
		return parseNative, nil
	}
	p, err := model.ParseProvider(source)
	if err != nil {
		return nil, fmt.Errorf("unknown import source %q: must be one of %v", source, Sources())
	}
	return parsers[p], nil
}

// parseFailure builds a ParseError without source or path; the importer
// fills those in.
func parseFailure(reason string, args ...any) error {
	return &ParseError{Reason: fmt.Sprintf(reason, args...)}
}

// rootItems validates data as JSON and returns its conversation entries:
// the array itself, or the array under one of keys.
func rootItems(data []byte, keys ...string) ([]gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return nil, parseFailure("input is not valid JSON")
	}

	root := gjson.ParseBytes(data)
	if root.IsArray() {
		return root.Array(), nil
	}
	if root.IsObject() {
		for _, k := range keys {
			if v := root.Get(k); v.IsArray() {
				return v.Array(), nil
			}
		}
		return []gjson.Result{root}, nil
	}
	return nil, parseFailure("expected a JSON array or object at top level")
}

// idNamespace seeds deterministic ids for records that lack one, so that
// importing the same file twice yields the same ids.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/ALT-F4-LLC/llm-unify"))

func derivedID(parts ...string) string {
	return uuid.NewSHA1(idNamespace, []byte(strings.Join(parts, "\x00"))).String()
}

// firstString returns the first non-empty string among the given paths.
func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimeValue accepts unix seconds, unix milliseconds, or a timestamp
// string. Missing values give the zero time.
func parseTimeValue(v gjson.Result) (time.Time, error) {
	switch v.Type {
	case gjson.Null:
		return time.Time{}, nil
	case gjson.Number:
		f := v.Float()
		if f > 1e12 {
			f /= 1000
		}
		sec, frac := math.Modf(f)
		// Microsecond precision matches what exports carry.
		usec := math.Round(frac * 1e6)
		return time.Unix(int64(sec), int64(usec)*1000).UTC(), nil
	case gjson.String:
		s := strings.TrimSpace(v.String())
		if s == "" {
			return time.Time{}, nil
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	}
	if !v.Exists() {
		return time.Time{}, nil
	}
	return time.Time{}, fmt.Errorf("unexpected timestamp value %s", v.Raw)
}

func timeField(r gjson.Result, paths ...string) (time.Time, error) {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() {
			t, err := parseTimeValue(v)
			if err != nil {
				return time.Time{}, parseFailure("%s: %v", p, err)
			}
			return t, nil
		}
	}
	return time.Time{}, nil
}

// textOf flattens a string, an array of strings, or an array of
// {"text": ...} blocks into one string.
func textOf(v gjson.Result) string {
	if !v.IsArray() {
		return v.String()
	}
	var parts []string
	for _, item := range v.Array() {
		switch {
		case item.Type == gjson.String:
			parts = append(parts, item.String())
		case item.IsObject() && item.Get("text").Type == gjson.String:
			parts = append(parts, item.Get("text").String())
		}
	}
	return strings.Join(parts, "\n")
}

// finish fills in missing ids and timestamps and numbers the messages in
// order.
func finish(c *model.Conversation) {
	if c.ID == "" {
		c.ID = derivedID(string(c.Provider), c.Title, c.CreatedAt.Format(time.RFC3339Nano))
	}
	for i := range c.Messages {
		m := &c.Messages[i]
		m.ConversationID = c.ID
		m.Seq = i
		if m.ID == "" {
			m.ID = derivedID(c.ID, fmt.Sprint(i))
		}
	}
	if c.CreatedAt.IsZero() && len(c.Messages) > 0 {
		c.CreatedAt = c.Messages[0].CreatedAt
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
		if n := len(c.Messages); n > 0 && c.Messages[n-1].CreatedAt.After(c.UpdatedAt) {
			c.UpdatedAt = c.Messages[n-1].CreatedAt
		}
	}
}

// sortByTime orders messages by timestamp, keeping file order for ties.
func sortByTime(msgs []model.Message) {
	slices.SortStableFunc(msgs, func(a, b model.Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}
