package proofread

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Change is one edit reported by the model.
type Change struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

// Correction is the outcome of a proofreading call.
type Correction struct {
	Corrected string   `json:"corrected"`
	Changes   []Change `json:"changes"`
}

// SchemaError explains why a reply could not be read as the requested JSON object.
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string { return "proofread: reply is not the requested json: " + e.Err.Error() }
func (e *SchemaError) Unwrap() error { return e.Err }

// Reply is either Structured or RawFallback.
type Reply interface {
	Correction() Correction
	reply()
}

// Structured is a reply that matched the requested schema.
type Structured struct {
	Value Correction
}

func (s Structured) Correction() Correction { return s.Value }
func (Structured) reply()                   {}

// RawFallback keeps the whole reply as the corrected text with no change list.
type RawFallback struct {
	Text  string
	Cause *SchemaError
}

func (r RawFallback) Correction() Correction { return Correction{Corrected: r.Text, Changes: []Change{}} }
func (RawFallback) reply()                   {}

// payload mirrors the requested object. Pointers mark optional fields.
// Changes is decoded separately so a malformed change list never costs the
// corrected text.
type payload struct {
	Corrected *string         `json:"corrected"`
	Changes   json.RawMessage `json:"changes"`
}

type changeEntry struct {
	From   any `json:"from"`
	To     any `json:"to"`
	Reason any `json:"reason"`
}

// ParseReply reads a model reply. The strict pass accepts a JSON object with a
// non-empty "corrected" string, optionally wrapped in a Markdown code fence.
// Anything else falls back to the raw text.
func ParseReply(text string) Reply {
	c, err := parseStrict(text)
	if err != nil {
		return RawFallback{Text: strings.TrimSpace(text), Cause: &SchemaError{Err: err}}
	}
	return Structured{Value: c}
}

func parseStrict(text string) (Correction, error) {
	body := stripFence(text)
	if !strings.HasPrefix(body, "{") {
		return Correction{}, errors.New("not a json object")
	}
	var p payload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return Correction{}, err
	}
	if p.Corrected == nil {
		return Correction{}, errors.New(`missing "corrected"`)
	}
	corrected := strings.TrimSpace(*p.Corrected)
	if corrected == "" {
		return Correction{}, errors.New(`empty "corrected"`)
	}
	var entries []json.RawMessage
	if len(p.Changes) > 0 {
		// anything but an array means no usable change log
		_ = json.Unmarshal(p.Changes, &entries)
	}
	changes := make([]Change, 0, len(entries))
	for _, raw := range entries {
		if ch, ok := parseChange(raw); ok {
			changes = append(changes, ch)
		}
	}
	return Correction{Corrected: corrected, Changes: changes}, nil
}

// parseChange reads one change entry. Entries that are not objects, or that
// name neither a from nor a to word, are skipped.
func parseChange(raw json.RawMessage) (Change, bool) {
	var e changeEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Change{}, false
	}
	ch := Change{From: scalar(e.From), To: scalar(e.To), Reason: scalar(e.Reason)}
	if ch.From == "" && ch.To == "" {
		return Change{}, false
	}
	return ch, true
}

// scalar renders a JSON string, number or bool as text. Other values are dropped.
func scalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64, bool:
		return fmt.Sprint(x)
	default:
		return ""
	}
}

// stripFence removes a surrounding ```json ... ``` block.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
