package extraction

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// stripFence removes a wrapping markdown code fence, with or without a
// language tag after the opening backticks. Text without a fence is returned
// unchanged apart from whitespace trimming.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	// Optional language tag (e.g. "json") directly after the opening fence
	i := 0
	for i < len(text) && isTagByte(text[i]) {
		i++
	}
	text = strings.TrimSpace(text[i:])
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func isTagByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// decodeRecord parses the model's text response as a JSON object. Models
// occasionally wrap the object in an array; the first element is used then,
// and an empty array yields an empty record.
func decodeRecord(text string) (Record, error) {
	text = stripFence(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrInvalidResponse)
	}

	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	switch t := v.(type) {
	case map[string]any:
		return Record(t), nil
	case []any:
		if len(t) == 0 {
			return Record{}, nil
		}
		if m, ok := t[0].(map[string]any); ok {
			return Record(m), nil
		}
		return nil, fmt.Errorf("%w: array does not contain an object", ErrInvalidResponse)
	default:
		return nil, fmt.Errorf("%w: expected a JSON object, got %T", ErrInvalidResponse, v)
	}
}

// conform maps a record onto the fixed column set: keys outside the set are
// dropped, missing columns become nil. A nil or empty column set passes the
// record through unchanged.
func conform(rec Record, columns []string) Record {
	if len(columns) == 0 {
		return rec
	}
	out := make(Record, len(columns))
	for _, c := range columns {
		if v, ok := rec[c]; ok {
			out[c] = v
		} else {
			out[c] = nil
		}
	}
	return out
}

// recordFromText runs the full post-processing chain on raw model output:
// fence stripping, JSON decoding, schema validation and column conformance.
func recordFromText(text string, columns []string) (Record, error) {
	rec, err := decodeRecord(text)
	if err != nil {
		return nil, err
	}
	if len(columns) > 0 {
		if err := validateColumns(rec, columns); err != nil {
			slog.Warn("Model response violates column schema", "error", err)
		}
		rec = conform(rec, columns)
	}
	return rec, nil
}
