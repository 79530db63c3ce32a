package data

import (
	"bytes"
	"encoding/json"
	"strings"
)

// maxExactInt is the largest integer a float64 represents without loss.
const maxExactInt = 1 << 53

// Document is the untyped, recursively nested unit of data stored in a block.
// Values are maps, []any lists and JSON scalars.
type Document = map[string]any

// Clone returns a deep copy of doc, so callers never alias a stored document.
func Clone(doc Document) Document {
	if doc == nil {
		return nil
	}

	return CloneValue(doc).(Document)
}

// CloneValue deep-copies maps and lists; scalars are returned as is.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(t))
		for k, val := range t {
			result[k] = CloneValue(val)
		}
		return result
	case []any:
		result := make([]any, len(t))
		for i, val := range t {
			result[i] = CloneValue(val)
		}
		return result
	default:
		return v
	}
}

// UnmarshalDocument decodes a JSON object into a Document. Numbers decode as
// float64 unless that loses precision: larger integers become int64, and
// integers beyond int64 keep their literal as json.Number.
func UnmarshalDocument(b []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}

	NormalizeNumbers(doc)
	return doc, nil
}

// NormalizeNumbers replaces json.Number values inside v, in place, following
// the rules of UnmarshalDocument, and returns the result.
func NormalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = NormalizeNumbers(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = NormalizeNumbers(val)
		}
		return t
	case json.Number:
		return normalizeNumber(t)
	default:
		return v
	}
}

func normalizeNumber(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		if i >= -maxExactInt && i <= maxExactInt {
			return float64(i)
		}
		return i
	}

	if !strings.ContainsAny(n.String(), ".eE") {
		return n
	}

	if f, err := n.Float64(); err == nil {
		return f
	}
	return n
}
