// Package document defines the structured form of a Pile document and the
// rules that keep front matter in step with its schema.
package document

import (
	"errors"
	"fmt"
)

// ErrInvalidFieldKey is returned when a field that the schema does not
// declare is written.
var ErrInvalidFieldKey = errors.New("invalid field key")

// Document is the structured form exchanged with the codec.
//
// Data is deliberately wider than FrontMatter: a parsed file may carry typed
// values or keys the current schema knows nothing about.
type Document struct {
	Data    map[string]any `json:"data"`
	Content string         `json:"content"`
}

// FrontMatter maps declared field keys to their single-line text values.
type FrontMatter map[string]string

// Resync derives the field set for keys from prev. Values of surviving keys
// are carried over, new keys start empty and keys absent from keys are
// dropped. prev is never modified.
func Resync(prev FrontMatter, keys []string) FrontMatter {
	out := make(FrontMatter, len(keys))
	for _, k := range keys {
		out[k] = prev[k]
	}
	return out
}

// SetField returns a copy of fm with key set to value. The key must already
// be present in fm.
func SetField(fm FrontMatter, key, value string) (FrontMatter, error) {
	if _, ok := fm[key]; !ok {
		return nil, fmt.Errorf("document: set %q: %w", key, ErrInvalidFieldKey)
	}
	out := fm.Clone()
	out[key] = value
	return out, nil
}

// Clone returns a shallow copy. A nil FrontMatter clones to an empty one.
func (fm FrontMatter) Clone() FrontMatter {
	out := make(FrontMatter, len(fm))
	for k, v := range fm {
		out[k] = v
	}
	return out
}

// Data widens the field values to the generic metadata map used by the codec.
func (fm FrontMatter) Data() map[string]any {
	out := make(map[string]any, len(fm))
	for k, v := range fm {
		out[k] = v
	}
	return out
}
