package document

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ErrDuplicateFieldKey is returned by Schema.Validate when two fields share a key.
var ErrDuplicateFieldKey = errors.New("duplicate field key")

// FieldType tags the kind of a schema field. Only FieldText is defined, but
// the tag set is open so new kinds do not change the schema shape.
type FieldType string

// Field types.
const (
	FieldText FieldType = "text"
)

// Field declares one front matter key.
type Field struct {
	Key  string    `yaml:"key" json:"key"`
	Type FieldType `yaml:"type" json:"type"`
}

// Validate validates the field declaration. An empty type means text.
func (f *Field) Validate() error {
	if f.Type == "" {
		f.Type = FieldText
	}
	return validation.ValidateStruct(f,
		validation.Field(&f.Key, validation.Required, validation.Length(1, 128)),
		validation.Field(&f.Type, validation.Required, validation.In(FieldText)),
	)
}

// Schema is the ordered set of fields a document exposes for editing.
type Schema []Field

// TextSchema builds a schema of text fields in the given key order.
func TextSchema(keys ...string) Schema {
	s := make(Schema, 0, len(keys))
	for _, k := range keys {
		s = append(s, Field{Key: k, Type: FieldText})
	}
	return s
}

// Keys returns the field keys in declaration order.
func (s Schema) Keys() []string {
	keys := make([]string, len(s))
	for i, f := range s {
		keys[i] = f.Key
	}
	return keys
}

// Has reports whether key is declared.
func (s Schema) Has(key string) bool {
	for _, f := range s {
		if f.Key == key {
			return true
		}
	}
	return false
}

// Validate checks every field and rejects duplicate keys.
func (s Schema) Validate() error {
	seen := make(map[string]struct{}, len(s))
	for i := range s {
		if err := s[i].Validate(); err != nil {
			return fmt.Errorf("schema: field %d: %w", i, err)
		}
		if _, dup := seen[s[i].Key]; dup {
			return fmt.Errorf("schema: %q: %w", s[i].Key, ErrDuplicateFieldKey)
		}
		seen[s[i].Key] = struct{}{}
	}
	return nil
}
