// Package codec converts between the textual form of a document (a fenced
// YAML front matter block followed by the body) and document.Document.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/pile/internal/document"
)

// Delimiter fences the front matter block. It must be the first line of the
// source and close the block on a line of its own.
const Delimiter = "---"

// ErrUnencodableMetadata is returned when a metadata value has no YAML form.
var ErrUnencodableMetadata = errors.New("unencodable metadata")

// Parse splits source into metadata and body. It never fails: a missing,
// unterminated or invalid block leaves Data empty and Content verbatim.
func Parse(source string) document.Document {
	block, body, ok := splitFrontmatter(source)
	if !ok {
		return document.Document{Data: map[string]any{}, Content: source}
	}

	var fm map[string]any
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		// Not a mapping or not YAML at all.
		return document.Document{Data: map[string]any{}, Content: source}
	}
	if fm == nil {
		fm = map[string]any{}
	}
	return document.Document{Data: fm, Content: body}
}

// splitFrontmatter returns the text between the opening and closing
// delimiter lines and everything after the closing line.
func splitFrontmatter(source string) (block, body string, ok bool) {
	first, rest, found := strings.Cut(source, "\n")
	if !found || strings.TrimSuffix(first, "\r") != Delimiter {
		return "", "", false
	}

	offset := 0
	for offset <= len(rest) {
		line := rest[offset:]
		next := len(rest)
		if i := strings.IndexByte(line, '\n'); i >= 0 {
			line = line[:i]
			next = offset + i + 1
		}
		if strings.TrimSuffix(line, "\r") == Delimiter {
			return rest[:offset], rest[next:], true
		}
		if next == len(rest) {
			break
		}
		offset = next
	}
	// No closing delimiter.
	return "", "", false
}

// Serialize renders doc with its metadata keys sorted lexically.
func Serialize(doc document.Document) (string, error) {
	return SerializeOrdered(doc, nil)
}

// SerializeOrdered renders doc with the keys named in order first (in that
// order, skipping any not present in doc.Data) and the remaining keys sorted
// after them. The fences are emitted even when there is no metadata.
func SerializeOrdered(doc document.Document, order []string) (string, error) {
	keys := orderKeys(doc.Data, order)

	var buf strings.Builder
	buf.WriteString(Delimiter + "\n")
	if len(keys) > 0 {
		block, err := encodeBlock(doc.Data, keys)
		if err != nil {
			return "", err
		}
		buf.Write(block)
	}
	buf.WriteString(Delimiter + "\n")
	buf.WriteString(doc.Content)
	return buf.String(), nil
}

func orderKeys(data map[string]any, order []string) []string {
	keys := make([]string, 0, len(data))
	seen := make(map[string]struct{}, len(data))
	for _, k := range order {
		if _, ok := data[k]; !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	var rest []string
	for k := range data {
		if _, ok := seen[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func encodeBlock(data map[string]any, keys []string) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range keys {
		var kn, vn yaml.Node
		if err := kn.Encode(k); err != nil {
			return nil, fmt.Errorf("codec: key %q: %w: %v", k, ErrUnencodableMetadata, err)
		}
		if err := vn.Encode(data[k]); err != nil {
			return nil, fmt.Errorf("codec: value of %q: %w: %v", k, ErrUnencodableMetadata, err)
		}
		root.Content = append(root.Content, &kn, &vn)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("codec: encode: %w: %v", ErrUnencodableMetadata, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("codec: encode: %w", err)
	}
	return buf.Bytes(), nil
}
