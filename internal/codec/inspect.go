package codec

import (
	"regexp"
	"strings"

	"github.com/starford/pile/internal/document"
)

var (
	mediaRe = regexp.MustCompile(`!\[[^\]]*\]\(([^)\s]+)\)`)
	tagRe   = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
)

// Summary holds what the index needs to know about a document.
type Summary struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
	Media []string `json:"media"`
}

// Inspect derives title, tags and embedded media URLs from doc.
func Inspect(doc document.Document) Summary {
	return Summary{
		Title: deriveTitle(doc.Data, doc.Content),
		Tags:  extractTags(doc.Content, doc.Data),
		Media: extractMedia(doc.Content),
	}
}

// extractMedia returns the deduplicated targets of ![alt](url) references.
func extractMedia(body string) []string {
	matches := mediaRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target := strings.TrimSpace(m[1])
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// extractTags collects tags from the front matter "tags" field (a YAML list
// or a comma separated string) followed by inline #tags from the body.
func extractTags(body string, data map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	switch v := data["tags"].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			add(s)
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// deriveTitle returns the front matter "title" if set, otherwise the first
// H1 heading, otherwise the empty string.
func deriveTitle(data map[string]any, body string) string {
	if s, ok := data["title"].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
