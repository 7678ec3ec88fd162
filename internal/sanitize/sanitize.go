// Package sanitize cleans user-supplied brief text before it is stored.
// Uses bluemonday to strip dangerous HTML (script tags, event handlers,
// javascript: URLs) from rich fields and all markup from plain-text fields.
package sanitize

import (
	"encoding/json"
	"errors"
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// ErrNotObject is returned by ContentJSON when the document is not a JSON
// object.
var ErrNotObject = errors.New("content must be a JSON object")

var (
	richPolicy  *bluemonday.Policy
	plainPolicy *bluemonday.Policy
	policyOnce  sync.Once
)

func policies() (*bluemonday.Policy, *bluemonday.Policy) {
	policyOnce.Do(func() {
		richPolicy = bluemonday.UGCPolicy()

		// Editor output uses classes for alignment and code blocks.
		richPolicy.AllowAttrs("class").Globally()
		richPolicy.AllowElements("table", "thead", "tbody", "tfoot", "tr", "td", "th", "caption")
		richPolicy.AllowAttrs("colspan", "rowspan").OnElements("td", "th")
		richPolicy.RequireNoFollowOnLinks(true)

		plainPolicy = bluemonday.StrictPolicy()
	})
	return richPolicy, plainPolicy
}

// HTML sanitizes rich HTML (brief footers) while preserving safe formatting
// tags. The output is safe to render via innerHTML or templ.Raw.
func HTML(input string) string {
	if input == "" {
		return ""
	}
	rich, _ := policies()
	return rich.Sanitize(input)
}

// Text strips every tag from a plain-text field (headers, comments) and
// trims surrounding whitespace. Entities escaped by the policy are decoded
// again so "Q3 & Q4" survives unchanged.
func Text(input string) string {
	if input == "" {
		return ""
	}
	_, plain := policies()
	return strings.TrimSpace(html.UnescapeString(plain.Sanitize(input)))
}

// allowedSchemes are the link targets kept in rich-text documents.
var allowedSchemes = []string{"http://", "https://", "mailto:"}

// ContentJSON validates a ProseMirror-style JSON document and removes link
// marks that point at anything other than http, https or mailto targets.
// Text node values are stripped of markup. The document must be an object.
func ContentJSON(raw json.RawMessage) (json.RawMessage, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, ErrNotObject
		}
		return nil, err
	}
	if doc == nil {
		return nil, ErrNotObject
	}

	cleanNode(doc)

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// cleanNode recursively walks a document node.
func cleanNode(node map[string]any) {
	if node["type"] == "text" {
		if text, ok := node["text"].(string); ok {
			node["text"] = Text(text)
		}
	}
	if marks, ok := node["marks"].([]any); ok {
		node["marks"] = cleanMarks(marks)
	}

	content, ok := node["content"].([]any)
	if !ok {
		return
	}
	for _, child := range content {
		if childMap, ok := child.(map[string]any); ok {
			cleanNode(childMap)
		}
	}
}

// cleanMarks drops link marks with unsafe href values.
func cleanMarks(marks []any) []any {
	kept := make([]any, 0, len(marks))
	for _, m := range marks {
		markMap, ok := m.(map[string]any)
		if !ok {
			continue
		}
		if markMap["type"] == "link" && !safeHref(markMap) {
			continue
		}
		kept = append(kept, markMap)
	}
	return kept
}

func safeHref(mark map[string]any) bool {
	attrs, ok := mark["attrs"].(map[string]any)
	if !ok {
		return false
	}
	href, ok := attrs["href"].(string)
	if !ok {
		return false
	}
	href = strings.ToLower(strings.TrimSpace(href))
	for _, scheme := range allowedSchemes {
		if strings.HasPrefix(href, scheme) {
			return true
		}
	}
	return false
}
