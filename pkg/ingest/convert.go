package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/quernlabs/quern/pkg/models"
)

// maxHeadingDepth caps how deep JSON object keys become markdown
// headings before falling back to bold labels.
const maxHeadingDepth = 4

// convertToMarkdown renders a fast-lane upload to markdown. Heavy
// formats never reach this function; they go through the worker pool.
func convertToMarkdown(format models.DocumentFormat, content []byte) (string, error) {
	switch format {
	case models.FormatTXT, models.FormatMD:
		return sanitizeText(string(content)), nil
	case models.FormatJSON:
		return jsonToMarkdown(content)
	default:
		return "", fmt.Errorf("format %s cannot be converted in-process", format)
	}
}

// sanitizeText normalizes line endings and strips control characters
// that would corrupt chunk boundaries or the stored markdown.
func sanitizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// jsonToMarkdown renders a JSON document as markdown: object keys
// become headings or bold labels, arrays become bullet lists, scalars
// become paragraphs. Keys are emitted in sorted order so the rendering
// is deterministic.
func jsonToMarkdown(content []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}

	var b strings.Builder
	renderJSONValue(&b, v, 0)
	return strings.TrimSpace(b.String()), nil
}

func renderJSONValue(b *strings.Builder, v any, depth int) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			child := val[k]
			if isJSONScalar(child) {
				fmt.Fprintf(b, "- **%s:** %s\n", k, jsonScalarString(child))
				continue
			}
			if depth < maxHeadingDepth {
				fmt.Fprintf(b, "%s %s\n\n", strings.Repeat("#", depth+2), k)
			} else {
				fmt.Fprintf(b, "**%s**\n\n", k)
			}
			renderJSONValue(b, child, depth+1)
		}
		b.WriteString("\n")

	case []any:
		for _, item := range val {
			if isJSONScalar(item) {
				fmt.Fprintf(b, "- %s\n", jsonScalarString(item))
			} else {
				renderJSONValue(b, item, depth)
			}
		}
		b.WriteString("\n")

	default:
		fmt.Fprintf(b, "%s\n\n", jsonScalarString(v))
	}
}

func isJSONScalar(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return false
	}
	return true
}

func jsonScalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return sanitizeText(val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	case json.Number:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
