package ingest

import (
	"strings"
	"testing"

	"github.com/quernlabs/quern/pkg/models"
)

func TestSanitizeText(t *testing.T) {
	t.Run("normalizes line endings", func(t *testing.T) {
		got := sanitizeText("one\r\ntwo\rthree")
		if got != "one\ntwo\nthree" {
			t.Errorf("expected normalized newlines, got %q", got)
		}
	})

	t.Run("strips control characters", func(t *testing.T) {
		got := sanitizeText("a\x00b\x07c")
		if got != "abc" {
			t.Errorf("expected control characters stripped, got %q", got)
		}
	})

	t.Run("keeps tabs and newlines", func(t *testing.T) {
		got := sanitizeText("col1\tcol2\nrow2")
		if got != "col1\tcol2\nrow2" {
			t.Errorf("expected tabs and newlines preserved, got %q", got)
		}
	})

	t.Run("trims surrounding whitespace", func(t *testing.T) {
		got := sanitizeText("  padded  \n")
		if got != "padded" {
			t.Errorf("expected trimmed text, got %q", got)
		}
	})
}

func TestConvertToMarkdown(t *testing.T) {
	t.Run("plain text passes through", func(t *testing.T) {
		got, err := convertToMarkdown(models.FormatTXT, []byte("hello world\r\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "hello world" {
			t.Errorf("expected passthrough, got %q", got)
		}
	})

	t.Run("markdown passes through", func(t *testing.T) {
		got, err := convertToMarkdown(models.FormatMD, []byte("# Title\n\nBody."))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "# Title\n\nBody." {
			t.Errorf("expected passthrough, got %q", got)
		}
	})

	t.Run("heavy formats are refused", func(t *testing.T) {
		if _, err := convertToMarkdown(models.FormatPDF, []byte("%PDF-1.4")); err == nil {
			t.Error("expected error for heavy format")
		}
	})
}

func TestJSONToMarkdown(t *testing.T) {
	t.Run("scalar fields become labeled bullets", func(t *testing.T) {
		got, err := jsonToMarkdown([]byte(`{"name":"quern","version":2,"stable":true,"notes":null}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{
			"- **name:** quern",
			"- **version:** 2",
			"- **stable:** true",
			"- **notes:** null",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("expected %q in output:\n%s", want, got)
			}
		}
	})

	t.Run("keys render in sorted order", func(t *testing.T) {
		got, err := jsonToMarkdown([]byte(`{"zebra":1,"apple":2}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Index(got, "apple") > strings.Index(got, "zebra") {
			t.Errorf("expected sorted keys, got:\n%s", got)
		}
	})

	t.Run("nested objects become headings", func(t *testing.T) {
		got, err := jsonToMarkdown([]byte(`{"meta":{"tags":["a","b"]},"title":"Doc"}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"## meta", "### tags", "- a\n- b", "- **title:** Doc"} {
			if !strings.Contains(got, want) {
				t.Errorf("expected %q in output:\n%s", want, got)
			}
		}
	})

	t.Run("large numbers keep their precision", func(t *testing.T) {
		got, err := jsonToMarkdown([]byte(`{"id":9007199254740993}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(got, "9007199254740993") {
			t.Errorf("expected exact integer, got:\n%s", got)
		}
	})

	t.Run("top-level scalar becomes a paragraph", func(t *testing.T) {
		got, err := jsonToMarkdown([]byte(`"just a string"`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "just a string" {
			t.Errorf("expected paragraph, got %q", got)
		}
	})

	t.Run("invalid JSON is an error", func(t *testing.T) {
		if _, err := jsonToMarkdown([]byte(`{"broken":`)); err == nil {
			t.Error("expected error for invalid JSON")
		}
	})
}
