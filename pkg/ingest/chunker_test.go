package ingest

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/quernlabs/quern/pkg/models"
)

func TestParseHeading(t *testing.T) {
	cases := []struct {
		line  string
		level int
		title string
		ok    bool
	}{
		{"# Title", 1, "Title", true},
		{"### Deep Section", 3, "Deep Section", true},
		{"###### Six", 6, "Six", true},
		{"####### Seven", 0, "", false},
		{"#no space", 0, "", false},
		{"# ", 0, "", false},
		{"plain text", 0, "", false},
		{"", 0, "", false},
	}
	for _, tc := range cases {
		level, title, ok := parseHeading(tc.line)
		if level != tc.level || title != tc.title || ok != tc.ok {
			t.Errorf("parseHeading(%q) = (%d, %q, %v), want (%d, %q, %v)",
				tc.line, level, title, ok, tc.level, tc.title, tc.ok)
		}
	}
}

func TestSplitSections(t *testing.T) {
	md := strings.Join([]string{
		"intro text",
		"",
		"# One",
		"alpha",
		"",
		"## Two",
		"beta",
		"",
		"# Three",
		"gamma",
	}, "\n")

	sections := splitSections(md)
	if len(sections) != 4 {
		t.Fatalf("expected 4 sections, got %d", len(sections))
	}

	if sections[0].heading != "" || len(sections[0].breadcrumbs) != 0 {
		t.Errorf("preamble should carry no heading, got %q %v",
			sections[0].heading, sections[0].breadcrumbs)
	}
	if sections[0].text != "intro text" || sections[0].start != 0 {
		t.Errorf("unexpected preamble %q at %d", sections[0].text, sections[0].start)
	}

	if sections[1].heading != "One" || strings.Join(sections[1].breadcrumbs, ">") != "One" {
		t.Errorf("unexpected section 1: %q %v", sections[1].heading, sections[1].breadcrumbs)
	}
	if sections[2].heading != "Two" || strings.Join(sections[2].breadcrumbs, ">") != "One>Two" {
		t.Errorf("expected nested breadcrumbs, got %v", sections[2].breadcrumbs)
	}

	// A sibling H1 pops the whole stack.
	if sections[3].heading != "Three" || strings.Join(sections[3].breadcrumbs, ">") != "Three" {
		t.Errorf("expected reset breadcrumbs, got %v", sections[3].breadcrumbs)
	}

	// Offsets address the original document.
	runes := []rune(md)
	for i, sec := range sections {
		end := sec.start + utf8.RuneCountInString(sec.text)
		if string(runes[sec.start:end]) != sec.text {
			t.Errorf("section %d offset mismatch at %d", i, sec.start)
		}
	}
}

func TestSplitSectionsHeadingOnly(t *testing.T) {
	sections := splitSections("# Lonely\n\n## Also Empty")
	if len(sections) != 0 {
		t.Errorf("expected no sections for heading-only input, got %d", len(sections))
	}
}

func TestChunkMarkdownSmallSection(t *testing.T) {
	cfg := models.DefaultProfileConfig()
	md := "# Guide\nThe short body fits in one chunk."

	chunks := chunkMarkdown(md, cfg)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}

	c := chunks[0]
	if c.Index != 0 {
		t.Errorf("expected index 0, got %d", c.Index)
	}
	if c.Content != "The short body fits in one chunk." {
		t.Errorf("unexpected content %q", c.Content)
	}
	if c.Metadata == nil {
		t.Fatal("expected metadata")
	}
	if c.Metadata.Heading == nil || *c.Metadata.Heading != "Guide" {
		t.Errorf("expected heading Guide, got %v", c.Metadata.Heading)
	}
	if !c.Metadata.HasTitle {
		t.Error("expected HasTitle")
	}
	if c.Metadata.Completeness != CompletenessComplete {
		t.Errorf("expected complete, got %q", c.Metadata.Completeness)
	}
	if c.Metadata.TokenCount <= 0 {
		t.Error("expected a token estimate")
	}
	if c.Metadata.Location == nil || c.Metadata.Location.Chapter == nil || *c.Metadata.Location.Chapter != "Guide" {
		t.Errorf("expected chapter location, got %+v", c.Metadata.Location)
	}
}

func TestChunkMarkdownWindowsLongSection(t *testing.T) {
	cfg := models.DefaultProfileConfig()
	cfg.ChunkSize = 100
	cfg.ChunkOverlap = 20
	cfg.MinChunkSize = 10

	md := "# Long\n" + strings.TrimSpace(strings.Repeat("Sentences accumulate in this section body. ", 10))

	chunks := chunkMarkdown(md, cfg)
	if len(chunks) < 3 {
		t.Fatalf("expected multiple windows, got %d", len(chunks))
	}

	runes := []rune(md)
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		if n := utf8.RuneCountInString(c.Content); n > cfg.ChunkSize {
			t.Errorf("chunk %d has %d runes, cap is %d", i, n, cfg.ChunkSize)
		}
		if c.Metadata == nil || c.Metadata.CharStart == nil || c.Metadata.CharEnd == nil {
			t.Fatalf("chunk %d missing offsets", i)
		}
		got := string(runes[*c.Metadata.CharStart:*c.Metadata.CharEnd])
		if got != c.Content {
			t.Errorf("chunk %d offsets do not address its content", i)
		}
	}

	// Consecutive windows share overlap.
	for i := 1; i < len(chunks); i++ {
		prevEnd := *chunks[i-1].Metadata.CharEnd
		start := *chunks[i].Metadata.CharStart
		if start >= prevEnd {
			t.Errorf("expected window %d to overlap its predecessor (start %d, previous end %d)",
				i, start, prevEnd)
		}
	}
}

func TestChunkMarkdownDropsTrailingFragment(t *testing.T) {
	cfg := models.DefaultProfileConfig()
	cfg.ChunkSize = 100
	cfg.ChunkOverlap = 0
	cfg.MinChunkSize = 50

	md := strings.Repeat("a", 99) + " " + strings.Repeat("b", 20)
	chunks := chunkMarkdown(md, cfg)
	if len(chunks) != 1 {
		t.Fatalf("expected trailing fragment dropped, got %d chunks", len(chunks))
	}
	if strings.Contains(chunks[0].Content, "b") {
		t.Errorf("fragment leaked into %q", chunks[0].Content)
	}
}

func TestChunkMarkdownKeepsShortStandaloneSection(t *testing.T) {
	cfg := models.DefaultProfileConfig()

	chunks := chunkMarkdown("# Note\nTiny.", cfg)
	if len(chunks) != 1 {
		t.Fatalf("expected short standalone section kept, got %d chunks", len(chunks))
	}
}

func TestChunkMarkdownEmptyInput(t *testing.T) {
	if chunks := chunkMarkdown("", models.DefaultProfileConfig()); len(chunks) != 0 {
		t.Errorf("expected no chunks, got %d", len(chunks))
	}
	if chunks := chunkMarkdown("   \n\n  ", models.DefaultProfileConfig()); len(chunks) != 0 {
		t.Errorf("expected no chunks for blank input, got %d", len(chunks))
	}
}

func TestChunkMarkdownPreambleHasNoHeading(t *testing.T) {
	chunks := chunkMarkdown("Leading prose before any heading.", models.DefaultProfileConfig())
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Metadata.Heading != nil || chunks[0].Metadata.HasTitle {
		t.Error("preamble chunk should carry no heading")
	}
}
