package ingest

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/quernlabs/quern/pkg/models"
)

// markdownSection is a run of body text under one heading path.
// start is the rune offset of the text within the whole document.
type markdownSection struct {
	heading     string
	breadcrumbs []string
	text        string
	start       int
}

type headingCrumb struct {
	level int
	title string
}

type sectionLine struct {
	text  string
	start int
}

// chunkMarkdown splits markdown into retrieval chunks: sections are cut
// along the heading structure, then oversized sections are windowed at
// ChunkSize with ChunkOverlap runes of context carried between windows.
// Trailing window fragments shorter than MinChunkSize are dropped.
func chunkMarkdown(md string, cfg models.ProfileConfig) []CallbackChunk {
	var chunks []CallbackChunk
	for _, sec := range splitSections(md) {
		chunks = append(chunks, chunkSection(sec, cfg)...)
	}
	for i := range chunks {
		chunks[i].Index = i
	}
	return chunks
}

// splitSections walks the markdown line by line, maintaining the
// heading stack. Text before the first heading becomes a section with
// no breadcrumbs.
func splitSections(md string) []markdownSection {
	var (
		sections []markdownSection
		crumbs   []headingCrumb
		body     []sectionLine
		offset   int
	)

	flush := func() {
		defer func() { body = nil }()

		first, last := -1, -1
		for i, line := range body {
			if strings.TrimSpace(line.text) == "" {
				continue
			}
			if first < 0 {
				first = i
			}
			last = i
		}
		if first < 0 {
			return
		}

		var lines []string
		for _, line := range body[first : last+1] {
			lines = append(lines, line.text)
		}
		sec := markdownSection{
			text:  strings.Join(lines, "\n"),
			start: body[first].start,
		}
		if len(crumbs) > 0 {
			sec.heading = crumbs[len(crumbs)-1].title
			for _, c := range crumbs {
				sec.breadcrumbs = append(sec.breadcrumbs, c.title)
			}
		}
		sections = append(sections, sec)
	}

	for _, line := range strings.Split(md, "\n") {
		if level, title, ok := parseHeading(line); ok {
			flush()
			for len(crumbs) > 0 && crumbs[len(crumbs)-1].level >= level {
				crumbs = crumbs[:len(crumbs)-1]
			}
			crumbs = append(crumbs, headingCrumb{level: level, title: title})
		} else {
			body = append(body, sectionLine{text: line, start: offset})
		}
		offset += utf8.RuneCountInString(line) + 1
	}
	flush()
	return sections
}

// parseHeading recognizes ATX headings: one to six hashes, a space,
// and a non-empty title.
func parseHeading(line string) (int, string, bool) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || level >= len(line) || line[level] != ' ' {
		return 0, "", false
	}
	title := strings.TrimSpace(line[level+1:])
	if title == "" {
		return 0, "", false
	}
	return level, title, true
}

func chunkSection(sec markdownSection, cfg models.ProfileConfig) []CallbackChunk {
	runes := []rune(sec.text)

	type span struct{ start, end int }
	var spans []span

	if len(runes) <= cfg.ChunkSize {
		spans = []span{{0, len(runes)}}
	} else {
		pos := 0
		for pos < len(runes) {
			end := pos + cfg.ChunkSize
			if end >= len(runes) {
				end = len(runes)
			} else {
				end = breakPoint(runes, pos, end)
			}
			spans = append(spans, span{start: pos, end: end})
			if end == len(runes) {
				break
			}
			next := end - cfg.ChunkOverlap
			if next <= pos {
				next = pos + 1
			}
			pos = next
		}

		if len(spans) > 1 {
			last := spans[len(spans)-1]
			s, e := trimSpan(runes, last.start, last.end)
			if e-s < cfg.MinChunkSize {
				spans = spans[:len(spans)-1]
			}
		}
	}

	var out []CallbackChunk
	for _, sp := range spans {
		s, e := trimSpan(runes, sp.start, sp.end)
		if e <= s {
			continue
		}
		content := string(runes[s:e])
		out = append(out, draftChunk(sec, content, sec.start+s, sec.start+e))
	}
	return out
}

// breakPoint finds a natural cut no earlier than four fifths into the
// window: sentence end or newline first, then any whitespace, then a
// hard cut at the limit. The caller guarantees limit < len(runes).
func breakPoint(runes []rune, start, limit int) int {
	floor := start + (limit-start)*4/5
	for i := limit; i > floor; i-- {
		r := runes[i-1]
		if r == '\n' {
			return i
		}
		if (r == '.' || r == '!' || r == '?') && unicode.IsSpace(runes[i]) {
			return i
		}
	}
	for i := limit; i > floor; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return limit
}

func trimSpan(runes []rune, start, end int) (int, int) {
	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	return start, end
}

func draftChunk(sec markdownSection, content string, charStart, charEnd int) CallbackChunk {
	score, flags := scoreChunk(content)
	completeness := CompletenessPartial
	if endsTerminated(content) {
		completeness = CompletenessComplete
	}

	meta := &ChunkMetadata{
		Breadcrumbs:  sec.breadcrumbs,
		CharStart:    &charStart,
		CharEnd:      &charEnd,
		ChunkType:    "text",
		TokenCount:   estimateTokens(content),
		QualityScore: &score,
		QualityFlags: flags,
		Completeness: completeness,
	}
	if sec.heading != "" {
		h := sec.heading
		meta.Heading = &h
		meta.HasTitle = true
		meta.Location = &models.ChunkLocation{Chapter: &h}
	}
	return CallbackChunk{Content: content, Metadata: meta}
}
