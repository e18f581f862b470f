package curated

import (
	"regexp"
	"strings"
)

// Section is one "## " header and the body lines that follow it.
// Line numbers are 0-based indices into Index.Lines; BodyEnd is exclusive.
type Section struct {
	Header     string
	HeaderLine int
	BodyStart  int
	BodyEnd    int
}

// Index is the parsed shape of a curated document.
type Index struct {
	Lines    []string
	Sections []Section
	// Duplicates lists headers that appear more than once.
	Duplicates []string
	// TrailingRule is the line of the last "---" rule with no header after
	// it (the footer boundary), or -1.
	TrailingRule int
}

var placeholderRe = regexp.MustCompile(`^\s*- \(.*\)\s*$`)

func isHeader(line string) bool {
	return strings.HasPrefix(line, "## ")
}

func isRule(line string) bool {
	return strings.HasPrefix(line, "---")
}

func isBoundary(line string) bool {
	return isHeader(line) || isRule(line)
}

func isPlaceholder(line string) bool {
	return placeholderRe.MatchString(line)
}

// Parse builds the section index in a single pass. A section body runs until
// the next header, a horizontal rule, or the end of the document.
func Parse(text string) *Index {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")

	ix := &Index{TrailingRule: -1}
	if text != "" {
		ix.Lines = strings.Split(text, "\n")
	}

	seen := map[string]bool{}
	open := -1
	closeOpen := func(end int) {
		if open >= 0 {
			ix.Sections[open].BodyEnd = end
			open = -1
		}
	}

	for i, line := range ix.Lines {
		switch {
		case isHeader(line):
			closeOpen(i)
			header := strings.TrimRight(line, " \t")
			if seen[header] {
				ix.Duplicates = append(ix.Duplicates, header)
			}
			seen[header] = true
			ix.Sections = append(ix.Sections, Section{
				Header:     header,
				HeaderLine: i,
				BodyStart:  i + 1,
			})
			open = len(ix.Sections) - 1
			ix.TrailingRule = -1
		case isRule(line):
			closeOpen(i)
			ix.TrailingRule = i
		}
	}
	closeOpen(len(ix.Lines))

	return ix
}

// Find returns the first section with the given header.
func (ix *Index) Find(header string) (Section, bool) {
	header = strings.TrimRight(header, " \t")
	for _, s := range ix.Sections {
		if s.Header == header {
			return s, true
		}
	}
	return Section{}, false
}

// Body returns the body lines of s.
func (ix *Index) Body(s Section) []string {
	return ix.Lines[s.BodyStart:s.BodyEnd]
}

// String renders the lines with a single trailing newline.
func (ix *Index) String() string {
	return strings.Join(ix.Lines, "\n") + "\n"
}

// appendBullet adds "- content" as the last line of s, dropping placeholder
// bullets and keeping one blank line before the following boundary.
func (ix *Index) appendBullet(s Section, content string) {
	var body []string
	for _, line := range ix.Body(s) {
		if isPlaceholder(line) {
			continue
		}
		body = append(body, line)
	}
	body = trimTrailingBlank(body)
	if len(body) == 0 {
		body = []string{""}
	}
	body = append(body, "- "+content)
	if s.BodyEnd < len(ix.Lines) {
		body = append(body, "")
	}

	ix.Lines = splice(ix.Lines, s.BodyStart, s.BodyEnd, body)
}

// addSection appends a new section with one bullet, before the footer rule
// when the document has one.
func (ix *Index) addSection(header, content string) {
	block := []string{header, "", "- " + content}

	if ix.TrailingRule >= 0 {
		before := trimTrailingBlank(append([]string(nil), ix.Lines[:ix.TrailingRule]...))
		if len(before) > 0 {
			before = append(before, "")
		}
		out := append(before, block...)
		out = append(out, "")
		ix.Lines = append(out, ix.Lines[ix.TrailingRule:]...)
		return
	}

	lines := trimTrailingBlank(ix.Lines)
	if len(lines) > 0 {
		lines = append(lines, "")
	}
	ix.Lines = append(lines, block...)
}

func trimTrailingBlank(lines []string) []string {
	end := len(lines)
	for end > 0 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[:end]
}

func splice(lines []string, start, end int, repl []string) []string {
	out := make([]string, 0, len(lines)-(end-start)+len(repl))
	out = append(out, lines[:start]...)
	out = append(out, repl...)
	out = append(out, lines[end:]...)
	return out
}
