package segmenter

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

const DefaultMaxClauseChars = 2000

var (
	paragraphBreak = regexp.MustCompile(`(?:\r?\n){2,}`)
	headingLine    = regexp.MustCompile(`(?i)^(?:(?:section|article|clause|schedule)\s+)?[0-9]+(?:\.[0-9]+)*\.?(?:\s*[-–—:]\s*|\s+)(\S.*)$`)
)

const (
	maxHeadingChars = 80
	maxHeadingWords = 6
)

// Lowercase words allowed inside a title, as in "Limitation of Liability".
var titleConnectors = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "the": {}, "of": {}, "or": {},
	"to": {}, "for": {}, "in": {}, "on": {}, "by": {}, "&": {},
}

// Segmenter splits contract text into clauses on blank-line boundaries.
// Parts longer than MaxClauseChars runes are cut into fixed windows.
type Segmenter struct {
	MaxClauseChars int
	MergeHeadings  bool
}

func New(maxClauseChars int, mergeHeadings bool) *Segmenter {
	if maxClauseChars <= 0 {
		maxClauseChars = DefaultMaxClauseChars
	}
	return &Segmenter{
		MaxClauseChars: maxClauseChars,
		MergeHeadings:  mergeHeadings,
	}
}

func (s *Segmenter) Segment(text string) []domain.Clause {
	parts := s.paragraphs(text)
	if len(parts) == 0 {
		return nil
	}

	out := make([]domain.Clause, 0, len(parts))
	next := 1
	emit := func(chunk string) {
		if strings.TrimSpace(chunk) == "" {
			return
		}
		out = append(out, domain.Clause{ID: "c" + strconv.Itoa(next), Text: chunk})
		next++
	}

	for _, part := range parts {
		if utf8.RuneCountInString(part) <= s.MaxClauseChars {
			emit(part)
			continue
		}
		runes := []rune(part)
		for start := 0; start < len(runes); start += s.MaxClauseChars {
			end := start + s.MaxClauseChars
			if end > len(runes) {
				end = len(runes)
			}
			emit(string(runes[start:end]))
		}
	}
	return out
}

// paragraphs returns the trimmed, non-empty parts of text. With MergeHeadings
// a bare numbered heading is joined to the next non-heading paragraph; a
// heading followed by another heading stays on its own.
func (s *Segmenter) paragraphs(text string) []string {
	raw := paragraphBreak.Split(text, -1)
	out := make([]string, 0, len(raw))
	pending := ""
	for _, part := range raw {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if s.MergeHeadings && IsHeading(part) {
			if pending != "" {
				out = append(out, pending)
			}
			pending = part
			continue
		}
		if pending != "" {
			part = pending + "\n\n" + part
			pending = ""
		}
		out = append(out, part)
	}
	if pending != "" {
		out = append(out, pending)
	}
	return out
}

// IsHeading reports whether part is a short numbered section title such as
// "1. Liability" or "Section 4 - Fees". A numbered sentence like
// "3. Fees are payable within 30 days" is not a title.
func IsHeading(part string) bool {
	if strings.ContainsAny(part, "\r\n") {
		return false
	}
	if utf8.RuneCountInString(part) > maxHeadingChars {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(part)
	if strings.ContainsRune(".;:!?,", last) {
		return false
	}
	m := headingLine.FindStringSubmatch(part)
	if m == nil {
		return false
	}
	words := strings.Fields(m[1])
	if len(words) == 0 || len(words) > maxHeadingWords {
		return false
	}
	for i, word := range words {
		first, _ := utf8.DecodeRuneInString(word)
		if !unicode.IsLetter(first) || unicode.IsUpper(first) {
			continue
		}
		if _, ok := titleConnectors[strings.ToLower(word)]; ok && i > 0 {
			continue
		}
		return false
	}
	return true
}
