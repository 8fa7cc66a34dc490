// Package segment splits a raw text blob into per-question answers using a
// numbering-pattern heuristic.
package segment

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/anandks/papergrader/internal/model"
)

// markerRe recognizes question markers at the start of a line: an optional
// "Q"/"Question" prefix, a number, and a separator (":", ".", ")" or "-").
// Anchoring at line start is the primary defense against numbers that appear
// inside an answer ("128-bit", "1945"); it is a heuristic, not a guarantee.
var markerRe = regexp.MustCompile(`(?im)^(?:Q|Question)?\s*(\d+)\s*[:.)-]\s*`)

// Parse splits raw text into an AnswerMap. The answer for marker i spans from
// the end of marker i to the start of marker i+1 (the last one runs to the end
// of the input), trimmed of surrounding whitespace. Source text within each
// span is preserved verbatim.
//
// If no markers are found the entire trimmed input becomes the answer to the
// synthetic identifier "1". Parse never fails.
func Parse(raw string) *model.AnswerMap {
	answers := model.NewAnswerMap()

	matches := markerRe.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		slog.Debug("no question markers found, treating input as a single answer")
		answers.Set("1", strings.TrimSpace(raw))
		return answers
	}

	for i, m := range matches {
		id := raw[m[2]:m[3]]
		start := m[1] // end of the full marker match
		end := len(raw)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		answers.Set(id, strings.TrimSpace(raw[start:end]))
	}

	slog.Debug("segmented text", "questions", answers.Len())
	return answers
}
