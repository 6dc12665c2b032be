package compose

import (
	"strings"

	"github.com/blackmichael/bluesky-post/internal/bluesky"
)

// buildText flattens scanned lines into the final post text and facet list.
// Blank runs (lines whose spans are all feature-less and whitespace-only)
// are trimmed from both ends; the first featured or non-blank line clears
// the leading trim permanently, so interior blank lines survive. Facet
// offsets are raw byte offsets into the assembled text, recorded in append
// order. The facet list is nil when no span carried a feature.
func buildText(lines [][]Span) (string, []bluesky.Facet) {
	end := len(lines)
	for end > 0 && blankLine(lines[end-1]) {
		end--
	}

	var buf strings.Builder
	var facets []bluesky.Facet
	trimming := true
	for _, line := range lines[:end] {
		if trimming && blankLine(line) {
			continue
		}
		trimming = false
		for _, span := range line {
			if span.Feature != nil {
				facets = append(facets, bluesky.Facet{
					Index: bluesky.ByteSlice{
						ByteStart: buf.Len(),
						ByteEnd:   buf.Len() + len(span.Text),
					},
					Features: []bluesky.Feature{*span.Feature},
				})
			}
			buf.WriteString(span.Text)
		}
	}
	return buf.String(), facets
}

func blankLine(spans []Span) bool {
	for _, span := range spans {
		if span.Feature != nil || strings.TrimSpace(span.Text) != "" {
			return false
		}
	}
	return true
}
