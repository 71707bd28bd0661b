// Package textclean turns model output into plain prose.
package textclean

import (
	"regexp"
	"strings"
)

var (
	fenceLine     = regexp.MustCompile("(?m)^[ \t]*(?:```|~~~)[^\n]*(?:\n|$)")
	ruleLine      = regexp.MustCompile(`(?m)^[ \t]*[-*_](?:[ \t]*[-*_]){2,}[ \t]*(?:\n|$)`)
	quoteMarker   = regexp.MustCompile(`(?m)^[ \t]*>(?:[ \t]*>)*[ \t]?`)
	headingMarker = regexp.MustCompile(`(?m)^[ \t]*#+[ \t]*`)
	closingHashes = regexp.MustCompile(`(?m)[ \t]+#+[ \t]*$`)
	starBullet    = regexp.MustCompile(`(?m)^([ \t]*)[*+][ \t]+`)
	boldStars     = regexp.MustCompile(`\*\*([^\n]+?)\*\*`)
	boldUnders    = regexp.MustCompile(`__([^\n]+?)__`)
	italicStar    = regexp.MustCompile(`(^|[^*\w])\*([^*\s][^*\n]*?)\*`)
	italicUnder   = regexp.MustCompile(`(^|[^_\w])_([^_\s][^_\n]*?)_([^_\w]|$)`)
	inlineCode    = regexp.MustCompile("`([^`\n]+)`")
	citation      = regexp.MustCompile(`[ \t]?\[\d+(?:[ \t]*[-,–][ \t]*\d+)*\]`)
	strayMarkers  = regexp.MustCompile(`\*{2,}|_{2,}|` + "`+")
	trailingSpace = regexp.MustCompile(`(?m)[ \t]+$`)
	blankRuns     = regexp.MustCompile(`\n{3,}`)
)

// StripMarkup removes headings (any run of leading hashes), blockquote
// markers, emphasis, code fences, inline code, rules and bracketed citation
// numbers. Applying it twice gives the same result as
// applying it once.
func StripMarkup(text string) string {
	if text == "" {
		return ""
	}
	s := strings.ReplaceAll(text, "\r\n", "\n")
	s = fenceLine.ReplaceAllString(s, "")
	s = ruleLine.ReplaceAllString(s, "")
	s = quoteMarker.ReplaceAllString(s, "")
	s = headingMarker.ReplaceAllString(s, "")
	s = closingHashes.ReplaceAllString(s, "")
	s = starBullet.ReplaceAllString(s, "$1- ")
	s = boldStars.ReplaceAllString(s, "$1")
	s = boldUnders.ReplaceAllString(s, "$1")
	s = italicStar.ReplaceAllString(s, "$1$2")
	s = italicUnder.ReplaceAllString(s, "$1$2$3")
	s = inlineCode.ReplaceAllString(s, "$1")
	s = citation.ReplaceAllString(s, "")
	s = strayMarkers.ReplaceAllString(s, "")
	s = trailingSpace.ReplaceAllString(s, "")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
