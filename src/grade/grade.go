// Package grade extracts scores from free-text feedback.
//
// The accepted grammar is
//
//	score  = label ":" number "/" number
//	label  = letter { letter | " " | "-" | "'" }
//	number = digit { digit } [ "." digit { digit } ]
//
// Markdown emphasis around the label or the colon is tolerated, so
// "**Grade:** 17/20" parses the same as "Grade: 17/20".
package grade

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Score is one "label: value/max" statement.
type Score struct {
	Label string  `json:"label" bson:"label"`
	Value float64 `json:"value" bson:"value"`
	Max   float64 `json:"max" bson:"max"`
}

// Ratio returns Value/Max, or 0 when Max is not positive.
func (s Score) Ratio() float64 {
	if s.Max <= 0 {
		return 0
	}
	return s.Value / s.Max
}

func (s Score) String() string {
	return s.Label + ": " + formatNumber(s.Value) + "/" + formatNumber(s.Max)
}

var scorePattern = regexp.MustCompile(`([A-Za-z][A-Za-z '\-]{0,40}?)[*_ \t]*:[*_ \t]*(\d+(?:\.\d+)?)[ \t]*/[ \t]*(\d+(?:\.\d+)?)`)

var overallLabel = regexp.MustCompile(`(?i)^(?:(?:overall|final|total)\b.*|(?:grade|score|mark|total)s?)$`)

// Parse returns every score statement in text, in order of appearance.
func Parse(text string) []Score {
	matches := scorePattern.FindAllStringSubmatch(text, -1)
	scores := make([]Score, 0, len(matches))
	for _, m := range matches {
		value, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		maxValue, err := strconv.ParseFloat(m[3], 64)
		if err != nil || maxValue <= 0 {
			continue
		}
		scores = append(scores, Score{
			Label: strings.TrimSpace(m[1]),
			Value: value,
			Max:   maxValue,
		})
	}
	return scores
}

// Overall returns the last score stated for the whole text: a label that
// starts with Overall, Final or Total, or is exactly Grade, Score or Mark.
// Criterion lines such as "Evidence score: 3/5" do not count.
func Overall(text string) (Score, bool) {
	scores := Parse(text)
	for i := len(scores) - 1; i >= 0; i-- {
		if overallLabel.MatchString(scores[i].Label) {
			return scores[i], true
		}
	}
	return Score{}, false
}

// Aggregate combines partial scores into one overall score: the summed values
// over the summed maxima, scaled to declaredMax (or to the first score's Max
// when declaredMax is not positive) and rounded to one decimal place.
func Aggregate(scores []Score, declaredMax float64) (Score, bool) {
	var got, possible float64
	for _, s := range scores {
		if s.Max <= 0 {
			continue
		}
		got += s.Value
		possible += s.Max
	}
	if possible == 0 {
		return Score{}, false
	}
	target := declaredMax
	if target <= 0 {
		target = scores[0].Max
	}
	value := math.Round(got/possible*target*10) / 10
	return Score{Label: "Overall Grade", Value: value, Max: target}, true
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
