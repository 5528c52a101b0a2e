// Package extract finds countdown durations mentioned in recipe step text.
//
// A step such as "Simmer for 10-12 minutes, then rest for 5 minutes" yields two
// candidates, 12m and 5m, in order of first appearance. Ranges resolve to their
// upper bound and candidates with the same length are reported once.
package extract

import (
	"iter"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/korjavin/kitchentimer/pkg/models"
	"github.com/korjavin/kitchentimer/pkg/timefmt"
)

// timePattern matches "15 minutes", "1.5 hrs", "2-3 min", "10–12 seconds".
// The unit must end on a word boundary so "5 mint leaves" is not a timer.
var timePattern = regexp.MustCompile(
	`(?i)(\d+(?:\.\d+)?)(?:\s*[-–—]\s*(\d+(?:\.\d+)?))?\s*(minutes?|mins?|hours?|hrs?|seconds?|secs?)\b`,
)

// maxSeconds bounds a candidate; larger numbers are not cooking times.
const maxSeconds = math.MaxInt32

// Durations returns the candidate durations found in text. The sequence is
// lazy and can be ranged over any number of times with identical results.
func Durations(text string) iter.Seq[models.Candidate] {
	return func(yield func(models.Candidate) bool) {
		seen := make(map[int]struct{})
		offset := 0
		for offset < len(text) {
			loc := timePattern.FindStringSubmatchIndex(text[offset:])
			if loc == nil {
				return
			}
			match := submatches(text[offset:], loc)
			offset += loc[1]

			seconds := toSeconds(match)
			if seconds <= 0 {
				continue
			}
			if _, dup := seen[seconds]; dup {
				continue
			}
			seen[seconds] = struct{}{}

			candidate := models.Candidate{
				Seconds:     seconds,
				Label:       timefmt.Duration(seconds),
				MatchedText: match[0],
			}
			if !yield(candidate) {
				return
			}
		}
	}
}

// All collects every candidate found in text.
func All(text string) []models.Candidate {
	return slices.Collect(Durations(text))
}

// submatches turns an index slice into strings; unmatched groups are "".
func submatches(s string, loc []int) []string {
	out := make([]string, len(loc)/2)
	for i := range out {
		start, end := loc[2*i], loc[2*i+1]
		if start >= 0 {
			out[i] = s[start:end]
		}
	}
	return out
}

// toSeconds converts a match (full, low, high, unit) to whole seconds.
func toSeconds(match []string) int {
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0
	}
	if match[2] != "" {
		if upper, err := strconv.ParseFloat(match[2], 64); err == nil && upper > value {
			value = upper
		}
	}

	unit := strings.ToLower(match[3])
	var factor float64
	switch {
	case strings.HasPrefix(unit, "h"):
		factor = 3600
	case strings.HasPrefix(unit, "m"):
		factor = 60
	case strings.HasPrefix(unit, "s"):
		factor = 1
	}
	seconds := math.Round(value * factor)
	if seconds > maxSeconds {
		return 0
	}
	return int(seconds)
}
