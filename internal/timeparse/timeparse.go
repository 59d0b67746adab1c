// Package timeparse turns free-form time text into an absolute instant.
//
// Two passes exist because users mix calendar dates ("2026-09-01 18:00")
// and casual phrases ("2h30m", "2 hours") in the same input field:
//
//  1. Absolute: a permissive calendar/time parse; accepted only when the
//     result lies in the future.
//  2. Relative: repeated <number><unit> groups summed into a duration.
//
// Single-letter units are case-sensitive on purpose: "m" is minutes while
// "M" is months, and no other one-letter spelling separates the two.
// Multi-letter unit words are case-insensitive and tolerate plurals and
// one-letter typos.
package timeparse

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/agext/levenshtein"
	"github.com/araddon/dateparse"
)

// Mode selects which passes run.
type Mode int

const (
	// ModeAny tries the absolute pass, then the relative pass.
	ModeAny Mode = iota
	// ModeAbsolute only accepts calendar-parseable input.
	ModeAbsolute
	// ModeRelative only accepts duration-style input.
	ModeRelative
)

// ErrInvalidExpression reports time text that could not be resolved to a
// future instant. It is meant for user-facing reporting.
var ErrInvalidExpression = errors.New("invalid time expression")

// groupRe captures <number><unit-letters> pairs with an optional single
// space in between. Commas are accepted as decimal separators.
var groupRe = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s?([A-Za-z]+)`)

// unitLetters resolves single-letter units exactly.
var unitLetters = map[string]float64{
	"s": 1,
	"m": 60,
	"h": 3600,
	"d": 86400,
	"w": 86400 * 7,
	"M": 86400 * 30,
	"Y": 86400 * 365,
	"y": 86400 * 365,
}

// unitWords is the multi-letter vocabulary, matched case-insensitively.
// Order is the tie-break for equal edit distances, so keep full words
// before their abbreviations.
var unitWords = []struct {
	word    string
	seconds float64
}{
	{"second", 1},
	{"minute", 60},
	{"hour", 3600},
	{"day", 86400},
	{"week", 86400 * 7},
	{"month", 86400 * 30},
	{"year", 86400 * 365},
	{"sec", 1},
	{"min", 60},
}

// Parse resolves text against the current clock.
func Parse(text string, mode Mode) (time.Time, error) {
	return ParseAt(text, mode, time.Now().UTC())
}

// ParseAt resolves text against an explicit "now" (deterministic for tests).
// The returned instant is always strictly after now.
func ParseAt(text string, mode Mode, now time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, fmt.Errorf("%w: empty input", ErrInvalidExpression)
	}

	if mode == ModeAny || mode == ModeAbsolute {
		at, err := dateparse.ParseIn(text, time.UTC)
		switch {
		case err == nil && at.After(now):
			return at, nil
		case mode == ModeAbsolute && err != nil:
			return time.Time{}, fmt.Errorf("%w: %q is not a calendar time", ErrInvalidExpression, text)
		case mode == ModeAbsolute:
			return time.Time{}, fmt.Errorf("%w: %q is not in the future", ErrInvalidExpression, text)
		}
	}

	if mode == ModeAny || mode == ModeRelative {
		d, ok := relativeDuration(text)
		if ok {
			return now.Add(d), nil
		}
		if mode == ModeRelative {
			return time.Time{}, fmt.Errorf("%w: no duration units in %q", ErrInvalidExpression, text)
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidExpression, text)
}

// relativeDuration sums every <number><unit> group in text.
// It reports false when no group resolves to a positive duration.
func relativeDuration(text string) (time.Duration, bool) {
	var total float64
	for _, m := range groupRe.FindAllStringSubmatch(text, -1) {
		val, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err != nil {
			continue
		}
		unit := m[2]
		if len(unit) == 1 {
			if sec, ok := unitLetters[unit]; ok {
				total += val * sec
			}
			continue
		}
		if sec, ok := matchUnitWord(unit); ok {
			total += val * sec
		}
	}
	if total <= 0 {
		return 0, false
	}
	return time.Duration(math.Round(total)) * time.Second, true
}

// matchUnitWord resolves a multi-letter unit word: exact match first, then
// the minimum edit distance <= 1 over the vocabulary (tolerates plurals and
// single typos), ties broken by vocabulary order.
func matchUnitWord(word string) (float64, bool) {
	w := strings.ToLower(word)
	for _, u := range unitWords {
		if w == u.word {
			return u.seconds, true
		}
	}
	best := -1
	var secs float64
	for _, u := range unitWords {
		d := levenshtein.Distance(w, u.word, nil)
		if d <= 1 && (best == -1 || d < best) {
			best = d
			secs = u.seconds
		}
	}
	return secs, best != -1
}
