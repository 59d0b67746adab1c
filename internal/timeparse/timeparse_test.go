package timeparse

import (
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestParseRelative(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want time.Duration
	}{
		{name: "plural word", raw: "2 hours", want: 2 * time.Hour},
		{name: "singular word", raw: "2 hour", want: 2 * time.Hour},
		{name: "typo", raw: "2 houra", want: 2 * time.Hour},
		{name: "compact letters", raw: "1h30m", want: 90 * time.Minute},
		{name: "spaced letters", raw: "1h 30m", want: 90 * time.Minute},
		{name: "minute letter", raw: "45m", want: 45 * time.Minute},
		{name: "month letter is uppercase", raw: "1M", want: 30 * 24 * time.Hour},
		{name: "week", raw: "2w", want: 14 * 24 * time.Hour},
		{name: "year word", raw: "1 year", want: 365 * 24 * time.Hour},
		{name: "decimal point", raw: "1.5h", want: 90 * time.Minute},
		{name: "decimal comma", raw: "1,5h", want: 90 * time.Minute},
		{name: "mixed units", raw: "1 day 2 hours 3 minutes", want: 26*time.Hour + 3*time.Minute},
		{name: "abbreviations", raw: "5 min 30 sec", want: 5*time.Minute + 30*time.Second},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseAt(tt.raw, ModeRelative, testNow)
			if err != nil {
				t.Fatalf("ParseAt(%q) error: %v", tt.raw, err)
			}
			if want := testNow.Add(tt.want); !got.Equal(want) {
				t.Fatalf("ParseAt(%q) = %v, want %v", tt.raw, got, want)
			}
		})
	}
}

func TestParseSingleLetterCaseSensitivity(t *testing.T) {
	t.Parallel()
	minute, err := ParseAt("1m", ModeRelative, testNow)
	if err != nil {
		t.Fatalf("ParseAt(1m) error: %v", err)
	}
	month, err := ParseAt("1M", ModeRelative, testNow)
	if err != nil {
		t.Fatalf("ParseAt(1M) error: %v", err)
	}
	if minute.Equal(month) {
		t.Fatal("1m and 1M resolved to the same instant; case must distinguish minute from month")
	}
	if want := testNow.Add(time.Minute); !minute.Equal(want) {
		t.Fatalf("1m = %v, want %v", minute, want)
	}
}

func TestParseAbsolute(t *testing.T) {
	t.Parallel()
	got, err := ParseAt("2026-06-01 18:00", ModeAbsolute, testNow)
	if err != nil {
		t.Fatalf("ParseAt error: %v", err)
	}
	want := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		mode Mode
	}{
		{name: "empty", raw: "", mode: ModeAny},
		{name: "gibberish", raw: "soon-ish maybe", mode: ModeAny},
		{name: "absolute on duration", raw: "definitely not a date", mode: ModeAbsolute},
		{name: "absolute in past", raw: "2001-01-01", mode: ModeAbsolute},
		{name: "relative without units", raw: "42", mode: ModeRelative},
		{name: "relative unknown unit", raw: "3 fortnights", mode: ModeRelative},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseAt(tt.raw, tt.mode, testNow)
			if !errors.Is(err, ErrInvalidExpression) {
				t.Fatalf("ParseAt(%q) err = %v, want ErrInvalidExpression", tt.raw, err)
			}
		})
	}
}

func TestParseAnyFallsBackToRelative(t *testing.T) {
	t.Parallel()
	got, err := ParseAt("10 minutes", ModeAny, testNow)
	if err != nil {
		t.Fatalf("ParseAt error: %v", err)
	}
	if want := testNow.Add(10 * time.Minute); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
