// Package recurrence generates future booking dates for a repeating pattern.
package recurrence

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"
)

// Pattern is the rule used to advance from one occurrence to the next.
type Pattern string

const (
	Weekly   Pattern = "weekly"
	BiWeekly Pattern = "bi-weekly"
	Monthly  Pattern = "monthly"
)

var (
	ErrUnknownPattern   = errors.New("unknown recurrence pattern")
	ErrUnboundedHorizon = errors.New("recurrence horizon needs an end date or an occurrence count")
)

// ParsePattern accepts the canonical names plus common spellings ("Bi-Weekly", "biweekly").
func ParsePattern(s string) (Pattern, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weekly":
		return Weekly, nil
	case "bi-weekly", "biweekly", "bi_weekly", "fortnightly":
		return BiWeekly, nil
	case "monthly":
		return Monthly, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPattern, s)
}

func (p Pattern) valid() bool {
	return p == Weekly || p == BiWeekly || p == Monthly
}

// Horizon bounds a series. Until is exclusive; Count caps the number of
// generated dates. At least one of them must be set.
type Horizon struct {
	Until time.Time
	Count int
}

// Days returns a time horizon ending days after from.
func Days(from time.Time, days int) Horizon {
	return Horizon{Until: from.AddDate(0, 0, days)}
}

// Occurrences returns a count-only horizon.
func Occurrences(n int) Horizon {
	return Horizon{Count: n}
}

// WithCount returns a copy of h additionally capped at n dates.
func (h Horizon) WithCount(n int) Horizon {
	h.Count = n
	return h
}

func (h Horizon) Validate() error {
	if h.Count < 0 {
		return fmt.Errorf("occurrence count must not be negative, got %d", h.Count)
	}
	if h.Until.IsZero() && h.Count == 0 {
		return ErrUnboundedHorizon
	}
	return nil
}

// Dates returns the lazy sequence of dates following anchor. The anchor itself
// is never yielded and every range over the result starts again from the anchor.
func Dates(anchor time.Time, pattern Pattern, horizon Horizon) (iter.Seq[time.Time], error) {
	if !pattern.valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPattern, pattern)
	}
	if err := horizon.Validate(); err != nil {
		return nil, err
	}

	return func(yield func(time.Time) bool) {
		for n := 1; horizon.Count == 0 || n <= horizon.Count; n++ {
			next := Occurrence(anchor, pattern, n)
			if !horizon.Until.IsZero() && !next.Before(horizon.Until) {
				return
			}
			if !yield(next) {
				return
			}
		}
	}, nil
}

// Collect materializes Dates into a slice.
func Collect(anchor time.Time, pattern Pattern, horizon Horizon) ([]time.Time, error) {
	seq, err := Dates(anchor, pattern, horizon)
	if err != nil {
		return nil, err
	}
	return slices.Collect(seq), nil
}

// Occurrence returns the n-th date after anchor (n=0 is the anchor). Monthly
// occurrences are derived from the anchor, not from the previous occurrence,
// so a clamped February never drags later months down.
func Occurrence(anchor time.Time, pattern Pattern, n int) time.Time {
	switch pattern {
	case Weekly:
		return anchor.AddDate(0, 0, 7*n)
	case BiWeekly:
		return anchor.AddDate(0, 0, 14*n)
	case Monthly:
		return addMonthsClamped(anchor, n)
	}
	return anchor
}

func addMonthsClamped(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	day := min(t.Day(), daysIn(first.Year(), first.Month()))
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
