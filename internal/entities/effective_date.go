package entities

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EffectiveDate is the validity range of a relationship.
// Bounds are historic timestamps: YYYY.MMDDhhmmss encoded as a float.
type EffectiveDate struct {
	Start float64
	End   float64
}

var rangeSeparators = []string{" - ", " to ", " – "}

// ParseEffectiveDate parses a date or date range expression.
// Accepted forms: "2020", "2020-06", "2020-06-01", "2020-06-01T10:30:00",
// and ranges of those joined by " - " or " to ".
// An empty expression returns nil.
func ParseEffectiveDate(expr string) (*EffectiveDate, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	for _, sep := range rangeSeparators {
		if parts := strings.SplitN(expr, sep, 2); len(parts) == 2 {
			start, _, err := parseDateBounds(strings.TrimSpace(parts[0]))
			if err != nil {
				return nil, err
			}
			_, end, err := parseDateBounds(strings.TrimSpace(parts[1]))
			if err != nil {
				return nil, err
			}
			if end < start {
				return nil, fmt.Errorf("effective date %q ends before it starts", expr)
			}
			return &EffectiveDate{Start: start, End: end}, nil
		}
	}

	start, end, err := parseDateBounds(expr)
	if err != nil {
		return nil, err
	}
	return &EffectiveDate{Start: start, End: end}, nil
}

// parseDateBounds returns the first and last instant covered by a single date expression
func parseDateBounds(expr string) (float64, float64, error) {
	layouts := []struct {
		layout string
		span   func(time.Time) time.Time
	}{
		{"2006-01-02T15:04:05", func(t time.Time) time.Time { return t }},
		{"2006-01-02", func(t time.Time) time.Time { return t.AddDate(0, 0, 1).Add(-time.Second) }},
		{"2006-01", func(t time.Time) time.Time { return t.AddDate(0, 1, 0).Add(-time.Second) }},
		{"2006", func(t time.Time) time.Time { return t.AddDate(1, 0, 0).Add(-time.Second) }},
	}
	for _, l := range layouts {
		t, err := time.Parse(l.layout, expr)
		if err != nil {
			continue
		}
		return HistoricFromTime(t), HistoricFromTime(l.span(t)), nil
	}
	return 0, 0, fmt.Errorf("invalid effective date %q", expr)
}

// HistoricFromTime converts a time to its historic timestamp representation
func HistoricFromTime(t time.Time) float64 {
	s := fmt.Sprintf("%04d.%02d%02d%02d%02d%02d",
		t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// TimeFromHistoric converts a historic timestamp back to a UTC time
func TimeFromHistoric(v float64) (time.Time, error) {
	s := fmt.Sprintf("%015.10f", v)
	t, err := time.Parse("2006.0102150405", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid historic timestamp %v: %w", v, err)
	}
	return t, nil
}

// Token returns the fixed-width, lexically sortable form of the range start
func (d *EffectiveDate) Token() string {
	return fmt.Sprintf("%015.10f", d.Start)
}

// StartsAfter reports whether the range starts after the given historic timestamp
func (d *EffectiveDate) StartsAfter(historic float64) bool {
	return d.Start > historic
}

// Equal reports whether both ranges have the same bounds
func (d *EffectiveDate) Equal(other *EffectiveDate) bool {
	if d == nil || other == nil {
		return d == nil && other == nil
	}
	return d.Start == other.Start && d.End == other.End
}

// String formats the range using the shortest form that round-trips
func (d *EffectiveDate) String() string {
	if d == nil {
		return ""
	}
	start, err := TimeFromHistoric(d.Start)
	if err != nil {
		return ""
	}
	end, err := TimeFromHistoric(d.End)
	if err != nil {
		return ""
	}

	if start.Hour() == 0 && start.Minute() == 0 && start.Second() == 0 &&
		end.Hour() == 23 && end.Minute() == 59 && end.Second() == 59 {
		switch {
		case start.Month() == time.January && start.Day() == 1 &&
			end.Month() == time.December && end.Day() == 31 && start.Year() == end.Year():
			return start.Format("2006")
		case start.Equal(end.Truncate(24 * time.Hour)):
			return start.Format("2006-01-02")
		default:
			return start.Format("2006-01-02") + " - " + end.Format("2006-01-02")
		}
	}
	return start.Format("2006-01-02T15:04:05") + " - " + end.Format("2006-01-02T15:04:05")
}
