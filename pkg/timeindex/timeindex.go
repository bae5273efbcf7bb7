// Package timeindex derives the Hour/Day/Week/Month/Year hierarchy attached
// to every time series from its row count alone.
package timeindex

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	HoursPerDay  = 24
	HoursPerWeek = 168

	// ReferenceRows is the length of the hourly range 2008-01-01 00:00
	// through 2008-12-31 00:00, both ends included.
	ReferenceRows = 8761
	// MaxRows extends the reference range to the last hour of 2008.
	MaxRows = 8784
)

// ErrRowCountOutOfRange is returned for row counts the reference calendar
// cannot label.
var ErrRowCountOutOfRange = errors.New("timeindex: row count out of range")

var referenceStart = time.Date(2008, time.January, 1, 0, 0, 0, 0, time.UTC)

// Level is one granularity of the time hierarchy.
type Level int

const (
	Hour Level = iota
	Day
	Week
	Month
	Year
)

// Levels lists every level from finest to coarsest.
var Levels = []Level{Hour, Day, Week, Month, Year}

func (l Level) String() string {
	switch l {
	case Hour:
		return "Hour"
	case Day:
		return "Day"
	case Week:
		return "Week"
	case Month:
		return "Month"
	case Year:
		return "Year"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// MarshalText encodes the level name.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText accepts anything ParseLevel does.
func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

var levelAliases = map[string]Level{
	"hour":           Hour,
	"hourly":         Hour,
	"hourly totals":  Hour,
	"day":            Day,
	"daily":          Day,
	"daily totals":   Day,
	"week":           Week,
	"weekly":         Week,
	"weekly totals":  Week,
	"month":          Month,
	"monthly":        Month,
	"monthly totals": Month,
	"year":           Year,
	"annual":         Year,
	"annual totals":  Year,
}

// ParseLevel parses a level name, case-insensitively. The labels used by the
// result viewer ("Hourly Totals", "Annual Totals", ...) are accepted too.
func ParseLevel(s string) (Level, error) {
	l, ok := levelAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown time level %q", s)
	}
	return l, nil
}

// Row is the label of one timestep.
type Row struct {
	Hour  int `json:"hour"`
	Day   int `json:"day"`
	Week  int `json:"week"`
	Month int `json:"month"`
	Year  int `json:"year"`
}

// At returns the value of one level.
func (r Row) At(l Level) int {
	switch l {
	case Hour:
		return r.Hour
	case Day:
		return r.Day
	case Week:
		return r.Week
	case Month:
		return r.Month
	default:
		return r.Year
	}
}

// Index is the time hierarchy for a series of a given length.
type Index []Row

// Synthesize builds the index for n rows. It depends on n only.
func Synthesize(n int) (Index, error) {
	if n < 0 || n > MaxRows {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrRowCountOutOfRange, n, MaxRows)
	}
	idx := make(Index, n)
	for i := range idx {
		idx[i] = Row{
			Hour:  i + 1,
			Day:   i/HoursPerDay + 1,
			Week:  i/HoursPerWeek + 1,
			Month: int(referenceStart.Add(time.Duration(i) * time.Hour).Month()),
			Year:  1,
		}
	}
	return idx, nil
}

// Len returns the number of rows.
func (x Index) Len() int { return len(x) }

// Values returns one level as a column.
func (x Index) Values(l Level) []int {
	out := make([]int, len(x))
	for i, r := range x {
		out[i] = r.At(l)
	}
	return out
}

// Groups returns the distinct values of a level in ascending order along with
// the row positions belonging to each. Every level is non-decreasing in row
// order, so groups are contiguous.
func (x Index) Groups(l Level) (keys []int, rows [][]int) {
	for i, r := range x {
		v := r.At(l)
		if len(keys) == 0 || keys[len(keys)-1] != v {
			keys = append(keys, v)
			rows = append(rows, nil)
		}
		rows[len(rows)-1] = append(rows[len(rows)-1], i)
	}
	return keys, rows
}
