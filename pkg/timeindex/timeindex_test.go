package timeindex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSynthesize_Deterministic(t *testing.T) {
	a, err := Synthesize(500)
	require.NoError(t, err)
	b, err := Synthesize(500)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestSynthesize_HoursAreOneToN(t *testing.T) {
	for _, n := range []int{0, 1, 24, 168, 8760, MaxRows} {
		idx, err := Synthesize(n)
		require.NoError(t, err)
		require.Equal(t, n, idx.Len())
		for i, h := range idx.Values(Hour) {
			if h != i+1 {
				t.Fatalf("n=%d: hour at %d is %d", n, i, h)
			}
		}
	}
}

func TestSynthesize_Levels(t *testing.T) {
	idx, err := Synthesize(MaxRows)
	require.NoError(t, err)

	tests := []struct {
		row, day, week, month, year int
	}{
		{0, 1, 1, 1, 1},
		{23, 1, 1, 1, 1},
		{24, 2, 1, 1, 1},
		{167, 7, 1, 1, 1},
		{168, 8, 2, 1, 1},
		{743, 31, 5, 1, 1},
		{744, 32, 5, 2, 1},
		// 2008 is a leap year: Feb 29 exists.
		{1416, 60, 9, 2, 1},
		{1440, 61, 9, 3, 1},
		{MaxRows - 1, 366, 53, 12, 1},
	}
	for _, tt := range tests {
		r := idx[tt.row]
		require.Equal(t, tt.day, r.Day, "day at row %d", tt.row)
		require.Equal(t, tt.week, r.Week, "week at row %d", tt.row)
		require.Equal(t, tt.month, r.Month, "month at row %d", tt.row)
		require.Equal(t, tt.year, r.Year, "year at row %d", tt.row)
	}
}

func TestSynthesize_BeyondReferenceRange(t *testing.T) {
	ref, err := Synthesize(ReferenceRows)
	require.NoError(t, err)
	full, err := Synthesize(MaxRows)
	require.NoError(t, err)
	require.Equal(t, ref, full[:ReferenceRows])

	// The reference range ends at the first hour of Dec 31; the remaining
	// 23 rows stay on that day.
	last := ref[ReferenceRows-1]
	require.Equal(t, Row{Hour: ReferenceRows, Day: 366, Week: 53, Month: 12, Year: 1}, last)
	require.Equal(t, 365, ref[ReferenceRows-2].Day)
	for _, r := range full[ReferenceRows:] {
		require.Equal(t, 366, r.Day)
		require.Equal(t, 12, r.Month)
	}
	require.Equal(t, MaxRows-ReferenceRows, len(full[ReferenceRows:]))
}

func TestSynthesize_OutOfRange(t *testing.T) {
	_, err := Synthesize(MaxRows + 1)
	require.ErrorIs(t, err, ErrRowCountOutOfRange)

	_, err = Synthesize(-1)
	require.ErrorIs(t, err, ErrRowCountOutOfRange)
}

func TestIndex_Groups(t *testing.T) {
	idx, err := Synthesize(50)
	require.NoError(t, err)

	keys, rows := idx.Groups(Day)
	require.Equal(t, []int{1, 2, 3}, keys)
	require.Len(t, rows[0], 24)
	require.Len(t, rows[1], 24)
	require.Equal(t, []int{48, 49}, rows[2])

	keys, rows = idx.Groups(Year)
	require.Equal(t, []int{1}, keys)
	require.Len(t, rows[0], 50)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"Hour":           Hour,
		"day":            Day,
		" WEEK ":         Week,
		"Monthly Totals": Month,
		"Annual Totals":  Year,
		"Hourly Totals":  Hour,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := ParseLevel("fortnight")
	require.Error(t, err)
}

func TestLevel_TextRoundTrip(t *testing.T) {
	for _, l := range Levels {
		b, err := l.MarshalText()
		require.NoError(t, err)
		var got Level
		require.NoError(t, got.UnmarshalText(b))
		require.Equal(t, l, got)
	}
}
