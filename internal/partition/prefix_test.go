package partition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse("2006-01-02T15:04:05", s)
	require.NoError(t, err)
	return tm
}

// TestEnumeratePrefixesTable reproduces the testable-property 4 table
// verbatim: the prefix generator must be bit-exact against these cases.
func TestEnumeratePrefixesTable(t *testing.T) {
	cases := []struct {
		start, end string
		want       []string
	}{
		{
			"2022-06-11T16:30:00", "2022-06-11T16:30:59",
			[]string{"date=2022-06-11/hour=16/minute=30/"},
		},
		{
			"2022-06-11T16:57:00", "2022-06-11T16:59:00",
			[]string{"date=2022-06-11/hour=16/minute=57/", "date=2022-06-11/hour=16/minute=58/"},
		},
		{
			"2022-06-11T16:00:00", "2022-06-11T16:59:59",
			[]string{"date=2022-06-11/hour=16/"},
		},
		{
			"2022-06-11T15:59:00", "2022-06-11T17:01:00",
			[]string{
				"date=2022-06-11/hour=15/minute=59/",
				"date=2022-06-11/hour=16/",
				"date=2022-06-11/hour=17/minute=00/",
			},
		},
		{
			"2022-06-11T23:59:59", "2022-06-12T00:01:00",
			[]string{
				"date=2022-06-11/hour=23/minute=59/",
				"date=2022-06-12/hour=00/minute=00/",
			},
		},
	}

	for _, c := range cases {
		start := mustParse(t, c.start)
		end := mustParse(t, c.end)
		got := EnumeratePrefixes(start, end)
		require.Equal(t, c.want, got, "range [%s, %s)", c.start, c.end)
	}
}

func TestEnumeratePrefixesFullDay(t *testing.T) {
	start := mustParse(t, "2022-06-11T00:00:00")
	end := mustParse(t, "2022-06-12T00:00:00")
	got := EnumeratePrefixes(start, end)
	require.Equal(t, []string{"date=2022-06-11/"}, got)
}

func TestEnumeratePrefixesEmptyRange(t *testing.T) {
	start := mustParse(t, "2022-06-11T16:30:00")
	require.Empty(t, EnumeratePrefixes(start, start))
}
