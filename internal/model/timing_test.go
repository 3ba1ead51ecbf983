package model

import "testing"

func TestFormatTiming(t *testing.T) {
	cases := []struct {
		micros uint64
		want   string
	}{
		{3, "3us"},
		{3003, "3.00ms"},
		{3_033_300, "3.03s"},
		{999, "999us"},
		{999_999, "1000.00ms"},
		{1_000_000, "1.00s"},
	}
	for _, c := range cases {
		if got := FormatTiming(c.micros); got != c.want {
			t.Errorf("FormatTiming(%d) = %q, want %q", c.micros, got, c.want)
		}
	}
}
