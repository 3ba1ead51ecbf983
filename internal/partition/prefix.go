// Package partition implements the partition writer (C5) and partition
// query (C6): flushing hot batches to time-bucketed parquet files and
// enumerating the minimal set of path prefixes covering a query range.
package partition

import (
	"fmt"
	"time"
)

func floorMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}

func floorDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func floorHour(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), 0, 0, 0, t.Location())
}

func datePrefix(t time.Time) string {
	return fmt.Sprintf("date=%s/", t.Format("2006-01-02"))
}

func hourPrefix(t time.Time) string {
	return fmt.Sprintf("date=%s/hour=%02d/", t.Format("2006-01-02"), t.Hour())
}

func minutePrefix(t time.Time) string {
	return fmt.Sprintf("date=%s/hour=%02d/minute=%02d/", t.Format("2006-01-02"), t.Hour(), t.Minute())
}

// EnumeratePrefixes returns the minimal set of partition-path prefixes
// covering [start, end) at minute granularity, greedily widening each
// step to a full hour or full day whenever the remaining range permits
// it (§4.6, bit-exact per the testable-property table).
//
// start is floored to the minute. end is floored to the minute, then
// rounded up by one minute if it carries a nonzero second — the ceiling
// folds a partial trailing minute into the covered range rather than
// dropping it.
func EnumeratePrefixes(start, end time.Time) []string {
	startMin := floorMinute(start)
	endMin := floorMinute(end)
	if end.Second() != 0 || end.Nanosecond() != 0 {
		endMin = endMin.Add(time.Minute)
	}
	if !endMin.After(startMin) {
		return nil
	}

	var prefixes []string
	cur := startMin
	for cur.Before(endMin) {
		dayStart := floorDay(cur)
		nextDay := dayStart.AddDate(0, 0, 1)
		if cur.Equal(dayStart) && !nextDay.After(endMin) {
			prefixes = append(prefixes, datePrefix(cur))
			cur = nextDay
			continue
		}

		hourStart := floorHour(cur)
		nextHour := hourStart.Add(time.Hour)
		if cur.Equal(hourStart) && !nextHour.After(endMin) {
			prefixes = append(prefixes, hourPrefix(cur))
			cur = nextHour
			continue
		}

		prefixes = append(prefixes, minutePrefix(cur))
		cur = cur.Add(time.Minute)
	}
	return prefixes
}
