package core

import "time"

// DayGroup is one display bucket: all rows sharing a calendar date, in their
// original order. The separator itself is synthesized at render time, never
// stored.
type DayGroup struct {
	Key  string
	Rows []LedgerRow
}

// DayKey returns the calendar-date bucket key (YYYY-MM-DD) for a timestamp,
// or "" for the zero time.
func DayKey(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// DayLabel converts a bucket key to the display form DD.MM.YYYY.
func DayLabel(key string) string {
	t, err := time.Parse("2006-01-02", key)
	if err != nil {
		return key
	}
	return t.Format("02.01.2006")
}

// GroupRowsByDay partitions rows by the calendar date of CreatedAt, keeping
// the overall order. Rows without a timestamp stay attached to the preceding
// bucket, matching how the table renders them under the last day separator.
func GroupRowsByDay(rows []LedgerRow) []DayGroup {
	var groups []DayGroup
	for _, r := range rows {
		key := DayKey(r.CreatedAt)
		if len(groups) == 0 || (key != "" && key != groups[len(groups)-1].Key) {
			groups = append(groups, DayGroup{Key: key})
		}
		last := &groups[len(groups)-1]
		last.Rows = append(last.Rows, r)
	}
	return groups
}
