package model

import "strings"

// DefaultDays is the partition key set used when no days are configured.
var DefaultDays = []string{
	"Monday",
	"Tuesday",
	"Wednesday",
	"Thursday",
	"Friday",
	"Saturday",
	"Sunday",
}

// DaySet is a fixed set of day partition keys.
type DaySet struct {
	order []string
	index map[string]int
}

// NewDaySet builds a DaySet from days, falling back to DefaultDays when empty.
// Blank and duplicate entries are dropped.
func NewDaySet(days []string) DaySet {
	if len(days) == 0 {
		days = DefaultDays
	}
	ds := DaySet{index: make(map[string]int, len(days))}
	for _, d := range days {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if _, dup := ds.index[d]; dup {
			continue
		}
		ds.index[d] = len(ds.order)
		ds.order = append(ds.order, d)
	}
	return ds
}

// Contains reports whether day is a known partition key.
func (ds DaySet) Contains(day string) bool {
	_, ok := ds.index[day]
	return ok
}

// Days returns the partition keys in configured order.
func (ds DaySet) Days() []string {
	out := make([]string, len(ds.order))
	copy(out, ds.order)
	return out
}
