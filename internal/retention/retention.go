// Package retention decides which dated artifacts to delete under the
// daily-window + monthly-anchor policy. The same engine prunes local backup
// dumps and remote per-application snapshots; only the delete action differs.
package retention

import (
	"time"
)

// DateLayout is the ISO date embedded in artifact and snapshot names.
const DateLayout = "2006-01-02"

// Policy is the tiered retention rule: anything younger than the daily
// window is kept, and one artifact per month falling on the anchor day is
// kept indefinitely.
type Policy struct {
	DailyWindowDays  int
	MonthlyAnchorDay int
}

// Item is a dated artifact candidate. Date is the raw ISO date text as
// extracted from the artifact's name; items whose date does not parse are
// never selected for deletion and never claim a monthly exemption.
type Item struct {
	ID   string
	Date string
}

// SelectForDeletion returns the ids to delete, in input order.
//
// Among over-window items, only the first anchor-day item encountered per
// (year, month) is spared; a second anchor-day artifact in the same month is
// deleted. The exemption depends on iteration order; callers wanting
// determinism must sort items by date ascending before calling. See
// DESIGN.md for why first-match-wins is kept as is.
func SelectForDeletion(items []Item, today time.Time, p Policy) []string {
	var selected []string
	exempted := make(map[int]bool) // year*100 + month

	for _, it := range items {
		date, err := time.Parse(DateLayout, it.Date)
		if err != nil {
			continue
		}
		if daysBetween(date, today) <= p.DailyWindowDays {
			continue
		}
		if date.Day() == p.MonthlyAnchorDay {
			key := date.Year()*100 + int(date.Month())
			if !exempted[key] {
				exempted[key] = true
				continue
			}
		}
		selected = append(selected, it.ID)
	}
	return selected
}

// daysBetween is the whole-day calendar distance from date to today,
// ignoring the time-of-day of either side.
func daysBetween(date, today time.Time) int {
	d := midnightUTC(date)
	t := midnightUTC(today)
	return int(t.Sub(d).Hours() / 24)
}

func midnightUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
