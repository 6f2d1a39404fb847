package visits

import "time"

type DayActivity struct {
	Date      string `json:"date"` // YYYY-MM-DD
	CheckIns  int    `json:"check_ins"`
	CheckOuts int    `json:"check_outs"`
}

// Supported chart windows.
const (
	ActivityDaily  = 7
	ActivityWeekly = 14
)

// DailyActivity counts check-ins and check-outs per calendar day for the
// last days days, today included, oldest first.
func DailyActivity(list []Visitor, now time.Time, days int) []DayActivity {
	if days <= 0 {
		return nil
	}
	loc := now.Location()
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)
	start := today.AddDate(0, 0, -(days - 1))

	out := make([]DayActivity, days)
	index := make(map[string]int, days)
	for i := range out {
		key := start.AddDate(0, 0, i).Format(time.DateOnly)
		out[i].Date = key
		index[key] = i
	}

	for _, v := range list {
		if i, ok := index[v.CheckInTime.In(loc).Format(time.DateOnly)]; ok {
			out[i].CheckIns++
		}
		if v.Completed() {
			if i, ok := index[v.CheckOutTime.In(loc).Format(time.DateOnly)]; ok {
				out[i].CheckOuts++
			}
		}
	}
	return out
}
