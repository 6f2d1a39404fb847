package visits

import "time"

type DashboardStats struct {
	CurrentVisitors int `json:"current_visitors"`
	TodayVisitors   int `json:"today_visitors"`
	WeekVisitors    int `json:"week_visitors"`
	MonthVisitors   int `json:"month_visitors"`
}

// ComputeStats derives the dashboard counters. Calendar days are taken in
// now's location; the month window uses calendar month rollback.
func ComputeStats(list []Visitor, now time.Time) DashboardStats {
	weekAgo := now.AddDate(0, 0, -7)
	monthAgo := now.AddDate(0, -1, 0)

	var s DashboardStats
	for _, v := range list {
		if !v.IsCheckedOut {
			s.CurrentVisitors++
		}
		if sameDay(v.CheckInTime, now, now.Location()) {
			s.TodayVisitors++
		}
		if !v.CheckInTime.Before(weekAgo) {
			s.WeekVisitors++
		}
		if !v.CheckInTime.Before(monthAgo) {
			s.MonthVisitors++
		}
	}
	return s
}
