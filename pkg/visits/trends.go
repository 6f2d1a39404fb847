package visits

import (
	"math"
	"time"
)

type Trends struct {
	CurrentWeek     int `json:"current_week"`
	PreviousWeek    int `json:"previous_week"`
	WeekGrowth      int `json:"week_growth"`
	CurrentMonth    int `json:"current_month"`
	PreviousMonth   int `json:"previous_month"`
	MonthGrowth     int `json:"month_growth"`
	AverageDuration int `json:"average_duration_minutes"`
	CompletedVisits int `json:"completed_visits"`
}

// ComputeTrends compares the last week and month with the period before.
// Current windows have no upper bound, so future-dated check-ins count.
func ComputeTrends(list []Visitor, now time.Time) Trends {
	weekAgo := now.AddDate(0, 0, -7)
	twoWeeksAgo := now.AddDate(0, 0, -14)
	monthAgo := now.AddDate(0, -1, 0)
	twoMonthsAgo := now.AddDate(0, -2, 0)

	var t Trends
	for _, v := range list {
		in := v.CheckInTime
		switch {
		case !in.Before(weekAgo):
			t.CurrentWeek++
		case !in.Before(twoWeeksAgo):
			t.PreviousWeek++
		}
		switch {
		case !in.Before(monthAgo):
			t.CurrentMonth++
		case !in.Before(twoMonthsAgo):
			t.PreviousMonth++
		}
		if v.Completed() {
			t.CompletedVisits++
		}
	}

	t.WeekGrowth = GrowthPercent(t.CurrentWeek, t.PreviousWeek)
	t.MonthGrowth = GrowthPercent(t.CurrentMonth, t.PreviousMonth)
	t.AverageDuration = AverageDurationMinutes(list)
	return t
}

// GrowthPercent returns the rounded percentage change from previous to
// current. Halves round up and decreases stay negative. A zero previous
// gives 100 when current is positive, else 0.
func GrowthPercent(current, previous int) int {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	pct := float64(current-previous) / float64(previous) * 100
	return roundHalfUp(pct)
}

// AverageDurationMinutes averages the whole-minute length of completed
// visits. Visits still in progress are ignored; no completed visits gives 0.
func AverageDurationMinutes(list []Visitor) int {
	total, n := 0, 0
	for _, v := range list {
		if m, ok := v.DurationMinutes(); ok {
			total += m
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return roundHalfUp(float64(total) / float64(n))
}

func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
