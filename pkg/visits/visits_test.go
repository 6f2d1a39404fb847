package visits

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

var paris = mustLoad("Europe/Paris")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func visitor(first, last, host string, in time.Time, out *time.Time) Visitor {
	return Visitor{
		ID:            uuid.New(),
		FirstName:     first,
		LastName:      last,
		Phone:         "0600000000",
		IDType:        IDNationalID,
		IDNumber:      "X123",
		VisitPurpose:  "Réunion",
		PersonToVisit: host,
		CheckInTime:   in,
		CheckOutTime:  out,
		IsCheckedOut:  out != nil,
	}
}

func ptr(t time.Time) *time.Time { return &t }

func TestComputeStats(t *testing.T) {
	now := time.Date(2026, 3, 15, 14, 0, 0, 0, paris)
	list := []Visitor{
		visitor("A", "A", "H", now.Add(-time.Hour), nil),
		visitor("B", "B", "H", now.Add(-2*time.Hour), ptr(now.Add(-time.Hour))),
		visitor("C", "C", "H", now.AddDate(0, 0, -3), ptr(now.AddDate(0, 0, -3).Add(time.Hour))),
		visitor("D", "D", "H", now.AddDate(0, 0, -20), nil),
		visitor("E", "E", "H", now.AddDate(0, -2, 0), ptr(now.AddDate(0, -2, 0).Add(time.Hour))),
	}

	got := ComputeStats(list, now)
	want := DashboardStats{CurrentVisitors: 2, TodayVisitors: 2, WeekVisitors: 3, MonthVisitors: 4}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestComputeStatsCurrentMatchesNotCheckedOut(t *testing.T) {
	now := time.Date(2026, 3, 15, 14, 0, 0, 0, paris)
	var list []Visitor
	notOut := 0
	for i := 0; i < 25; i++ {
		in := now.Add(-time.Duration(i) * 5 * time.Hour)
		if i%3 == 0 {
			list = append(list, visitor("x", "y", "z", in, ptr(in.Add(time.Hour))))
		} else {
			list = append(list, visitor("x", "y", "z", in, nil))
			notOut++
		}
	}
	if got := ComputeStats(list, now).CurrentVisitors; got != notOut {
		t.Errorf("got %d, want %d", got, notOut)
	}
}

func TestTodayUsesCalendarDayNotLast24h(t *testing.T) {
	now := time.Date(2026, 3, 15, 0, 30, 0, 0, paris)
	list := []Visitor{
		visitor("late", "yesterday", "H", now.Add(-time.Hour), nil),
		visitor("early", "today", "H", now.Add(-10*time.Minute), nil),
	}
	if got := ComputeStats(list, now).TodayVisitors; got != 1 {
		t.Errorf("got %d, want 1", got)
	}
}

func TestMonthWindowUsesCalendarRollback(t *testing.T) {
	// 31 March minus one month normalises to 3 March, as calendar arithmetic does.
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	list := []Visitor{
		visitor("in", "window", "H", time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC), nil),
		visitor("out", "window", "H", time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), nil),
	}
	if got := ComputeStats(list, now).MonthVisitors; got != 1 {
		t.Errorf("got %d, want 1", got)
	}
}

func TestGrowthPercent(t *testing.T) {
	tests := []struct {
		current, previous, want int
	}{
		{0, 0, 0},
		{5, 0, 100},
		{5, 10, -50},
		{15, 10, 50},
		{0, 10, -100},
		{3, 2, 50},
		{1, 8, -87},  // -87.5, halves round toward +inf
		{7, 8, -12},  // -12.5
		{11, 8, 38},  // 37.5
		{30, 10, 200},
	}

	for _, tt := range tests {
		if got := GrowthPercent(tt.current, tt.previous); got != tt.want {
			t.Errorf("GrowthPercent(%d, %d) = %d, want %d", tt.current, tt.previous, got, tt.want)
		}
	}
}

func TestAverageDurationMinutes(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	list := []Visitor{
		visitor("a", "a", "h", base, ptr(base.Add(30*time.Minute))),
		visitor("b", "b", "h", base, ptr(base.Add(90*time.Minute))),
		visitor("c", "c", "h", base, nil),
	}
	if got := AverageDurationMinutes(list); got != 60 {
		t.Errorf("got %d, want 60", got)
	}

	// each visit is truncated to whole minutes before averaging
	list = []Visitor{
		visitor("a", "a", "h", base, ptr(base.Add(10*time.Minute+59*time.Second))),
		visitor("b", "b", "h", base, ptr(base.Add(11*time.Minute))),
	}
	if got := AverageDurationMinutes(list); got != 11 {
		t.Errorf("got %d, want 11", got)
	}

	if got := AverageDurationMinutes(nil); got != 0 {
		t.Errorf("empty list got %d, want 0", got)
	}
}

func TestComputeTrends(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	list := []Visitor{
		visitor("w1", "", "", now.AddDate(0, 0, -1), ptr(now.AddDate(0, 0, -1).Add(30*time.Minute))),
		visitor("w2", "", "", now.AddDate(0, 0, -2), nil),
		visitor("pw", "", "", now.AddDate(0, 0, -10), ptr(now.AddDate(0, 0, -10).Add(90*time.Minute))),
		visitor("pm", "", "", now.AddDate(0, -1, -5), nil),
	}
	got := ComputeTrends(list, now)
	if got.CurrentWeek != 2 || got.PreviousWeek != 1 || got.WeekGrowth != 100 {
		t.Errorf("week = %d/%d/%d, want 2/1/100", got.CurrentWeek, got.PreviousWeek, got.WeekGrowth)
	}
	if got.CurrentMonth != 3 || got.PreviousMonth != 1 || got.MonthGrowth != 200 {
		t.Errorf("month = %d/%d/%d, want 3/1/200", got.CurrentMonth, got.PreviousMonth, got.MonthGrowth)
	}
	if got.AverageDuration != 60 || got.CompletedVisits != 2 {
		t.Errorf("duration = %d over %d, want 60 over 2", got.AverageDuration, got.CompletedVisits)
	}
}

func TestDailyActivity(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, paris)
	list := []Visitor{
		visitor("a", "", "", now.Add(-time.Hour), ptr(now.Add(-30*time.Minute))),
		visitor("b", "", "", now.AddDate(0, 0, -1), ptr(now)),
		visitor("c", "", "", now.AddDate(0, 0, -6), nil),
		visitor("d", "", "", now.AddDate(0, 0, -7), nil),
	}

	days := DailyActivity(list, now, ActivityDaily)
	if len(days) != 7 {
		t.Fatalf("got %d days, want 7", len(days))
	}
	if days[0].Date != "2026-03-09" || days[6].Date != "2026-03-15" {
		t.Errorf("range %s..%s, want 2026-03-09..2026-03-15", days[0].Date, days[6].Date)
	}
	if days[0].CheckIns != 1 {
		t.Errorf("first day check-ins = %d, want 1", days[0].CheckIns)
	}
	if days[5].CheckIns != 1 || days[5].CheckOuts != 0 {
		t.Errorf("yesterday = %+v, want 1 in 0 out", days[5])
	}
	if days[6].CheckIns != 1 || days[6].CheckOuts != 2 {
		t.Errorf("today = %+v, want 1 in 2 out", days[6])
	}

	if got := len(DailyActivity(list, now, ActivityWeekly)); got != 14 {
		t.Errorf("weekly window got %d days, want 14", got)
	}
}

func TestFilterSearchAndStatusIntersect(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	list := []Visitor{
		visitor("Alice", "Martin", "Dr Bernard", now.Add(-3*time.Hour), ptr(now.Add(-time.Hour))),
		visitor("Bob", "Alison", "Accueil", now.Add(-2*time.Hour), nil),
		visitor("Chloé", "Durand", "alice Roy", now.Add(-time.Hour), nil),
		visitor("Denis", "Petit", "Compta", now, nil),
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all matches", Filter{Search: "ALI", Status: StatusAll}, []string{"Alice", "Bob", "Chloé"}},
		{"active excludes checked out Alice", Filter{Search: "Alice", Status: StatusActive}, []string{"Chloé"}},
		{"completed only", Filter{Search: "alice", Status: StatusCompleted}, []string{"Alice"}},
		{"host name", Filter{Search: "compta"}, []string{"Denis"}},
		{"accented fold", Filter{Search: "CHLOÉ"}, []string{"Chloé"}},
		{"empty search", Filter{Status: StatusActive}, []string{"Bob", "Chloé", "Denis"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.Apply(list, time.UTC)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d results, want %d", len(got), len(tt.want))
			}
			for i, v := range got {
				if v.FirstName != tt.want[i] {
					t.Errorf("result %d = %s, want %s", i, v.FirstName, tt.want[i])
				}
			}
		})
	}
}

func TestFilterDate(t *testing.T) {
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, paris)
	list := []Visitor{
		visitor("late", "", "", time.Date(2026, 3, 14, 23, 30, 0, 0, paris), nil),
		visitor("next", "", "", time.Date(2026, 3, 15, 0, 10, 0, 0, paris), nil),
	}
	got := Filter{Date: &day}.Apply(list, paris)
	if len(got) != 1 || got[0].FirstName != "late" {
		t.Errorf("got %v, want only late", got)
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"", "all", "active", "completed"} {
		if _, err := ParseStatus(s); err != nil {
			t.Errorf("ParseStatus(%q) error: %v", s, err)
		}
	}
	if _, err := ParseStatus("gone"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestPresentVisitorsSearchesPurpose(t *testing.T) {
	now := time.Now()
	a := visitor("Anne", "Leroy", "RH", now, nil)
	a.VisitPurpose = "Entretien d'embauche"
	b := visitor("Marc", "Blanc", "RH", now, ptr(now))
	b.VisitPurpose = "Entretien annuel"

	got := PresentVisitors([]Visitor{a, b}, "entretien")
	if len(got) != 1 || got[0].FirstName != "Anne" {
		t.Errorf("got %v, want only Anne", got)
	}
}

func TestDurationFormatting(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{0, "0 min"},
		{45, "45 min"},
		{60, "1h 0min"},
		{125, "2h 5min"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.minutes); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.minutes, got, tt.want)
		}
	}

	in := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	v := visitor("a", "b", "c", in, ptr(in.Add(59*time.Second)))
	if m, ok := v.DurationMinutes(); !ok || m != 0 {
		t.Errorf("got %d %v, want 0 true", m, ok)
	}
	if _, ok := visitor("a", "b", "c", in, nil).DurationMinutes(); ok {
		t.Error("ongoing visit should have no duration")
	}
}

func TestSortByCheckIn(t *testing.T) {
	base := time.Now()
	list := []Visitor{
		visitor("old", "", "", base.Add(-time.Hour), nil),
		visitor("new", "", "", base, nil),
	}
	SortByCheckIn(list)
	if list[0].FirstName != "new" {
		t.Errorf("first = %s, want new", list[0].FirstName)
	}
}
