package visits

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

type Status string

const (
	StatusAll       Status = "all"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// ParseStatus accepts the three status values; empty means all.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case "", StatusAll:
		return StatusAll, nil
	case StatusActive, StatusCompleted:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

type Filter struct {
	Search string
	Status Status
	// Date, when set, keeps visits checked in on that calendar day.
	Date *time.Time
}

// Match reports whether v passes every criterion. Search matches first
// name, last name or host, ignoring case.
func (f Filter) Match(v Visitor, loc *time.Location) bool {
	switch f.Status {
	case StatusActive:
		if v.IsCheckedOut {
			return false
		}
	case StatusCompleted:
		if !v.IsCheckedOut {
			return false
		}
	}
	if f.Date != nil && !sameDay(v.CheckInTime, *f.Date, loc) {
		return false
	}
	return containsFold(f.Search, v.FirstName, v.LastName, v.PersonToVisit)
}

// Apply keeps order and returns a new slice.
func (f Filter) Apply(list []Visitor, loc *time.Location) []Visitor {
	out := make([]Visitor, 0, len(list))
	for _, v := range list {
		if f.Match(v, loc) {
			out = append(out, v)
		}
	}
	return out
}

// PresentVisitors lists visitors still on site. The search also covers the
// visit purpose.
func PresentVisitors(list []Visitor, search string) []Visitor {
	out := make([]Visitor, 0, len(list))
	for _, v := range list {
		if v.IsCheckedOut {
			continue
		}
		if containsFold(search, v.FirstName, v.LastName, v.PersonToVisit, v.VisitPurpose) {
			out = append(out, v)
		}
	}
	return out
}

func containsFold(term string, fields ...string) bool {
	term = strings.TrimSpace(term)
	if term == "" {
		return true
	}
	fold := cases.Fold()
	needle := fold.String(term)
	for _, f := range fields {
		if strings.Contains(fold.String(f), needle) {
			return true
		}
	}
	return false
}
