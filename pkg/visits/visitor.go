// Package visits holds the visitor record and the pure computations made over
// a visitor list: dashboard counters, trends, daily activity and filtering.
package visits

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

type IDType string

const (
	IDPassport      IDType = "passport"
	IDNationalID    IDType = "nationalId"
	IDDriverLicense IDType = "driverLicense"
	IDOther         IDType = "other"
)

// IDTypes lists the accepted identity documents in form order.
var IDTypes = []IDType{IDPassport, IDNationalID, IDDriverLicense, IDOther}

var idTypeLabels = map[IDType]string{
	IDPassport:      "Passeport",
	IDNationalID:    "Carte d'identité",
	IDDriverLicense: "Permis de conduire",
	IDOther:         "Autre",
}

func (t IDType) Valid() bool {
	_, ok := idTypeLabels[t]
	return ok
}

func (t IDType) Label() string {
	if l, ok := idTypeLabels[t]; ok {
		return l
	}
	return string(t)
}

type Visitor struct {
	ID            uuid.UUID  `json:"id"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Phone         string     `json:"phone"`
	IDType        IDType     `json:"id_type"`
	IDNumber      string     `json:"id_number"`
	Photo         *string    `json:"photo,omitempty"`
	VisitPurpose  string     `json:"visit_purpose"`
	PersonToVisit string     `json:"person_to_visit"`
	CheckInTime   time.Time  `json:"check_in_time"`
	CheckOutTime  *time.Time `json:"check_out_time,omitempty"`
	IsCheckedOut  bool       `json:"is_checked_out"`
	CreatedBy     *uuid.UUID `json:"created_by,omitempty"`
}

func (v Visitor) FullName() string {
	return v.FirstName + " " + v.LastName
}

// Initials is shown in place of a missing photo.
func (v Visitor) Initials() string {
	var out []rune
	for _, s := range []string{v.FirstName, v.LastName} {
		for _, r := range s {
			out = append(out, r)
			break
		}
	}
	return string(out)
}

// Completed reports whether the visit has a recorded checkout.
func (v Visitor) Completed() bool {
	return v.IsCheckedOut && v.CheckOutTime != nil
}

// DurationMinutes is the visit length truncated to whole minutes.
// ok is false while the visitor is still on site.
func (v Visitor) DurationMinutes() (minutes int, ok bool) {
	if !v.Completed() {
		return 0, false
	}
	return int(v.CheckOutTime.Sub(v.CheckInTime) / time.Minute), true
}

// FormatDuration renders minutes as "45 min" or "2h 5min".
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	return fmt.Sprintf("%dh %dmin", minutes/60, minutes%60)
}

// SortByCheckIn orders the list newest check-in first, in place.
func SortByCheckIn(list []Visitor) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CheckInTime.After(list[j].CheckInTime)
	})
}

// sameDay compares calendar days in loc.
func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
