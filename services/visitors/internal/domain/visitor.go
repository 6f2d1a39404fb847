package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/accueilpro/accueilpro/pkg/visits"
)

var (
	ErrNotFound   = errors.New("visitor not found")
	ErrValidation = errors.New("validation failed")
)

type CheckInRequest struct {
	FirstName     string        `json:"first_name"`
	LastName      string        `json:"last_name"`
	Phone         string        `json:"phone"`
	IDType        visits.IDType `json:"id_type"`
	IDNumber      string        `json:"id_number"`
	Photo         *string       `json:"photo,omitempty"`
	VisitPurpose  string        `json:"visit_purpose"`
	PersonToVisit string        `json:"person_to_visit"`
}

func (r *CheckInRequest) Normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Phone = strings.TrimSpace(r.Phone)
	r.IDNumber = strings.TrimSpace(r.IDNumber)
	r.VisitPurpose = strings.TrimSpace(r.VisitPurpose)
	r.PersonToVisit = strings.TrimSpace(r.PersonToVisit)
	if r.Photo != nil && strings.TrimSpace(*r.Photo) == "" {
		r.Photo = nil
	}
}

func (r *CheckInRequest) Validate() error {
	required := []struct {
		field, value string
	}{
		{"first_name", r.FirstName},
		{"last_name", r.LastName},
		{"phone", r.Phone},
		{"id_type", string(r.IDType)},
		{"id_number", r.IDNumber},
		{"visit_purpose", r.VisitPurpose},
		{"person_to_visit", r.PersonToVisit},
	}
	for _, f := range required {
		if f.value == "" {
			return fmt.Errorf("%w: %s is required", ErrValidation, f.field)
		}
	}
	if !r.IDType.Valid() {
		return fmt.Errorf("%w: invalid id_type %q", ErrValidation, r.IDType)
	}
	return nil
}

// StatsReport bundles everything the dashboard cards and chart need.
type StatsReport struct {
	Stats    visits.DashboardStats `json:"stats"`
	Trends   visits.Trends         `json:"trends"`
	Activity []visits.DayActivity  `json:"activity"`
}
