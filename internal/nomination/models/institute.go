// Package models holds the institute aggregate for the nomination quota
// manager.
package models

import (
	"time"

	id "hackgate/pkg/domain"
	dErrors "hackgate/pkg/domain-errors"
)

// Evaluation date counts. Ordinary institutes run a single evaluation round
// with an opening and closing date; designated multi-round institutes run two.
const (
	DatesSingleRound = 2
	DatesMultiRound  = 4
)

// Institute is an organizational unit with its own nomination ceilings and
// evaluation schedule. The nominated-team count is never stored here: it is
// derived live from team records so the ceiling and the count cannot drift.
type Institute struct {
	ID   id.InstituteID `json:"id"`
	Name string         `json:"name"`

	LimitSoftware int `json:"nomination_limit_software"`
	LimitHardware int `json:"nomination_limit_hardware"`

	// MultiRound institutes carry four evaluation dates instead of two.
	MultiRound      bool        `json:"multi_round"`
	EvaluationDates []time.Time `json:"evaluation_dates,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewInstitute constructs an institute with no evaluation schedule yet.
func NewInstitute(instituteID id.InstituteID, name string, limitSoftware, limitHardware int, multiRound bool, now time.Time) (*Institute, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "institute name cannot be empty")
	}
	if limitSoftware < 0 || limitHardware < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "nomination limits cannot be negative")
	}
	return &Institute{
		ID:            instituteID,
		Name:          name,
		LimitSoftware: limitSoftware,
		LimitHardware: limitHardware,
		MultiRound:    multiRound,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Limit returns the nomination ceiling for a quota bucket. Hardware&Software
// teams land in the hardware bucket via Category.QuotaBucket.
func (i *Institute) Limit(bucket id.Category) int {
	if bucket == id.CategorySoftware {
		return i.LimitSoftware
	}
	return i.LimitHardware
}

// SetLimits updates the nomination ceilings. Lowering a limit below the
// current live count is allowed; existing nominations stand and no new ones
// fit until withdrawals bring the count under the new ceiling.
func (i *Institute) SetLimits(limitSoftware, limitHardware int, now time.Time) error {
	if limitSoftware < 0 || limitHardware < 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "nomination limits cannot be negative")
	}
	i.LimitSoftware = limitSoftware
	i.LimitHardware = limitHardware
	i.UpdatedAt = now
	return nil
}

// RequiredDates is the evaluation date count this institute must carry.
func (i *Institute) RequiredDates() int {
	if i.MultiRound {
		return DatesMultiRound
	}
	return DatesSingleRound
}

// SetEvaluationDates installs the evaluation schedule. The dates must match
// the institute's round shape, be strictly increasing, and fall inside the
// admin-configured global window. A zero window bound leaves that side
// unbounded, so an unconfigured window accepts any ordered schedule.
func (i *Institute) SetEvaluationDates(dates []time.Time, windowStart, windowEnd time.Time, now time.Time) error {
	if len(dates) != i.RequiredDates() {
		return dErrors.New(dErrors.CodeInvalidDateSet, "evaluation schedule has the wrong number of dates")
	}
	for n, d := range dates {
		if !windowStart.IsZero() && d.Before(windowStart) {
			return dErrors.New(dErrors.CodeInvalidDateSet, "evaluation date falls outside the global window")
		}
		if !windowEnd.IsZero() && d.After(windowEnd) {
			return dErrors.New(dErrors.CodeInvalidDateSet, "evaluation date falls outside the global window")
		}
		if n > 0 && !dates[n-1].Before(d) {
			return dErrors.New(dErrors.CodeInvalidDateSet, "evaluation dates must be strictly increasing")
		}
	}
	i.EvaluationDates = append([]time.Time(nil), dates...)
	i.UpdatedAt = now
	return nil
}

// NominationOpen reports whether nominations are accepted at the given
// instant. Nomination opens after the second evaluation date, once the first
// evaluation round has closed.
func (i *Institute) NominationOpen(now time.Time) bool {
	if len(i.EvaluationDates) < 2 {
		return false
	}
	return now.After(i.EvaluationDates[1])
}

// Clone returns a deep copy for stores handing out values.
func (i *Institute) Clone() *Institute {
	clone := *i
	clone.EvaluationDates = append([]time.Time(nil), i.EvaluationDates...)
	return &clone
}
