package domain

import dErrors "hackgate/pkg/domain-errors"

// Category classifies a team by the kind of problem statement it selected.
// The category is derived from the problem statement and drives which
// per-institute nomination quota the team counts against.
type Category string

const (
	CategoryUnset    Category = ""
	CategorySoftware Category = "software"
	CategoryHardware Category = "hardware"
	// CategoryHardwareSoftware covers mixed problem statements. For quota
	// accounting it counts against the hardware limit.
	CategoryHardwareSoftware Category = "hardware_software"
)

func (c Category) IsValid() bool {
	switch c {
	case CategorySoftware, CategoryHardware, CategoryHardwareSoftware:
		return true
	}
	return false
}

// QuotaBucket collapses categories onto the two quota dimensions institutes
// configure. Mixed hardware/software teams draw from the hardware quota.
func (c Category) QuotaBucket() Category {
	if c == CategoryHardwareSoftware {
		return CategoryHardware
	}
	return c
}

func ParseCategory(raw string) (Category, error) {
	c := Category(raw)
	if !c.IsValid() {
		return CategoryUnset, dErrors.New(dErrors.CodeInvalidInput, "unknown category")
	}
	return c, nil
}

// SelectionStatus is the terminal per-team outcome of the selection round.
type SelectionStatus string

const (
	SelectionUnset      SelectionStatus = ""
	SelectionUniversity SelectionStatus = "university"
	SelectionInstitute  SelectionStatus = "institute"
)

func (s SelectionStatus) IsValid() bool {
	return s == SelectionUniversity || s == SelectionInstitute
}

func ParseSelectionStatus(raw string) (SelectionStatus, error) {
	s := SelectionStatus(raw)
	if !s.IsValid() {
		return SelectionUnset, dErrors.New(dErrors.CodeInvalidInput, "unknown selection status")
	}
	return s, nil
}

// Gender as recorded in member profiles. Only the female predicate matters for
// eligibility; other values are carried through untouched.
type Gender string

const (
	GenderFemale Gender = "F"
	GenderMale   Gender = "M"
	GenderOther  Gender = "O"
)
