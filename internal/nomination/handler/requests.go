package handler

import (
	"strings"
	"time"

	dErrors "hackgate/pkg/domain-errors"
)

// CreateInstituteRequest is the HTTP request body for POST /institutes.
type CreateInstituteRequest struct {
	Name          string `json:"name"`
	LimitSoftware int    `json:"nomination_limit_software"`
	LimitHardware int    `json:"nomination_limit_hardware"`
	MultiRound    bool   `json:"multi_round"`
}

// Validate validates and normalizes the request.
func (r *CreateInstituteRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "institute name is required")
	}
	if r.LimitSoftware < 0 || r.LimitHardware < 0 {
		return dErrors.New(dErrors.CodeValidation, "nomination limits cannot be negative")
	}
	return nil
}

// SetLimitsRequest is the HTTP request body for PUT /institutes/{id}/limits.
type SetLimitsRequest struct {
	LimitSoftware int `json:"nomination_limit_software"`
	LimitHardware int `json:"nomination_limit_hardware"`
}

func (r *SetLimitsRequest) Validate() error {
	if r.LimitSoftware < 0 || r.LimitHardware < 0 {
		return dErrors.New(dErrors.CodeValidation, "nomination limits cannot be negative")
	}
	return nil
}

// SetEvaluationDatesRequest is the HTTP request body for
// PUT /institutes/{id}/evaluation-dates. Date count and ordering rules are
// enforced by the institute model against its round structure.
type SetEvaluationDatesRequest struct {
	Dates []time.Time `json:"evaluation_dates"`
}

func (r *SetEvaluationDatesRequest) Validate() error {
	if len(r.Dates) == 0 {
		return dErrors.New(dErrors.CodeValidation, "evaluation_dates is required")
	}
	return nil
}
