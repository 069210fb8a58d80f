package handler

import (
	"strings"

	"hackgate/internal/registry/models"
	id "hackgate/pkg/domain"
	dErrors "hackgate/pkg/domain-errors"
)

// MemberPayload is the roster-entry portion shared by team creation and join
// requests. The acting user's ID comes from the access token, never the body.
type MemberPayload struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	EnrollmentNo string `json:"enrollment_no"`
	ContactNo    string `json:"contact_no"`
	Gender       string `json:"gender"`
	YearOfStudy  int    `json:"year_of_study"`
	Semester     int    `json:"semester"`
}

func (p *MemberPayload) validate() error {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	if p.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if p.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	switch id.Gender(p.Gender) {
	case id.GenderFemale, id.GenderMale, id.GenderOther:
	default:
		return dErrors.New(dErrors.CodeValidation, "gender must be one of F, M, O")
	}
	return nil
}

// MemberRef builds the domain roster entry for the given acting user.
func (p *MemberPayload) MemberRef(userID id.UserID) models.MemberRef {
	return models.MemberRef{
		UserID:       userID,
		Name:         p.Name,
		Email:        p.Email,
		EnrollmentNo: p.EnrollmentNo,
		ContactNo:    p.ContactNo,
		Gender:       id.Gender(p.Gender),
		YearOfStudy:  p.YearOfStudy,
		Semester:     p.Semester,
	}
}

// CreateTeamRequest is the HTTP request body for POST /teams.
type CreateTeamRequest struct {
	Name   string        `json:"name"`
	Leader MemberPayload `json:"leader"`
}

// Validate validates and normalizes the request.
func (r *CreateTeamRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "team name is required")
	}
	if len(r.Name) > 128 {
		return dErrors.New(dErrors.CodeValidation, "team name must be at most 128 characters")
	}
	return r.Leader.validate()
}

// RenameTeamRequest is the HTTP request body for PATCH /teams/{teamID}.
type RenameTeamRequest struct {
	Name string `json:"name"`
}

func (r *RenameTeamRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "team name is required")
	}
	if len(r.Name) > 128 {
		return dErrors.New(dErrors.CodeValidation, "team name must be at most 128 characters")
	}
	return nil
}

// ProblemStatementRequest is the HTTP request body for
// PUT /teams/{teamID}/problem-statement.
type ProblemStatementRequest struct {
	ProblemID string `json:"problem_id"`
	Category  string `json:"category"`

	parsedProblemID id.ProblemID
	parsedCategory  id.Category
}

// Validate validates and parses the request.
func (r *ProblemStatementRequest) Validate() error {
	problemID, err := id.ParseProblemID(strings.TrimSpace(r.ProblemID))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "problem_id must be a valid UUID")
	}
	category, err := id.ParseCategory(strings.TrimSpace(r.Category))
	if err != nil {
		return err
	}
	r.parsedProblemID = problemID
	r.parsedCategory = category
	return nil
}

func (r *ProblemStatementRequest) ParsedProblemID() id.ProblemID { return r.parsedProblemID }
func (r *ProblemStatementRequest) ParsedCategory() id.Category   { return r.parsedCategory }
