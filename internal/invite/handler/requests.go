package handler

import (
	"strings"

	registrymodels "hackgate/internal/registry/models"
	id "hackgate/pkg/domain"
	dErrors "hackgate/pkg/domain-errors"
)

// JoinRequest is the HTTP request body for POST /join. The member details are
// snapshotted onto the roster; the joining user's ID comes from the token
// claims.
type JoinRequest struct {
	Token  string        `json:"token"`
	Member MemberPayload `json:"member"`
}

// MemberPayload carries the roster snapshot fields for the joining user.
type MemberPayload struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	EnrollmentNo string `json:"enrollment_no"`
	ContactNo    string `json:"contact_no"`
	Gender       string `json:"gender"`
	YearOfStudy  int    `json:"year_of_study"`
	Semester     int    `json:"semester"`
}

// Validate validates and normalizes the request.
func (r *JoinRequest) Validate() error {
	r.Token = strings.TrimSpace(r.Token)
	if r.Token == "" {
		return dErrors.New(dErrors.CodeValidation, "token is required")
	}
	r.Member.Name = strings.TrimSpace(r.Member.Name)
	r.Member.Email = strings.TrimSpace(r.Member.Email)
	if r.Member.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "member.name is required")
	}
	if r.Member.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "member.email is required")
	}
	switch id.Gender(r.Member.Gender) {
	case id.GenderFemale, id.GenderMale, id.GenderOther:
	default:
		return dErrors.New(dErrors.CodeValidation, "member.gender must be one of F, M, O")
	}
	return nil
}

// MemberRef builds the domain roster entry for the joining user.
func (p *MemberPayload) MemberRef(userID id.UserID) registrymodels.MemberRef {
	return registrymodels.MemberRef{
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
