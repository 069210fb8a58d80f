package handler

import (
	"strings"

	"hackgate/internal/jury/models"
	dErrors "hackgate/pkg/domain-errors"
)

// MemberPayload is one jury member in a panel request body.
type MemberPayload struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Institute  string `json:"institute"`
	ContactNo  string `json:"contact_no"`
	Department string `json:"department"`
}

func (p *MemberPayload) validate(field string) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	if p.Name == "" {
		return dErrors.New(dErrors.CodeValidation, field+".name is required")
	}
	if p.Email == "" {
		return dErrors.New(dErrors.CodeValidation, field+".email is required")
	}
	return nil
}

// Member builds the domain panel member. Identity is assigned at finalize.
func (p *MemberPayload) Member() models.Member {
	return models.Member{
		Name:       p.Name,
		Email:      p.Email,
		Institute:  p.Institute,
		ContactNo:  p.ContactNo,
		Department: p.Department,
	}
}

// PanelRequest is the HTTP request body for POST /panels and
// PUT /panels/{panelID}. Member count bounds are enforced by the panel model.
type PanelRequest struct {
	Name               string          `json:"name"`
	Members            []MemberPayload `json:"members"`
	StudentCoordinator *string         `json:"student_coordinator,omitempty"`
}

// Validate validates and normalizes the request.
func (r *PanelRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "panel name is required")
	}
	for i := range r.Members {
		if err := r.Members[i].validate("members"); err != nil {
			return err
		}
	}
	return nil
}

// DomainMembers converts the payload roster to domain members.
func (r *PanelRequest) DomainMembers() []models.Member {
	members := make([]models.Member, 0, len(r.Members))
	for i := range r.Members {
		members = append(members, r.Members[i].Member())
	}
	return members
}

// ReplaceMemberRequest is the HTTP request body for
// PUT /panels/{panelID}/members/{index}.
type ReplaceMemberRequest struct {
	Member MemberPayload `json:"member"`
}

func (r *ReplaceMemberRequest) Validate() error {
	return r.Member.validate("member")
}

// AssignTeamRequest is the HTTP request body for POST /panels/{panelID}/assign.
type AssignTeamRequest struct {
	TeamID string `json:"team_id"`
}

func (r *AssignTeamRequest) Validate() error {
	if strings.TrimSpace(r.TeamID) == "" {
		return dErrors.New(dErrors.CodeValidation, "team_id is required")
	}
	return nil
}
