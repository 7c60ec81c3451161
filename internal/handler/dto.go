package handler

import (
	"time"

	"github.com/iliyamo/opla-backend/internal/model"
	"github.com/iliyamo/opla-backend/internal/token"
)

// ----- response DTOs -----

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type userResp struct {
	ID              string    `json:"id"`
	Email           *string   `json:"email"`
	Phone           *string   `json:"phone"`
	FullName        string    `json:"full_name"`
	IsActive        bool      `json:"is_active"`
	IsPlatformAdmin bool      `json:"is_platform_admin"`
	CreatedAt       time.Time `json:"created_at"`
}

type authResp struct {
	User    userResp  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

type orgResp struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	OwnerID      string    `json:"owner_id"`
	LogoURL      *string   `json:"logo_url"`
	PrimaryColor string    `json:"primary_color"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type memberResp struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	OrgID            string    `json:"org_id"`
	Role             string    `json:"global_role"`
	InvitationStatus string    `json:"invitation_status"`
	InvitedBy        *string   `json:"invited_by"`
	JoinedAt         time.Time `json:"joined_at"`
	EffectiveRole    *roleResp `json:"effective_role,omitempty"`
}

type roleResp struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"org_id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description"`
	Permissions []string  `json:"permissions"`
	Priority    int       `json:"priority"`
	IsSystem    bool      `json:"is_system"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type assignmentResp struct {
	ID           string    `json:"id"`
	OrgID        string    `json:"org_id"`
	RoleID       string    `json:"role_id"`
	AccessorType string    `json:"accessor_type"`
	AccessorID   string    `json:"accessor_id"`
	AssignedBy   *string   `json:"assigned_by"`
	CreatedAt    time.Time `json:"created_at"`
}

type teamResp struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"org_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	MemberCount int       `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type teamMemberResp struct {
	ID       string    `json:"id"`
	TeamID   string    `json:"team_id"`
	UserID   string    `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

func toToken(t token.Token) tokenPart { return tokenPart{Token: t.Token, Expires: t.Exp} }

func toUser(u *model.Identity) userResp {
	return userResp{
		ID:              u.ID,
		Email:           u.Email,
		Phone:           u.Phone,
		FullName:        u.FullName,
		IsActive:        u.IsActive,
		IsPlatformAdmin: u.IsPlatformAdmin,
		CreatedAt:       u.CreatedAt,
	}
}

func toOrg(o *model.Organization) orgResp {
	return orgResp{
		ID:           o.ID,
		Name:         o.Name,
		Slug:         o.Slug,
		OwnerID:      o.OwnerID,
		LogoURL:      o.LogoURL,
		PrimaryColor: o.PrimaryColor,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

func toMember(m *model.OrgMember) memberResp {
	return memberResp{
		ID:               m.ID,
		UserID:           m.UserID,
		OrgID:            m.OrgID,
		Role:             string(m.Role),
		InvitationStatus: string(m.InvitationStatus),
		InvitedBy:        m.InvitedBy,
		JoinedAt:         m.JoinedAt,
	}
}

func toRole(r *model.RoleTemplate) *roleResp {
	if r == nil {
		return nil
	}
	perms := r.Permissions
	if perms == nil {
		perms = []string{}
	}
	return &roleResp{
		ID:          r.ID,
		OrgID:       r.OrgID,
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
		Permissions: perms,
		Priority:    r.Priority,
		IsSystem:    r.IsSystem,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func toAssignment(a *model.RoleAssignment) assignmentResp {
	return assignmentResp{
		ID:           a.ID,
		OrgID:        a.OrgID,
		RoleID:       a.RoleID,
		AccessorType: string(a.Accessor.Type),
		AccessorID:   a.Accessor.ID,
		AssignedBy:   a.AssignedBy,
		CreatedAt:    a.CreatedAt,
	}
}

func toTeam(t *model.Team) teamResp {
	return teamResp{
		ID:          t.ID,
		OrgID:       t.OrgID,
		Name:        t.Name,
		Description: t.Description,
		MemberCount: t.MemberCount,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func toTeamMember(m *model.TeamMember) teamMemberResp {
	return teamMemberResp{ID: m.ID, TeamID: m.TeamID, UserID: m.UserID, JoinedAt: m.JoinedAt}
}
