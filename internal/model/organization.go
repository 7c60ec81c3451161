package model

import "time"

// OrgRole is the coarse role stored on an organization membership row. It
// is independent from role templates; an admin member implicitly holds the
// wildcard permission.
type OrgRole string

const (
	OrgRoleAdmin  OrgRole = "admin"
	OrgRoleMember OrgRole = "member"
)

// InvitationStatus tracks whether an invited member has joined.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
)

// Organization mirrors the `organizations` table.
type Organization struct {
	ID           string
	Name         string
	Slug         string // globally unique
	OwnerID      string
	LogoURL      *string
	PrimaryColor string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OrgMember mirrors the `org_members` table. (UserID, OrgID) is unique.
type OrgMember struct {
	ID               string
	UserID           string
	OrgID            string
	Role             OrgRole
	InvitedBy        *string
	InvitationStatus InvitationStatus
	JoinedAt         time.Time
}

// Team mirrors the `teams` table.
type Team struct {
	ID          string
	OrgID       string
	Name        string
	Description *string
	MemberCount int // populated by list queries only
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TeamMember mirrors the `team_members` table. (TeamID, UserID) is unique.
type TeamMember struct {
	ID       string
	TeamID   string
	UserID   string
	JoinedAt time.Time
}
