package gateway

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/opla-backend/internal/model"
)

// memDB is an in-memory stand-in for every repository the gateway and the
// resolver use.
type memDB struct {
	mu          sync.Mutex
	users       map[string]model.Identity
	orgs        map[string]model.Organization
	members     map[string]model.OrgMember // org|user
	teams       map[string]model.Team
	teamMembers map[string]model.TeamMember // team|user
	roles       map[string]model.RoleTemplate
	assignments map[string]model.RoleAssignment // org|type|id
}

func newMemDB() *memDB {
	return &memDB{
		users:       map[string]model.Identity{},
		orgs:        map[string]model.Organization{},
		members:     map[string]model.OrgMember{},
		teams:       map[string]model.Team{},
		teamMembers: map[string]model.TeamMember{},
		roles:       map[string]model.RoleTemplate{},
		assignments: map[string]model.RoleAssignment{},
	}
}

func idOr(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// users

type memUsers struct{ *memDB }

func (m memUsers) Create(_ context.Context, u *model.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.users {
		if (u.Email != nil && e.Email != nil && *u.Email == *e.Email) ||
			(u.Phone != nil && e.Phone != nil && *u.Phone == *e.Phone) {
			return model.ErrConflict
		}
	}
	u.ID = idOr(u.ID)
	u.CreatedAt, u.UpdatedAt = time.Now(), time.Now()
	m.users[u.ID] = *u
	return nil
}

func (m memUsers) find(match func(model.Identity) bool) (*model.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, model.ErrNotFound
}

func (m memUsers) GetByID(_ context.Context, id string) (*model.Identity, error) {
	return m.find(func(u model.Identity) bool { return u.ID == id })
}

func (m memUsers) GetByEmail(_ context.Context, email string) (*model.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return m.find(func(u model.Identity) bool { return model.Deref(u.Email) == email })
}

func (m memUsers) GetByPhone(_ context.Context, phone string) (*model.Identity, error) {
	return m.find(func(u model.Identity) bool { return model.Deref(u.Phone) == phone })
}

func (m memUsers) GetByEmailOrPhone(_ context.Context, v string) (*model.Identity, error) {
	return m.find(func(u model.Identity) bool {
		return model.Deref(u.Email) == strings.ToLower(v) || model.Deref(u.Phone) == v
	})
}

func (m memUsers) setActive(id string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	u.IsActive = active
	m.users[id] = u
}

func (m memUsers) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
}

// organizations

type memOrgs struct{ *memDB }

func (m memOrgs) CreateWithOwner(_ context.Context, org *model.Organization, owner *model.OrgMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orgs {
		if o.Slug == org.Slug {
			return model.ErrConflict
		}
	}
	org.ID = idOr(org.ID)
	owner.ID = idOr(owner.ID)
	owner.OrgID = org.ID
	m.orgs[org.ID] = *org
	m.members[org.ID+"|"+owner.UserID] = *owner
	return nil
}

func (m memOrgs) SlugExists(_ context.Context, slug string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orgs {
		if o.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (m memOrgs) GetByID(_ context.Context, id string) (*model.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orgs[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &o, nil
}

func (m memOrgs) ListForUser(_ context.Context, userID string) ([]model.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Organization
	for _, mem := range m.members {
		if mem.UserID == userID {
			out = append(out, m.orgs[mem.OrgID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

// memberships (gateway.MemberStore and rbac.MembershipStore)

type memMembers struct{ *memDB }

func (m memMembers) AddMember(_ context.Context, mem *model.OrgMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := mem.OrgID + "|" + mem.UserID
	if _, ok := m.members[key]; ok {
		return model.ErrConflict
	}
	mem.ID = idOr(mem.ID)
	m.members[key] = *mem
	return nil
}

func (m memMembers) GetMember(_ context.Context, orgID, userID string) (*model.OrgMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.members[orgID+"|"+userID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &mem, nil
}

func (m memMembers) ListMembers(_ context.Context, orgID string) ([]model.OrgMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.OrgMember
	for _, mem := range m.members {
		if mem.OrgID == orgID {
			out = append(out, mem)
		}
	}
	return out, nil
}

func (m memMembers) TeamExists(_ context.Context, orgID, teamID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[teamID]
	return ok && t.OrgID == orgID, nil
}

func (m memMembers) TeamIDsForUser(_ context.Context, orgID, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, tm := range m.teamMembers {
		if tm.UserID == userID && m.teams[tm.TeamID].OrgID == orgID {
			out = append(out, tm.TeamID)
		}
	}
	return out, nil
}

// teams

type memTeams struct{ *memDB }

func (m memTeams) Create(_ context.Context, t *model.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = idOr(t.ID)
	m.teams[t.ID] = *t
	return nil
}

func (m memTeams) Get(_ context.Context, orgID, teamID string) (*model.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[teamID]
	if !ok || t.OrgID != orgID {
		return nil, model.ErrNotFound
	}
	return &t, nil
}

func (m memTeams) ListByOrg(_ context.Context, orgID string) ([]model.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Team
	for _, t := range m.teams {
		if t.OrgID == orgID {
			for _, tm := range m.teamMembers {
				if tm.TeamID == t.ID {
					t.MemberCount++
				}
			}
			out = append(out, t)
		}
	}
	return out, nil
}

func (m memTeams) Update(_ context.Context, t *model.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teams[t.ID] = *t
	return nil
}

func (m memTeams) Delete(_ context.Context, orgID, teamID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.teams[teamID]; !ok || t.OrgID != orgID {
		return model.ErrNotFound
	}
	delete(m.teams, teamID)
	delete(m.assignments, orgID+"|team|"+teamID)
	for k, tm := range m.teamMembers {
		if tm.TeamID == teamID {
			delete(m.teamMembers, k)
		}
	}
	return nil
}

func (m memTeams) AddMember(_ context.Context, teamID, userID string) (*model.TeamMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := teamID + "|" + userID
	if tm, ok := m.teamMembers[key]; ok {
		return &tm, nil
	}
	tm := model.TeamMember{ID: uuid.NewString(), TeamID: teamID, UserID: userID, JoinedAt: time.Now()}
	m.teamMembers[key] = tm
	return &tm, nil
}

func (m memTeams) RemoveMember(_ context.Context, teamID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := teamID + "|" + userID
	if _, ok := m.teamMembers[key]; !ok {
		return model.ErrNotFound
	}
	delete(m.teamMembers, key)
	return nil
}

func (m memTeams) ListMembers(_ context.Context, teamID string) ([]model.TeamMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.TeamMember
	for _, tm := range m.teamMembers {
		if tm.TeamID == teamID {
			out = append(out, tm)
		}
	}
	return out, nil
}

// roles (rbac.RoleStore)

type memRoles struct{ *memDB }

func (m memRoles) InsertRole(_ context.Context, role *model.RoleTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles {
		if r.OrgID == role.OrgID && r.Slug == role.Slug {
			return model.ErrConflict
		}
	}
	role.ID = idOr(role.ID)
	m.roles[role.ID] = *role
	return nil
}

func (m memRoles) GetRole(_ context.Context, orgID, roleID string) (*model.RoleTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[roleID]
	if !ok || r.OrgID != orgID {
		return nil, model.ErrNotFound
	}
	return &r, nil
}

func (m memRoles) GetRoleBySlug(_ context.Context, orgID, slug string) (*model.RoleTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles {
		if r.OrgID == orgID && r.Slug == slug {
			return &r, nil
		}
	}
	return nil, model.ErrNotFound
}

func (m memRoles) ListRoles(_ context.Context, orgID string) ([]model.RoleTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.RoleTemplate
	for _, r := range m.roles {
		if r.OrgID == orgID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

func (m memRoles) UpdateRole(_ context.Context, role *model.RoleTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[role.ID] = *role
	return nil
}

func (m memRoles) DeleteRole(_ context.Context, _, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.roles, roleID)
	return nil
}

func (m memRoles) CountAssignments(_ context.Context, roleID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.assignments {
		if a.RoleID == roleID {
			n++
		}
	}
	return n, nil
}

func (m memRoles) UpsertAssignment(_ context.Context, a *model.RoleAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[a.OrgID+"|"+string(a.Accessor.Type)+"|"+a.Accessor.ID] = *a
	return nil
}

func (m memRoles) ListAssignments(_ context.Context, orgID string) ([]model.RoleAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.RoleAssignment
	for _, a := range m.assignments {
		if a.OrgID == orgID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m memRoles) DeleteAssignment(_ context.Context, orgID string, acc model.Accessor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := orgID + "|" + string(acc.Type) + "|" + acc.ID
	if _, ok := m.assignments[key]; !ok {
		return model.ErrNotFound
	}
	delete(m.assignments, key)
	return nil
}

func (m memRoles) GrantsFor(_ context.Context, orgID string, accessors []model.Accessor) ([]model.RoleGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.RoleGrant
	for _, acc := range accessors {
		if a, ok := m.assignments[orgID+"|"+string(acc.Type)+"|"+acc.ID]; ok {
			out = append(out, model.RoleGrant{Assignment: a, Role: m.roles[a.RoleID]})
		}
	}
	return out, nil
}
