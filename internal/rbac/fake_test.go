package rbac

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/iliyamo/opla-backend/internal/model"
)

// memStore is an in-memory RoleStore and MembershipStore.
type memStore struct {
	mu          sync.Mutex
	roles       map[string]model.RoleTemplate
	assignments map[string]model.RoleAssignment // key: org|type|id
	members     map[string]model.OrgMember      // key: org|user
	teams       map[string]string               // team -> org
	teamMembers map[string][]string             // team -> users

	insertConflicts int // force ErrConflict on the next N InsertRole calls
}

func newMemStore() *memStore {
	return &memStore{
		roles:       map[string]model.RoleTemplate{},
		assignments: map[string]model.RoleAssignment{},
		members:     map[string]model.OrgMember{},
		teams:       map[string]string{},
		teamMembers: map[string][]string{},
	}
}

func assignmentKey(org string, acc model.Accessor) string {
	return org + "|" + string(acc.Type) + "|" + acc.ID
}

func (m *memStore) addMember(org, user string, role model.OrgRole) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[org+"|"+user] = model.OrgMember{ID: "m-" + user, OrgID: org, UserID: user, Role: role}
}

func (m *memStore) addTeam(org, team string, users ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teams[team] = org
	m.teamMembers[team] = append(m.teamMembers[team], users...)
}

func (m *memStore) InsertRole(_ context.Context, role *model.RoleTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertConflicts > 0 {
		m.insertConflicts--
		return model.ErrConflict
	}
	for _, r := range m.roles {
		if r.OrgID == role.OrgID && r.Slug == role.Slug {
			return model.ErrConflict
		}
	}
	m.roles[role.ID] = *role
	return nil
}

func (m *memStore) GetRole(_ context.Context, orgID, roleID string) (*model.RoleTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[roleID]
	if !ok || r.OrgID != orgID {
		return nil, fmt.Errorf("role: %w", model.ErrNotFound)
	}
	return &r, nil
}

func (m *memStore) GetRoleBySlug(_ context.Context, orgID, slug string) (*model.RoleTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles {
		if r.OrgID == orgID && r.Slug == slug {
			return &r, nil
		}
	}
	return nil, model.ErrNotFound
}

func (m *memStore) ListRoles(_ context.Context, orgID string) ([]model.RoleTemplate, error) {
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

func (m *memStore) UpdateRole(_ context.Context, role *model.RoleTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[role.ID] = *role
	return nil
}

func (m *memStore) DeleteRole(_ context.Context, orgID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.roles, roleID)
	return nil
}

func (m *memStore) CountAssignments(_ context.Context, roleID string) (int, error) {
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

func (m *memStore) UpsertAssignment(_ context.Context, a *model.RoleAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := assignmentKey(a.OrgID, a.Accessor)
	if prev, ok := m.assignments[key]; ok {
		a.ID = prev.ID
	}
	m.assignments[key] = *a
	return nil
}

func (m *memStore) ListAssignments(_ context.Context, orgID string) ([]model.RoleAssignment, error) {
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

func (m *memStore) DeleteAssignment(_ context.Context, orgID string, acc model.Accessor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := assignmentKey(orgID, acc)
	if _, ok := m.assignments[key]; !ok {
		return model.ErrNotFound
	}
	delete(m.assignments, key)
	return nil
}

func (m *memStore) GrantsFor(_ context.Context, orgID string, accessors []model.Accessor) ([]model.RoleGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.RoleGrant
	for _, acc := range accessors {
		a, ok := m.assignments[assignmentKey(orgID, acc)]
		if !ok {
			continue
		}
		out = append(out, model.RoleGrant{Assignment: a, Role: m.roles[a.RoleID]})
	}
	return out, nil
}

func (m *memStore) GetMember(_ context.Context, orgID, userID string) (*model.OrgMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.members[orgID+"|"+userID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &mem, nil
}

func (m *memStore) TeamExists(_ context.Context, orgID, teamID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.teams[teamID] == orgID, nil
}

func (m *memStore) TeamIDsForUser(_ context.Context, orgID, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for team, users := range m.teamMembers {
		if m.teams[team] != orgID {
			continue
		}
		for _, u := range users {
			if u == userID {
				out = append(out, team)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
