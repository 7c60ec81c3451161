package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/iliyamo/opla-backend/internal/model"
)

const org = "org-1"

func newTestResolver(t *testing.T) (*Resolver, *memStore) {
	t.Helper()
	store := newMemStore()
	r, err := NewResolver(store, store)
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	r.newID = func() string {
		n++
		return fmt.Sprintf("id-%03d", n)
	}
	return r, store
}

func seeded(t *testing.T, r *Resolver) map[string]model.RoleTemplate {
	t.Helper()
	roles, err := r.SeedSystemRoles(context.Background(), org)
	if err != nil {
		t.Fatal(err)
	}
	bySlug := map[string]model.RoleTemplate{}
	for _, role := range roles {
		bySlug[role.Slug] = role
	}
	return bySlug
}

func intPtr(i int) *int { return &i }

func TestNewResolver_RequiresStores(t *testing.T) {
	if _, err := NewResolver(nil, newMemStore()); err == nil {
		t.Fatal("expected error for nil role store")
	}
}

func TestEffectiveRole_TeamAdminOutranksDirectEditor(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()
	roles := seeded(t, r)
	store.addMember(org, "u1", model.OrgRoleMember)
	store.addTeam(org, "t1", "u1")

	if _, err := r.AssignRole(ctx, org, roles["editor"].ID, model.UserAccessor("u1"), "owner"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.AssignRole(ctx, org, roles["admin"].ID, model.TeamAccessor("t1"), "owner"); err != nil {
		t.Fatal(err)
	}

	res, err := r.EffectiveRole(ctx, org, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Role == nil || res.Role.Slug != "admin" {
		t.Fatalf("expected admin, got %+v", res.Role)
	}
	if len(res.Grants) != 2 {
		t.Fatalf("expected both grants, got %d", len(res.Grants))
	}
	if !model.PermissionsGrant(res.Permissions(), "anything:at-all") {
		t.Fatal("admin wildcard should satisfy every permission")
	}
}

func TestEffectiveRole_TieBreaksOnSmallestRoleID(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()
	store.addMember(org, "u1", model.OrgRoleMember)
	store.addTeam(org, "t1", "u1")
	for _, id := range []string{"role-b", "role-a"} {
		if err := store.InsertRole(ctx, &model.RoleTemplate{ID: id, OrgID: org, Slug: id, Priority: 70}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := r.AssignRole(ctx, org, "role-b", model.UserAccessor("u1"), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := r.AssignRole(ctx, org, "role-a", model.TeamAccessor("t1"), ""); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		res, err := r.EffectiveRole(ctx, org, "u1")
		if err != nil {
			t.Fatal(err)
		}
		if res.Role.ID != "role-a" {
			t.Fatalf("run %d: expected role-a, got %s", i, res.Role.ID)
		}
	}
}

func TestEffectiveRole_NoAssignments(t *testing.T) {
	r, store := newTestResolver(t)
	store.addMember(org, "u1", model.OrgRoleMember)

	res, err := r.EffectiveRole(context.Background(), org, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Role != nil || res.Permissions() != nil {
		t.Fatalf("expected no role, got %+v", res.Role)
	}
}

func TestEffectiveRole_IgnoresOtherOrganizations(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()
	roles := seeded(t, r)
	store.addMember(org, "u1", model.OrgRoleMember)
	store.addMember("org-2", "u1", model.OrgRoleMember)
	store.addTeam("org-2", "t-other", "u1")

	if _, err := r.AssignRole(ctx, org, roles["agent"].ID, model.UserAccessor("u1"), ""); err != nil {
		t.Fatal(err)
	}
	res, err := r.EffectiveRole(ctx, "org-2", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Role != nil {
		t.Fatalf("assignment leaked across organizations: %+v", res.Role)
	}
}

func TestAssignRole_Validation(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()
	roles := seeded(t, r)
	store.addMember(org, "u1", model.OrgRoleMember)
	store.addTeam("org-2", "t-foreign")
	if _, err := r.SeedSystemRoles(ctx, "org-2"); err != nil {
		t.Fatal(err)
	}
	foreignRole, _ := store.GetRoleBySlug(ctx, "org-2", "editor")

	cases := []struct {
		name   string
		roleID string
		acc    model.Accessor
		want   error
	}{
		{"role from another org", foreignRole.ID, model.UserAccessor("u1"), model.ErrNotFound},
		{"unknown role", "missing", model.UserAccessor("u1"), model.ErrNotFound},
		{"non-member user", roles["editor"].ID, model.UserAccessor("stranger"), model.ErrInvalidAccessor},
		{"team from another org", roles["editor"].ID, model.TeamAccessor("t-foreign"), model.ErrInvalidAccessor},
		{"unknown accessor type", roles["editor"].ID, model.Accessor{Type: "group", ID: "g1"}, model.ErrInvalidAccessor},
		{"empty accessor id", roles["editor"].ID, model.UserAccessor(""), model.ErrInvalidAccessor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.AssignRole(ctx, org, tc.roleID, tc.acc, "owner")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestAssignRole_UpsertKeepsSingleRow(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()
	roles := seeded(t, r)
	store.addMember(org, "u1", model.OrgRoleMember)

	if _, err := r.AssignRole(ctx, org, roles["agent"].ID, model.UserAccessor("u1"), "owner"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.AssignRole(ctx, org, roles["supervisor"].ID, model.UserAccessor("u1"), "owner"); err != nil {
		t.Fatal(err)
	}

	list, err := r.ListAssignments(ctx, org)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one assignment, got %d", len(list))
	}
	if list[0].RoleID != roles["supervisor"].ID {
		t.Fatalf("last write should win, got role %s", list[0].RoleID)
	}
}

func TestSystemRolesAreImmutable(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()
	roles := seeded(t, r)
	admin := roles["admin"]

	name := "Owner"
	if _, err := r.UpdateRole(ctx, org, admin.ID, RoleUpdate{Name: &name}); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("update: expected forbidden, got %v", err)
	}
	if err := r.DeleteRole(ctx, org, admin.ID); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("delete: expected forbidden, got %v", err)
	}
	after, err := r.roles.GetRole(ctx, org, admin.ID)
	if err != nil {
		t.Fatal(err)
	}
	if after.Name != "Admin" || after.Priority != 100 {
		t.Fatalf("system role changed: %+v", after)
	}
}

func TestDeleteRole_RefusedWhileAssigned(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()
	store.addMember(org, "u1", model.OrgRoleMember)

	role, err := r.CreateRole(ctx, org, RoleInput{Name: "Reviewer", Permissions: []string{"data:view"}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.AssignRole(ctx, org, role.ID, model.UserAccessor("u1"), ""); err != nil {
		t.Fatal(err)
	}
	if err := r.DeleteRole(ctx, org, role.ID); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := r.RemoveAssignment(ctx, org, model.UserAccessor("u1")); err != nil {
		t.Fatal(err)
	}
	if err := r.DeleteRole(ctx, org, role.ID); err != nil {
		t.Fatalf("delete after unassign: %v", err)
	}
	if err := r.DeleteRole(ctx, org, role.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("second delete: expected not found, got %v", err)
	}
}

func TestRemoveAssignment(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	if err := r.RemoveAssignment(ctx, org, model.UserAccessor("nobody")); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := r.RemoveAssignment(ctx, org, model.Accessor{Type: "robot", ID: "x"}); !errors.Is(err, model.ErrInvalidAccessor) {
		t.Fatalf("expected invalid accessor, got %v", err)
	}
}

func TestCreateRole_SlugSuffixes(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	want := []string{"field-team", "field-team-1", "field-team-2"}
	for _, w := range want {
		role, err := r.CreateRole(ctx, org, RoleInput{Name: "Field  Team!"})
		if err != nil {
			t.Fatal(err)
		}
		if role.Slug != w {
			t.Fatalf("expected slug %s, got %s", w, role.Slug)
		}
		if role.Priority != model.DefaultRolePriority || role.IsSystem {
			t.Fatalf("unexpected defaults: %+v", role)
		}
	}

	other, err := r.CreateRole(ctx, "org-2", RoleInput{Name: "Field Team", Priority: intPtr(10)})
	if err != nil {
		t.Fatal(err)
	}
	if other.Slug != "field-team" || other.Priority != 10 {
		t.Fatalf("slugs are scoped per organization: %+v", other)
	}
}

func TestCreateRole_RetriesOnInsertConflict(t *testing.T) {
	r, store := newTestResolver(t)
	store.insertConflicts = 1

	role, err := r.CreateRole(context.Background(), org, RoleInput{Name: "Auditor"})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if role.Slug != "auditor" {
		t.Fatalf("unexpected slug %s", role.Slug)
	}
}

func TestCreateRole_Validation(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	if _, err := r.CreateRole(ctx, org, RoleInput{Name: "   "}); !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("blank name: got %v", err)
	}
	if _, err := r.CreateRole(ctx, org, RoleInput{Name: "X", Permissions: []string{"forms view"}}); !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("bad permission: got %v", err)
	}
	role, err := r.CreateRole(ctx, org, RoleInput{Name: "X", Permissions: []string{" a ", "a", "", "b"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(role.Permissions) != 2 || role.Permissions[0] != "a" || role.Permissions[1] != "b" {
		t.Fatalf("permissions not normalized: %v", role.Permissions)
	}
}

func TestUpdateRole_Custom(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()
	role, err := r.CreateRole(ctx, org, RoleInput{Name: "Reviewer"})
	if err != nil {
		t.Fatal(err)
	}

	name := "Senior Reviewer"
	updated, err := r.UpdateRole(ctx, org, role.ID, RoleUpdate{
		Name:        &name,
		Permissions: []string{"data:view"},
		Priority:    intPtr(75),
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Name != name || updated.Priority != 75 || updated.Slug != "reviewer" {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	if _, err := r.UpdateRole(ctx, "org-2", role.ID, RoleUpdate{Name: &name}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("cross-org update: got %v", err)
	}
}

func TestSeedSystemRoles_Idempotent(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	first, err := r.SeedSystemRoles(ctx, org)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.SeedSystemRoles(ctx, org)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 4 || len(second) != 4 {
		t.Fatalf("expected four system roles, got %d and %d", len(first), len(second))
	}
	wantPriority := []int{100, 80, 60, 40}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("reseeding created a new %s role", first[i].Slug)
		}
		if first[i].Priority != wantPriority[i] || !first[i].IsSystem {
			t.Fatalf("unexpected seeded role %+v", first[i])
		}
	}
	all, _ := r.ListRoles(ctx, org)
	if len(all) != 4 {
		t.Fatalf("expected 4 roles in store, got %d", len(all))
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Field Team":        "field-team",
		"  --Hello, World--": "hello-world",
		"ÄÖÜ":               "",
		"Team #42":          "team-42",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUniqueSlug_ChecksLastSuffix(t *testing.T) {
	ctx := context.Background()
	want := fmt.Sprintf("team-%d", maxSlugSuffix)
	calls := 0
	slug, err := UniqueSlug(ctx, "team", MaxRoleSlugLen, func(_ context.Context, s string) (bool, error) {
		calls++
		return s != want, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if slug != want || calls != maxSlugSuffix+1 {
		t.Fatalf("got %q after %d lookups", slug, calls)
	}

	_, err = UniqueSlug(ctx, "team", MaxRoleSlugLen, func(context.Context, string) (bool, error) { return true, nil })
	if !errors.Is(err, model.ErrConflict) {
		t.Fatalf("expected conflict when every suffix is taken, got %v", err)
	}
}

func TestUniqueSlug_FitsColumn(t *testing.T) {
	ctx := context.Background()
	base := strings.Repeat("a", 60) + "-" + strings.Repeat("b", 60)
	seen := map[string]bool{}
	taken := func(_ context.Context, s string) (bool, error) { return seen[s], nil }
	for i := 0; i < 12; i++ {
		slug, err := UniqueSlug(ctx, base, MaxRoleSlugLen, taken)
		if err != nil {
			t.Fatal(err)
		}
		if len(slug) > MaxRoleSlugLen || seen[slug] {
			t.Fatalf("slug %q (len %d) too long or reused", slug, len(slug))
		}
		seen[slug] = true
	}
	if got := slugCandidate("abc-def", 1, 6); got != "abc-1" {
		t.Fatalf("dash before the suffix should be trimmed, got %q", got)
	}
}

func TestCreateRole_LongNameSlugFitsColumn(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()
	name := strings.Repeat("x", 100)
	first, err := r.CreateRole(ctx, org, RoleInput{Name: name})
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.CreateRole(ctx, org, RoleInput{Name: name})
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Slug) != 100 || len(second.Slug) != 100 || !strings.HasSuffix(second.Slug, "-1") {
		t.Fatalf("unexpected slugs %q, %q", first.Slug, second.Slug)
	}
}
