package roles

import (
	"context"
	"testing"

	"github.com/palateclub/palate/db"
)

func TestGuardRequire(t *testing.T) {
	guard := NewGuard(nil)

	tests := []struct {
		name    string
		set     RoleSet
		allowed []Role
		wantErr error
	}{
		{"owner passes default managers", NewRoleSet(RoleOwner), Managers, nil},
		{"admin passes default managers", NewRoleSet(RoleAdmin), Managers, nil},
		{"member fails default managers", NewRoleSet(RoleMember), Managers, ErrForbidden},
		{"editor passes invite set", NewRoleSet(RoleEditor), []Role{RoleOwner, RoleAdmin, RoleEditor}, nil},
		{"unrelated fails everything", NewRoleSet(RoleUnrelated), Managers, ErrForbidden},
		{"pending marker fails managers", NewRoleSet(Requested(RoleAdmin)), Managers, ErrForbidden},
		{"prefixed division role fails bare check", NewRoleSet(DivisionScoped(RoleLeader)), []Role{RoleLeader}, ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := guard.Require(tt.set, tt.allowed...); err != tt.wantErr {
				t.Errorf("Require() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGuardRequireTeam(t *testing.T) {
	resolver, teams, relations, _ := newTestResolver()
	guard := NewGuard(resolver)
	ctx := context.Background()

	relations.AddRelation("u1", "t1", RoleAdmin)

	set, err := guard.RequireTeam(ctx, teams.Teams["t1"], "u1", Managers...)
	if err != nil {
		t.Fatalf("RequireTeam error: %v", err)
	}
	if !set.Has(RoleAdmin) {
		t.Errorf("returned set = %v, want admin", set.Keys())
	}

	if _, err := guard.RequireTeam(ctx, teams.Teams["t1"], "stranger", Managers...); err != ErrForbidden {
		t.Errorf("RequireTeam(stranger) = %v, want ErrForbidden", err)
	}
}

func TestDualAuthority(t *testing.T) {
	resolver, teams, relations, _ := newTestResolver()
	guard := NewGuard(resolver)
	ctx := context.Background()

	contest := teams.Teams["c1"]
	d1 := teams.Teams["d1"]
	d2 := teams.Teams["d2"]

	// Division leader with no contest relation passes
	relations.AddRelation("lead", "d1", RoleLeader)
	if err := guard.RequireContestOrDivision(ctx, contest, d1, "lead"); err != nil {
		t.Errorf("division leader should pass, got %v", err)
	}

	// ...but only for their own division
	if err := guard.RequireContestOrDivision(ctx, contest, d2, "lead"); err != ErrForbidden {
		t.Errorf("leader of d1 on d2 = %v, want ErrForbidden", err)
	}

	// Contest admin with no division relation passes
	relations.AddRelation("boss", "c1", RoleAdmin)
	if err := guard.RequireContestOrDivision(ctx, contest, d1, "boss"); err != nil {
		t.Errorf("contest admin should pass, got %v", err)
	}

	// Plain division member fails
	relations.AddRelation("taster", "d1", RoleMember)
	if err := guard.RequireContestOrDivision(ctx, contest, d1, "taster"); err != ErrForbidden {
		t.Errorf("division member = %v, want ErrForbidden", err)
	}

	// Contest participant fails: participation is not authority
	relations.AddRelation("part", "c1", RoleParticipant)
	if err := guard.RequireContestOrDivision(ctx, contest, d1, "part"); err != ErrForbidden {
		t.Errorf("contest participant = %v, want ErrForbidden", err)
	}
}

func TestDualAuthorityHierarchyChecks(t *testing.T) {
	resolver, teams, relations, _ := newTestResolver()
	guard := NewGuard(resolver)
	ctx := context.Background()

	relations.AddRelation("boss", "c1", RoleAdmin)

	// A foreign division is rejected before any resolution happens
	foreign := &db.Team{ID: "dx", Kind: db.KindDivision, ParentID: "other-contest"}
	if err := guard.RequireContestOrDivision(ctx, teams.Teams["c1"], foreign, "boss"); err != ErrInvalidHierarchy {
		t.Errorf("foreign division = %v, want ErrInvalidHierarchy", err)
	}

	// A non-division second argument is rejected too
	if err := guard.RequireContestOrDivision(ctx, teams.Teams["c1"], teams.Teams["t1"], "boss"); err != ErrInvalidHierarchy {
		t.Errorf("non-division = %v, want ErrInvalidHierarchy", err)
	}
}
