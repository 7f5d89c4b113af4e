package services

import (
	"context"
	"errors"
	"testing"

	"github.com/palateclub/palate/db"
	"github.com/palateclub/palate/roles"
)

func TestAssignFirstTime(t *testing.T) {
	f := newFixture()
	f.relations.add("p1", "c1", roles.RoleParticipant)
	svc := f.division()

	granted, err := svc.Assign(context.Background(), "boss", "c1", "d1", "p1")
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if len(granted) != 1 || granted[0] != string(roles.RoleMember) {
		t.Errorf("first assignment should grant member, got %v", granted)
	}

	has, _ := f.relations.HasRole(context.Background(), "p1", "d1", roles.RoleMember)
	if !has {
		t.Error("expected member relation on d1")
	}
}

func TestAssignMovesFullRoleSet(t *testing.T) {
	f := newFixture()
	f.relations.add("p1", "c1", roles.RoleParticipant)
	f.relations.add("p1", "d1", roles.RoleMember)
	f.relations.add("p1", "d1", roles.RoleGuide)
	svc := f.division()
	ctx := context.Background()

	granted, err := svc.Assign(ctx, "boss", "c1", "d2", "p1")
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if len(granted) != 2 {
		t.Fatalf("expected the guide role to move too, got %v", granted)
	}

	// The old division is empty, the new one carries the exact set
	old, _ := f.relations.ListForUserTeam(ctx, "p1", "d1")
	if len(old) != 0 {
		t.Errorf("expected d1 cleared, got %d relations", len(old))
	}
	for _, role := range []roles.Role{roles.RoleMember, roles.RoleGuide} {
		has, _ := f.relations.HasRole(ctx, "p1", "d2", role)
		if !has {
			t.Errorf("expected %s on d2 after the move", role)
		}
	}
}

func TestAssignDualAuthority(t *testing.T) {
	f := newFixture()
	f.relations.add("lead1", "d1", roles.RoleLeader)
	f.relations.add("lead1", "c1", roles.RoleParticipant)
	f.relations.add("p1", "c1", roles.RoleParticipant)
	svc := f.division()
	ctx := context.Background()

	// A division leader can assign into their own division
	if _, err := svc.Assign(ctx, "lead1", "c1", "d1", "p1"); err != nil {
		t.Errorf("leader assign into own division failed: %v", err)
	}

	// But not into a sibling division
	f.relations.add("p2", "c1", roles.RoleParticipant)
	if _, err := svc.Assign(ctx, "lead1", "c1", "d2", "p2"); !errors.Is(err, roles.ErrForbidden) {
		t.Errorf("expected ErrForbidden for sibling division, got %v", err)
	}

	// Plain participants have no assignment authority at all
	if _, err := svc.Assign(ctx, "p1", "c1", "d1", "p2"); !errors.Is(err, roles.ErrForbidden) {
		t.Errorf("expected ErrForbidden for participant, got %v", err)
	}
}

func TestAssignHierarchyValidation(t *testing.T) {
	f := newFixture()
	f.teams.add(&db.Team{ID: "c2", Name: "Other Open", Slug: "other", Kind: db.KindContest})
	svc := f.division()
	ctx := context.Background()

	// d1 belongs to c1, not c2
	if _, err := svc.Assign(ctx, "boss", "c2", "d1", "p1"); !errors.Is(err, roles.ErrInvalidHierarchy) {
		t.Errorf("expected ErrInvalidHierarchy for foreign division, got %v", err)
	}

	// A traditional team is not a contest
	if _, err := svc.Assign(ctx, "boss", "t1", "d1", "p1"); !errors.Is(err, roles.ErrInvalidHierarchy) {
		t.Errorf("expected ErrInvalidHierarchy for non-contest, got %v", err)
	}
}

func TestUnassign(t *testing.T) {
	f := newFixture()
	f.relations.add("p1", "d1", roles.RoleMember)
	f.relations.add("p1", "d1", roles.RoleGuide)
	svc := f.division()
	ctx := context.Background()

	if err := svc.Unassign(ctx, "boss", "c1", "d1", "p1"); err != nil {
		t.Fatalf("Unassign failed: %v", err)
	}
	rels, _ := f.relations.ListForUserTeam(ctx, "p1", "d1")
	if len(rels) != 0 {
		t.Errorf("expected all division roles removed, got %d", len(rels))
	}

	// Unassigning again is an error, the user is no longer there
	if err := svc.Unassign(ctx, "boss", "c1", "d1", "p1"); !errors.Is(err, roles.ErrNotAssigned) {
		t.Errorf("expected ErrNotAssigned, got %v", err)
	}
}

func TestCopyParticipants(t *testing.T) {
	f := newFixture()
	f.teams.add(&db.Team{ID: "c2", Name: "Next Year Open", Slug: "next-year", Kind: db.KindContest})
	f.relations.add("boss", "c2", roles.RoleOwner)
	f.relations.add("p1", "c1", roles.RoleParticipant)
	f.relations.add("p2", "c1", roles.RoleParticipant)
	f.relations.add("p2", "c2", roles.RoleParticipant) // already seeded
	f.relations.add("adm", "c1", roles.RoleAdmin)      // not a participant, must not copy
	svc := f.division()
	ctx := context.Background()

	report, err := svc.CopyParticipants(ctx, "boss", "c1", "c2")
	if err != nil {
		t.Fatalf("CopyParticipants failed: %v", err)
	}
	if len(report.Copied) != 1 || report.Copied[0] != "p1" {
		t.Errorf("unexpected copied set: %v", report.Copied)
	}
	if len(report.AlreadyMember) != 1 || report.AlreadyMember[0] != "p2" {
		t.Errorf("unexpected already_member set: %v", report.AlreadyMember)
	}

	// Only the participant role crosses over
	has, _ := f.relations.HasRole(ctx, "adm", "c2", roles.RoleAdmin)
	if has {
		t.Error("admin role must not be copied")
	}
}

func TestCopyParticipantsAuthority(t *testing.T) {
	f := newFixture()
	f.teams.add(&db.Team{ID: "c2", Name: "Next Year Open", Slug: "next-year", Kind: db.KindContest})
	// boss manages c1 but not c2
	svc := f.division()

	if _, err := svc.CopyParticipants(context.Background(), "boss", "c1", "c2"); !errors.Is(err, roles.ErrForbidden) {
		t.Errorf("expected ErrForbidden without authority on the target, got %v", err)
	}
}
