package services

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/palateclub/palate/db"
	"github.com/palateclub/palate/roles"
)

func newTeamService(t *testing.T, f *fixture) (*TeamService, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return NewTeamService(mockDB, f.teams, f.relations, f.guard), mock
}

func TestCreateTeamValidation(t *testing.T) {
	f := newFixture()
	svc, _ := newTeamService(t, f)
	ctx := context.Background()

	tests := []struct {
		name    string
		input   CreateTeamInput
		wantErr error
	}{
		{
			name:    "missing name",
			input:   CreateTeamInput{Slug: "x", Kind: "traditional"},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "unknown kind",
			input:   CreateTeamInput{Name: "X", Slug: "x", Kind: "committee"},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "contest must not have a parent",
			input:   CreateTeamInput{Name: "X", Slug: "x", Kind: "contest", ParentID: "c1"},
			wantErr: roles.ErrInvalidHierarchy,
		},
		{
			name:    "division needs a parent",
			input:   CreateTeamInput{Name: "X", Slug: "x", Kind: "division"},
			wantErr: roles.ErrInvalidHierarchy,
		},
		{
			name:    "division parent must be a contest",
			input:   CreateTeamInput{Name: "X", Slug: "x", Kind: "division", ParentID: "t1"},
			wantErr: roles.ErrInvalidHierarchy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateTeam(ctx, "boss", tt.input); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCreateTeamGrantsCreatorAndOwner(t *testing.T) {
	f := newFixture()
	svc, mock := newTeamService(t, f)
	ctx := context.Background()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("saturday").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO teams").
		WillReturnResult(sqlmock.NewResult(0, 1))

	team, err := svc.CreateTeam(ctx, "carol", CreateTeamInput{
		Name: "Saturday Club",
		Slug: "saturday",
		Kind: "traditional",
	})
	if err != nil {
		t.Fatalf("CreateTeam failed: %v", err)
	}
	if team.Visibility != "public" || team.Access != "apply" {
		t.Errorf("expected defaults public/apply, got %s/%s", team.Visibility, team.Access)
	}

	for _, role := range []roles.Role{roles.RoleCreator, roles.RoleOwner} {
		has, _ := f.relations.HasRole(ctx, "carol", team.ID, role)
		if !has {
			t.Errorf("expected creator to hold %s", role)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateTeamSlugTaken(t *testing.T) {
	f := newFixture()
	svc, mock := newTeamService(t, f)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("friday").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := svc.CreateTeam(context.Background(), "carol", CreateTeamInput{
		Name: "Another Friday",
		Slug: "friday",
		Kind: "traditional",
	})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCreateDivision(t *testing.T) {
	f := newFixture()
	svc, mock := newTeamService(t, f)
	ctx := context.Background()

	// Only contest managers may create divisions
	if _, err := svc.CreateTeam(ctx, "stranger", CreateTeamInput{
		Name: "Division East", Slug: "east", Kind: "division", ParentID: "c1",
	}); !errors.Is(err, roles.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for stranger, got %v", err)
	}

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("east").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO teams").
		WillReturnResult(sqlmock.NewResult(0, 1))

	division, err := svc.CreateTeam(ctx, "boss", CreateTeamInput{
		Name: "Division East", Slug: "east", Kind: "division", ParentID: "c1",
	})
	if err != nil {
		t.Fatalf("CreateTeam failed: %v", err)
	}

	// Authority over a division stays with the contest, the creator gets no
	// relations on the division itself
	rels, _ := f.relations.ListForUserTeam(ctx, "boss", division.ID)
	if len(rels) != 0 {
		t.Errorf("expected no relations on the division, got %d", len(rels))
	}
}

func TestGetTeamVisibility(t *testing.T) {
	f := newFixture()
	f.teams.add(&db.Team{ID: "h1", Name: "Secret Cellar", Slug: "cellar", Kind: db.KindTraditional, Visibility: "hidden", Access: "invite_only"})
	f.teams.add(&db.Team{ID: "pr1", Name: "Closed Club", Slug: "closed", Kind: db.KindTraditional, Visibility: "private", Access: "invite_only"})
	f.relations.add("insider", "h1", roles.RoleMember)
	svc, _ := newTeamService(t, f)
	ctx := context.Background()

	// Public teams are readable by anyone, even anonymously
	if _, err := svc.GetTeam(ctx, "", "t1"); err != nil {
		t.Errorf("public team should be readable: %v", err)
	}

	// Hidden teams pretend not to exist for outsiders
	if _, err := svc.GetTeam(ctx, "stranger", "h1"); !errors.Is(err, roles.ErrNotFound) {
		t.Errorf("expected ErrNotFound for hidden team, got %v", err)
	}
	if _, err := svc.GetTeam(ctx, "insider", "h1"); err != nil {
		t.Errorf("member should see the hidden team: %v", err)
	}

	// Private teams exist but refuse outsiders
	if _, err := svc.GetTeam(ctx, "stranger", "pr1"); !errors.Is(err, roles.ErrForbidden) {
		t.Errorf("expected ErrForbidden for private team, got %v", err)
	}
}

func TestDeleteContestCascades(t *testing.T) {
	f := newFixture()
	f.relations.add("p1", "d1", roles.RoleMember)
	svc, mock := newTeamService(t, f)
	ctx := context.Background()

	// Two divisions plus the contest itself
	for i := 0; i < 3; i++ {
		mock.ExpectExec("UPDATE teams SET deleted_at").
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	if err := svc.DeleteTeam(ctx, "boss", "c1"); err != nil {
		t.Fatalf("DeleteTeam failed: %v", err)
	}

	rels, _ := f.relations.ListForUserTeam(ctx, "p1", "d1")
	if len(rels) != 0 {
		t.Errorf("division relations should be revoked on cascade, got %d", len(rels))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestListDivisionsRequiresContest(t *testing.T) {
	f := newFixture()
	f.relations.add("p1", "c1", roles.RoleParticipant)
	svc, _ := newTeamService(t, f)
	ctx := context.Background()

	if _, err := svc.ListDivisions(ctx, "boss", "t1"); !errors.Is(err, roles.ErrInvalidHierarchy) {
		t.Errorf("expected ErrInvalidHierarchy, got %v", err)
	}
	if _, err := svc.ListDivisions(ctx, "stranger", "c1"); !errors.Is(err, roles.ErrForbidden) {
		t.Errorf("expected ErrForbidden for stranger, got %v", err)
	}

	divisions, err := svc.ListDivisions(ctx, "p1", "c1")
	if err != nil {
		t.Fatalf("ListDivisions failed: %v", err)
	}
	if len(divisions) != 2 {
		t.Errorf("expected 2 divisions, got %d", len(divisions))
	}
}
