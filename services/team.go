package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/palateclub/palate/db"
	"github.com/palateclub/palate/roles"
)

// Common errors
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrAlreadyExists = errors.New("resource already exists")
)

// TeamService handles team, contest, and division lifecycle
type TeamService struct {
	PG        *sql.DB
	Teams     roles.TeamStore
	Relations roles.RelationStore
	Guard     *roles.Guard
}

// NewTeamService creates a new team service
func NewTeamService(pg *sql.DB, teams roles.TeamStore, relations roles.RelationStore, guard *roles.Guard) *TeamService {
	return &TeamService{
		PG:        pg,
		Teams:     teams,
		Relations: relations,
		Guard:     guard,
	}
}

// CreateTeamInput represents input for creating a team
type CreateTeamInput struct {
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	Kind       string `json:"kind"`
	ParentID   string `json:"parent_id,omitempty"`
	Visibility string `json:"visibility,omitempty"`
	Access     string `json:"access,omitempty"`
}

// CreateTeam creates a team of any kind. The creator receives the creator and
// owner relations on traditional teams and contests. Divisions may only be
// created under a contest, by one of its managers; division authority stays
// with the contest so no relations are granted on the division itself.
func (s *TeamService) CreateTeam(ctx context.Context, userID string, input CreateTeamInput) (*db.Team, error) {
	if input.Name == "" || input.Slug == "" {
		return nil, ErrInvalidInput
	}

	kind := db.TeamKind(input.Kind)
	switch kind {
	case db.KindTraditional, db.KindContest:
		if input.ParentID != "" {
			return nil, roles.ErrInvalidHierarchy
		}
	case db.KindDivision:
		if input.ParentID == "" {
			return nil, roles.ErrInvalidHierarchy
		}
		parent, err := s.Teams.Get(ctx, input.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.Kind != db.KindContest {
			return nil, roles.ErrInvalidHierarchy
		}
		if _, err := s.Guard.RequireTeam(ctx, parent, userID, roles.Managers...); err != nil {
			return nil, err
		}
	default:
		return nil, ErrInvalidInput
	}

	if s.slugExists(ctx, input.Slug) {
		return nil, fmt.Errorf("%w: slug already taken", ErrAlreadyExists)
	}

	if input.Visibility == "" {
		input.Visibility = "public"
	}
	if input.Access == "" {
		input.Access = db.AccessApply
	}

	team := &db.Team{
		ID:         uuid.New().String(),
		Name:       input.Name,
		Slug:       input.Slug,
		Kind:       kind,
		ParentID:   input.ParentID,
		Visibility: input.Visibility,
		Access:     input.Access,
		CreatedBy:  userID,
	}
	now := time.Now()
	team.CreatedAt = now
	team.UpdatedAt = now

	_, err := s.PG.ExecContext(ctx, `
		INSERT INTO teams (id, name, slug, kind, parent_id, visibility, access, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10)
	`, team.ID, team.Name, team.Slug, string(team.Kind), team.ParentID, team.Visibility, team.Access,
		team.CreatedBy, team.CreatedAt, team.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}

	if kind != db.KindDivision {
		for _, role := range []roles.Role{roles.RoleCreator, roles.RoleOwner} {
			rel := &db.Relation{UserID: userID, TeamID: team.ID, Role: string(role)}
			if err := s.Relations.Grant(ctx, rel); err != nil {
				// Roll back team creation so a failed grant leaves no orphan
				_, _ = s.PG.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, team.ID)
				return nil, fmt.Errorf("failed to grant creator relation: %w", err)
			}
		}
	}

	return team, nil
}

// GetTeam retrieves a team with visibility scoping: public and unlisted teams
// are readable by anyone, hidden and private teams only by users with a real
// relation (hidden teams pretend not to exist for everyone else)
func (s *TeamService) GetTeam(ctx context.Context, userID, teamID string) (*db.Team, error) {
	team, err := s.Teams.Get(ctx, teamID)
	if err != nil {
		return nil, err
	}

	switch team.Visibility {
	case "public", "unlisted":
		return team, nil
	}

	if _, err := s.Guard.RequireTeam(ctx, team, userID, roles.Vocabulary(team.Kind)...); err != nil {
		if errors.Is(err, roles.ErrForbidden) && team.Visibility == "hidden" {
			return nil, roles.ErrNotFound
		}
		return nil, err
	}
	return team, nil
}

// UpdateTeamInput represents input for updating a team
type UpdateTeamInput struct {
	Name       *string `json:"name,omitempty"`
	Visibility *string `json:"visibility,omitempty"`
	Access     *string `json:"access,omitempty"`
	Avatar     *string `json:"avatar,omitempty"`
}

// UpdateTeam updates a team (requires owner or admin)
func (s *TeamService) UpdateTeam(ctx context.Context, userID, teamID string, input UpdateTeamInput) (*db.Team, error) {
	team, err := s.Teams.Get(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAuthority(ctx, team, userID); err != nil {
		return nil, err
	}

	if input.Name != nil {
		team.Name = *input.Name
	}
	if input.Visibility != nil {
		team.Visibility = *input.Visibility
	}
	if input.Access != nil {
		team.Access = *input.Access
	}
	if input.Avatar != nil {
		team.Avatar = *input.Avatar
	}
	team.UpdatedAt = time.Now()

	result, err := s.PG.ExecContext(ctx, `
		UPDATE teams
		SET name = $2, visibility = $3, access = $4, avatar = NULLIF($5, ''), updated_at = $6
		WHERE id = $1 AND deleted_at IS NULL
	`, team.ID, team.Name, team.Visibility, team.Access, team.Avatar, team.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update team: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, roles.ErrNotFound
	}
	return team, nil
}

// DeleteTeam soft-deletes a team. Deleting a contest cascades to its
// divisions; relations on every affected team are revoked.
func (s *TeamService) DeleteTeam(ctx context.Context, userID, teamID string) error {
	team, err := s.Teams.Get(ctx, teamID)
	if err != nil {
		return err
	}
	if err := s.requireAuthority(ctx, team, userID); err != nil {
		return err
	}

	if team.Kind == db.KindContest {
		divisions, err := s.Teams.ListDivisions(ctx, team.ID)
		if err != nil {
			return err
		}
		for _, division := range divisions {
			if err := s.softDelete(ctx, division.ID); err != nil {
				return err
			}
		}
	}

	return s.softDelete(ctx, team.ID)
}

// ListMembers returns the team's live relations (requires any real role)
func (s *TeamService) ListMembers(ctx context.Context, userID, teamID string) ([]db.Relation, error) {
	team, err := s.Teams.Get(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Guard.RequireTeam(ctx, team, userID, roles.Vocabulary(team.Kind)...); err != nil {
		return nil, err
	}
	return s.Relations.ListForTeam(ctx, teamID)
}

// ListDivisions returns a contest's divisions
func (s *TeamService) ListDivisions(ctx context.Context, userID, contestID string) ([]db.Team, error) {
	contest, err := s.Teams.Get(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if contest.Kind != db.KindContest {
		return nil, roles.ErrInvalidHierarchy
	}
	if _, err := s.Guard.RequireTeam(ctx, contest, userID, roles.Vocabulary(db.KindContest)...); err != nil {
		return nil, err
	}
	return s.Teams.ListDivisions(ctx, contestID)
}

// requireAuthority checks owner/admin, falling back to the parent contest's
// managers for divisions (divisions carry no owner of their own)
func (s *TeamService) requireAuthority(ctx context.Context, team *db.Team, userID string) error {
	if team.Kind == db.KindDivision {
		contest, err := s.Teams.Get(ctx, team.ParentID)
		if err != nil {
			return err
		}
		return s.Guard.RequireContestOrDivision(ctx, contest, team, userID)
	}
	_, err := s.Guard.RequireTeam(ctx, team, userID, roles.Managers...)
	return err
}

func (s *TeamService) softDelete(ctx context.Context, teamID string) error {
	if _, err := s.PG.ExecContext(ctx, `
		UPDATE teams SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`, teamID); err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}
	return s.Relations.RevokeTeam(ctx, teamID)
}

func (s *TeamService) slugExists(ctx context.Context, slug string) bool {
	var exists bool
	s.PG.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM teams WHERE slug = $1 AND deleted_at IS NULL)`, slug).Scan(&exists)
	return exists
}
