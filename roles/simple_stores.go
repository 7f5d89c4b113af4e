package roles

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/palateclub/palate/db"
)

// ============================================================================
// SimpleTeamStore - SQL implementation of TeamStore
// ============================================================================

// SimpleTeamStore implements TeamStore using SQL
type SimpleTeamStore struct {
	db *sql.DB
}

// NewSimpleTeamStore creates a new SimpleTeamStore
func NewSimpleTeamStore(pg *sql.DB) *SimpleTeamStore {
	return &SimpleTeamStore{db: pg}
}

// Ensure SimpleTeamStore implements TeamStore
var _ TeamStore = (*SimpleTeamStore)(nil)

const teamColumns = `id, name, slug, kind, COALESCE(parent_id, ''), visibility, access, COALESCE(avatar, ''), COALESCE(created_by, ''), created_at, updated_at, deleted_at`

// Get retrieves a live team by ID
func (s *SimpleTeamStore) Get(ctx context.Context, id string) (*db.Team, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+teamColumns+`
		FROM teams
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	return scanTeam(row)
}

// GetBySlug retrieves a live team by slug
func (s *SimpleTeamStore) GetBySlug(ctx context.Context, slug string) (*db.Team, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+teamColumns+`
		FROM teams
		WHERE slug = $1 AND deleted_at IS NULL
	`, slug)
	return scanTeam(row)
}

// ListDivisions returns the live divisions under a contest
func (s *SimpleTeamStore) ListDivisions(ctx context.Context, contestID string) ([]db.Team, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+teamColumns+`
		FROM teams
		WHERE parent_id = $1 AND kind = 'division' AND deleted_at IS NULL
		ORDER BY name
	`, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list divisions: %w", err)
	}
	defer rows.Close()

	teams := make([]db.Team, 0)
	for rows.Next() {
		team, err := scanTeamRow(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, *team)
	}
	return teams, rows.Err()
}

// Exists checks if a live team exists
func (s *SimpleTeamStore) Exists(ctx context.Context, id string) bool {
	var exists bool
	s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM teams WHERE id = $1 AND deleted_at IS NULL)`, id).Scan(&exists)
	return exists
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTeamInto(sc rowScanner) (*db.Team, error) {
	var team db.Team
	var deletedAt sql.NullTime
	err := sc.Scan(&team.ID, &team.Name, &team.Slug, &team.Kind, &team.ParentID,
		&team.Visibility, &team.Access, &team.Avatar, &team.CreatedBy,
		&team.CreatedAt, &team.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		team.DeletedAt = &deletedAt.Time
	}
	return &team, nil
}

func scanTeam(row *sql.Row) (*db.Team, error) {
	team, err := scanTeamInto(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return team, nil
}

func scanTeamRow(rows *sql.Rows) (*db.Team, error) {
	team, err := scanTeamInto(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan team: %w", err)
	}
	return team, nil
}

// ============================================================================
// SimpleRelationStore - SQL implementation of RelationStore
// ============================================================================

// SimpleRelationStore implements RelationStore using SQL
type SimpleRelationStore struct {
	db *sql.DB
}

// NewSimpleRelationStore creates a new SimpleRelationStore
func NewSimpleRelationStore(pg *sql.DB) *SimpleRelationStore {
	return &SimpleRelationStore{db: pg}
}

// Ensure SimpleRelationStore implements RelationStore
var _ RelationStore = (*SimpleRelationStore)(nil)

// ListForUserTeam returns the user's live relations on one team
func (s *SimpleRelationStore) ListForUserTeam(ctx context.Context, userID, teamID string) ([]db.Relation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, team_id, role, COALESCE(granted_by, ''), created_at, updated_at
		FROM relations
		WHERE user_id = $1 AND team_id = $2 AND deleted_at IS NULL
	`, userID, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}
	defer rows.Close()

	return scanRelations(rows)
}

// ListForUserTeams returns the user's live relations across several teams
func (s *SimpleRelationStore) ListForUserTeams(ctx context.Context, userID string, teamIDs []string) ([]db.Relation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, team_id, role, COALESCE(granted_by, ''), created_at, updated_at
		FROM relations
		WHERE user_id = $1 AND team_id = ANY($2) AND deleted_at IS NULL
	`, userID, pq.Array(teamIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}
	defer rows.Close()

	return scanRelations(rows)
}

// ListForTeam returns all live relations on a team, with user details
func (s *SimpleRelationStore) ListForTeam(ctx context.Context, teamID string) ([]db.Relation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.user_id, r.team_id, r.role, COALESCE(r.granted_by, ''), r.created_at, r.updated_at,
		       COALESCE(u.name, ''), COALESCE(u.email, '')
		FROM relations r
		LEFT JOIN users u ON r.user_id = u.id
		WHERE r.team_id = $1 AND r.deleted_at IS NULL
		ORDER BY r.created_at
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team relations: %w", err)
	}
	defer rows.Close()

	relations := make([]db.Relation, 0)
	for rows.Next() {
		var rel db.Relation
		if err := rows.Scan(&rel.ID, &rel.UserID, &rel.TeamID, &rel.Role, &rel.GrantedBy,
			&rel.CreatedAt, &rel.UpdatedAt, &rel.UserName, &rel.UserEmail); err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		relations = append(relations, rel)
	}
	return relations, rows.Err()
}

// HasRole checks whether the user holds any of the given roles on the team
func (s *SimpleRelationStore) HasRole(ctx context.Context, userID, teamID string, rs ...Role) (bool, error) {
	keys := make([]string, len(rs))
	for i, r := range rs {
		keys[i] = string(r)
	}
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM relations
			WHERE user_id = $1 AND team_id = $2 AND role = ANY($3) AND deleted_at IS NULL
		)
	`, userID, teamID, pq.Array(keys)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check role: %w", err)
	}
	return exists, nil
}

// Grant creates a relation. The live-rows unique index on
// (user_id, team_id, role) makes concurrent duplicate grants lose cleanly.
func (s *SimpleRelationStore) Grant(ctx context.Context, rel *db.Relation) error {
	if rel.ID == "" {
		rel.ID = uuid.New().String()
	}
	now := time.Now()
	rel.CreatedAt = now
	rel.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO relations (id, user_id, team_id, role, granted_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
		ON CONFLICT (user_id, team_id, role) WHERE deleted_at IS NULL DO NOTHING
	`, rel.ID, rel.UserID, rel.TeamID, rel.Role, rel.GrantedBy, rel.CreatedAt, rel.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to grant relation: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrAlreadyMember
	}
	return nil
}

// Revoke soft-deletes one (user, team, role) relation
func (s *SimpleRelationStore) Revoke(ctx context.Context, userID, teamID string, role Role) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE relations
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE user_id = $1 AND team_id = $2 AND role = $3 AND deleted_at IS NULL
	`, userID, teamID, string(role))
	if err != nil {
		return fmt.Errorf("failed to revoke relation: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeAll soft-deletes every live relation the user holds on the team
func (s *SimpleRelationStore) RevokeAll(ctx context.Context, userID, teamID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE relations
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE user_id = $1 AND team_id = $2 AND deleted_at IS NULL
	`, userID, teamID)
	if err != nil {
		return fmt.Errorf("failed to revoke relations: %w", err)
	}
	return nil
}

// MoveToDivision runs the whole division reassignment in one transaction.
// An advisory lock on (contest, user) serializes concurrent moves of the same
// participant: the second caller waits, then sees the first one's relations
// and moves them instead of granting a duplicate first assignment.
func (s *SimpleRelationStore) MoveToDivision(ctx context.Context, contestID, userID, targetID string, divisionIDs []string, grantedBy string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin move: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`, contestID, userID); err != nil {
		return nil, fmt.Errorf("failed to lock assignment: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT DISTINCT role FROM relations
		WHERE user_id = $1 AND team_id = ANY($2) AND deleted_at IS NULL
		ORDER BY role
	`, userID, pq.Array(divisionIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to list division roles: %w", err)
	}
	keys := make([]string, 0)
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		keys = append(keys, role)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(keys) == 0 {
		keys = append(keys, string(RoleMember))
	} else {
		if _, err := tx.ExecContext(ctx, `
			UPDATE relations
			SET deleted_at = NOW(), updated_at = NOW()
			WHERE user_id = $1 AND team_id = ANY($2) AND deleted_at IS NULL
		`, userID, pq.Array(divisionIDs)); err != nil {
			return nil, fmt.Errorf("failed to clear prior assignment: %w", err)
		}
	}

	now := time.Now()
	for _, role := range keys {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO relations (id, user_id, team_id, role, granted_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
			ON CONFLICT (user_id, team_id, role) WHERE deleted_at IS NULL DO NOTHING
		`, uuid.New().String(), userID, targetID, role, grantedBy, now, now); err != nil {
			return nil, fmt.Errorf("failed to re-create role %s: %w", role, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit move: %w", err)
	}
	return keys, nil
}

// RevokeTeam soft-deletes every live relation on the team
func (s *SimpleRelationStore) RevokeTeam(ctx context.Context, teamID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE relations
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE team_id = $1 AND deleted_at IS NULL
	`, teamID)
	if err != nil {
		return fmt.Errorf("failed to revoke team relations: %w", err)
	}
	return nil
}

func scanRelations(rows *sql.Rows) ([]db.Relation, error) {
	relations := make([]db.Relation, 0)
	for rows.Next() {
		var rel db.Relation
		if err := rows.Scan(&rel.ID, &rel.UserID, &rel.TeamID, &rel.Role, &rel.GrantedBy,
			&rel.CreatedAt, &rel.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		relations = append(relations, rel)
	}
	return relations, rows.Err()
}

// ============================================================================
// SimpleActionStore - SQL implementation of ActionStore
// ============================================================================

// SimpleActionStore implements ActionStore using SQL
type SimpleActionStore struct {
	db *sql.DB
}

// NewSimpleActionStore creates a new SimpleActionStore
func NewSimpleActionStore(pg *sql.DB) *SimpleActionStore {
	return &SimpleActionStore{db: pg}
}

// Ensure SimpleActionStore implements ActionStore
var _ ActionStore = (*SimpleActionStore)(nil)

const actionColumns = `id, user_id, team_id, kind, role, status, COALESCE(created_by, ''), COALESCE(decided_by, ''), decided_at, created_at, updated_at`

// Get retrieves an action by ID
func (s *SimpleActionStore) Get(ctx context.Context, id string) (*db.Action, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+actionColumns+`
		FROM actions
		WHERE id = $1
	`, id)
	return scanAction(row)
}

// GetPending returns the single pending action for (user, team, kind)
func (s *SimpleActionStore) GetPending(ctx context.Context, userID, teamID, kind string) (*db.Action, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+actionColumns+`
		FROM actions
		WHERE user_id = $1 AND team_id = $2 AND kind = $3 AND status = 'pending'
	`, userID, teamID, kind)
	return scanAction(row)
}

// GetOpen returns the most recent non-declined action for (user, team, kind)
func (s *SimpleActionStore) GetOpen(ctx context.Context, userID, teamID, kind string) (*db.Action, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+actionColumns+`
		FROM actions
		WHERE user_id = $1 AND team_id = $2 AND kind = $3 AND status != 'declined'
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, teamID, kind)
	return scanAction(row)
}

// ListPendingForTeam returns pending actions of a kind on a team
func (s *SimpleActionStore) ListPendingForTeam(ctx context.Context, teamID, kind string) ([]db.Action, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.user_id, a.team_id, a.kind, a.role, a.status, COALESCE(a.created_by, ''),
		       COALESCE(a.decided_by, ''), a.decided_at, a.created_at, a.updated_at,
		       COALESCE(u.name, ''), COALESCE(u.email, '')
		FROM actions a
		LEFT JOIN users u ON a.user_id = u.id
		WHERE a.team_id = $1 AND a.kind = $2 AND a.status = 'pending'
		ORDER BY a.created_at
	`, teamID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending actions: %w", err)
	}
	defer rows.Close()

	actions := make([]db.Action, 0)
	for rows.Next() {
		var a db.Action
		var decidedAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.UserID, &a.TeamID, &a.Kind, &a.Role, &a.Status,
			&a.CreatedBy, &a.DecidedBy, &decidedAt, &a.CreatedAt, &a.UpdatedAt,
			&a.UserName, &a.UserEmail); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		if decidedAt.Valid {
			a.DecidedAt = &decidedAt.Time
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// Create inserts a pending action. The pending-rows unique index on
// (user_id, team_id, kind) makes concurrent duplicate requests lose cleanly.
func (s *SimpleActionStore) Create(ctx context.Context, action *db.Action) error {
	if action.ID == "" {
		action.ID = uuid.New().String()
	}
	now := time.Now()
	action.CreatedAt = now
	action.UpdatedAt = now
	if action.Status == "" {
		action.Status = db.StatusPending
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO actions (id, user_id, team_id, kind, role, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)
		ON CONFLICT (user_id, team_id, kind) WHERE status = 'pending' DO NOTHING
	`, action.ID, action.UserID, action.TeamID, action.Kind, action.Role, action.Status,
		action.CreatedBy, action.CreatedAt, action.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create action: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		if action.Kind == db.ActionInvite {
			return ErrAlreadyInvited
		}
		return ErrAlreadyRequested
	}
	return nil
}

// UpdatePendingRole replaces the requested role of a still-pending action
func (s *SimpleActionStore) UpdatePendingRole(ctx context.Context, id string, role Role) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE actions
		SET role = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id, string(role))
	if err != nil {
		return fmt.Errorf("failed to update action role: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Decide transitions a pending action to approved or declined
func (s *SimpleActionStore) Decide(ctx context.Context, id, status, decidedBy string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE actions
		SET status = $2, decided_by = NULLIF($3, ''), decided_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id, status, decidedBy)
	if err != nil {
		return fmt.Errorf("failed to decide action: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete hard-deletes an action (invite withdrawal only)
func (s *SimpleActionStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM actions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete action: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAction(row *sql.Row) (*db.Action, error) {
	var a db.Action
	var decidedAt sql.NullTime
	err := row.Scan(&a.ID, &a.UserID, &a.TeamID, &a.Kind, &a.Role, &a.Status,
		&a.CreatedBy, &a.DecidedBy, &decidedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get action: %w", err)
	}
	if decidedAt.Valid {
		a.DecidedAt = &decidedAt.Time
	}
	return &a, nil
}

// ============================================================================
// Factory function for convenience
// ============================================================================

// NewSimpleBackend creates all simple store implementations at once,
// plus the resolver and guard built on them.
func NewSimpleBackend(pg *sql.DB) (TeamStore, RelationStore, ActionStore, *Resolver, *Guard) {
	teams := NewSimpleTeamStore(pg)
	relations := NewSimpleRelationStore(pg)
	actions := NewSimpleActionStore(pg)
	resolver := NewResolver(teams, relations, actions)
	return teams, relations, actions, resolver, NewGuard(resolver)
}
