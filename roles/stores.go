package roles

import (
	"context"

	"github.com/palateclub/palate/db"
)

// TeamStore is a read-only facade over team records.
// This is purely a data access layer - no authorization logic.
type TeamStore interface {
	// Get retrieves a live (not soft-deleted) team by ID
	Get(ctx context.Context, id string) (*db.Team, error)

	// GetBySlug retrieves a live team by slug
	GetBySlug(ctx context.Context, slug string) (*db.Team, error)

	// ListDivisions returns the live divisions under a contest
	ListDivisions(ctx context.Context, contestID string) ([]db.Team, error)

	// Exists checks if a live team exists
	Exists(ctx context.Context, id string) bool
}

// RelationStore reads and writes (user, team, role) tuples with soft deletion.
type RelationStore interface {
	// ListForUserTeam returns the user's live relations on one team
	ListForUserTeam(ctx context.Context, userID, teamID string) ([]db.Relation, error)

	// ListForUserTeams returns the user's live relations across several teams
	ListForUserTeams(ctx context.Context, userID string, teamIDs []string) ([]db.Relation, error)

	// ListForTeam returns all live relations on a team, with user details
	ListForTeam(ctx context.Context, teamID string) ([]db.Relation, error)

	// HasRole checks whether the user holds any of the given roles on the team
	HasRole(ctx context.Context, userID, teamID string, rs ...Role) (bool, error)

	// Grant creates a relation. Exactly one concurrent grant of the same
	// (user, team, role) wins; losers get ErrAlreadyMember.
	Grant(ctx context.Context, rel *db.Relation) error

	// Revoke soft-deletes one (user, team, role) relation.
	// Returns ErrNotFound if no live relation matches.
	Revoke(ctx context.Context, userID, teamID string, role Role) error

	// RevokeAll soft-deletes every live relation the user holds on the team
	RevokeAll(ctx context.Context, userID, teamID string) error

	// RevokeTeam soft-deletes every live relation on the team (team deletion cascade)
	RevokeTeam(ctx context.Context, teamID string) error

	// MoveToDivision atomically moves the user's division role set within a
	// contest: clears live relations across divisionIDs and re-creates the
	// same roles in the target, or grants the default member role when none
	// exist. Serialized per (contest, user) so concurrent moves cannot leave
	// the user in two divisions. Returns the resulting sorted role keys.
	MoveToDivision(ctx context.Context, contestID, userID, targetID string, divisionIDs []string, grantedBy string) ([]string, error)
}

// ActionStore manages the join-request / invite lifecycle.
type ActionStore interface {
	// Get retrieves an action by ID
	Get(ctx context.Context, id string) (*db.Action, error)

	// GetPending returns the single pending action for (user, team, kind),
	// or ErrNotFound
	GetPending(ctx context.Context, userID, teamID, kind string) (*db.Action, error)

	// GetOpen returns the most recent non-declined action for
	// (user, team, kind), or ErrNotFound. Used for duplicate-invite detection.
	GetOpen(ctx context.Context, userID, teamID, kind string) (*db.Action, error)

	// ListPendingForTeam returns pending actions of a kind on a team, with
	// user details
	ListPendingForTeam(ctx context.Context, teamID, kind string) ([]db.Action, error)

	// Create inserts a pending action. Exactly one concurrent create of the
	// same (user, team, kind) wins; losers get ErrAlreadyRequested or
	// ErrAlreadyInvited depending on kind.
	Create(ctx context.Context, action *db.Action) error

	// UpdatePendingRole replaces the requested role of a still-pending action
	UpdatePendingRole(ctx context.Context, id string, role Role) error

	// Decide transitions a pending action to approved or declined.
	// Returns ErrNotFound if the action is not pending (terminal states never
	// transition again).
	Decide(ctx context.Context, id, status, decidedBy string) error

	// Delete hard-deletes an action (invite withdrawal only)
	Delete(ctx context.Context, id string) error
}
