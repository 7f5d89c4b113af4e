package roles

import (
	"context"
	"fmt"

	"github.com/palateclub/palate/db"
)

// Guard is the authorization predicate over resolved role sets.
// It only answers "is this allowed?" - membership mutation lives elsewhere.
type Guard struct {
	resolver *Resolver
}

// NewGuard creates a new Guard
func NewGuard(resolver *Resolver) *Guard {
	return &Guard{resolver: resolver}
}

// Require succeeds iff the role set intersects the allowed list
func (g *Guard) Require(set RoleSet, allowed ...Role) error {
	if !set.Intersects(allowed...) {
		return ErrForbidden
	}
	return nil
}

// RequireTeam resolves the caller's roles on the team and checks them against
// the allowed list. Returns the resolved set so callers can scope reads.
func (g *Guard) RequireTeam(ctx context.Context, team *db.Team, userID string, allowed ...Role) (RoleSet, error) {
	set, err := g.resolver.Resolve(ctx, team, userID)
	if err != nil {
		return nil, err
	}
	if err := g.Require(set, allowed...); err != nil {
		return nil, err
	}
	return set, nil
}

// RequireContestOrDivision implements the dual-authority rule for operations
// touching a contest and one of its divisions: a contest owner/admin passes,
// and so does a leader of that specific division. The two resolutions stay
// independent - the sets are never merged.
func (g *Guard) RequireContestOrDivision(ctx context.Context, contest, division *db.Team, userID string) error {
	if division.Kind != db.KindDivision || division.ParentID != contest.ID {
		return ErrInvalidHierarchy
	}

	contestSet, err := g.resolver.Resolve(ctx, contest, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve contest roles: %w", err)
	}
	if contestSet.Intersects(Managers...) {
		return nil
	}

	divisionSet, err := g.resolver.Resolve(ctx, division, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve division roles: %w", err)
	}
	if divisionSet.Intersects(RoleLeader) {
		return nil
	}

	return ErrForbidden
}
