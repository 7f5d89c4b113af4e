package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/palateclub/palate/db"
)

// Resolver computes a user's effective role set for a team, folding in
// division-inherited roles and pending-action pseudo-roles.
type Resolver struct {
	teams     TeamStore
	relations RelationStore
	actions   ActionStore
}

// NewResolver creates a new Resolver
func NewResolver(teams TeamStore, relations RelationStore, actions ActionStore) *Resolver {
	return &Resolver{
		teams:     teams,
		relations: relations,
		actions:   actions,
	}
}

// Resolve returns the user's effective role set for a team. The result is
// never empty: real relations win over pending markers, and the unrelated
// sentinel is the last resort.
func (r *Resolver) Resolve(ctx context.Context, team *db.Team, userID string) (RoleSet, error) {
	set := NewRoleSet()

	// 1. Direct relations
	direct, err := r.relations.ListForUserTeam(ctx, userID, team.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load relations: %w", err)
	}
	for _, rel := range direct {
		set.Add(Role(rel.Role))
	}

	// 2. Division roles surface at contest level as team_<role> pseudo-roles,
	// never as bare keys
	if team.Kind == db.KindContest && !set.Empty() {
		divisions, err := r.teams.ListDivisions(ctx, team.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load divisions: %w", err)
		}
		if len(divisions) > 0 {
			ids := make([]string, len(divisions))
			for i, d := range divisions {
				ids[i] = d.ID
			}
			divRels, err := r.relations.ListForUserTeams(ctx, userID, ids)
			if err != nil {
				return nil, fmt.Errorf("failed to load division relations: %w", err)
			}
			for _, rel := range divRels {
				set.Add(DivisionScoped(Role(rel.Role)))
			}
		}
	}

	// 3. No real relation anywhere: surface pending join/invite markers
	if set.Empty() {
		if err := r.addPendingMarkers(ctx, team, userID, set); err != nil {
			return nil, err
		}
	}

	// 4. Last resort
	if set.Empty() {
		set.Add(RoleUnrelated)
	}

	return set, nil
}

// ResolveByID loads the team first, then resolves
func (r *Resolver) ResolveByID(ctx context.Context, teamID, userID string) (RoleSet, error) {
	team, err := r.teams.Get(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return r.Resolve(ctx, team, userID)
}

func (r *Resolver) addPendingMarkers(ctx context.Context, team *db.Team, userID string, set RoleSet) error {
	requestable := RequestableRoles(team.Kind)

	for _, kind := range []string{db.ActionJoin, db.ActionInvite} {
		action, err := r.actions.GetPending(ctx, userID, team.ID, kind)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return fmt.Errorf("failed to load pending %s action: %w", kind, err)
		}
		for _, role := range requestable {
			if Role(action.Role) != role {
				continue
			}
			if kind == db.ActionJoin {
				set.Add(Requested(role))
			} else {
				set.Add(Invited(role))
			}
		}
	}
	return nil
}
