// Package roles implements role resolution and authorization for teams,
// contests, and contest divisions. It follows a split-concern design:
// - Resolver: computes a user's effective role set for a team
// - Guard: answers "is this allowed?" against an allowed-role list
// - Stores: narrow persistence facades for teams, relations, and actions
package roles

import (
	"errors"
	"sort"

	"github.com/palateclub/palate/db"
)

// Common errors
var (
	ErrForbidden        = errors.New("forbidden: you don't have permission to perform this action")
	ErrNotFound         = errors.New("resource not found")
	ErrAlreadyMember    = errors.New("user already holds this role")
	ErrAlreadyRequested = errors.New("a join request for this role is already pending")
	ErrAlreadyInvited   = errors.New("user already has an open invite")
	ErrNotAssigned      = errors.New("user is not assigned to this division")
	ErrWrongActionKind  = errors.New("action kind does not match the requested decision")
	ErrInvalidRole      = errors.New("role is not valid for this team kind")
	ErrInvalidHierarchy = errors.New("division does not belong to this contest")
)

// Role represents a user's role on a team, contest, or division
type Role string

const (
	RoleOwner       Role = "owner"
	RoleAdmin       Role = "admin"
	RoleEditor      Role = "editor"
	RoleMember      Role = "member"
	RoleFollow      Role = "follow"
	RoleLike        Role = "like"
	RoleCreator     Role = "creator"
	RoleParticipant Role = "participant"
	RoleLeader      Role = "leader"
	RoleGuide       Role = "guide"
)

// RoleUnrelated is the sentinel injected when a user has no relation, no
// division relation, and no pending action for a team. A resolved set is
// never empty.
const RoleUnrelated Role = "unrelated"

// Pseudo-role prefixes. Division roles surface at contest level only in
// prefixed form so contest-scope and division-scope authority never mix.
const (
	prefixDivision  = "team_"
	prefixRequested = "requested_"
	prefixInvited   = "invited_"
)

// DivisionScoped returns the contest-level pseudo-role for a division role
// (guide -> team_guide)
func DivisionScoped(r Role) Role { return Role(prefixDivision + string(r)) }

// Requested returns the pending-join marker for a role
func Requested(r Role) Role { return Role(prefixRequested + string(r)) }

// Invited returns the pending-invite marker for a role
func Invited(r Role) Role { return Role(prefixInvited + string(r)) }

// Closed role vocabularies per team kind. Unknown keys are rejected once at
// the boundary, never inside workflow logic.
var vocabularies = map[db.TeamKind][]Role{
	db.KindTraditional: {RoleOwner, RoleAdmin, RoleEditor, RoleMember, RoleFollow, RoleLike, RoleCreator},
	db.KindContest:     {RoleOwner, RoleAdmin, RoleParticipant, RoleCreator},
	db.KindDivision:    {RoleLeader, RoleGuide, RoleMember},
}

// requestables lists the two canonical roles a user may ask for (or be
// invited into) per team kind
var requestables = map[db.TeamKind][2]Role{
	db.KindTraditional: {RoleAdmin, RoleMember},
	db.KindContest:     {RoleAdmin, RoleParticipant},
	db.KindDivision:    {RoleLeader, RoleMember},
}

// Vocabulary returns the closed role list for a team kind
func Vocabulary(kind db.TeamKind) []Role {
	return vocabularies[kind]
}

// ValidRole reports whether a role key belongs to the team kind's vocabulary
func ValidRole(kind db.TeamKind, r Role) bool {
	for _, v := range vocabularies[kind] {
		if v == r {
			return true
		}
	}
	return false
}

// ValidateRole returns ErrInvalidRole for keys outside the kind's vocabulary
func ValidateRole(kind db.TeamKind, r Role) error {
	if !ValidRole(kind, r) {
		return ErrInvalidRole
	}
	return nil
}

// RequestableRoles returns the two roles the membership workflow accepts for
// join requests and invites on a team kind
func RequestableRoles(kind db.TeamKind) [2]Role {
	return requestables[kind]
}

// Managers is the default allowed set for mutating operations
var Managers = []Role{RoleOwner, RoleAdmin}

// ============================================================================
// RoleSet
// ============================================================================

// RoleSet is a deduplicated, order-irrelevant set of role keys, including
// derived pseudo-roles
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from the given roles
func NewRoleSet(rs ...Role) RoleSet {
	set := make(RoleSet, len(rs))
	for _, r := range rs {
		set[r] = struct{}{}
	}
	return set
}

// Add inserts a role into the set
func (s RoleSet) Add(r Role) { s[r] = struct{}{} }

// Has reports whether the set contains the role
func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// Empty reports whether the set has no roles
func (s RoleSet) Empty() bool { return len(s) == 0 }

// Intersects reports whether the set shares at least one role with allowed.
// This is the whole authorization predicate: permuting allowed never changes
// the verdict.
func (s RoleSet) Intersects(allowed ...Role) bool {
	for _, r := range allowed {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// Keys returns the sorted role keys for stable API responses
func (s RoleSet) Keys() []string {
	keys := make([]string, 0, len(s))
	for r := range s {
		keys = append(keys, string(r))
	}
	sort.Strings(keys)
	return keys
}
