package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/palateclub/palate/db"
	"github.com/palateclub/palate/roles"
)

// ============================================================================
// In-memory fakes for the store interfaces
// ============================================================================

type fakeTeamStore struct {
	teams map[string]*db.Team
}

func newFakeTeamStore() *fakeTeamStore {
	return &fakeTeamStore{teams: make(map[string]*db.Team)}
}

func (f *fakeTeamStore) add(team *db.Team) { f.teams[team.ID] = team }

func (f *fakeTeamStore) Get(ctx context.Context, id string) (*db.Team, error) {
	if team, ok := f.teams[id]; ok && team.DeletedAt == nil {
		return team, nil
	}
	return nil, roles.ErrNotFound
}

func (f *fakeTeamStore) GetBySlug(ctx context.Context, slug string) (*db.Team, error) {
	for _, team := range f.teams {
		if team.Slug == slug && team.DeletedAt == nil {
			return team, nil
		}
	}
	return nil, roles.ErrNotFound
}

func (f *fakeTeamStore) ListDivisions(ctx context.Context, contestID string) ([]db.Team, error) {
	divisions := make([]db.Team, 0)
	for _, team := range f.teams {
		if team.Kind == db.KindDivision && team.ParentID == contestID && team.DeletedAt == nil {
			divisions = append(divisions, *team)
		}
	}
	return divisions, nil
}

func (f *fakeTeamStore) Exists(ctx context.Context, id string) bool {
	team, ok := f.teams[id]
	return ok && team.DeletedAt == nil
}

type fakeRelationStore struct {
	relations []db.Relation
}

func newFakeRelationStore() *fakeRelationStore {
	return &fakeRelationStore{relations: make([]db.Relation, 0)}
}

func (f *fakeRelationStore) add(userID, teamID string, role roles.Role) {
	f.relations = append(f.relations, db.Relation{
		ID:        "rel-" + userID + "-" + teamID + "-" + string(role),
		UserID:    userID,
		TeamID:    teamID,
		Role:      string(role),
		CreatedAt: time.Now(),
	})
}

func (f *fakeRelationStore) live() []db.Relation {
	out := make([]db.Relation, 0, len(f.relations))
	for _, rel := range f.relations {
		if rel.DeletedAt == nil {
			out = append(out, rel)
		}
	}
	return out
}

func (f *fakeRelationStore) ListForUserTeam(ctx context.Context, userID, teamID string) ([]db.Relation, error) {
	out := make([]db.Relation, 0)
	for _, rel := range f.live() {
		if rel.UserID == userID && rel.TeamID == teamID {
			out = append(out, rel)
		}
	}
	return out, nil
}

func (f *fakeRelationStore) ListForUserTeams(ctx context.Context, userID string, teamIDs []string) ([]db.Relation, error) {
	ids := make(map[string]bool, len(teamIDs))
	for _, id := range teamIDs {
		ids[id] = true
	}
	out := make([]db.Relation, 0)
	for _, rel := range f.live() {
		if rel.UserID == userID && ids[rel.TeamID] {
			out = append(out, rel)
		}
	}
	return out, nil
}

func (f *fakeRelationStore) ListForTeam(ctx context.Context, teamID string) ([]db.Relation, error) {
	out := make([]db.Relation, 0)
	for _, rel := range f.live() {
		if rel.TeamID == teamID {
			out = append(out, rel)
		}
	}
	return out, nil
}

func (f *fakeRelationStore) HasRole(ctx context.Context, userID, teamID string, rs ...roles.Role) (bool, error) {
	for _, rel := range f.live() {
		if rel.UserID != userID || rel.TeamID != teamID {
			continue
		}
		for _, r := range rs {
			if rel.Role == string(r) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *fakeRelationStore) Grant(ctx context.Context, rel *db.Relation) error {
	ok, _ := f.HasRole(ctx, rel.UserID, rel.TeamID, roles.Role(rel.Role))
	if ok {
		return roles.ErrAlreadyMember
	}
	if rel.ID == "" {
		rel.ID = "rel-" + rel.UserID + "-" + rel.TeamID + "-" + rel.Role
	}
	rel.CreatedAt = time.Now()
	f.relations = append(f.relations, *rel)
	return nil
}

func (f *fakeRelationStore) Revoke(ctx context.Context, userID, teamID string, role roles.Role) error {
	now := time.Now()
	for i := range f.relations {
		rel := &f.relations[i]
		if rel.UserID == userID && rel.TeamID == teamID && rel.Role == string(role) && rel.DeletedAt == nil {
			rel.DeletedAt = &now
			return nil
		}
	}
	return roles.ErrNotFound
}

func (f *fakeRelationStore) RevokeAll(ctx context.Context, userID, teamID string) error {
	now := time.Now()
	for i := range f.relations {
		rel := &f.relations[i]
		if rel.UserID == userID && rel.TeamID == teamID && rel.DeletedAt == nil {
			rel.DeletedAt = &now
		}
	}
	return nil
}

func (f *fakeRelationStore) MoveToDivision(ctx context.Context, contestID, userID, targetID string, divisionIDs []string, grantedBy string) ([]string, error) {
	existing, err := f.ListForUserTeams(ctx, userID, divisionIDs)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		rel := &db.Relation{UserID: userID, TeamID: targetID, Role: string(roles.RoleMember), GrantedBy: grantedBy}
		if err := f.Grant(ctx, rel); err != nil {
			return nil, err
		}
		return []string{string(roles.RoleMember)}, nil
	}

	moved := make(map[string]bool)
	for _, rel := range existing {
		if err := f.Revoke(ctx, userID, rel.TeamID, roles.Role(rel.Role)); err != nil {
			return nil, err
		}
		moved[rel.Role] = true
	}
	keys := make([]string, 0, len(moved))
	for role := range moved {
		keys = append(keys, role)
	}
	sort.Strings(keys)
	for _, role := range keys {
		rel := &db.Relation{UserID: userID, TeamID: targetID, Role: role, GrantedBy: grantedBy}
		if err := f.Grant(ctx, rel); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func (f *fakeRelationStore) RevokeTeam(ctx context.Context, teamID string) error {
	now := time.Now()
	for i := range f.relations {
		rel := &f.relations[i]
		if rel.TeamID == teamID && rel.DeletedAt == nil {
			rel.DeletedAt = &now
		}
	}
	return nil
}

type fakeActionStore struct {
	actions map[string]*db.Action
}

func newFakeActionStore() *fakeActionStore {
	return &fakeActionStore{actions: make(map[string]*db.Action)}
}

func (f *fakeActionStore) addPending(userID, teamID, kind string, role roles.Role) *db.Action {
	a := &db.Action{
		ID:        "action-" + userID + "-" + teamID + "-" + kind,
		UserID:    userID,
		TeamID:    teamID,
		Kind:      kind,
		Role:      string(role),
		Status:    db.StatusPending,
		CreatedAt: time.Now(),
	}
	f.actions[a.ID] = a
	return a
}

func (f *fakeActionStore) Get(ctx context.Context, id string) (*db.Action, error) {
	if a, ok := f.actions[id]; ok {
		return a, nil
	}
	return nil, roles.ErrNotFound
}

func (f *fakeActionStore) GetPending(ctx context.Context, userID, teamID, kind string) (*db.Action, error) {
	for _, a := range f.actions {
		if a.UserID == userID && a.TeamID == teamID && a.Kind == kind && a.Status == db.StatusPending {
			return a, nil
		}
	}
	return nil, roles.ErrNotFound
}

func (f *fakeActionStore) GetOpen(ctx context.Context, userID, teamID, kind string) (*db.Action, error) {
	for _, a := range f.actions {
		if a.UserID == userID && a.TeamID == teamID && a.Kind == kind && a.Status != db.StatusDeclined {
			return a, nil
		}
	}
	return nil, roles.ErrNotFound
}

func (f *fakeActionStore) ListPendingForTeam(ctx context.Context, teamID, kind string) ([]db.Action, error) {
	out := make([]db.Action, 0)
	for _, a := range f.actions {
		if a.TeamID == teamID && a.Kind == kind && a.Status == db.StatusPending {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeActionStore) Create(ctx context.Context, action *db.Action) error {
	if _, err := f.GetPending(ctx, action.UserID, action.TeamID, action.Kind); err == nil {
		if action.Kind == db.ActionInvite {
			return roles.ErrAlreadyInvited
		}
		return roles.ErrAlreadyRequested
	}
	if action.ID == "" {
		action.ID = "action-" + action.UserID + "-" + action.TeamID + "-" + action.Kind
	}
	if action.Status == "" {
		action.Status = db.StatusPending
	}
	action.CreatedAt = time.Now()
	cp := *action
	f.actions[action.ID] = &cp
	return nil
}

func (f *fakeActionStore) UpdatePendingRole(ctx context.Context, id string, role roles.Role) error {
	if a, ok := f.actions[id]; ok && a.Status == db.StatusPending {
		a.Role = string(role)
		return nil
	}
	return roles.ErrNotFound
}

func (f *fakeActionStore) Decide(ctx context.Context, id, status, decidedBy string) error {
	if a, ok := f.actions[id]; ok && a.Status == db.StatusPending {
		now := time.Now()
		a.Status = status
		a.DecidedBy = decidedBy
		a.DecidedAt = &now
		return nil
	}
	return roles.ErrNotFound
}

func (f *fakeActionStore) Delete(ctx context.Context, id string) error {
	if _, ok := f.actions[id]; !ok {
		return roles.ErrNotFound
	}
	delete(f.actions, id)
	return nil
}

// ============================================================================
// Fakes for the identity and notification dependencies
// ============================================================================

type fakeDirectory struct {
	users map[string]*db.User // keyed by lowercased email
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{users: make(map[string]*db.User)}
}

func (f *fakeDirectory) add(user *db.User) {
	f.users[strings.ToLower(user.Email)] = user
}

func (f *fakeDirectory) GetByEmail(ctx context.Context, email string) (*db.User, error) {
	if user, ok := f.users[strings.ToLower(email)]; ok {
		return user, nil
	}
	return nil, roles.ErrNotFound
}

type notifiedInvite struct {
	Email      string
	TeamID     string
	Registered bool
}

type fakeNotifier struct {
	sent []notifiedInvite
}

func (f *fakeNotifier) NotifyInvite(ctx context.Context, email string, team *db.Team, inviterID string, registered bool) {
	f.sent = append(f.sent, notifiedInvite{Email: email, TeamID: team.ID, Registered: registered})
}

// ============================================================================
// Shared fixture
// ============================================================================

type fixture struct {
	teams     *fakeTeamStore
	relations *fakeRelationStore
	actions   *fakeActionStore
	resolver  *roles.Resolver
	guard     *roles.Guard
	directory *fakeDirectory
	notifier  *fakeNotifier
}

// newFixture builds stores with a contest c1 (owner "boss"), two divisions
// d1/d2 under it, and a traditional team t1 (owner "boss")
func newFixture() *fixture {
	teams := newFakeTeamStore()
	relations := newFakeRelationStore()
	actions := newFakeActionStore()

	teams.add(&db.Team{ID: "c1", Name: "Grand Cru Open", Slug: "grand-cru", Kind: db.KindContest, Visibility: "public", Access: "apply"})
	teams.add(&db.Team{ID: "d1", Name: "Division North", Slug: "north", Kind: db.KindDivision, ParentID: "c1", Visibility: "public", Access: "apply"})
	teams.add(&db.Team{ID: "d2", Name: "Division South", Slug: "south", Kind: db.KindDivision, ParentID: "c1", Visibility: "public", Access: "apply"})
	teams.add(&db.Team{ID: "t1", Name: "Friday Club", Slug: "friday", Kind: db.KindTraditional, Visibility: "public", Access: "apply"})

	relations.add("boss", "c1", roles.RoleOwner)
	relations.add("boss", "t1", roles.RoleOwner)

	resolver := roles.NewResolver(teams, relations, actions)

	return &fixture{
		teams:     teams,
		relations: relations,
		actions:   actions,
		resolver:  resolver,
		guard:     roles.NewGuard(resolver),
		directory: newFakeDirectory(),
		notifier:  &fakeNotifier{},
	}
}

func (f *fixture) membership() *MembershipService {
	return NewMembershipService(f.teams, f.relations, f.actions, f.resolver, f.guard, f.directory, f.notifier)
}

func (f *fixture) division() *DivisionService {
	return NewDivisionService(f.teams, f.relations, f.guard)
}
