package services

import (
	"context"
	"errors"

	"github.com/palateclub/palate/db"
	"github.com/palateclub/palate/roles"
)

// DivisionService assigns contest participants to divisions. The invariant it
// protects: a participant belongs to at most one division per contest.
type DivisionService struct {
	Teams     roles.TeamStore
	Relations roles.RelationStore
	Guard     *roles.Guard
}

// NewDivisionService creates a new division assignment service
func NewDivisionService(teams roles.TeamStore, relations roles.RelationStore, guard *roles.Guard) *DivisionService {
	return &DivisionService{
		Teams:     teams,
		Relations: relations,
		Guard:     guard,
	}
}

// Assign places a user into a division. A first assignment grants the default
// member role. Reassignment moves the user's full division role set (a guide
// stays a guide), clearing prior divisions first so the one-division
// invariant holds.
func (s *DivisionService) Assign(ctx context.Context, actorID, contestID, divisionID, userID string) ([]string, error) {
	contest, division, err := s.loadPair(ctx, contestID, divisionID)
	if err != nil {
		return nil, err
	}
	if err := s.Guard.RequireContestOrDivision(ctx, contest, division, actorID); err != nil {
		return nil, err
	}

	divisions, err := s.Teams.ListDivisions(ctx, contestID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(divisions))
	for i, d := range divisions {
		ids[i] = d.ID
	}

	// The store runs the clear-and-recreate move as one atomic unit: earned
	// roles survive reassignment and concurrent assigns cannot leave the user
	// in two divisions.
	return s.Relations.MoveToDivision(ctx, contestID, userID, divisionID, ids, actorID)
}

// Unassign removes the user's roles in one specific division only.
// Fails with ErrNotAssigned if the user has no relation there.
func (s *DivisionService) Unassign(ctx context.Context, actorID, contestID, divisionID, userID string) error {
	contest, division, err := s.loadPair(ctx, contestID, divisionID)
	if err != nil {
		return err
	}
	if err := s.Guard.RequireContestOrDivision(ctx, contest, division, actorID); err != nil {
		return err
	}

	existing, err := s.Relations.ListForUserTeam(ctx, userID, divisionID)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return roles.ErrNotAssigned
	}
	return s.Relations.RevokeAll(ctx, userID, divisionID)
}

// CopyReport partitions a participant copy by outcome
type CopyReport struct {
	Copied        []string `json:"copied"`
	AlreadyMember []string `json:"already_member"`
}

// CopyParticipants copies every participant of one contest into another
// (e.g. seeding next year's edition). Each participant is processed
// independently; existing participants of the target are reported, not
// failed. The participant set comes from the relation store alone - there is
// exactly one enumeration path.
func (s *DivisionService) CopyParticipants(ctx context.Context, actorID, fromContestID, toContestID string) (*CopyReport, error) {
	from, err := s.loadContest(ctx, fromContestID)
	if err != nil {
		return nil, err
	}
	to, err := s.loadContest(ctx, toContestID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Guard.RequireTeam(ctx, from, actorID, roles.Managers...); err != nil {
		return nil, err
	}
	if _, err := s.Guard.RequireTeam(ctx, to, actorID, roles.Managers...); err != nil {
		return nil, err
	}

	relations, err := s.Relations.ListForTeam(ctx, fromContestID)
	if err != nil {
		return nil, err
	}

	report := &CopyReport{Copied: make([]string, 0), AlreadyMember: make([]string, 0)}
	for _, rel := range relations {
		if rel.Role != string(roles.RoleParticipant) {
			continue
		}
		grant := &db.Relation{UserID: rel.UserID, TeamID: toContestID, Role: rel.Role, GrantedBy: actorID}
		if err := s.Relations.Grant(ctx, grant); err != nil {
			if errors.Is(err, roles.ErrAlreadyMember) {
				report.AlreadyMember = append(report.AlreadyMember, rel.UserID)
				continue
			}
			return nil, err
		}
		report.Copied = append(report.Copied, rel.UserID)
	}
	return report, nil
}

func (s *DivisionService) loadContest(ctx context.Context, contestID string) (*db.Team, error) {
	contest, err := s.Teams.Get(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if contest.Kind != db.KindContest {
		return nil, roles.ErrInvalidHierarchy
	}
	return contest, nil
}

func (s *DivisionService) loadPair(ctx context.Context, contestID, divisionID string) (*db.Team, *db.Team, error) {
	contest, err := s.loadContest(ctx, contestID)
	if err != nil {
		return nil, nil, err
	}
	division, err := s.Teams.Get(ctx, divisionID)
	if err != nil {
		return nil, nil, err
	}
	if division.Kind != db.KindDivision || division.ParentID != contestID {
		return nil, nil, roles.ErrInvalidHierarchy
	}
	return contest, division, nil
}
