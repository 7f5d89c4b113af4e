package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/palateclub/palate/db"
	"github.com/palateclub/palate/roles"
)

// InviteNotifier delivers invite notifications. Delivery is fire-and-forget:
// implementations log failures instead of returning them.
type InviteNotifier interface {
	NotifyInvite(ctx context.Context, email string, team *db.Team, inviterID string, registered bool)
}

// UserDirectory resolves invitee email addresses to registered users
type UserDirectory interface {
	GetByEmail(ctx context.Context, email string) (*db.User, error)
}

// MembershipService governs the join-request / invite state machine.
// Approval is the only path that mutates relation state; declines and
// withdrawals only touch actions.
type MembershipService struct {
	Teams     roles.TeamStore
	Relations roles.RelationStore
	Actions   roles.ActionStore
	Resolver  *roles.Resolver
	Guard     *roles.Guard
	Identity  UserDirectory
	Notifier  InviteNotifier
}

// NewMembershipService creates a new membership service
func NewMembershipService(teams roles.TeamStore, relations roles.RelationStore, actions roles.ActionStore,
	resolver *roles.Resolver, guard *roles.Guard, identity UserDirectory, notifier InviteNotifier) *MembershipService {
	return &MembershipService{
		Teams:     teams,
		Relations: relations,
		Actions:   actions,
		Resolver:  resolver,
		Guard:     guard,
		Identity:  identity,
		Notifier:  notifier,
	}
}

// RequestJoin files a join request for one of the team's requestable roles.
// A pending request for a different role is updated in place; asking again
// for the same role fails with ErrAlreadyRequested. On open-access teams the
// request is approved on the spot by the workflow system user.
func (s *MembershipService) RequestJoin(ctx context.Context, userID, teamID string, role roles.Role) (*db.Action, error) {
	team, err := s.Teams.Get(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.Access == db.AccessInviteOnly {
		return nil, fmt.Errorf("%w: team is invite-only", roles.ErrForbidden)
	}
	if err := s.validateRequestable(team, role); err != nil {
		return nil, err
	}

	set, err := s.Resolver.Resolve(ctx, team, userID)
	if err != nil {
		return nil, err
	}
	requestable := roles.RequestableRoles(team.Kind)
	if set.Intersects(role, requestable[0], requestable[1]) {
		return nil, roles.ErrAlreadyMember
	}

	pending, err := s.Actions.GetPending(ctx, userID, teamID, db.ActionJoin)
	if err == nil {
		if pending.Role == string(role) {
			return nil, roles.ErrAlreadyRequested
		}
		// Re-application with a different role replaces the pending request
		// instead of stacking a duplicate
		if err := s.Actions.UpdatePendingRole(ctx, pending.ID, role); err != nil {
			return nil, err
		}
		pending.Role = string(role)
		return pending, nil
	}
	if !errors.Is(err, roles.ErrNotFound) {
		return nil, err
	}

	action := &db.Action{
		UserID: userID,
		TeamID: teamID,
		Kind:   db.ActionJoin,
		Role:   string(role),
	}
	if err := s.Actions.Create(ctx, action); err != nil {
		return nil, err
	}

	if team.Access == db.AccessOpen {
		return s.decide(ctx, team, db.SystemUserWorkflow, action.ID, db.StatusApproved, db.ActionJoin)
	}
	return action, nil
}

// CancelJoin withdraws the caller's own pending join request
func (s *MembershipService) CancelJoin(ctx context.Context, userID, teamID string) error {
	pending, err := s.Actions.GetPending(ctx, userID, teamID, db.ActionJoin)
	if err != nil {
		return err
	}
	return s.Actions.Decide(ctx, pending.ID, db.StatusCancelled, userID)
}

// InviteReport partitions a batch invite by outcome
type InviteReport struct {
	Invited        []string `json:"invited"`
	AlreadyMember  []string `json:"already_member"`
	AlreadyInvited []string `json:"already_invited"`
}

// Invite invites a batch of users by email. Each address is processed
// independently: existing members and already-invited users are skipped and
// reported, never failing the whole batch. Registered invitees get a pending
// invite action; unregistered addresses only get the notification.
// Any non-declined prior invite blocks a re-invite, including approved ones.
func (s *MembershipService) Invite(ctx context.Context, actorID, teamID string, role roles.Role, emails []string) (*InviteReport, error) {
	team, err := s.Teams.Get(ctx, teamID)
	if err != nil {
		return nil, err
	}
	allowed := append([]roles.Role{roles.RoleEditor}, roles.Managers...)
	if _, err := s.Guard.RequireTeam(ctx, team, actorID, allowed...); err != nil {
		return nil, err
	}
	if err := s.validateRequestable(team, role); err != nil {
		return nil, err
	}

	report := &InviteReport{
		Invited:        make([]string, 0),
		AlreadyMember:  make([]string, 0),
		AlreadyInvited: make([]string, 0),
	}

	for _, email := range emails {
		user, err := s.Identity.GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, roles.ErrNotFound) {
				// Unregistered address: notify only, the action is created
				// once they sign up and the invite is re-issued
				s.Notifier.NotifyInvite(ctx, email, team, actorID, false)
				report.Invited = append(report.Invited, email)
				continue
			}
			return nil, err
		}

		set, err := s.Resolver.Resolve(ctx, team, user.ID)
		if err != nil {
			return nil, err
		}
		if set.Intersects(roles.Vocabulary(team.Kind)...) {
			report.AlreadyMember = append(report.AlreadyMember, email)
			continue
		}

		if _, err := s.Actions.GetOpen(ctx, user.ID, teamID, db.ActionInvite); err == nil {
			report.AlreadyInvited = append(report.AlreadyInvited, email)
			continue
		} else if !errors.Is(err, roles.ErrNotFound) {
			return nil, err
		}

		action := &db.Action{
			UserID:    user.ID,
			TeamID:    teamID,
			Kind:      db.ActionInvite,
			Role:      string(role),
			CreatedBy: actorID,
		}
		if err := s.Actions.Create(ctx, action); err != nil {
			if errors.Is(err, roles.ErrAlreadyInvited) {
				report.AlreadyInvited = append(report.AlreadyInvited, email)
				continue
			}
			return nil, err
		}

		s.Notifier.NotifyInvite(ctx, email, team, actorID, true)
		report.Invited = append(report.Invited, email)
	}

	return report, nil
}

// DecideJoin lets a team manager approve or decline a pending join request
func (s *MembershipService) DecideJoin(ctx context.Context, actorID, teamID, actionID, decision string) (*db.Action, error) {
	team, err := s.Teams.Get(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Guard.RequireTeam(ctx, team, actorID, roles.Managers...); err != nil {
		return nil, err
	}
	return s.decide(ctx, team, actorID, actionID, decision, db.ActionJoin)
}

// RespondInvite lets the invitee accept or decline their own invite
func (s *MembershipService) RespondInvite(ctx context.Context, userID, teamID, actionID, decision string) (*db.Action, error) {
	team, err := s.Teams.Get(ctx, teamID)
	if err != nil {
		return nil, err
	}
	action, err := s.Actions.Get(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if action.UserID != userID {
		return nil, roles.ErrForbidden
	}
	return s.decide(ctx, team, userID, actionID, decision, db.ActionInvite)
}

// decide runs the shared terminal transition. Pending is the only state a
// decision can leave; approved and declined never transition again.
func (s *MembershipService) decide(ctx context.Context, team *db.Team, actorID, actionID, decision, expectKind string) (*db.Action, error) {
	if decision != db.StatusApproved && decision != db.StatusDeclined {
		return nil, ErrInvalidInput
	}

	action, err := s.Actions.Get(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if action.TeamID != team.ID || action.Status != db.StatusPending {
		return nil, roles.ErrNotFound
	}
	if action.Kind != expectKind {
		return nil, roles.ErrWrongActionKind
	}

	if decision == db.StatusApproved {
		rel := &db.Relation{
			UserID:    action.UserID,
			TeamID:    team.ID,
			Role:      action.Role,
			GrantedBy: actorID,
		}
		if err := s.Relations.Grant(ctx, rel); err != nil {
			return nil, err
		}
	}

	if err := s.Actions.Decide(ctx, actionID, decision, actorID); err != nil {
		return nil, err
	}
	action.Status = decision
	action.DecidedBy = actorID
	return action, nil
}

// WithdrawInvite hard-deletes a pending invite. This is the only hard-delete
// in the workflow.
func (s *MembershipService) WithdrawInvite(ctx context.Context, actorID, teamID, actionID string) error {
	team, err := s.Teams.Get(ctx, teamID)
	if err != nil {
		return err
	}
	allowed := append([]roles.Role{roles.RoleEditor}, roles.Managers...)
	if _, err := s.Guard.RequireTeam(ctx, team, actorID, allowed...); err != nil {
		return err
	}

	action, err := s.Actions.Get(ctx, actionID)
	if err != nil {
		return err
	}
	if action.TeamID != teamID || action.Status != db.StatusPending {
		return roles.ErrNotFound
	}
	if action.Kind != db.ActionInvite {
		return roles.ErrWrongActionKind
	}
	return s.Actions.Delete(ctx, actionID)
}

// Grant directly assigns a role (requires owner or admin)
func (s *MembershipService) Grant(ctx context.Context, actorID, teamID, targetID string, role roles.Role) error {
	team, err := s.Teams.Get(ctx, teamID)
	if err != nil {
		return err
	}
	if _, err := s.Guard.RequireTeam(ctx, team, actorID, roles.Managers...); err != nil {
		return err
	}
	if err := roles.ValidateRole(team.Kind, role); err != nil {
		return err
	}
	return s.Relations.Grant(ctx, &db.Relation{
		UserID:    targetID,
		TeamID:    teamID,
		Role:      string(role),
		GrantedBy: actorID,
	})
}

// Revoke removes one role from a member (requires owner or admin). The owner
// role itself can only be given up by its holder via Leave.
func (s *MembershipService) Revoke(ctx context.Context, actorID, teamID, targetID string, role roles.Role) error {
	team, err := s.Teams.Get(ctx, teamID)
	if err != nil {
		return err
	}
	if _, err := s.Guard.RequireTeam(ctx, team, actorID, roles.Managers...); err != nil {
		return err
	}
	if role == roles.RoleOwner {
		return fmt.Errorf("%w: cannot revoke the owner role", ErrInvalidInput)
	}
	return s.Relations.Revoke(ctx, targetID, teamID, role)
}

// Leave drops all of the caller's relations on the team. Owners cannot leave
// their own team; they must delete it or transfer ownership first.
func (s *MembershipService) Leave(ctx context.Context, userID, teamID string) error {
	team, err := s.Teams.Get(ctx, teamID)
	if err != nil {
		return err
	}
	set, err := s.Resolver.Resolve(ctx, team, userID)
	if err != nil {
		return err
	}
	if set.Has(roles.RoleOwner) {
		return fmt.Errorf("%w: owners cannot leave their own team", ErrInvalidInput)
	}
	if !set.Intersects(roles.Vocabulary(team.Kind)...) {
		return roles.ErrNotFound
	}
	return s.Relations.RevokeAll(ctx, userID, teamID)
}

// ListJoinRequests returns a team's pending join requests (managers only)
func (s *MembershipService) ListJoinRequests(ctx context.Context, actorID, teamID string) ([]db.Action, error) {
	team, err := s.Teams.Get(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Guard.RequireTeam(ctx, team, actorID, roles.Managers...); err != nil {
		return nil, err
	}
	return s.Actions.ListPendingForTeam(ctx, teamID, db.ActionJoin)
}

// ListInvites returns a team's pending invites (managers and editors)
func (s *MembershipService) ListInvites(ctx context.Context, actorID, teamID string) ([]db.Action, error) {
	team, err := s.Teams.Get(ctx, teamID)
	if err != nil {
		return nil, err
	}
	allowed := append([]roles.Role{roles.RoleEditor}, roles.Managers...)
	if _, err := s.Guard.RequireTeam(ctx, team, actorID, allowed...); err != nil {
		return nil, err
	}
	return s.Actions.ListPendingForTeam(ctx, teamID, db.ActionInvite)
}

func (s *MembershipService) validateRequestable(team *db.Team, role roles.Role) error {
	requestable := roles.RequestableRoles(team.Kind)
	if role != requestable[0] && role != requestable[1] {
		log.Printf("membership: role %s is not requestable on %s team %s", role, team.Kind, team.ID)
		return roles.ErrInvalidRole
	}
	return nil
}
