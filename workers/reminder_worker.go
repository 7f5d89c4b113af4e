package workers

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/palateclub/palate/db"
	"github.com/palateclub/palate/internal/config"
	"github.com/palateclub/palate/services"
)

// ReminderWorker nudges invitees who left an invite pending for too long.
// Each invite is reminded at most once.
type ReminderWorker struct {
	PG   *sql.DB
	Push *services.PushService
}

func NewReminderWorker(pg *sql.DB, push *services.PushService) *ReminderWorker {
	return &ReminderWorker{
		PG:   pg,
		Push: push,
	}
}

// StartReminderWorker periodically scans for stale pending invites
func (w *ReminderWorker) StartReminderWorker() {
	if !config.App.InviteReminder.Enabled {
		log.Println("Reminder worker disabled by config")
		return
	}

	log.Printf("Reminder worker started, reminding invites pending longer than %s", config.App.InviteReminder.After)

	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		w.processReminders()
	}
}

func (w *ReminderWorker) processReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	stale, err := w.getStaleInvites(ctx, config.App.InviteReminder.After)
	if err != nil {
		log.Printf("Worker: failed to find stale invites: %v", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	log.Printf("Worker: found %d stale invites to remind", len(stale))

	for _, invite := range stale {
		team := &db.Team{ID: invite.TeamID, Name: invite.TeamName}
		if err := w.Push.SendInvitePush(ctx, invite.UserID, team, invite.Role); err != nil {
			log.Printf("Worker: failed to push reminder for invite %s: %v", invite.ID, err)
			continue
		}
		if err := w.markReminded(ctx, invite.ID); err != nil {
			log.Printf("Worker: failed to mark invite %s reminded: %v", invite.ID, err)
		}
	}
}

type staleInvite struct {
	ID       string
	UserID   string
	TeamID   string
	TeamName string
	Role     string
}

// getStaleInvites returns pending invites older than the window that were
// never reminded
func (w *ReminderWorker) getStaleInvites(ctx context.Context, after time.Duration) ([]staleInvite, error) {
	rows, err := w.PG.QueryContext(ctx, `
		SELECT a.id, a.user_id, a.team_id, a.role, COALESCE(t.name, '')
		FROM actions a
		JOIN teams t ON t.id = a.team_id AND t.deleted_at IS NULL
		WHERE a.kind = $1
		AND a.status = $2
		AND a.reminded_at IS NULL
		AND a.created_at < NOW() - $3 * INTERVAL '1 second'
		ORDER BY a.created_at
		LIMIT 100
	`, db.ActionInvite, db.StatusPending, int64(after.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("failed to query stale invites: %w", err)
	}
	defer rows.Close()

	stale := make([]staleInvite, 0)
	for rows.Next() {
		var inv staleInvite
		if err := rows.Scan(&inv.ID, &inv.UserID, &inv.TeamID, &inv.Role, &inv.TeamName); err != nil {
			return nil, fmt.Errorf("failed to scan stale invite: %w", err)
		}
		stale = append(stale, inv)
	}
	return stale, rows.Err()
}

func (w *ReminderWorker) markReminded(ctx context.Context, actionID string) error {
	_, err := w.PG.ExecContext(ctx, `
		UPDATE actions SET reminded_at = NOW(), updated_at = NOW() WHERE id = $1
	`, actionID)
	return err
}
