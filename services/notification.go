package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/palateclub/palate/db"
	"github.com/palateclub/palate/internal/config"
)

// NotificationService delivers invite notifications through the external
// notification gateway. Queueing writes an outbox row; the notification
// worker drains the outbox and posts to the gateway. Both paths are
// fire-and-forget: failures are logged, never surfaced to the caller.
type NotificationService struct {
	PG         *sql.DB
	gatewayURL string
	apiToken   string
	publicURL  string
	httpClient *http.Client
}

var _ InviteNotifier = (*NotificationService)(nil)

// NewNotificationService creates a new notification service
func NewNotificationService(pg *sql.DB) *NotificationService {
	return &NotificationService{
		PG:         pg,
		gatewayURL: config.App.NotificationGatewayDetails.URL,
		apiToken:   config.App.NotificationGatewayDetails.APIToken,
		publicURL:  config.App.PublicURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// IsConfigured returns true if the notification gateway is configured
func (s *NotificationService) IsConfigured() bool {
	return s.gatewayURL != ""
}

// InviteNotification is one outbox row awaiting delivery
type InviteNotification struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	TeamID     string     `json:"team_id"`
	TeamName   string     `json:"team_name"`
	InviterID  string     `json:"inviter_id"`
	Registered bool       `json:"registered"`
	Token      string     `json:"-"`
	TokenHash  string     `json:"-"`
	Attempts   int        `json:"attempts"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NotifyInvite queues an invite notification. Implements the
// MembershipService notifier contract: errors are logged, not returned, so a
// gateway outage never fails an invite.
func (s *NotificationService) NotifyInvite(ctx context.Context, email string, team *db.Team, inviterID string, registered bool) {
	token, hash, err := NewInviteToken()
	if err != nil {
		log.Printf("notification: failed to create invite token for %s: %v", email, err)
		return
	}

	// The outbox holds the plain token until delivery; the hash is what the
	// accept endpoint verifies against
	_, err = s.PG.ExecContext(ctx, `
		INSERT INTO invite_outbox (id, email, team_id, inviter_id, registered, token, token_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`, uuid.New().String(), email, team.ID, inviterID, registered, token, hash)
	if err != nil {
		log.Printf("notification: failed to queue invite for %s on team %s: %v", email, team.ID, err)
		return
	}
	log.Printf("notification: queued invite for %s on team %s (registered=%v)", email, team.ID, registered)
}

// PendingInvites returns unsent outbox rows for the worker, oldest first
func (s *NotificationService) PendingInvites(ctx context.Context, limit int) ([]InviteNotification, error) {
	rows, err := s.PG.QueryContext(ctx, `
		SELECT o.id, o.email, o.team_id, COALESCE(t.name, ''), o.inviter_id, o.registered, o.token, o.token_hash, o.attempts, o.created_at
		FROM invite_outbox o
		LEFT JOIN teams t ON t.id = o.team_id
		WHERE o.sent_at IS NULL AND o.attempts < 5
		ORDER BY o.created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending invites: %w", err)
	}
	defer rows.Close()

	pending := make([]InviteNotification, 0)
	for rows.Next() {
		var n InviteNotification
		if err := rows.Scan(&n.ID, &n.Email, &n.TeamID, &n.TeamName, &n.InviterID,
			&n.Registered, &n.Token, &n.TokenHash, &n.Attempts, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending invite: %w", err)
		}
		pending = append(pending, n)
	}
	return pending, rows.Err()
}

// Deliver posts one invite notification to the gateway and records the
// outcome on the outbox row
func (s *NotificationService) Deliver(ctx context.Context, n InviteNotification) error {
	if !s.IsConfigured() {
		// Without a gateway the row is marked sent so the outbox drains;
		// the log line is the delivery
		log.Printf("notification: no gateway configured, dropping invite mail to %s for team %s", n.Email, n.TeamName)
		return s.markSent(ctx, n.ID)
	}

	payload := map[string]interface{}{
		"type":       "team_invite",
		"email":      n.Email,
		"team":       n.TeamName,
		"inviter":    n.InviterID,
		"registered": n.Registered,
		"join_url":   fmt.Sprintf("%s/teams/%s/invites?token=%s", s.publicURL, n.TeamID, n.Token),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal invite payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.gatewayURL+"/api/notifications/send", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiToken)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.recordAttempt(ctx, n.ID)
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.recordAttempt(ctx, n.ID)
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	return s.markSent(ctx, n.ID)
}

func (s *NotificationService) markSent(ctx context.Context, id string) error {
	// Delivered rows keep only the hash
	_, err := s.PG.ExecContext(ctx, `
		UPDATE invite_outbox SET sent_at = NOW(), attempts = attempts + 1, token = '' WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark invite sent: %w", err)
	}
	return nil
}

func (s *NotificationService) recordAttempt(ctx context.Context, id string) {
	if _, err := s.PG.ExecContext(ctx, `
		UPDATE invite_outbox SET attempts = attempts + 1 WHERE id = $1
	`, id); err != nil {
		log.Printf("notification: failed to record delivery attempt for %s: %v", id, err)
	}
}
