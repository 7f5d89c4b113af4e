package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/palateclub/palate/db"
)

// PushService sends mobile push notifications for team events. Firebase is
// optional: when the credentials file is missing the service degrades to
// log-only and every send is a no-op.
type PushService struct {
	PG     *sql.DB
	client *messaging.Client
}

func NewPushService(pg *sql.DB) (*PushService, error) {
	service := &PushService{PG: pg}

	// Requires GOOGLE_APPLICATION_CREDENTIALS or the local key file
	opt := option.WithCredentialsFile("firebase-service-account-key.json")
	app, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		log.Printf("Firebase app not initialized: %v (push disabled)", err)
		return service, nil
	}

	client, err := app.Messaging(context.Background())
	if err != nil {
		log.Printf("Firebase messaging client not initialized: %v (push disabled)", err)
		return service, nil
	}

	service.client = client
	log.Println("Push service: Firebase messaging initialized")

	return service, nil
}

// SendInvitePush notifies a registered user that they were invited to a team
func (s *PushService) SendInvitePush(ctx context.Context, userID string, team *db.Team, role string) error {
	return s.send(ctx, userID,
		"Team invite",
		fmt.Sprintf("You were invited to join %s as %s", team.Name, role),
		map[string]string{
			"team_id": team.ID,
			"role":    role,
			"type":    "invite",
		})
}

// SendDecisionPush notifies a requester that their join request was decided
func (s *PushService) SendDecisionPush(ctx context.Context, userID string, team *db.Team, decision string) error {
	return s.send(ctx, userID,
		"Join request "+decision,
		fmt.Sprintf("Your request to join %s was %s", team.Name, decision),
		map[string]string{
			"team_id":  team.ID,
			"decision": decision,
			"type":     "join_decision",
		})
}

func (s *PushService) send(ctx context.Context, userID, title, body string, data map[string]string) error {
	if s.client == nil {
		log.Printf("Push disabled, skipping notification for user %s: %s", userID, title)
		return nil
	}

	var fcmToken string
	err := s.PG.QueryRowContext(ctx,
		"SELECT fcm_token FROM users WHERE id = $1 AND fcm_token IS NOT NULL AND fcm_token != ''",
		userID,
	).Scan(&fcmToken)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Printf("No FCM token found for user %s", userID)
			return nil
		}
		return fmt.Errorf("error fetching user FCM token: %v", err)
	}

	message := &messaging.Message{
		Token: fcmToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "normal",
			Notification: &messaging.AndroidNotification{
				Icon:         "ic_notification",
				Sound:        "default",
				ChannelID:    "team_events",
				DefaultSound: true,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: title,
						Body:  body,
					},
					Sound: "default",
				},
			},
		},
	}

	response, err := s.client.Send(ctx, message)
	if err != nil {
		log.Printf("Error sending push to user %s: %v", userID, err)
		return err
	}

	log.Printf("Sent push notification to user %s: %s", userID, response)
	return nil
}

// UpdateUserFCMToken stores a device token for a user
func (s *PushService) UpdateUserFCMToken(userID, fcmToken string) error {
	_, err := s.PG.Exec(
		"UPDATE users SET fcm_token = $1, updated_at = NOW() WHERE id = $2",
		fcmToken, userID,
	)
	if err != nil {
		return fmt.Errorf("error updating FCM token: %v", err)
	}

	log.Printf("Updated FCM token for user %s", userID)
	return nil
}
