package workers

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/palateclub/palate/services"
)

// NotificationWorker drains the invite outbox and delivers queued invite
// notifications through the gateway
type NotificationWorker struct {
	PG            *sql.DB
	Notifications *services.NotificationService
}

func NewNotificationWorker(pg *sql.DB, notifications *services.NotificationService) *NotificationWorker {
	return &NotificationWorker{
		PG:            pg,
		Notifications: notifications,
	}
}

// StartNotificationWorker processes pending invite notifications
func (w *NotificationWorker) StartNotificationWorker() {
	log.Println("Notification worker started, draining invite outbox...")

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		w.drainOutbox()
	}
}

func (w *NotificationWorker) drainOutbox() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pending, err := w.Notifications.PendingInvites(ctx, 50)
	if err != nil {
		log.Printf("Worker: failed to list pending invites: %v", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	log.Printf("Worker: delivering %d pending invite notifications", len(pending))
	for _, n := range pending {
		if err := w.Notifications.Deliver(ctx, n); err != nil {
			log.Printf("Worker: failed to deliver invite %s to %s: %v", n.ID, n.Email, err)
		}
	}
}
