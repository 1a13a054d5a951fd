// Package notify tells signers about documents waiting for them. Delivery is
// fire-and-forget: callers log and count failures but never roll back on them.
package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"esign-backend/internal/queue"
	"esign-backend/internal/shared/ids"
	"esign-backend/internal/shared/metrics"
	"esign-backend/internal/shared/telemetry"
)

// Notification kinds.
const (
	KindSignatureRequested = queue.KindSignatureRequested
	KindPublicLink         = queue.KindPublicLink
)

// Notification is one message to one signer.
type Notification struct {
	Kind          string
	Recipient     string
	RecipientName string
	DocumentID    string
	DocumentTitle string
	Link          string
	ExpiresAt     time.Time
}

// Notifier hands a notification off for delivery.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// ErrNoRecipient is returned for a notification without an address.
var ErrNoRecipient = errors.New("notification has no recipient")

// QueueNotifier enqueues notifications for the delivery worker.
type QueueNotifier struct {
	Client queue.Client
	Now    func() time.Time
}

func (q QueueNotifier) Notify(ctx context.Context, n Notification) error {
	if strings.TrimSpace(n.Recipient) == "" {
		return ErrNoRecipient
	}
	now := time.Now().UTC()
	if q.Now != nil {
		now = q.Now().UTC()
	}
	msg := ToMessage(n, ids.At(now), now)
	if err := q.Client.Send(ctx, msg); err != nil {
		metrics.IncNotification("failed")
		return err
	}
	metrics.IncNotification("enqueued")
	telemetry.Info("notify.enqueued", map[string]any{
		"notification_id": msg.ID,
		"kind":            msg.Kind,
		"document_id":     msg.DocumentID,
	})
	return nil
}

// LogNotifier writes notifications to the log. Used when no queue is
// configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n Notification) error {
	if strings.TrimSpace(n.Recipient) == "" {
		return ErrNoRecipient
	}
	metrics.IncNotification("logged")
	telemetry.Info("notify.logged", map[string]any{
		"kind":        n.Kind,
		"recipient":   n.Recipient,
		"document_id": n.DocumentID,
		"link":        n.Link,
	})
	return nil
}

// ToMessage converts n into its queue payload.
func ToMessage(n Notification, id string, at time.Time) queue.Message {
	return queue.Message{
		ID:            id,
		Kind:          n.Kind,
		Recipient:     n.Recipient,
		RecipientName: n.RecipientName,
		DocumentID:    n.DocumentID,
		DocumentTitle: n.DocumentTitle,
		Link:          n.Link,
		ExpiresAt:     n.ExpiresAt.UTC(),
		EnqueuedAt:    at.UTC().Format(time.RFC3339),
		Version:       queue.CurrentVersion,
	}
}

// FromMessage recovers the notification carried by msg.
func FromMessage(msg queue.Message) Notification {
	return Notification{
		Kind:          msg.Kind,
		Recipient:     msg.Recipient,
		RecipientName: msg.RecipientName,
		DocumentID:    msg.DocumentID,
		DocumentTitle: msg.DocumentTitle,
		Link:          msg.Link,
		ExpiresAt:     msg.ExpiresAt,
	}
}

var (
	_ Notifier = QueueNotifier{}
	_ Notifier = LogNotifier{}
)
