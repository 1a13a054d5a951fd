// Package workerproc turns queued notification payloads into delivered mail.
// It is shared by the long-polling worker and the Lambda SQS handler.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"esign-backend/internal/notify"
	"esign-backend/internal/queue"
	"esign-backend/internal/shared/metrics"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrMissingRecipient indicates a notification without an address.
type ErrMissingRecipient struct {
	Meta           MessageMeta
	NotificationID string
}

func (e ErrMissingRecipient) Error() string { return "missing recipient" }

// ErrDeliver indicates the mailer failed after successful parsing. These are
// retried by leaving the message on the queue.
type ErrDeliver struct {
	NotificationID string
	DocumentID     string
	Err            error
}

func (e ErrDeliver) Error() string {
	if e.Err == nil {
		return "deliver notification"
	}
	return "deliver notification: " + e.Err.Error()
}

func (e ErrDeliver) Unwrap() error { return e.Err }

// Unrecoverable reports whether err means the payload can never succeed and
// should be dropped.
func Unrecoverable(err error) bool {
	var (
		empty   ErrEmptyBody
		decode  ErrDecode
		missing ErrMissingRecipient
	)
	return errors.As(err, &empty) || errors.As(err, &decode) || errors.As(err, &missing)
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.Recipient) == "" {
		return msg, meta, ErrMissingRecipient{Meta: meta, NotificationID: msg.ID}
	}
	return msg, meta, nil
}

type parsedMessageKey struct{}

// WithParsedMessage stores a decoded message in the context for reuse.
func WithParsedMessage(ctx context.Context, msg queue.Message) context.Context {
	return context.WithValue(ctx, parsedMessageKey{}, msg)
}

func parsedMessageFromContext(ctx context.Context) (queue.Message, bool) {
	if ctx == nil {
		return queue.Message{}, false
	}
	msg, ok := ctx.Value(parsedMessageKey{}).(queue.Message)
	return msg, ok
}

// HandleMessage parses the payload, renders the mail and hands it to mailer.
func HandleMessage(ctx context.Context, mailer notify.Mailer, body string) error {
	if mailer == nil {
		return errors.New("mailer not configured")
	}

	msg, ok := parsedMessageFromContext(ctx)
	if !ok {
		var err error
		msg, _, err = ParseMessage(body)
		if err != nil {
			return err
		}
	}
	if strings.TrimSpace(msg.Recipient) == "" {
		return ErrMissingRecipient{Meta: ComputeMeta(body), NotificationID: msg.ID}
	}

	if err := mailer.Send(ctx, notify.Render(notify.FromMessage(msg))); err != nil {
		metrics.IncNotification("failed")
		return ErrDeliver{NotificationID: msg.ID, DocumentID: msg.DocumentID, Err: err}
	}
	metrics.IncNotification("delivered")
	return nil
}
