package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"esign-backend/internal/shared/telemetry"
)

// Mail is a rendered message ready for a transport.
type Mail struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers rendered mail.
type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// LogMailer logs mail instead of sending it.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, m Mail) error {
	telemetry.Info("mail.sent", map[string]any{
		"to":      m.To,
		"subject": m.Subject,
		"bytes":   len(m.Body),
	})
	return nil
}

// Render builds the mail for a notification.
func Render(n Notification) Mail {
	title := strings.TrimSpace(n.DocumentTitle)
	if title == "" {
		title = "a document"
	}
	greeting := "Hello"
	if name := strings.TrimSpace(n.RecipientName); name != "" {
		greeting = "Hello " + name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s,\n\n", greeting)
	switch n.Kind {
	case KindPublicLink:
		fmt.Fprintf(&b, "You have been asked to sign %q. No account is needed:\n\n%s\n", title, n.Link)
	default:
		fmt.Fprintf(&b, "You have been asked to sign %q. Sign in to review it.\n", title)
		if n.Link != "" {
			fmt.Fprintf(&b, "\n%s\n", n.Link)
		}
	}
	if !n.ExpiresAt.IsZero() {
		fmt.Fprintf(&b, "\nThis request expires on %s.\n", n.ExpiresAt.UTC().Format(time.RFC1123))
	}

	return Mail{
		To:      n.Recipient,
		Subject: "Signature requested: " + title,
		Body:    b.String(),
	}
}

var _ Mailer = LogMailer{}
