package signatures

import (
	"context"
	"time"

	"esign-backend/internal/shared/telemetry"
)

// RequestResolved is published after a request leaves pending and the
// change is committed.
type RequestResolved struct {
	RequestID  string
	DocumentID string
	Status     Status
	// Path is "authenticated" or "public".
	Path string
	At   time.Time
}

// EventHandler consumes lifecycle events.
type EventHandler interface {
	HandleRequestResolved(ctx context.Context, ev RequestResolved) error
}

// DocumentStatus is the slice of the documents service the rollup needs.
type DocumentStatus interface {
	MarkSigned(ctx context.Context, documentID string) (bool, error)
}

// RollupPolicy signs a document once its last pending request is signed.
// The pending count is read after the triggering transition committed, so
// of two racing final signers at least one observes zero; MarkSigned is
// conditional, so at most one flips the document.
type RollupPolicy struct {
	Repo      Repo
	Documents DocumentStatus
}

func (p *RollupPolicy) HandleRequestResolved(ctx context.Context, ev RequestResolved) error {
	if ev.Status != StatusSigned {
		return nil
	}
	pending, err := p.Repo.CountPending(ctx, ev.DocumentID)
	if err != nil {
		return err
	}
	if pending > 0 {
		telemetry.Debug("signature.rollup_waiting", map[string]any{
			"document_id": ev.DocumentID,
			"pending":     pending,
		})
		return nil
	}
	changed, err := p.Documents.MarkSigned(ctx, ev.DocumentID)
	if err != nil {
		return err
	}
	if changed {
		telemetry.Info("signature.rollup_signed", map[string]any{
			"document_id":  ev.DocumentID,
			"signature_id": ev.RequestID,
			"path":         ev.Path,
		})
	}
	return nil
}
