package transcript

import (
	"context"

	"github.com/clawinfra/trustcore/internal/approval"
)

// NewApprovalEmitter returns an approval.Emitter that records every
// approval_resolved event into the audit trail as it is emitted by the
// coordinator — whether the request was resolved by a client decision or
// settled by the coordinator itself on timeout or cancellation (see
// EventData's FailureReason) — giving a live audit feed independent of
// whatever RPC transport forwards the event to the human client.
func (s *Store) NewApprovalEmitter(logf func(err error)) approval.Emitter {
	return func(e approval.Event) {
		if e.Data.Type != approval.EventApprovalResolved {
			return
		}
		rec := AuditRecord{
			RequestID:  e.Data.RequestID,
			SessionKey: e.SessionKey,
			RunID:      e.RunID,
			ActionKind: string(e.Data.Action.Kind),
		}
		switch {
		case e.Data.Result != nil:
			rec.Decision = string(e.Data.Result.Decision)
			rec.AllowlistPattern = e.Data.Result.AllowlistPattern
			rec.Outcome = "resolved"
		case e.Data.FailureReason == approval.FailureTimeout:
			rec.Outcome = "timeout"
		default:
			rec.Outcome = "cancelled"
		}
		if err := s.RecordApprovalOutcome(context.Background(), rec); err != nil && logf != nil {
			logf(err)
		}
	}
}
