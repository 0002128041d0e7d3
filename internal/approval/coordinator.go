// Package approval implements the process-wide pending-approval registry
// that lets a tool call block until a human decision arrives over a
// different connection.
//
// Grounded directly on internal/channels/ws.go's Register/Unregister/
// respCh future-over-channel pattern: a map keyed by an id, guarded by a
// mutex, handing out a single-shot buffered channel that a later call
// writes into exactly once.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultTimeout is the approval window when the caller does not specify
// one.
const DefaultTimeout = 30 * time.Minute

// ErrRequestNotFound, ErrAlreadyResolved and ErrInvalidDecision are the
// sentinels ResolveApproval wraps, so RPC callers can map them to error
// codes with errors.Is instead of string-matching. A settled request is
// marked and removed from the registry under one lock, so a second
// ResolveApproval for the same id returns ErrRequestNotFound;
// ErrAlreadyResolved is returned only for an entry still registered but
// already marked settled.
var (
	ErrRequestNotFound = errors.New("approval: request not found or already resolved")
	ErrAlreadyResolved = errors.New("approval: request already resolved")
	ErrInvalidDecision = errors.New("approval: invalid decision")
)

// pending tracks one outstanding approval request awaiting settlement.
type pending struct {
	request  Request
	future   chan Settlement
	timer    *time.Timer
	settled  bool
}

// Settlement is what a future receives when resolved: exactly one of
// Result or Err is set.
type Settlement struct {
	Result Result
	Err    error
}

// Coordinator is the pending-approval registry. Safe for concurrent use.
type Coordinator struct {
	mu      sync.Mutex
	entries map[string]*pending
	emit    Emitter
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Coordinator. emit may be nil, in which case events are
// silently dropped (useful in tests and for non-interactive callers).
func New(emit Emitter, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if emit == nil {
		emit = func(Event) {}
	}
	return &Coordinator{
		entries: make(map[string]*pending),
		emit:    emit,
		logger:  logger.With("component", "approval"),
		now:     time.Now,
	}
}

// RequestApproval registers a new pending approval, arms its timeout timer,
// emits an approval_request event, and returns a channel that receives
// exactly one settlement. timeout of zero uses DefaultTimeout.
func (c *Coordinator) RequestApproval(sessionKey, runID string, action Action, timeout time.Duration) (requestID string, future <-chan Settlement) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	id := uuid.NewString()
	req := Request{
		RequestID:   id,
		SessionKey:  sessionKey,
		RunID:       runID,
		Action:      action,
		TimestampMs: c.now().UnixMilli(),
	}

	p := &pending{
		request: req,
		future:  make(chan Settlement, 1),
	}

	c.mu.Lock()
	c.entries[id] = p
	p.timer = time.AfterFunc(timeout, func() { c.timeout(id) })
	c.mu.Unlock()

	c.emit(Event{
		SessionKey: sessionKey,
		RunID:      runID,
		Data: EventData{
			Type:      EventApprovalRequest,
			RequestID: id,
			Action:    action,
		},
	})

	return id, p.future
}

// Await blocks until the request's future settles or ctx is cancelled.
func (c *Coordinator) Await(ctx context.Context, future <-chan Settlement) (Result, error) {
	select {
	case s := <-future:
		return s.Result, s.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// ResolveApproval settles a pending request with a client decision. A
// second call for the same request_id is a no-op error, matching the
// coordinator's idempotent-safe contract.
func (c *Coordinator) ResolveApproval(requestID string, decision Decision) (Result, error) {
	if !decision.IsValid() {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}

	c.mu.Lock()
	p, ok := c.entries[requestID]
	if !ok {
		c.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %s", ErrRequestNotFound, requestID)
	}
	if p.settled {
		c.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %s", ErrAlreadyResolved, requestID)
	}
	p.settled = true
	p.timer.Stop()
	delete(c.entries, requestID)
	c.mu.Unlock()

	result := Result{
		Approved: decision.Approved(),
		Decision: decision,
	}
	if decision == DecisionAllowAlways {
		result.AllowlistPattern = p.request.Action.AllowlistPattern()
	}

	p.future <- Settlement{Result: result}

	c.emit(Event{
		SessionKey: p.request.SessionKey,
		RunID:      p.request.RunID,
		Data: EventData{
			Type:      EventApprovalResolved,
			RequestID: requestID,
			Action:    p.request.Action,
			Result:    &result,
		},
	})

	return result, nil
}

// timeout is invoked by the AfterFunc timer; it removes the entry and
// fails the future with FailureTimeout.
func (c *Coordinator) timeout(requestID string) {
	c.mu.Lock()
	p, ok := c.entries[requestID]
	if !ok || p.settled {
		c.mu.Unlock()
		return
	}
	p.settled = true
	delete(c.entries, requestID)
	c.mu.Unlock()

	p.future <- Settlement{Err: &Error{Reason: FailureTimeout}}
	c.emitSettlementFailure(p, FailureTimeout)
	c.logger.Debug("approval request timed out", "request_id", requestID)
}

// CancelApprovalsForSession fails all pending requests for sessionKey with
// FailureCancelled.
func (c *Coordinator) CancelApprovalsForSession(ctx context.Context, sessionKey string) error {
	return c.cancelMatching(ctx, FailureCancelled, func(r Request) bool {
		return r.SessionKey == sessionKey
	})
}

// CancelApprovalsForRun fails all pending requests for runID with
// FailureCancelledByRun.
func (c *Coordinator) CancelApprovalsForRun(ctx context.Context, runID string) error {
	return c.cancelMatching(ctx, FailureCancelledByRun, func(r Request) bool {
		return r.RunID == runID
	})
}

// cancelMatching fails every still-pending entry matching predicate,
// concurrently, using errgroup for fan-out — mirroring the toolloop's
// parallel-call convention.
func (c *Coordinator) cancelMatching(ctx context.Context, reason FailureReason, matches func(Request) bool) error {
	c.mu.Lock()
	var toCancel []*pending
	for id, p := range c.entries {
		if p.settled || !matches(p.request) {
			continue
		}
		p.settled = true
		p.timer.Stop()
		toCancel = append(toCancel, p)
		delete(c.entries, id)
	}
	c.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	for _, p := range toCancel {
		p := p
		g.Go(func() error {
			p.future <- Settlement{Err: &Error{Reason: reason}}
			c.emitSettlementFailure(p, reason)
			return nil
		})
	}
	return g.Wait()
}

// emitSettlementFailure reports a system-initiated settlement (timeout or
// cancellation) on the same approval_resolved event type a client decision
// uses, so a single Emitter seam (and the audit trail it feeds) covers every
// way a request can settle, per SPEC_FULL.md §4's "every resolved/timed-out/
// cancelled approval is appended" requirement.
func (c *Coordinator) emitSettlementFailure(p *pending, reason FailureReason) {
	c.emit(Event{
		SessionKey: p.request.SessionKey,
		RunID:      p.request.RunID,
		Data: EventData{
			Type:          EventApprovalResolved,
			RequestID:     p.request.RequestID,
			Action:        p.request.Action,
			FailureReason: reason,
		},
	})
}

// PendingCount returns the number of outstanding approval requests.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// HasPending reports whether requestID is still awaiting resolution.
func (c *Coordinator) HasPending(requestID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[requestID]
	return ok
}
