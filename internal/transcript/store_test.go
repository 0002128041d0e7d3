package transcript

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/clawinfra/trustcore/internal/approval"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transcript.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndLoadTranscript(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.AppendEntry(ctx, "session-1", "user", "enc:v1:abc"); err != nil {
		t.Fatalf("AppendEntry: %v", err)
	}
	if _, err := s.AppendEntry(ctx, "session-1", "assistant", "enc:v1:def"); err != nil {
		t.Fatalf("AppendEntry: %v", err)
	}
	if _, err := s.AppendEntry(ctx, "session-2", "user", "enc:v1:ghi"); err != nil {
		t.Fatalf("AppendEntry: %v", err)
	}

	entries, err := s.LoadTranscript(ctx, "session-1")
	if err != nil {
		t.Fatalf("LoadTranscript: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for session-1, got %d", len(entries))
	}
	if entries[0].Role != "user" || entries[1].Role != "assistant" {
		t.Errorf("unexpected role order: %+v", entries)
	}
}

func TestLoadTranscriptEmptySession(t *testing.T) {
	s := newTestStore(t)
	entries, err := s.LoadTranscript(context.Background(), "no-such-session")
	if err != nil {
		t.Fatalf("LoadTranscript: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}

func TestRecordApprovalOutcomeAndAuditTrail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.RecordApprovalOutcome(ctx, AuditRecord{
		RequestID:        "req-1",
		SessionKey:       "S",
		RunID:            "R",
		ActionKind:       "write",
		Decision:         "allow-always",
		AllowlistPattern: "/tmp/x",
		Outcome:          "resolved",
	})
	if err != nil {
		t.Fatalf("RecordApprovalOutcome: %v", err)
	}

	records, err := s.AuditTrailForSession(ctx, "S")
	if err != nil {
		t.Fatalf("AuditTrailForSession: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(records))
	}
	if records[0].Outcome != "resolved" || records[0].AllowlistPattern != "/tmp/x" {
		t.Errorf("unexpected record: %+v", records[0])
	}
}

func TestNewApprovalEmitterRecordsTimeoutEvents(t *testing.T) {
	s := newTestStore(t)
	emitter := s.NewApprovalEmitter(nil)

	emitter(approval.Event{
		SessionKey: "S",
		RunID:      "R",
		Data: approval.EventData{
			Type:          approval.EventApprovalResolved,
			RequestID:     "req-2",
			Action:        approval.Action{Kind: approval.ActionExec},
			FailureReason: approval.FailureTimeout,
		},
	})

	records, err := s.AuditTrailForSession(context.Background(), "S")
	if err != nil {
		t.Fatalf("AuditTrailForSession: %v", err)
	}
	if len(records) != 1 || records[0].Outcome != "timeout" {
		t.Fatalf("expected 1 timeout record, got %+v", records)
	}
}

func TestNewApprovalEmitterRecordsCancelledEvents(t *testing.T) {
	s := newTestStore(t)
	emitter := s.NewApprovalEmitter(nil)

	emitter(approval.Event{
		SessionKey: "S",
		RunID:      "R",
		Data: approval.EventData{
			Type:          approval.EventApprovalResolved,
			RequestID:     "req-5",
			Action:        approval.Action{Kind: approval.ActionWrite},
			FailureReason: approval.FailureCancelledByRun,
		},
	})

	records, err := s.AuditTrailForSession(context.Background(), "S")
	if err != nil {
		t.Fatalf("AuditTrailForSession: %v", err)
	}
	if len(records) != 1 || records[0].Outcome != "cancelled" {
		t.Fatalf("expected 1 cancelled record, got %+v", records)
	}
}

func TestNewApprovalEmitterRecordsResolvedEvents(t *testing.T) {
	s := newTestStore(t)
	emitter := s.NewApprovalEmitter(nil)

	result := approval.Result{Approved: true, Decision: approval.DecisionAllowOnce}
	emitter(approval.Event{
		SessionKey: "S",
		RunID:      "R",
		Data: approval.EventData{
			Type:      approval.EventApprovalResolved,
			RequestID: "req-3",
			Action:    approval.Action{Kind: approval.ActionExec, Command: "ls"},
			Result:    &result,
		},
	})

	records, err := s.AuditTrailForSession(context.Background(), "S")
	if err != nil {
		t.Fatalf("AuditTrailForSession: %v", err)
	}
	if len(records) != 1 || records[0].RequestID != "req-3" {
		t.Fatalf("expected recorded resolved event, got %+v", records)
	}
}

func TestNewApprovalEmitterIgnoresRequestEvents(t *testing.T) {
	s := newTestStore(t)
	emitter := s.NewApprovalEmitter(nil)

	emitter(approval.Event{
		SessionKey: "S",
		RunID:      "R",
		Data:       approval.EventData{Type: approval.EventApprovalRequest, RequestID: "req-4"},
	})

	records, err := s.AuditTrailForSession(context.Background(), "S")
	if err != nil {
		t.Fatalf("AuditTrailForSession: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected approval_request events to be ignored, got %+v", records)
	}
}
