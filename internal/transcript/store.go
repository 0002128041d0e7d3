// Package transcript persists encrypted session transcripts and the
// approval audit trail in sqlite so a security review can reconstruct who
// approved what, and so transcripts survive process restarts.
//
// Grounded on internal/memory/hybrid/store.go: database/sql over
// modernc.org/sqlite, WAL journal mode, migrate-on-open, a single mutex
// guarding writes. A transcript entry's content column holds whatever
// string the caller passes, normally an internal/vault envelope (plaintext
// when encryption is off or fails); this package neither encrypts nor
// inspects it. Approval audit rows are stored as plain columns.
package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store is the sqlite-backed transcript and approval-audit store.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates or opens the sqlite database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("transcript: open db: %w", err)
	}

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("transcript: wal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("transcript: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS transcript_entries (
			id         TEXT PRIMARY KEY,
			session_key TEXT NOT NULL,
			role       TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transcript_session ON transcript_entries(session_key)`,
		`CREATE TABLE IF NOT EXISTS approval_audit (
			id                TEXT PRIMARY KEY,
			request_id        TEXT NOT NULL,
			session_key       TEXT NOT NULL,
			run_id            TEXT NOT NULL,
			action_kind       TEXT NOT NULL,
			decision          TEXT NOT NULL,
			allowlist_pattern TEXT NOT NULL DEFAULT '',
			outcome           TEXT NOT NULL,
			created_at        INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_session ON approval_audit(session_key)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_request ON approval_audit(request_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate %q: %w", stmt[:30], err)
		}
	}
	return nil
}

// Entry is one turn of a session transcript. Content is expected to
// already be a vault-encrypted envelope (or plaintext, if encryption is
// disabled); the store treats it as an opaque string either way.
type Entry struct {
	ID         string
	SessionKey string
	Role       string
	Content    string
	CreatedAt  time.Time
}

// AppendEntry inserts a new transcript entry.
func (s *Store) AppendEntry(ctx context.Context, sessionKey, role, content string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcript_entries(id, session_key, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, sessionKey, role, content, time.Now().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("transcript: append entry: %w", err)
	}
	return id, nil
}

// LoadTranscript returns every entry for sessionKey in insertion order.
// Callers pass content through internal/vault.Decrypt before display.
func (s *Store) LoadTranscript(ctx context.Context, sessionKey string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_key, role, content, created_at FROM transcript_entries
		 WHERE session_key = ? ORDER BY created_at ASC`,
		sessionKey,
	)
	if err != nil {
		return nil, fmt.Errorf("transcript: load: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdMs int64
		if err := rows.Scan(&e.ID, &e.SessionKey, &e.Role, &e.Content, &createdMs); err != nil {
			return nil, fmt.Errorf("transcript: scan: %w", err)
		}
		e.CreatedAt = time.UnixMilli(createdMs)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AuditRecord is one resolved/timed-out/cancelled approval decision.
type AuditRecord struct {
	RequestID        string
	SessionKey       string
	RunID            string
	ActionKind       string
	Decision         string
	AllowlistPattern string
	Outcome          string // "resolved", "timeout", "cancelled"
}

// RecordApprovalOutcome appends an audit-trail row for a settled approval.
func (s *Store) RecordApprovalOutcome(ctx context.Context, rec AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO approval_audit(id, request_id, session_key, run_id, action_kind, decision, allowlist_pattern, outcome, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), rec.RequestID, rec.SessionKey, rec.RunID, rec.ActionKind,
		rec.Decision, rec.AllowlistPattern, rec.Outcome, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("transcript: record approval outcome: %w", err)
	}
	return nil
}

// AuditTrailForSession returns every audit record for sessionKey in
// chronological order, for security review reconstruction.
func (s *Store) AuditTrailForSession(ctx context.Context, sessionKey string) ([]AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, session_key, run_id, action_kind, decision, allowlist_pattern, outcome
		 FROM approval_audit WHERE session_key = ? ORDER BY created_at ASC`,
		sessionKey,
	)
	if err != nil {
		return nil, fmt.Errorf("transcript: audit trail: %w", err)
	}
	defer rows.Close()

	var records []AuditRecord
	for rows.Next() {
		var r AuditRecord
		if err := rows.Scan(&r.RequestID, &r.SessionKey, &r.RunID, &r.ActionKind, &r.Decision, &r.AllowlistPattern, &r.Outcome); err != nil {
			return nil, fmt.Errorf("transcript: scan audit: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
