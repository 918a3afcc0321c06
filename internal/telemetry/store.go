package telemetry

import (
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/google/uuid"
	"github.com/lokutor-ai/voiceassistant/internal/obslog"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL,
	ended_at INTEGER NOT NULL,
	wake_model TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS exchanges (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	sequence INTEGER NOT NULL,
	is_follow_up INTEGER NOT NULL,
	recording_started_at INTEGER,
	recording_ended_at INTEGER,
	stt_started_at INTEGER,
	stt_ended_at INTEGER,
	routing_started_at INTEGER,
	routing_ended_at INTEGER,
	tts_started_at INTEGER,
	tts_ended_at INTEGER,
	playback_started_at INTEGER,
	playback_ended_at INTEGER,
	transcription TEXT,
	routing_path TEXT,
	matched_feature TEXT,
	feature_action TEXT,
	response_text TEXT,
	used_vad INTEGER NOT NULL DEFAULT 0,
	had_bargein INTEGER NOT NULL DEFAULT 0,
	error TEXT
);

CREATE TABLE IF NOT EXISTS llm_calls (
	id TEXT PRIMARY KEY,
	exchange_id TEXT NOT NULL REFERENCES exchanges(id) ON DELETE CASCADE,
	call_type TEXT NOT NULL,
	started_at INTEGER,
	ended_at INTEGER,
	model TEXT,
	system_prompt TEXT,
	user_message TEXT,
	response_text TEXT,
	input_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	stop_reason TEXT,
	error TEXT
);

CREATE INDEX IF NOT EXISTS idx_exchanges_session_id ON exchanges(session_id);
CREATE INDEX IF NOT EXISTS idx_llm_calls_exchange_id ON llm_calls(exchange_id);
CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at);
`

// Store is the append-only, size-capped telemetry backend (C9). A single
// *sql.DB is used for writes, serialized behind mu per spec.md §5's
// shared-resource policy; a second read-only handle is opened separately by
// WebServer.
type Store struct {
	db          *sql.DB
	path        string
	maxSizeBytes int64
	logger      obslog.Logger
	mu          sync.Mutex
}

// Open opens (creating if necessary) a SQLite-backed Store at path, enabling
// foreign_keys pragma enforcement so the cascade deletes in Prune actually
// cascade.
func Open(path string, maxSizeBytes int64, logger obslog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("telemetry: migrate schema: %w", err)
	}

	return &Store{
		db:           db,
		path:         path,
		maxSizeBytes: maxSizeBytes,
		logger:       obslog.Default(logger),
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Stats aggregates counters across every table, reusing the writer handle.
// Callers that need this from another process should go through WebServer's
// read-only handle instead.
func (s *Store) Stats() (Stats, error) {
	return QueryStats(s.db)
}

// Sessions returns a page of session summaries ordered most-recent first.
func (s *Store) Sessions(limit, offset int) ([]SessionSummary, error) {
	return QuerySessions(s.db, limit, offset)
}

// SessionDetail loads one full Session by id, or (nil, nil) if unknown.
func (s *Store) SessionDetail(id string) (*Session, error) {
	return QuerySessionDetail(s.db, id)
}

// SaveSession persists a completed Session and its full exchange/LLM-call
// tree in one transaction, then checks the size-capped pruning policy.
// Telemetry failures are the orchestrator's business to swallow; SaveSession
// itself still returns the error so callers can log it.
func (s *Store) SaveSession(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("telemetry: begin: %w", err)
	}
	defer tx.Rollback()

	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}

	if _, err := tx.Exec(
		`INSERT INTO sessions (id, started_at, ended_at, wake_model, created_at) VALUES (?, ?, ?, ?, ?)`,
		sess.ID, unixMilli(sess.StartedAt), unixMilli(sess.EndedAt), sess.WakeModel, unixMilli(sess.StartedAt),
	); err != nil {
		return fmt.Errorf("telemetry: insert session: %w", err)
	}

	for _, ex := range sess.Exchanges {
		if ex.ID == "" {
			ex.ID = uuid.NewString()
		}
		if _, err := tx.Exec(
			`INSERT INTO exchanges (
				id, session_id, sequence, is_follow_up,
				recording_started_at, recording_ended_at,
				stt_started_at, stt_ended_at,
				routing_started_at, routing_ended_at,
				tts_started_at, tts_ended_at,
				playback_started_at, playback_ended_at,
				transcription, routing_path, matched_feature, feature_action, response_text,
				used_vad, had_bargein, error
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ex.ID, sess.ID, ex.Sequence, boolInt(ex.IsFollowUp),
			nullableMilli(ex.Recording.StartedAt), nullableMilli(ex.Recording.EndedAt),
			nullableMilli(ex.STT.StartedAt), nullableMilli(ex.STT.EndedAt),
			nullableMilli(ex.Routing.StartedAt), nullableMilli(ex.Routing.EndedAt),
			nullableMilli(ex.TTS.StartedAt), nullableMilli(ex.TTS.EndedAt),
			nullableMilli(ex.Playback.StartedAt), nullableMilli(ex.Playback.EndedAt),
			ex.Transcription, string(ex.RoutingPath), ex.MatchedFeature, ex.FeatureAction, ex.ResponseText,
			boolInt(ex.UsedVAD), boolInt(ex.HadBargein), ex.Error,
		); err != nil {
			return fmt.Errorf("telemetry: insert exchange: %w", err)
		}

		for _, call := range ex.LLMCalls {
			if call.ID == "" {
				call.ID = uuid.NewString()
			}
			if _, err := tx.Exec(
				`INSERT INTO llm_calls (
					id, exchange_id, call_type, started_at, ended_at, model,
					system_prompt, user_message, response_text, input_tokens, output_tokens, stop_reason, error
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				call.ID, ex.ID, string(call.CallType), nullableMilli(call.StartedAt), nullableMilli(call.EndedAt),
				call.Model, call.SystemPrompt, call.UserMessage, call.ResponseText,
				call.InputTokens, call.OutputTokens, call.StopReason, call.Error,
			); err != nil {
				return fmt.Errorf("telemetry: insert llm_call: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("telemetry: commit: %w", err)
	}

	s.pruneIfOversizeLocked()
	return nil
}

// pruneIfOversizeLocked checks the on-disk file size against maxSizeBytes
// and, if exceeded, deletes the oldest 10% of sessions (cascading to their
// exchanges and llm_calls) in one transaction, then runs VACUUM. Must be
// called with mu held. Failures are logged and swallowed per spec.md §4.9.
func (s *Store) pruneIfOversizeLocked() {
	if s.maxSizeBytes <= 0 {
		return
	}
	info, err := os.Stat(s.path)
	if err != nil {
		s.logger.Warn("telemetry: stat failed during prune check", "error", err)
		return
	}
	if info.Size() <= s.maxSizeBytes {
		return
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&total); err != nil {
		s.logger.Warn("telemetry: prune count failed", "error", err)
		return
	}
	dropCount := total / 10
	if dropCount == 0 {
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		s.logger.Warn("telemetry: prune begin failed", "error", err)
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM sessions WHERE id IN (SELECT id FROM sessions ORDER BY created_at ASC LIMIT ?)`,
		dropCount,
	); err != nil {
		s.logger.Warn("telemetry: prune delete failed", "error", err)
		return
	}
	if err := tx.Commit(); err != nil {
		s.logger.Warn("telemetry: prune commit failed", "error", err)
		return
	}

	if _, err := s.db.Exec(`VACUUM`); err != nil {
		s.logger.Warn("telemetry: vacuum failed", "error", err)
	}
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func nullableMilli(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
