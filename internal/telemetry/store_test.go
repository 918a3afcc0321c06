package telemetry

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "telemetry.db")
	store, err := Open(path, 0, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, path
}

func sampleSession() Session {
	start := time.Now().Add(-time.Minute)
	return Session{
		StartedAt: start,
		EndedAt:   start.Add(30 * time.Second),
		WakeModel: "energy-gated-v1",
		Exchanges: []Exchange{
			{
				Sequence:       0,
				IsFollowUp:     false,
				Transcription:  "what time is it",
				RoutingPath:    RoutingPathRegex,
				MatchedFeature: "time",
				ResponseText:   "It's noon.",
				Recording:      PhaseTiming{StartedAt: start, EndedAt: start.Add(time.Second)},
				STT:            PhaseTiming{StartedAt: start.Add(time.Second), EndedAt: start.Add(2 * time.Second)},
			},
			{
				Sequence:       1,
				IsFollowUp:     true,
				Transcription:  "add milk",
				RoutingPath:    RoutingPathLLMParse,
				MatchedFeature: "grocery_list",
				ResponseText:   "Added milk.",
				LLMCalls: []LLMCall{
					{
						CallType:     CallTypeParseIntent,
						StartedAt:    start.Add(3 * time.Second),
						EndedAt:      start.Add(4 * time.Second),
						Model:        "claude-3-5-sonnet",
						InputTokens:  42,
						OutputTokens: 8,
					},
				},
			},
		},
	}
}

func TestSaveAndQuerySessionRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	sess := sampleSession()

	if err := store.SaveSession(sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	rows, err := store.db.Query(`SELECT id FROM sessions`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	var id string
	if !rows.Next() {
		t.Fatal("expected one session row")
	}
	if err := rows.Scan(&id); err != nil {
		t.Fatal(err)
	}
	rows.Close()

	detail, err := QuerySessionDetail(store.db, id)
	if err != nil {
		t.Fatalf("QuerySessionDetail: %v", err)
	}
	if detail == nil {
		t.Fatal("expected session detail, got nil")
	}
	if len(detail.Exchanges) != 2 {
		t.Fatalf("expected 2 exchanges, got %d", len(detail.Exchanges))
	}
	if detail.Exchanges[0].Sequence != 0 || detail.Exchanges[1].Sequence != 1 {
		t.Fatal("expected exchanges in sequence order")
	}
	if !detail.Exchanges[1].IsFollowUp {
		t.Fatal("expected second exchange to be marked as a follow-up")
	}
	if len(detail.Exchanges[1].LLMCalls) != 1 {
		t.Fatalf("expected 1 llm call on second exchange, got %d", len(detail.Exchanges[1].LLMCalls))
	}
	if detail.Exchanges[1].LLMCalls[0].InputTokens != 42 {
		t.Fatalf("expected input tokens preserved, got %d", detail.Exchanges[1].LLMCalls[0].InputTokens)
	}
}

func TestQuerySessionDetailUnknownIDReturnsNil(t *testing.T) {
	store, _ := newTestStore(t)
	detail, err := QuerySessionDetail(store.db, "nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail != nil {
		t.Fatal("expected nil detail for unknown session id")
	}
}

func TestQueryStatsAggregates(t *testing.T) {
	store, _ := newTestStore(t)
	if err := store.SaveSession(sampleSession()); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	stats, err := QueryStats(store.db)
	if err != nil {
		t.Fatalf("QueryStats: %v", err)
	}
	if stats.SessionCount != 1 {
		t.Fatalf("expected 1 session, got %d", stats.SessionCount)
	}
	if stats.ExchangeCount != 2 {
		t.Fatalf("expected 2 exchanges, got %d", stats.ExchangeCount)
	}
	if stats.TokensIn != 42 || stats.TokensOut != 8 {
		t.Fatalf("unexpected token sums: in=%d out=%d", stats.TokensIn, stats.TokensOut)
	}
	if stats.FeatureCounts["time"] != 1 || stats.FeatureCounts["grocery_list"] != 1 {
		t.Fatalf("unexpected feature counts: %+v", stats.FeatureCounts)
	}
	if stats.RoutingPathCounts["regex"] != 1 || stats.RoutingPathCounts["llm_parse"] != 1 {
		t.Fatalf("unexpected routing path counts: %+v", stats.RoutingPathCounts)
	}
}

func TestQuerySessionsPagination(t *testing.T) {
	store, _ := newTestStore(t)
	for i := 0; i < 3; i++ {
		sess := sampleSession()
		if err := store.SaveSession(sess); err != nil {
			t.Fatalf("SaveSession: %v", err)
		}
	}

	page, err := QuerySessions(store.db, 2, 0)
	if err != nil {
		t.Fatalf("QuerySessions: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected page of 2, got %d", len(page))
	}
	for _, s := range page {
		if s.ExchangeCount != 2 {
			t.Fatalf("expected exchange count 2, got %d", s.ExchangeCount)
		}
		if s.FirstTranscription != "what time is it" {
			t.Fatalf("unexpected first transcription: %q", s.FirstTranscription)
		}
	}
}

func TestPruneDeletesOldestSessionsWhenOversized(t *testing.T) {
	store, path := newTestStore(t)
	_ = path

	for i := 0; i < 20; i++ {
		if err := store.SaveSession(sampleSession()); err != nil {
			t.Fatalf("SaveSession: %v", err)
		}
	}

	store.mu.Lock()
	store.maxSizeBytes = 1 // force prune on next save
	store.mu.Unlock()

	if err := store.SaveSession(sampleSession()); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	var sessionCount, orphanExchanges, orphanCalls int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&sessionCount); err != nil {
		t.Fatal(err)
	}
	if sessionCount >= 21 {
		t.Fatalf("expected pruning to have deleted some sessions, still have %d", sessionCount)
	}

	if err := store.db.QueryRow(
		`SELECT COUNT(*) FROM exchanges WHERE session_id NOT IN (SELECT id FROM sessions)`,
	).Scan(&orphanExchanges); err != nil {
		t.Fatal(err)
	}
	if orphanExchanges != 0 {
		t.Fatalf("expected no orphaned exchanges after prune, found %d", orphanExchanges)
	}

	if err := store.db.QueryRow(
		`SELECT COUNT(*) FROM llm_calls WHERE exchange_id NOT IN (SELECT id FROM exchanges)`,
	).Scan(&orphanCalls); err != nil {
		t.Fatal(err)
	}
	if orphanCalls != 0 {
		t.Fatalf("expected no orphaned llm_calls after prune, found %d", orphanCalls)
	}
}
