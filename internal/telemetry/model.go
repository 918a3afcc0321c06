// Package telemetry implements the Session/Exchange/LLMCall model (C9), its
// SQLite-backed store, and the read-only dashboard web service (C10).
package telemetry

import "time"

// CallType discriminates the three LLM Port operations an LLMCall records.
type CallType string

const (
	CallTypeParseIntent    CallType = "parse_intent"
	CallTypeClassifyIntent CallType = "classify_intent"
	CallTypeRespond        CallType = "respond"
)

// RoutingPath mirrors router.Path, duplicated here so telemetry has no
// import-cycle dependency on the router package.
type RoutingPath string

const (
	RoutingPathLLMParse  RoutingPath = "llm_parse"
	RoutingPathRegex     RoutingPath = "regex"
	RoutingPathRecovery  RoutingPath = "recovery"
	RoutingPathFallback  RoutingPath = "llm_fallback"
	RoutingPathNone      RoutingPath = "none"
)

// LLMCall is one harvested LLM Port call, owned by exactly one Exchange.
type LLMCall struct {
	ID           string
	ExchangeID   string
	CallType     CallType
	StartedAt    time.Time
	EndedAt      time.Time
	Model        string
	SystemPrompt string
	UserMessage  string
	ResponseText string
	InputTokens  int
	OutputTokens int
	StopReason   string
	Error        string
}

// DurationMS is EndedAt - StartedAt in milliseconds, clamped to 0 if either
// timestamp is zero or EndedAt precedes StartedAt.
func (c LLMCall) DurationMS() int64 {
	return durationMS(c.StartedAt, c.EndedAt)
}

func durationMS(start, end time.Time) int64 {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return 0
	}
	return end.Sub(start).Milliseconds()
}

// PhaseTiming holds the start/end timestamps for one orchestrator phase.
type PhaseTiming struct {
	StartedAt time.Time
	EndedAt   time.Time
}

// DurationMS is EndedAt - StartedAt in milliseconds (0 if not recorded).
func (p PhaseTiming) DurationMS() int64 {
	return durationMS(p.StartedAt, p.EndedAt)
}

// Exchange is one command/response cycle inside a Session.
type Exchange struct {
	ID         string
	SessionID  string
	Sequence   int
	IsFollowUp bool

	Recording PhaseTiming
	STT       PhaseTiming
	Routing   PhaseTiming
	TTS       PhaseTiming
	Playback  PhaseTiming

	Transcription  string
	RoutingPath    RoutingPath
	MatchedFeature string
	FeatureAction  string
	ResponseText   string

	UsedVAD    bool
	HadBargein bool

	Error string

	LLMCalls []LLMCall
}

// Session is the top-level telemetry record: one wake-to-listening cycle.
type Session struct {
	ID        string
	StartedAt time.Time
	EndedAt   time.Time
	WakeModel string
	Exchanges []Exchange
}

// ExchangeCount returns len(Exchanges), named per spec.md §8's invariant
// wording ("exchange_count == len(exchanges)").
func (s Session) ExchangeCount() int { return len(s.Exchanges) }
