// Package llmport defines the LLM Port (C5): the three-operation contract
// (conversational reply, structured intent parse, misheard-command
// classification) plus the exchange-recording API and history ownership.
// This is a full redesign of the teacher's LLMProvider, which exposed only
// a single Complete(ctx, messages) method — insufficient for the router's
// three distinct call shapes.
package llmport

import (
	"context"
	"sync"
	"time"
)

// IntentType is the discriminant of a parsed intent.
type IntentType string

const (
	IntentAction        IntentType = "action"
	IntentConversation   IntentType = "conversation"
	IntentClarification  IntentType = "clarification"
)

// FeatureSchema describes one feature's structured action surface, used to
// build the single forced tool for ParseIntent.
type FeatureSchema struct {
	Feature     string
	Description string
	// Actions maps action name to its parameter schema (param name → type
	// tag, e.g. "string", "int", "bool").
	Actions map[string]map[string]string
}

// FeatureDescription is the narrower shape ClassifyIntent needs: just
// enough prose to let the model judge whether misheard text is actually
// meant for a known feature.
type FeatureDescription struct {
	Feature     string
	Description string
}

// ParsedIntent is the structured result of a forced single-tool call.
type ParsedIntent struct {
	Type            IntentType
	Feature         string
	Action          string
	Parameters      map[string]any
	Speech          string
	ExpectsFollowUp bool
}

// CallInfo is the ephemeral per-call record the router harvests after each
// LLM call and attaches to the current Exchange for telemetry.
type CallInfo struct {
	CallType     string
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

// ClassifyIntentNoneMarker is the sentinel ClassifyIntent returns to mean
// "this is a genuine non-feature query" rather than a corrected command.
const ClassifyIntentNoneMarker = "none"

// Provider is the LLM Port.
type Provider interface {
	// Respond is the conversational fallback. It takes history into
	// account, records (text, result) into history on success, and
	// returns a safe apology string on failure rather than an error.
	Respond(ctx context.Context, text string) string

	// ParseIntent is the primary intent path: a single-tool constrained
	// call. Returns nil on API error or an absent tool block (in which
	// case LastCallInfo.Error is set). Must never mutate history. When
	// routerContext is non-empty, it is prepended to the user message
	// behind a recognizable sentinel so the model prioritizes continuing
	// the active multi-turn flow.
	ParseIntent(ctx context.Context, text string, schemas []FeatureSchema, routerContext string) *ParsedIntent

	// ClassifyIntent is a stateless misheard-command corrector. Returns
	// ClassifyIntentNoneMarker for a genuine non-feature query, the empty
	// string on API failure, or the corrected text. Must not touch
	// history.
	ClassifyIntent(ctx context.Context, text string, descriptions []FeatureDescription) string

	// RecordExchange is the router's public API to commit a user/
	// assistant pair to history after a successful route that the
	// provider did not record itself: the structured-parse, regex and
	// recovery paths (Respond records the fallback path on its own).
	RecordExchange(user, assistant string)

	// LastCallInfo returns the most recently harvested call record.
	LastCallInfo() CallInfo

	Name() string
}

// routerContextSentinel marks router-supplied multi-turn context prepended
// to a ParseIntent user message, so the model can distinguish it from the
// user's own words.
const routerContextSentinel = "[ACTIVE_FLOW_CONTEXT]"

func withRouterContext(text, routerContext string) string {
	if routerContext == "" {
		return text
	}
	return routerContextSentinel + " " + routerContext + "\n" + text
}

// callInfoBox is embedded by backends to provide thread-safe LastCallInfo
// storage without repeating the mutex dance in every implementation.
type callInfoBox struct {
	mu   sync.Mutex
	info CallInfo
}

func (b *callInfoBox) set(info CallInfo) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.info = info
}

func (b *callInfoBox) get() CallInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.info
}
