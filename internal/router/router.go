// Package router implements the Intent Router (C7): the four-stage
// precedence that turns one transcribed utterance into a spoken response —
// structured parse, regex match, recovery, conversational fallback — plus
// follow-up state tracking.
package router

import (
	"context"
	"io"
	"strings"

	"github.com/lokutor-ai/voiceassistant/internal/feature"
	"github.com/lokutor-ai/voiceassistant/internal/llmport"
	"github.com/lokutor-ai/voiceassistant/internal/obslog"
)

// Path identifies which of the four stages produced the final response.
type Path string

const (
	PathLLMParse  Path = "llm_parse"
	PathRegex     Path = "regex"
	PathRecovery  Path = "recovery"
	PathLLMFallback Path = "llm_fallback"
)

// RouteInfo is the per-route metadata the router publishes for telemetry.
type RouteInfo struct {
	Path            Path
	MatchedFeature  string
	FeatureAction   string
	ExpectsFollowUp bool
}

// Result is the outcome of routing one utterance.
type Result struct {
	Response  string
	Route     RouteInfo
	LLMCalls  []llmport.CallInfo
}

// Router routes one transcribed utterance at a time through the four-stage
// precedence from spec.md §4.7. It is not safe for concurrent Route calls
// (the pipeline orchestrator serializes them by construction).
type Router struct {
	registry       *feature.Registry
	llm            llmport.Provider
	logger         obslog.Logger
	enableRecovery bool

	lastFeature string
	lastInfo    RouteInfo
}

// New builds a Router. enableRecovery toggles stage 3 (the misheard-command
// classifier); it is skipped automatically anyway when no feature has a
// description.
func New(registry *feature.Registry, llm llmport.Provider, enableRecovery bool, logger obslog.Logger) *Router {
	return &Router{
		registry:       registry,
		llm:            llm,
		enableRecovery: enableRecovery,
		logger:         obslog.Default(logger),
	}
}

// Route runs the four-stage precedence over text and returns the spoken
// response plus route metadata.
func (r *Router) Route(ctx context.Context, text string) Result {
	var calls []llmport.CallInfo

	if result, ok := r.tryStructuredParse(ctx, text, &calls); ok {
		return result
	}

	if result, ok := r.tryRegexMatch(text, PathRegex, text); ok {
		result.LLMCalls = calls
		return result
	}

	if r.recoveryEnabled() {
		if result, ok := r.tryRecovery(ctx, text, &calls); ok {
			return result
		}
	}

	return r.fallback(ctx, text, calls)
}

// tryStructuredParse is stage 1.
func (r *Router) tryStructuredParse(ctx context.Context, text string, calls *[]llmport.CallInfo) (Result, bool) {
	schemas := r.buildFeatureSchemas()
	routerContext := r.buildActiveFlowContext()

	parsed := r.llm.ParseIntent(ctx, text, schemas, routerContext)
	*calls = append(*calls, r.llm.LastCallInfo())
	if parsed == nil {
		return Result{}, false
	}

	switch parsed.Type {
	case llmport.IntentAction:
		f, ok := r.registry.Lookup(parsed.Feature)
		if !ok {
			r.logger.Warn("parsed action references unknown feature", "feature", parsed.Feature)
			return Result{}, false
		}

		response, err := f.Execute(parsed.Action, parsed.Parameters)
		if err != nil {
			r.llm.RecordExchange(text, parsed.Speech)
			r.recordRoute(RouteInfo{Path: PathLLMParse, MatchedFeature: parsed.Feature, FeatureAction: parsed.Action, ExpectsFollowUp: parsed.ExpectsFollowUp}, f)
			return Result{Response: parsed.Speech, Route: r.lastInfo, LLMCalls: *calls}, true
		}

		r.llm.RecordExchange(text, response)
		r.recordRoute(RouteInfo{Path: PathLLMParse, MatchedFeature: parsed.Feature, FeatureAction: parsed.Action, ExpectsFollowUp: parsed.ExpectsFollowUp}, f)
		return Result{Response: response, Route: r.lastInfo, LLMCalls: *calls}, true

	case llmport.IntentConversation:
		r.llm.RecordExchange(text, parsed.Speech)
		r.recordRoute(RouteInfo{Path: PathLLMParse, ExpectsFollowUp: parsed.ExpectsFollowUp}, nil)
		return Result{Response: parsed.Speech, Route: r.lastInfo, LLMCalls: *calls}, true

	case llmport.IntentClarification:
		r.llm.RecordExchange(text, parsed.Speech)
		r.recordRoute(RouteInfo{Path: PathLLMParse, ExpectsFollowUp: true}, nil)
		return Result{Response: parsed.Speech, Route: r.lastInfo, LLMCalls: *calls}, true
	}

	return Result{}, false
}

// tryRegexMatch is stage 2 (and stage 3's re-run). recordedUser is the text
// committed to history, which for the recovery re-run is the ORIGINAL user
// text rather than the classifier-corrected one.
func (r *Router) tryRegexMatch(matchText string, path Path, recordedUser string) (Result, bool) {
	for _, f := range r.registry.Features() {
		if !f.Matches(matchText) {
			continue
		}

		response := f.Handle(matchText)
		r.llm.RecordExchange(recordedUser, response)
		r.recordRoute(RouteInfo{Path: path, MatchedFeature: f.Name(), ExpectsFollowUp: f.ExpectsFollowUp()}, f)
		return Result{Response: response, Route: r.lastInfo}, true
	}
	return Result{}, false
}

// tryRecovery is stage 3.
func (r *Router) tryRecovery(ctx context.Context, text string, calls *[]llmport.CallInfo) (Result, bool) {
	descriptions := r.buildFeatureDescriptions()
	if len(descriptions) == 0 {
		return Result{}, false
	}

	corrected := r.llm.ClassifyIntent(ctx, text, descriptions)
	*calls = append(*calls, r.llm.LastCallInfo())
	if corrected == "" || corrected == llmport.ClassifyIntentNoneMarker {
		return Result{}, false
	}

	result, ok := r.tryRegexMatch(corrected, PathRecovery, text)
	if !ok {
		return Result{}, false
	}
	result.LLMCalls = *calls
	return result, true
}

// fallback is stage 4.
func (r *Router) fallback(ctx context.Context, text string, calls []llmport.CallInfo) Result {
	response := r.llm.Respond(ctx, text)
	calls = append(calls, r.llm.LastCallInfo())
	r.recordRoute(RouteInfo{Path: PathLLMFallback, ExpectsFollowUp: false}, nil)
	return Result{Response: response, Route: r.lastInfo, LLMCalls: calls}
}

// recoveryEnabled mirrors "if enabled and at least one feature has a
// non-empty description".
func (r *Router) recoveryEnabled() bool {
	return r.enableRecovery && len(r.buildFeatureDescriptions()) > 0
}

func (r *Router) buildFeatureSchemas() []llmport.FeatureSchema {
	var schemas []llmport.FeatureSchema
	for _, f := range r.registry.Features() {
		schema := f.ActionSchema()
		if len(schema) == 0 {
			continue
		}
		actions := make(map[string]map[string]string, len(schema))
		for action, params := range schema {
			actions[action] = params
		}
		schemas = append(schemas, llmport.FeatureSchema{
			Feature:     f.Name(),
			Description: f.Description(),
			Actions:     actions,
		})
	}
	return schemas
}

func (r *Router) buildFeatureDescriptions() []llmport.FeatureDescription {
	var descs []llmport.FeatureDescription
	for _, f := range r.registry.Features() {
		if f.Description() == "" {
			continue
		}
		descs = append(descs, llmport.FeatureDescription{Feature: f.Name(), Description: f.Description()})
	}
	return descs
}

// buildActiveFlowContext concatenates GetLLMContext() of every feature
// with currently active multi-turn state.
func (r *Router) buildActiveFlowContext() string {
	var parts []string
	for _, f := range r.registry.Features() {
		if ctx := f.GetLLMContext(); ctx != "" {
			parts = append(parts, ctx)
		}
	}
	return strings.Join(parts, "\n")
}

// recordRoute applies the follow-up resolution rule: info.ExpectsFollowUp
// carries the stage's own LLM-signalled (or hardcoded, for clarification and
// fallback) value. If a feature was matched and, having already run its
// Execute/Handle for this call, now reports ExpectsFollowUp() true, that
// wins — only the feature knows whether its internal flow is genuinely
// active. A matched feature reporting false does NOT force the route to
// false; the stage's own signalled value stands.
func (r *Router) recordRoute(info RouteInfo, matched feature.Feature) {
	if matched != nil && matched.ExpectsFollowUp() {
		info.ExpectsFollowUp = true
	}
	r.lastFeature = info.MatchedFeature
	r.lastInfo = info
}

// LastRouteInfo returns the most recently published route metadata.
func (r *Router) LastRouteInfo() RouteInfo { return r.lastInfo }

// Close closes every feature and the LLM, swallowing per-component
// failures. Most llmport.Provider backends hold no closable resources
// (plain HTTP/SDK clients); those that do can opt in by implementing
// io.Closer.
func (r *Router) Close() {
	r.registry.Close()
	if closer, ok := r.llm.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			r.logger.Warn("router: llm close failed", "error", err)
		}
	}
}
