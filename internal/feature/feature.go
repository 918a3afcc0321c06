// Package feature defines the Feature Capability Contract (C12) and the
// Feature Registry (C6): an ordered list of features plus a
// case-insensitive name index.
package feature

// ActionSchema declares the structured actions a feature can execute via
// tool-dispatch: action name → { param name → type tag }.
type ActionSchema map[string]map[string]string

// Feature is the polymorphic handler contract every feature implements.
// Implementations are out of scope for this repo (spec §1); only the
// interface and registry live here, plus reference implementations under
// feature/builtin to exercise the router end-to-end.
type Feature interface {
	Name() string
	ShortDescription() string
	Description() string

	// Matches is a fast, side-effect-free predicate over the transcribed
	// string, used by the router's regex-era fallback.
	Matches(text string) bool
	// Handle is the regex-era execution path; may mutate feature state.
	Handle(text string) string

	// ActionSchema declares this feature's structured actions. An empty
	// schema means the feature has no tool-dispatch surface.
	ActionSchema() ActionSchema
	// Execute is the structured dispatch path; may mutate feature state.
	Execute(action string, parameters map[string]any) (string, error)

	// GetLLMContext returns current multi-turn state to inject into the
	// next intent parse, or "" if there is none active.
	GetLLMContext() string
	// ExpectsFollowUp reports whether the feature is mid-flow and the
	// next utterance should be processed without requiring the wake word.
	ExpectsFollowUp() bool

	Close() error
}
