package builtin

import (
	"fmt"
	"strings"
	"sync"

	"github.com/lokutor-ai/voiceassistant/internal/feature"
)

// RepeatFeature repeats the most recent spoken response, exercising
// GetLLMContext/ExpectsFollowUp: once it repeats, it offers a brief
// follow-up window ("again?") before falling silent.
type RepeatFeature struct {
	mu         sync.Mutex
	last       string
	awaitMore  bool
}

// NewRepeatFeature builds a RepeatFeature.
func NewRepeatFeature() *RepeatFeature {
	return &RepeatFeature{}
}

// Observe records the most recently spoken response, called by the
// orchestrator after every successful exchange so "repeat that" has
// something to repeat.
func (f *RepeatFeature) Observe(spoken string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = spoken
}

func (f *RepeatFeature) Name() string            { return "repeat" }
func (f *RepeatFeature) ShortDescription() string { return "repeats the last response" }
func (f *RepeatFeature) Description() string {
	return "repeats the assistant's most recent spoken response when asked to repeat or say it again"
}

func (f *RepeatFeature) Matches(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range []string{"repeat that", "say that again", "what did you say", "again"} {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func (f *RepeatFeature) Handle(text string) string {
	return f.speakLast()
}

func (f *RepeatFeature) ActionSchema() feature.ActionSchema {
	return feature.ActionSchema{
		"repeat": {},
	}
}

func (f *RepeatFeature) Execute(action string, parameters map[string]any) (string, error) {
	switch action {
	case "repeat":
		return f.speakLast(), nil
	default:
		return "", fmt.Errorf("repeat: unknown action %q", action)
	}
}

func (f *RepeatFeature) speakLast() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.last == "" {
		f.awaitMore = false
		return "I don't have anything to repeat yet."
	}
	f.awaitMore = true
	return f.last
}

func (f *RepeatFeature) GetLLMContext() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.awaitMore {
		return ""
	}
	return "repeat feature just repeated its last response and is awaiting a follow-up (e.g. 'again')"
}

func (f *RepeatFeature) ExpectsFollowUp() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.awaitMore
}

func (f *RepeatFeature) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.awaitMore = false
	return nil
}
