// Package builtin ships small reference Feature implementations so the
// router (C7) has something real to dispatch through end-to-end. Real
// feature business logic (grocery list, reminders, media library, etc.) is
// explicitly out of scope (spec §1); these exist only to exercise the
// contract.
package builtin

import (
	"fmt"
	"strings"
	"time"

	"github.com/lokutor-ai/voiceassistant/internal/feature"
)

// TimeFeature answers "what time is it" style queries, both via the
// regex-era Matches/Handle path and the structured tool-dispatch path.
type TimeFeature struct {
	now func() time.Time
}

// NewTimeFeature builds a TimeFeature. now defaults to time.Now.
func NewTimeFeature() *TimeFeature {
	return &TimeFeature{now: time.Now}
}

func (f *TimeFeature) Name() string             { return "time" }
func (f *TimeFeature) ShortDescription() string  { return "tells the current time" }
func (f *TimeFeature) Description() string {
	return "answers questions about the current time"
}

func (f *TimeFeature) Matches(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range []string{"what time", "current time", "what's the time"} {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func (f *TimeFeature) Handle(text string) string {
	return f.speakTime()
}

func (f *TimeFeature) ActionSchema() feature.ActionSchema {
	return feature.ActionSchema{
		"get_time": {},
	}
}

func (f *TimeFeature) Execute(action string, parameters map[string]any) (string, error) {
	switch action {
	case "get_time":
		return f.speakTime(), nil
	default:
		return "", fmt.Errorf("time: unknown action %q", action)
	}
}

func (f *TimeFeature) speakTime() string {
	return "It's " + f.now().Format("3:04 PM") + "."
}

func (f *TimeFeature) GetLLMContext() string { return "" }
func (f *TimeFeature) ExpectsFollowUp() bool  { return false }
func (f *TimeFeature) Close() error           { return nil }
