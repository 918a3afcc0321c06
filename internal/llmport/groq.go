package llmport

import (
	"github.com/lokutor-ai/voiceassistant/internal/obslog"
)

// groqBaseURL is Groq's OpenAI-compatible chat completions endpoint.
const groqBaseURL = "https://api.groq.com/openai/v1"

// NewGroqProvider builds a Provider backed by Groq's OpenAI-compatible chat
// API, reusing OpenAIProvider with option.WithBaseURL pointed at Groq —
// the same pattern MrWong99-glyphoxa's OpenAI provider exposes via
// WithBaseURL, and the gap the teacher repo left open (cmd/agent/main.go
// and groq_test.go both reference a pkg/providers/llm/groq.go that was
// never actually committed).
func NewGroqProvider(apiKey, model, system string, history *History, logger obslog.Logger) *OpenAIProvider {
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	return NewOpenAIProvider(apiKey, model, system, groqBaseURL, history, obslog.Default(logger))
}
