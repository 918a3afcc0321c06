package llmport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/lokutor-ai/voiceassistant/internal/obslog"
)

// OpenAIProvider implements Provider against the OpenAI chat completions
// API, pinning tool_choice to the single intent function for ParseIntent.
// Generalized from the teacher's pkg/providers/llm/openai.go (a raw
// net/http client) to the official SDK, matching the pattern
// MrWong99-glyphoxa's LLM provider uses for client construction and
// tool-call assembly.
type OpenAIProvider struct {
	callInfoBox

	client oai.Client
	model  string
	system string
	logger obslog.Logger

	history *History
}

// NewOpenAIProvider builds an OpenAI-backed Provider. baseURL, when
// non-empty, redirects the SDK at a compatible endpoint.
func NewOpenAIProvider(apiKey, model, system, baseURL string, history *History, logger obslog.Logger) *OpenAIProvider {
	if model == "" {
		model = "gpt-4o-mini"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{
		client:  oai.NewClient(opts...),
		model:   model,
		system:  system,
		logger:  obslog.Default(logger),
		history: history,
	}
}

func (p *OpenAIProvider) Name() string { return "openai-llm" }

func (p *OpenAIProvider) Respond(ctx context.Context, text string) string {
	started := time.Now()
	info := CallInfo{CallType: "respond", StartedAt: started, Model: p.model, SystemPrompt: p.system, UserMessage: text}

	var messages []oai.ChatCompletionMessageParamUnion
	if p.system != "" {
		messages = append(messages, oai.SystemMessage(p.system))
	}
	if p.history != nil {
		for _, turn := range p.history.Snapshot(started) {
			messages = append(messages, oai.UserMessage(turn.User))
			messages = append(messages, oai.AssistantMessage(turn.Assistant))
		}
	}
	messages = append(messages, oai.UserMessage(text))

	resp, err := p.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
	})
	info.EndedAt = time.Now()
	if err != nil || len(resp.Choices) == 0 {
		if err == nil {
			err = fmt.Errorf("empty choices in response")
		}
		info.Error = err.Error()
		p.set(info)
		p.logger.Error("openai respond failed", "error", err)
		return "Sorry, I couldn't come up with a response just now."
	}

	reply := resp.Choices[0].Message.Content
	info.ResponseText = reply
	info.StopReason = string(resp.Choices[0].FinishReason)
	info.InputTokens = int(resp.Usage.PromptTokens)
	info.OutputTokens = int(resp.Usage.CompletionTokens)
	p.set(info)

	if p.history != nil {
		p.history.Record(text, reply, info.EndedAt)
	}

	return reply
}

func (p *OpenAIProvider) ParseIntent(ctx context.Context, text string, schemas []FeatureSchema, routerContext string) *ParsedIntent {
	started := time.Now()
	userMessage := withRouterContext(text, routerContext)
	systemPrompt := "You are an intent router. Call the " + intentToolName + " function exactly once with the best interpretation of the user's request."
	info := CallInfo{CallType: "parse_intent", StartedAt: started, Model: p.model, SystemPrompt: systemPrompt, UserMessage: userMessage}

	tool := oai.ChatCompletionToolParam{
		Function: shared.FunctionDefinitionParam{
			Name:        intentToolName,
			Description: param.NewOpt(intentToolDescription(schemas)),
			Parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"type":              map[string]any{"type": "string", "enum": []string{"action", "conversation", "clarification"}},
					"feature":           map[string]any{"type": "string"},
					"action":            map[string]any{"type": "string"},
					"parameters":        map[string]any{"type": "object"},
					"speech":            map[string]any{"type": "string"},
					"expects_follow_up": map[string]any{"type": "boolean"},
				},
				// spec.md §6: type, speech, and expects_follow_up are
				// required; feature/action/parameters only apply when
				// type=="action".
				"required": []string{"type", "speech", "expects_follow_up"},
			},
		},
	}

	resp, err := p.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemPrompt),
			oai.UserMessage(userMessage),
		},
		Tools: []oai.ChatCompletionToolParam{tool},
		ToolChoice: oai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &oai.ChatCompletionNamedToolChoiceParam{
				Function: oai.ChatCompletionNamedToolChoiceFunctionParam{Name: intentToolName},
			},
		},
	})
	info.EndedAt = time.Now()
	if err != nil || len(resp.Choices) == 0 {
		if err == nil {
			err = fmt.Errorf("empty choices in response")
		}
		info.Error = err.Error()
		p.set(info)
		p.logger.Error("openai parse_intent failed", "error", err)
		return nil
	}

	info.StopReason = string(resp.Choices[0].FinishReason)
	info.InputTokens = int(resp.Usage.PromptTokens)
	info.OutputTokens = int(resp.Usage.CompletionTokens)

	toolCalls := resp.Choices[0].Message.ToolCalls
	if len(toolCalls) == 0 {
		info.Error = "no tool call in response"
		p.set(info)
		return nil
	}

	var decoded struct {
		Type            string         `json:"type"`
		Feature         string         `json:"feature"`
		Action          string         `json:"action"`
		Parameters      map[string]any `json:"parameters"`
		Speech          string         `json:"speech"`
		ExpectsFollowUp bool           `json:"expects_follow_up"`
	}
	if err := json.Unmarshal([]byte(toolCalls[0].Function.Arguments), &decoded); err != nil {
		info.Error = fmt.Sprintf("decode tool arguments: %v", err)
		p.set(info)
		return nil
	}

	info.ResponseText = decoded.Speech
	p.set(info)

	return &ParsedIntent{
		Type:            IntentType(decoded.Type),
		Feature:         decoded.Feature,
		Action:          decoded.Action,
		Parameters:      decoded.Parameters,
		Speech:          decoded.Speech,
		ExpectsFollowUp: decoded.ExpectsFollowUp,
	}
}

func (p *OpenAIProvider) ClassifyIntent(ctx context.Context, text string, descriptions []FeatureDescription) string {
	started := time.Now()
	systemPrompt := classifyIntentSystemPrompt(descriptions)
	info := CallInfo{CallType: "classify_intent", StartedAt: started, Model: p.model, SystemPrompt: systemPrompt, UserMessage: text}

	resp, err := p.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemPrompt),
			oai.UserMessage(text),
		},
	})
	info.EndedAt = time.Now()
	if err != nil || len(resp.Choices) == 0 {
		if err == nil {
			err = fmt.Errorf("empty choices in response")
		}
		info.Error = err.Error()
		p.set(info)
		p.logger.Error("openai classify_intent failed", "error", err)
		return ""
	}

	reply := resp.Choices[0].Message.Content
	info.ResponseText = reply
	info.StopReason = string(resp.Choices[0].FinishReason)
	info.InputTokens = int(resp.Usage.PromptTokens)
	info.OutputTokens = int(resp.Usage.CompletionTokens)
	p.set(info)

	return reply
}

func (p *OpenAIProvider) RecordExchange(user, assistant string) {
	if p.history != nil {
		p.history.Record(user, assistant, time.Now())
	}
}

func (p *OpenAIProvider) LastCallInfo() CallInfo { return p.get() }

func intentToolDescription(schemas []FeatureSchema) string {
	description := "Resolve the user's utterance into a structured intent. Available features: "
	for i, s := range schemas {
		if i > 0 {
			description += "; "
		}
		description += s.Feature + " (" + s.Description + ")"
	}
	return description
}
