package llmport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/lokutor-ai/voiceassistant/internal/obslog"
)

const intentToolName = "submit_intent"

// AnthropicProvider implements Provider against the Anthropic Messages API,
// using a forced single-tool call for ParseIntent — the SDK's
// ToolChoice-pinned-to-one-tool feature satisfies spec's "single-tool
// constrained call" requirement exactly. This replaces the teacher's
// pkg/providers/llm/anthropic.go, which hand-rolled the same request over
// net/http despite the SDK being available.
type AnthropicProvider struct {
	callInfoBox

	client anthropic.Client
	model  string
	system string
	logger obslog.Logger

	history *History
}

// NewAnthropicProvider builds an Anthropic-backed Provider. system is the
// conversational system prompt used by Respond; ParseIntent and
// ClassifyIntent build their own task-specific system prompts.
func NewAnthropicProvider(apiKey, model, system string, history *History, logger obslog.Logger) *AnthropicProvider {
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}
	return &AnthropicProvider{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		system:  system,
		logger:  obslog.Default(logger),
		history: history,
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic-llm" }

func (p *AnthropicProvider) Respond(ctx context.Context, text string) string {
	started := time.Now()
	info := CallInfo{CallType: "respond", StartedAt: started, Model: p.model, SystemPrompt: p.system, UserMessage: text}

	messages := []anthropic.MessageParam{}
	if p.history != nil {
		for _, turn := range p.history.Snapshot(started) {
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.User)))
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Assistant)))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 1024,
		Messages:  messages,
	}
	if p.system != "" {
		params.System = []anthropic.TextBlockParam{{Text: p.system}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	info.EndedAt = time.Now()
	if err != nil {
		info.Error = err.Error()
		p.set(info)
		p.logger.Error("anthropic respond failed", "error", err)
		return "Sorry, I couldn't come up with a response just now."
	}

	reply := firstText(msg.Content)
	info.ResponseText = reply
	info.StopReason = string(msg.StopReason)
	info.InputTokens = int(msg.Usage.InputTokens)
	info.OutputTokens = int(msg.Usage.OutputTokens)
	p.set(info)

	if p.history != nil {
		p.history.Record(text, reply, info.EndedAt)
	}

	return reply
}

func (p *AnthropicProvider) ParseIntent(ctx context.Context, text string, schemas []FeatureSchema, routerContext string) *ParsedIntent {
	started := time.Now()
	userMessage := withRouterContext(text, routerContext)
	info := CallInfo{CallType: "parse_intent", StartedAt: started, Model: p.model, UserMessage: userMessage}

	tool := buildIntentTool(schemas)
	systemPrompt := "You are an intent router. Call the " + intentToolName + " tool exactly once with the best interpretation of the user's request."
	info.SystemPrompt = systemPrompt

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 1024,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage))},
		Tools:     []anthropic.ToolUnionParam{tool},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: intentToolName},
		},
	}

	msg, err := p.client.Messages.New(ctx, params)
	info.EndedAt = time.Now()
	if err != nil {
		info.Error = err.Error()
		p.set(info)
		p.logger.Error("anthropic parse_intent failed", "error", err)
		return nil
	}

	info.StopReason = string(msg.StopReason)
	info.InputTokens = int(msg.Usage.InputTokens)
	info.OutputTokens = int(msg.Usage.OutputTokens)

	block := firstToolUse(msg.Content, intentToolName)
	if block == nil {
		info.Error = "no tool_use block in response"
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
	if err := json.Unmarshal(block.Input, &decoded); err != nil {
		info.Error = fmt.Sprintf("decode tool input: %v", err)
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

func (p *AnthropicProvider) ClassifyIntent(ctx context.Context, text string, descriptions []FeatureDescription) string {
	started := time.Now()
	systemPrompt := classifyIntentSystemPrompt(descriptions)
	info := CallInfo{CallType: "classify_intent", StartedAt: started, Model: p.model, SystemPrompt: systemPrompt, UserMessage: text}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 256,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(text))},
	}

	msg, err := p.client.Messages.New(ctx, params)
	info.EndedAt = time.Now()
	if err != nil {
		info.Error = err.Error()
		p.set(info)
		p.logger.Error("anthropic classify_intent failed", "error", err)
		return ""
	}

	info.StopReason = string(msg.StopReason)
	info.InputTokens = int(msg.Usage.InputTokens)
	info.OutputTokens = int(msg.Usage.OutputTokens)

	reply := firstText(msg.Content)
	info.ResponseText = reply
	p.set(info)

	return reply
}

func (p *AnthropicProvider) RecordExchange(user, assistant string) {
	if p.history != nil {
		p.history.Record(user, assistant, time.Now())
	}
}

func (p *AnthropicProvider) LastCallInfo() CallInfo { return p.get() }

func buildIntentTool(schemas []FeatureSchema) anthropic.ToolUnionParam {
	properties := map[string]any{
		"type":             map[string]any{"type": "string", "enum": []string{"action", "conversation", "clarification"}},
		"feature":          map[string]any{"type": "string"},
		"action":           map[string]any{"type": "string"},
		"parameters":       map[string]any{"type": "object"},
		"speech":           map[string]any{"type": "string"},
		"expects_follow_up": map[string]any{"type": "boolean"},
	}

	description := "Resolve the user's utterance into a structured intent. Available features: "
	for i, s := range schemas {
		if i > 0 {
			description += "; "
		}
		description += s.Feature + " (" + s.Description + ")"
	}

	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        intentToolName,
			Description: anthropic.String(description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type:       "object",
				Properties: properties,
				ExtraFields: map[string]any{
					// spec.md §6: type, speech, and expects_follow_up are
					// required; feature/action/parameters are only present
					// for type=="action".
					"required": []string{"type", "speech", "expects_follow_up"},
				},
			},
		},
	}
}

func classifyIntentSystemPrompt(descriptions []FeatureDescription) string {
	prompt := "The user's speech was transcribed by a noisy recognizer. Decide whether it was " +
		"actually meant for one of these features, and if so, return the corrected command text. " +
		"If it is a genuine non-feature query, return exactly \"" + ClassifyIntentNoneMarker + "\". Features: "
	for i, d := range descriptions {
		if i > 0 {
			prompt += "; "
		}
		prompt += d.Feature + " (" + d.Description + ")"
	}
	return prompt
}

func firstText(blocks []anthropic.ContentBlockUnion) string {
	for _, b := range blocks {
		if b.Type == "text" {
			return b.Text
		}
	}
	return ""
}

func firstToolUse(blocks []anthropic.ContentBlockUnion, name string) *anthropic.ToolUseBlock {
	for _, b := range blocks {
		if b.Type == "tool_use" && b.Name == name {
			tb := b.AsToolUse()
			return &tb
		}
	}
	return nil
}
