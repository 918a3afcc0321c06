package llmport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func chatCompletionsServer(t *testing.T, respond func(body map[string]any) map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(respond(body))
	}))
}

func TestOpenAIProviderRespond(t *testing.T) {
	server := chatCompletionsServer(t, func(body map[string]any) map[string]any {
		return map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{"index": 0, "finish_reason": "stop", "message": map[string]any{"role": "assistant", "content": "hello back"}}},
			"usage":   map[string]any{"prompt_tokens": 5, "completion_tokens": 3, "total_tokens": 8},
		}
	})
	defer server.Close()

	history := NewHistory(10, 0)
	p := NewOpenAIProvider("test-key", "gpt-4o-mini", "you are helpful", server.URL, history, nil)

	reply := p.Respond(context.Background(), "hi")
	if reply != "hello back" {
		t.Fatalf("expected 'hello back', got %q", reply)
	}

	info := p.LastCallInfo()
	if info.CallType != "respond" || info.Error != "" {
		t.Fatalf("unexpected call info: %+v", info)
	}

	snap := history.Snapshot(time.Now())
	if len(snap) != 1 || snap[0].User != "hi" || snap[0].Assistant != "hello back" {
		t.Fatalf("expected history to record the exchange, got %+v", snap)
	}
}

func TestOpenAIProviderParseIntentDecodesToolCall(t *testing.T) {
	server := chatCompletionsServer(t, func(body map[string]any) map[string]any {
		args := `{"type":"action","feature":"timer","action":"set","parameters":{"minutes":5},"speech":"Setting a 5 minute timer.","expects_follow_up":false}`
		return map[string]any{
			"id":     "chatcmpl-2",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "tool_calls",
				"message": map[string]any{
					"role": "assistant",
					"tool_calls": []map[string]any{{
						"id":   "call_1",
						"type": "function",
						"function": map[string]any{
							"name":      intentToolName,
							"arguments": args,
						},
					}},
				},
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 6, "total_tokens": 16},
		}
	})
	defer server.Close()

	p := NewOpenAIProvider("test-key", "gpt-4o-mini", "", server.URL, nil, nil)

	result := p.ParseIntent(context.Background(), "set a 5 minute timer", []FeatureSchema{{Feature: "timer", Description: "set timers"}}, "")
	if result == nil {
		t.Fatal("expected non-nil parsed intent")
	}
	if result.Type != IntentAction || result.Feature != "timer" || result.Action != "set" {
		t.Fatalf("unexpected parsed intent: %+v", result)
	}
	if result.Parameters["minutes"] != float64(5) {
		t.Fatalf("expected minutes param 5, got %v", result.Parameters["minutes"])
	}
}

func TestOpenAIProviderParseIntentReturnsNilOnMissingToolCall(t *testing.T) {
	server := chatCompletionsServer(t, func(body map[string]any) map[string]any {
		return map[string]any{
			"id":      "chatcmpl-3",
			"object":  "chat.completion",
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{"index": 0, "finish_reason": "stop", "message": map[string]any{"role": "assistant", "content": "no tool call here"}}},
			"usage":   map[string]any{"prompt_tokens": 5, "completion_tokens": 3, "total_tokens": 8},
		}
	})
	defer server.Close()

	p := NewOpenAIProvider("test-key", "gpt-4o-mini", "", server.URL, nil, nil)

	result := p.ParseIntent(context.Background(), "hello", nil, "")
	if result != nil {
		t.Fatalf("expected nil parsed intent, got %+v", result)
	}
	if p.LastCallInfo().Error == "" {
		t.Fatal("expected LastCallInfo.Error to be set")
	}
}

func TestOpenAIProviderClassifyIntentDoesNotTouchHistory(t *testing.T) {
	server := chatCompletionsServer(t, func(body map[string]any) map[string]any {
		return map[string]any{
			"id":      "chatcmpl-4",
			"object":  "chat.completion",
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{"index": 0, "finish_reason": "stop", "message": map[string]any{"role": "assistant", "content": ClassifyIntentNoneMarker}}},
			"usage":   map[string]any{"prompt_tokens": 5, "completion_tokens": 1, "total_tokens": 6},
		}
	})
	defer server.Close()

	history := NewHistory(10, 0)
	p := NewOpenAIProvider("test-key", "gpt-4o-mini", "", server.URL, history, nil)

	result := p.ClassifyIntent(context.Background(), "garbled text", []FeatureDescription{{Feature: "timer", Description: "set timers"}})
	if result != ClassifyIntentNoneMarker {
		t.Fatalf("expected none-marker, got %q", result)
	}
	if snap := history.Snapshot(time.Now()); len(snap) != 0 {
		t.Fatalf("expected classify_intent to leave history untouched, got %+v", snap)
	}
}
