package model_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"scanbay/internal/config"
	"scanbay/internal/model"
	"scanbay/internal/services"
)

func testLLMConfig(baseURL string) config.LLM {
	return config.LLM{
		APIKey:         "test-key",
		BaseURL:        baseURL,
		Model:          "gpt-4o",
		TimeoutSeconds: 5,
		RetryAttempts:  2,
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

func completionJSON(content string, toolCalls string) string {
	if toolCalls == "" {
		toolCalls = "[]"
	}
	return `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"model": "gpt-4o-2024-08-06",
		"choices": [{
			"index": 0,
			"finish_reason": "stop",
			"message": {
				"role": "assistant",
				"content": ` + mustQuote(content) + `,
				"tool_calls": ` + toolCalls + `
			}
		}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
	}`
}

func mustQuote(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

func TestCompleteReturnsContent(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionJSON(`{"products": []}`, "")))
	}))
	defer server.Close()

	client, err := model.New(testLLMConfig(server.URL), model.WithSleeper(noSleep))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	conv := model.NewConversation("identify the product")
	conv.AddUser("barcodes: 4006381333931")
	resp, err := client.Complete(context.Background(), conv, model.Options{
		SchemaName: "product_bundle",
		Schema:     map[string]any{"type": "object"},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Content != `{"products": []}` || len(resp.ToolCalls) != 0 {
		t.Fatalf("unexpected response: %#v", resp)
	}
	if resp.Model != "gpt-4o-2024-08-06" {
		t.Fatalf("expected provider-reported model, got %q", resp.Model)
	}

	if gotBody["model"] != "gpt-4o" {
		t.Fatalf("expected configured model sent, got %v", gotBody["model"])
	}
	if _, ok := gotBody["response_format"]; !ok {
		t.Fatal("expected response_format in request")
	}
	if _, ok := gotBody["tools"]; ok {
		t.Fatal("expected no tools when none are supplied")
	}
}

func TestCompleteParsesToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionJSON("", `[
			{"id": "call_1", "type": "function", "function": {"name": "product_search", "arguments": "{\"engine\": \"google_shopping\", \"query\": \"Makita DHP484\"}"}}
		]`)))
	}))
	defer server.Close()

	client, err := model.New(testLLMConfig(server.URL), model.WithSleeper(noSleep))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	conv := model.NewConversation("identify the product")
	resp, err := client.Complete(context.Background(), conv, model.Options{
		Tools: []model.ToolDefinition{{
			Name:        "product_search",
			Description: "search",
			Parameters:  map[string]any{"type": "object"},
		}},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	call := resp.ToolCalls[0]
	if call.ID != "call_1" || call.Name != "product_search" {
		t.Fatalf("unexpected tool call: %#v", call)
	}
	if resp.Message.Role != model.RoleAssistant || len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("expected assistant message carrying tool calls: %#v", resp.Message)
	}
}

func TestCompleteRetriesRateLimit(t *testing.T) {
	var calls int
	var slept []time.Duration
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error": {"message": "rate limited"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionJSON("done", "")))
	}))
	defer server.Close()

	client, err := model.New(testLLMConfig(server.URL), model.WithSleeper(
		func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	resp, err := client.Complete(context.Background(), model.NewConversation("x"), model.Options{})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Content != "done" || calls != 2 {
		t.Fatalf("expected success on second call, got calls=%d resp=%#v", calls, resp)
	}
	// The base delay is 2s with 25% jitter either way.
	if len(slept) != 1 || slept[0] < 1500*time.Millisecond || slept[0] > 2500*time.Millisecond {
		t.Fatalf("expected one jittered base backoff sleep, got %v", slept)
	}
}

func TestCompleteGivesUpAfterRetryBudget(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limited"}}`))
	}))
	defer server.Close()

	client, err := model.New(testLLMConfig(server.URL), model.WithSleeper(noSleep))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = client.Complete(context.Background(), model.NewConversation("x"), model.Options{})
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected rate-limited error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected initial call plus 2 retries, got %d", calls)
	}
}

func TestCompleteRejectsMissingModel(t *testing.T) {
	cfg := testLLMConfig("http://unused.test")
	cfg.Model = ""
	client, err := model.New(cfg, model.WithSleeper(noSleep))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := client.Complete(context.Background(), model.NewConversation("x"), model.Options{}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := model.New(config.LLM{}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
