package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"message": map[string]any{
						"content": `{"ok":true}`,
					},
				},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckCodeFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"message": map[string]any{
						"content": "```json\n{\"ok\":true}\n```",
					},
				},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail")
	}
}

func completionServer(t *testing.T, handler func(calls int, body chatCompletionRequest) (int, string)) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		status, content := handler(calls, req)
		if status != http.StatusOK {
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "failure"})
			return
		}
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"finish_reason": "stop",
					"message":       map[string]any{"content": content},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestClientTranslate(t *testing.T) {
	server, calls := completionServer(t, func(_ int, req chatCompletionRequest) (int, string) {
		if len(req.Messages) != 2 || !strings.Contains(req.Messages[0].Content, "Spanish") {
			t.Errorf("unexpected prompt %+v", req.Messages)
		}
		if req.Messages[1].Content != "Hello world." {
			t.Errorf("unexpected user content %q", req.Messages[1].Content)
		}
		return http.StatusOK, "```json\n{\"translation\": \" Hola mundo. \"}\n```"
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	got, err := client.Translate(context.Background(), "  Hello world.  ", "es", "Spanish")
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if got != "Hola mundo." {
		t.Fatalf("unexpected translation %q", got)
	}
	if *calls != 1 {
		t.Fatalf("expected 1 call, got %d", *calls)
	}
}

func TestClientTranslateSplitsLongText(t *testing.T) {
	sentence := strings.Repeat("word ", 200) + "end."
	text := strings.TrimSpace(strings.Repeat(sentence+" ", 10))
	server, calls := completionServer(t, func(calls int, _ chatCompletionRequest) (int, string) {
		return http.StatusOK, `{"translation":"parte"}`
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	got, err := client.Translate(context.Background(), text, "es", "")
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if *calls < 2 {
		t.Fatalf("expected multiple requests, got %d", *calls)
	}
	if got != strings.TrimSpace(strings.Repeat("parte ", *calls)) {
		t.Fatalf("unexpected joined translation %q", got)
	}
}

func TestClientTranslateEmptyTranslation(t *testing.T) {
	server, _ := completionServer(t, func(int, chatCompletionRequest) (int, string) {
		return http.StatusOK, `{"translation":"   "}`
	})
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	if _, err := client.Translate(context.Background(), "Hello", "es", "Spanish"); err == nil {
		t.Fatal("expected error for empty translation")
	}
}

func TestClientTranslateValidatesInput(t *testing.T) {
	client := NewClient(Config{APIKey: "test", BaseURL: "http://127.0.0.1:1", Model: "demo"})
	if _, err := client.Translate(context.Background(), " ", "es", ""); err == nil {
		t.Fatal("expected error for empty text")
	}
	if _, err := client.Translate(context.Background(), "hi", "", ""); err == nil {
		t.Fatal("expected error for empty target")
	}
	unconfigured := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	if unconfigured.Configured() {
		t.Fatal("expected unconfigured client")
	}
	if _, err := unconfigured.Translate(context.Background(), "hi", "es", ""); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestClientToolCallArguments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"message": map[string]any{
						"content": "",
						"tool_calls": []any{
							map[string]any{
								"type":     "function",
								"function": map[string]any{"name": "translate", "arguments": `{"translation":"Bonjour"}`},
							},
						},
					},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	got, err := client.Translate(context.Background(), "Hello", "fr", "French")
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if got != "Bonjour" {
		t.Fatalf("unexpected translation %q", got)
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
			return
		}
		payload := map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"content": `{"translation":"Hallo"}`}},
			},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(0, 10*time.Second),
		WithRetryMaxAttempts(5),
	)
	got, err := client.Translate(context.Background(), "Hello", "de", "German")
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if got != "Hallo" || calls != 2 {
		t.Fatalf("unexpected result %q after %d calls", got, calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s, got %v", slept)
	}
}

func TestClientRetriesOnEmptyContentThenSucceeds(t *testing.T) {
	server, calls := completionServer(t, func(calls int, _ chatCompletionRequest) (int, string) {
		if calls < 3 {
			return http.StatusOK, ""
		}
		return http.StatusOK, `{"translation":"Ciao"}`
	})

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
		WithRetryMaxAttempts(5),
	)
	got, err := client.Translate(context.Background(), "Hello", "it", "Italian")
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if got != "Ciao" || *calls != 3 {
		t.Fatalf("unexpected result %q after %d calls", got, *calls)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	server, calls := completionServer(t, func(int, chatCompletionRequest) (int, string) {
		return http.StatusBadRequest, ""
	})
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"}, WithSleeper(func(time.Duration) {}))
	_, err := client.Translate(context.Background(), "Hello", "es", "Spanish")
	if err == nil {
		t.Fatal("expected error")
	}
	if StatusCode(err) != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d (%v)", StatusCode(err), err)
	}
	if *calls != 1 {
		t.Fatalf("expected no retries, got %d calls", *calls)
	}
}

func TestDecodeLLMJSONExtractsObject(t *testing.T) {
	var parsed translationPayload
	if err := DecodeLLMJSON("Sure! Here it is: {\"translation\":\"Hej\"} Enjoy.", &parsed); err != nil {
		t.Fatalf("DecodeLLMJSON: %v", err)
	}
	if parsed.Translation != "Hej" {
		t.Fatalf("unexpected payload %+v", parsed)
	}
	if err := DecodeLLMJSON("  ", &parsed); err == nil {
		t.Fatal("expected error for empty payload")
	}
}
