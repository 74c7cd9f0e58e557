package oracle

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/GenericOctopus/ListSorter/pkg/sorter"
)

type fakeOpenAI struct {
	*httptest.Server

	mu       sync.Mutex
	requests []map[string]any
	replies  []string
}

func newFakeOpenAI(t *testing.T, replies ...string) *fakeOpenAI {
	t.Helper()
	f := &fakeOpenAI{replies: replies}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeOpenAI) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/chat/completions" {
		http.NotFound(w, r)
		return
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.requests = append(f.requests, body)
	content := f.replies[min(len(f.requests), len(f.replies))-1]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 0,
		"model":   body["model"],
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
}

func (f *fakeOpenAI) calls() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.requests...)
}

func newTestLLM(t *testing.T, f *fakeOpenAI, tokenLimit int) *LLM {
	t.Helper()
	l, err := NewLLM(&LLMConfig{
		Criterion:   "tastier",
		Model:       "test-model",
		BaseURL:     f.URL,
		TokenLimit:  tokenLimit,
		MaxAttempts: 3,
		HTTPClient:  f.Client(),
		Logger:      discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewLLM failed: %v", err)
	}
	return l
}

func TestLLMDecide(t *testing.T) {
	f := newFakeOpenAI(t, `{"choice":"B","reasoning":"mango is sweeter"}`)
	l := newTestLLM(t, f, 1000)

	got, err := l.Decide(testContext(t), sorter.ComparisonPair{ItemA: "lemon", ItemB: "mango"}, sorter.SortState{})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if got != sorter.DecisionB {
		t.Errorf("got %v, want B", got)
	}

	calls := f.calls()
	if len(calls) != 1 {
		t.Fatalf("made %d requests, want 1", len(calls))
	}
	req := calls[0]
	if req["model"] != "test-model" {
		t.Errorf("model = %v", req["model"])
	}

	format, _ := req["response_format"].(map[string]any)
	if format["type"] != "json_schema" {
		t.Errorf("response_format = %v", format)
	}
	schema, _ := format["json_schema"].(map[string]any)
	if schema["strict"] != true || schema["name"] != "comparison_response" {
		t.Errorf("json_schema = %v", schema)
	}
	raw, _ := json.Marshal(schema["schema"])
	for _, want := range []string{`"choice"`, `"equal"`, `"additionalProperties":false`} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("schema %s missing %s", raw, want)
		}
	}

	messages, _ := req["messages"].([]any)
	if len(messages) != 1 {
		t.Fatalf("sent %d messages", len(messages))
	}
	prompt, _ := messages[0].(map[string]any)["content"].(string)
	for _, want := range []string{"tastier", "lemon", "mango"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q: %s", want, prompt)
		}
	}
}

func TestLLMRetriesInvalidAnswer(t *testing.T) {
	f := newFakeOpenAI(t,
		`not json`,
		`{"choice":"maybe","reasoning":""}`,
		`{"choice":"equal","reasoning":"same thing"}`,
	)
	l := newTestLLM(t, f, 1000)

	got, err := l.Decide(testContext(t), sorter.ComparisonPair{ItemA: "a", ItemB: "b"}, sorter.SortState{})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if got != sorter.DecisionEqual {
		t.Errorf("got %v, want equal", got)
	}

	calls := f.calls()
	if len(calls) != 3 {
		t.Fatalf("made %d requests, want 3", len(calls))
	}
	// user, assistant, retry, assistant, retry
	if messages, _ := calls[2]["messages"].([]any); len(messages) != 5 {
		t.Errorf("third request carried %d messages, want 5", len(messages))
	}
}

func TestLLMGivesUp(t *testing.T) {
	f := newFakeOpenAI(t, `{}`)
	l := newTestLLM(t, f, 1000)

	if _, err := l.Decide(testContext(t), sorter.ComparisonPair{ItemA: "a", ItemB: "b"}, sorter.SortState{}); err == nil {
		t.Fatal("expected an error")
	}
	if n := len(f.calls()); n != 3 {
		t.Errorf("made %d requests, want 3", n)
	}
}

func TestLLMTokenLimit(t *testing.T) {
	f := newFakeOpenAI(t, `{"choice":"A","reasoning":""}`)
	l := newTestLLM(t, f, 10)

	long := strings.Repeat("word ", 50)
	if _, err := l.Decide(testContext(t), sorter.ComparisonPair{ItemA: long, ItemB: "b"}, sorter.SortState{}); err == nil {
		t.Fatal("expected token limit error")
	}
	if n := len(f.calls()); n != 0 {
		t.Errorf("made %d requests over the limit", n)
	}
}

func TestLLMConfigValidate(t *testing.T) {
	base := LLMConfig{Criterion: "c", Model: "m", APIKey: "k", TokenLimit: 100, MaxAttempts: 1}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := map[string]func(c *LLMConfig){
		"no criterion": func(c *LLMConfig) { c.Criterion = "" },
		"no model":     func(c *LLMConfig) { c.Model = "" },
		"no key":       func(c *LLMConfig) { c.APIKey = "" },
		"no limit":     func(c *LLMConfig) { c.TokenLimit = 0 },
		"no attempts":  func(c *LLMConfig) { c.MaxAttempts = 0 },
	}
	for name, mutate := range tests {
		c := base
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}

	custom := base
	custom.APIKey = ""
	custom.BaseURL = "http://localhost:8080/v1"
	if err := custom.Validate(); err != nil {
		t.Errorf("custom endpoint without key rejected: %v", err)
	}
}

func TestLLMDrivesSort(t *testing.T) {
	f := newFakeOpenAI(t, `{"choice":"A","reasoning":"first is fine"}`)
	l := newTestLLM(t, f, 1000)

	ctx := testContext(t)
	eng := newEngine()
	run, err := eng.Start(ctx, sorter.Request{Items: []string{"x", "y", "z"}})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	got, err := Drive(ctx, eng, run, l)
	if err != nil {
		t.Fatalf("Drive failed: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("got %v", got)
	}
	if n := len(f.calls()); n != run.Comparisons() {
		t.Errorf("requests %d, comparisons %d", n, run.Comparisons())
	}
}
