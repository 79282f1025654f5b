package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/scopecraft/scopecraft/internal/core"
	"github.com/scopecraft/scopecraft/internal/testutil"
)

// fakeGemini records the user text of each request and replies from a scripted
// list of response bodies. A body of "" yields HTTP 500.
type fakeGemini struct {
	mu      sync.Mutex
	prompts []string
	schemas []bool
	replies []string
	calls   int
	server  *httptest.Server
}

func newFakeGemini(t *testing.T, replies ...string) *fakeGemini {
	t.Helper()
	f := &fakeGemini{replies: replies}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		f.prompts = append(f.prompts, req.Contents[0].Parts[0].Text)
		f.schemas = append(f.schemas, req.GenerationConfig != nil && req.GenerationConfig.ResponseSchema != nil)

		reply := ""
		if f.calls < len(f.replies) {
			reply = f.replies[f.calls]
		}
		f.calls++

		if reply == "" {
			http.Error(w, `{"error": "internal"}`, http.StatusInternalServerError)
			return
		}

		resp := map[string]any{
			"candidates": []any{
				map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": reply}}}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func validScopeJSON(t *testing.T) string {
	t.Helper()
	out := core.ScopeOutput{
		Epics: []core.EpicOutput{
			{Name: "Core", Description: "Core work", EffortDays: 5, OrderIndex: 0,
				UserStories: []core.StoryOutput{{Title: "As a user, I can sign up", OrderIndex: 0}}},
		},
		SuggestedStack: []string{"Go"},
		TimelineWeeks:  4,
		Risks:          []core.Risk{{Description: "Scope creep", Severity: "low"}},
	}
	raw, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal scope output: %v", err)
	}
	return string(raw)
}

// =============================================================================
// Test: GenerateScope retry behavior
// =============================================================================

func TestClient_GenerateScope(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a valid first response Then one call is made and logged ok", func(t *testing.T) {
		// Given
		fake := newFakeGemini(t, validScopeJSON(t))
		diag := testutil.NewMockDiagnosticLog()
		client := NewClient(Config{APIKey: "test-key", BaseURL: fake.server.URL, Diagnostics: diag})

		// When
		output, err := client.GenerateScope(ctx, "system", "user prompt")

		// Then
		if err != nil {
			t.Fatalf("GenerateScope failed: %v", err)
		}
		if len(output.Epics) != 1 {
			t.Errorf("expected 1 epic, got %d", len(output.Epics))
		}
		if fake.calls != 1 {
			t.Errorf("expected 1 provider call, got %d", fake.calls)
		}
		if strings.Contains(fake.prompts[0], "previous attempt failed") {
			t.Errorf("first attempt must not carry the corrective suffix: %s", fake.prompts[0])
		}
		if !fake.schemas[0] {
			t.Error("expected a response schema on the scope request")
		}

		records := diag.Records()
		if len(records) != 1 {
			t.Fatalf("expected 1 diagnostic record, got %d", len(records))
		}
		if records[0].Outcome != "ok" || records[0].Attempt != 1 || records[0].Operation != "scope" {
			t.Errorf("unexpected record: %+v", records[0])
		}
	})

	t.Run("Given an invalid first response Then the retry carries the corrective suffix", func(t *testing.T) {
		// Given
		fake := newFakeGemini(t, "not json at all", validScopeJSON(t))
		diag := testutil.NewMockDiagnosticLog()
		client := NewClient(Config{APIKey: "test-key", BaseURL: fake.server.URL, Diagnostics: diag})

		// When
		output, err := client.GenerateScope(ctx, "system", "user prompt")

		// Then
		if err != nil {
			t.Fatalf("GenerateScope failed: %v", err)
		}
		if output == nil || len(output.Epics) != 1 {
			t.Fatalf("expected recovered output, got %+v", output)
		}
		if fake.calls != 2 {
			t.Fatalf("expected 2 provider calls, got %d", fake.calls)
		}
		if got, want := fake.prompts[1], fake.prompts[0]+correctiveSuffix; got != want {
			t.Errorf("second prompt must be the first plus the suffix, got:\n%s", got)
		}

		records := diag.Records()
		if len(records) != 2 {
			t.Fatalf("expected 2 diagnostic records, got %d", len(records))
		}
		if records[0].Outcome != "error" || records[1].Outcome != "ok" {
			t.Errorf("unexpected outcomes: %s then %s", records[0].Outcome, records[1].Outcome)
		}
		if records[1].Attempt != 2 {
			t.Errorf("expected attempt 2 on retry record, got %d", records[1].Attempt)
		}
	})

	t.Run("Given two failures Then fails with ErrGenerationFailed after exactly two calls", func(t *testing.T) {
		// Given
		fake := newFakeGemini(t, "garbage", "more garbage")
		diag := testutil.NewMockDiagnosticLog()
		client := NewClient(Config{APIKey: "test-key", BaseURL: fake.server.URL, Diagnostics: diag})

		// When
		_, err := client.GenerateScope(ctx, "system", "user prompt")

		// Then
		if !errors.Is(err, core.ErrGenerationFailed) {
			t.Errorf("expected ErrGenerationFailed, got %v", err)
		}
		if fake.calls != 2 {
			t.Errorf("expected exactly 2 provider calls, got %d", fake.calls)
		}
		// Provider detail stays in the log, never in the returned error.
		if err != nil && strings.Contains(err.Error(), "garbage") {
			t.Errorf("error leaks provider detail: %v", err)
		}
		for _, rec := range diag.Records() {
			if rec.Outcome != "error" {
				t.Errorf("expected error outcome, got %s", rec.Outcome)
			}
		}
	})

	t.Run("Given a response with no epics Then it counts as a failed attempt", func(t *testing.T) {
		// Given
		empty := `{"epics": [], "suggested_stack": [], "timeline_weeks": 0, "risks": []}`
		fake := newFakeGemini(t, empty, validScopeJSON(t))
		client := NewClient(Config{APIKey: "test-key", BaseURL: fake.server.URL})

		// When
		output, err := client.GenerateScope(ctx, "system", "user prompt")

		// Then
		if err != nil {
			t.Fatalf("GenerateScope failed: %v", err)
		}
		if fake.calls != 2 {
			t.Errorf("expected a retry after the empty response, got %d calls", fake.calls)
		}
		if len(output.Epics) != 1 {
			t.Errorf("expected recovered output, got %+v", output)
		}
	})

	t.Run("Given an HTTP error Then it counts as a failed attempt", func(t *testing.T) {
		// Given
		fake := newFakeGemini(t, "", validScopeJSON(t))
		client := NewClient(Config{APIKey: "test-key", BaseURL: fake.server.URL})

		// When
		_, err := client.GenerateScope(ctx, "system", "user prompt")

		// Then
		if err != nil {
			t.Fatalf("GenerateScope failed: %v", err)
		}
		if fake.calls != 2 {
			t.Errorf("expected 2 provider calls, got %d", fake.calls)
		}
	})

	t.Run("Given a timed out first call Then it counts as a failed attempt and the retry recovers", func(t *testing.T) {
		// Given
		valid := validScopeJSON(t)
		var mu sync.Mutex
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			if n == 1 {
				time.Sleep(500 * time.Millisecond)
			}
			resp := map[string]any{
				"candidates": []any{
					map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": valid}}}},
				},
			}
			json.NewEncoder(w).Encode(resp)
		}))
		t.Cleanup(server.Close)

		diag := testutil.NewMockDiagnosticLog()
		client := NewClient(Config{
			APIKey:      "test-key",
			BaseURL:     server.URL,
			Timeout:     50 * time.Millisecond,
			Diagnostics: diag,
		})

		// When
		output, err := client.GenerateScope(ctx, "system", "user prompt")

		// Then
		if err != nil {
			t.Fatalf("GenerateScope failed: %v", err)
		}
		if len(output.Epics) != 1 {
			t.Errorf("expected recovered output, got %+v", output)
		}
		mu.Lock()
		got := calls
		mu.Unlock()
		if got != 2 {
			t.Errorf("expected 2 provider calls, got %d", got)
		}

		records := diag.Records()
		if len(records) != 2 {
			t.Fatalf("expected 2 diagnostic records, got %d", len(records))
		}
		if records[0].Outcome != "error" || records[1].Outcome != "ok" {
			t.Errorf("unexpected outcomes: %s then %s", records[0].Outcome, records[1].Outcome)
		}
	})
}

// =============================================================================
// Test: GenerateSummary
// =============================================================================

func TestClient_GenerateSummary(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a prose response Then it is returned verbatim without a schema", func(t *testing.T) {
		// Given
		fake := newFakeGemini(t, "The week went well.")
		client := NewClient(Config{APIKey: "test-key", BaseURL: fake.server.URL})

		// When
		text, err := client.GenerateSummary(ctx, "system", "user prompt")

		// Then
		if err != nil {
			t.Fatalf("GenerateSummary failed: %v", err)
		}
		if text != "The week went well." {
			t.Errorf("unexpected text: %s", text)
		}
		if fake.schemas[0] {
			t.Error("summary requests must not carry a response schema")
		}
	})

	t.Run("Given a provider failure Then fails immediately with no retry", func(t *testing.T) {
		// Given
		fake := newFakeGemini(t, "")
		client := NewClient(Config{APIKey: "test-key", BaseURL: fake.server.URL})

		// When
		_, err := client.GenerateSummary(ctx, "system", "user prompt")

		// Then
		if !errors.Is(err, core.ErrGenerationFailed) {
			t.Errorf("expected ErrGenerationFailed, got %v", err)
		}
		if fake.calls != 1 {
			t.Errorf("expected exactly 1 provider call, got %d", fake.calls)
		}
	})
}

// =============================================================================
// Test: attempt content
// =============================================================================

func TestAttemptContent(t *testing.T) {
	if got := attemptContent("base", 0); got != "base" {
		t.Errorf("first attempt must be unmodified, got %q", got)
	}
	if got := attemptContent("base", 1); got != "base"+correctiveSuffix {
		t.Errorf("second attempt must append the suffix, got %q", got)
	}
}

func TestLogAttempt_Truncation(t *testing.T) {
	// Given
	fake := newFakeGemini(t, validScopeJSON(t))
	diag := testutil.NewMockDiagnosticLog()
	client := NewClient(Config{APIKey: "test-key", BaseURL: fake.server.URL, Diagnostics: diag})
	long := strings.Repeat("p", 1000)

	// When
	_, err := client.GenerateScope(context.Background(), "system", long)

	// Then
	if err != nil {
		t.Fatalf("GenerateScope failed: %v", err)
	}
	records := diag.Records()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if len(records[0].PromptSnippet) != maxSnippetLen {
		t.Errorf("expected snippet capped at %d, got %d", maxSnippetLen, len(records[0].PromptSnippet))
	}
}
