// Package llm calls the Gemini API: structured output for scopes, prose for
// summaries.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/scopecraft/scopecraft/internal/core"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultModel   = "gemini-2.5-flash"

	// requestTimeout bounds each provider round trip; a timed-out call
	// counts as a failed attempt.
	requestTimeout = 30 * time.Second

	temperature = 0.7

	// Scope generation makes at most two attempts; there is no retry ceiling
	// to configure.
	scopeMaxAttempts = 2

	// correctiveSuffix is appended to the user content on the second attempt.
	correctiveSuffix = "\n\nIMPORTANT: The previous attempt failed to produce " +
		"valid structured output. Please ensure your response " +
		"strictly follows the required JSON schema."

	maxSnippetLen = 300
)

// Client calls the Gemini generateContent API.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	diag    core.DiagnosticLog
	ids     core.IDGenerator
}

// Config holds client construction options. Zero values fall back to the
// production endpoint, model, and timeout.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Diagnostics core.DiagnosticLog
}

// NewClient creates a Gemini client. The diagnostic sink is required in
// production wiring; a nil sink silently drops attempt records.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = requestTimeout
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
		diag:    cfg.Diagnostics,
		ids:     core.NewIDGenerator(),
	}
}

// Wire types for the generateContent endpoint.

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
	ResponseSchema   *schema `json:"responseSchema,omitempty"`
}

type generateRequest struct {
	SystemInstruction *content          `json:"system_instruction,omitempty"`
	Contents          []content         `json:"contents"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// schema is the declared response shape in Gemini's schema dialect.
type schema struct {
	Type       string             `json:"type"`
	Properties map[string]*schema `json:"properties,omitempty"`
	Items      *schema            `json:"items,omitempty"`
	Required   []string           `json:"required,omitempty"`
	Enum       []string           `json:"enum,omitempty"`
}

// scopeResponseSchema constrains scope generation: epics with nested user
// stories, suggested stack, timeline weeks, and risks.
var scopeResponseSchema = &schema{
	Type: "OBJECT",
	Properties: map[string]*schema{
		"epics": {
			Type: "ARRAY",
			Items: &schema{
				Type: "OBJECT",
				Properties: map[string]*schema{
					"name":        {Type: "STRING"},
					"description": {Type: "STRING"},
					"effort_days": {Type: "INTEGER"},
					"order_index": {Type: "INTEGER"},
					"user_stories": {
						Type: "ARRAY",
						Items: &schema{
							Type: "OBJECT",
							Properties: map[string]*schema{
								"title":       {Type: "STRING"},
								"description": {Type: "STRING"},
								"order_index": {Type: "INTEGER"},
							},
							Required: []string{"title", "description", "order_index"},
						},
					},
				},
				Required: []string{"name", "description", "effort_days", "order_index", "user_stories"},
			},
		},
		"suggested_stack": {Type: "ARRAY", Items: &schema{Type: "STRING"}},
		"timeline_weeks":  {Type: "INTEGER"},
		"risks": {
			Type: "ARRAY",
			Items: &schema{
				Type: "OBJECT",
				Properties: map[string]*schema{
					"description": {Type: "STRING"},
					"severity":    {Type: "STRING", Enum: []string{"high", "medium", "low"}},
				},
				Required: []string{"description", "severity"},
			},
		},
	},
	Required: []string{"epics", "suggested_stack", "timeline_weeks", "risks"},
}

// attemptContent produces the user content for a given attempt number. Pure:
// the retry loop owns the side effects, this owns the prompt variant.
func attemptContent(user string, attempt int) string {
	if attempt == 0 {
		return user
	}
	return user + correctiveSuffix
}

// GenerateScope requests a schema-constrained scope breakdown. On any failure
// it retries exactly once with the corrective suffix appended; a second
// failure surfaces core.ErrGenerationFailed with provider detail captured only
// in the diagnostic log. No partial result is ever returned.
func (c *Client) GenerateScope(ctx context.Context, system, user string) (*core.ScopeOutput, error) {
	for attempt := 0; attempt < scopeMaxAttempts; attempt++ {
		contents := attemptContent(user, attempt)

		text, err := c.generate(ctx, system, contents, &generationConfig{
			Temperature:      temperature,
			ResponseMIMEType: "application/json",
			ResponseSchema:   scopeResponseSchema,
		})
		if err != nil {
			c.logAttempt(ctx, "scope", attempt+1, contents, "error", err.Error())
			continue
		}

		var output core.ScopeOutput
		if err := json.Unmarshal([]byte(text), &output); err != nil {
			c.logAttempt(ctx, "scope", attempt+1, contents, "error", fmt.Sprintf("schema validation: %v", err))
			continue
		}
		if len(output.Epics) == 0 {
			c.logAttempt(ctx, "scope", attempt+1, contents, "error", "schema validation: no epics in response")
			continue
		}

		c.logAttempt(ctx, "scope", attempt+1, contents, "ok", "")
		return &output, nil
	}

	return nil, core.ErrGenerationFailed
}

// GenerateSummary requests plain prose. Single attempt: prose has no
// structural validity to re-request, so failure surfaces immediately.
func (c *Client) GenerateSummary(ctx context.Context, system, user string) (string, error) {
	text, err := c.generate(ctx, system, user, &generationConfig{Temperature: temperature})
	if err != nil {
		c.logAttempt(ctx, "summary", 1, user, "error", err.Error())
		return "", core.ErrGenerationFailed
	}

	c.logAttempt(ctx, "summary", 1, user, "ok", "")
	return text, nil
}

// generate performs one provider round trip and returns the first candidate's
// text.
func (c *Client) generate(ctx context.Context, system, user string, config *generationConfig) (string, error) {
	req := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: user}}}},
	}
	if system != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}
	req.GenerationConfig = config

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Gemini API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var apiResp generateResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(apiResp.Candidates) == 0 || len(apiResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response content")
	}

	return apiResp.Candidates[0].Content.Parts[0].Text, nil
}

// logAttempt appends one record to the diagnostic sink. The provider is
// non-deterministic and otherwise unobservable, so every attempt is recorded
// regardless of outcome. Sink failures are warned, never fatal.
func (c *Client) logAttempt(ctx context.Context, operation string, attempt int, prompt, outcome, detail string) {
	if c.diag == nil {
		return
	}

	snippet := prompt
	if len(snippet) > maxSnippetLen {
		snippet = snippet[:maxSnippetLen]
	}

	err := c.diag.Append(ctx, &core.GenerationAttempt{
		ID:            c.ids.GenerateID(),
		Operation:     operation,
		Attempt:       attempt,
		PromptSnippet: snippet,
		Outcome:       outcome,
		Detail:        detail,
		Timestamp:     time.Now(),
	})
	if err != nil {
		log.Printf("Warning: diagnostic log append failed: %v\n", err)
	}
}
