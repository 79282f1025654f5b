package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/scopecraft/scopecraft/internal/prompts"
)

// GenerateScope calls the provider, persists the scope with its epics and
// user stories, and returns the full nested scope.
func (e *Engine) GenerateScope(ctx context.Context, req ScopeRequest) (*Scope, error) {
	if strings.TrimSpace(req.ProductName) == "" {
		return nil, requiredError("product_name")
	}
	if strings.TrimSpace(req.IdeaText) == "" {
		return nil, requiredError("idea_text")
	}
	if err := validateEnum(req.BudgetRange, "budget_range", ValidBudgetRanges); err != nil {
		return nil, err
	}
	if err := validateEnum(req.TimelinePressure, "timeline_pressure", ValidTimelinePressures); err != nil {
		return nil, err
	}

	userPrompt := prompts.BuildScopePrompt(
		req.ProductName, req.IdeaText, req.TargetAudience, req.BudgetRange, req.TimelinePressure,
	)

	output, err := e.gen.GenerateScope(ctx, prompts.ScopeSystemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(output)
	if err != nil {
		return nil, fmt.Errorf("marshal generation output: %w", err)
	}

	scope := &Scope{
		ID:               e.ids.GenerateID(),
		ProductName:      req.ProductName,
		IdeaText:         req.IdeaText,
		TargetAudience:   req.TargetAudience,
		BudgetRange:      req.BudgetRange,
		TimelinePressure: req.TimelinePressure,
		RawOutput:        string(raw),
		SuggestedStack:   output.SuggestedStack,
		TimelineWeeks:    output.TimelineWeeks,
		Risks:            output.Risks,
		Status:           ScopeStatusDraft,
		CreatedAt:        e.now(),
	}
	if err := e.store.CreateScope(ctx, scope); err != nil {
		return nil, fmt.Errorf("persist scope: %w", err)
	}

	for _, epicOut := range output.Epics {
		epic := Epic{
			ID:          e.ids.GenerateID(),
			ScopeID:     scope.ID,
			Name:        epicOut.Name,
			Description: epicOut.Description,
			EffortDays:  epicOut.EffortDays,
			OrderIndex:  epicOut.OrderIndex,
		}
		if err := e.store.CreateEpic(ctx, &epic); err != nil {
			return nil, fmt.Errorf("persist epic: %w", err)
		}

		for _, storyOut := range epicOut.UserStories {
			story := UserStory{
				ID:          e.ids.GenerateID(),
				EpicID:      epic.ID,
				Title:       storyOut.Title,
				Description: storyOut.Description,
				IsCompleted: false,
				OrderIndex:  storyOut.OrderIndex,
			}
			if err := e.store.CreateUserStory(ctx, &story); err != nil {
				return nil, fmt.Errorf("persist user story: %w", err)
			}
			epic.UserStories = append(epic.UserStories, story)
		}

		scope.Epics = append(scope.Epics, epic)
	}

	return scope, nil
}

// GetScope returns a scope with nested epics and user stories.
func (e *Engine) GetScope(ctx context.Context, id string) (*Scope, error) {
	return e.store.GetScope(ctx, id)
}

// ListScopes returns scope summaries, newest first.
func (e *Engine) ListScopes(ctx context.Context) ([]ScopeSummary, error) {
	return e.store.ListScopes(ctx)
}

// UpdateScope applies a typed patch to a scope's mutable fields.
func (e *Engine) UpdateScope(ctx context.Context, id string, patch ScopePatch) (*Scope, error) {
	if patch.Status != nil {
		if err := validateEnum(*patch.Status, "status", ValidScopeStatuses); err != nil {
			return nil, err
		}
	}
	return e.store.UpdateScope(ctx, id, patch)
}

// ArchiveScope soft-deletes a scope by setting its status to archived.
func (e *Engine) ArchiveScope(ctx context.Context, id string) (*Scope, error) {
	status := ScopeStatusArchived
	return e.store.UpdateScope(ctx, id, ScopePatch{Status: &status})
}
