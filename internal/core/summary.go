package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/scopecraft/scopecraft/internal/prompts"
)

// noUpdatesSentinel stands in for the update section when the trailing week
// has no logged activity, so the prompt never carries an empty section.
const noUpdatesSentinel = "No updates logged this week."

// WeeklySummary gathers the trailing seven days of milestone activity, asks
// the provider for a prose report, persists it, and returns it.
func (e *Engine) WeeklySummary(ctx context.Context, projectID, tone string) (*Summary, error) {
	if tone == "" {
		tone = ToneExecutive
	}
	if err := validateEnum(tone, "tone", ValidSummaryTones); err != nil {
		return nil, err
	}

	project, err := e.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	milestones, err := e.store.ListMilestones(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}

	// Inclusive lower bound: today minus seven days.
	weekStart := e.today().AddDate(0, 0, -7).Format(DateLayout)

	updates, err := e.store.ListUpdatesSince(ctx, projectID, weekStart)
	if err != nil {
		return nil, fmt.Errorf("list updates: %w", err)
	}

	var statusLines []string
	for _, m := range milestones {
		statusLines = append(statusLines, fmt.Sprintf(
			"- %s: %s (%d%% done, due %s)", m.Name, m.Status, m.ProgressPercent, m.DueDate,
		))
	}

	var updateLines []string
	for _, u := range updates {
		updateLines = append(updateLines, fmt.Sprintf(
			"- [%s] (%s) %s", u.MilestoneName, u.UpdateType, u.Content,
		))
	}
	updatesFormatted := strings.Join(updateLines, "\n")
	if updatesFormatted == "" {
		updatesFormatted = noUpdatesSentinel
	}

	system, user := prompts.BuildSummaryPrompt(
		project.Name, project.Description, weekStart,
		strings.Join(statusLines, "\n"), updatesFormatted, tone,
	)

	content, err := e.gen.GenerateSummary(ctx, system, user)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		ID:          e.ids.GenerateID(),
		ProjectID:   projectID,
		Content:     content,
		Tone:        tone,
		WeekStart:   weekStart,
		GeneratedAt: e.now(),
	}
	if err := e.store.CreateSummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("persist summary: %w", err)
	}

	return summary, nil
}

// ListSummaries returns all past summaries for a project, newest first.
func (e *Engine) ListSummaries(ctx context.Context, projectID string) ([]Summary, error) {
	return e.store.ListSummaries(ctx, projectID)
}
