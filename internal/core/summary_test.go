package core_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/scopecraft/scopecraft/internal/core"
	"github.com/scopecraft/scopecraft/internal/testutil"
)

func seedProject(t *testing.T, store *testutil.MockStore) {
	t.Helper()
	ctx := context.Background()

	if err := store.CreateProject(ctx, &core.Project{
		ID: "proj-1", Name: "TaskFlow", Description: "Task manager build",
		StartDate: "2024-03-01", Status: core.ProjectStatusActive,
	}); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	if err := store.CreateMilestone(ctx, &core.Milestone{
		ID: "ms-1", ProjectID: "proj-1", Name: "Foundation",
		Status: core.MilestoneInProgress, ProgressPercent: 50,
		DueDate: "2024-03-20", OrderIndex: 0,
	}); err != nil {
		t.Fatalf("seed milestone: %v", err)
	}
}

// =============================================================================
// Test: WeeklySummary
// =============================================================================

func TestEngine_WeeklySummary(t *testing.T) {
	ctx := context.Background()

	t.Run("Given recent updates When summarized Then the prompt covers the trailing week", func(t *testing.T) {
		// Given
		store := testutil.NewMockStore()
		seedProject(t, store)
		logged := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)
		store.CreateUpdate(ctx, &core.Update{
			ID: "upd-1", MilestoneID: "ms-1", UpdateType: core.UpdateTypeProgress,
			Content: "Auth flow finished", LoggedAt: logged,
		})
		gen := testutil.NewMockGenerator()
		gen.SummaryText = "A productive week."
		engine := core.NewEngineWithDeps(core.EngineDeps{
			Store:     store,
			Generator: gen,
			Now:       testutil.FixedClock("2024-03-15"),
		})

		// When
		summary, err := engine.WeeklySummary(ctx, "proj-1", "")

		// Then
		if err != nil {
			t.Fatalf("WeeklySummary failed: %v", err)
		}
		if summary.WeekStart != "2024-03-08" {
			t.Errorf("expected week start 2024-03-08, got %s", summary.WeekStart)
		}
		if summary.Tone != core.ToneExecutive {
			t.Errorf("expected default executive tone, got %s", summary.Tone)
		}
		if summary.Content != "A productive week." {
			t.Errorf("unexpected content: %s", summary.Content)
		}
		if !strings.Contains(gen.LastUser, "- Foundation: in_progress (50% done, due 2024-03-20)") {
			t.Errorf("expected milestone status line in prompt, got:\n%s", gen.LastUser)
		}
		if !strings.Contains(gen.LastUser, "- [Foundation] (progress) Auth flow finished") {
			t.Errorf("expected update line in prompt, got:\n%s", gen.LastUser)
		}
		if len(store.Summaries) != 1 {
			t.Errorf("expected 1 persisted summary, got %d", len(store.Summaries))
		}
	})

	t.Run("Given no updates in the window Then the prompt carries the sentinel line", func(t *testing.T) {
		// Given
		store := testutil.NewMockStore()
		seedProject(t, store)
		// Older than seven days, must not appear.
		store.CreateUpdate(ctx, &core.Update{
			ID: "upd-old", MilestoneID: "ms-1", UpdateType: core.UpdateTypeNote,
			Content: "Kickoff notes", LoggedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		})
		gen := testutil.NewMockGenerator()
		engine := core.NewEngineWithDeps(core.EngineDeps{
			Store:     store,
			Generator: gen,
			Now:       testutil.FixedClock("2024-03-15"),
		})

		// When
		_, err := engine.WeeklySummary(ctx, "proj-1", core.ToneExecutive)

		// Then
		if err != nil {
			t.Fatalf("WeeklySummary failed: %v", err)
		}
		if !strings.Contains(gen.LastUser, "No updates logged this week.") {
			t.Errorf("expected sentinel line in prompt, got:\n%s", gen.LastUser)
		}
		if strings.Contains(gen.LastUser, "Kickoff notes") {
			t.Errorf("expected stale update to be excluded, got:\n%s", gen.LastUser)
		}
	})

	t.Run("Given a technical tone Then the technical system prompt is selected", func(t *testing.T) {
		// Given
		store := testutil.NewMockStore()
		seedProject(t, store)
		gen := testutil.NewMockGenerator()
		engine := core.NewEngine(store, gen)

		// When
		summary, err := engine.WeeklySummary(ctx, "proj-1", core.ToneTechnical)

		// Then
		if err != nil {
			t.Fatalf("WeeklySummary failed: %v", err)
		}
		if summary.Tone != core.ToneTechnical {
			t.Errorf("expected technical tone, got %s", summary.Tone)
		}
		if !strings.Contains(gen.LastSystem, "engineering lead") {
			t.Errorf("expected technical system prompt, got:\n%s", gen.LastSystem)
		}
	})

	t.Run("Given an unknown tone Then fails with a validation error", func(t *testing.T) {
		// Given
		store := testutil.NewMockStore()
		seedProject(t, store)
		engine := core.NewEngine(store, testutil.NewMockGenerator())

		// When
		_, err := engine.WeeklySummary(ctx, "proj-1", "sarcastic")

		// Then
		if !core.IsValidation(err) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("Given an unknown project Then fails with ErrNotFound", func(t *testing.T) {
		// Given
		engine := core.NewEngine(testutil.NewMockStore(), testutil.NewMockGenerator())

		// When
		_, err := engine.WeeklySummary(ctx, "missing", "")

		// Then
		if !errors.Is(err, core.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Given the provider fails Then no summary persists", func(t *testing.T) {
		// Given
		store := testutil.NewMockStore()
		seedProject(t, store)
		gen := testutil.NewMockGenerator()
		gen.FailOnSummary = true
		engine := core.NewEngine(store, gen)

		// When
		_, err := engine.WeeklySummary(ctx, "proj-1", "")

		// Then
		if !errors.Is(err, core.ErrGenerationFailed) {
			t.Errorf("expected ErrGenerationFailed, got %v", err)
		}
		if len(store.Summaries) != 0 {
			t.Errorf("expected no persisted summaries, got %d", len(store.Summaries))
		}
	})
}
