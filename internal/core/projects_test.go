package core_test

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/scopecraft/scopecraft/internal/core"
	"github.com/scopecraft/scopecraft/internal/testutil"
)

func addMilestone(t *testing.T, store *testutil.MockStore, id, status string, progress int, dueDate string, order int) {
	t.Helper()
	err := store.CreateMilestone(context.Background(), &core.Milestone{
		ID: id, ProjectID: "proj-1", Name: "Milestone " + id,
		Status: status, ProgressPercent: progress, DueDate: dueDate, OrderIndex: order,
	})
	if err != nil {
		t.Fatalf("seed milestone %s: %v", id, err)
	}
}

// =============================================================================
// Test: ListProjects (dashboard cards)
// =============================================================================

func TestEngine_ListProjects(t *testing.T) {
	ctx := context.Background()

	newEngine := func(store *testutil.MockStore) *core.Engine {
		return core.NewEngineWithDeps(core.EngineDeps{
			Store:     store,
			Generator: testutil.NewMockGenerator(),
			Now:       testutil.FixedClock("2024-03-15"),
		})
	}

	t.Run("Given healthy milestones Then the card is green with averaged progress", func(t *testing.T) {
		// Given
		store := testutil.NewMockStore()
		seedProject(t, store)
		store.Milestones = map[string]*core.Milestone{}
		addMilestone(t, store, "ms-1", core.MilestoneCompleted, 100, "2024-03-10", 0)
		addMilestone(t, store, "ms-2", core.MilestoneInProgress, 50, "2024-03-20", 1)
		addMilestone(t, store, "ms-3", core.MilestoneNotStarted, 0, "2024-03-25", 2)

		// When
		cards, err := newEngine(store).ListProjects(ctx)

		// Then
		if err != nil {
			t.Fatalf("ListProjects failed: %v", err)
		}
		if len(cards) != 1 {
			t.Fatalf("expected 1 card, got %d", len(cards))
		}
		card := cards[0]
		if card.Health != "green" {
			t.Errorf("expected green health, got %s", card.Health)
		}
		if card.MilestoneCount != 3 || card.CompletedMilestones != 1 {
			t.Errorf("expected 3 milestones 1 completed, got %d/%d", card.MilestoneCount, card.CompletedMilestones)
		}
		if card.ProgressPercent != 50 {
			t.Errorf("expected 50%% progress, got %d", card.ProgressPercent)
		}
		if card.NextDueDate != "2024-03-20" {
			t.Errorf("expected next due 2024-03-20, got %s", card.NextDueDate)
		}
	})

	t.Run("Given one blocked milestone Then the card is amber", func(t *testing.T) {
		// Given
		store := testutil.NewMockStore()
		seedProject(t, store)
		store.Milestones = map[string]*core.Milestone{}
		addMilestone(t, store, "ms-1", core.MilestoneBlocked, 25, "2024-03-20", 0)

		// When
		cards, err := newEngine(store).ListProjects(ctx)

		// Then
		if err != nil {
			t.Fatalf("ListProjects failed: %v", err)
		}
		if cards[0].Health != "amber" {
			t.Errorf("expected amber health, got %s", cards[0].Health)
		}
	})

	t.Run("Given two blocked milestones Then the card is red", func(t *testing.T) {
		// Given
		store := testutil.NewMockStore()
		seedProject(t, store)
		store.Milestones = map[string]*core.Milestone{}
		addMilestone(t, store, "ms-1", core.MilestoneBlocked, 0, "2024-03-20", 0)
		addMilestone(t, store, "ms-2", core.MilestoneBlocked, 0, "2024-03-22", 1)

		// When
		cards, err := newEngine(store).ListProjects(ctx)

		// Then
		if err != nil {
			t.Fatalf("ListProjects failed: %v", err)
		}
		if cards[0].Health != "red" {
			t.Errorf("expected red health, got %s", cards[0].Health)
		}
	})

	t.Run("Given an overdue milestone Then the card is red", func(t *testing.T) {
		// Given
		store := testutil.NewMockStore()
		seedProject(t, store)
		store.Milestones = map[string]*core.Milestone{}
		addMilestone(t, store, "ms-1", core.MilestoneInProgress, 50, "2024-03-10", 0)

		// When
		cards, err := newEngine(store).ListProjects(ctx)

		// Then
		if err != nil {
			t.Fatalf("ListProjects failed: %v", err)
		}
		if cards[0].Health != "red" {
			t.Errorf("expected red health, got %s", cards[0].Health)
		}
	})

	t.Run("Given a completed overdue milestone Then it does not count against health", func(t *testing.T) {
		// Given
		store := testutil.NewMockStore()
		seedProject(t, store)
		store.Milestones = map[string]*core.Milestone{}
		addMilestone(t, store, "ms-1", core.MilestoneCompleted, 100, "2024-03-01", 0)

		// When
		cards, err := newEngine(store).ListProjects(ctx)

		// Then
		if err != nil {
			t.Fatalf("ListProjects failed: %v", err)
		}
		if cards[0].Health != "green" {
			t.Errorf("expected green health, got %s", cards[0].Health)
		}
	})
}

// =============================================================================
// Test: Notifications
// =============================================================================

func TestEngine_Notifications(t *testing.T) {
	ctx := context.Background()

	t.Run("Given overdue, imminent, and blocked milestones Then each raises its alert", func(t *testing.T) {
		// Given
		store := testutil.NewMockStore()
		seedProject(t, store)
		store.Milestones = map[string]*core.Milestone{}
		addMilestone(t, store, "ms-late", core.MilestoneInProgress, 25, "2024-03-10", 0)
		addMilestone(t, store, "ms-soon", core.MilestoneInProgress, 50, "2024-03-16", 1)
		addMilestone(t, store, "ms-blocked", core.MilestoneBlocked, 0, "2024-04-01", 2)
		addMilestone(t, store, "ms-fine", core.MilestoneNotStarted, 0, "2024-04-10", 3)
		engine := core.NewEngineWithDeps(core.EngineDeps{
			Store:     store,
			Generator: testutil.NewMockGenerator(),
			Now:       testutil.FixedClock("2024-03-15"),
		})

		// When
		notifications, err := engine.Notifications(ctx, "proj-1")

		// Then
		if err != nil {
			t.Fatalf("Notifications failed: %v", err)
		}
		if len(notifications) != 3 {
			t.Fatalf("expected 3 notifications, got %d", len(notifications))
		}

		byType := map[string]core.Notification{}
		for _, n := range notifications {
			byType[n.Type] = n
		}
		if n, ok := byType["overdue"]; !ok || n.MilestoneID != "ms-late" {
			t.Errorf("expected overdue alert for ms-late, got %+v", byType["overdue"])
		}
		if n, ok := byType["due_soon"]; !ok || n.MilestoneID != "ms-soon" {
			t.Errorf("expected due_soon alert for ms-soon, got %+v", byType["due_soon"])
		}
		if n, ok := byType["blocker"]; !ok || n.MilestoneID != "ms-blocked" {
			t.Errorf("expected blocker alert for ms-blocked, got %+v", byType["blocker"])
		}
	})

	t.Run("Given a completed milestone past due Then no alert is raised", func(t *testing.T) {
		// Given
		store := testutil.NewMockStore()
		seedProject(t, store)
		store.Milestones = map[string]*core.Milestone{}
		addMilestone(t, store, "ms-1", core.MilestoneCompleted, 100, "2024-03-01", 0)
		engine := core.NewEngineWithDeps(core.EngineDeps{
			Store:     store,
			Generator: testutil.NewMockGenerator(),
			Now:       testutil.FixedClock("2024-03-15"),
		})

		// When
		notifications, err := engine.Notifications(ctx, "proj-1")

		// Then
		if err != nil {
			t.Fatalf("Notifications failed: %v", err)
		}
		if len(notifications) != 0 {
			t.Errorf("expected no notifications, got %d", len(notifications))
		}
	})
}

// =============================================================================
// Test: Milestones and updates
// =============================================================================

func TestEngine_Milestones(t *testing.T) {
	ctx := context.Background()

	t.Run("Given existing milestones When one is created Then it lands after them", func(t *testing.T) {
		// Given
		store := testutil.NewMockStore()
		seedProject(t, store)
		addMilestone(t, store, "ms-2", core.MilestoneNotStarted, 0, "2024-04-01", 4)
		engine := core.NewEngine(store, testutil.NewMockGenerator())

		// When
		milestone, err := engine.CreateMilestone(ctx, "proj-1", "Launch", "Go live", "2024-05-01")

		// Then
		if err != nil {
			t.Fatalf("CreateMilestone failed: %v", err)
		}
		if milestone.OrderIndex != 5 {
			t.Errorf("expected order index 5, got %d", milestone.OrderIndex)
		}
		if milestone.Status != core.MilestoneNotStarted {
			t.Errorf("expected not_started status, got %s", milestone.Status)
		}
	})

	t.Run("Given a progress value off the scale When patched Then fails with a validation error", func(t *testing.T) {
		// Given
		store := testutil.NewMockStore()
		seedProject(t, store)
		engine := core.NewEngine(store, testutil.NewMockGenerator())
		progress := 33

		// When
		_, err := engine.UpdateMilestone(ctx, "ms-1", core.MilestonePatch{ProgressPercent: &progress})

		// Then
		if !core.IsValidation(err) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("Given a reorder request Then every milestone takes its new index", func(t *testing.T) {
		// Given
		store := testutil.NewMockStore()
		seedProject(t, store)
		addMilestone(t, store, "ms-2", core.MilestoneNotStarted, 0, "2024-04-01", 1)
		engine := core.NewEngine(store, testutil.NewMockGenerator())

		// When
		err := engine.ReorderMilestones(ctx, "proj-1", []core.MilestoneOrder{
			{ID: "ms-1", OrderIndex: 1},
			{ID: "ms-2", OrderIndex: 0},
		})

		// Then
		if err != nil {
			t.Fatalf("ReorderMilestones failed: %v", err)
		}
		if store.Milestones["ms-1"].OrderIndex != 1 || store.Milestones["ms-2"].OrderIndex != 0 {
			t.Errorf("unexpected order: ms-1=%d ms-2=%d",
				store.Milestones["ms-1"].OrderIndex, store.Milestones["ms-2"].OrderIndex)
		}
	})

	t.Run("Given an update When logged Then it carries the milestone name", func(t *testing.T) {
		// Given
		store := testutil.NewMockStore()
		seedProject(t, store)
		engine := core.NewEngine(store, testutil.NewMockGenerator())

		// When
		update, err := engine.LogUpdate(ctx, "ms-1", core.UpdateTypeBlocker, "Waiting on API keys", nil)

		// Then
		if err != nil {
			t.Fatalf("LogUpdate failed: %v", err)
		}
		if update.MilestoneName != "Foundation" {
			t.Errorf("expected milestone name Foundation, got %s", update.MilestoneName)
		}
	})

	t.Run("Given an unknown update type When logged Then fails with a validation error", func(t *testing.T) {
		// Given
		store := testutil.NewMockStore()
		seedProject(t, store)
		engine := core.NewEngine(store, testutil.NewMockGenerator())

		// When
		_, err := engine.LogUpdate(ctx, "ms-1", "celebration", "We shipped", nil)

		// Then
		if !core.IsValidation(err) {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}

// =============================================================================
// Test: Team and search
// =============================================================================

func TestEngine_Team(t *testing.T) {
	ctx := context.Background()

	t.Run("Given no avatar color When a member is added Then the default applies", func(t *testing.T) {
		// Given
		store := testutil.NewMockStore()
		seedProject(t, store)
		engine := core.NewEngine(store, testutil.NewMockGenerator())

		// When
		member, err := engine.AddTeamMember(ctx, "proj-1", "Sam", "Engineer", "")

		// Then
		if err != nil {
			t.Fatalf("AddTeamMember failed: %v", err)
		}
		if member.AvatarColor != "#2563EB" {
			t.Errorf("expected default avatar color, got %s", member.AvatarColor)
		}
	})

	t.Run("Given an empty patch When a member is updated Then fails with a validation error", func(t *testing.T) {
		// Given
		store := testutil.NewMockStore()
		engine := core.NewEngine(store, testutil.NewMockGenerator())

		// When
		_, err := engine.UpdateTeamMember(ctx, "tm-1", core.TeamMemberPatch{})

		// Then
		if !core.IsValidation(err) {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}

func TestEngine_Search(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a one character query Then returns no results without touching the store", func(t *testing.T) {
		// Given
		store := testutil.NewMockStore()
		seedProject(t, store)
		engine := core.NewEngine(store, testutil.NewMockGenerator())

		// When
		results, err := engine.Search(ctx, " a ")

		// Then
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("expected no results, got %d", len(results))
		}
	})

	t.Run("Given matches across entity types Then results are grouped with humanized subtitles", func(t *testing.T) {
		// Given
		store := testutil.NewMockStore()
		seedProject(t, store)
		store.CreateUpdate(ctx, &core.Update{
			ID: "upd-1", MilestoneID: "ms-1", UpdateType: core.UpdateTypeProgress,
			Content: "Foundation work is underway",
		})
		engine := core.NewEngine(store, testutil.NewMockGenerator())

		// When
		results, err := engine.Search(ctx, "foundation")

		// Then
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(results))
		}
		byType := map[string]core.SearchResult{}
		for _, r := range results {
			byType[r.Type] = r
		}
		if ms, ok := byType["milestone"]; !ok || ms.Subtitle != "Status: In progress" {
			t.Errorf("unexpected milestone result: %+v", byType["milestone"])
		}
		if upd, ok := byType["update"]; !ok || upd.Subtitle != "Update type: Progress" {
			t.Errorf("unexpected update result: %+v", byType["update"])
		}
	})

	t.Run("Given a long multibyte update Then the title cap counts characters and keeps valid UTF-8", func(t *testing.T) {
		// Given
		store := testutil.NewMockStore()
		seedProject(t, store)
		store.CreateUpdate(ctx, &core.Update{
			ID: "upd-1", MilestoneID: "ms-1", UpdateType: core.UpdateTypeNote,
			Content: "naming note: " + strings.Repeat("ü", 80),
		})
		engine := core.NewEngine(store, testutil.NewMockGenerator())

		// When
		results, err := engine.Search(ctx, "naming")

		// Then
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("expected 1 result, got %d", len(results))
		}
		title := results[0].Title
		if !utf8.ValidString(title) {
			t.Errorf("title is not valid UTF-8: %q", title)
		}
		if !strings.HasSuffix(title, "ü...") {
			t.Errorf("expected an intact boundary character before the ellipsis, got %q", title)
		}
		if got := utf8.RuneCountInString(strings.TrimSuffix(title, "...")); got != 60 {
			t.Errorf("expected 60 characters before the ellipsis, got %d", got)
		}
	})
}
