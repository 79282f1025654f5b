package core

import (
	"context"
	"fmt"
	"sort"
)

const (
	// defaultEffortDays sizes milestones for epics with no effort estimate.
	defaultEffortDays = 7

	// maxProjectDescription caps the idea text carried onto the project.
	maxProjectDescription = 500
)

// ConvertScope deterministically transforms a draft scope into a project with
// scheduled milestones. Each epic becomes exactly one milestone; milestone
// windows are strictly back-to-back from the project start date. Every user
// story is reparented from its epic to the corresponding milestone, exactly
// once. The scope ends up converted, which is terminal: converting a converted
// scope fails with ErrAlreadyConverted regardless of the payload.
//
// All rows (project, milestones, reparented stories, scope status) are written
// in one store transaction.
func (e *Engine) ConvertScope(ctx context.Context, scopeID, startDate string) (*Project, error) {
	if err := validateDate(startDate, "start_date"); err != nil {
		return nil, err
	}

	scope, err := e.store.GetScope(ctx, scopeID)
	if err != nil {
		return nil, err
	}
	if scope.Status == ScopeStatusConverted {
		return nil, ErrAlreadyConverted
	}

	projectStart := e.today()
	if startDate != "" {
		projectStart, _ = parseDate(startDate)
	}

	// The cap counts characters, not bytes.
	description := truncateRunes(scope.IdeaText, maxProjectDescription)

	epics := append([]Epic(nil), scope.Epics...)
	sort.SliceStable(epics, func(i, j int) bool {
		return epics[i].OrderIndex < epics[j].OrderIndex
	})

	project := &Project{
		ID:          e.ids.GenerateID(),
		ScopeID:     scopeID,
		Name:        scope.ProductName,
		Description: description,
		StartDate:   projectStart.Format(DateLayout),
		Status:      ProjectStatusActive,
		CreatedAt:   e.now(),
	}

	err = e.store.WithinTx(ctx, func(tx Store) error {
		if err := tx.CreateProject(ctx, project); err != nil {
			return fmt.Errorf("create project: %w", err)
		}

		cursor := projectStart
		for i, epic := range epics {
			effort := epic.EffortDays
			if effort <= 0 {
				effort = defaultEffortDays
			}
			due := cursor.AddDate(0, 0, effort)

			milestone := Milestone{
				ID:              e.ids.GenerateID(),
				ProjectID:       project.ID,
				EpicID:          epic.ID,
				Name:            epic.Name,
				Description:     epic.Description,
				Status:          MilestoneNotStarted,
				ProgressPercent: 0,
				StartDate:       cursor.Format(DateLayout),
				DueDate:         due.Format(DateLayout),
				OrderIndex:      i,
			}
			if err := tx.CreateMilestone(ctx, &milestone); err != nil {
				return fmt.Errorf("create milestone %d: %w", i, err)
			}

			if err := tx.ReparentEpicStories(ctx, epic.ID, milestone.ID); err != nil {
				return fmt.Errorf("reparent stories for milestone %d: %w", i, err)
			}
			milestone.UserStories = reparented(epic.UserStories, milestone.ID)

			project.Milestones = append(project.Milestones, milestone)
			cursor = due
		}

		return tx.SetScopeStatus(ctx, scopeID, ScopeStatusConverted)
	})
	if err != nil {
		return nil, err
	}

	return project, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func reparented(stories []UserStory, milestoneID string) []UserStory {
	out := make([]UserStory, len(stories))
	for i, s := range stories {
		s.EpicID = ""
		s.MilestoneID = milestoneID
		out[i] = s
	}
	return out
}
