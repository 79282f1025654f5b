package core

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// dueSoonWindow is how far ahead a due date still raises a due_soon alert.
const dueSoonWindow = 48 * time.Hour

// ListProjects returns dashboard cards with aggregated milestone state.
func (e *Engine) ListProjects(ctx context.Context) ([]ProjectCard, error) {
	projects, err := e.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}

	today := e.today()
	cards := make([]ProjectCard, 0, len(projects))
	for _, p := range projects {
		milestones, err := e.store.ListMilestones(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("list milestones for %s: %w", p.ID, err)
		}
		team, err := e.store.ListTeamMembers(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("list team for %s: %w", p.ID, err)
		}
		if team == nil {
			team = []TeamMember{}
		}
		cards = append(cards, buildProjectCard(*p, milestones, team, today))
	}
	return cards, nil
}

func buildProjectCard(p Project, milestones []*Milestone, team []TeamMember, today time.Time) ProjectCard {
	total := len(milestones)
	completed := 0
	progressSum := 0
	blockerCount := 0
	overdueCount := 0
	nextDue := ""

	for _, m := range milestones {
		progressSum += m.ProgressPercent
		if m.Status == MilestoneCompleted {
			completed++
			continue
		}
		if m.Status == MilestoneBlocked {
			blockerCount++
		}
		if m.DueDate != "" {
			if due, err := parseDate(m.DueDate); err == nil && due.Before(today) {
				overdueCount++
			}
			if nextDue == "" || m.DueDate < nextDue {
				nextDue = m.DueDate
			}
		}
	}

	progress := 0
	if total > 0 {
		// Round half up, matching the dashboard's integer percentage.
		progress = (progressSum + total/2) / total
	}

	health := "green"
	switch {
	case blockerCount >= 2 || overdueCount > 0:
		health = "red"
	case blockerCount == 1:
		health = "amber"
	}

	p.Milestones = nil
	return ProjectCard{
		Project:             p,
		MilestoneCount:      total,
		CompletedMilestones: completed,
		ProgressPercent:     progress,
		Health:              health,
		NextDueDate:         nextDue,
		TeamMembers:         team,
	}
}

// GetProject returns core project fields.
func (e *Engine) GetProject(ctx context.Context, id string) (*Project, error) {
	return e.store.GetProject(ctx, id)
}

// UpdateProject applies a typed patch to a project's mutable fields.
func (e *Engine) UpdateProject(ctx context.Context, id string, patch ProjectPatch) (*Project, error) {
	if patch.Status != nil {
		if err := validateEnum(*patch.Status, "status", ValidProjectStatuses); err != nil {
			return nil, err
		}
	}
	if patch.StartDate != nil {
		if err := validateDate(*patch.StartDate, "start_date"); err != nil {
			return nil, err
		}
	}
	return e.store.UpdateProject(ctx, id, patch)
}

// DeleteProject hard-deletes a project; related rows go with it via cascades.
func (e *Engine) DeleteProject(ctx context.Context, id string) error {
	return e.store.DeleteProject(ctx, id)
}

// ListMilestones returns a project's milestones in order, with user stories.
func (e *Engine) ListMilestones(ctx context.Context, projectID string) ([]*Milestone, error) {
	return e.store.ListMilestones(ctx, projectID)
}

// CreateMilestone appends a manual milestone after the project's existing ones.
func (e *Engine) CreateMilestone(ctx context.Context, projectID, name, description, dueDate string) (*Milestone, error) {
	if strings.TrimSpace(name) == "" {
		return nil, requiredError("name")
	}
	if strings.TrimSpace(dueDate) == "" {
		return nil, requiredError("due_date")
	}
	if err := validateDate(dueDate, "due_date"); err != nil {
		return nil, err
	}

	existing, err := e.store.ListMilestones(ctx, projectID)
	if err != nil {
		return nil, err
	}
	nextIndex := 0
	for _, m := range existing {
		if m.OrderIndex >= nextIndex {
			nextIndex = m.OrderIndex + 1
		}
	}

	milestone := &Milestone{
		ID:              e.ids.GenerateID(),
		ProjectID:       projectID,
		Name:            name,
		Description:     description,
		Status:          MilestoneNotStarted,
		ProgressPercent: 0,
		DueDate:         dueDate,
		OrderIndex:      nextIndex,
	}
	if err := e.store.CreateMilestone(ctx, milestone); err != nil {
		return nil, err
	}
	return milestone, nil
}

// GetMilestone returns a milestone with its user stories and updates.
func (e *Engine) GetMilestone(ctx context.Context, id string) (*Milestone, error) {
	return e.store.GetMilestone(ctx, id)
}

// UpdateMilestone applies a typed patch. Discrete progress values are enforced
// before anything reaches the store.
func (e *Engine) UpdateMilestone(ctx context.Context, id string, patch MilestonePatch) (*Milestone, error) {
	if patch.Status != nil {
		if err := validateEnum(*patch.Status, "status", ValidMilestoneStatuses); err != nil {
			return nil, err
		}
	}
	if patch.ProgressPercent != nil {
		if err := validateProgress(*patch.ProgressPercent); err != nil {
			return nil, err
		}
	}
	if patch.DueDate != nil {
		if err := validateDate(*patch.DueDate, "due_date"); err != nil {
			return nil, err
		}
	}
	return e.store.UpdateMilestone(ctx, id, patch)
}

// DeleteMilestone hard-deletes a milestone and its dependents.
func (e *Engine) DeleteMilestone(ctx context.Context, id string) error {
	return e.store.DeleteMilestone(ctx, id)
}

// MilestoneOrder is one entry of a reorder request.
type MilestoneOrder struct {
	ID         string `json:"id"`
	OrderIndex int    `json:"order_index"`
}

// ReorderMilestones persists a caller-supplied milestone ordering.
func (e *Engine) ReorderMilestones(ctx context.Context, projectID string, order []MilestoneOrder) error {
	if len(order) == 0 {
		return requiredError("order")
	}
	return e.store.WithinTx(ctx, func(tx Store) error {
		for _, item := range order {
			if err := tx.SetMilestoneOrder(ctx, projectID, item.ID, item.OrderIndex); err != nil {
				return err
			}
		}
		return nil
	})
}

// LogUpdate records an activity entry against a milestone.
func (e *Engine) LogUpdate(ctx context.Context, milestoneID, updateType, content string, loggedAt *time.Time) (*Update, error) {
	if strings.TrimSpace(updateType) == "" {
		return nil, requiredError("update_type")
	}
	if strings.TrimSpace(content) == "" {
		return nil, requiredError("content")
	}
	if err := validateEnum(updateType, "update_type", ValidUpdateTypes); err != nil {
		return nil, err
	}

	milestone, err := e.store.GetMilestone(ctx, milestoneID)
	if err != nil {
		return nil, err
	}

	when := e.now()
	if loggedAt != nil {
		when = *loggedAt
	}

	update := &Update{
		ID:            e.ids.GenerateID(),
		MilestoneID:   milestoneID,
		UpdateType:    updateType,
		Content:       content,
		LoggedAt:      when,
		MilestoneName: milestone.Name,
	}
	if err := e.store.CreateUpdate(ctx, update); err != nil {
		return nil, err
	}
	return update, nil
}

// ProjectUpdates returns the paginated activity feed across all milestones.
func (e *Engine) ProjectUpdates(ctx context.Context, projectID string, page, perPage int) ([]Update, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	return e.store.ListProjectUpdates(ctx, projectID, perPage, (page-1)*perPage)
}

// CreateUserStory appends a manual story to a milestone.
func (e *Engine) CreateUserStory(ctx context.Context, milestoneID, title, description string) (*UserStory, error) {
	if strings.TrimSpace(title) == "" {
		return nil, requiredError("title")
	}

	milestone, err := e.store.GetMilestone(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	nextIndex := 0
	for _, s := range milestone.UserStories {
		if s.OrderIndex >= nextIndex {
			nextIndex = s.OrderIndex + 1
		}
	}

	story := &UserStory{
		ID:          e.ids.GenerateID(),
		MilestoneID: milestoneID,
		Title:       title,
		Description: description,
		IsCompleted: false,
		OrderIndex:  nextIndex,
	}
	if err := e.store.CreateUserStory(ctx, story); err != nil {
		return nil, err
	}
	return story, nil
}

// UpdateUserStory toggles completion or edits title/description.
func (e *Engine) UpdateUserStory(ctx context.Context, id string, patch StoryPatch) (*UserStory, error) {
	if patch.Title == nil && patch.Description == nil && patch.IsCompleted == nil {
		return nil, &ValidationError{Field: "user_story", Message: "has no valid fields to update"}
	}
	return e.store.UpdateUserStory(ctx, id, patch)
}

// DeleteUserStory hard-deletes a story.
func (e *Engine) DeleteUserStory(ctx context.Context, id string) error {
	return e.store.DeleteUserStory(ctx, id)
}

// Notifications computes overdue, due-soon, and blocker alerts for a project.
func (e *Engine) Notifications(ctx context.Context, projectID string) ([]Notification, error) {
	milestones, err := e.store.ListMilestones(ctx, projectID)
	if err != nil {
		return nil, err
	}

	today := e.today()
	soonThreshold := today.Add(dueSoonWindow)
	notifications := []Notification{}

	for _, m := range milestones {
		if m.Status == MilestoneCompleted || m.DueDate == "" {
			continue
		}
		due, err := parseDate(m.DueDate)
		if err != nil {
			continue
		}

		switch {
		case due.Before(today):
			notifications = append(notifications, Notification{
				Type:          "overdue",
				MilestoneID:   m.ID,
				MilestoneName: m.Name,
				DueDate:       m.DueDate,
				Message:       fmt.Sprintf("'%s' is past due (%s)", m.Name, m.DueDate),
			})
		case !due.After(soonThreshold):
			notifications = append(notifications, Notification{
				Type:          "due_soon",
				MilestoneID:   m.ID,
				MilestoneName: m.Name,
				DueDate:       m.DueDate,
				Message:       fmt.Sprintf("'%s' is due soon (%s)", m.Name, m.DueDate),
			})
		}
	}

	for _, m := range milestones {
		if m.Status == MilestoneBlocked {
			notifications = append(notifications, Notification{
				Type:          "blocker",
				MilestoneID:   m.ID,
				MilestoneName: m.Name,
				Message:       fmt.Sprintf("'%s' is blocked", m.Name),
			})
		}
	}

	return notifications, nil
}

// ListTeamMembers returns a project's team.
func (e *Engine) ListTeamMembers(ctx context.Context, projectID string) ([]TeamMember, error) {
	return e.store.ListTeamMembers(ctx, projectID)
}

// defaultAvatarColor is applied when a new member does not pick one.
const defaultAvatarColor = "#2563EB"

// AddTeamMember attaches a person to a project.
func (e *Engine) AddTeamMember(ctx context.Context, projectID, name, role, avatarColor string) (*TeamMember, error) {
	if strings.TrimSpace(name) == "" {
		return nil, requiredError("name")
	}
	if strings.TrimSpace(role) == "" {
		return nil, requiredError("role")
	}
	if avatarColor == "" {
		avatarColor = defaultAvatarColor
	}

	member := &TeamMember{
		ID:          e.ids.GenerateID(),
		ProjectID:   projectID,
		Name:        name,
		Role:        role,
		AvatarColor: avatarColor,
		CreatedAt:   e.now(),
	}
	if err := e.store.CreateTeamMember(ctx, member); err != nil {
		return nil, err
	}
	return member, nil
}

// UpdateTeamMember edits a member's name, role, or avatar color.
func (e *Engine) UpdateTeamMember(ctx context.Context, id string, patch TeamMemberPatch) (*TeamMember, error) {
	if patch.Name == nil && patch.Role == nil && patch.AvatarColor == nil {
		return nil, &ValidationError{Field: "team_member", Message: "has no valid fields to update"}
	}
	return e.store.UpdateTeamMember(ctx, id, patch)
}

// DeleteTeamMember removes a member; milestone assignments are cleared by the store.
func (e *Engine) DeleteTeamMember(ctx context.Context, id string) error {
	return e.store.DeleteTeamMember(ctx, id)
}

const (
	// searchLimit caps hits per entity type on keyword search.
	searchLimit = 5

	// searchTitleLen caps update titles, counted in characters.
	searchTitleLen = 60
)

// Search runs a keyword search across projects, milestones, and updates.
// Queries shorter than two characters return no results.
func (e *Engine) Search(ctx context.Context, query string) ([]SearchResult, error) {
	q := strings.TrimSpace(query)
	if len(q) < 2 {
		return []SearchResult{}, nil
	}

	projects, err := e.store.SearchProjects(ctx, q, searchLimit)
	if err != nil {
		return nil, err
	}
	milestones, err := e.store.SearchMilestones(ctx, q, searchLimit)
	if err != nil {
		return nil, err
	}
	updates, err := e.store.SearchUpdates(ctx, q, searchLimit)
	if err != nil {
		return nil, err
	}

	results := []SearchResult{}
	for _, p := range projects {
		results = append(results, SearchResult{
			Type:     "project",
			ID:       p.ID,
			Title:    p.Name,
			Subtitle: "Status: " + humanizeStatus(p.Status),
		})
	}
	for _, m := range milestones {
		results = append(results, SearchResult{
			Type:      "milestone",
			ID:        m.ID,
			ProjectID: m.ProjectID,
			Title:     m.Name,
			Subtitle:  "Status: " + humanizeStatus(m.Status),
		})
	}
	for _, u := range updates {
		title := u.Content
		if utf8.RuneCountInString(title) > searchTitleLen {
			title = truncateRunes(title, searchTitleLen) + "..."
		}
		results = append(results, SearchResult{
			Type:        "update",
			ID:          u.ID,
			MilestoneID: u.MilestoneID,
			Title:       title,
			Subtitle:    "Update type: " + humanizeStatus(u.UpdateType),
		})
	}

	return results, nil
}

// humanizeStatus renders an enum value for display: underscores become spaces
// and the first letter is capitalized.
func humanizeStatus(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
