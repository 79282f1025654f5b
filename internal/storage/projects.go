package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/scopecraft/scopecraft/internal/core"
)

// CreateProject inserts a project row.
func (s *Store) CreateProject(ctx context.Context, project *core.Project) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO projects (id, scope_id, name, description, start_date, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, project.ID, nullable(project.ScopeID), project.Name, project.Description,
		project.StartDate, project.Status, project.CreatedAt)

	return err
}

// GetProject retrieves a project with its milestones hydrated.
func (s *Store) GetProject(ctx context.Context, id string) (*core.Project, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, scope_id, name, description, start_date, status, created_at
		FROM projects WHERE id = ?
	`, id)

	project, err := scanProject(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("project %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}

	milestones, err := s.ListMilestones(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, m := range milestones {
		project.Milestones = append(project.Milestones, *m)
	}

	return project, nil
}

func scanProject(row rowScanner) (*core.Project, error) {
	var project core.Project
	var scopeID sql.NullString

	err := row.Scan(&project.ID, &scopeID, &project.Name, &project.Description,
		&project.StartDate, &project.Status, &project.CreatedAt)
	if err != nil {
		return nil, err
	}

	project.ScopeID = fromNull(scopeID)
	return &project, nil
}

// ListProjects returns all projects ordered by creation descending, without
// nested milestones.
func (s *Store) ListProjects(ctx context.Context) ([]*core.Project, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, scope_id, name, description, start_date, status, created_at
		FROM projects ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*core.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// UpdateProject applies a typed patch and returns the updated project.
func (s *Store) UpdateProject(ctx context.Context, id string, patch core.ProjectPatch) (*core.Project, error) {
	sets := []string{}
	args := []any{}

	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *patch.Status)
	}
	if patch.StartDate != nil {
		sets = append(sets, "start_date = ?")
		args = append(args, *patch.StartDate)
	}

	if len(sets) > 0 {
		args = append(args, id)
		res, err := s.q.ExecContext(ctx, "UPDATE projects SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, fmt.Errorf("project %s: %w", id, core.ErrNotFound)
		}
	}

	return s.GetProject(ctx, id)
}

// DeleteProject removes a project; milestones, updates, summaries, and team
// members cascade.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("project %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// CreateMilestone inserts a milestone row.
func (s *Store) CreateMilestone(ctx context.Context, milestone *core.Milestone) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO milestones (id, project_id, epic_id, name, description, status,
			progress_percent, start_date, due_date, assigned_to, order_index)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, milestone.ID, milestone.ProjectID, nullable(milestone.EpicID), milestone.Name,
		milestone.Description, milestone.Status, milestone.ProgressPercent,
		milestone.StartDate, milestone.DueDate, nullable(milestone.AssignedTo),
		milestone.OrderIndex)

	return err
}

func scanMilestone(row rowScanner) (*core.Milestone, error) {
	var m core.Milestone
	var epicID, assignedTo sql.NullString

	err := row.Scan(&m.ID, &m.ProjectID, &epicID, &m.Name, &m.Description, &m.Status,
		&m.ProgressPercent, &m.StartDate, &m.DueDate, &assignedTo, &m.OrderIndex)
	if err != nil {
		return nil, err
	}

	m.EpicID = fromNull(epicID)
	m.AssignedTo = fromNull(assignedTo)
	return &m, nil
}

const milestoneColumns = `id, project_id, epic_id, name, description, status,
	progress_percent, start_date, due_date, assigned_to, order_index`

// GetMilestone retrieves a milestone with its user stories and updates.
func (s *Store) GetMilestone(ctx context.Context, id string) (*core.Milestone, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT "+milestoneColumns+" FROM milestones WHERE id = ?", id)

	milestone, err := scanMilestone(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("milestone %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}

	milestone.UserStories, err = s.listStories(ctx, "milestone_id", id)
	if err != nil {
		return nil, err
	}

	milestone.Updates, err = s.listMilestoneUpdates(ctx, id)
	if err != nil {
		return nil, err
	}

	return milestone, nil
}

// ListMilestones returns a project's milestones ordered by order_index, each
// with its user stories.
func (s *Store) ListMilestones(ctx context.Context, projectID string) ([]*core.Milestone, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+milestoneColumns+" FROM milestones WHERE project_id = ? ORDER BY order_index ASC",
		projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var milestones []*core.Milestone
	for rows.Next() {
		milestone, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		milestones = append(milestones, milestone)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, m := range milestones {
		m.UserStories, err = s.listStories(ctx, "milestone_id", m.ID)
		if err != nil {
			return nil, err
		}
	}

	return milestones, nil
}

// UpdateMilestone applies a typed patch and returns the updated milestone.
func (s *Store) UpdateMilestone(ctx context.Context, id string, patch core.MilestonePatch) (*core.Milestone, error) {
	sets := []string{}
	args := []any{}

	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *patch.Status)
	}
	if patch.ProgressPercent != nil {
		sets = append(sets, "progress_percent = ?")
		args = append(args, *patch.ProgressPercent)
	}
	if patch.DueDate != nil {
		sets = append(sets, "due_date = ?")
		args = append(args, *patch.DueDate)
	}
	if patch.AssignedTo != nil {
		sets = append(sets, "assigned_to = ?")
		args = append(args, nullable(*patch.AssignedTo))
	}

	if len(sets) > 0 {
		args = append(args, id)
		res, err := s.q.ExecContext(ctx, "UPDATE milestones SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, fmt.Errorf("milestone %s: %w", id, core.ErrNotFound)
		}
	}

	return s.GetMilestone(ctx, id)
}

// DeleteMilestone removes a milestone; its stories and updates cascade.
func (s *Store) DeleteMilestone(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM milestones WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("milestone %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// SetMilestoneOrder moves one milestone to a new position within its project.
func (s *Store) SetMilestoneOrder(ctx context.Context, projectID, milestoneID string, orderIndex int) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE milestones SET order_index = ? WHERE id = ? AND project_id = ?
	`, orderIndex, milestoneID, projectID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("milestone %s: %w", milestoneID, core.ErrNotFound)
	}
	return nil
}

// CreateUpdate inserts an activity entry.
func (s *Store) CreateUpdate(ctx context.Context, update *core.Update) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO updates (id, milestone_id, update_type, content, logged_at)
		VALUES (?, ?, ?, ?, ?)
	`, update.ID, update.MilestoneID, update.UpdateType, update.Content, update.LoggedAt)

	return err
}

func (s *Store) listMilestoneUpdates(ctx context.Context, milestoneID string) ([]core.Update, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, milestone_id, update_type, content, logged_at
		FROM updates WHERE milestone_id = ? ORDER BY logged_at DESC
	`, milestoneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var updates []core.Update
	for rows.Next() {
		var u core.Update
		if err := rows.Scan(&u.ID, &u.MilestoneID, &u.UpdateType, &u.Content, &u.LoggedAt); err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

func scanProjectUpdates(rows *sql.Rows) ([]core.Update, error) {
	var updates []core.Update
	for rows.Next() {
		var u core.Update
		if err := rows.Scan(&u.ID, &u.MilestoneID, &u.UpdateType, &u.Content,
			&u.LoggedAt, &u.MilestoneName); err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

// ListProjectUpdates returns updates across a project's milestones, newest
// first, with milestone names attached.
func (s *Store) ListProjectUpdates(ctx context.Context, projectID string, limit, offset int) ([]core.Update, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT u.id, u.milestone_id, u.update_type, u.content, u.logged_at, m.name
		FROM updates u
		JOIN milestones m ON m.id = u.milestone_id
		WHERE m.project_id = ?
		ORDER BY u.logged_at DESC
		LIMIT ? OFFSET ?
	`, projectID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanProjectUpdates(rows)
}

// ListUpdatesSince returns a project's updates logged on or after sinceDate.
func (s *Store) ListUpdatesSince(ctx context.Context, projectID, sinceDate string) ([]core.Update, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT u.id, u.milestone_id, u.update_type, u.content, u.logged_at, m.name
		FROM updates u
		JOIN milestones m ON m.id = u.milestone_id
		WHERE m.project_id = ? AND datetime(u.logged_at) >= datetime(?)
		ORDER BY u.logged_at DESC
	`, projectID, sinceDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanProjectUpdates(rows)
}

// CreateSummary inserts a generated weekly summary.
func (s *Store) CreateSummary(ctx context.Context, summary *core.Summary) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO summaries (id, project_id, content, tone, week_start, generated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, summary.ID, summary.ProjectID, summary.Content, summary.Tone,
		summary.WeekStart, summary.GeneratedAt)

	return err
}

// ListSummaries returns a project's summaries, newest first.
func (s *Store) ListSummaries(ctx context.Context, projectID string) ([]core.Summary, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, project_id, content, tone, week_start, generated_at
		FROM summaries WHERE project_id = ? ORDER BY generated_at DESC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []core.Summary
	for rows.Next() {
		var sum core.Summary
		if err := rows.Scan(&sum.ID, &sum.ProjectID, &sum.Content, &sum.Tone,
			&sum.WeekStart, &sum.GeneratedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// CreateTeamMember inserts a team member row.
func (s *Store) CreateTeamMember(ctx context.Context, member *core.TeamMember) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO team_members (id, project_id, name, role, avatar_color, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, member.ID, member.ProjectID, member.Name, member.Role, member.AvatarColor, member.CreatedAt)

	return err
}

// ListTeamMembers returns a project's members in insertion order.
func (s *Store) ListTeamMembers(ctx context.Context, projectID string) ([]core.TeamMember, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, project_id, name, role, avatar_color, created_at
		FROM team_members WHERE project_id = ? ORDER BY created_at ASC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []core.TeamMember
	for rows.Next() {
		var m core.TeamMember
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Name, &m.Role, &m.AvatarColor, &m.CreatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// UpdateTeamMember applies a typed patch and returns the updated member.
func (s *Store) UpdateTeamMember(ctx context.Context, id string, patch core.TeamMemberPatch) (*core.TeamMember, error) {
	sets := []string{}
	args := []any{}

	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Role != nil {
		sets = append(sets, "role = ?")
		args = append(args, *patch.Role)
	}
	if patch.AvatarColor != nil {
		sets = append(sets, "avatar_color = ?")
		args = append(args, *patch.AvatarColor)
	}

	if len(sets) > 0 {
		args = append(args, id)
		res, err := s.q.ExecContext(ctx, "UPDATE team_members SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, fmt.Errorf("team member %s: %w", id, core.ErrNotFound)
		}
	}

	row := s.q.QueryRowContext(ctx, `
		SELECT id, project_id, name, role, avatar_color, created_at
		FROM team_members WHERE id = ?
	`, id)

	var m core.TeamMember
	err := row.Scan(&m.ID, &m.ProjectID, &m.Name, &m.Role, &m.AvatarColor, &m.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("team member %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}
	return &m, nil
}

// DeleteTeamMember removes a member; milestone assignments are cleared by the
// foreign key.
func (s *Store) DeleteTeamMember(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM team_members WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("team member %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// SearchProjects matches name or description, case-insensitive substring.
func (s *Store) SearchProjects(ctx context.Context, query string, limit int) ([]*core.Project, error) {
	pattern := "%" + query + "%"
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, scope_id, name, description, start_date, status, created_at
		FROM projects WHERE name LIKE ? OR description LIKE ?
		ORDER BY created_at DESC LIMIT ?
	`, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*core.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// SearchMilestones matches name or description, case-insensitive substring.
func (s *Store) SearchMilestones(ctx context.Context, query string, limit int) ([]*core.Milestone, error) {
	pattern := "%" + query + "%"
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+milestoneColumns+` FROM milestones
		WHERE name LIKE ? OR description LIKE ?
		ORDER BY order_index ASC LIMIT ?
	`, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var milestones []*core.Milestone
	for rows.Next() {
		milestone, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		milestones = append(milestones, milestone)
	}
	return milestones, rows.Err()
}

// SearchUpdates matches update content, case-insensitive substring.
func (s *Store) SearchUpdates(ctx context.Context, query string, limit int) ([]core.Update, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT u.id, u.milestone_id, u.update_type, u.content, u.logged_at, m.name
		FROM updates u
		JOIN milestones m ON m.id = u.milestone_id
		WHERE u.content LIKE ?
		ORDER BY u.logged_at DESC LIMIT ?
	`, "%"+query+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanProjectUpdates(rows)
}
