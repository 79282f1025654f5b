// Package storage implements the persistence contract on SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/scopecraft/scopecraft/internal/core"
)

// querier is satisfied by both *sql.DB and *sql.Tx, so every query method
// works identically inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store handles SQLite persistence for all entities.
type Store struct {
	db *sql.DB
	q  querier
}

var _ core.Store = (*Store)(nil)

// NewStore opens (creating if needed) the SQLite database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	// Expand ~ in path
	if strings.HasPrefix(dbPath, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	store := &Store{db: db, q: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// migrate creates the necessary tables
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS scopes (
			id TEXT PRIMARY KEY,
			product_name TEXT NOT NULL,
			idea_text TEXT NOT NULL,
			target_audience TEXT NOT NULL DEFAULT '',
			budget_range TEXT NOT NULL DEFAULT '',
			timeline_pressure TEXT NOT NULL DEFAULT '',
			ai_output_raw TEXT NOT NULL DEFAULT '',
			suggested_stack TEXT NOT NULL DEFAULT '[]',
			timeline_weeks INTEGER NOT NULL DEFAULT 0,
			risks TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL DEFAULT 'draft',
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS epics (
			id TEXT PRIMARY KEY,
			scope_id TEXT NOT NULL REFERENCES scopes(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			effort_days INTEGER NOT NULL DEFAULT 0,
			order_index INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			scope_id TEXT REFERENCES scopes(id) ON DELETE SET NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			start_date TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active',
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS team_members (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT '',
			avatar_color TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS milestones (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			epic_id TEXT REFERENCES epics(id) ON DELETE SET NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'not_started',
			progress_percent INTEGER NOT NULL DEFAULT 0,
			start_date TEXT NOT NULL DEFAULT '',
			due_date TEXT NOT NULL DEFAULT '',
			assigned_to TEXT REFERENCES team_members(id) ON DELETE SET NULL,
			order_index INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS user_stories (
			id TEXT PRIMARY KEY,
			epic_id TEXT REFERENCES epics(id) ON DELETE CASCADE,
			milestone_id TEXT REFERENCES milestones(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			is_completed INTEGER NOT NULL DEFAULT 0,
			order_index INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS updates (
			id TEXT PRIMARY KEY,
			milestone_id TEXT NOT NULL REFERENCES milestones(id) ON DELETE CASCADE,
			update_type TEXT NOT NULL,
			content TEXT NOT NULL,
			logged_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS summaries (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			tone TEXT NOT NULL,
			week_start TEXT NOT NULL,
			generated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS generation_log (
			id TEXT PRIMARY KEY,
			operation TEXT NOT NULL,
			attempt INTEGER NOT NULL,
			prompt_snippet TEXT NOT NULL,
			outcome TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			timestamp DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_epics_scope ON epics(scope_id);
		CREATE INDEX IF NOT EXISTS idx_stories_epic ON user_stories(epic_id);
		CREATE INDEX IF NOT EXISTS idx_stories_milestone ON user_stories(milestone_id);
		CREATE INDEX IF NOT EXISTS idx_milestones_project ON milestones(project_id);
		CREATE INDEX IF NOT EXISTS idx_updates_milestone ON updates(milestone_id);
		CREATE INDEX IF NOT EXISTS idx_summaries_project ON summaries(project_id);
		CREATE INDEX IF NOT EXISTS idx_team_project ON team_members(project_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// WithinTx runs fn against a transaction-backed view of the store. Nested
// calls reuse the enclosing transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(core.Store) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	view := &Store{db: s.db, q: tx}
	if err := fn(view); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// nullable maps empty strings to NULL for foreign-key columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func fromNull(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// CreateScope inserts the scope row only; epics and stories are separate rows.
func (s *Store) CreateScope(ctx context.Context, scope *core.Scope) error {
	stackJSON, _ := json.Marshal(scope.SuggestedStack)
	risksJSON, _ := json.Marshal(scope.Risks)

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO scopes (id, product_name, idea_text, target_audience, budget_range,
			timeline_pressure, ai_output_raw, suggested_stack, timeline_weeks, risks, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, scope.ID, scope.ProductName, scope.IdeaText, scope.TargetAudience, scope.BudgetRange,
		scope.TimelinePressure, scope.RawOutput, string(stackJSON), scope.TimelineWeeks,
		string(risksJSON), scope.Status, scope.CreatedAt)

	return err
}

// CreateEpic inserts an epic row.
func (s *Store) CreateEpic(ctx context.Context, epic *core.Epic) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO epics (id, scope_id, name, description, effort_days, order_index)
		VALUES (?, ?, ?, ?, ?, ?)
	`, epic.ID, epic.ScopeID, epic.Name, epic.Description, epic.EffortDays, epic.OrderIndex)

	return err
}

// CreateUserStory inserts a story row under exactly one parent.
func (s *Store) CreateUserStory(ctx context.Context, story *core.UserStory) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO user_stories (id, epic_id, milestone_id, title, description, is_completed, order_index)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, story.ID, nullable(story.EpicID), nullable(story.MilestoneID),
		story.Title, story.Description, story.IsCompleted, story.OrderIndex)

	return err
}

// GetScope retrieves a scope with nested epics and user stories.
func (s *Store) GetScope(ctx context.Context, id string) (*core.Scope, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, product_name, idea_text, target_audience, budget_range, timeline_pressure,
			ai_output_raw, suggested_stack, timeline_weeks, risks, status, created_at
		FROM scopes WHERE id = ?
	`, id)

	var scope core.Scope
	var stackJSON, risksJSON string

	err := row.Scan(&scope.ID, &scope.ProductName, &scope.IdeaText, &scope.TargetAudience,
		&scope.BudgetRange, &scope.TimelinePressure, &scope.RawOutput, &stackJSON,
		&scope.TimelineWeeks, &risksJSON, &scope.Status, &scope.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("scope %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}

	json.Unmarshal([]byte(stackJSON), &scope.SuggestedStack)
	json.Unmarshal([]byte(risksJSON), &scope.Risks)

	epicRows, err := s.q.QueryContext(ctx, `
		SELECT id, scope_id, name, description, effort_days, order_index
		FROM epics WHERE scope_id = ? ORDER BY order_index ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer epicRows.Close()

	for epicRows.Next() {
		var epic core.Epic
		if err := epicRows.Scan(&epic.ID, &epic.ScopeID, &epic.Name, &epic.Description,
			&epic.EffortDays, &epic.OrderIndex); err != nil {
			return nil, err
		}
		scope.Epics = append(scope.Epics, epic)
	}
	if err := epicRows.Err(); err != nil {
		return nil, err
	}

	for i := range scope.Epics {
		stories, err := s.listStories(ctx, "epic_id", scope.Epics[i].ID)
		if err != nil {
			return nil, err
		}
		scope.Epics[i].UserStories = stories
	}

	return &scope, nil
}

func (s *Store) listStories(ctx context.Context, parentColumn, parentID string) ([]core.UserStory, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, epic_id, milestone_id, title, description, is_completed, order_index
		FROM user_stories WHERE `+parentColumn+` = ? ORDER BY order_index ASC
	`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stories []core.UserStory
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, err
		}
		stories = append(stories, *story)
	}
	return stories, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStory(row rowScanner) (*core.UserStory, error) {
	var story core.UserStory
	var epicID, milestoneID sql.NullString

	err := row.Scan(&story.ID, &epicID, &milestoneID, &story.Title,
		&story.Description, &story.IsCompleted, &story.OrderIndex)
	if err != nil {
		return nil, err
	}

	story.EpicID = fromNull(epicID)
	story.MilestoneID = fromNull(milestoneID)
	return &story, nil
}

// ListScopes returns scope summaries ordered by creation descending.
func (s *Store) ListScopes(ctx context.Context) ([]core.ScopeSummary, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, product_name, idea_text, status, created_at
		FROM scopes ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []core.ScopeSummary
	for rows.Next() {
		var sum core.ScopeSummary
		if err := rows.Scan(&sum.ID, &sum.ProductName, &sum.IdeaText, &sum.Status, &sum.CreatedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// UpdateScope applies a typed patch and returns the updated nested scope.
func (s *Store) UpdateScope(ctx context.Context, id string, patch core.ScopePatch) (*core.Scope, error) {
	sets := []string{}
	args := []any{}

	if patch.ProductName != nil {
		sets = append(sets, "product_name = ?")
		args = append(args, *patch.ProductName)
	}
	if patch.IdeaText != nil {
		sets = append(sets, "idea_text = ?")
		args = append(args, *patch.IdeaText)
	}
	if patch.TargetAudience != nil {
		sets = append(sets, "target_audience = ?")
		args = append(args, *patch.TargetAudience)
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *patch.Status)
	}

	if len(sets) > 0 {
		args = append(args, id)
		res, err := s.q.ExecContext(ctx, "UPDATE scopes SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, fmt.Errorf("scope %s: %w", id, core.ErrNotFound)
		}
	}

	return s.GetScope(ctx, id)
}

// SetScopeStatus updates only the scope status.
func (s *Store) SetScopeStatus(ctx context.Context, id, status string) error {
	res, err := s.q.ExecContext(ctx, "UPDATE scopes SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("scope %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// ReparentEpicStories moves all of an epic's stories to a milestone, clearing
// epic ownership.
func (s *Store) ReparentEpicStories(ctx context.Context, epicID, milestoneID string) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE user_stories SET milestone_id = ?, epic_id = NULL WHERE epic_id = ?
	`, milestoneID, epicID)
	return err
}

// UpdateUserStory applies a typed patch to a story.
func (s *Store) UpdateUserStory(ctx context.Context, id string, patch core.StoryPatch) (*core.UserStory, error) {
	sets := []string{}
	args := []any{}

	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.IsCompleted != nil {
		sets = append(sets, "is_completed = ?")
		args = append(args, *patch.IsCompleted)
	}

	if len(sets) > 0 {
		args = append(args, id)
		res, err := s.q.ExecContext(ctx, "UPDATE user_stories SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, fmt.Errorf("user story %s: %w", id, core.ErrNotFound)
		}
	}

	row := s.q.QueryRowContext(ctx, `
		SELECT id, epic_id, milestone_id, title, description, is_completed, order_index
		FROM user_stories WHERE id = ?
	`, id)
	story, err := scanStory(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user story %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}
	return story, nil
}

// DeleteUserStory hard-deletes a story.
func (s *Store) DeleteUserStory(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM user_stories WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user story %s: %w", id, core.ErrNotFound)
	}
	return nil
}
