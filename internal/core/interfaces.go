package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence contract for all entities.
// Implementations: storage.Store (SQLite)
type Store interface {
	// Scopes hold the generated breakdown: scope row, epic rows, story rows.
	CreateScope(ctx context.Context, scope *Scope) error
	CreateEpic(ctx context.Context, epic *Epic) error
	CreateUserStory(ctx context.Context, story *UserStory) error

	// GetScope hydrates nested epics and their user stories.
	GetScope(ctx context.Context, id string) (*Scope, error)

	// ListScopes returns summaries ordered by creation descending.
	ListScopes(ctx context.Context) ([]ScopeSummary, error)
	UpdateScope(ctx context.Context, id string, patch ScopePatch) (*Scope, error)
	SetScopeStatus(ctx context.Context, id, status string) error

	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)
	UpdateProject(ctx context.Context, id string, patch ProjectPatch) (*Project, error)
	DeleteProject(ctx context.Context, id string) error

	CreateMilestone(ctx context.Context, milestone *Milestone) error

	// GetMilestone hydrates user stories and updates.
	GetMilestone(ctx context.Context, id string) (*Milestone, error)

	// ListMilestones returns a project's milestones ordered by order_index,
	// each with its user stories.
	ListMilestones(ctx context.Context, projectID string) ([]*Milestone, error)
	UpdateMilestone(ctx context.Context, id string, patch MilestonePatch) (*Milestone, error)
	DeleteMilestone(ctx context.Context, id string) error
	SetMilestoneOrder(ctx context.Context, projectID, milestoneID string, orderIndex int) error

	// ReparentEpicStories moves every story owned by the epic to the milestone,
	// clearing epic ownership.
	ReparentEpicStories(ctx context.Context, epicID, milestoneID string) error
	UpdateUserStory(ctx context.Context, id string, patch StoryPatch) (*UserStory, error)
	DeleteUserStory(ctx context.Context, id string) error

	CreateUpdate(ctx context.Context, update *Update) error

	// ListProjectUpdates returns updates across a project's milestones, newest
	// first, with milestone names attached.
	ListProjectUpdates(ctx context.Context, projectID string, limit, offset int) ([]Update, error)

	// ListUpdatesSince returns a project's updates with logged_at on or after
	// the given YYYY-MM-DD date, newest first.
	ListUpdatesSince(ctx context.Context, projectID, sinceDate string) ([]Update, error)

	CreateSummary(ctx context.Context, summary *Summary) error
	ListSummaries(ctx context.Context, projectID string) ([]Summary, error)

	CreateTeamMember(ctx context.Context, member *TeamMember) error
	ListTeamMembers(ctx context.Context, projectID string) ([]TeamMember, error)
	UpdateTeamMember(ctx context.Context, id string, patch TeamMemberPatch) (*TeamMember, error)
	DeleteTeamMember(ctx context.Context, id string) error

	SearchProjects(ctx context.Context, query string, limit int) ([]*Project, error)
	SearchMilestones(ctx context.Context, query string, limit int) ([]*Milestone, error)
	SearchUpdates(ctx context.Context, query string, limit int) ([]Update, error)

	// WithinTx runs fn against a transaction-backed view of the store.
	WithinTx(ctx context.Context, fn func(Store) error) error

	Close() error
}

// Generator invokes the external language-model provider.
// Implementations: llm.Client (Gemini structured output)
type Generator interface {
	// GenerateScope returns a schema-conformant scope breakdown or fails with
	// ErrGenerationFailed after the retry ceiling. Never returns a partial.
	GenerateScope(ctx context.Context, system, user string) (*ScopeOutput, error)

	// GenerateSummary returns prose. Single attempt, no retry.
	GenerateSummary(ctx context.Context, system, user string) (string, error)
}

// DiagnosticLog is the append-only sink for generation attempt records.
// Implementations: storage.Store (generation_log table)
type DiagnosticLog interface {
	Append(ctx context.Context, attempt *GenerationAttempt) error
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	GenerateID() string
}

type uuidGenerator struct{}

func (g *uuidGenerator) GenerateID() string {
	return uuid.New().String()
}

// NewIDGenerator creates the default UUID-based ID generator.
func NewIDGenerator() IDGenerator {
	return &uuidGenerator{}
}

func parseDate(value string) (time.Time, error) {
	return time.Parse(DateLayout, value)
}
