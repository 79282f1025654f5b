// Package testutil provides hand-rolled mocks shared by core and web tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/scopecraft/scopecraft/internal/core"
)

// Common test errors
var (
	ErrMockStore     = errors.New("mock store error")
	ErrMockGenerator = errors.New("mock generator error")
)

// MockStore implements core.Store in memory.
type MockStore struct {
	mu sync.Mutex

	Scopes      map[string]*core.Scope
	Epics       map[string]*core.Epic
	Stories     map[string]*core.UserStory
	Projects    map[string]*core.Project
	Milestones  map[string]*core.Milestone
	Updates     map[string]*core.Update
	Summaries   []core.Summary
	TeamMembers map[string]*core.TeamMember

	FailOnCreateProject   bool
	FailOnCreateMilestone bool
	FailOnCreateSummary   bool
	FailOnSetScopeStatus  bool

	TxCount     int
	TxRollbacks int
	Closed      bool
}

func NewMockStore() *MockStore {
	return &MockStore{
		Scopes:      make(map[string]*core.Scope),
		Epics:       make(map[string]*core.Epic),
		Stories:     make(map[string]*core.UserStory),
		Projects:    make(map[string]*core.Project),
		Milestones:  make(map[string]*core.Milestone),
		Updates:     make(map[string]*core.Update),
		TeamMembers: make(map[string]*core.TeamMember),
	}
}

func (m *MockStore) CreateScope(ctx context.Context, scope *core.Scope) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *scope
	clone.Epics = nil
	m.Scopes[scope.ID] = &clone
	return nil
}

func (m *MockStore) CreateEpic(ctx context.Context, epic *core.Epic) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *epic
	clone.UserStories = nil
	m.Epics[epic.ID] = &clone
	return nil
}

func (m *MockStore) CreateUserStory(ctx context.Context, story *core.UserStory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *story
	m.Stories[story.ID] = &clone
	return nil
}

func (m *MockStore) GetScope(ctx context.Context, id string) (*core.Scope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	scope, ok := m.Scopes[id]
	if !ok {
		return nil, core.ErrNotFound
	}

	result := *scope
	result.Epics = nil
	var epics []*core.Epic
	for _, e := range m.Epics {
		if e.ScopeID == id {
			epics = append(epics, e)
		}
	}
	sort.Slice(epics, func(i, j int) bool { return epics[i].OrderIndex < epics[j].OrderIndex })
	for _, e := range epics {
		epic := *e
		epic.UserStories = m.storiesFor("epic", e.ID)
		result.Epics = append(result.Epics, epic)
	}
	return &result, nil
}

func (m *MockStore) storiesFor(parent, id string) []core.UserStory {
	var stories []core.UserStory
	for _, s := range m.Stories {
		if (parent == "epic" && s.EpicID == id) || (parent == "milestone" && s.MilestoneID == id) {
			stories = append(stories, *s)
		}
	}
	sort.Slice(stories, func(i, j int) bool { return stories[i].OrderIndex < stories[j].OrderIndex })
	return stories
}

func (m *MockStore) ListScopes(ctx context.Context) ([]core.ScopeSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var summaries []core.ScopeSummary
	for _, s := range m.Scopes {
		summaries = append(summaries, core.ScopeSummary{
			ID: s.ID, ProductName: s.ProductName, IdeaText: s.IdeaText,
			Status: s.Status, CreatedAt: s.CreatedAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].CreatedAt.After(summaries[j].CreatedAt) })
	return summaries, nil
}

func (m *MockStore) UpdateScope(ctx context.Context, id string, patch core.ScopePatch) (*core.Scope, error) {
	m.mu.Lock()
	scope, ok := m.Scopes[id]
	if !ok {
		m.mu.Unlock()
		return nil, core.ErrNotFound
	}
	if patch.ProductName != nil {
		scope.ProductName = *patch.ProductName
	}
	if patch.IdeaText != nil {
		scope.IdeaText = *patch.IdeaText
	}
	if patch.TargetAudience != nil {
		scope.TargetAudience = *patch.TargetAudience
	}
	if patch.Status != nil {
		scope.Status = *patch.Status
	}
	m.mu.Unlock()

	return m.GetScope(ctx, id)
}

func (m *MockStore) SetScopeStatus(ctx context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailOnSetScopeStatus {
		return ErrMockStore
	}

	scope, ok := m.Scopes[id]
	if !ok {
		return core.ErrNotFound
	}
	scope.Status = status
	return nil
}

func (m *MockStore) CreateProject(ctx context.Context, project *core.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailOnCreateProject {
		return ErrMockStore
	}

	clone := *project
	clone.Milestones = nil
	m.Projects[project.ID] = &clone
	return nil
}

func (m *MockStore) GetProject(ctx context.Context, id string) (*core.Project, error) {
	m.mu.Lock()
	project, ok := m.Projects[id]
	if !ok {
		m.mu.Unlock()
		return nil, core.ErrNotFound
	}
	result := *project
	m.mu.Unlock()

	milestones, _ := m.ListMilestones(ctx, id)
	for _, ms := range milestones {
		result.Milestones = append(result.Milestones, *ms)
	}
	return &result, nil
}

func (m *MockStore) ListProjects(ctx context.Context) ([]*core.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var projects []*core.Project
	for _, p := range m.Projects {
		clone := *p
		projects = append(projects, &clone)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].CreatedAt.After(projects[j].CreatedAt) })
	return projects, nil
}

func (m *MockStore) UpdateProject(ctx context.Context, id string, patch core.ProjectPatch) (*core.Project, error) {
	m.mu.Lock()
	project, ok := m.Projects[id]
	if !ok {
		m.mu.Unlock()
		return nil, core.ErrNotFound
	}
	if patch.Name != nil {
		project.Name = *patch.Name
	}
	if patch.Description != nil {
		project.Description = *patch.Description
	}
	if patch.Status != nil {
		project.Status = *patch.Status
	}
	if patch.StartDate != nil {
		project.StartDate = *patch.StartDate
	}
	m.mu.Unlock()

	return m.GetProject(ctx, id)
}

func (m *MockStore) DeleteProject(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.Projects[id]; !ok {
		return core.ErrNotFound
	}
	delete(m.Projects, id)
	for mid, ms := range m.Milestones {
		if ms.ProjectID == id {
			delete(m.Milestones, mid)
		}
	}
	return nil
}

func (m *MockStore) CreateMilestone(ctx context.Context, milestone *core.Milestone) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailOnCreateMilestone {
		return ErrMockStore
	}

	clone := *milestone
	clone.UserStories = nil
	clone.Updates = nil
	m.Milestones[milestone.ID] = &clone
	return nil
}

func (m *MockStore) GetMilestone(ctx context.Context, id string) (*core.Milestone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	milestone, ok := m.Milestones[id]
	if !ok {
		return nil, core.ErrNotFound
	}

	result := *milestone
	result.UserStories = m.storiesFor("milestone", id)
	for _, u := range m.Updates {
		if u.MilestoneID == id {
			result.Updates = append(result.Updates, *u)
		}
	}
	return &result, nil
}

func (m *MockStore) ListMilestones(ctx context.Context, projectID string) ([]*core.Milestone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var milestones []*core.Milestone
	for _, ms := range m.Milestones {
		if ms.ProjectID != projectID {
			continue
		}
		clone := *ms
		clone.UserStories = m.storiesFor("milestone", ms.ID)
		milestones = append(milestones, &clone)
	}
	sort.Slice(milestones, func(i, j int) bool { return milestones[i].OrderIndex < milestones[j].OrderIndex })
	return milestones, nil
}

func (m *MockStore) UpdateMilestone(ctx context.Context, id string, patch core.MilestonePatch) (*core.Milestone, error) {
	m.mu.Lock()
	milestone, ok := m.Milestones[id]
	if !ok {
		m.mu.Unlock()
		return nil, core.ErrNotFound
	}
	if patch.Name != nil {
		milestone.Name = *patch.Name
	}
	if patch.Description != nil {
		milestone.Description = *patch.Description
	}
	if patch.Status != nil {
		milestone.Status = *patch.Status
	}
	if patch.ProgressPercent != nil {
		milestone.ProgressPercent = *patch.ProgressPercent
	}
	if patch.DueDate != nil {
		milestone.DueDate = *patch.DueDate
	}
	if patch.AssignedTo != nil {
		milestone.AssignedTo = *patch.AssignedTo
	}
	m.mu.Unlock()

	return m.GetMilestone(ctx, id)
}

func (m *MockStore) DeleteMilestone(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.Milestones[id]; !ok {
		return core.ErrNotFound
	}
	delete(m.Milestones, id)
	return nil
}

func (m *MockStore) SetMilestoneOrder(ctx context.Context, projectID, milestoneID string, orderIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	milestone, ok := m.Milestones[milestoneID]
	if !ok || milestone.ProjectID != projectID {
		return core.ErrNotFound
	}
	milestone.OrderIndex = orderIndex
	return nil
}

func (m *MockStore) ReparentEpicStories(ctx context.Context, epicID, milestoneID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.Stories {
		if s.EpicID == epicID {
			s.EpicID = ""
			s.MilestoneID = milestoneID
		}
	}
	return nil
}

func (m *MockStore) UpdateUserStory(ctx context.Context, id string, patch core.StoryPatch) (*core.UserStory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	story, ok := m.Stories[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	if patch.Title != nil {
		story.Title = *patch.Title
	}
	if patch.Description != nil {
		story.Description = *patch.Description
	}
	if patch.IsCompleted != nil {
		story.IsCompleted = *patch.IsCompleted
	}
	result := *story
	return &result, nil
}

func (m *MockStore) DeleteUserStory(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.Stories[id]; !ok {
		return core.ErrNotFound
	}
	delete(m.Stories, id)
	return nil
}

func (m *MockStore) CreateUpdate(ctx context.Context, update *core.Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *update
	m.Updates[update.ID] = &clone
	return nil
}

func (m *MockStore) projectUpdates(projectID string) []core.Update {
	var updates []core.Update
	for _, u := range m.Updates {
		milestone, ok := m.Milestones[u.MilestoneID]
		if !ok || milestone.ProjectID != projectID {
			continue
		}
		clone := *u
		clone.MilestoneName = milestone.Name
		updates = append(updates, clone)
	}
	sort.Slice(updates, func(i, j int) bool { return updates[i].LoggedAt.After(updates[j].LoggedAt) })
	return updates
}

func (m *MockStore) ListProjectUpdates(ctx context.Context, projectID string, limit, offset int) ([]core.Update, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	updates := m.projectUpdates(projectID)
	if offset >= len(updates) {
		return nil, nil
	}
	updates = updates[offset:]
	if limit > 0 && len(updates) > limit {
		updates = updates[:limit]
	}
	return updates, nil
}

func (m *MockStore) ListUpdatesSince(ctx context.Context, projectID, sinceDate string) ([]core.Update, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	since, err := time.Parse(core.DateLayout, sinceDate)
	if err != nil {
		return nil, err
	}

	var result []core.Update
	for _, u := range m.projectUpdates(projectID) {
		if !u.LoggedAt.Before(since) {
			result = append(result, u)
		}
	}
	return result, nil
}

func (m *MockStore) CreateSummary(ctx context.Context, summary *core.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailOnCreateSummary {
		return ErrMockStore
	}

	m.Summaries = append(m.Summaries, *summary)
	return nil
}

func (m *MockStore) ListSummaries(ctx context.Context, projectID string) ([]core.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []core.Summary
	for _, s := range m.Summaries {
		if s.ProjectID == projectID {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].GeneratedAt.After(result[j].GeneratedAt) })
	return result, nil
}

func (m *MockStore) CreateTeamMember(ctx context.Context, member *core.TeamMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *member
	m.TeamMembers[member.ID] = &clone
	return nil
}

func (m *MockStore) ListTeamMembers(ctx context.Context, projectID string) ([]core.TeamMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var members []core.TeamMember
	for _, tm := range m.TeamMembers {
		if tm.ProjectID == projectID {
			members = append(members, *tm)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].CreatedAt.Before(members[j].CreatedAt) })
	return members, nil
}

func (m *MockStore) UpdateTeamMember(ctx context.Context, id string, patch core.TeamMemberPatch) (*core.TeamMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	member, ok := m.TeamMembers[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	if patch.Name != nil {
		member.Name = *patch.Name
	}
	if patch.Role != nil {
		member.Role = *patch.Role
	}
	if patch.AvatarColor != nil {
		member.AvatarColor = *patch.AvatarColor
	}
	result := *member
	return &result, nil
}

func (m *MockStore) DeleteTeamMember(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.TeamMembers[id]; !ok {
		return core.ErrNotFound
	}
	delete(m.TeamMembers, id)
	return nil
}

func (m *MockStore) SearchProjects(ctx context.Context, query string, limit int) ([]*core.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := strings.ToLower(query)
	var result []*core.Project
	for _, p := range m.Projects {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Description), q) {
			clone := *p
			result = append(result, &clone)
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (m *MockStore) SearchMilestones(ctx context.Context, query string, limit int) ([]*core.Milestone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := strings.ToLower(query)
	var result []*core.Milestone
	for _, ms := range m.Milestones {
		if strings.Contains(strings.ToLower(ms.Name), q) || strings.Contains(strings.ToLower(ms.Description), q) {
			clone := *ms
			result = append(result, &clone)
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (m *MockStore) SearchUpdates(ctx context.Context, query string, limit int) ([]core.Update, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := strings.ToLower(query)
	var result []core.Update
	for _, u := range m.Updates {
		if strings.Contains(strings.ToLower(u.Content), q) {
			clone := *u
			if milestone, ok := m.Milestones[u.MilestoneID]; ok {
				clone.MilestoneName = milestone.Name
			}
			result = append(result, clone)
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

// WithinTx runs fn against the store itself. In-memory state has no
// transaction isolation; TxCount and TxRollbacks record usage.
func (m *MockStore) WithinTx(ctx context.Context, fn func(core.Store) error) error {
	m.mu.Lock()
	m.TxCount++
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.TxRollbacks++
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Closed = true
	return nil
}

// MockGenerator implements core.Generator for testing.
type MockGenerator struct {
	mu sync.Mutex

	ScopeFunc   func(ctx context.Context, system, user string) (*core.ScopeOutput, error)
	SummaryFunc func(ctx context.Context, system, user string) (string, error)

	ScopeCalls    int
	SummaryCalls  int
	LastSystem    string
	LastUser      string
	FailOnScope   bool
	FailOnSummary bool
	Output        *core.ScopeOutput
	SummaryText   string
}

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{SummaryText: "mock summary"}
}

func (m *MockGenerator) GenerateScope(ctx context.Context, system, user string) (*core.ScopeOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ScopeCalls++
	m.LastSystem = system
	m.LastUser = user

	if m.FailOnScope {
		return nil, core.ErrGenerationFailed
	}
	if m.ScopeFunc != nil {
		return m.ScopeFunc(ctx, system, user)
	}
	if m.Output != nil {
		return m.Output, nil
	}

	return &core.ScopeOutput{
		Epics: []core.EpicOutput{
			{
				Name: "Foundation", Description: "Base setup", EffortDays: 5, OrderIndex: 0,
				UserStories: []core.StoryOutput{
					{Title: "As a user, I can sign up", Description: "Account creation", OrderIndex: 0},
				},
			},
		},
		SuggestedStack: []string{"Go", "SQLite"},
		TimelineWeeks:  4,
		Risks:          []core.Risk{{Description: "Scope creep", Severity: "medium"}},
	}, nil
}

func (m *MockGenerator) GenerateSummary(ctx context.Context, system, user string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SummaryCalls++
	m.LastSystem = system
	m.LastUser = user

	if m.FailOnSummary {
		return "", core.ErrGenerationFailed
	}
	if m.SummaryFunc != nil {
		return m.SummaryFunc(ctx, system, user)
	}
	return m.SummaryText, nil
}

// MockDiagnosticLog implements core.DiagnosticLog for testing.
type MockDiagnosticLog struct {
	mu           sync.Mutex
	Attempts     []*core.GenerationAttempt
	FailOnAppend bool
}

func NewMockDiagnosticLog() *MockDiagnosticLog {
	return &MockDiagnosticLog{}
}

func (m *MockDiagnosticLog) Append(ctx context.Context, attempt *core.GenerationAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailOnAppend {
		return ErrMockStore
	}
	m.Attempts = append(m.Attempts, attempt)
	return nil
}

// Records returns a snapshot of appended attempts.
func (m *MockDiagnosticLog) Records() []*core.GenerationAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]*core.GenerationAttempt(nil), m.Attempts...)
}

// MockIDGenerator implements core.IDGenerator with deterministic sequential IDs.
type MockIDGenerator struct {
	mu      sync.Mutex
	Counter int
	Prefix  string
}

func NewMockIDGenerator(prefix string) *MockIDGenerator {
	return &MockIDGenerator{Prefix: prefix}
}

func (m *MockIDGenerator) GenerateID() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Counter++
	if m.Prefix != "" {
		return fmt.Sprintf("%s-%d", m.Prefix, m.Counter)
	}
	return fmt.Sprintf("mock-id-%d", m.Counter)
}

// FixedClock returns a now func pinned to the given date at midnight UTC.
func FixedClock(date string) func() time.Time {
	t, err := time.Parse(core.DateLayout, date)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t.UTC() }
}
