package core

import (
	"time"
)

// DateLayout is the wire format for date-only fields (start_date, due_date, week_start).
const DateLayout = "2006-01-02"

// Scope status constants
const (
	ScopeStatusDraft     = "draft"
	ScopeStatusConverted = "converted"
	ScopeStatusArchived  = "archived"
)

// Project status constants
const (
	ProjectStatusActive    = "active"
	ProjectStatusOnHold    = "on_hold"
	ProjectStatusCompleted = "completed"
	ProjectStatusArchived  = "archived"
)

// Milestone status constants
const (
	MilestoneNotStarted = "not_started"
	MilestoneInProgress = "in_progress"
	MilestoneCompleted  = "completed"
	MilestoneBlocked    = "blocked"
)

// Update type constants
const (
	UpdateTypeProgress  = "progress"
	UpdateTypeBlocker   = "blocker"
	UpdateTypeCompleted = "completed"
	UpdateTypeNote      = "note"
)

// Summary tone constants
const (
	ToneExecutive = "executive"
	ToneTechnical = "technical"
)

// Allowed values for enum-valued request fields
var (
	ValidBudgetRanges      = []string{"low", "medium", "high"}
	ValidTimelinePressures = []string{"asap", "1_3_months", "3_6_months", "flexible"}
	ValidScopeStatuses     = []string{ScopeStatusDraft, ScopeStatusConverted, ScopeStatusArchived}
	ValidProjectStatuses   = []string{ProjectStatusActive, ProjectStatusOnHold, ProjectStatusCompleted, ProjectStatusArchived}
	ValidMilestoneStatuses = []string{MilestoneNotStarted, MilestoneInProgress, MilestoneCompleted, MilestoneBlocked}
	ValidUpdateTypes       = []string{UpdateTypeProgress, UpdateTypeBlocker, UpdateTypeCompleted, UpdateTypeNote}
	ValidSummaryTones      = []string{ToneExecutive, ToneTechnical}

	// Progress is tracked in discrete quarter steps, never continuous.
	ValidProgressValues = []int{0, 25, 50, 75, 100}
)

// Risk is one identified delivery risk on a generated scope.
type Risk struct {
	Description string `json:"description"`
	Severity    string `json:"severity"` // high, medium, low
}

// Scope is a generated or edited breakdown of a product idea.
type Scope struct {
	ID               string    `json:"id"`
	ProductName      string    `json:"product_name"`
	IdeaText         string    `json:"idea_text"`
	TargetAudience   string    `json:"target_audience,omitempty"`
	BudgetRange      string    `json:"budget_range,omitempty"`
	TimelinePressure string    `json:"timeline_pressure,omitempty"`
	RawOutput        string    `json:"ai_output_raw,omitempty"`
	SuggestedStack   []string  `json:"suggested_stack"`
	TimelineWeeks    int       `json:"timeline_weeks"`
	Risks            []Risk    `json:"risks"`
	Status           string    `json:"status"` // draft, converted, archived
	CreatedAt        time.Time `json:"created_at"`
	Epics            []Epic    `json:"epics,omitempty"`
}

// ScopeSummary is the listing view of a scope.
type ScopeSummary struct {
	ID          string    `json:"id"`
	ProductName string    `json:"product_name"`
	IdeaText    string    `json:"idea_text"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Epic is a scoped unit of work under a Scope; becomes exactly one Milestone on conversion.
type Epic struct {
	ID          string      `json:"id"`
	ScopeID     string      `json:"scope_id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	EffortDays  int         `json:"effort_days"`
	OrderIndex  int         `json:"order_index"`
	UserStories []UserStory `json:"user_stories,omitempty"`
}

// UserStory belongs to exactly one of an epic or a milestone, never both.
type UserStory struct {
	ID          string `json:"id"`
	EpicID      string `json:"epic_id,omitempty"`
	MilestoneID string `json:"milestone_id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	IsCompleted bool   `json:"is_completed"`
	OrderIndex  int    `json:"order_index"`
}

// Project is a live delivery project, usually created by converting a scope.
type Project struct {
	ID          string      `json:"id"`
	ScopeID     string      `json:"scope_id,omitempty"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	StartDate   string      `json:"start_date"` // YYYY-MM-DD
	Status      string      `json:"status"`     // active, on_hold, completed, archived
	CreatedAt   time.Time   `json:"created_at"`
	Milestones  []Milestone `json:"milestones,omitempty"`
}

// Milestone is one scheduled slice of a project, derived from an epic on conversion.
type Milestone struct {
	ID              string      `json:"id"`
	ProjectID       string      `json:"project_id"`
	EpicID          string      `json:"epic_id,omitempty"`
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	Status          string      `json:"status"`           // not_started, in_progress, completed, blocked
	ProgressPercent int         `json:"progress_percent"` // 0, 25, 50, 75, 100
	StartDate       string      `json:"start_date,omitempty"`
	DueDate         string      `json:"due_date"`
	AssignedTo      string      `json:"assigned_to,omitempty"`
	OrderIndex      int         `json:"order_index"`
	UserStories     []UserStory `json:"user_stories,omitempty"`
	Updates         []Update    `json:"updates,omitempty"`
}

// Update is one logged activity entry on a milestone.
type Update struct {
	ID            string    `json:"id"`
	MilestoneID   string    `json:"milestone_id"`
	UpdateType    string    `json:"update_type"` // progress, blocker, completed, note
	Content       string    `json:"content"`
	LoggedAt      time.Time `json:"logged_at"`
	MilestoneName string    `json:"milestone_name,omitempty"`
}

// Summary is a generated weekly status report for a project.
type Summary struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Content     string    `json:"content"`
	Tone        string    `json:"tone"` // executive, technical
	WeekStart   string    `json:"week_start"`
	GeneratedAt time.Time `json:"generated_at"`
}

// TeamMember is a person attached to a project.
type TeamMember struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	AvatarColor string    `json:"avatar_color"`
	CreatedAt   time.Time `json:"created_at"`
}

// ScopeRequest carries the inputs to scope generation.
type ScopeRequest struct {
	ProductName      string `json:"product_name"`
	IdeaText         string `json:"idea_text"`
	TargetAudience   string `json:"target_audience,omitempty"`
	BudgetRange      string `json:"budget_range,omitempty"`
	TimelinePressure string `json:"timeline_pressure,omitempty"`
}

// Structured generation output, constrained by the provider response schema.

type StoryOutput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	OrderIndex  int    `json:"order_index"`
}

type EpicOutput struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	EffortDays  int           `json:"effort_days"`
	OrderIndex  int           `json:"order_index"`
	UserStories []StoryOutput `json:"user_stories"`
}

// ScopeOutput is the schema-conformant result of one scope generation.
type ScopeOutput struct {
	Epics          []EpicOutput `json:"epics"`
	SuggestedStack []string     `json:"suggested_stack"`
	TimelineWeeks  int          `json:"timeline_weeks"`
	Risks          []Risk       `json:"risks"`
}

// Typed patch shapes. Each enumerates exactly the mutable fields of its entity;
// nil means "leave unchanged". Unknown fields are rejected at the HTTP boundary.

type ScopePatch struct {
	ProductName    *string `json:"product_name,omitempty"`
	IdeaText       *string `json:"idea_text,omitempty"`
	TargetAudience *string `json:"target_audience,omitempty"`
	Status         *string `json:"status,omitempty"`
}

type ProjectPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	StartDate   *string `json:"start_date,omitempty"`
}

type MilestonePatch struct {
	Name            *string `json:"name,omitempty"`
	Description     *string `json:"description,omitempty"`
	Status          *string `json:"status,omitempty"`
	ProgressPercent *int    `json:"progress_percent,omitempty"`
	DueDate         *string `json:"due_date,omitempty"`
	AssignedTo      *string `json:"assigned_to,omitempty"`
}

type StoryPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	IsCompleted *bool   `json:"is_completed,omitempty"`
}

type TeamMemberPatch struct {
	Name        *string `json:"name,omitempty"`
	Role        *string `json:"role,omitempty"`
	AvatarColor *string `json:"avatar_color,omitempty"`
}

// ProjectCard is the dashboard view of a project with aggregated milestone state.
type ProjectCard struct {
	Project
	MilestoneCount      int          `json:"milestone_count"`
	CompletedMilestones int          `json:"completed_milestones"`
	ProgressPercent     int          `json:"progress_percent"`
	Health              string       `json:"health"` // green, amber, red
	NextDueDate         string       `json:"next_due_date,omitempty"`
	TeamMembers         []TeamMember `json:"team_members"`
}

// Notification is a computed milestone alert.
type Notification struct {
	Type          string `json:"type"` // overdue, due_soon, blocker
	MilestoneID   string `json:"milestone_id"`
	MilestoneName string `json:"milestone_name"`
	DueDate       string `json:"due_date,omitempty"`
	Message       string `json:"message"`
}

// SearchResult is one hit from keyword search, grouped by entity type.
type SearchResult struct {
	Type        string `json:"type"` // project, milestone, update
	ID          string `json:"id"`
	ProjectID   string `json:"project_id,omitempty"`
	MilestoneID string `json:"milestone_id,omitempty"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
}

// GenerationAttempt is one appended diagnostic record for a provider round trip.
type GenerationAttempt struct {
	ID            string    `json:"id"`
	Operation     string    `json:"operation"` // scope, summary
	Attempt       int       `json:"attempt"`
	PromptSnippet string    `json:"prompt_snippet"`
	Outcome       string    `json:"outcome"` // ok, error
	Detail        string    `json:"detail,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
