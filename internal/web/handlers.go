package web

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/scopecraft/scopecraft/internal/core"
)

// bindStrict decodes the request body into v, rejecting unknown fields so a
// misspelled patch key fails loudly instead of silently doing nothing.
func bindStrict(c *gin.Context, v any) error {
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// fail translates engine errors into the API error envelope. Unexpected
// errors are logged server side and surface as a generic message.
func fail(c *gin.Context, err error) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "code": "validation_error"})
	case errors.Is(err, core.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found", "code": "not_found"})
	case errors.Is(err, core.ErrAlreadyConverted):
		c.JSON(http.StatusConflict, gin.H{"error": "scope has already been converted", "code": "already_converted"})
	case errors.Is(err, core.ErrGenerationFailed):
		c.JSON(http.StatusInternalServerError, gin.H{"error": core.ErrGenerationFailed.Error(), "code": "generation_failed"})
	default:
		log.Printf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "code": "internal_error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": "validation_error"})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Scope handlers

func (s *Server) handleGenerateScope(c *gin.Context) {
	var req core.ScopeRequest
	if err := bindStrict(c, &req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	scope, err := s.engine.GenerateScope(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"scope": scope})
}

func (s *Server) handleListScopes(c *gin.Context) {
	scopes, err := s.engine.ListScopes(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if scopes == nil {
		scopes = []core.ScopeSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"scopes": scopes})
}

func (s *Server) handleGetScope(c *gin.Context) {
	scope, err := s.engine.GetScope(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scope": scope})
}

func (s *Server) handleUpdateScope(c *gin.Context) {
	var patch core.ScopePatch
	if err := bindStrict(c, &patch); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	scope, err := s.engine.UpdateScope(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scope": scope})
}

func (s *Server) handleArchiveScope(c *gin.Context) {
	scope, err := s.engine.ArchiveScope(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scope": scope})
}

func (s *Server) handleConvertScope(c *gin.Context) {
	var req struct {
		StartDate string `json:"start_date"`
	}
	// An empty body means "start today". ContentLength is unreliable for
	// chunked requests, so decode and accept EOF as absence.
	if err := bindStrict(c, &req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	project, err := s.engine.ConvertScope(c.Request.Context(), c.Param("id"), req.StartDate)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"project": project})
}

// Project handlers

func (s *Server) handleListProjects(c *gin.Context) {
	cards, err := s.engine.ListProjects(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": cards})
}

func (s *Server) handleGetProject(c *gin.Context) {
	project, err := s.engine.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project})
}

func (s *Server) handleUpdateProject(c *gin.Context) {
	var patch core.ProjectPatch
	if err := bindStrict(c, &patch); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	project, err := s.engine.UpdateProject(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project})
}

func (s *Server) handleDeleteProject(c *gin.Context) {
	if err := s.engine.DeleteProject(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// Milestone handlers

func (s *Server) handleListMilestones(c *gin.Context) {
	milestones, err := s.engine.ListMilestones(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if milestones == nil {
		milestones = []*core.Milestone{}
	}
	c.JSON(http.StatusOK, gin.H{"milestones": milestones})
}

func (s *Server) handleCreateMilestone(c *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		DueDate     string `json:"due_date"`
	}
	if err := bindStrict(c, &req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	milestone, err := s.engine.CreateMilestone(c.Request.Context(), c.Param("id"), req.Name, req.Description, req.DueDate)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"milestone": milestone})
}

func (s *Server) handleReorderMilestones(c *gin.Context) {
	var req struct {
		Order []core.MilestoneOrder `json:"order"`
	}
	if err := bindStrict(c, &req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	if err := s.engine.ReorderMilestones(c.Request.Context(), c.Param("id"), req.Order); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reordered": true})
}

func (s *Server) handleGetMilestone(c *gin.Context) {
	milestone, err := s.engine.GetMilestone(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"milestone": milestone})
}

func (s *Server) handleUpdateMilestone(c *gin.Context) {
	var patch core.MilestonePatch
	if err := bindStrict(c, &patch); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	milestone, err := s.engine.UpdateMilestone(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"milestone": milestone})
}

func (s *Server) handleDeleteMilestone(c *gin.Context) {
	if err := s.engine.DeleteMilestone(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// Update handlers

func (s *Server) handleLogUpdate(c *gin.Context) {
	var req struct {
		UpdateType string     `json:"update_type"`
		Content    string     `json:"content"`
		LoggedAt   *time.Time `json:"logged_at"`
	}
	if err := bindStrict(c, &req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	update, err := s.engine.LogUpdate(c.Request.Context(), c.Param("id"), req.UpdateType, req.Content, req.LoggedAt)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"update": update})
}

func (s *Server) handleProjectUpdates(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	updates, err := s.engine.ProjectUpdates(c.Request.Context(), c.Param("id"), page, perPage)
	if err != nil {
		fail(c, err)
		return
	}
	if updates == nil {
		updates = []core.Update{}
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	c.JSON(http.StatusOK, gin.H{"updates": updates, "page": page, "per_page": perPage})
}

// Story handlers

func (s *Server) handleCreateStory(c *gin.Context) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := bindStrict(c, &req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	story, err := s.engine.CreateUserStory(c.Request.Context(), c.Param("id"), req.Title, req.Description)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user_story": story})
}

func (s *Server) handleUpdateStory(c *gin.Context) {
	var patch core.StoryPatch
	if err := bindStrict(c, &patch); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	story, err := s.engine.UpdateUserStory(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_story": story})
}

func (s *Server) handleDeleteStory(c *gin.Context) {
	if err := s.engine.DeleteUserStory(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// Summary handlers

func (s *Server) handleGenerateSummary(c *gin.Context) {
	var req struct {
		Tone string `json:"tone"`
	}
	// An empty body picks the default tone.
	if err := bindStrict(c, &req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	summary, err := s.engine.WeeklySummary(c.Request.Context(), c.Param("id"), req.Tone)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"summary": summary})
}

func (s *Server) handleListSummaries(c *gin.Context) {
	summaries, err := s.engine.ListSummaries(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if summaries == nil {
		summaries = []core.Summary{}
	}
	c.JSON(http.StatusOK, gin.H{"summaries": summaries})
}

// Notification handler

func (s *Server) handleNotifications(c *gin.Context) {
	notifications, err := s.engine.Notifications(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// Team handlers

func (s *Server) handleListTeam(c *gin.Context) {
	members, err := s.engine.ListTeamMembers(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if members == nil {
		members = []core.TeamMember{}
	}
	c.JSON(http.StatusOK, gin.H{"team_members": members})
}

func (s *Server) handleAddTeamMember(c *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		Role        string `json:"role"`
		AvatarColor string `json:"avatar_color"`
	}
	if err := bindStrict(c, &req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	member, err := s.engine.AddTeamMember(c.Request.Context(), c.Param("id"), req.Name, req.Role, req.AvatarColor)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"team_member": member})
}

func (s *Server) handleUpdateTeamMember(c *gin.Context) {
	var patch core.TeamMemberPatch
	if err := bindStrict(c, &patch); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	member, err := s.engine.UpdateTeamMember(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"team_member": member})
}

func (s *Server) handleDeleteTeamMember(c *gin.Context) {
	if err := s.engine.DeleteTeamMember(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// Search handler

func (s *Server) handleSearch(c *gin.Context) {
	results, err := s.engine.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
