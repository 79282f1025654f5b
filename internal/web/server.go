// Package web exposes the engine over a JSON HTTP API.
package web

import (
	"github.com/gin-gonic/gin"

	"github.com/scopecraft/scopecraft/internal/core"
)

// Server is the Scopecraft web server
type Server struct {
	engine *core.Engine
	router *gin.Engine
}

// NewServer creates a new web server
func NewServer(engine *core.Engine) *Server {
	router := gin.Default()

	s := &Server{
		engine: engine,
		router: router,
	}

	api := router.Group("/api")
	{
		api.GET("/health", s.handleHealth)

		api.POST("/scopes", s.handleGenerateScope)
		api.GET("/scopes", s.handleListScopes)
		api.GET("/scopes/:id", s.handleGetScope)
		api.PATCH("/scopes/:id", s.handleUpdateScope)
		api.DELETE("/scopes/:id", s.handleArchiveScope)
		api.POST("/scopes/:id/convert", s.handleConvertScope)

		api.GET("/projects", s.handleListProjects)
		api.GET("/projects/:id", s.handleGetProject)
		api.PATCH("/projects/:id", s.handleUpdateProject)
		api.DELETE("/projects/:id", s.handleDeleteProject)

		api.GET("/projects/:id/milestones", s.handleListMilestones)
		api.POST("/projects/:id/milestones", s.handleCreateMilestone)
		api.PUT("/projects/:id/milestones/reorder", s.handleReorderMilestones)
		api.GET("/projects/:id/updates", s.handleProjectUpdates)
		api.GET("/projects/:id/notifications", s.handleNotifications)

		api.POST("/projects/:id/summaries", s.handleGenerateSummary)
		api.GET("/projects/:id/summaries", s.handleListSummaries)

		api.GET("/projects/:id/team", s.handleListTeam)
		api.POST("/projects/:id/team", s.handleAddTeamMember)
		api.PATCH("/team/:id", s.handleUpdateTeamMember)
		api.DELETE("/team/:id", s.handleDeleteTeamMember)

		api.GET("/milestones/:id", s.handleGetMilestone)
		api.PATCH("/milestones/:id", s.handleUpdateMilestone)
		api.DELETE("/milestones/:id", s.handleDeleteMilestone)
		api.POST("/milestones/:id/updates", s.handleLogUpdate)
		api.POST("/milestones/:id/stories", s.handleCreateStory)

		api.PATCH("/stories/:id", s.handleUpdateStory)
		api.DELETE("/stories/:id", s.handleDeleteStory)

		api.GET("/search", s.handleSearch)
	}

	return s
}

// Run starts the web server
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
