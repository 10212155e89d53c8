package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/transdock/transdock/internal/migration"
	"github.com/transdock/transdock/internal/result"
)

// errorResponse renders a result.Error per the §7 status mapping.
func (s *Server) errorResponse(c *gin.Context, err *result.Error) {
	c.JSON(err.HTTPStatus(), gin.H{
		"error":   err.Code,
		"message": err.Message,
		"details": err.Details,
	})
}

type createMigrationRequest struct {
	Name               string `json:"name" binding:"required"`
	ComposeStackPath   string `json:"compose_stack_path" binding:"required"`
	TargetHost         string `json:"target_host" binding:"required"`
	TargetPort         int    `json:"target_port"`
	TargetUsername     string `json:"target_username"`
	TargetBasePath     string `json:"target_base_path" binding:"required"`
	UseZFS             *bool  `json:"use_zfs"`
	TransferMethod     string `json:"transfer_method"`
	SourceHost         string `json:"source_host"`
	SourcePort         int    `json:"source_port"`
	SourceUsername     string `json:"source_username"`
}

// CreateMigration handles POST /api/migrations.
func (s *Server) CreateMigration(c *gin.Context) {
	var req createMigrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": err.Error()})
		return
	}

	targetPort := req.TargetPort
	if targetPort == 0 {
		targetPort = 22
	}
	targetUsername := req.TargetUsername
	if targetUsername == "" {
		targetUsername = "root"
	}

	targetHostResult := migration.NewHostConnection(req.TargetHost, targetUsername, targetPort)
	if targetHostResult.IsErr() {
		s.errorResponse(c, targetHostResult.Err())
		return
	}

	var sourceHost *migration.HostConnection
	if req.SourceHost != "" {
		sourcePort := req.SourcePort
		if sourcePort == 0 {
			sourcePort = 22
		}
		sourceUsername := req.SourceUsername
		if sourceUsername == "" {
			sourceUsername = "root"
		}
		sourceHostResult := migration.NewHostConnection(req.SourceHost, sourceUsername, sourcePort)
		if sourceHostResult.IsErr() {
			s.errorResponse(c, sourceHostResult.Err())
			return
		}
		h := sourceHostResult.Must()
		sourceHost = &h
	}

	useZFS := true
	if req.UseZFS != nil {
		useZFS = *req.UseZFS
	}
	transferMethod := req.TransferMethod
	if transferMethod == "" {
		transferMethod = "zfs_send"
	}

	createResult := s.orchestrator.Create(req.Name, req.ComposeStackPath, targetHostResult.Must(), req.TargetBasePath, useZFS, transferMethod, sourceHost)
	if createResult.IsErr() {
		s.errorResponse(c, createResult.Err())
		return
	}

	c.JSON(http.StatusOK, createResult.Must())
}

// ListMigrations handles GET /api/migrations.
func (s *Server) ListMigrations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"migrations": s.orchestrator.List()})
}

type validateMigrationRequest struct {
	ComposeStackPath string `json:"compose_stack_path" binding:"required"`
	TargetHost       string `json:"target_host" binding:"required"`
	TargetPort       int    `json:"target_port"`
	TargetUsername   string `json:"target_username"`
	TargetBasePath   string `json:"target_base_path" binding:"required"`
}

// ValidateMigration handles POST /api/migrations/validate.
func (s *Server) ValidateMigration(c *gin.Context) {
	var req validateMigrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": err.Error()})
		return
	}

	port := req.TargetPort
	if port == 0 {
		port = 22
	}
	username := req.TargetUsername
	if username == "" {
		username = "root"
	}

	targetHostResult := migration.NewHostConnection(req.TargetHost, username, port)
	if targetHostResult.IsErr() {
		c.JSON(http.StatusOK, gin.H{"valid": false, "errors": []string{targetHostResult.Err().Message}})
		return
	}

	report := s.orchestrator.ValidateRequest(c.Request.Context(), req.ComposeStackPath, targetHostResult.Must(), req.TargetBasePath)
	c.JSON(http.StatusOK, report)
}

// GetMigration handles GET /api/migrations/:id.
func (s *Server) GetMigration(c *gin.Context) {
	getResult := s.orchestrator.Get(c.Param("id"))
	if getResult.IsErr() {
		s.errorResponse(c, getResult.Err())
		return
	}
	c.JSON(http.StatusOK, getResult.Must())
}

// GetMigrationStatus handles GET /api/migrations/:id/status.
func (s *Server) GetMigrationStatus(c *gin.Context) {
	statusResult := s.orchestrator.Status(c.Param("id"))
	if statusResult.IsErr() {
		s.errorResponse(c, statusResult.Err())
		return
	}
	view := statusResult.Must()
	summary := view.Migration.Summary()
	summary["estimated_remaining_seconds"] = view.EstimatedRemainingSeconds
	summary["task_running"] = view.TaskRunning
	c.JSON(http.StatusOK, summary)
}

// StartMigration handles POST /api/migrations/:id/start.
func (s *Server) StartMigration(c *gin.Context) {
	id := c.Param("id")
	startResult := s.orchestrator.Start(c.Request.Context(), id)
	if startResult.IsErr() {
		s.errorResponse(c, startResult.Err())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "started", "migration_id": id})
}

// CancelMigration handles POST /api/migrations/:id/cancel.
func (s *Server) CancelMigration(c *gin.Context) {
	id := c.Param("id")
	cancelResult := s.orchestrator.Cancel(id)
	if cancelResult.IsErr() {
		s.errorResponse(c, cancelResult.Err())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled", "migration_id": id})
}

// DeleteMigration handles DELETE /api/migrations/:id.
func (s *Server) DeleteMigration(c *gin.Context) {
	id := c.Param("id")
	deleteResult := s.orchestrator.Delete(id)
	if deleteResult.IsErr() {
		s.errorResponse(c, deleteResult.Err())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "migration_id": id})
}
