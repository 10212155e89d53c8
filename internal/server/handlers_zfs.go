package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListDatasets handles GET /api/v1/datasets.
func (s *Server) ListDatasets(c *gin.Context) {
	listResult := s.datasets.List(c.Request.Context(), c.Query("pool"))
	if listResult.IsErr() {
		s.errorResponse(c, listResult.Err())
		return
	}
	c.JSON(http.StatusOK, gin.H{"datasets": listResult.Must()})
}

// GetDataset handles GET /api/v1/datasets/:name.
func (s *Server) GetDataset(c *gin.Context) {
	getResult := s.datasets.Get(c.Request.Context(), c.Param("name"))
	if getResult.IsErr() {
		s.errorResponse(c, getResult.Err())
		return
	}
	c.JSON(http.StatusOK, getResult.Must())
}

type createDatasetRequest struct {
	Name       string            `json:"name" binding:"required"`
	Properties map[string]string `json:"properties"`
}

// CreateDataset handles POST /api/v1/datasets.
func (s *Server) CreateDataset(c *gin.Context) {
	var req createDatasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": err.Error()})
		return
	}
	createResult := s.datasets.Create(c.Request.Context(), req.Name, req.Properties)
	if createResult.IsErr() {
		s.errorResponse(c, createResult.Err())
		return
	}
	c.JSON(http.StatusOK, createResult.Must())
}

// DestroyDataset handles DELETE /api/v1/datasets/:name.
func (s *Server) DestroyDataset(c *gin.Context) {
	_, force := c.GetQuery("force")
	_, recursive := c.GetQuery("recursive")
	destroyResult := s.datasets.Destroy(c.Request.Context(), c.Param("name"), force, recursive)
	if destroyResult.IsErr() {
		s.errorResponse(c, destroyResult.Err())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "destroyed"})
}

// ListSnapshots handles GET /api/v1/snapshots.
func (s *Server) ListSnapshots(c *gin.Context) {
	_, recursive := c.GetQuery("recursive")
	listResult := s.snapshots.List(c.Request.Context(), c.Query("dataset"), recursive)
	if listResult.IsErr() {
		s.errorResponse(c, listResult.Err())
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": listResult.Must()})
}

type createSnapshotRequest struct {
	Dataset   string `json:"dataset" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Recursive bool   `json:"recursive"`
}

// CreateSnapshot handles POST /api/v1/snapshots.
func (s *Server) CreateSnapshot(c *gin.Context) {
	var req createSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": err.Error()})
		return
	}
	createResult := s.snapshots.Create(c.Request.Context(), req.Dataset, req.Name, req.Recursive)
	if createResult.IsErr() {
		s.errorResponse(c, createResult.Err())
		return
	}
	c.JSON(http.StatusOK, createResult.Must())
}

// DestroySnapshot handles DELETE /api/v1/snapshots/:dataset/:name.
func (s *Server) DestroySnapshot(c *gin.Context) {
	_, force := c.GetQuery("force")
	_, recursive := c.GetQuery("recursive")
	destroyResult := s.snapshots.Destroy(c.Request.Context(), c.Param("dataset"), c.Param("name"), force, recursive)
	if destroyResult.IsErr() {
		s.errorResponse(c, destroyResult.Err())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "destroyed"})
}

// ListPools handles GET /api/v1/pools.
func (s *Server) ListPools(c *gin.Context) {
	listResult := s.pools.List(c.Request.Context(), c.Query("name"))
	if listResult.IsErr() {
		s.errorResponse(c, listResult.Err())
		return
	}
	c.JSON(http.StatusOK, gin.H{"pools": listResult.Must()})
}

// GetPool handles GET /api/v1/pools/:name.
func (s *Server) GetPool(c *gin.Context) {
	getResult := s.pools.Get(c.Request.Context(), c.Param("name"))
	if getResult.IsErr() {
		s.errorResponse(c, getResult.Err())
		return
	}
	c.JSON(http.StatusOK, getResult.Must())
}

// GetPoolStatus handles GET /api/v1/pools/:name/status.
func (s *Server) GetPoolStatus(c *gin.Context) {
	statusResult := s.pools.GetStatus(c.Request.Context(), c.Param("name"))
	if statusResult.IsErr() {
		s.errorResponse(c, statusResult.Err())
		return
	}
	c.JSON(http.StatusOK, statusResult.Must())
}
