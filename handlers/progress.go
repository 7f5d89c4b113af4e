package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/palateclub/palate/roles"
	"github.com/palateclub/palate/services"
)

// ProgressHandler serves tasting progress and statements. Routes using it
// run behind the team-resolving middleware, which provides the team and the
// caller's role set.
type ProgressHandler struct {
	ProgressService *services.ProgressService
}

func NewProgressHandler(progressService *services.ProgressService) *ProgressHandler {
	return &ProgressHandler{ProgressService: progressService}
}

// GetProgress returns per-theme tasting progress scoped to the caller's
// standing on the team
func (h *ProgressHandler) GetProgress(c *gin.Context) {
	team := roles.TeamFrom(c)
	set := roles.RoleSetFrom(c)

	progress, err := h.ProgressService.Aggregate(c.Request.Context(), team, c.GetString("user_id"), set)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"team_id":  team.ID,
		"progress": progress,
	})
}

// RecordStatement records or updates a tasting statement for an impression
func (h *ProgressHandler) RecordStatement(c *gin.Context) {
	var req struct {
		ImpressionID string `json:"impression_id" binding:"required"`
		Verdict      string `json:"verdict" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	statement, err := h.ProgressService.RecordStatement(c.Request.Context(),
		c.GetString("user_id"), roles.TeamFrom(c), req.ImpressionID, req.Verdict)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, statement)
}

// AssignCollection links a collection to the team for tasting
func (h *ProgressHandler) AssignCollection(c *gin.Context) {
	var req struct {
		CollectionID string `json:"collection_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.ProgressService.AssignCollection(c.Request.Context(),
		c.GetString("user_id"), roles.TeamFrom(c), req.CollectionID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Collection assigned"})
}
