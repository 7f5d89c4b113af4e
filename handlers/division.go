package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/palateclub/palate/services"
)

type DivisionHandler struct {
	DivisionService *services.DivisionService
}

func NewDivisionHandler(divisionService *services.DivisionService) *DivisionHandler {
	return &DivisionHandler{DivisionService: divisionService}
}

// Assign places a contest participant into a division. Re-assigning moves
// the user's division roles from their current division.
func (h *DivisionHandler) Assign(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	granted, err := h.DivisionService.Assign(c.Request.Context(),
		c.GetString("user_id"), c.Param("team_id"), c.Param("division_id"), req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": req.UserID,
		"roles":   granted,
	})
}

// Unassign removes a user from a division
func (h *DivisionHandler) Unassign(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.DivisionService.Unassign(c.Request.Context(),
		c.GetString("user_id"), c.Param("team_id"), c.Param("division_id"), req.UserID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User unassigned"})
}

// CopyParticipants copies all participants from one contest into another
func (h *DivisionHandler) CopyParticipants(c *gin.Context) {
	var req struct {
		ToContestID string `json:"to_contest_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.DivisionService.CopyParticipants(c.Request.Context(),
		c.GetString("user_id"), c.Param("team_id"), req.ToContestID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
