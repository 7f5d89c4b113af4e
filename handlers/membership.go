package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/palateclub/palate/roles"
	"github.com/palateclub/palate/services"
)

type MembershipHandler struct {
	MembershipService *services.MembershipService
}

func NewMembershipHandler(membershipService *services.MembershipService) *MembershipHandler {
	return &MembershipHandler{MembershipService: membershipService}
}

// JOIN REQUESTS

// RequestJoin opens a join request for a requestable role on a team
func (h *MembershipHandler) RequestJoin(c *gin.Context) {
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	action, err := h.MembershipService.RequestJoin(c.Request.Context(),
		c.GetString("user_id"), c.Param("team_id"), roles.Role(req.Role))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, action)
}

// CancelJoin withdraws the caller's own pending join request
func (h *MembershipHandler) CancelJoin(c *gin.Context) {
	if err := h.MembershipService.CancelJoin(c.Request.Context(),
		c.GetString("user_id"), c.Param("team_id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Join request cancelled"})
}

// ListJoinRequests lists a team's pending join requests (managers only)
func (h *MembershipHandler) ListJoinRequests(c *gin.Context) {
	actions, err := h.MembershipService.ListJoinRequests(c.Request.Context(),
		c.GetString("user_id"), c.Param("team_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"requests": actions,
		"total":    len(actions),
	})
}

// DecideJoin approves or declines a pending join request (managers only)
func (h *MembershipHandler) DecideJoin(c *gin.Context) {
	var req struct {
		Decision string `json:"decision" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	action, err := h.MembershipService.DecideJoin(c.Request.Context(),
		c.GetString("user_id"), c.Param("team_id"), c.Param("action_id"), req.Decision)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, action)
}

// INVITES

// Invite invites a batch of users by email
func (h *MembershipHandler) Invite(c *gin.Context) {
	var req struct {
		Role   string   `json:"role" binding:"required"`
		Emails []string `json:"emails" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.MembershipService.Invite(c.Request.Context(),
		c.GetString("user_id"), c.Param("team_id"), roles.Role(req.Role), req.Emails)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// ListInvites lists a team's pending invites (managers only)
func (h *MembershipHandler) ListInvites(c *gin.Context) {
	actions, err := h.MembershipService.ListInvites(c.Request.Context(),
		c.GetString("user_id"), c.Param("team_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"invites": actions,
		"total":   len(actions),
	})
}

// RespondInvite lets the invitee accept or decline their own invite
func (h *MembershipHandler) RespondInvite(c *gin.Context) {
	var req struct {
		Decision string `json:"decision" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	action, err := h.MembershipService.RespondInvite(c.Request.Context(),
		c.GetString("user_id"), c.Param("team_id"), c.Param("action_id"), req.Decision)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, action)
}

// WithdrawInvite removes a pending invite entirely (managers only)
func (h *MembershipHandler) WithdrawInvite(c *gin.Context) {
	if err := h.MembershipService.WithdrawInvite(c.Request.Context(),
		c.GetString("user_id"), c.Param("team_id"), c.Param("action_id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Invite withdrawn"})
}

// DIRECT MEMBERSHIP

// Grant grants a role to a user directly (managers only)
func (h *MembershipHandler) Grant(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
		Role   string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.MembershipService.Grant(c.Request.Context(),
		c.GetString("user_id"), c.Param("team_id"), req.UserID, roles.Role(req.Role)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Role granted"})
}

// Revoke removes a role from a user (managers only, owner role excluded)
func (h *MembershipHandler) Revoke(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
		Role   string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.MembershipService.Revoke(c.Request.Context(),
		c.GetString("user_id"), c.Param("team_id"), req.UserID, roles.Role(req.Role)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Role revoked"})
}

// Leave removes all of the caller's roles on a team
func (h *MembershipHandler) Leave(c *gin.Context) {
	if err := h.MembershipService.Leave(c.Request.Context(),
		c.GetString("user_id"), c.Param("team_id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left team"})
}
