package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/palateclub/palate/services"
)

type UserHandler struct {
	IdentityService *services.IdentityService
	PushService     *services.PushService
}

func NewUserHandler(identityService *services.IdentityService, pushService *services.PushService) *UserHandler {
	return &UserHandler{
		IdentityService: identityService,
		PushService:     pushService,
	}
}

// GetMe returns the authenticated user's profile
func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := h.IdentityService.Get(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// GetUserByHandle looks up a user's public profile by handle
func (h *UserHandler) GetUserByHandle(c *gin.Context) {
	user, err := h.IdentityService.GetByHandle(c.Request.Context(), c.Param("handle"))
	if err != nil {
		respondError(c, err)
		return
	}

	// Public lookups never expose contact details
	user.Email = ""
	user.FCMToken = ""

	c.JSON(http.StatusOK, user)
}

// UpdateFCMToken stores the caller's device token for push notifications
func (h *UserHandler) UpdateFCMToken(c *gin.Context) {
	var req struct {
		FCMToken string `json:"fcm_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.PushService.UpdateUserFCMToken(c.GetString("user_id"), req.FCMToken); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "FCM token updated"})
}
