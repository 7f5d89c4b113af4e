package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/palateclub/palate/roles"
	"github.com/palateclub/palate/services"
)

type TeamHandler struct {
	TeamService *services.TeamService
	Resolver    *roles.Resolver
}

func NewTeamHandler(teamService *services.TeamService, resolver *roles.Resolver) *TeamHandler {
	return &TeamHandler{
		TeamService: teamService,
		Resolver:    resolver,
	}
}

// CreateTeam creates a traditional team, a contest or a division
func (h *TeamHandler) CreateTeam(c *gin.Context) {
	var input services.CreateTeamInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	team, err := h.TeamService.CreateTeam(c.Request.Context(), c.GetString("user_id"), input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, team)
}

// GetTeam retrieves one team, subject to its visibility
func (h *TeamHandler) GetTeam(c *gin.Context) {
	team, err := h.TeamService.GetTeam(c.Request.Context(), c.GetString("user_id"), c.Param("team_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, team)
}

// GetMyRoles returns the caller's resolved role set on a team
func (h *TeamHandler) GetMyRoles(c *gin.Context) {
	set, err := h.Resolver.ResolveByID(c.Request.Context(), c.Param("team_id"), c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"roles": set.Keys()})
}

// UpdateTeam updates a team's mutable fields
func (h *TeamHandler) UpdateTeam(c *gin.Context) {
	var input services.UpdateTeamInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	team, err := h.TeamService.UpdateTeam(c.Request.Context(), c.GetString("user_id"), c.Param("team_id"), input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, team)
}

// DeleteTeam soft deletes a team. Deleting a contest cascades over its
// divisions.
func (h *TeamHandler) DeleteTeam(c *gin.Context) {
	if err := h.TeamService.DeleteTeam(c.Request.Context(), c.GetString("user_id"), c.Param("team_id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Team deleted"})
}

// ListMembers lists a team's membership relations
func (h *TeamHandler) ListMembers(c *gin.Context) {
	members, err := h.TeamService.ListMembers(c.Request.Context(), c.GetString("user_id"), c.Param("team_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"members": members,
		"total":   len(members),
	})
}

// ListDivisions lists a contest's divisions
func (h *TeamHandler) ListDivisions(c *gin.Context) {
	divisions, err := h.TeamService.ListDivisions(c.Request.Context(), c.GetString("user_id"), c.Param("team_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"divisions": divisions,
		"total":     len(divisions),
	})
}
