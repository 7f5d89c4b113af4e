package roles

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/palateclub/palate/db"
)

// ContextKey is the type for context keys to avoid collisions
type ContextKey string

const (
	// Context keys for storing resolved authorization data
	ContextKeyTeam    ContextKey = "team"
	ContextKeyRoleSet ContextKey = "role_set"
)

// Middleware resolves the caller's role set for the team in the URL and makes
// it available to handlers
type Middleware struct {
	Teams    TeamStore
	Resolver *Resolver
}

// NewMiddleware creates a new team authorization middleware
func NewMiddleware(teams TeamStore, resolver *Resolver) *Middleware {
	return &Middleware{Teams: teams, Resolver: resolver}
}

// ResolveTeam loads the :team_id team, resolves the caller's role set on it,
// and stores both in the gin context.
// Usage: group.Use(mw.ResolveTeam())
func (m *Middleware) ResolveTeam() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "User not authenticated",
			})
			return
		}

		teamID := c.Param("team_id")
		if teamID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "bad_request",
				"message": "Team ID is required",
			})
			return
		}

		team, err := m.Teams.Get(c.Request.Context(), teamID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "team not found"})
				return
			}
			log.Printf("ResolveTeam: failed to load team %s: %v", teamID, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load team"})
			return
		}

		set, err := m.Resolver.Resolve(c.Request.Context(), team, userID)
		if err != nil {
			log.Printf("ResolveTeam: failed to resolve roles for user %s on team %s: %v", userID, teamID, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve roles"})
			return
		}

		c.Set(string(ContextKeyTeam), team)
		c.Set(string(ContextKeyRoleSet), set)
		c.Next()
	}
}

// RequireRole aborts with 403 unless the resolved role set intersects the
// allowed list. Must run after ResolveTeam.
func (m *Middleware) RequireRole(allowed ...Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		set := RoleSetFrom(c)
		if set == nil || !set.Intersects(allowed...) {
			log.Printf("AUTHZ DENIED - user %s on team %s (roles %v)", c.GetString("user_id"), c.Param("team_id"), set.Keys())
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "You don't have permission to perform this action",
			})
			return
		}
		c.Next()
	}
}

// TeamFrom returns the team loaded by ResolveTeam, or nil
func TeamFrom(c *gin.Context) *db.Team {
	if v, ok := c.Get(string(ContextKeyTeam)); ok {
		if team, ok := v.(*db.Team); ok {
			return team
		}
	}
	return nil
}

// RoleSetFrom returns the role set resolved by ResolveTeam, or nil
func RoleSetFrom(c *gin.Context) RoleSet {
	if v, ok := c.Get(string(ContextKeyRoleSet)); ok {
		if set, ok := v.(RoleSet); ok {
			return set
		}
	}
	return nil
}
