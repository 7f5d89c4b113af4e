package roles

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/palateclub/palate/db"
)

// newTestRouter mounts ResolveTeam (plus optional RequireRole) behind a stub
// auth layer that injects the given user id
func newTestRouter(mw *Middleware, userID string, required ...Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	group := r.Group("/teams/:team_id")
	group.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	})
	group.Use(mw.ResolveTeam())
	if len(required) > 0 {
		group.Use(mw.RequireRole(required...))
	}
	group.GET("/check", func(c *gin.Context) {
		team := TeamFrom(c)
		set := RoleSetFrom(c)
		if team == nil || set == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "context not populated"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"team_id": team.ID, "roles": set.Keys()})
	})
	return r
}

func doCheck(r *gin.Engine, teamID string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/teams/"+teamID+"/check", nil)
	r.ServeHTTP(w, req)
	return w
}

func TestResolveTeamPopulatesContext(t *testing.T) {
	resolver, teams, relations, _ := newTestResolver()
	relations.AddRelation("u1", "t1", RoleMember)
	mw := NewMiddleware(teams, resolver)

	w := doCheck(newTestRouter(mw, "u1"), "t1")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
}

func TestResolveTeamRequiresAuth(t *testing.T) {
	resolver, teams, _, _ := newTestResolver()
	mw := NewMiddleware(teams, resolver)

	w := doCheck(newTestRouter(mw, ""), "t1")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestResolveTeamUnknownTeam(t *testing.T) {
	resolver, teams, _, _ := newTestResolver()
	mw := NewMiddleware(teams, resolver)

	w := doCheck(newTestRouter(mw, "u1"), "missing")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestRequireRole(t *testing.T) {
	resolver, teams, relations, _ := newTestResolver()
	relations.AddRelation("u1", "d1", RoleMember)
	mw := NewMiddleware(teams, resolver)

	// Division member passes the gate
	w := doCheck(newTestRouter(mw, "u1", RoleMember, RoleGuide, RoleLeader), "d1")
	if w.Code != http.StatusOK {
		t.Fatalf("member status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}

	// A stranger resolves to unrelated and is rejected
	w = doCheck(newTestRouter(mw, "stranger", RoleMember, RoleGuide, RoleLeader), "d1")
	if w.Code != http.StatusForbidden {
		t.Fatalf("stranger status = %d, want 403", w.Code)
	}
}

func TestRequireRolePendingMarkerDoesNotPass(t *testing.T) {
	resolver, teams, _, actions := newTestResolver()
	actions.AddPending("u1", "c1", db.ActionJoin, RoleParticipant)
	mw := NewMiddleware(teams, resolver)

	w := doCheck(newTestRouter(mw, "u1", RoleParticipant), "c1")
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: a pending request is not participation", w.Code)
	}
}
