package router

import (
	"database/sql"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/palateclub/palate/handlers"
	"github.com/palateclub/palate/roles"
	"github.com/palateclub/palate/services"
)

func NewGinRouter(pg *sql.DB, redis *redis.Client) *gin.Engine {
	r := gin.Default()

	// Add CORS middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Initialize authorization backend
	teams, relations, actions, resolver, guard := roles.NewSimpleBackend(pg)

	// Initialize services
	identityService := services.NewIdentityService(pg)
	notificationService := services.NewNotificationService(pg)
	pushService, err := services.NewPushService(pg)
	if err != nil {
		log.Printf("Warning: Failed to initialize push service: %v", err)
	}
	teamService := services.NewTeamService(pg, teams, relations, guard)
	membershipService := services.NewMembershipService(teams, relations, actions,
		resolver, guard, identityService, notificationService)
	divisionService := services.NewDivisionService(teams, relations, guard)
	progressService := services.NewProgressService(pg, redis, teams, guard)

	// Initialize handlers
	teamHandler := handlers.NewTeamHandler(teamService, resolver)
	membershipHandler := handlers.NewMembershipHandler(membershipService)
	divisionHandler := handlers.NewDivisionHandler(divisionService)
	progressHandler := handlers.NewProgressHandler(progressService)
	userHandler := handlers.NewUserHandler(identityService, pushService)

	// Initialize middleware
	authMiddleware := handlers.NewAuthMiddleware()
	teamMiddleware := roles.NewMiddleware(teams, resolver)

	// PUBLIC ENDPOINTS (no authentication required)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Public team pages work anonymously; hidden and private teams still 404/403
	public := r.Group("/")
	public.Use(authMiddleware.OptionalAuth())
	{
		public.GET("/teams/:team_id", teamHandler.GetTeam)
		public.GET("/users/:handle", userHandler.GetUserByHandle)
	}

	// PROTECTED ENDPOINTS (require authentication)
	protected := r.Group("/")
	protected.Use(authMiddleware.RequireAuth())
	{
		// Profile
		protected.GET("/me", userHandler.GetMe)
		protected.PUT("/me/fcm-token", userHandler.UpdateFCMToken)

		// Teams
		protected.POST("/teams", teamHandler.CreateTeam)

		teamRoutes := protected.Group("/teams/:team_id")
		{
			teamRoutes.PATCH("", teamHandler.UpdateTeam)
			teamRoutes.DELETE("", teamHandler.DeleteTeam)
			teamRoutes.GET("/members", teamHandler.ListMembers)
			teamRoutes.GET("/divisions", teamHandler.ListDivisions)
			teamRoutes.GET("/my-roles", teamHandler.GetMyRoles)

			// Join requests
			teamRoutes.POST("/join-requests", membershipHandler.RequestJoin)
			teamRoutes.DELETE("/join-requests", membershipHandler.CancelJoin)
			teamRoutes.GET("/join-requests", membershipHandler.ListJoinRequests)
			teamRoutes.POST("/join-requests/:action_id/decide", membershipHandler.DecideJoin)

			// Invites
			teamRoutes.POST("/invites", membershipHandler.Invite)
			teamRoutes.GET("/invites", membershipHandler.ListInvites)
			teamRoutes.POST("/invites/:action_id/respond", membershipHandler.RespondInvite)
			teamRoutes.DELETE("/invites/:action_id", membershipHandler.WithdrawInvite)

			// Direct membership management
			teamRoutes.POST("/roles", membershipHandler.Grant)
			teamRoutes.DELETE("/roles", membershipHandler.Revoke)
			teamRoutes.POST("/leave", membershipHandler.Leave)

			// Division assignment (contest-scoped)
			teamRoutes.POST("/divisions/:division_id/assignments", divisionHandler.Assign)
			teamRoutes.DELETE("/divisions/:division_id/assignments", divisionHandler.Unassign)
			teamRoutes.POST("/copy-participants", divisionHandler.CopyParticipants)

			// Tasting progress (requires resolved team + role set)
			tastingRoutes := teamRoutes.Group("")
			tastingRoutes.Use(teamMiddleware.ResolveTeam())
			{
				// Progress is for people with a real standing on the team
				tastingRoutes.GET("/progress",
					teamMiddleware.RequireRole(roles.RoleOwner, roles.RoleAdmin, roles.RoleEditor,
						roles.RoleMember, roles.RoleParticipant, roles.RoleLeader, roles.RoleGuide),
					progressHandler.GetProgress)
				tastingRoutes.POST("/statements", progressHandler.RecordStatement)
				tastingRoutes.POST("/collections", progressHandler.AssignCollection)
			}
		}
	}

	return r
}
