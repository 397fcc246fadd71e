package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/ace-lms-api/internal/middleware"
	"github.com/noah-isme/ace-lms-api/internal/models"
)

// Handlers groups every HTTP handler mounted under the API prefix.
type Handlers struct {
	Auth         *AuthHandler
	Courses      *CourseHandler
	Requirements *RequirementHandler
	Users        *UserHandler
	Gamification *GamificationHandler
	Reports      *ReportHandler
	Settings     *SettingsHandler
	Dashboard    *DashboardHandler
	Metrics      *MetricsHandler
}

// AuditStore records audit entries and lists the newest ones.
type AuditStore interface {
	middleware.AuditWriter
	ListAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error)
}

// RouteDeps carries the cross-cutting pieces the route table needs.
type RouteDeps struct {
	Auth   gin.HandlerFunc
	Audit  AuditStore
	Logger *zap.Logger
}

// Register mounts the API on group. Nil handlers leave their routes out.
func Register(api *gin.RouterGroup, h Handlers, deps RouteDeps) {
	if h.Auth != nil {
		registerAuthRoutes(api, h.Auth, deps.Auth)
	}

	secured := api.Group("")
	secured.Use(deps.Auth)

	if h.Courses != nil {
		registerCourseRoutes(secured, h.Courses)
	}
	if h.Requirements != nil {
		registerRequirementRoutes(secured, h.Requirements)
	}
	if h.Users != nil {
		registerUserRoutes(secured, h.Users, deps)
	}
	if h.Gamification != nil {
		registerGamificationRoutes(secured, h.Gamification)
	}
	if h.Reports != nil {
		registerReportRoutes(secured, h.Reports)
	}
	if h.Settings != nil {
		registerSettingsRoutes(secured, h.Settings)
	}
	if h.Dashboard != nil {
		secured.GET("/dashboard", h.Dashboard.Mine)
		secured.GET("/dashboard/learners/:id", middleware.RBAC(string(models.RoleAdmin), string(models.RoleInstructor), middleware.Self), h.Dashboard.Learner)
	}
	if deps.Audit != nil {
		secured.GET("/audit-logs", middleware.RequireRoles(models.RoleAdmin), listAuditLogs(deps.Audit))
	}
	if h.Metrics != nil {
		secured.GET("/metrics/system", middleware.RequireRoles(models.RoleAdmin), h.Metrics.Snapshot)
	}
}

func registerAuthRoutes(api *gin.RouterGroup, h *AuthHandler, auth gin.HandlerFunc) {
	group := api.Group("/auth")
	group.POST("/login", h.Login)
	group.POST("/refresh", h.Refresh)
	group.POST("/logout", auth, h.Logout)
	group.PUT("/password", auth, h.ChangePassword)
	group.GET("/me", auth, h.Me)
}

func registerCourseRoutes(api *gin.RouterGroup, h *CourseHandler) {
	group := api.Group("/courses")
	group.GET("", h.List)
	group.GET("/options", h.Options)
	group.GET("/stats", h.Stats)
	group.GET("/:id", h.Get)
	group.POST("/:id/enroll", h.Enroll)
	group.PUT("/:id/progress", h.UpdateProgress)
}

func registerRequirementRoutes(api *gin.RouterGroup, h *RequirementHandler) {
	group := api.Group("/mvk")
	group.GET("/requirements", h.List)
	group.PUT("/requirements/:id/progress", h.UpdateProgress)
	group.GET("/colleges", h.Colleges)
	group.GET("/progress", h.Progress)
}

func registerUserRoutes(api *gin.RouterGroup, h *UserHandler, deps RouteDeps) {
	group := api.Group("/users")
	group.GET("", middleware.RequireRoles(models.RoleAdmin), h.List)
	group.GET("/roles", middleware.RequireRoles(models.RoleAdmin), h.Roles)
	group.GET("/:id", middleware.RBAC(string(models.RoleAdmin), middleware.Self), h.Get)

	admin := group.Group("", middleware.RequireRoles(models.RoleAdmin))
	admin.POST("", h.Create)
	admin.PATCH("/:id/role", h.ChangeRole)
	admin.PATCH("/:id/status", h.ChangeStatus)
	if deps.Audit != nil {
		admin.DELETE("/:id", middleware.Audit(deps.Audit, deps.Logger, models.AuditActionUserDelete, "users"), h.Delete)
	} else {
		admin.DELETE("/:id", h.Delete)
	}
}

func registerGamificationRoutes(api *gin.RouterGroup, h *GamificationHandler) {
	group := api.Group("/gamification")
	group.GET("/badges", h.Badges)
	group.GET("/achievements", h.Achievements)
	group.GET("/leaderboard", h.Leaderboard)
	group.GET("/activities", h.Activities)
	group.GET("/me/stats", h.MyStats)
	group.GET("/me/awards", h.MyAwards)
	group.GET("/me/transactions", h.MyTransactions)
	group.GET("/learners/:id/stats", middleware.RBAC(string(models.RoleAdmin), string(models.RoleInstructor), middleware.Self), h.LearnerStats)
	group.POST("/awards", middleware.Staff(), h.Award)
}

func registerReportRoutes(api *gin.RouterGroup, h *ReportHandler) {
	group := api.Group("/reports", middleware.RequireRoles(models.RoleAdmin))
	group.GET("/types", h.Catalogue)
	group.POST("", h.Generate)
	group.GET("/jobs", h.Jobs)
	group.GET("/jobs/:id", h.Status)
	group.GET("/download/:token", h.Download)
	group.GET("/downloads", h.Downloads)
	group.GET("/schedules", h.Schedules)
	group.POST("/schedules", h.Schedule)
}

func registerSettingsRoutes(api *gin.RouterGroup, h *SettingsHandler) {
	group := api.Group("/settings", middleware.RequireRoles(models.RoleAdmin))
	group.GET("", h.Get)
	group.PUT("/general", h.UpdateGeneral)
	group.PUT("/notifications", h.UpdateNotifications)
	group.PUT("/security", h.UpdateSecurity)
}
