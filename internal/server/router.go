// Package server assembles the gin engine: global middleware, route groups and role gates.
package server

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/handler"
	"github.com/noah-isme/school-portal-api/internal/middleware"
	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/internal/observability"
	"github.com/noah-isme/school-portal-api/internal/service"
	"github.com/noah-isme/school-portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/school-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/school-portal-api/pkg/middleware/requestid"
)

// Options configures the router.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	Logger         *zap.Logger
	Metrics        *service.MetricsService
	Tokens         middleware.TokenValidator
	Audit          middleware.AuditWriter
}

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Auth       *handler.AuthHandler
	Admissions *handler.AdmissionHandler
	Students   *handler.StudentHandler
	Gradebook  *handler.GradebookHandler
	Reports    *handler.ReportHandler // nil when report exports are disabled
	Settings   *handler.SettingsHandler
	Metrics    *handler.MetricsHandler
}

const (
	roleDeveloper = string(models.RoleDeveloper)
	roleAdmin     = string(models.RoleAdmin)
	roleTeacher   = string(models.RoleTeacher)
)

// NewRouter builds the engine with every portal route.
func NewRouter(opts Options, h Handlers) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	prefix := opts.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}

	r := gin.New()
	r.Use(observability.GinRecovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(log))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(prefix)
	auth := middleware.JWT(opts.Tokens)

	authGroup := api.Group("/auth")
	authGroup.POST("/login", h.Auth.Login)
	authGroup.POST("/refresh", h.Auth.Refresh)
	authGroup.POST("/logout", auth, h.Auth.Logout)
	authGroup.POST("/change-password", auth, h.Auth.ChangePassword)
	authGroup.GET("/me", auth, h.Auth.Me)

	api.POST("/admissions", auth, middleware.RBAC(roleAdmin), h.Admissions.Admit)

	students := api.Group("/students", auth)
	students.GET("", middleware.RBAC(roleAdmin, roleTeacher), h.Students.List)
	students.GET("/:id", middleware.RBAC(roleAdmin, roleTeacher, middleware.SelfRule), h.Students.Get)
	students.POST("/:id/attendance", middleware.RBAC(roleAdmin, roleTeacher), h.Students.MarkAttendance)
	students.GET("/:id/fees", middleware.RBAC(roleAdmin, middleware.SelfRule), h.Students.Fees)
	students.POST("/:id/fees/:month/pay", middleware.RBAC(roleAdmin), h.Students.PayFee)
	students.GET("/:id/report-card", middleware.RBAC(roleAdmin, roleTeacher, middleware.SelfRule), h.Students.ReportCard)

	grades := api.Group("/gradebook/:class/:term", auth)
	staff := middleware.RBAC(roleAdmin, roleTeacher)
	grades.GET("", staff, h.Gradebook.Grid)
	grades.PUT("/edits", staff, h.Gradebook.StageEdits)
	grades.DELETE("/edits", staff, h.Gradebook.Discard)
	grades.POST("/save", staff, h.Gradebook.Save)
	grades.POST("/archive", middleware.RBAC(roleAdmin), h.Gradebook.Archive)
	grades.GET("/summary", staff, h.Gradebook.Summary)
	grades.POST("/import", staff, h.Gradebook.Import)

	if h.Reports != nil {
		reports := api.Group("/reports", auth, staff)
		reports.POST("/generate", middleware.Audit(opts.Audit, models.AuditActionReportRequest, "report"), h.Reports.GenerateReport)
		reports.GET("/status/:id", h.Reports.ReportStatus)
		api.GET("/export/:token", auth, staff, middleware.Audit(opts.Audit, models.AuditActionExportDownload, "export", "token"), h.Reports.DownloadReport)
	}

	settings := api.Group("/settings", auth)
	settings.GET("/grading", middleware.RBAC(roleDeveloper, roleAdmin), h.Settings.Grading)
	settings.PUT("/weights", middleware.RBAC(roleDeveloper), h.Settings.UpdateWeights)
	settings.PUT("/subjects", middleware.RBAC(roleDeveloper), h.Settings.UpdateSubjects)

	api.GET("/metrics/summary", auth, middleware.RBAC(roleDeveloper, roleAdmin), h.Metrics.Snapshot)

	return r
}
