package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/estudio-sgt/sgt-api/api/swagger"
	"github.com/estudio-sgt/sgt-api/internal/handler"
	"github.com/estudio-sgt/sgt-api/internal/middleware"
	"github.com/estudio-sgt/sgt-api/internal/models"
	"github.com/estudio-sgt/sgt-api/pkg/config"
	"github.com/estudio-sgt/sgt-api/pkg/logger"
	corsmiddleware "github.com/estudio-sgt/sgt-api/pkg/middleware/cors"
	reqidmiddleware "github.com/estudio-sgt/sgt-api/pkg/middleware/requestid"
)

type routes struct {
	auth         *handler.AuthHandler
	users        *handler.UserHandler
	clients      *handler.ClientHandler
	tramiteTypes *handler.TramiteTypeHandler
	expedientes  *handler.ExpedienteHandler
	documents    *handler.DocumentHandler
	dashboard    *handler.DashboardHandler
	reports      *handler.ReportHandler // nil when reports are disabled
	health       *handler.HealthHandler

	tokens  middleware.TokenValidator
	audit   middleware.AuditWriter
	metrics middleware.RequestObserver
}

func newRouter(cfg *config.Config, logr *zap.Logger, h routes) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(h.metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.health.Health)
	r.GET("/ready", h.health.Ready)
	r.GET("/metrics", h.health.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	admins := []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", h.auth.Login)
	auth.POST("/refresh", h.auth.Refresh)

	// Token-authenticated downloads; the signed token is the credential.
	api.GET("/documents/download/:token",
		middleware.Audit(h.audit, logr, models.AuditActionDocumentFetch, "document"),
		h.documents.Download)
	if h.reports != nil {
		api.GET("/reports/download/:token",
			middleware.Audit(h.audit, logr, models.AuditActionReportDownload, "report"),
			h.reports.Download)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(h.tokens))

	// Password changes and logout are allowed for every role.
	secured.POST("/auth/logout", h.auth.Logout)
	secured.POST("/auth/change-password", h.auth.ChangePassword)
	secured.GET("/auth/me", h.auth.Me)
	secured.GET("/metrics/system", middleware.RequireRoles(admins...), h.health.System)

	protected := secured.Group("")
	protected.Use(middleware.ReadOnlyFor(models.RoleConsulta))

	users := protected.Group("/users")
	users.Use(middleware.RequireRoles(admins...))
	users.GET("", h.users.List)
	users.GET("/:id", h.users.Get)
	users.POST("", h.users.Create)
	users.PUT("/:id", h.users.Update)
	users.PATCH("/:id/status", h.users.SetStatus)
	users.DELETE("/:id", h.users.Delete)

	clients := protected.Group("/clients")
	clients.GET("", h.clients.List)
	clients.GET("/:id", h.clients.Get)
	clients.POST("", h.clients.Create)
	clients.PUT("/:id", h.clients.Update)
	clients.DELETE("/:id", middleware.RequireRoles(admins...), h.clients.Deactivate)

	types := protected.Group("/tramite-types")
	types.GET("", h.tramiteTypes.List)
	types.GET("/:id", h.tramiteTypes.Get)
	types.POST("", middleware.RequireRoles(admins...), h.tramiteTypes.Create)
	types.PUT("/:id", middleware.RequireRoles(admins...), h.tramiteTypes.Update)

	expedientes := protected.Group("/expedientes")
	expedientes.GET("", h.expedientes.List)
	expedientes.GET("/:id", h.expedientes.Get)
	expedientes.POST("", h.expedientes.Create)
	expedientes.PATCH("/:id", h.expedientes.Update)
	expedientes.POST("/:id/advance", h.expedientes.Advance)
	expedientes.POST("/:id/state", h.expedientes.ChangeState)
	expedientes.GET("/:id/documents", h.documents.List)
	expedientes.GET("/:id/documents/summary", h.documents.Summary)
	expedientes.POST("/:id/documents", h.documents.Create)

	documents := protected.Group("/documents")
	documents.POST("/:id/file", h.documents.Upload)
	documents.PATCH("/:id/review", h.documents.Review)
	documents.DELETE("/:id", h.documents.Delete)
	documents.GET("/:id/download-url", h.documents.DownloadURL)

	protected.GET("/dashboard", h.dashboard.Summary)

	if h.reports != nil {
		// Report generation only reads data, so read-only users may request exports.
		secured.POST("/reports",
			middleware.Audit(h.audit, logr, models.AuditActionReportRequest, "report"),
			h.reports.Generate)
		secured.GET("/reports/:id", h.reports.Status)
	}

	return r
}
