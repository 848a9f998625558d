package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/web-casa/aiui/internal/auth"
	"github.com/web-casa/aiui/internal/handler"
	"github.com/web-casa/aiui/internal/metrics"
	"github.com/web-casa/aiui/internal/noa"
)

func (a *App) registerRoutes(svcs *Services, tester handler.ConnectionTester, proc *noa.Processor) {
	r := a.router

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", metrics.Handler())

	// Multimodal endpoint for AR glasses clients (no auth)
	noaH := handler.NewNOAHandler(proc, a.cfg.MaxUploadBytes(), a.log)
	r.POST("/mm", noaH.Handle)
	r.POST("/mm/", noaH.Handle)

	// ============ API Routes ============
	api := r.Group("/api")

	// Public routes (no auth required)
	authH := handler.NewAuthHandler(svcs.Users, a.db, a.cfg.JWTSecret, a.limiter)
	api.POST("/auth/login", authH.Login)
	api.POST("/auth/setup", authH.Setup)
	api.GET("/auth/need-setup", authH.NeedSetup)

	// Protected routes (JWT required)
	protected := api.Group("")
	protected.Use(auth.Middleware(a.cfg.JWTSecret))

	protected.GET("/auth/me", authH.Me)

	// Profile
	profileH := handler.NewProfileHandler(svcs.Users, a.db)
	protected.GET("/profile", profileH.Get)
	protected.PUT("/profile", profileH.Update)
	protected.PUT("/profile/address", profileH.UpdateAddress)
	protected.POST("/profile/password", profileH.ChangePassword)

	// AI model registry
	modelH := handler.NewAIModelHandler(svcs.Models, tester, a.db)
	protected.GET("/aimodels", modelH.List)
	protected.POST("/aimodels", modelH.Create)
	protected.GET("/aimodels/:id", modelH.Get)
	protected.PUT("/aimodels/:id", modelH.Update)
	protected.DELETE("/aimodels/:id", modelH.Delete)
	protected.POST("/aimodels/:id/test", modelH.Test)

	// Conversations
	threadH := handler.NewThreadHandler(svcs.Threads, a.db)
	protected.GET("/threads", threadH.List)
	protected.POST("/threads", threadH.Create)
	protected.GET("/threads/:id", threadH.Get)
	protected.PUT("/threads/:id", threadH.Update)
	protected.DELETE("/threads/:id", threadH.Delete)

	promptH := handler.NewPromptHandler(svcs.Prompts, a.db)
	protected.POST("/threads/:id/prompt", promptH.Send)
	protected.POST("/prompt", promptH.Start)

	// Admin only
	admin := protected.Group("")
	admin.Use(auth.RequireAdmin())

	admin.GET("/admin/threads", threadH.AdminList)

	userH := handler.NewUserHandler(svcs.Users, a.db)
	admin.GET("/users", userH.List)
	admin.POST("/users", userH.Create)
	admin.PUT("/users/:id", userH.Update)
	admin.DELETE("/users/:id", userH.Delete)

	admin.GET("/audit", handler.NewAuditHandler(a.db).List)
}
