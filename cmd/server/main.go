package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/docuflow/backend/internal/application/services"
	"github.com/docuflow/backend/internal/bootstrap"
	"github.com/docuflow/backend/internal/infrastructure/database"
	"github.com/docuflow/backend/internal/interfaces/middleware"
	"github.com/docuflow/backend/internal/interfaces/rest"
)

func main() {
	// Load .env if present; real env vars win
	if err := godotenv.Load(); err == nil {
		log.Println("📋 Loaded configuration from .env")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Initialize database connection
	db, err := database.GetInstance()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("✅ Database connection established")

	if err := bootstrap.InitializeSchema(db); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	// Initialize service manager
	svcMgr, err := services.NewServiceManager(db)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	log.Println("🔧 Service manager initialized")

	// Seed demo participants so login works out of the box
	if err := bootstrap.InitializeSeedData(svcMgr.Users, svcMgr.Directory); err != nil {
		log.Fatalf("Failed to initialize seed data: %v", err)
	}

	// Create Gin router
	router := gin.Default()
	router.Use(middleware.Cors())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"server": "golang",
		})
	})

	// Initialize handlers
	authHandler := rest.NewAuthHandler(svcMgr)
	workflowHandler := rest.NewWorkflowHandler(svcMgr)
	taskHandler := rest.NewTaskHandler(svcMgr)
	notificationHandler := rest.NewNotificationHandler(svcMgr)
	userHandler := rest.NewUserHandler(svcMgr)

	requireAuth := middleware.RequireAuth(svcMgr.Auth)
	requireAdmin := middleware.RequireAdmin()

	// API routes
	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.GET("/me", requireAuth, authHandler.GetMe)
		}

		workflows := api.Group("/workflows")
		workflows.Use(requireAuth)
		{
			workflows.POST("", requireAdmin, workflowHandler.Submit)
			workflows.GET("", workflowHandler.GetByStatus)
			workflows.GET("/:id", workflowHandler.GetInstance)
			workflows.GET("/:id/tasks", workflowHandler.GetInstanceTasks)
		}

		tasks := api.Group("/tasks")
		tasks.Use(requireAuth)
		{
			tasks.GET("/my", taskHandler.GetMyTasks)
			tasks.POST("/:id/upload", taskHandler.CompleteUpload)
			tasks.POST("/:id/prepare", taskHandler.CompletePrepare)
			tasks.POST("/:id/review", taskHandler.CompleteReview)
		}

		notifications := api.Group("/notifications")
		notifications.Use(requireAuth)
		{
			notifications.GET("", notificationHandler.GetNotifications)
			notifications.POST("/:id/read", notificationHandler.MarkAsRead)
		}

		users := api.Group("/users")
		users.Use(requireAuth)
		{
			users.GET("", userHandler.GetUsers)
			users.GET("/directory", userHandler.GetDirectoryUsers)
		}
	}

	// Static access to stored documents
	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	router.Static("/uploads", uploadDir)

	// Start the activation sweep
	sweepInterval := services.DefaultSweepInterval
	if raw := os.Getenv("SWEEP_INTERVAL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("Invalid SWEEP_INTERVAL %q: %v", raw, err)
		}
		sweepInterval = parsed
	}
	if err := svcMgr.StartScheduler(sweepInterval); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("═══════════════════════════════════════════════")
	log.Println("🚀 DocuFlow Backend Started Successfully")
	log.Println("═══════════════════════════════════════════════")
	log.Printf("📍 Server:       http://localhost:%s", port)
	log.Printf("🔐 Auth API:     http://localhost:%s/api/auth", port)
	log.Printf("📄 Workflows:    http://localhost:%s/api/workflows", port)
	log.Printf("💚 Health check: http://localhost:%s/health", port)

	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt, then shut down with a 5 second grace period
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	svcMgr.StopScheduler()
	log.Println("🛑 Scheduler stopped")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	if err := db.Close(); err != nil {
		log.Printf("⚠️ Error closing database: %v", err)
	}
	log.Println("Server exiting")
}
