package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/onegreenvn/assign-services-backend/internal/handlers"
	"github.com/onegreenvn/assign-services-backend/internal/middleware"
	"github.com/onegreenvn/assign-services-backend/internal/services"
	"github.com/onegreenvn/assign-services-backend/internal/services/excel"
)

// Deps are the wired components the routes are served from
type Deps struct {
	Container *services.Container
	SSEHub    *services.SSEHub
	Exporter  *excel.AssignmentExporter
	// Gatherer backs /metrics; nil disables the endpoint
	Gatherer  prometheus.Gatherer
	JWTSecret string
	BasePath  string
}

// SetupRouter configures the Gin router with the assignment routes
func SetupRouter(deps Deps) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger())

	// Configure CORS
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	apiKeyMiddleware := middleware.NewAPIKeyMiddleware(deps.Container.APIKeys)
	bearerTokenMiddleware := middleware.NewBearerTokenMiddleware(deps.JWTSecret, deps.Container.Users)

	assignHandler := handlers.NewAssignHandler(deps.Container, deps.Exporter, deps.BasePath)
	eventsHandler := handlers.NewEventsHandler(deps.Container.Synchronizer)
	realtimeHandler := handlers.NewRealtimeHandler(deps.SSEHub, deps.Container.Groups)
	apiKeyHandler := handlers.NewAPIKeyHandler(deps.Container.APIKeys)

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api/v1")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "ok",
				"time":   time.Now().Format(time.RFC3339),
			})
		})

		// API keys are tried first; the bearer middleware skips requests they authenticated
		protected := api.Group("")
		protected.Use(apiKeyMiddleware.APIKeyAuthMiddleware())
		protected.Use(bearerTokenMiddleware.BearerTokenAuthMiddleware())

		apiKey := protected.Group("/api-key")
		{
			apiKey.POST("/generate", apiKeyHandler.Generate)
			apiKey.GET("", apiKeyHandler.Get)
			apiKey.PUT("/status", apiKeyHandler.UpdateStatus)
			apiKey.DELETE("", apiKeyHandler.Delete)
		}

		assign := protected.Group("/assign")
		{
			assign.POST("/assign", assignHandler.Assign)
			assign.PUT("/unassign", assignHandler.Unassign)
			assign.GET("/topics/:id", assignHandler.GetTopicAssignments)
			assign.GET("/users/:username/assigned", assignHandler.GetUserAssigned)
			assign.GET("/groups/:name/assigned", assignHandler.GetGroupAssigned)
			assign.GET("/list", assignHandler.ListAssigned)
			assign.GET("/export", assignHandler.ExportAssignments)
			assign.GET("/export/:filename", assignHandler.DownloadExport)
			assign.PUT("/reminders-frequency", assignHandler.UpdateRemindersFrequency)
			assign.PUT("/reminders-snooze", assignHandler.SnoozeReminders)
			assign.POST("/events", eventsHandler.HandleEvent)
		}

		realtime := protected.Group("/realtime")
		{
			realtime.GET("/stream", realtimeHandler.Stream)
		}
	}

	return r
}
