package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/onegreenvn/assign-services-backend/docs"
	"github.com/onegreenvn/assign-services-backend/internal/config"
	"github.com/onegreenvn/assign-services-backend/internal/database"
	"github.com/onegreenvn/assign-services-backend/internal/router"
	"github.com/onegreenvn/assign-services-backend/internal/services"
	"github.com/onegreenvn/assign-services-backend/internal/services/excel"
	"github.com/onegreenvn/assign-services-backend/internal/utils"
)

// @title Assign Services API
// @version 1.0
// @description Topic and post assignment service with JWT Authentication
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter `Bearer ` followed by your JWT token (e.g. "Bearer <token>")

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Set Swagger base path dynamically
	basePath := getEnv("BASE_PATH", "/assign-services-api")
	docs.SwaggerInfo.BasePath = basePath

	configureLogging()

	utils.InitSentry()
	defer utils.FlushSentry()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		logrus.Fatal("JWT_SECRET is required")
	}

	db, err := database.InitDB()
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}

	settings := config.GetAssignSettings()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewAssignMetrics()
	registry.MustRegister(metrics)

	sseHub := services.NewSSEHub(metrics)

	container := services.NewContainer(db, settings, services.ContainerOptions{
		Realtime: sseHub,
		Metrics:  metrics,
	})

	// Jobs go through RabbitMQ when it is reachable, otherwise they run inline
	rabbitMQConfig := config.GetRabbitMQConfig()
	if rabbitMQConfig.Enabled {
		rabbitMQService, err := services.NewRabbitMQService(rabbitMQConfig)
		if err != nil {
			logrus.Warnf("Failed to initialize RabbitMQ, running jobs inline: %v", err)
		} else {
			defer rabbitMQService.Close()

			if err := rabbitMQService.StartJobConsumer(container.Runner); err != nil {
				logrus.Warnf("Failed to start RabbitMQ job consumer, running jobs inline: %v", err)
			} else {
				defer rabbitMQService.StopJobConsumer()
				container.UseQueue(rabbitMQService)
				logrus.Info("RabbitMQ job consumer started")
			}
		}
	}

	container.Scheduler.Start()
	defer container.Scheduler.Stop()

	exporter := excel.NewAssignmentExporter(getEnv("EXPORTS_DIR", "./exports"))

	gin.SetMode(getEnv("GIN_MODE", gin.ReleaseMode))
	r := router.SetupRouter(router.Deps{
		Container: container,
		SSEHub:    sseHub,
		Exporter:  exporter,
		Gatherer:  registry,
		JWTSecret: jwtSecret,
		BasePath:  basePath,
	})

	// Configure HTTP server
	port := getEnv("PORT", "8080")
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           r,
		ReadHeaderTimeout: time.Duration(getEnvAsInt("READ_HEADER_TIMEOUT_SECONDS", 10)) * time.Second,
	}

	go func() {
		logrus.Infof("Server starting on port %s", port)
		logrus.Infof("API Health Check: http://localhost:%s/api/v1/health", port)
		logrus.Infof("Swagger UI: http://localhost:%s/swagger/index.html", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited properly")
}

func configureLogging() {
	logLevel := getEnv("LOG_LEVEL", "info")
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, fmt.Sprintf("%d", defaultValue))
	var value int
	if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
		return defaultValue
	}
	return value
}
