package database

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/onegreenvn/assign-services-backend/internal/models"
)

// InitDB initializes the database connection and performs migrations
func InitDB() (*gorm.DB, error) {
	// Get database connection parameters from environment variables
	host := getEnv("DB_HOST", "")
	port := getEnv("DB_PORT", "")
	user := getEnv("DB_USER", "")
	password := getEnv("DB_PASSWORD", "")
	dbname := getEnv("DB_NAME", "")
	sslmode := getEnv("DB_SSLMODE", "disable")

	// Validate required environment variables
	if host == "" || port == "" || user == "" || password == "" || dbname == "" {
		return nil, fmt.Errorf("missing required database environment variables. Please check your .env file")
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)

	db, err := gorm.Open(postgres.Open(dsn), Config())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Set connection pool settings
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.Exec("SET search_path TO public").Error; err != nil {
		return nil, fmt.Errorf("failed to set search_path: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	logrus.Info("Database connection established and migrations completed")
	return db, nil
}

// Config returns the gorm configuration shared by every dialect.
// Driver errors are translated so unique violations surface as
// gorm.ErrDuplicatedKey.
func Config() *gorm.Config {
	gormLogger := logger.New(
		logrus.StandardLogger(),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Error,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	return &gorm.Config{
		Logger:                                   gormLogger,
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
	}
}

// Migrate creates or updates the schema. It is dialect neutral so tests run
// it against sqlite.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.GroupUser{},
		&models.Topic{},
		&models.Post{},
		&models.Assignment{},
		&models.Notification{},
		&models.SiteSetting{},
		&models.APIKey{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// At most one active assignment per target
	err = db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_active_target
		ON assignments (target_type, target_id)
		WHERE active
	`).Error
	if err != nil {
		return fmt.Errorf("failed to create active target index: %w", err)
	}

	// Reminder candidate scans
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_assignments_active_user
		ON assignments (assigned_to_id, assigned_at)
		WHERE active AND assigned_to_type = 'User'
	`).Error
	if err != nil {
		logrus.Warnf("Failed to create reminder index on assignments: %v", err)
	}

	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
