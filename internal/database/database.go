package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Freedomtukun/free-yoga/internal/config"
	logging "github.com/Freedomtukun/free-yoga/internal/logging"
	"github.com/Freedomtukun/free-yoga/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open connects to the configured database and runs migrations.
func Open(dbConf config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(dbConf)
	if err != nil {
		return nil, err
	}

	// Create our custom GORM logger
	gormLogger := logging.NewGormZapLogger(log)
	if gormLogger.LogLevel, err = logging.ParseGormLevel(dbConf.LogLevel); err != nil {
		return nil, err
	}
	if dbConf.SlowThreshold > 0 {
		gormLogger.SlowThreshold = dbConf.SlowThreshold
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connection established successfully.", zap.String("driver", dbConf.Driver))

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("Database migrations completed successfully.")
	return db, nil
}

func dialectorFor(dbConf config.DatabaseConfig) (gorm.Dialector, error) {
	switch dbConf.Driver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			dbConf.Host, dbConf.User, dbConf.Password, dbConf.DBName, dbConf.Port, dbConf.SSLMode)
		return postgres.Open(dsn), nil
	case "sqlite":
		if dbConf.Path != ":memory:" && !isURI(dbConf.Path) {
			if err := os.MkdirAll(filepath.Dir(dbConf.Path), 0755); err != nil {
				return nil, fmt.Errorf("could not create database directory: %w", err)
			}
		}
		return sqlite.Open(dbConf.Path), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", dbConf.Driver)
}

func isURI(path string) bool {
	return len(path) > 5 && path[:5] == "file:"
}

// Migrate creates or updates the schema. GORM's AutoMigrate creates tables,
// columns, foreign keys and the indexes declared in struct tags.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.PoseTemplate{},
		&models.PoseSequence{},
		&models.PoseSequenceStep{},
		&models.PracticeResult{},
		&models.PoseAttempt{},
	)
	if err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	return nil
}
