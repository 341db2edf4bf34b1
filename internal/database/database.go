package database

import (
	"fmt"
	"time"

	"github.com/sketchroom/backend/internal/config"
	"github.com/sketchroom/backend/internal/models"
	"github.com/sketchroom/backend/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect opens the database, retrying a fixed number of times before
// giving up so the process can start ahead of the database container.
func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	var db *gorm.DB
	var err error
	for attempt := 1; attempt <= cfg.ConnectRetries; attempt++ {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err == nil {
			break
		}
		logger.Warn("database_connect_retry", map[string]interface{}{
			"attempt":     attempt,
			"max_retries": cfg.ConnectRetries,
			"error":       err.Error(),
		})
		if attempt < cfg.ConnectRetries {
			time.Sleep(cfg.RetryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("database unreachable after %d attempts: %w", cfg.ConnectRetries, err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.LoginActivity{},
		&models.Room{},
		&models.Participant{},
		&models.Notification{},
		&models.Invitation{},
	)
}
