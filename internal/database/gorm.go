package database

import (
	"fmt"

	"chatbot-backend/internal/config"
	"chatbot-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the configured database (sqlite for local development,
// postgres for deployments) and runs auto-migration for all domain models.
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.DBDriver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER: %s", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("auto-migration: %w", err)
	}

	return db, nil
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Tenant{},
		&models.Chatbot{},
		&models.User{},
		&models.ChannelConfig{},
		&models.Conversation{},
		&models.Message{},
		&models.AutomationWorkflow{},
		&models.AutomationExecution{},
		&models.ScheduledAction{},
		&models.OutboundMessageLog{},
	)
}
