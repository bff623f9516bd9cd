// internal/database/connection.go
package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/collabhub/collab-backend/internal/config"
	"github.com/collabhub/collab-backend/internal/models"
)

var DB *gorm.DB

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var err error

	gormConfig := &gorm.Config{
		// Duplicate-key errors must be recognizable regardless of driver;
		// milestone approval relies on it.
		TranslateError: true,
	}
	if cfg.LogLevel == "silent" {
		gormConfig.Logger = logger.Default.LogMode(logger.Silent)
	} else {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	// Connect to database
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection established successfully")
	return DB, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	} else {
		log.Println("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	// Enable UUID extension
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error; err != nil {
		return fmt.Errorf("failed to create UUID extension: %w", err)
	}

	// Run auto-migrations
	err := db.AutoMigrate(
		&models.Agreement{},
		&models.Deliverable{},
		&models.AgreementActivity{},
		&models.Milestone{},
		&models.Payment{},
		&models.Payout{},
		&models.EventLog{},
		&models.Notification{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// Agreement indexes
		"CREATE INDEX IF NOT EXISTS idx_agreements_sponsor_status ON agreements(sponsor_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_agreements_fulfiller_status ON agreements(fulfiller_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_agreement_activities_agreement ON agreement_activities(agreement_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_deliverables_agreement ON deliverables(agreement_id, position)",

		// Milestone indexes
		"CREATE INDEX IF NOT EXISTS idx_milestones_agreement_status ON milestones(agreement_id, status)",

		// Payment indexes
		"CREATE INDEX IF NOT EXISTS idx_payments_fulfiller_status ON payments(fulfiller_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_payments_status_updated ON payments(status, updated_at)",

		// Payout indexes
		"CREATE INDEX IF NOT EXISTS idx_payouts_fulfiller_status ON payouts(fulfiller_id, status)",

		// Event ledger indexes
		"CREATE INDEX IF NOT EXISTS idx_event_logs_entity ON event_logs(entity_type, entity_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_event_logs_actor ON event_logs(actor_id, created_at DESC)",

		// Notification indexes
		"CREATE INDEX IF NOT EXISTS idx_notifications_user_status ON notifications(user_id, status)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			log.Printf("Warning: Failed to create index: %s, Error: %v", index, err)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
