package repository

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/megaeth-tools/vigil/internal/models"
	"github.com/megaeth-tools/vigil/pkg/logger"
)

type Store struct {
	logger *logger.Logger

	Conn *gorm.DB
}

// NewSQLiteDB opens (or creates) the SQLite database at path.
func NewSQLiteDB(path string, logger *logger.Logger) (models.Repository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %s", err)
		}
	}
	return newStore(sqlite.Open(path), logger)
}

// NewPostgresDB connects to the configured Postgres server.
func NewPostgresDB(user, password, dbname, host string, port int, logger *logger.Logger) (models.Repository, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)
	return newStore(postgres.Open(dsn), logger)
}

func newStore(dialector gorm.Dialector, appLogger *logger.Logger) (models.Repository, error) {
	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond, // Log queries slower than this
			LogLevel:                  gormLogger.Warn,        // Only log warnings or errors
			IgnoreRecordNotFoundError: true,                   // Suppress "record not found" errors
			Colorful:                  true,                   // Enable colorful logs
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %s", err)
	}

	if err := db.AutoMigrate(
		&models.Subscription{},
		&models.AlertRecord{},
		&models.Portal{},
		&models.Invite{},
		&models.VerificationEvent{},
		&models.PortalBan{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %s", err)
	}

	// One pending invite per (portal, user). AutoMigrate cannot express a
	// partial index; both SQLite and Postgres accept this DDL.
	if err := db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_invites_pending_user ON invites (portal_id, user_id) WHERE state = 'pending'`,
	).Error; err != nil {
		return nil, fmt.Errorf("failed to create pending invite index: %s", err)
	}

	appLogger.Info("Successfully connected to the database")
	return &Store{Conn: db, logger: appLogger}, nil
}

func (db *Store) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %s", err)
	}
	return sqlDB.Close()
}
