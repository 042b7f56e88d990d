package config

import (
	"fmt"
	stdlog "log"
	"os"
	"time"

	"github.com/anonto42/nano-midea/identity/internal/logging"
	"github.com/anonto42/nano-midea/identity/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB holds the database connection
type DB struct {
	Gorm *gorm.DB
	log  *zap.Logger
}

// InitDB opens the configured database and verifies the connection
func InitDB(cfg *Config, log *zap.Logger) (*DB, error) {
	log = logging.OrNop(log)

	var dialector gorm.Dialector
	switch cfg.DatabaseDriver {
	case DriverPostgres:
		dialector = postgres.Open(cfg.DatabaseURL)
	case DriverSQLite:
		dialector = sqlite.Open(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	db, err := Open(dialector, logger.Warn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.DatabaseDriver, err)
	}
	if cfg.DatabaseDriver == DriverSQLite {
		// SQLite serializes writers; one connection also keeps :memory: databases shared.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	log.Info("Connected to database", zap.String("driver", cfg.DatabaseDriver))
	return &DB{Gorm: db, log: log}, nil
}

// Open opens a gorm connection with error translation enabled, so unique
// violations surface as gorm.ErrDuplicatedKey on every dialect.
func Open(dialector gorm.Dialector, level logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: logger.New(stdlog.New(os.Stderr, "\r\n", stdlog.LstdFlags), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err = sqlDB.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the tables for every entity
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Follow{}, &models.Post{}); err != nil {
		return fmt.Errorf("failed to auto migrate models: %w", err)
	}
	return nil
}

// CloseDB closes the database connection
func (db *DB) CloseDB() {
	if db.Gorm == nil {
		return
	}
	log := logging.OrNop(db.log)
	sqlDB, err := db.Gorm.DB()
	if err != nil {
		logging.Error(log, "Error getting SQL DB from GORM", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		logging.Error(log, "Error closing database connection", err)
		return
	}
	log.Info("Database connection closed")
}
