package db

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tradedoc/internal/models"
)

// InitDB opens the database for the given driver. An empty driver means postgres.
func InitDB(driver, dsn, logLevel string) (*gorm.DB, error) {
	dialector, err := dialectorFor(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(parseLogLevel(logLevel)), // Log SQL queries
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch strings.ToLower(driver) {
	case "", "postgres", "postgresql":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "sqlite", "sqlite3":
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", driver)
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	}
	return logger.Warn
}

// Migrate creates or updates the schema. Models are migrated one by one so a
// failure on one table is reported without hiding the others.
func Migrate(db *gorm.DB, log zerolog.Logger) error {
	var failed []string
	for _, model := range []any{&models.Customer{}, &models.Transaction{}, &models.SenderConfig{}} {
		if err := db.AutoMigrate(model); err != nil {
			log.Error().Err(err).Str("model", fmt.Sprintf("%T", model)).Msg("migration failed")
			failed = append(failed, fmt.Sprintf("%T", model))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("migration failed for %s", strings.Join(failed, ", "))
	}
	return nil
}
