package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the backing database. A Postgres URL selects the durable
// backend; an empty URL falls back to an in-memory sqlite store so the
// service keeps the original volatile, process-lifetime behaviour.
func Connect(url string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	if url == "" {
		db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open in-memory store: %w", err)
		}
		return db, nil
	}

	db, err := gorm.Open(postgres.Open(url), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return db, nil
}
