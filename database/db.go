package database

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func InitDB(logger *zap.Logger) (*sql.DB, error) {
	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "postgres")
	password := getEnv("DB_PASSWORD", "postgres")
	dbname := getEnv("DB_NAME", "recondb")

	psqlInfo := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Create tables if they don't exist. The unique index on
	// (transaction_key, signature) is the natural key that makes
	// event ingestion idempotent under concurrent writers.
	createTableQuery := `
	CREATE TABLE IF NOT EXISTS engine_responses (
		id SERIAL PRIMARY KEY,
		order_transaction_id VARCHAR(255),
		transaction_key VARCHAR(255) NOT NULL,
		related_transaction_key VARCHAR(255) NOT NULL DEFAULT '',
		status_code INTEGER NOT NULL,
		amount DECIMAL(12, 2) NOT NULL DEFAULT 0,
		amount_credit DECIMAL(12, 2) NOT NULL DEFAULT 0,
		currency VARCHAR(10) NOT NULL DEFAULT '',
		service_name VARCHAR(100) NOT NULL DEFAULT '',
		transaction_method VARCHAR(100) NOT NULL DEFAULT '',
		transaction_type VARCHAR(100) NOT NULL DEFAULT '',
		signature VARCHAR(64) NOT NULL,
		push_hash VARCHAR(64) NOT NULL DEFAULT '',
		raw JSONB,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (transaction_key, signature)
	);

	CREATE TABLE IF NOT EXISTS order_transactions (
		id VARCHAR(255) PRIMARY KEY,
		order_id VARCHAR(255) NOT NULL,
		amount DECIMAL(12, 2) NOT NULL,
		currency VARCHAR(10) NOT NULL,
		status VARCHAR(50) NOT NULL DEFAULT 'in_progress',
		original_transaction_key VARCHAR(255) NOT NULL DEFAULT '',
		service_name VARCHAR(100) NOT NULL DEFAULT '',
		reservation_number VARCHAR(100) NOT NULL DEFAULT '',
		can_refund BOOLEAN NOT NULL DEFAULT false,
		can_capture BOOLEAN NOT NULL DEFAULT false,
		authorized BOOLEAN NOT NULL DEFAULT false,
		captured BOOLEAN NOT NULL DEFAULT false,
		refunded BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`

	if _, err := db.Exec(createTableQuery); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info("Database connection established")
	return db, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
