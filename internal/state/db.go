// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS pair_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			pair_id VARCHAR(128) NOT NULL,
			chain_id BIGINT NOT NULL,
			asset_id VARCHAR(64) NOT NULL,
			pool_address VARCHAR(42) NOT NULL,
			token_x_symbol VARCHAR(32) NOT NULL,
			token_y_symbol VARCHAR(32) NOT NULL,
			token_x_balance TEXT NOT NULL,
			token_y_balance TEXT NOT NULL,
			lp_supply TEXT,
			virtual_price DECIMAL(30, 18),
			tvl_usd DECIMAL(20, 8),
			resolved_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_pair_snapshots_pair_id ON pair_snapshots(pair_id, resolved_at DESC);
		CREATE INDEX IF NOT EXISTS idx_pair_snapshots_resolved_at ON pair_snapshots(resolved_at DESC);

		CREATE TABLE IF NOT EXISTS trade_attempts (
			attempt_id UUID PRIMARY KEY,
			pair_id VARCHAR(128) NOT NULL,
			direction VARCHAR(16) NOT NULL,
			amount_in TEXT NOT NULL,
			min_amount_out TEXT,
			slippage_percent DECIMAL(10, 4) NOT NULL,
			phase VARCHAR(40) NOT NULL,
			approval_tx_hash VARCHAR(66),
			swap_tx_hash VARCHAR(66),
			result_message TEXT,
			error_code VARCHAR(40),
			started_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_trade_attempts_started_at ON trade_attempts(started_at DESC);
		CREATE INDEX IF NOT EXISTS idx_trade_attempts_pair_id ON trade_attempts(pair_id);

		CREATE TABLE IF NOT EXISTS transfers (
			transfer_id VARCHAR(128) PRIMARY KEY,
			origin_tx_hash VARCHAR(66) NOT NULL,
			origin_chain_id BIGINT NOT NULL,
			destination_chain_id BIGINT NOT NULL,
			user_address VARCHAR(42) NOT NULL,
			asset_symbol VARCHAR(32) NOT NULL,
			amount TEXT NOT NULL,
			status VARCHAR(32) NOT NULL,
			transfer_timestamp TIMESTAMPTZ NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_transfers_origin_tx ON transfers(origin_tx_hash);
		CREATE INDEX IF NOT EXISTS idx_transfers_user ON transfers(user_address, transfer_timestamp DESC);
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
