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

	if err := DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database")
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

// EnsureSchema applies the necessary DDL to create tables if they don't
// exist. Safe to run multiple times.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS engine_settings (
			settings_id SERIAL PRIMARY KEY,
			config_name VARCHAR(255) NOT NULL DEFAULT 'default',
			version INTEGER NOT NULL DEFAULT 1,
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			activated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			methodology JSONB NOT NULL,
			execution JSONB NOT NULL,
			incentive JSONB NOT NULL,
			CONSTRAINT uq_engine_settings_config_version UNIQUE (config_name, version)
		);
		CREATE INDEX IF NOT EXISTS idx_engine_settings_config_active ON engine_settings(config_name, is_active, activated_at DESC);

		-- Single-row engine state: the TWAP target, the global trade clock,
		-- the mid-rebalance override flag and the ripcord reward pool.
		CREATE TABLE IF NOT EXISTS engine_state (
			id INTEGER PRIMARY KEY DEFAULT 1,
			twap_leverage_ratio TEXT NOT NULL DEFAULT '0',
			global_last_trade TIMESTAMPTZ,
			override_no_rebalance BOOLEAN NOT NULL DEFAULT FALSE,
			reward_balance TEXT NOT NULL DEFAULT '0',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);
		INSERT INTO engine_state (id) VALUES (1) ON CONFLICT (id) DO NOTHING;

		CREATE TABLE IF NOT EXISTS trade_log (
			trade_id SERIAL PRIMARY KEY,
			receipt_id VARCHAR(64) NOT NULL,
			operation VARCHAR(32) NOT NULL,
			exchange_name VARCHAR(255) NOT NULL,
			sell_asset VARCHAR(64) NOT NULL,
			buy_asset VARCHAR(64) NOT NULL,
			sell_amount TEXT NOT NULL,
			receive_amount TEXT NOT NULL,
			leverage_before TEXT NOT NULL,
			leverage_after TEXT NOT NULL,
			twap_active BOOLEAN NOT NULL,
			reward_paid TEXT NOT NULL,
			caller VARCHAR(255) NOT NULL,
			executed_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_trade_log_executed_at ON trade_log(executed_at DESC);
		CREATE INDEX IF NOT EXISTS idx_trade_log_operation ON trade_log(operation);
	`
	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured")
	return nil
}

// TestDBConnection tests if the database connection is healthy.
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
