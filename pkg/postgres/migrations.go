package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// RunMigrations executes the schema statements the service needs.
func RunMigrations(ctx context.Context, db *sql.DB, service string, log zerolog.Logger) error {
	for i, m := range getServiceMigrations(service) {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration %d for %s: %w", i+1, service, err)
		}
	}
	log.Info().Str("service", service).Msg("migrations completed")
	return nil
}

var userSchema = []string{
	`CREATE TABLE IF NOT EXISTS regular_users (
		id BIGSERIAL PRIMARY KEY,
		first_name VARCHAR(255) NOT NULL DEFAULT '',
		last_name VARCHAR(255) NOT NULL DEFAULT '',
		email VARCHAR(255) NOT NULL DEFAULT '',
		is_test BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS managers (
		id BIGSERIAL PRIMARY KEY,
		first_name VARCHAR(255) NOT NULL DEFAULT '',
		last_name VARCHAR(255) NOT NULL DEFAULT '',
		email VARCHAR(255) NOT NULL DEFAULT '',
		is_test BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS account_managers (
		id BIGSERIAL PRIMARY KEY,
		first_name VARCHAR(255) NOT NULL DEFAULT '',
		last_name VARCHAR(255) NOT NULL DEFAULT '',
		email VARCHAR(255) NOT NULL DEFAULT '',
		is_test BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS regular_user_managers (
		regular_user_id BIGINT NOT NULL REFERENCES regular_users(id),
		account_manager_id BIGINT NOT NULL REFERENCES account_managers(id),
		started_at TIMESTAMP NOT NULL DEFAULT NOW(),
		ended_at TIMESTAMP,
		PRIMARY KEY (regular_user_id, account_manager_id, started_at)
	)`,
}

// idempotency keys are scoped per consumer so trackers sharing a database
// each process an event once.
const idempotencySchema = `CREATE TABLE IF NOT EXISTS idempotency_keys (
	consumer VARCHAR(50) NOT NULL,
	event_id VARCHAR(36) NOT NULL,
	processed_at TIMESTAMP NOT NULL DEFAULT NOW(),
	PRIMARY KEY (consumer, event_id)
)`

const crmSchema = `CREATE TABLE IF NOT EXISTS crm_sync_log (
	id SERIAL PRIMARY KEY,
	event_id VARCHAR(36) NOT NULL,
	correlation_id VARCHAR(36),
	event_name VARCHAR(100) NOT NULL,
	user_id BIGINT NOT NULL,
	user_type VARCHAR(30) NOT NULL,
	user_email VARCHAR(255),
	user_name VARCHAR(255),
	synced_at TIMESTAMP NOT NULL DEFAULT NOW()
)`

const analyticsSchema = `CREATE TABLE IF NOT EXISTS analytics_metrics (
	id SERIAL PRIMARY KEY,
	metric_date DATE NOT NULL,
	event_name VARCHAR(100) NOT NULL,
	user_type VARCHAR(30) NOT NULL,
	event_count INTEGER NOT NULL DEFAULT 0,
	UNIQUE (metric_date, event_name, user_type)
)`

func getServiceMigrations(service string) []string {
	switch service {
	case "crm":
		return []string{idempotencySchema, crmSchema}
	case "analytics":
		return []string{idempotencySchema, analyticsSchema}
	case "tracker":
		out := append([]string{}, userSchema...)
		return append(out, idempotencySchema, crmSchema, analyticsSchema)
	default:
		return userSchema
	}
}
