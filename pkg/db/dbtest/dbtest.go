// Package dbtest opens throwaway SQLite databases carrying the same tables
// as the Postgres migrations, for repository and service tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  role TEXT NOT NULL,
  name TEXT NOT NULL,
  phone TEXT NOT NULL,
  pincode TEXT NOT NULL DEFAULT '',
  gender TEXT,
  skills TEXT,
  approval_status TEXT NOT NULL DEFAULT 'pending',
  engagement_status TEXT NOT NULL DEFAULT 'ready',
  availability TEXT,
  vehicle_type TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  farmer_id TEXT NOT NULL,
  service_type TEXT NOT NULL,
  skill TEXT,
  male_workers INTEGER NOT NULL DEFAULT 0,
  female_workers INTEGER NOT NULL DEFAULT 0,
  total_workers INTEGER NOT NULL DEFAULT 0,
  bundle_details TEXT,
  start_date DATETIME NOT NULL,
  cost TEXT NOT NULL DEFAULT '0',
  worker_ids TEXT NOT NULL DEFAULT '{}',
  attempted_workers TEXT NOT NULL DEFAULT '{}',
  status TEXT NOT NULL DEFAULT 'pending',
  payment_status TEXT NOT NULL DEFAULT 'none',
  assignment_mode TEXT,
  timeout DATETIME,
  version INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS worker_acceptances (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  candidate_id TEXT NOT NULL,
  gender TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  decision TEXT,
  active INTEGER NOT NULL DEFAULT 1,
  offered_at DATETIME NOT NULL,
  deadline DATETIME NOT NULL,
  decided_at DATETIME,
  completed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS transport_assignments (
  id TEXT PRIMARY KEY,
  order_id TEXT,
  worker_ids TEXT NOT NULL DEFAULT '{}',
  driver_id TEXT,
  vehicle_type TEXT NOT NULL,
  pickup_pincode TEXT NOT NULL DEFAULT '',
  pickup_date DATETIME NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  rejected_driver_ids TEXT NOT NULL DEFAULT '{}',
  timeout DATETIME,
  cost TEXT NOT NULL DEFAULT '0',
  version INTEGER NOT NULL DEFAULT 0,
  accepted_at DATETIME,
  completed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS earnings (
  id TEXT PRIMARY KEY,
  candidate_id TEXT NOT NULL,
  order_id TEXT,
  transport_assignment_id TEXT,
  amount TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_earnings_order_candidate ON earnings (order_id, candidate_id);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_earnings_transport_candidate ON earnings (transport_assignment_id, candidate_id);`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	`CREATE TABLE IF NOT EXISTS outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
);`,
}

// Open returns a fresh in-memory database with every table created.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}
