package migration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_extension_uuid_ossp",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Name: "create_table_documents",
		SQL: `CREATE TABLE IF NOT EXISTS documents (
  id               UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  user_id          TEXT        NOT NULL,
  document_type_id TEXT        NOT NULL,
  filename         TEXT        NOT NULL,
  storage_path     TEXT        NOT NULL UNIQUE,
  size             BIGINT      NOT NULL CHECK (size >= 0),
  content_type     TEXT        NOT NULL,
  payment_status   TEXT        NOT NULL DEFAULT 'pending',
  order_id         UUID,
  admin_downloaded BOOLEAN     NOT NULL DEFAULT false,
  signed_path      TEXT,
  udin             TEXT,
  created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_documents_user_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_user_id ON documents (user_id);`,
	},
	{
		Name: "create_index_documents_order_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_order_id ON documents (order_id);`,
	},
	{
		Name: "create_index_documents_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents (created_at);`,
	},
	{
		Name: "create_sequence_order_number",
		SQL:  `CREATE SEQUENCE IF NOT EXISTS order_number_seq START 1;`,
	},
	{
		Name: "create_table_orders",
		SQL: `CREATE TABLE IF NOT EXISTS orders (
  id                 UUID        PRIMARY KEY,
  order_number       TEXT        NOT NULL UNIQUE
    DEFAULT 'ORD-' || to_char(now(), 'YYYY') || '-' || lpad(nextval('order_number_seq')::text, 6, '0'),
  user_id            TEXT        NOT NULL,
  items              JSONB       NOT NULL,
  subtotal           BIGINT      NOT NULL CHECK (subtotal >= 0),
  bulk_discount      BIGINT      NOT NULL DEFAULT 0 CHECK (bulk_discount >= 0),
  tax                BIGINT      NOT NULL CHECK (tax >= 0),
  total              BIGINT      NOT NULL CHECK (total > 0),
  currency           TEXT        NOT NULL,
  status             TEXT        NOT NULL DEFAULT 'pending',
  gateway_order_id   TEXT        UNIQUE,
  gateway_payment_id TEXT,
  gateway_refund_id  TEXT,
  refund_amount      BIGINT      NOT NULL DEFAULT 0,
  failure_reason     TEXT,
  paid_at            TIMESTAMPTZ,
  failed_at          TIMESTAMPTZ,
  refunded_at        TIMESTAMPTZ,
  created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_orders_user_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders (user_id);`,
	},
	{
		Name: "create_index_orders_status",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_orders_status ON orders (status);`,
	},
	{
		Name: "create_table_transactions",
		SQL: `CREATE TABLE IF NOT EXISTS transactions (
  id                 UUID        PRIMARY KEY,
  user_id            TEXT        NOT NULL,
  order_id           UUID        NOT NULL REFERENCES orders (id),
  type               TEXT        NOT NULL,
  amount             BIGINT      NOT NULL,
  currency           TEXT        NOT NULL,
  status             TEXT        NOT NULL,
  gateway_order_id   TEXT,
  gateway_payment_id TEXT,
  gateway_refund_id  TEXT,
  description        TEXT        NOT NULL DEFAULT '',
  metadata           JSONB,
  processed_at       TIMESTAMPTZ NOT NULL,
  created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_transactions_order_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_transactions_order_id ON transactions (order_id);`,
	},
	{
		Name: "create_index_transactions_gateway_payment_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_transactions_gateway_payment_id ON transactions (gateway_payment_id);`,
	},
}

// EnsureMigrated checks if the 'transactions' table (created by the final
// step) exists and runs the migration steps if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, loc *time.Location, dbHost string) error {
	start := time.Now()

	logJSON(loc, map[string]any{
		"component": "database",
		"event":     "db_migration_check",
		"status":    "starting",
		"db_host":   dbHost,
	})

	var exists bool
	query := "SELECT to_regclass('public.transactions') IS NOT NULL"
	err := db.QueryRowContext(ctx, query).Scan(&exists)
	if err != nil {
		logJSON(loc, map[string]any{
			"component":     "database",
			"event":         "db_migration_failed",
			"status":        "error",
			"error_message": fmt.Sprintf("failed to check sentinel table: %v", err),
			"db_host":       dbHost,
			"duration_ms":   time.Since(start).Milliseconds(),
		})
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		logJSON(loc, map[string]any{
			"component":   "database",
			"event":       "db_migration_skip",
			"status":      "success",
			"msg":         "schema already exists, skipping migration",
			"db_host":     dbHost,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil
	}

	logJSON(loc, map[string]any{
		"component": "database",
		"event":     "db_migration_start",
		"status":    "in_progress",
		"db_host":   dbHost,
	})

	for _, step := range steps {
		stepStart := time.Now()
		_, err := db.ExecContext(ctx, step.SQL)
		if err != nil {
			logJSON(loc, map[string]any{
				"component":        "database",
				"event":            "db_migration_failed",
				"status":           "error",
				"migration_step":   step.Name,
				"error_message":    err.Error(),
				"db_host":          dbHost,
				"duration_ms":      time.Since(start).Milliseconds(),
				"step_duration_ms": time.Since(stepStart).Milliseconds(),
			})
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		logJSON(loc, map[string]any{
			"component":        "database",
			"event":            "db_migration_step",
			"status":           "success",
			"migration_step":   step.Name,
			"db_host":          dbHost,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		})
	}

	logJSON(loc, map[string]any{
		"component":   "database",
		"event":       "db_migration_success",
		"status":      "success",
		"db_host":     dbHost,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return nil
}

func logJSON(loc *time.Location, data map[string]any) {
	data["ts"] = time.Now().In(loc).Format(time.RFC3339Nano)
	if _, ok := data["level"]; !ok {
		if data["status"] == "error" {
			data["level"] = "error"
		} else {
			data["level"] = "info"
		}
	}

	b, err := json.Marshal(data)
	if err != nil {
		log.Printf("failed to marshal migration log: %v", err)
		return
	}
	log.SetFlags(0)
	log.Println(string(b))
}
