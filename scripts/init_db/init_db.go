package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		getEnv("DB_USER", "health_user"),
		getEnv("DB_PASSWORD", "health_password"),
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_NAME", "health_monitor"),
	)

	ctx := context.Background()

	fmt.Println("Connecting to Postgres...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	createTables(ctx, conn)
	createIndexes(ctx, conn)
	verify(ctx, conn)

	fmt.Println("\n✅ Database initialised successfully")
}

func createTables(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Tables ──────────────────────────────────────")

	// Audit log: one row per accepted reading, anomalous or not. Vitals are
	// nullable because MISSING_FIELDS readings are persisted too.
	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS anomalies (
			id              BIGSERIAL        PRIMARY KEY,
			timestamp       TIMESTAMPTZ      NOT NULL,
			device_id       TEXT             NOT NULL,
			heart_rate      DOUBLE PRECISION,
			body_temp       DOUBLE PRECISION,
			signal_strength DOUBLE PRECISION,
			battery_level   DOUBLE PRECISION,
			is_anomaly      SMALLINT         NOT NULL DEFAULT 0,
			anomaly_type    TEXT,
			raw_data        TEXT,

			CONSTRAINT chk_is_anomaly CHECK (is_anomaly IN (0, 1)),
			CONSTRAINT chk_anomaly_type CHECK (
				anomaly_type IS NULL OR anomaly_type IN (
					'MISSING_FIELDS', 'OUT_OF_RANGE_HR', 'OUT_OF_RANGE_TEMP',
					'LOW_BATTERY', 'WEAK_SIGNAL', 'ML_ANOMALY'
				)
			)
		);
	`, "anomalies table created")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS devices (
			device_id      TEXT        PRIMARY KEY,
			first_seen     TIMESTAMPTZ NOT NULL,
			last_seen      TIMESTAMPTZ NOT NULL,
			total_readings BIGINT      NOT NULL DEFAULT 0,
			status         TEXT        NOT NULL DEFAULT 'ACTIVE'
		);
	`, "devices table created")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS alerts (
			id          BIGSERIAL   PRIMARY KEY,
			timestamp   TIMESTAMPTZ NOT NULL,
			device_id   TEXT        NOT NULL,
			alert_type  TEXT        NOT NULL,
			severity    TEXT        NOT NULL,
			message     TEXT,
			is_resolved SMALLINT    NOT NULL DEFAULT 0,

			CONSTRAINT chk_severity CHECK (severity IN ('WARNING', 'CRITICAL')),
			CONSTRAINT chk_is_resolved CHECK (is_resolved IN (0, 1))
		);
	`, "alerts table created")
}

func createIndexes(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Indexes ─────────────────────────────────────")

	indexes := []struct {
		name string
		sql  string
		why  string
	}{
		{
			name: "idx_anomalies_device_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_anomalies_device_time
				  ON anomalies (device_id, timestamp DESC);`,
			why: "query: reading history for one device",
		},
		{
			name: "idx_anomalies_flagged",
			sql: `CREATE INDEX IF NOT EXISTS idx_anomalies_flagged
				  ON anomalies (timestamp DESC)
				  WHERE is_anomaly = 1;`,
			why: "query: recent anomalies only (partial index)",
		},
		{
			name: "idx_alerts_unresolved",
			sql: `CREATE INDEX IF NOT EXISTS idx_alerts_unresolved
				  ON alerts (timestamp DESC)
				  WHERE is_resolved = 0;`,
			why: "query: active alerts only (partial index)",
		},
	}

	for _, idx := range indexes {
		execOrFatal(ctx, conn, idx.sql,
			fmt.Sprintf("%-30s ← %s", idx.name, idx.why),
		)
	}
}

func verify(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Verification ────────────────────────────────")

	for _, table := range []string{"anomalies", "devices", "alerts"} {
		var exists bool
		err := conn.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil || !exists {
			log.Fatalf("Table %s was not created: %v", table, err)
		}
		fmt.Printf("  ✓ table: %s\n", table)
	}
}

func execOrFatal(ctx context.Context, conn *pgx.Conn, sql, label string) {
	_, err := conn.Exec(ctx, sql)
	if err != nil {
		log.Fatalf("FAILED — %s\nError: %v\nSQL: %s", label, err, sql)
	}
	fmt.Printf("  ✓ %s\n", label)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
