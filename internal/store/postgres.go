package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"health-monitor/ingestion/internal/config"
	"health-monitor/ingestion/internal/domain"
)

// ErrAlertNotFound is returned when resolving an alert id that does not exist.
var ErrAlertNotFound = errors.New("alert not found")

// PostgresStore owns the durable representations: the append-only audit log,
// the device registry, and the alert table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, cfg *config.Config) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?pool_max_conns=%d",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBMaxConns,
	)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Commit durably records one reading and its verdict as a single transaction:
// the audit row (always, anomalous or not), the device-registry upsert, and
// the alert row when the anomaly type escalates. Either all three land or
// none do, so a failed audit write can never leave a registry update behind.
//
// Per-device serialization rides on the row-level upsert; concurrent commits
// for the same device_id cannot lose counter increments, and GREATEST keeps
// last_seen monotone under out-of-order delivery.
func (s *PostgresStore) Commit(ctx context.Context, r *domain.Reading, v domain.Verdict) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin commit for %s: %w", r.DeviceID, err)
	}
	defer tx.Rollback(context.Background())

	var anomalyType *string
	if v.IsAnomaly {
		t := string(v.AnomalyType)
		anomalyType = &t
	}

	var recordID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO anomalies
			(timestamp, device_id, heart_rate, body_temp, signal_strength, battery_level, is_anomaly, anomaly_type, raw_data)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`,
		r.ObservedAt,
		r.DeviceID,
		r.HeartRate,
		r.BodyTemp,
		r.SignalStrength,
		r.BatteryLevel,
		boolToInt(v.IsAnomaly),
		anomalyType,
		string(r.RawPayload),
	).Scan(&recordID)
	if err != nil {
		return 0, fmt.Errorf("insert audit row for %s: %w", r.DeviceID, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO devices (device_id, first_seen, last_seen, total_readings, status)
		VALUES ($1, $2, $2, 1, $3)
		ON CONFLICT (device_id) DO UPDATE SET
			last_seen      = GREATEST(devices.last_seen, EXCLUDED.last_seen),
			total_readings = devices.total_readings + 1
	`, r.DeviceID, r.ObservedAt, string(domain.StatusActive))
	if err != nil {
		return 0, fmt.Errorf("upsert device %s: %w", r.DeviceID, err)
	}

	if v.IsAnomaly {
		if severity, ok := domain.AlertSeverityFor(v.AnomalyType); ok {
			message := fmt.Sprintf("%s detected on %s", v.AnomalyType, r.DeviceID)
			_, err = tx.Exec(ctx, `
				INSERT INTO alerts (timestamp, device_id, alert_type, severity, message, is_resolved)
				VALUES ($1, $2, $3, $4, $5, 0)
			`, r.ObservedAt, r.DeviceID, string(v.AnomalyType), string(severity), message)
			if err != nil {
				return 0, fmt.Errorf("insert alert for %s: %w", r.DeviceID, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit reading for %s: %w", r.DeviceID, err)
	}

	return recordID, nil
}

// ListDevices returns every registry row. Status is the stored value; the
// read side derives liveness from LastSeen.
func (s *PostgresStore) ListDevices(ctx context.Context) ([]domain.DeviceRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT device_id, first_seen, last_seen, total_readings, status
		FROM devices
		ORDER BY last_seen DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []domain.DeviceRecord
	for rows.Next() {
		var d domain.DeviceRecord
		var status string
		if err := rows.Scan(&d.DeviceID, &d.FirstSeen, &d.LastSeen, &d.TotalReadings, &status); err != nil {
			return nil, fmt.Errorf("scan device row: %w", err)
		}
		d.Status = domain.DeviceStatus(status)
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// DeviceStats aggregates the audit log for one device.
func (s *PostgresStore) DeviceStats(ctx context.Context, deviceID string) (domain.DeviceStats, error) {
	var stats domain.DeviceStats
	var status string
	err := s.pool.QueryRow(ctx, `
		SELECT device_id, first_seen, last_seen, total_readings, status
		FROM devices
		WHERE device_id = $1
	`, deviceID).Scan(&stats.DeviceID, &stats.FirstSeen, &stats.LastSeen, &stats.TotalReadings, &status)
	if err != nil {
		return domain.DeviceStats{}, fmt.Errorf("device %s: %w", deviceID, err)
	}
	stats.Status = domain.DeviceStatus(status)

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM anomalies WHERE device_id = $1 AND is_anomaly = 1
	`, deviceID).Scan(&stats.AnomalyCount)
	if err != nil {
		return domain.DeviceStats{}, fmt.Errorf("anomaly count for %s: %w", deviceID, err)
	}

	if stats.TotalReadings > 0 {
		stats.AnomalyRate = float64(stats.AnomalyCount) / float64(stats.TotalReadings) * 100
	}
	return stats, nil
}

// RecentAnomalies returns anomalous audit rows since the given time, newest
// first, optionally filtered to one device.
func (s *PostgresStore) RecentAnomalies(ctx context.Context, since time.Time, deviceID string, limit int) ([]domain.AnomalyRecord, error) {
	query := `
		SELECT id, timestamp, device_id, heart_rate, body_temp, signal_strength, battery_level, is_anomaly, anomaly_type, raw_data
		FROM anomalies
		WHERE is_anomaly = 1 AND timestamp > $1
	`
	args := []interface{}{since}
	if deviceID != "" {
		query += ` AND device_id = $2`
		args = append(args, deviceID)
	}
	query += fmt.Sprintf(` ORDER BY timestamp DESC LIMIT %d`, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query anomalies: %w", err)
	}
	defer rows.Close()

	var records []domain.AnomalyRecord
	for rows.Next() {
		var rec domain.AnomalyRecord
		var isAnomaly int16
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.DeviceID, &rec.HeartRate, &rec.BodyTemp,
			&rec.SignalStrength, &rec.BatteryLevel, &isAnomaly, &rec.AnomalyType, &rec.RawData); err != nil {
			return nil, fmt.Errorf("scan anomaly row: %w", err)
		}
		rec.IsAnomaly = isAnomaly != 0
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ReadingByID fetches one audit row regardless of its verdict.
func (s *PostgresStore) ReadingByID(ctx context.Context, id int64) (domain.AnomalyRecord, error) {
	var rec domain.AnomalyRecord
	var isAnomaly int16
	err := s.pool.QueryRow(ctx, `
		SELECT id, timestamp, device_id, heart_rate, body_temp, signal_strength, battery_level, is_anomaly, anomaly_type, raw_data
		FROM anomalies
		WHERE id = $1
	`, id).Scan(&rec.ID, &rec.Timestamp, &rec.DeviceID, &rec.HeartRate, &rec.BodyTemp,
		&rec.SignalStrength, &rec.BatteryLevel, &isAnomaly, &rec.AnomalyType, &rec.RawData)
	if err != nil {
		return domain.AnomalyRecord{}, fmt.Errorf("reading %d: %w", id, err)
	}
	rec.IsAnomaly = isAnomaly != 0
	return rec, nil
}

// ActiveAlerts returns unresolved alerts since the given time, newest first.
func (s *PostgresStore) ActiveAlerts(ctx context.Context, since time.Time) ([]domain.Alert, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, timestamp, device_id, alert_type, severity, message, is_resolved
		FROM alerts
		WHERE is_resolved = 0 AND timestamp > $1
		ORDER BY timestamp DESC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		var a domain.Alert
		var alertType, severity string
		var resolved int16
		if err := rows.Scan(&a.ID, &a.Timestamp, &a.DeviceID, &alertType, &severity, &a.Message, &resolved); err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		a.AlertType = domain.AnomalyType(alertType)
		a.Severity = domain.AlertSeverity(severity)
		a.IsResolved = resolved != 0
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// ResolveAlert marks one alert resolved. Idempotent on already-resolved rows.
func (s *PostgresStore) ResolveAlert(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE alerts SET is_resolved = 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("resolve alert %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("resolve alert %d: %w", id, ErrAlertNotFound)
	}
	return nil
}

func boolToInt(b bool) int16 {
	if b {
		return 1
	}
	return 0
}
