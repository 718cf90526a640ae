package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"health-monitor/ingestion/internal/config"
	"health-monitor/ingestion/internal/domain"
)

const (
	readingsChannel = "telemetry:readings"
	alertsChannel   = "telemetry:alerts"
)

// RedisStore mirrors live per-device state for the dashboard and publishes
// readings and alert escalations. Everything here is advisory: the durable
// truth lives in Postgres, so Redis failures never fail a commit.
type RedisStore struct {
	client   *redis.Client
	stateTTL time.Duration
	dedupTTL time.Duration
}

func NewRedisStore(ctx context.Context, cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client:   client,
		stateTTL: time.Duration(cfg.StateTTLSecs) * time.Second,
		dedupTTL: time.Duration(cfg.AlertDedupSecs) * time.Second,
	}, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// PublishReading refreshes the device's live-state hash and publishes the
// classified reading for dashboard subscribers, as one pipelined round trip.
func (r *RedisStore) PublishReading(ctx context.Context, reading *domain.Reading, v domain.Verdict) error {
	stateData := map[string]interface{}{
		"device_id":   reading.DeviceID,
		"observed_at": reading.ObservedAt.Unix(),
		"is_anomaly":  v.IsAnomaly,
	}
	if reading.HeartRate != nil {
		stateData["heart_rate"] = *reading.HeartRate
	}
	if reading.BodyTemp != nil {
		stateData["body_temp"] = *reading.BodyTemp
	}
	if reading.SignalStrength != nil {
		stateData["signal_strength"] = *reading.SignalStrength
	}
	if reading.BatteryLevel != nil {
		stateData["battery_level"] = *reading.BatteryLevel
	}
	if v.IsAnomaly {
		stateData["anomaly_type"] = string(v.AnomalyType)
	}

	pubPayload, err := json.Marshal(stateData)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	stateKey := fmt.Sprintf("device:%s:state", reading.DeviceID)

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, stateKey, stateData)
	pipe.Expire(ctx, stateKey, r.stateTTL)
	pipe.Publish(ctx, readingsChannel, pubPayload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// CheckAlertDedup reports whether an identical alert was published recently.
func (r *RedisStore) CheckAlertDedup(ctx context.Context, deviceID string, alertType domain.AnomalyType) (bool, error) {
	key := fmt.Sprintf("alert:%s:%s", deviceID, string(alertType))
	count, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check failed: %w", err)
	}
	return count > 0, nil
}

func (r *RedisStore) SetAlertDedup(ctx context.Context, deviceID string, alertType domain.AnomalyType) error {
	key := fmt.Sprintf("alert:%s:%s", deviceID, string(alertType))
	return r.client.Set(ctx, key, "1", r.dedupTTL).Err()
}

// PublishAlert pushes an escalation onto the shared alerts channel.
func (r *RedisStore) PublishAlert(ctx context.Context, payload []byte) error {
	return r.client.Publish(ctx, alertsChannel, payload).Err()
}
