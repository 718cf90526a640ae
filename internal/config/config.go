package config

import (
	"os"
	"strconv"
)

type Config struct {
	// HTTP
	HTTPPort string

	// Postgres
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBMaxConns int32

	// Redis
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	StateTTLSecs   int
	AlertDedupSecs int

	// MQTT
	MQTTBrokerURL string
	MQTTTopic     string
	MQTTClientID  string
	MQTTCAFile    string // empty disables TLS

	// Model
	ModelPath      string
	ModelTimeoutMS int

	// Pipeline
	StateChannelSize int

	// Device liveness window for read-time status derivation
	LivenessWindowSecs int

	// Logging
	LogLevel string
	LogJSON  bool
}

func Load() *Config {
	return &Config{
		HTTPPort:           getEnv("HTTP_PORT", "5000"),
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBPort:             getEnv("DB_PORT", "5432"),
		DBUser:             getEnv("DB_USER", "health_user"),
		DBPassword:         getEnv("DB_PASSWORD", "health_password"),
		DBName:             getEnv("DB_NAME", "health_monitor"),
		DBMaxConns:         int32(getEnvInt("DB_MAX_CONNS", 15)),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		StateTTLSecs:       getEnvInt("STATE_TTL_SECONDS", 60),
		AlertDedupSecs:     getEnvInt("ALERT_DEDUP_SECONDS", 300),
		MQTTBrokerURL:      getEnv("MQTT_BROKER_URL", "tcp://localhost:1883"),
		MQTTTopic:          getEnv("MQTT_TOPIC", "/iot/health"),
		MQTTClientID:       getEnv("MQTT_CLIENT_ID", "health-ingestd"),
		MQTTCAFile:         getEnv("MQTT_TLS_CA_CERTS", ""),
		ModelPath:          getEnv("MODEL_PATH", "model.json"),
		ModelTimeoutMS:     getEnvInt("MODEL_TIMEOUT_MS", 250),
		StateChannelSize:   getEnvInt("STATE_CHANNEL_SIZE", 10000),
		LivenessWindowSecs: getEnvInt("LIVENESS_WINDOW_SECONDS", 300),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogJSON:            getEnvBool("LOG_JSON", true),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
