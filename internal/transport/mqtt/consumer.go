package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"health-monitor/ingestion/internal/config"
	"health-monitor/ingestion/internal/domain"
)

// Ingestor mirrors the coordinator's entry point; both transports share it.
type Ingestor interface {
	Ingest(ctx context.Context, payload map[string]interface{}, arrival time.Time) (domain.Outcome, error)
}

// Consumer is the subscribe-channel binding. It has no reply path: rejected
// payloads are logged and dropped, commit failures are logged with enough
// context to replay from the broker side.
type Consumer struct {
	client   paho.Client
	topic    string
	ingestor Ingestor
	log      *slog.Logger
}

func NewConsumer(cfg *config.Config, ingestor Ingestor, log *slog.Logger) (*Consumer, error) {
	c := &Consumer{
		topic:    cfg.MQTTTopic,
		ingestor: ingestor,
		log:      log,
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.MQTTBrokerURL).
		SetClientID(cfg.MQTTClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(60 * time.Second)

	if cfg.MQTTCAFile != "" {
		tlsConfig, err := caTLSConfig(cfg.MQTTCAFile)
		if err != nil {
			return nil, fmt.Errorf("mqtt tls config: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(func(client paho.Client) {
		log.Info("mqtt connected", "broker", cfg.MQTTBrokerURL)
		if token := client.Subscribe(c.topic, 1, c.handleMessage); token.Wait() && token.Error() != nil {
			log.Error("mqtt subscribe failed", "topic", c.topic, "error", token.Error())
			return
		}
		log.Info("mqtt subscribed", "topic", c.topic)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Warn("mqtt connection lost", "error", err)
	})

	c.client = paho.NewClient(opts)
	return c, nil
}

// Run connects and consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}

	<-ctx.Done()
	c.client.Disconnect(250)
	return nil
}

func (c *Consumer) handleMessage(_ paho.Client, msg paho.Message) {
	c.process(context.Background(), msg.Payload())
}

// process is the fire-and-forget ingestion path; split out so tests can
// drive it without a broker.
func (c *Consumer) process(ctx context.Context, raw []byte) {
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.log.Warn("undecodable mqtt payload dropped", "bytes", len(raw), "error", err)
		return
	}

	outcome, err := c.ingestor.Ingest(ctx, payload, time.Now().UTC())
	if err != nil {
		c.log.Error("mqtt reading lost, replay from broker",
			"bytes", len(raw), "error", err)
		return
	}
	if !outcome.Accepted {
		c.log.Warn("mqtt payload rejected", "reason", outcome.Reason)
	}
}

func caTLSConfig(caFile string) (*tls.Config, error) {
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates parsed from %s", caFile)
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}
