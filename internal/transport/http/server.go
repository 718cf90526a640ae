package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"health-monitor/ingestion/internal/domain"
	"health-monitor/ingestion/internal/metrics"
)

// Ingestor is the coordinator's entry point, abstracted for handler tests.
type Ingestor interface {
	Ingest(ctx context.Context, payload map[string]interface{}, arrival time.Time) (domain.Outcome, error)
}

// Reads is the minimal read surface served to the dashboard.
type Reads interface {
	Ping(ctx context.Context) error
	ListDevices(ctx context.Context) ([]domain.DeviceRecord, error)
	DeviceStats(ctx context.Context, deviceID string) (domain.DeviceStats, error)
	RecentAnomalies(ctx context.Context, since time.Time, deviceID string, limit int) ([]domain.AnomalyRecord, error)
	ActiveAlerts(ctx context.Context, since time.Time) ([]domain.Alert, error)
	ResolveAlert(ctx context.Context, id int64) error
}

type Server struct {
	ingestor       Ingestor
	reads          Reads
	modelLoaded    func() bool
	livenessWindow time.Duration
	log            *slog.Logger
	httpServer     *http.Server
}

func NewServer(addr string, ingestor Ingestor, reads Reads, modelLoaded func() bool, livenessWindow time.Duration, log *slog.Logger) *Server {
	s := &Server{
		ingestor:       ingestor,
		reads:          reads,
		modelLoaded:    modelLoaded,
		livenessWindow: livenessWindow,
		log:            log,
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router builds the request-channel surface. Exposed for handler tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", metrics.HandleMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Post("/telemetry", s.handleIngest)
		r.Get("/devices", s.handleDevices)
		r.Get("/devices/{deviceID}", s.handleDeviceStats)
		r.Get("/anomalies", s.handleAnomalies)
		r.Get("/alerts", s.handleAlerts)
		r.Post("/alerts/{alertID}/resolve", s.handleResolveAlert)
	})

	return r
}

func (s *Server) Start() error {
	s.log.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
