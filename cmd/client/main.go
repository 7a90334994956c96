package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"roomlink/internal/core/domain"
	"roomlink/internal/core/ports"
	"roomlink/internal/core/services"
	httphandlers "roomlink/internal/handlers/http"
	"roomlink/internal/infrastructure/media"
	"roomlink/internal/infrastructure/monitoring"
	signalws "roomlink/internal/infrastructure/signal"
	"roomlink/pkg/config"
	apperrors "roomlink/pkg/errors"
	"roomlink/pkg/logger"
	"roomlink/pkg/retry"
	"roomlink/pkg/tracing"
)

func main() {
	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/roomlink/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "roomlink",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	// Metrics use a dedicated registry so the collector can be rebuilt in
	// tests without global registration conflicts.
	promRegistry := prometheus.NewRegistry()
	var collector ports.Collector = ports.NopCollector{}
	if cfg.Monitoring.PrometheusEnabled {
		collector = monitoring.NewPrometheusCollector(promRegistry)
	}

	iceServers := []webrtc.ICEServer{
		{URLs: []string{"stun:stun.l.google.com:19302"}},
	}
	if len(cfg.WebRTC.ICEServers) > 0 {
		iceServers = iceServers[:0]
		for _, s := range cfg.WebRTC.ICEServers {
			iceServers = append(iceServers, webrtc.ICEServer{
				URLs:       s.URLs,
				Username:   s.Username,
				Credential: s.Credential,
			})
		}
	}

	channel := signalws.NewClient(signalws.Options{
		PingInterval:     cfg.Signaling.PingInterval,
		PongTimeout:      cfg.Signaling.PongTimeout,
		WriteTimeout:     cfg.Signaling.WriteTimeout,
		HandshakeTimeout: 10 * time.Second,
		SendRate:         cfg.Signaling.SendRate,
		SendBurst:        cfg.Signaling.SendBurst,
	}, log)

	mediaSource := media.NewSyntheticSource(log)
	registry := services.NewStreamRegistry(collector)

	session := services.NewRoomSession(
		services.SessionConfig{
			RoomID:     domain.RoomID(cfg.Room.ID),
			Endpoint:   cfg.Room.SignalingEndpoint,
			AuthToken:  cfg.Room.AuthToken,
			ICEServers: iceServers,
			Constraints: ports.MediaConstraints{
				Audio:    cfg.Media.EnableAudio,
				Video:    cfg.Media.EnableVideo,
				DeviceID: cfg.Media.DeviceID,
			},
			EventBuffer: cfg.Signaling.EventBuffer,
		},
		channel,
		mediaSource,
		registry,
		collector,
		log,
	)

	var statusServer *httphandlers.Server
	if cfg.Status.Enabled {
		var metricsHandler = promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})
		if !cfg.Monitoring.PrometheusEnabled {
			metricsHandler = nil
		}
		statusServer = httphandlers.NewServer(
			cfg.Status.Address,
			httphandlers.NewStatusHandler(session),
			metricsHandler,
		)
		go func() {
			log.Infow("status API listening", "address", cfg.Status.Address)
			if err := statusServer.Start(); err != nil {
				log.Errorw("status server failed", "error", err)
			}
		}()
	}

	ctx := context.Background()
	retryCfg := retry.DefaultConfig()

	if err := joinWithRetry(ctx, session, retryCfg); err != nil {
		log.Fatalw("failed to join room", "room_id", cfg.Room.ID, "error", err)
	}

	go runEventLoop(ctx, session, retryCfg, log)

	// SIGUSR1 starts a screen share, SIGINT/SIGTERM leaves the room.
	shareCh := make(chan os.Signal, 1)
	signal.Notify(shareCh, syscall.SIGUSR1)
	go func() {
		for range shareCh {
			if err := session.ShareScreen(ctx); err != nil {
				log.Warnw("screen share failed", "error", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down", "room_id", cfg.Room.ID)
	if err := session.Leave(); err != nil {
		log.Errorw("error leaving room", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if statusServer != nil {
		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			log.Errorw("status server shutdown failed", "error", err)
		}
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Errorw("tracing shutdown failed", "error", err)
	}
}

// joinWithRetry retries transient join failures. Authentication failures are
// final: retrying a missing or expired token cannot succeed.
func joinWithRetry(ctx context.Context, session ports.RoomSession, cfg retry.Config) error {
	var authErr error
	err := retry.Retry(ctx, cfg, func() error {
		err := session.Join(ctx)
		if apperrors.HasCode(err, apperrors.ErrCodeAuthenticationRequired) {
			authErr = err
			return nil
		}
		return err
	})
	if authErr != nil {
		return authErr
	}
	return err
}

// runEventLoop consumes session events. An unexpected relay disconnect
// triggers a full leave/rejoin cycle with backoff.
func runEventLoop(ctx context.Context, session ports.RoomSession, retryCfg retry.Config, log *zap.SugaredLogger) {
	for ev := range session.Events() {
		switch ev.Type {
		case domain.EventOpenedRoom:
			log.Infow("room opened", "room_id", ev.RoomID)
		case domain.EventJoinedRoom:
			log.Infow("joined room", "stream_id", ev.StreamID)
		case domain.EventLeftRoom:
			log.Infow("left room", "room_id", ev.RoomID)
		case domain.EventShareStarted:
			log.Infow("screen share started", "stream_id", ev.StreamID)
		case domain.EventPeerError:
			log.Warnw("peer error", "peer_id", ev.PeerID, "error", ev.Err)
		case domain.EventMediaError:
			log.Errorw("media error", "error", ev.Err)
		case domain.EventSocketError:
			log.Warnw("signaling connection lost, rejoining", "error", ev.Err)
			session.Leave()
			if err := joinWithRetry(ctx, session, retryCfg); err != nil {
				log.Errorw("rejoin failed", "error", err)
				return
			}
		}
	}
}
