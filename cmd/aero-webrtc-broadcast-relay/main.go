package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/wilsonzlin/aero/proxy/webrtc-broadcast-relay/internal/auth"
	"github.com/wilsonzlin/aero/proxy/webrtc-broadcast-relay/internal/config"
	"github.com/wilsonzlin/aero/proxy/webrtc-broadcast-relay/internal/httpserver"
	"github.com/wilsonzlin/aero/proxy/webrtc-broadcast-relay/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/webrtc-broadcast-relay/internal/origin"
	"github.com/wilsonzlin/aero/proxy/webrtc-broadcast-relay/internal/signaling"
)

var (
	// Set via -ldflags at build time. Values may be empty in local/dev builds.
	buildCommit = ""
	buildTime   = ""
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	logger.Info("starting aero-webrtc-broadcast-relay",
		"listen_addr", cfg.ListenAddr,
		"public_base_url", cfg.PublicBaseURL,
		"mode", cfg.Mode,
		"room_id", cfg.RoomID,
		"strict_relay", cfg.StrictRelay,
		"static_dir", cfg.StaticDir,
		"ice_servers", len(cfg.ICEServers),
		"turn_rest_enabled", cfg.TURNREST.Enabled(),
		"max_signaling_message_bytes", cfg.MaxSignalingMessageBytes,
		"max_signaling_messages_per_second", cfg.MaxSignalingMessagesPerSecond,
	)

	logStartupSecurityWarnings(logger, cfg)

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to listen", "err", err)
		os.Exit(1)
	}

	commit, builtAt := resolveBuildInfo(buildCommit, buildTime)

	srv, err := httpserver.New(cfg, logger, httpserver.BuildInfo{Commit: commit, BuildTime: builtAt})
	if err != nil {
		logger.Error("failed to configure http server", "err", err)
		os.Exit(2)
	}

	m := metrics.New()
	srv.SetMetrics(m)

	coord, err := signaling.NewCoordinator(signaling.CoordinatorConfig{
		Verifier:      auth.PINVerifier{Expected: cfg.AdminPIN},
		DefaultRoomID: cfg.RoomID,
		StrictRelay:   cfg.StrictRelay,
		SendQueue:     cfg.SignalingSendQueue,
		Logger:        logger,
		Metrics:       m,
	})
	if err != nil {
		logger.Error("failed to configure signaling coordinator", "err", err)
		os.Exit(2)
	}
	coordCtx, stopCoord := context.WithCancel(context.Background())
	go coord.Run(coordCtx)

	sig := signaling.NewServer(signaling.Config{
		Coordinator:          coord,
		Origin:               origin.Policy{Allowed: cfg.AllowedOrigins},
		IdleTimeout:          cfg.SignalingWSIdleTimeout,
		PingInterval:         cfg.SignalingWSPingInterval,
		MaxMessageBytes:      cfg.MaxSignalingMessageBytes,
		MaxMessagesPerSecond: cfg.MaxSignalingMessagesPerSecond,
		Logger:               logger,
		Metrics:              m,
	})
	sig.RegisterRoutes(srv.Mux())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		stopCoord()
		<-coord.Done()
		if err != nil && !errors.Is(err, httpserver.ErrServerClosed) {
			logger.Error("http server exited", "err", err)
			os.Exit(1)
		}
		return
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// http.Server.Shutdown doesn't track hijacked WebSockets. Stopping the
	// coordinator closes their send queues so each writer sends a close frame.
	stopCoord()
	<-coord.Done()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed, closing", "err", err)
		_ = srv.Close()
	}

	if err := <-errCh; err != nil && !errors.Is(err, httpserver.ErrServerClosed) {
		logger.Error("http server exited after shutdown", "err", err)
		os.Exit(1)
	}
}

func resolveBuildInfo(commit, buildTime string) (string, string) {
	// Prefer ldflags-injected values but fall back to the Go build info.
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "" {
					commit = s.Value
				}
			case "vcs.time":
				if buildTime == "" {
					buildTime = s.Value
				}
			}
		}
	}

	return commit, buildTime
}
