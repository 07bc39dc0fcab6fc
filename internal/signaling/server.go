package signaling

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wilsonzlin/aero/proxy/webrtc-broadcast-relay/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/webrtc-broadcast-relay/internal/origin"
	"github.com/wilsonzlin/aero/proxy/webrtc-broadcast-relay/internal/ratelimit"
)

const (
	DefaultIdleTimeout          = 60 * time.Second
	DefaultPingInterval         = 20 * time.Second
	DefaultMaxMessageBytes      = int64(64 * 1024)
	DefaultMaxMessagesPerSecond = 500
)

// Config wires the WebSocket transport to a running Coordinator.
type Config struct {
	Coordinator *Coordinator

	// Origin gates the upgrade. The zero value allows same-host pages and
	// non-browser clients.
	Origin origin.Policy

	// IdleTimeout closes a connection that has sent nothing (pongs included)
	// for this long. PingInterval must be shorter.
	IdleTimeout  time.Duration
	PingInterval time.Duration

	MaxMessageBytes      int64
	MaxMessagesPerSecond int

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Server serves GET /signal.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewServer(cfg Config) *Server {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.IdleTimeout {
		cfg.PingInterval = cfg.IdleTimeout * 9 / 10
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if cfg.MaxMessagesPerSecond <= 0 {
		cfg.MaxMessagesPerSecond = DefaultMaxMessagesPerSecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{cfg: cfg, logger: logger}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /signal", s.handleSignal)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	normalized, ok := s.cfg.Origin.Check(r)
	if !ok {
		s.cfg.Metrics.Inc(metrics.SignalingOriginDenied)
		s.logger.Warn("signaling origin rejected", "origin", r.Header.Get("Origin"), "normalized", normalized, "host", r.Host)
	}
	return ok
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an HTTP error.
		return
	}

	peer, err := s.cfg.Coordinator.Connect(r.Context())
	if err != nil {
		_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(wsWriteWait))
		_ = ws.Close()
		return
	}

	c := &conn{
		ws:              ws,
		peer:            peer,
		coord:           s.cfg.Coordinator,
		logger:          s.logger.With("conn_id", peer.ID),
		metrics:         s.cfg.Metrics,
		limiter:         ratelimit.NewPerSecond(ratelimit.RealClock{}, s.cfg.MaxMessagesPerSecond),
		idleTimeout:     s.cfg.IdleTimeout,
		pingInterval:    s.cfg.PingInterval,
		maxMessageBytes: s.cfg.MaxMessageBytes,
	}
	s.logger.Debug("signaling connection opened", "conn_id", peer.ID, "remote_addr", r.RemoteAddr)

	go c.writePump()
	c.readPump()
}
