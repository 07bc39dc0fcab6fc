package signaling

import (
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wilsonzlin/aero/proxy/webrtc-broadcast-relay/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/webrtc-broadcast-relay/internal/ratelimit"
)

const wsWriteWait = 10 * time.Second

// conn pumps frames between one WebSocket and the coordinator. readPump is
// the only reader and writePump the only writer; close frames go through
// WriteControl, which gorilla allows concurrently with both.
type conn struct {
	ws    *websocket.Conn
	peer  *Peer
	coord *Coordinator

	logger  *slog.Logger
	metrics *metrics.Metrics
	limiter *ratelimit.TokenBucket

	idleTimeout     time.Duration
	pingInterval    time.Duration
	maxMessageBytes int64
}

func (c *conn) readPump() {
	defer c.coord.Disconnect(c.peer)

	c.ws.SetReadLimit(c.maxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.idleTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.idleTimeout))
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.idleTimeout))

		if msgType != websocket.TextMessage {
			c.metrics.Inc(metrics.SignalingBinaryFrame)
			c.closeWith(websocket.CloseUnsupportedData, "expected text message")
			return
		}
		// Frames over the rate are dropped; the connection stays open.
		if !c.limiter.Allow(1) {
			c.metrics.Inc(metrics.SignalingRateLimited)
			c.logger.Debug("signaling frame dropped by rate limit")
			continue
		}
		if !c.coord.Dispatch(c.peer, data) {
			c.closeWith(websocket.CloseGoingAway, "server shutting down")
			return
		}
	}
}

func (c *conn) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		// gorilla has already sent CloseMessageTooBig.
		c.metrics.Inc(metrics.SignalingOversize)
		c.logger.Debug("signaling frame too large", "limit", c.maxMessageBytes)
	case isTimeout(err):
		c.closeWith(websocket.CloseNormalClosure, "idle timeout")
		c.logger.Debug("signaling connection idle")
	case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		c.logger.Debug("signaling connection read error", "err", err)
	}
}

func (c *conn) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	send := c.peer.Send()
	for {
		select {
		case frame, ok := <-send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *conn) closeWith(code int, reason string) {
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
