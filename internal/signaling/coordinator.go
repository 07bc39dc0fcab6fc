package signaling

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/wilsonzlin/aero/proxy/webrtc-broadcast-relay/internal/auth"
	"github.com/wilsonzlin/aero/proxy/webrtc-broadcast-relay/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/webrtc-broadcast-relay/internal/peers"
	"github.com/wilsonzlin/aero/proxy/webrtc-broadcast-relay/internal/rooms"
)

const DefaultSendQueue = 256

var ErrCoordinatorClosed = errors.New("signaling coordinator closed")

type CoordinatorConfig struct {
	// Verifier checks the PIN in create-room. Required.
	Verifier auth.Verifier

	// DefaultRoomID replaces an empty roomId in create-room/join-room.
	// Required.
	DefaultRoomID string

	// StrictRelay drops offers, answers and candidates unless the sender and
	// target are bound to the same room.
	StrictRelay bool

	// SendQueue is the per-connection outbound buffer. A connection whose
	// buffer is full when an event is queued is dropped.
	SendQueue int

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Peer is one registered connection as seen by the coordinator.
type Peer struct {
	ID string

	send chan []byte

	// closed is only read and written by the coordinator loop.
	closed bool
}

// Send yields encoded frames for the connection's writer. It is closed when
// the coordinator drops the connection or shuts down.
func (p *Peer) Send() <-chan []byte {
	return p.send
}

type inbound struct {
	peer *Peer
	env  Envelope
	// invalid marks a frame that failed envelope decoding.
	invalid bool
}

// Coordinator serializes every signaling event through one goroutine (Run).
// The room store, registry and connection table are only touched there, so
// event handling needs no locks and observes a total order.
type Coordinator struct {
	cfg     CoordinatorConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	register   chan *Peer
	unregister chan *Peer
	inbound    chan inbound
	done       chan struct{}

	rooms    *rooms.Store
	registry *peers.Registry
	peers    map[string]*Peer
}

func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.Verifier == nil {
		return nil, errors.New("signaling: Verifier is required")
	}
	if cfg.DefaultRoomID == "" {
		return nil, errors.New("signaling: DefaultRoomID is required")
	}
	if cfg.SendQueue <= 0 {
		cfg.SendQueue = DefaultSendQueue
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cfg:        cfg,
		logger:     logger,
		metrics:    cfg.Metrics,
		register:   make(chan *Peer),
		unregister: make(chan *Peer),
		inbound:    make(chan inbound),
		done:       make(chan struct{}),
		rooms:      rooms.NewStore(),
		registry:   peers.NewRegistry(),
		peers:      make(map[string]*Peer),
	}, nil
}

// Run processes events until ctx is cancelled. On return every connection's
// send channel has been closed and all room state is discarded.
func (c *Coordinator) Run(ctx context.Context) {
	defer c.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-c.register:
			c.handleRegister(p)
		case p := <-c.unregister:
			c.handleDisconnect(p)
		case in := <-c.inbound:
			c.handleInbound(in)
		}
		c.metrics.SetRooms(c.rooms.Len())
		c.metrics.SetConnections(len(c.peers))
	}
}

// Done is closed once Run has returned.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Connect registers a new connection under a fresh id.
func (c *Coordinator) Connect(ctx context.Context) (*Peer, error) {
	p := &Peer{
		ID:   uuid.NewString(),
		send: make(chan []byte, c.cfg.SendQueue),
	}
	select {
	case c.register <- p:
		return p, nil
	case <-c.done:
		return nil, ErrCoordinatorClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Disconnect reports that p's transport is gone. It is safe to call after
// shutdown and more than once.
func (c *Coordinator) Disconnect(p *Peer) {
	select {
	case c.unregister <- p:
	case <-c.done:
	}
}

// Dispatch hands one inbound frame from p to the loop. It returns false once
// the coordinator has shut down.
func (c *Coordinator) Dispatch(p *Peer, data []byte) bool {
	in := inbound{peer: p}
	env, err := ParseEnvelope(data)
	if err != nil {
		in.invalid = true
	} else {
		in.env = env
	}
	select {
	case c.inbound <- in:
		return true
	case <-c.done:
		return false
	}
}

func (c *Coordinator) shutdown() {
	for _, p := range c.peers {
		if !p.closed {
			p.closed = true
			close(p.send)
		}
	}
	c.peers = make(map[string]*Peer)
	c.rooms = rooms.NewStore()
	c.registry = peers.NewRegistry()
	c.metrics.SetRooms(0)
	c.metrics.SetConnections(0)
	close(c.done)
}

func (c *Coordinator) handleRegister(p *Peer) {
	c.peers[p.ID] = p
	c.logger.Debug("signaling connection registered", "conn_id", p.ID)
}

func (c *Coordinator) handleDisconnect(p *Peer) {
	if c.peers[p.ID] != p {
		return
	}
	delete(c.peers, p.ID)
	if !p.closed {
		p.closed = true
		close(p.send)
	}
	c.logger.Debug("signaling connection closed", "conn_id", p.ID)

	b, ok := c.registry.Unbind(p.ID)
	if !ok {
		return
	}
	c.leaveRoom(p.ID, b)
}

// leaveRoom removes connID, which must already be unbound, from b's room.
// Losing the current host ends the stream and destroys the room.
func (c *Coordinator) leaveRoom(connID string, b peers.Binding) {
	wasHost, ok := c.rooms.RemoveMember(b.RoomID, connID)
	if !ok {
		return
	}
	if wasHost {
		c.broadcast(b.RoomID, TypeStreamEnded, nil)
		c.rooms.Delete(b.RoomID)
		c.metrics.Inc(metrics.StreamEnded)
		c.logger.Info("host left, room closed", "room_id", b.RoomID, "conn_id", connID)
		return
	}
	c.metrics.Inc(metrics.ViewerLeft)
	if room, ok := c.rooms.Get(b.RoomID); ok {
		c.broadcast(b.RoomID, TypeUpdateUserList, room.Members())
	}
}

// bindTo moves connID into roomID, leaving its previous room first if it was
// elsewhere.
func (c *Coordinator) bindTo(connID, roomID, displayName string) {
	if prev, ok := c.registry.Lookup(connID); ok && prev.RoomID != roomID {
		c.registry.Unbind(connID)
		c.leaveRoom(connID, prev)
	}
	c.registry.Bind(connID, roomID, displayName)
}

func (c *Coordinator) handleInbound(in inbound) {
	p := in.peer
	if c.peers[p.ID] != p {
		return
	}
	if in.invalid {
		c.rejectInvalid(p, "malformed envelope")
		return
	}

	switch in.env.Type {
	case TypeCreateRoom:
		c.handleCreateRoom(p, in.env.Payload)
	case TypeJoinRoom:
		c.handleJoinRoom(p, in.env.Payload)
	case TypeHostOffer:
		var pl HostOfferPayload
		if err := decodePayload(in.env.Payload, &pl); err != nil {
			c.rejectInvalid(p, string(in.env.Type))
			return
		}
		c.relay(p, pl.ViewerID, TypeReceiveOffer, ReceiveOfferPayload{Offer: pl.Offer, HostID: p.ID})
	case TypeViewerAnswer:
		var pl ViewerAnswerPayload
		if err := decodePayload(in.env.Payload, &pl); err != nil {
			c.rejectInvalid(p, string(in.env.Type))
			return
		}
		c.relay(p, pl.HostID, TypeReceiveAnswer, ReceiveAnswerPayload{Answer: pl.Answer, ViewerID: p.ID})
	case TypeICECandidate:
		var pl ICECandidatePayload
		if err := decodePayload(in.env.Payload, &pl); err != nil {
			c.rejectInvalid(p, string(in.env.Type))
			return
		}
		c.relay(p, pl.TargetID, TypeICECandidate, RelayedCandidatePayload{Candidate: pl.Candidate, SenderID: p.ID})
	default:
		c.metrics.Inc(metrics.UnknownMessageType)
		c.logger.Debug("ignoring unknown signaling message", "conn_id", p.ID, "type", in.env.Type)
	}
}

func (c *Coordinator) handleCreateRoom(p *Peer, raw []byte) {
	var pl CreateRoomPayload
	if err := decodePayload(raw, &pl); err != nil {
		c.rejectInvalid(p, string(TypeCreateRoom))
		return
	}
	if err := c.cfg.Verifier.Verify(pl.PIN); err != nil {
		c.metrics.Inc(metrics.PINRejected)
		c.logger.Warn("create-room rejected", "conn_id", p.ID, "err", err)
		c.emit(p, TypePINInvalid, nil)
		return
	}

	roomID := c.roomID(pl.RoomID)
	c.bindTo(p.ID, roomID, pl.Username)
	room, created := c.rooms.CreateOrReclaimHost(roomID, p.ID, pl.Username)
	if created {
		c.metrics.Inc(metrics.RoomCreated)
		c.logger.Info("room created", "room_id", roomID, "host_id", p.ID)
	} else {
		c.metrics.Inc(metrics.HostReclaimed)
		c.logger.Info("room host reassigned", "room_id", roomID, "host_id", p.ID)
	}

	c.emit(p, TypePINValid, nil)
	c.broadcast(roomID, TypeUpdateUserList, room.Members())
}

func (c *Coordinator) handleJoinRoom(p *Peer, raw []byte) {
	var pl JoinRoomPayload
	if err := decodePayload(raw, &pl); err != nil {
		c.rejectInvalid(p, string(TypeJoinRoom))
		return
	}

	roomID := c.roomID(pl.RoomID)
	if _, ok := c.rooms.Get(roomID); !ok {
		c.metrics.Inc(metrics.RoomNotFound)
		c.emit(p, TypeError, ErrorPayload{Message: errMessageRoomNotFound})
		return
	}

	c.bindTo(p.ID, roomID, pl.Username)
	room, err := c.rooms.AddViewer(roomID, p.ID, pl.Username)
	if err != nil {
		// Unreachable: the room was present above and bindTo only touches
		// other rooms.
		c.registry.Unbind(p.ID)
		c.emit(p, TypeError, ErrorPayload{Message: errMessageRoomNotFound})
		return
	}
	c.metrics.Inc(metrics.ViewerJoined)
	c.logger.Debug("viewer joined", "room_id", roomID, "conn_id", p.ID)

	if host, ok := c.peers[room.HostID]; ok {
		c.emit(host, TypeNewViewer, NewViewerPayload{ViewerID: p.ID})
	}
	c.broadcast(roomID, TypeUpdateUserList, room.Members())
}

// relay forwards to a single target by connection id. Unknown targets are a
// silent drop.
func (c *Coordinator) relay(from *Peer, targetID string, typ MessageType, payload any) {
	target, ok := c.peers[targetID]
	if !ok {
		c.metrics.Inc(metrics.RelayUnknownTarget)
		c.logger.Debug("dropping relay to unknown target", "type", typ, "from", from.ID, "target", targetID)
		return
	}
	if c.cfg.StrictRelay && !c.sameRoom(from.ID, targetID) {
		c.metrics.Inc(metrics.RelayCrossRoom)
		c.logger.Debug("dropping relay across rooms", "type", typ, "from", from.ID, "target", targetID)
		return
	}
	c.metrics.Inc(metrics.RelayForwarded)
	c.emit(target, typ, payload)
}

func (c *Coordinator) sameRoom(a, b string) bool {
	ba, ok := c.registry.Lookup(a)
	if !ok {
		return false
	}
	bb, ok := c.registry.Lookup(b)
	return ok && ba.RoomID == bb.RoomID
}

func (c *Coordinator) roomID(requested string) string {
	if requested == "" {
		return c.cfg.DefaultRoomID
	}
	return requested
}

func (c *Coordinator) rejectInvalid(p *Peer, what string) {
	c.metrics.Inc(metrics.InvalidMessage)
	c.logger.Debug("invalid signaling message", "conn_id", p.ID, "message", what)
	c.emit(p, TypeError, ErrorPayload{Message: errMessageInvalidMessage})
}

// broadcast delivers to every connection currently bound to roomID.
func (c *Coordinator) broadcast(roomID string, typ MessageType, payload any) {
	frame, err := encodeFrame(typ, payload)
	if err != nil {
		c.logger.Error("failed to encode signaling frame", "type", typ, "err", err)
		return
	}
	for _, id := range c.registry.Members(roomID) {
		if p, ok := c.peers[id]; ok {
			c.enqueue(p, frame)
		}
	}
}

func (c *Coordinator) emit(p *Peer, typ MessageType, payload any) {
	frame, err := encodeFrame(typ, payload)
	if err != nil {
		c.logger.Error("failed to encode signaling frame", "type", typ, "err", err)
		return
	}
	c.enqueue(p, frame)
}

// enqueue never blocks the loop. A full queue means the writer can't keep up;
// closing the channel makes the writer hang up, and the resulting Disconnect
// is handled like any other.
func (c *Coordinator) enqueue(p *Peer, frame []byte) {
	if p.closed {
		return
	}
	select {
	case p.send <- frame:
	default:
		p.closed = true
		close(p.send)
		c.metrics.Inc(metrics.SlowConsumerDropped)
		c.logger.Warn("dropping slow signaling connection", "conn_id", p.ID, "queue", cap(p.send))
	}
}
