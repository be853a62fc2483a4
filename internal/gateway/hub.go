package gateway

import (
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"messenger/internal/events"
)

// Hub owns connection lifecycle and fan-out. Feature services depend on its
// emitter methods through their own narrow interfaces, never on this package.
type Hub struct {
	registry *Registry
	metrics  *Metrics
	log      *zap.Logger
}

func NewHub(registry *Registry, metrics *Metrics, log *zap.Logger) *Hub {
	return &Hub{registry: registry, metrics: metrics, log: log}
}

// Add admits an authenticated connection: registers it and starts its write
// and keepalive loops.
func (h *Hub) Add(userID string, conn *websocket.Conn) *Client {
	c := newClient(userID, conn)
	h.registry.Register(userID, c)
	h.metrics.ConnectionOpened()

	go c.writeLoop()
	go c.keepAliveLoop()

	return c
}

// Remove tears a connection down. Unregistration happens here, on the
// connection's own teardown path; there is no background sweep.
func (h *Hub) Remove(c *Client) {
	c.cancel()
	h.registry.Unregister(c.UserID, c)
	h.metrics.ConnectionClosed()
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "bye")
	}
}

// EmitToUser delivers the payload under event to every live connection of
// the user. A user with no connections is a silent no-op.
func (h *Hub) EmitToUser(userID, event string, payload any) {
	out := events.Outbound{Event: event, Envelope: events.Success(payload)}
	for _, c := range h.registry.ConnectionsOf(userID) {
		h.deliver(c, out)
	}
}

// EmitToUserFirst delivers to one arbitrarily-chosen connection of the user.
func (h *Hub) EmitToUserFirst(userID, event string, payload any) {
	conns := h.registry.ConnectionsOf(userID)
	if len(conns) == 0 {
		return
	}
	h.deliver(conns[0], events.Outbound{Event: event, Envelope: events.Success(payload)})
}

// EmitToUsers applies EmitToUser independently per user; an offline user
// never prevents delivery to the others.
func (h *Hub) EmitToUsers(userIDs []string, event string, payload any) {
	for _, id := range userIDs {
		h.EmitToUser(id, event, payload)
	}
}

func (h *Hub) deliver(c *Client, out events.Outbound) {
	if c.enqueue(out) {
		h.metrics.EventEmitted(out.Event)
		return
	}
	h.metrics.EventDropped(out.Event)
	h.log.Warn("dropped event for slow or closed connection",
		zap.String("user", c.UserID),
		zap.String("event", out.Event),
	)
}
