package gateway

import (
	"context"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"messenger/internal/events"
)

const (
	sendBuffer        = 64
	writeTimeout      = 10 * time.Second
	keepAliveInterval = 25 * time.Second
	pingTimeout       = 5 * time.Second
)

// Client is one authenticated transport session. It is owned by the Registry
// entry for its user from admission until close.
type Client struct {
	UserID string

	conn *websocket.Conn
	send chan events.Outbound

	ctx    context.Context
	cancel context.CancelFunc
}

func newClient(userID string, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		UserID: userID,
		conn:   conn,
		send:   make(chan events.Outbound, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// enqueue hands an event to the client's write loop without blocking the
// caller. A full buffer drops the event; delivery is best-effort per
// currently-connected device.
func (c *Client) enqueue(out events.Outbound) bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
	}
	select {
	case c.send <- out:
		return true
	default:
		return false
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case out := <-c.send:
			writeCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			_ = wsjson.Write(writeCtx, c.conn, out)
			cancel()
		}
	}
}

func (c *Client) keepAliveLoop() {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), pingTimeout)
			_ = c.conn.Ping(pingCtx)
			cancel()
		}
	}
}
