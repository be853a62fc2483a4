package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"messenger/infrastructure"
	"messenger/internal/call"
	"messenger/internal/chat"
	"messenger/internal/events"
	"messenger/internal/notification"
	"messenger/internal/user"
	"messenger/pkg/jwt"
)

type handlerFunc func(ctx context.Context, userID string, payload json.RawMessage) (event string, data any, err error)

const opUnknown = "unknown"

// Gateway is the realtime entry point: it authenticates the upgrade request,
// owns the per-connection read loop, and routes frames to feature services.
// Operation identity always comes from the connection, never from payloads.
type Gateway struct {
	hub              *Hub
	tokens           *jwt.JWT
	directory        user.Directory
	metrics          *Metrics
	notifications    *notification.Service
	handshakeTimeout time.Duration
	log              *zap.Logger

	handlers map[string]handlerFunc
}

func NewGateway(
	hub *Hub,
	tokens *jwt.JWT,
	directory user.Directory,
	metrics *Metrics,
	conversations *chat.ConversationService,
	messages *chat.MessageService,
	queries *chat.QueryService,
	calls *call.Service,
	notifications *notification.Service,
	handshakeTimeout time.Duration,
	log *zap.Logger,
) *Gateway {
	g := &Gateway{
		hub:              hub,
		tokens:           tokens,
		directory:        directory,
		metrics:          metrics,
		notifications:    notifications,
		handshakeTimeout: handshakeTimeout,
		log:              log,
	}

	g.handlers = map[string]handlerFunc{
		events.OpConversationInit: func(ctx context.Context, userID string, payload json.RawMessage) (string, any, error) {
			var p chat.InitConversationPayload
			if err := decode(payload, &p); err != nil {
				return "", nil, err
			}
			view, err := conversations.InitiateOrGet(ctx, userID, p.UserID)
			return events.EventConversation, view, err
		},
		events.OpConversationList: func(ctx context.Context, userID string, payload json.RawMessage) (string, any, error) {
			var p chat.LoadConversationsPayload
			if err := decode(payload, &p); err != nil {
				return "", nil, err
			}
			result, err := queries.LoadConversations(ctx, userID, p)
			return events.EventConversationList, result, err
		},
		events.OpConversationLoad: func(ctx context.Context, userID string, payload json.RawMessage) (string, any, error) {
			var p chat.LoadSingleConversationPayload
			if err := decode(payload, &p); err != nil {
				return "", nil, err
			}
			result, err := queries.LoadSingleConversation(ctx, userID, p)
			return events.EventConversation, result, err
		},
		events.OpConversationArchive: func(ctx context.Context, userID string, payload json.RawMessage) (string, any, error) {
			var p chat.ConversationActionPayload
			if err := decode(payload, &p); err != nil {
				return "", nil, err
			}
			view, err := conversations.Archive(ctx, userID, p.ConversationID)
			return events.EventConversationUpdate, view, err
		},
		events.OpConversationBlock: func(ctx context.Context, userID string, payload json.RawMessage) (string, any, error) {
			var p chat.ConversationActionPayload
			if err := decode(payload, &p); err != nil {
				return "", nil, err
			}
			view, err := conversations.Block(ctx, userID, p.ConversationID)
			return events.EventConversationUpdate, view, err
		},
		events.OpConversationUnblock: func(ctx context.Context, userID string, payload json.RawMessage) (string, any, error) {
			var p chat.ConversationActionPayload
			if err := decode(payload, &p); err != nil {
				return "", nil, err
			}
			view, err := conversations.Unblock(ctx, userID, p.ConversationID)
			return events.EventConversationUpdate, view, err
		},
		events.OpConversationDelete: func(ctx context.Context, userID string, payload json.RawMessage) (string, any, error) {
			var p chat.ConversationActionPayload
			if err := decode(payload, &p); err != nil {
				return "", nil, err
			}
			result, err := conversations.Delete(ctx, userID, p.ConversationID)
			return events.EventConversationUpdate, result, err
		},
		events.OpMessageSend: func(ctx context.Context, userID string, payload json.RawMessage) (string, any, error) {
			var p chat.SendMessagePayload
			if err := decode(payload, &p); err != nil {
				return "", nil, err
			}
			view, err := messages.Send(ctx, userID, p)
			return events.EventSuccess, view, err
		},
		events.OpMessageRead: func(ctx context.Context, userID string, payload json.RawMessage) (string, any, error) {
			var p chat.MarkReadPayload
			if err := decode(payload, &p); err != nil {
				return "", nil, err
			}
			n, err := messages.MarkRead(ctx, userID, p.ConversationID)
			if err != nil {
				return "", nil, err
			}
			return events.EventSuccess, map[string]any{"conversationId": p.ConversationID, "updated": n}, nil
		},
		events.OpCallInitiate: func(ctx context.Context, userID string, payload json.RawMessage) (string, any, error) {
			var p call.InitiateCallPayload
			if err := decode(payload, &p); err != nil {
				return "", nil, err
			}
			view, err := calls.Initiate(ctx, userID, p)
			return events.EventCallInitiated, view, err
		},
		events.OpCallAccept: func(ctx context.Context, userID string, payload json.RawMessage) (string, any, error) {
			var p call.CallActionPayload
			if err := decode(payload, &p); err != nil {
				return "", nil, err
			}
			view, err := calls.Accept(ctx, userID, p)
			return events.EventCallOngoing, view, err
		},
		events.OpCallDecline: func(ctx context.Context, userID string, payload json.RawMessage) (string, any, error) {
			var p call.CallActionPayload
			if err := decode(payload, &p); err != nil {
				return "", nil, err
			}
			view, err := calls.Decline(ctx, userID, p)
			return events.EventSuccess, view, err
		},
		events.OpCallEnd: func(ctx context.Context, userID string, payload json.RawMessage) (string, any, error) {
			var p call.CallActionPayload
			if err := decode(payload, &p); err != nil {
				return "", nil, err
			}
			view, err := calls.End(ctx, userID, p)
			return events.EventSuccess, view, err
		},
		events.OpNotificationRead: func(ctx context.Context, userID string, payload json.RawMessage) (string, any, error) {
			var p notification.MarkReadPayload
			if err := decode(payload, &p); err != nil {
				return "", nil, err
			}
			if err := notifications.MarkRead(ctx, userID, p.NotificationID); err != nil {
				return "", nil, err
			}
			return events.EventSuccess, map[string]any{"notificationId": p.NotificationID}, nil
		},
	}
	return g
}

// Handle upgrades an HTTP request to a realtime session. Authentication
// happens before the upgrade so a bad credential is an HTTP 401, not a
// half-open socket.
func (g *Gateway) Handle(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), g.handshakeTimeout)
	defer cancel()

	userID, err := g.authenticate(ctx, c.Request)
	if err != nil {
		g.log.Debug("rejected connection", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": events.ErrorBody{
			Kind:    string(infrastructure.KindOf(err)),
			Message: err.Error(),
		}})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		g.log.Warn("upgrade failed", zap.String("user", userID), zap.Error(err))
		return
	}

	client := g.hub.Add(userID, conn)
	g.log.Info("connection established", zap.String("user", userID))

	// Admission acknowledgement, first thing on the wire.
	client.enqueue(events.Outbound{
		Event:    events.EventAuth,
		Envelope: events.Success(map[string]string{"userId": userID}),
	})
	g.replayNotifications(client)

	g.readLoop(client)

	g.hub.Remove(client)
	g.log.Info("connection closed", zap.String("user", userID))
}

func (g *Gateway) authenticate(ctx context.Context, r *http.Request) (string, error) {
	token := bearerToken(r)
	if token == "" {
		return "", infrastructure.ErrMissingToken
	}
	claims, err := g.tokens.ValidateToken(token)
	if err != nil {
		return "", err
	}

	exists, err := g.directory.Exists(ctx, claims.UserID)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", infrastructure.ErrUserNotFound
	}
	if err := g.directory.TouchLastActive(ctx, claims.UserID); err != nil {
		g.log.Warn("failed to stamp last-active", zap.String("user", claims.UserID), zap.Error(err))
	}
	return claims.UserID, nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// replayNotifications pushes the notifications the user never acknowledged,
// so a reconnecting device catches up on what arrived while it was offline.
func (g *Gateway) replayNotifications(c *Client) {
	views, err := g.notifications.Replay(c.ctx, c.UserID)
	if err != nil {
		g.log.Warn("notification replay failed", zap.String("user", c.UserID), zap.Error(err))
		return
	}
	for _, v := range views {
		c.enqueue(events.Outbound{
			Event:    events.EventNotification,
			Envelope: events.Success(v),
		})
	}
}

// readLoop processes frames one at a time; in-flight order per connection is
// arrival order.
func (g *Gateway) readLoop(c *Client) {
	for {
		var frame events.Frame
		if err := wsjson.Read(c.ctx, c.conn, &frame); err != nil {
			return
		}
		g.dispatch(c, frame)
	}
}

// dispatch routes one frame through the matching handler and translates the
// outcome to a wire envelope. A panicking handler poisons only this frame,
// not the connection.
func (g *Gateway) dispatch(c *Client, frame events.Frame) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("handler panic",
				zap.String("op", frame.Op),
				zap.String("user", c.UserID),
				zap.Any("panic", r),
			)
			g.metrics.OpHandled(frame.Op, false)
			c.enqueue(events.Outbound{
				Event:    events.EventError,
				Envelope: events.Failure(string(infrastructure.KindUpstream), "internal error"),
			})
		}
	}()

	handler, ok := g.handlers[frame.Op]
	if !ok {
		// The raw op string is client-controlled; a fixed label keeps the
		// metric's cardinality bounded.
		g.metrics.OpHandled(opUnknown, false)
		c.enqueue(events.Outbound{
			Event:    events.EventError,
			Envelope: events.Failure(string(infrastructure.KindValidation), "unknown operation: "+frame.Op),
		})
		return
	}

	event, data, err := handler(c.ctx, c.UserID, frame.Payload)
	if err != nil {
		g.metrics.OpHandled(frame.Op, false)
		c.enqueue(events.Outbound{
			Event:    events.EventError,
			Envelope: translateError(err),
		})
		return
	}
	g.metrics.OpHandled(frame.Op, true)
	c.enqueue(events.Outbound{Event: event, Envelope: events.Success(data)})
}

// translateError maps a handler error onto the wire taxonomy. Internal
// failures never leak their message.
func translateError(err error) events.Envelope {
	kind := infrastructure.KindOf(err)
	message := err.Error()
	if kind == infrastructure.KindUpstream {
		message = "internal error"
	}
	return events.Failure(string(kind), message)
}

func decode(payload json.RawMessage, dst any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return errors.Join(infrastructure.ErrInvalidInput, err)
	}
	return nil
}
