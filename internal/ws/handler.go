package ws

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"messaging-service/internal/apperr"
	"messaging-service/internal/auth"
	"messaging-service/internal/config"
	"messaging-service/internal/messaging"
	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/presence"
	"messaging-service/internal/repositories"
)

const eventTimeout = 15 * time.Second

type Recorder interface {
	Record(ctx context.Context, accountID int, actionType, description string) (models.Activity, error)
}

type Deps struct {
	Hub      *Hub
	Pipeline *messaging.Pipeline
	Verifier auth.Verifier
	Accounts repositories.AccountRepository
	Presence presence.Tracker
	Recorder Recorder
	Config   config.WSConfig
}

// Handler upgrades /ws requests and serves the event protocol.
type Handler struct {
	hub      *Hub
	pipeline *messaging.Pipeline
	verifier auth.Verifier
	accounts repositories.AccountRepository
	presence presence.Tracker
	recorder Recorder
	cfg      config.WSConfig
	upgrader websocket.Upgrader
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		hub:      d.Hub,
		pipeline: d.Pipeline,
		verifier: d.Verifier,
		accounts: d.Accounts,
		presence: d.Presence,
		recorder: d.Recorder,
		cfg:      d.Config,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle authenticates the handshake, upgrades the connection and starts
// its pumps.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := observability.StartSpan(c.Request.Context(), "ws.handshake")
	defer span.End()

	identity, err := h.verifier.VerifyToken(ctx, tokenFromRequest(c.Request))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	span.SetAttributes(attribute.Int("account.id", identity.ID), attribute.String("account.role", string(identity.Role)))

	if err := middleware.EnsureAccount(ctx, h.accounts, h.recorder, identity); err != nil {
		log.Error().Err(err).Int("account_id", identity.ID).Msg("ensure account failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "account store unavailable"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Int("account_id", identity.ID).Msg("websocket upgrade failed")
		return
	}

	info := ConnInfo{
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     observability.TraceID(ctx),
		ConnectedAt: time.Now(),
	}
	client := newClient(uuid.NewString(), identity, info, conn, h.cfg)
	connCtx := context.WithoutCancel(ctx)
	h.connect(connCtx, client)

	go client.writePump()
	go h.serve(connCtx, client)
}

func (h *Handler) connect(ctx context.Context, c *Client) {
	h.hub.Register(c)
	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")

	if err := h.presence.Connect(ctx, c.identity.ID); err != nil {
		log.Warn().Err(err).Int("account_id", c.identity.ID).Msg("presence connect failed")
	}
	if _, err := h.recorder.Record(ctx, c.identity.ID, models.ActionSessionStart, "websocket session started"); err != nil {
		log.Warn().Err(err).Int("account_id", c.identity.ID).Msg("session activity not recorded")
	}
	h.publishLifecycle(ctx, c, observability.RoutingWSConnect, "ws_connect", nil)
	log.Info().Str("conn_id", c.id).Int("account_id", c.identity.ID).Str("role", string(c.identity.Role)).Msg("websocket connected")
}

func (h *Handler) serve(ctx context.Context, c *Client) {
	err := c.readPump(ctx, h.dispatch)
	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
		observability.IncWSEvent("ws_error")
		h.publishLifecycle(ctx, c, observability.RoutingWSError, "ws_error", err)
		log.Warn().Err(err).Str("conn_id", c.id).Msg("websocket read failed")
	}
	h.disconnect(ctx, c)
}

func (h *Handler) disconnect(ctx context.Context, c *Client) {
	h.hub.Unregister(c)
	observability.DecWSActive()
	observability.IncWSEvent("ws_disconnect")

	if err := h.presence.Disconnect(ctx, c.identity.ID); err != nil {
		log.Warn().Err(err).Int("account_id", c.identity.ID).Msg("presence disconnect failed")
	}
	h.publishLifecycle(ctx, c, observability.RoutingWSDisconnect, "ws_disconnect", nil)
	log.Info().Str("conn_id", c.id).Int("account_id", c.identity.ID).
		Dur("duration", time.Since(c.info.ConnectedAt)).Msg("websocket disconnected")
}

func (h *Handler) publishLifecycle(ctx context.Context, c *Client, routingKey, name string, cause error) {
	payload := observability.WSLifecyclePayload{
		ConnectionID: c.id,
		AccountID:    c.identity.ID,
		Role:         string(c.identity.Role),
		IP:           c.info.IP,
		DeviceID:     c.info.DeviceID,
		DurationMS:   time.Since(c.info.ConnectedAt).Milliseconds(),
	}
	if cause != nil {
		payload.Error = cause.Error()
	}
	headers := observability.BuildHeaders(c.info.RequestID, c.info.TraceID)
	if err := observability.PublishEvent(ctx, routingKey, name, payload, headers); err != nil {
		log.Warn().Err(err).Str("routing_key", routingKey).Msg("websocket lifecycle event not published")
	}
}

func (h *Handler) dispatch(ctx context.Context, c *Client, event InboundEvent) {
	ctx, cancel := context.WithTimeout(ctx, eventTimeout)
	defer cancel()

	switch event.Type {
	case EventJoin:
		h.join(ctx, c, event)
	case EventLeave:
		if h.hub.Leave(event.RoomID, c) {
			c.emit(OutboundEvent{Type: EventLeft, RoomID: event.RoomID, RequestID: event.RequestID})
		}
	case EventSendMessage:
		h.sendMessage(ctx, c, event)
	case EventMarkRead:
		if _, err := h.pipeline.MarkRead(ctx, event.RoomID, c.identity.ID); err != nil {
			c.emit(errorEvent(event.RequestID, err))
		}
	case EventSubscribeActivity:
		if !c.identity.Role.IsStaff() {
			c.emit(errorEvent(event.RequestID, apperr.Forbidden("activity feed is restricted to staff")))
			return
		}
		h.hub.Subscribe(c)
	default:
		c.emit(errorEvent(event.RequestID, apperr.InvalidArg("unknown event type")))
		return
	}
	observability.IncWSEvent(event.Type)
}

func (h *Handler) join(ctx context.Context, c *Client, event InboundEvent) {
	if event.RoomID <= 0 {
		c.emit(errorEvent(event.RequestID, apperr.InvalidArg("room_id is required")))
		return
	}
	if _, err := h.pipeline.Authorize(ctx, event.RoomID, c.identity.ID); err != nil {
		c.emit(errorEvent(event.RequestID, err))
		return
	}
	h.hub.Join(event.RoomID, c)
	c.emit(OutboundEvent{Type: EventJoined, RoomID: event.RoomID, RequestID: event.RequestID})
}

func (h *Handler) sendMessage(ctx context.Context, c *Client, event InboundEvent) {
	req := messaging.SendRequest{
		ChatID:      event.RoomID,
		SenderID:    c.identity.ID,
		Kind:        event.messageKind(),
		Content:     event.Content,
		ContentType: event.ContentType,
	}
	if event.Data != "" {
		data, err := base64.StdEncoding.DecodeString(event.Data)
		if err != nil {
			c.emit(errorEvent(event.RequestID, apperr.InvalidArg("data must be base64")))
			return
		}
		req.Media = data
	}

	if _, err := h.pipeline.Send(ctx, req); err != nil {
		if funds, ok := apperr.AsInsufficientFunds(err); ok {
			available := funds.Available
			c.emit(OutboundEvent{
				Type:      EventInsufficientFunds,
				RoomID:    event.RoomID,
				RequestID: event.RequestID,
				Required:  funds.Required,
				Available: &available,
			})
			return
		}
		c.emit(errorEvent(event.RequestID, err))
	}
}

func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return r.URL.Query().Get("token")
}
