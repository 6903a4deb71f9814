package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"messaging-service/internal/apperr"
	"messaging-service/internal/config"
	"messaging-service/internal/media"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// Base64 media plus envelope.
	maxMessageSize = media.MaxUploadBytes*4/3 + 4096

	defaultSendBuffer = 256
)

// ConnInfo is what the handshake learned about a connection.
type ConnInfo struct {
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// Client is one websocket connection. Only writePump writes to conn.
type Client struct {
	id       string
	identity models.Identity
	info     ConnInfo
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	stopOnce sync.Once
	limiter  *rate.Limiter

	// guarded by Hub.mu
	rooms map[int]struct{}
}

func newClient(id string, identity models.Identity, info ConnInfo, conn *websocket.Conn, cfg config.WSConfig) *Client {
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		id:       id,
		identity: identity,
		info:     info,
		conn:     conn,
		send:     make(chan []byte, buffer),
		done:     make(chan struct{}),
		limiter:  rate.NewLimiter(limit, burst),
		rooms:    make(map[int]struct{}),
	}
}

// enqueue queues payload without blocking. A full buffer means the peer is not
// keeping up: the frame is dropped and the client is stopped, so its
// connection closes instead of silently missing frames.
func (c *Client) enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		observability.IncWSDropped()
		log.Warn().Str("conn_id", c.id).Int("account_id", c.identity.ID).Msg("websocket send buffer full, closing connection")
		c.stop()
		return false
	}
}

func (c *Client) emit(event OutboundEvent) {
	if payload, ok := encode(event); ok {
		c.enqueue(payload)
	}
}

func (c *Client) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			if !c.write(websocket.TextMessage, payload) {
				return
			}
		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}
		case <-c.done:
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) write(messageType int, payload []byte) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(messageType, payload); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
			log.Warn().Err(err).Str("conn_id", c.id).Msg("websocket write failed")
		}
		return false
	}
	return true
}

// readPump feeds inbound frames to dispatch until the connection fails and
// returns the read error.
func (c *Client) readPump(ctx context.Context, dispatch func(context.Context, *Client, InboundEvent)) error {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		if !c.limiter.Allow() {
			observability.IncWSEvent("rate_limited")
			c.emit(OutboundEvent{Type: EventError, Code: apperr.CodeResourceExhausted, Error: "too many events, slow down"})
			continue
		}

		var event InboundEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			c.emit(OutboundEvent{Type: EventError, Code: apperr.CodeInvalidArgument, Error: "malformed event"})
			continue
		}
		dispatch(ctx, c, event)
	}
}
