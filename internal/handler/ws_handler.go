/*
Package handler provides the HTTP handlers and routing setup for the SlashChat server.

This file contains the WebSocket endpoint that carries a live session: it
restores the session from the client's token, streams the two live feeds
(new messages and presence snapshots) to the browser, and accepts send-message
and logout frames coming back.
*/
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"slashchat/internal/app/session"
	"slashchat/internal/app/store"
	"slashchat/internal/pkg/errs"
	"slashchat/internal/pkg/limiter"
	"slashchat/internal/pkg/logx"
	"slashchat/internal/pkg/resp"
)

const (
	// writeWait is the timeout for writing a frame to the connection.
	writeWait = 10 * time.Second

	// pongWait is the maximum wait for a pong before the peer is considered gone.
	pongWait = 60 * time.Second

	// pingPeriod is how often the server pings. Must be below pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxFrameSize bounds inbound frames. Messages cap at 500 runes, so this
	// leaves generous headroom for framing and multi-byte text.
	maxFrameSize = 8192

	// opTimeout bounds store operations triggered by inbound frames.
	opTimeout = 10 * time.Second

	// sendQueueSize is the outbound frame buffer per connection.
	sendQueueSize = 256
)

// Outbound frame types.
const (
	frameInit     = "init"
	frameMessage  = "message"
	framePresence = "presence"
	frameAward    = "award"
	frameError    = "error"
)

// Inbound frame types.
const (
	inboundMessage = "message"
	inboundLogout  = "logout"
)

type wsFrame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type inboundFrame struct {
	Type    string `json:"type"`
	Payload struct {
		Text string `json:"text"`
	} `json:"payload"`
}

// wsClient couples one WebSocket connection to one live session.
type wsClient struct {
	conn *websocket.Conn
	sess *session.Session
	ctrl *session.Controller

	// send queues outbound frames produced by the read side (acks, errors).
	send chan []byte

	// loggedOut records that the client asked to log out, so the read pump's
	// cleanup does not tear the presence entry down a second time.
	mu        sync.Mutex
	loggedOut bool

	logger zerolog.Logger
}

// HandleWebSocket upgrades the connection and runs the session's live feeds
// over it. The session token is expected in the "token" query parameter.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r)

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		token := r.URL.Query().Get("token")
		if token == "" {
			logx.Warn("WebSocket request rejected: Missing token query parameter")
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		sess, customErr := deps.Controller.RestoreSession(r.Context(), token)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if sess == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrSessionExpired))
			return
		}

		backlog, customErr := deps.Controller.RecentMessages(r.Context())
		if customErr != nil {
			deps.Controller.Disconnect(sess)
			resp.RespondError(w, r, customErr)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			deps.Controller.Disconnect(sess)
			return
		}

		username := sess.User().Username
		client := &wsClient{
			conn: conn,
			sess: sess,
			ctrl: deps.Controller,
			send: make(chan []byte, sendQueueSize),
			logger: logx.Logger().With().
				Str("component", "WSClient").
				Str("username", username).
				Logger(),
		}

		client.enqueue(frameInit, map[string]any{
			"user":     sess.User(),
			"messages": backlog,
		})

		logx.Info("WebSocket session attached", "username", username)

		go client.writePump()
		client.readPump()
	}
}

// enqueue marshals a frame onto the send queue. Full queue drops the frame.
func (c *wsClient) enqueue(frameType string, payload any) {
	data, err := json.Marshal(wsFrame{Type: frameType, Payload: payload})
	if err != nil {
		c.logger.Error().Err(err).Str("frame_type", frameType).Msg("Failed to marshal outbound frame.")
		return
	}

	select {
	case c.send <- data:
	default:
		c.logger.Warn().Str("frame_type", frameType).Msg("Send queue full. Dropping frame.")
	}
}

// readPump consumes inbound frames until the connection dies. On exit it
// detaches the session; a client that logged out already removed its presence,
// one that vanished stays listed as online.
func (c *wsClient) readPump() {
	defer func() {
		c.mu.Lock()
		loggedOut := c.loggedOut
		c.mu.Unlock()

		if !loggedOut {
			c.ctrl.Disconnect(c.sess)
		}

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error during cleanup.")
		}
	}()

	c.conn.SetReadLimit(maxFrameSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frameBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Unexpected close while reading frame.")
			}
			return
		}

		if done := c.processInbound(frameBytes); done {
			return
		}
	}
}

// processInbound handles one inbound frame. Returns true when the connection
// should close (after a logout frame).
func (c *wsClient) processInbound(frameBytes []byte) bool {
	var frame inboundFrame
	if err := json.Unmarshal(frameBytes, &frame); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON frame.")
		return false
	}

	switch frame.Type {
	case inboundMessage:
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		_, award, customErr := c.ctrl.SendMessage(ctx, c.sess, frame.Payload.Text)
		if customErr != nil {
			c.enqueue(frameError, map[string]any{
				"code":    customErr.Code,
				"message": customErr.Message,
			})
			return false
		}

		// The message itself arrives through the live feed like everyone
		// else's; only the XP outcome is answered directly.
		c.enqueue(frameAward, award)
		return false

	case inboundLogout:
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		c.mu.Lock()
		c.loggedOut = true
		c.mu.Unlock()

		c.ctrl.Logout(ctx, c.sess)
		return true

	default:
		c.logger.Warn().Str("frame_type", frame.Type).Msg("Client sent unknown frame type.")
		return false
	}
}

// writePump multiplexes the session's live feeds, the read side's ack queue,
// and keepalive pings onto the connection. It exits when the session's feeds
// close (logout) or a write fails.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	messages := c.sess.Messages()
	presence := c.sess.Presence()

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				c.writeClose()
				return
			}
			if !c.writeFrame(frameMessage, msg) {
				return
			}

		case snapshot, ok := <-presence:
			if !ok {
				c.writeClose()
				return
			}
			if !c.writeFrame(framePresence, presencePayload(snapshot)) {
				return
			}

		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Info().Err(err).Msg("Write failed. Closing connection.")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeFrame marshals and writes one frame. Returns false on failure.
func (c *wsClient) writeFrame(frameType string, payload any) bool {
	data, err := json.Marshal(wsFrame{Type: frameType, Payload: payload})
	if err != nil {
		c.logger.Error().Err(err).Str("frame_type", frameType).Msg("Failed to marshal frame.")
		return true
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.logger.Info().Err(err).Msg("Write failed. Closing connection.")
		return false
	}

	return true
}

// writeClose sends a normal close frame after the session ended.
func (c *wsClient) writeClose() {
	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
}

func presencePayload(snapshot []store.PresenceEntry) map[string]any {
	return map[string]any{
		"count": len(snapshot),
		"users": snapshot,
	}
}
