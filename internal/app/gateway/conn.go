package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"livechat/internal/pkg/errs"
	"livechat/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxFrameSize = 8192

	// HandshakeTimeout is how long a client has to send connection_init after the upgrade.
	HandshakeTimeout = 10 * time.Second

	// size of the outbound frame queue per connection.
	sendBuffer = 256
)

// Custom WebSocket close codes (4000-4999 range).
const (
	CloseBadRequest   = 4400
	CloseUnauthorized = 4401
	CloseInitTimeout  = 4408
)

// Frame types of the subscription protocol.
const (
	FrameConnectionInit = "connection_init"
	FrameConnectionAck  = "connection_ack"
	FrameSubscribe      = "subscribe"
	FrameNext           = "next"
	FrameComplete       = "complete"
	FrameError          = "error"
	FramePing           = "ping"
	FramePong           = "pong"
)

// Frame is a single protocol message in either direction.
type Frame struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SubscribePayload is the payload of a subscribe frame.
type SubscribePayload struct {
	Operation Operation `json:"operation"`
	Args
}

// Conn drives one WebSocket connection through the handshake and the subscription protocol.
type Conn struct {
	gateway *Gateway
	conn    *websocket.Conn
	session *Session

	// a buffered channel used to queue frames waiting to be sent to the client.
	send chan []byte

	// closed when the connection is being torn down; stops the write side.
	done     chan struct{}
	stopOnce sync.Once

	logger zerolog.Logger
}

// Serve runs the protocol on an upgraded connection and returns when it is closed.
func (g *Gateway) Serve(ctx context.Context, wsConn *websocket.Conn) {
	logger := g.logger.With().
		Str("session_id", randx.SessionID()).
		Str("remote_addr", wsConn.RemoteAddr().String()).
		Logger()

	c := &Conn{
		gateway: g,
		conn:    wsConn,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		logger:  logger,
	}

	session, ok := c.handshake(ctx)
	if !ok {
		c.closeConn()
		return
	}
	c.session = session
	c.logger = c.logger.With().Int64("user_id", session.Identity().UserID).Logger()

	if !g.register(c) {
		session.Close()
		c.closeWith(websocket.CloseGoingAway, "server shutting down")
		return
	}
	defer g.unregister(c)

	go c.writePump()
	go c.forwardDeliveries()

	c.readPump()
}

// Shutdown closes every open connection with a going-away frame and rejects new ones.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	g.closed = true
	conns := make([]*Conn, 0, len(g.conns))
	for c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		c.closeWith(websocket.CloseGoingAway, "server shutting down")
	}
	g.logger.Info().Int("connections", len(conns)).Msg("Gateway shutdown complete.")
}

func (g *Gateway) register(c *Conn) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return false
	}
	g.conns[c] = struct{}{}
	return true
}

func (g *Gateway) unregister(c *Conn) {
	g.mu.Lock()
	delete(g.conns, c)
	g.mu.Unlock()
}

// handshake waits for connection_init, validates its credential and acknowledges it.
// No session exists unless it succeeds.
func (c *Conn) handshake(ctx context.Context) (*Session, bool) {
	c.conn.SetReadLimit(maxFrameSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(HandshakeTimeout)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set handshake deadline")
		return nil, false
	}

	var init Frame
	if err := c.conn.ReadJSON(&init); err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			c.writeClose(CloseInitTimeout, "connection initialisation timeout")
		} else {
			c.writeClose(CloseBadRequest, "invalid connection_init frame")
		}
		return nil, false
	}

	if init.Type != FrameConnectionInit {
		c.writeClose(CloseBadRequest, "expected connection_init")
		return nil, false
	}

	session, err := c.gateway.Connect(ctx, decodeParams(init.Payload))
	if err != nil {
		c.writeClose(CloseUnauthorized, "unauthorized")
		return nil, false
	}

	if err := c.writeFrame(Frame{Type: FrameConnectionAck}); err != nil {
		c.logger.Error().Err(err).Msg("Failed to acknowledge connection")
		session.Close()
		return nil, false
	}

	return session, true
}

// decodeParams keeps the string values of the connection_init payload.
func decodeParams(raw json.RawMessage) ConnectionParams {
	params := ConnectionParams{}
	if len(raw) == 0 {
		return params
	}

	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return params
	}
	for key, value := range values {
		if s, ok := value.(string); ok {
			params[key] = s
		}
	}
	return params
}

// readPump handles reading frames from the WebSocket connection.
// It handles heartbeats (Pong), frame dispatch, and performs cleanup upon connection closure.
func (c *Conn) readPump() {
	defer c.cleanupOnDisconnect()

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading frame (client close/going away)")
			}
			return
		}

		c.processInboundFrame(data)
	}
}

// cleanupOnDisconnect releases every subscription of the connection. Presence is left alone:
// clients leave chatrooms explicitly.
func (c *Conn) cleanupOnDisconnect() {
	c.logger.Info().Msg("Connection cleanup starting.")

	c.stop()
	c.session.Close()
	c.closeConn()
}

func (c *Conn) processInboundFrame(data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON")
		c.sendError("", errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	switch frame.Type {
	case FrameSubscribe:
		c.handleSubscribe(frame)

	case FrameComplete:
		c.session.Unsubscribe(frame.ID)

	case FramePing:
		c.enqueue(Frame{Type: FramePong})

	case FramePong:

	default:
		c.logger.Warn().Str("frame_type", frame.Type).Msg("Client sent unsupported frame type")
		c.sendError(frame.ID, errs.NewError(errs.ErrUnknownOperation, frame.Type))
	}
}

func (c *Conn) handleSubscribe(frame Frame) {
	var payload SubscribePayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		c.sendError(frame.ID, errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	if err := c.session.Subscribe(frame.ID, payload.Operation, payload.Args); err != nil {
		c.sendError(frame.ID, err)
	}
}

// forwardDeliveries turns session deliveries into next and complete frames.
func (c *Conn) forwardDeliveries() {
	for d := range c.session.Deliveries() {
		if d.Complete {
			c.enqueue(Frame{ID: d.ID, Type: FrameComplete})
			continue
		}
		c.enqueue(Frame{ID: d.ID, Type: FrameNext, Payload: d.Payload})
	}
}

// writePump handles writing frames from the send channel to the WebSocket connection.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.closeConn()
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				c.logger.Error().Err(err).Msg("Error writing frame")
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.logger.Error().Err(err).Msg("Error writing ping")
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *Conn) write(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// writeFrame writes directly; only used before the write pump starts.
func (c *Conn) writeFrame(frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, data)
}

// enqueue marshals frame and queues it for the write pump, dropping it when the queue is full.
func (c *Conn) enqueue(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		c.logger.Error().Err(err).Msg("Error marshaling frame for client")
		return
	}

	select {
	case c.send <- data:
	case <-c.done:
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Str("frame_type", frame.Type).Msg("Client send queue full, dropping frame")
	}
}

func (c *Conn) sendError(id string, err error) {
	payload, marshalErr := json.Marshal(errs.From(err))
	if marshalErr != nil {
		c.logger.Error().Err(marshalErr).Msg("Failed to build error frame")
		return
	}
	c.enqueue(Frame{ID: id, Type: FrameError, Payload: payload})
}

// closeWith ends the connection from the server side with a close frame.
func (c *Conn) closeWith(code int, reason string) {
	c.stop()
	c.writeClose(code, reason)
	c.closeConn()
}

func (c *Conn) writeClose(code int, reason string) {
	message := websocket.FormatCloseMessage(code, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait)); err != nil {
		c.logger.Debug().Err(err).Int("close_code", code).Msg("Failed to write close frame")
	}
}

func (c *Conn) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

func (c *Conn) closeConn() {
	if err := c.conn.Close(); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		c.logger.Debug().Err(err).Msg("Connection close error")
	}
}
