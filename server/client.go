package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/teranos/rtsne/errors"
	"github.com/teranos/rtsne/internal/service"
	"github.com/teranos/rtsne/logger"
	"github.com/teranos/rtsne/tsne"
)

// WebSocket timeout constants following Gorilla best practices
// See: https://github.com/gorilla/websocket/blob/master/examples/chat/client.go
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = maxBodyBytes

	// Outgoing frames buffered per client
	sendBuffer = 64
)

// Request is one embedding call sent over the WebSocket.
type Request struct {
	ID   string         `json:"id"`
	Type string         `json:"type,omitempty"` // "" or "embed"; "ping" is ignored
	Args map[string]any `json:"args"`
}

// Progress reports an evaluated cost during optimisation.
type Progress struct {
	Iter int     `json:"iter"`
	Cost float64 `json:"cost"`
}

// Frame is a message sent to the client. Exactly one of Progress, Result and
// Error is set.
type Frame struct {
	ID       string       `json:"id"`
	Progress *Progress    `json:"progress,omitempty"`
	Result   *tsne.Result `json:"result,omitempty"`
	RunID    string       `json:"run_id,omitempty"`
	Error    string       `json:"error,omitempty"`
	Kind     string       `json:"kind,omitempty"`
}

// Client is a single WebSocket connection.
type Client struct {
	server    *Server
	conn      *websocket.Conn
	send      chan *Frame
	id        string
	done      chan struct{}
	closeOnce sync.Once
}

// HandleWebSocket upgrades the connection and serves embedding requests on it.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("WebSocket upgrade failed", logger.FieldError, err)
		return
	}

	c := &Client{
		server: s,
		conn:   conn,
		send:   make(chan *Frame, sendBuffer),
		id:     uuid.NewString(),
		done:   make(chan struct{}),
	}
	s.register(c)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		c.writePump()
	}()
	go func() {
		defer s.wg.Done()
		c.readPump()
	}()
}

// readPump handles reading messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		c.server.unregister(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			c.server.logger.Warnw("JSON unmarshal error", logger.FieldError, err, "client_id", c.id)
			c.deliver(&Frame{Error: "invalid message: " + err.Error()})
			continue
		}

		switch req.Type {
		case "", "embed":
			c.server.wg.Add(1)
			go func() {
				defer c.server.wg.Done()
				c.handleEmbed(req)
			}()
		case "ping":
		default:
			c.deliver(&Frame{ID: req.ID, Error: "unknown message type " + req.Type})
		}
	}
}

// handleReadError logs unexpected WebSocket read errors.
// Expected closure codes (going away, abnormal, no status) are silently ignored.
func (c *Client) handleReadError(err error) {
	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseNoStatusReceived,
	) {
		c.server.logger.Warnw("WebSocket read error", logger.FieldError, err, "client_id", c.id)
	}
}

// handleEmbed runs one request and streams progress followed by the result.
func (c *Client) handleEmbed(req Request) {
	if err := c.server.allow(); err != nil {
		c.deliverError(req.ID, err)
		return
	}

	ctx, cancel := context.WithCancel(logger.WithRequestID(c.server.ctx, req.ID))
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	var progress func(int, float64)
	if c.server.svc.Backend().SupportsProgress() {
		progress = func(iter int, cost float64) {
			// Progress is best effort; a slow reader loses frames, not results.
			select {
			case c.send <- &Frame{ID: req.ID, Progress: &Progress{Iter: iter, Cost: cost}}:
			default:
			}
		}
	}

	out, err := c.server.svc.Embed(ctx, req.Args, service.SourceWebSocket, progress)
	if err != nil {
		c.deliverError(req.ID, err)
		return
	}
	c.deliver(&Frame{ID: req.ID, Result: out.Result, RunID: out.RunID})
}

func (c *Client) deliverError(id string, err error) {
	_, kind := classify(err)
	c.deliver(&Frame{ID: id, Error: err.Error(), Kind: kind})
}

// deliver queues f unless the client has gone away.
func (c *Client) deliver(f *Frame) {
	select {
	case c.send <- f:
	case <-c.done:
	case <-c.server.ctx.Done():
	}
}

// writePump writes frames and pings to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.server.ctx.Done():
			return
		case <-c.done:
			return
		case f := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(f); err != nil {
				c.server.logger.Debugw("Frame write error", logger.FieldError, err, "client_id", c.id)
				if !errors.Is(err, websocket.ErrCloseSent) {
					return
				}
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
