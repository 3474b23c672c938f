// Package client provides a reusable WebSocket load test client for the Duet
// pairing server. It connects using gobwas/ws (the same library the server
// uses), captures the client ID from the server's connected greeting, and
// tracks per-connection performance metrics.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// ---------------------------------------------------------------------------
// Protocol message types (local equivalents of internal/protocol constants)
// ---------------------------------------------------------------------------

// Client -> Server message types.
const (
	TypeFindPartner  = "find_partner"
	TypeSendMessage  = "send_message"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"
	TypeStopVideo    = "stop_video"
	TypeSkip         = "skip"
	TypeLeaveChat    = "leaveChat"
	TypePing         = "ping"
)

// Server -> Client message types. The signaling types (offer, answer,
// ice-candidate, stop_video) come back under the same names they were sent
// with, tagged with the sender's client ID.
const (
	TypeConnected           = "connected"
	TypeWaiting             = "waiting"
	TypePartnerFound        = "partner_found"
	TypeReceiveMessage      = "receive_message"
	TypePartnerDisconnected = "partner_disconnected"
	TypePong                = "pong"
)

// Sender tags on receive_message events.
const (
	SenderMe      = "me"
	SenderPartner = "partner"
)

// ---------------------------------------------------------------------------
// Metrics
// ---------------------------------------------------------------------------

// Metrics tracks per-connection performance data.
type Metrics struct {
	ConnectLatency   time.Duration
	FirstMsgLatency  time.Duration
	MessagesReceived int
	MessagesSent     int
	Errors           int
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Client represents a single simulated user connection to the Duet server.
// It manages the WebSocket lifecycle and dispatches incoming messages to
// registered handlers. The server assigns the client ID on connect; no
// handshake reply is required.
type Client struct {
	conn      net.Conn
	clientID  string
	partnerID string
	mu        sync.Mutex
	metrics   Metrics
	handlers  map[string]func(json.RawMessage)
	done      chan struct{}
	closeOnce sync.Once
	dialedAt  time.Time
	firstMsg  bool
}

// New creates a new load test client connected to the given WebSocket URL.
// The connection is established immediately and a background goroutine begins
// reading messages. The server's connected greeting is handled internally to
// capture the assigned client ID.
func New(ctx context.Context, url string) (*Client, error) {
	start := time.Now()
	conn, _, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	c := &Client{
		conn:     conn,
		handlers: make(map[string]func(json.RawMessage)),
		done:     make(chan struct{}),
		dialedAt: start,
	}
	c.metrics.ConnectLatency = time.Since(start)

	// Start reading messages in background.
	go c.readLoop()

	return c, nil
}

// Send sends a JSON message to the server. It is goroutine-safe.
func (c *Client) Send(msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.MessagesSent++
	return wsutil.WriteClientMessage(c.conn, ws.OpText, data)
}

// On registers a handler for a specific server message type. The handler
// receives the full raw JSON of the message for flexible decoding.
// Handlers are invoked from the read loop goroutine so they should not block
// for extended periods. Only one handler per message type is supported;
// registering a second handler for the same type replaces the first.
func (c *Client) On(msgType string, handler func(json.RawMessage)) {
	c.mu.Lock()
	c.handlers[msgType] = handler
	c.mu.Unlock()
}

// WaitForID blocks until the server has assigned a client ID or the context
// is cancelled. This is useful for coordinating load test phases that depend
// on the greeting being complete.
func (c *Client) WaitForID(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return fmt.Errorf("connection closed before the server sent connected")
		case <-ticker.C:
			c.mu.Lock()
			id := c.clientID
			c.mu.Unlock()
			if id != "" {
				return nil
			}
		}
	}
}

// Close closes the connection and stops the read loop. It is safe to call
// multiple times.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// ClientID returns the client ID assigned by the server, or an empty string
// if the connected greeting has not arrived yet.
func (c *Client) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// PartnerID returns the partner's client ID from the most recent
// partner_found event, or an empty string if the client was never paired.
func (c *Client) PartnerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.partnerID
}

// GetMetrics returns a copy of the client's metrics.
func (c *Client) GetMetrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// ---------------------------------------------------------------------------
// Protocol helpers
// ---------------------------------------------------------------------------

// FindPartner sends a find_partner event. Interests is a raw comma-separated
// string, matching what a browser client submits; an empty string means
// random matching.
func (c *Client) FindPartner(interests string) error {
	return c.Send(map[string]string{
		"type":      TypeFindPartner,
		"interests": interests,
	})
}

// SendChat sends a send_message event with the given text.
func (c *Client) SendChat(text string) error {
	return c.Send(map[string]string{
		"type": TypeSendMessage,
		"text": text,
	})
}

// Skip sends a skip event without interests, reusing whatever the server
// remembers from the previous find_partner.
func (c *Client) Skip() error {
	return c.Send(map[string]string{"type": TypeSkip})
}

// LeaveChat sends a leaveChat event.
func (c *Client) LeaveChat() error {
	return c.Send(map[string]string{"type": TypeLeaveChat})
}

// OnPartnerFound registers a handler for partner_found events, decoding the
// partner's client ID.
func (c *Client) OnPartnerFound(handler func(partnerID string)) {
	c.On(TypePartnerFound, func(raw json.RawMessage) {
		var msg struct {
			PartnerID string `json:"partner_id"`
		}
		if err := json.Unmarshal(raw, &msg); err == nil && msg.PartnerID != "" {
			handler(msg.PartnerID)
		}
	})
}

// OnReceiveMessage registers a handler for receive_message events, decoding
// the sender tag and text.
func (c *Client) OnReceiveMessage(handler func(sender, text string)) {
	c.On(TypeReceiveMessage, func(raw json.RawMessage) {
		var msg struct {
			Sender string `json:"sender"`
			Text   string `json:"text"`
		}
		if err := json.Unmarshal(raw, &msg); err == nil {
			handler(msg.Sender, msg.Text)
		}
	})
}

// OnPartnerDisconnected registers a handler for partner_disconnected events.
func (c *Client) OnPartnerDisconnected(handler func()) {
	c.On(TypePartnerDisconnected, func(json.RawMessage) {
		handler()
	})
}

// readLoop continuously reads WebSocket frames from the server and dispatches
// them to registered handlers. It runs until the connection is closed or an
// unrecoverable error occurs.
func (c *Client) readLoop() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		data, err := wsutil.ReadServerText(c.conn)
		if err != nil {
			select {
			case <-c.done:
				// Connection was intentionally closed; do not count as error.
				return
			default:
			}
			c.mu.Lock()
			c.metrics.Errors++
			c.mu.Unlock()
			return
		}

		c.mu.Lock()
		if !c.firstMsg {
			c.firstMsg = true
			c.metrics.FirstMsgLatency = time.Since(c.dialedAt)
		}
		c.metrics.MessagesReceived++
		c.mu.Unlock()

		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			continue
		}

		// Handle the connected greeting internally: capture the client ID.
		if envelope.Type == TypeConnected {
			var msg struct {
				ClientID string `json:"client_id"`
			}
			if err := json.Unmarshal(data, &msg); err == nil && msg.ClientID != "" {
				c.mu.Lock()
				c.clientID = msg.ClientID
				c.mu.Unlock()
			}
		}

		// Track the current partner so callers can address answers.
		if envelope.Type == TypePartnerFound {
			var msg struct {
				PartnerID string `json:"partner_id"`
			}
			if err := json.Unmarshal(data, &msg); err == nil && msg.PartnerID != "" {
				c.mu.Lock()
				c.partnerID = msg.PartnerID
				c.mu.Unlock()
			}
		}

		// Dispatch to registered handler if one exists.
		c.mu.Lock()
		handler, ok := c.handlers[envelope.Type]
		c.mu.Unlock()
		if ok {
			handler(json.RawMessage(data))
		}
	}
}
