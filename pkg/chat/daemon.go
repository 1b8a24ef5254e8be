package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cosmterm/pkg/logging"
	"cosmterm/pkg/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	frameHello   = "hello"
	frameMessage = "message"

	writeTimeout = 10 * time.Second
)

// ErrEmptyMessage is returned by Send for a blank body.
var ErrEmptyMessage = errors.New("message body is empty")

// Frame is the JSON envelope exchanged with the daemon.
type Frame struct {
	Type    string              `json:"type"`
	From    string              `json:"from,omitempty"`
	Message *models.ChatMessage `json:"message,omitempty"`
}

// DaemonClient links a Book to a relay daemon over websocket. Without a
// daemon URL it runs offline and messages are only stored locally.
type DaemonClient struct {
	url    string
	self   string
	book   *Book
	logger zerolog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	incoming chan models.ChatMessage
	done     chan struct{}
}

// NewDaemonClient creates a client for the daemon at url, sending as self.
func NewDaemonClient(url, self string, book *Book, logger zerolog.Logger) *DaemonClient {
	return &DaemonClient{
		url:      strings.TrimSpace(url),
		self:     self,
		book:     book,
		logger:   logging.ForComponent(logger, logging.ComponentChat),
		incoming: make(chan models.ChatMessage, 32),
		done:     make(chan struct{}),
	}
}

// Connect dials the daemon and announces self. It is a no-op offline.
func (c *DaemonClient) Connect(ctx context.Context) error {
	if c.url == "" {
		c.logger.Info().Msg("No chat daemon configured, running offline")
		return nil
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial chat daemon: %w", err)
	}
	if err := conn.WriteJSON(Frame{Type: frameHello, From: c.self}); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to greet chat daemon: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.logger.Info().Str(logging.FieldURL, c.url).Msg("Connected to chat daemon")
	go c.readLoop(conn)
	return nil
}

// Online reports whether a daemon connection is open.
func (c *DaemonClient) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Incoming delivers messages received from the daemon.
func (c *DaemonClient) Incoming() <-chan models.ChatMessage {
	return c.incoming
}

// Send stores a message to peer and relays it when online.
func (c *DaemonClient) Send(ctx context.Context, to, body string) (models.ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return models.ChatMessage{}, ErrEmptyMessage
	}
	if strings.TrimSpace(to) == "" {
		return models.ChatMessage{}, ErrEmptyAddress
	}
	msg := models.ChatMessage{
		ID:        uuid.NewString(),
		From:      c.self,
		To:        to,
		Body:      body,
		Timestamp: time.Now().UTC(),
		Outgoing:  true,
	}

	c.mu.Lock()
	conn := c.conn
	if conn != nil {
		deadline, ok := ctx.Deadline()
		if !ok {
			deadline = time.Now().Add(writeTimeout)
		}
		_ = conn.SetWriteDeadline(deadline)
		if err := conn.WriteJSON(Frame{Type: frameMessage, Message: &msg}); err != nil {
			c.mu.Unlock()
			return msg, fmt.Errorf("failed to send message: %w", err)
		}
	}
	c.mu.Unlock()

	c.book.Append(msg)
	return msg, nil
}

func (c *DaemonClient) readLoop(conn *websocket.Conn) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
	}()

	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn().Err(err).Msg("Chat daemon connection lost")
			}
			return
		}
		if f.Type != frameMessage || f.Message == nil {
			continue
		}
		msg := *f.Message
		if msg.To != "" && msg.To != c.self {
			continue
		}
		msg.Outgoing = false
		if !c.book.Append(msg) {
			continue
		}
		select {
		case c.incoming <- msg:
		default:
			c.logger.Debug().Str(logging.FieldPeer, msg.From).Msg("Incoming buffer full, dropping notification")
		}
	}
}

// Close shuts the daemon connection.
func (c *DaemonClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
		return nil
	default:
		close(c.done)
	}
	if c.conn == nil {
		return nil
	}
	err := c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.conn.Close()
	c.conn = nil
	return err
}
