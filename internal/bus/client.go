package bus

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var (
	busMessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_messages_received_total",
		Help: "Messages received from the bus by type.",
	}, []string{"type"})
	busMessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_messages_sent_total",
		Help: "Messages written to the bus by type.",
	}, []string{"type"})
	busReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bus_reconnects_total",
		Help: "Reconnection attempts after a lost bus connection.",
	})
)

const (
	reconnectInitial = 5 * time.Second
	reconnectStep    = 5 * time.Second
	reconnectMax     = 40 * time.Second
)

// ConnType selects the transport for the bus connection.
type ConnType string

const (
	ConnInet ConnType = "inet"
	ConnUnix ConnType = "unix"
)

// Config describes how to reach the bus and how to identify this client.
type Config struct {
	Type           ConnType
	PathOrHostname string
	Port           int
	Name           string
	Format         Format
}

// Handler processes one inbound message of a registered type. Handlers run
// on the client's read goroutine and must not block on bus writes' replies.
type Handler func(c *Client, msg Message)

// Client is a bus connection with automatic reconnect. Lost connections are
// retried on a detached goroutine with a growing wait, 5s more per failure
// up to 40s, reset after a successful dial.
type Client struct {
	cfg Config

	mu      sync.Mutex
	conn    net.Conn
	writeMu sync.Mutex

	handlersMu sync.RWMutex
	handlers   map[string]Handler

	closed  chan struct{}
	closeMu sync.Once
}

// NewClient prepares a client; Connect establishes the first connection.
func NewClient(cfg Config) *Client {
	if cfg.Name == "" {
		cfg.Name = "webscraper"
	}
	return &Client{
		cfg:      cfg,
		handlers: make(map[string]Handler),
		closed:   make(chan struct{}),
	}
}

// AddHandler registers a handler for a message type, replacing any previous
// handler for that type.
func (c *Client) AddHandler(msgType string, h Handler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[msgType] = h
}

// Connect dials the bus, performs the handshake and starts the read loop.
func (c *Client) Connect() error {
	conn, err := c.dial()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		conn.Close()
		return err
	}

	log.Info().Str("transport", string(c.cfg.Type)).
		Str("endpoint", c.endpoint()).Msg("Established connection to bus")
	go c.readLoop(conn)
	return nil
}

func (c *Client) dial() (net.Conn, error) {
	switch c.cfg.Type {
	case ConnUnix:
		return net.DialTimeout("unix", c.cfg.PathOrHostname, 10*time.Second)
	case ConnInet, "":
		return net.DialTimeout("tcp", c.endpoint(), 10*time.Second)
	}
	return nil, fmt.Errorf("unknown bus connection type %q", c.cfg.Type)
}

func (c *Client) endpoint() string {
	if c.cfg.Type == ConnUnix {
		return c.cfg.PathOrHostname
	}
	return fmt.Sprintf("%s:%d", c.cfg.PathOrHostname, c.cfg.Port)
}

// handshake announces this client's name and preferred frame format. The
// handshake itself is always JSON so a fresh peer can read it.
func (c *Client) handshake() error {
	return c.write(FormatJSON, Message{
		Type: "handshake",
		Src:  c.cfg.Name,
		Content: map[string]any{
			"name":   c.cfg.Name,
			"format": c.cfg.Format.String(),
		},
	})
}

// Write sends a message in the client's preferred format, stamping Src.
// Failures are reported to the caller; the message is not retried.
func (c *Client) Write(msg Message) error {
	if msg.Src == "" {
		msg.Src = c.cfg.Name
	}
	if err := c.write(c.cfg.Format, msg); err != nil {
		return err
	}
	busMessagesSent.WithLabelValues(msg.Type).Inc()
	return nil
}

func (c *Client) write(format Format, msg Message) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("bus: not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeFrame(conn, format, msg)
}

// readLoop consumes frames until the connection fails, then starts the
// reconnect loop unless the client was closed.
func (c *Client) readLoop(conn net.Conn) {
	for {
		msg, err := readFrame(conn)
		if err != nil {
			select {
			case <-c.closed:
				return
			default:
			}
			log.Warn().Err(err).Msg("Lost connection to bus")
			conn.Close()
			go c.reconnectLoop()
			return
		}

		busMessagesReceived.WithLabelValues(msg.Type).Inc()
		c.handlersMu.RLock()
		h, ok := c.handlers[msg.Type]
		c.handlersMu.RUnlock()
		if !ok {
			log.Debug().Str("type", msg.Type).Msg("No handler for message type")
			continue
		}
		h(c, msg)
	}
}

// ConnectWithRetry keeps dialing under the reconnect policy until a
// connection is established. Intended to be run on its own goroutine after a
// failed Connect.
func (c *Client) ConnectWithRetry() {
	c.reconnectLoop()
}

func (c *Client) reconnectLoop() {
	wait := reconnectInitial
	for {
		select {
		case <-c.closed:
			return
		case <-time.After(wait):
		}

		busReconnects.Inc()
		if err := c.Connect(); err == nil {
			return
		} else {
			log.Warn().Err(err).Dur("next_attempt", wait+reconnectStep).
				Msg("Bus reconnect failed")
		}

		wait += reconnectStep
		if wait > reconnectMax {
			wait = reconnectMax
		}
	}
}

// Close shuts the connection down and stops any reconnect attempts.
func (c *Client) Close() {
	c.closeMu.Do(func() { close(c.closed) })
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
