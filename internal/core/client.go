package core

import "sync"

// Websocket close codes understood by clients. Clients only reconnect on
// codes outside 1000-1999 that are not CloseKicked.
const (
	CloseNormal       = 1000
	CloseJoinRejected = 1008
	CloseKicked       = 4000
	CloseAbnormal     = 4001
)

// DefaultClientBuffer is the size of a client's event queue.
const DefaultClientBuffer = 256

// Client is a connection as seen by the core layer. The transport drains
// Events and stops when Closed fires.
type Client struct {
	ID     string
	Events chan *Event

	closed    chan struct{}
	closeOnce sync.Once

	mu          sync.Mutex
	room        *Room
	closeCode   int
	closeReason string
}

// NewClient constructs a client with an event buffer of the given size.
func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultClientBuffer
	}
	return &Client{
		ID:     id,
		Events: make(chan *Event, buffer),
		closed: make(chan struct{}),
	}
}

// Room returns the room the client is in, or nil.
func (c *Client) Room() *Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Client) setRoom(r *Room) {
	c.mu.Lock()
	c.room = r
	c.mu.Unlock()
}

// Closed is closed once the core wants the connection gone.
func (c *Client) Closed() <-chan struct{} { return c.closed }

// CloseStatus returns the code and reason given to Close.
func (c *Client) CloseStatus() (int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode, c.closeReason
}

// Close asks the transport to drop the connection. Only the first call
// has an effect.
func (c *Client) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeCode = code
		c.closeReason = reason
		c.mu.Unlock()
		close(c.closed)
	})
}

func (c *Client) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// send queues ev without blocking. Patches are never dropped: a client that
// cannot keep up is closed with CloseAbnormal and resyncs from a snapshot
// after reconnecting.
func (c *Client) send(ev *Event) bool {
	if c.isClosed() {
		return false
	}
	select {
	case c.Events <- ev:
		return true
	default:
		c.Close(CloseAbnormal, "slow consumer")
		return false
	}
}
