package analytics

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/vovakirdan/skyoffice-server/internal/store"
)

// DefaultSubject is the subject prefix events are published under. The
// lower-cased category is appended, e.g. "skyoffice.events.npc".
const DefaultSubject = "skyoffice.events"

// WireEvent is the JSON published for each event.
type WireEvent struct {
	UserID    int64           `json:"userId"`
	SessionID string          `json:"sessionId,omitempty"`
	Type      string          `json:"eventType"`
	Category  string          `json:"eventCategory"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NATSPublisher publishes flushed events to NATS.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to url.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	conn, err := nats.Connect(url, nats.Name("skyoffice-analytics"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

// Subject returns the subject used for events of category c.
func (p *NATSPublisher) Subject(c string) string {
	return p.subject + "." + strings.ToLower(c)
}

// Publish sends one message per event.
func (p *NATSPublisher) Publish(events []*store.Event) error {
	for _, ev := range events {
		w := WireEvent{
			UserID:    ev.UserID,
			SessionID: ev.SessionID,
			Type:      ev.Type,
			Category:  ev.Category,
			Timestamp: ev.Timestamp,
		}
		if ev.Metadata != "" {
			w.Metadata = json.RawMessage(ev.Metadata)
		}
		data, err := json.Marshal(w)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		if err := p.conn.Publish(p.Subject(ev.Category), data); err != nil {
			return fmt.Errorf("publish event: %w", err)
		}
	}
	return p.conn.Flush()
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// EmbeddedServer is an in-process NATS server for single-node setups.
type EmbeddedServer struct {
	ns *server.Server
}

// StartEmbeddedServer starts a NATS server on host:port. Port -1 picks a
// random free port.
func StartEmbeddedServer(host string, port int) (*EmbeddedServer, error) {
	ns, err := server.NewServer(&server.Options{
		Host:   host,
		Port:   port,
		NoSigs: true,
		NoLog:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("create nats server: %w", err)
	}

	ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("nats server not ready for connections")
	}
	return &EmbeddedServer{ns: ns}, nil
}

// ClientURL returns the URL clients connect to.
func (s *EmbeddedServer) ClientURL() string {
	return s.ns.ClientURL()
}

// Shutdown stops the server and waits for it to exit.
func (s *EmbeddedServer) Shutdown() {
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
}
