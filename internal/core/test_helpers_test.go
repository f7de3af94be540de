package core

import (
	"bytes"
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/skyoffice-server/internal/ai"
	"github.com/vovakirdan/skyoffice-server/internal/analytics"
	"github.com/vovakirdan/skyoffice-server/internal/auth"
	"github.com/vovakirdan/skyoffice-server/internal/points"
	"github.com/vovakirdan/skyoffice-server/internal/store/sqlite"
	"github.com/vovakirdan/skyoffice-server/internal/synced"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// fakeAI answers with a fixed reply or error.
type fakeAI struct {
	mu    sync.Mutex
	reply *ai.Reply
	err   error
	calls [][]ai.Turn
}

func (f *fakeAI) Respond(_ context.Context, history []ai.Turn, _, _ string) (*ai.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, history)
	if f.err != nil {
		return nil, f.err
	}
	r := *f.reply
	return &r, nil
}

// gatedAI holds every reply until release yields.
type gatedAI struct {
	release chan struct{}

	mu    sync.Mutex
	calls [][]ai.Turn
}

func newGatedAI() *gatedAI {
	return &gatedAI{release: make(chan struct{})}
}

func (g *gatedAI) Respond(ctx context.Context, history []ai.Turn, _, _ string) (*ai.Reply, error) {
	g.mu.Lock()
	g.calls = append(g.calls, history)
	n := len(g.calls)
	g.mu.Unlock()

	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &ai.Reply{Response: "answer " + strconv.Itoa(n)}, nil
}

func (g *gatedAI) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// lockedBuffer collects log output written from the room goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type backend struct {
	store  *sqlite.SQLiteStore
	auth   *auth.Service
	points *points.Service
	events *analytics.Logger
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return &backend{
		store: st,
		auth: auth.NewService(st, &auth.JWTConfig{
			Secret: []byte("test-secret"),
			Issuer: "test",
			TTL:    time.Hour,
		}),
		points: points.NewService(st, nil),
		events: analytics.NewLogger(st, analytics.Config{}, nil),
	}
}

func (b *backend) services(responder ai.Responder) Services {
	return Services{
		Auth:          b.auth,
		Users:         b.store,
		Conversations: b.store,
		Points:        b.points,
		AI:            responder,
		Events:        b.events,
	}
}

func (b *backend) register(t *testing.T, username, flow string) {
	t.Helper()
	_, err := b.auth.Register(context.Background(), auth.Registration{
		Username: username,
		Password: "secret1",
		FlowType: flow,
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
}

func startHub(t *testing.T, cfg Config, svc Services) *Hub {
	t.Helper()
	if cfg.PatchRate == 0 {
		cfg.PatchRate = 10 * time.Millisecond
	}
	hub := NewHub(cfg, svc, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

// probe is a test client that mirrors the room state through a replica.
type probe struct {
	t       *testing.T
	hub     *Hub
	client  *Client
	replica *synced.Replica
}

func join(t *testing.T, hub *Hub, id string, req JoinRequest) *probe {
	t.Helper()
	c := hub.NewClient(id)
	if _, err := hub.Join(context.Background(), c, req); err != nil {
		t.Fatalf("join %s: %v", id, err)
	}
	return &probe{t: t, hub: hub, client: c, replica: synced.NewReplica()}
}

func (p *probe) send(cmd *Command) {
	p.t.Helper()
	if err := p.hub.Dispatch(p.client, cmd); err != nil {
		p.t.Fatalf("dispatch %v: %v", cmd.Kind, err)
	}
}

// next waits for one event and applies it to the replica.
func (p *probe) next(timeout time.Duration) (*Event, bool) {
	p.t.Helper()
	select {
	case ev := <-p.client.Events:
		switch ev.Kind {
		case EventRoomState:
			p.replica.Load(synced.Snapshot{Seq: ev.Seq, State: ev.State})
		case EventRoomPatch:
			if err := p.replica.Apply(synced.Patch{Seq: ev.Seq, Ops: ev.Ops}); err != nil {
				p.t.Fatalf("apply patch: %v", err)
			}
		}
		return ev, true
	case <-time.After(timeout):
		return nil, false
	}
}

// waitFor consumes events until one of kind arrives.
func (p *probe) waitFor(kind EventKind) *Event {
	p.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ev, ok := p.next(50 * time.Millisecond); ok && ev.Kind == kind {
			return ev
		}
	}
	p.t.Fatalf("%s: expected event kind %v not received", p.client.ID, kind)
	return nil
}

// until consumes events until cond holds.
func (p *probe) until(cond func() bool) {
	p.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			p.t.Fatalf("%s: condition not met; replica at seq %d", p.client.ID, p.replica.Seq())
		}
		p.next(50 * time.Millisecond)
	}
}

// drain consumes events for d and returns them.
func (p *probe) drain(d time.Duration) []*Event {
	var out []*Event
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if ev, ok := p.next(10 * time.Millisecond); ok {
			out = append(out, ev)
		}
	}
	return out
}

func (p *probe) get(path ...string) any {
	v, _ := p.replica.Get(path...)
	return v
}

func (p *probe) messages(npcID string) []any {
	v, _ := p.replica.Get("npcs", npcID, "conversations", p.client.ID, "messages")
	msgs, _ := v.([]any)
	return msgs
}
