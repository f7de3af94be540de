package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/skyoffice-server/internal/auth"
	"github.com/vovakirdan/skyoffice-server/internal/config"
	"github.com/vovakirdan/skyoffice-server/internal/core"
	"github.com/vovakirdan/skyoffice-server/internal/proto"
	"github.com/vovakirdan/skyoffice-server/internal/store/sqlite"
	"github.com/vovakirdan/skyoffice-server/internal/synced"
)

const testSecret = "test-secret"

type testEnv struct {
	ts    *httptest.Server
	hub   *core.Hub
	auth  *auth.Service
	store *sqlite.SQLiteStore
	stop  context.CancelFunc
}

// startTestServer runs a hub and the HTTP server on an in-memory store.
func startTestServer(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Auth.JWTSecret = testSecret
	cfg.Room.PatchRate = 10 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		TTL:      time.Hour,
	})

	hub := core.NewHub(core.Config{
		PatchRate:    cfg.Room.PatchRate,
		AuthRequired: cfg.Auth.Required,
	}, core.Services{
		Auth:          authService,
		Users:         st,
		Conversations: st,
	}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	disabledLogger := zerolog.New(nil)
	server := NewServer(hub, authService, st, &cfg, &disabledLogger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, hub: hub, auth: authService, store: st, stop: cancel}
}

func (e *testEnv) register(t *testing.T, username string) {
	t.Helper()
	if _, err := e.auth.Register(context.Background(), auth.Registration{Username: username, Password: "secret1"}); err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
}

type wsOutbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// wsClient is a websocket connection that mirrors the room state.
type wsClient struct {
	t         *testing.T
	ctx       context.Context
	conn      *websocket.Conn
	replica   *synced.Replica
	sessionID string
}

func dial(t *testing.T, e *testEnv) *wsClient {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	wsURL := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })

	return &wsClient{t: t, ctx: ctx, conn: conn, replica: synced.NewReplica()}
}

func (c *wsClient) send(msgType string, data any) {
	c.t.Helper()
	payload, err := json.Marshal(data)
	if err != nil {
		c.t.Fatalf("marshal %s: %v", msgType, err)
	}
	if err := wsjson.Write(c.ctx, c.conn, proto.Inbound{Type: msgType, Data: payload}); err != nil {
		c.t.Fatalf("send %s: %v", msgType, err)
	}
}

func (c *wsClient) read() (wsOutbound, error) {
	var out wsOutbound
	if err := wsjson.Read(c.ctx, c.conn, &out); err != nil {
		return out, err
	}
	switch out.Type {
	case proto.TypeRoomState:
		var s synced.Snapshot
		if err := json.Unmarshal(out.Data, &s); err != nil {
			c.t.Fatalf("decode state: %v", err)
		}
		c.replica.Load(s)
	case proto.TypeRoomPatch:
		var p synced.Patch
		if err := json.Unmarshal(out.Data, &p); err != nil {
			c.t.Fatalf("decode patch: %v", err)
		}
		if err := c.replica.Apply(p); err != nil {
			c.t.Fatalf("apply patch: %v", err)
		}
	case proto.TypeSendRoomData:
		var d proto.RoomData
		if err := json.Unmarshal(out.Data, &d); err != nil {
			c.t.Fatalf("decode room data: %v", err)
		}
		c.sessionID = d.SessionID
	}
	return out, nil
}

// waitFor reads until a message of msgType arrives.
func (c *wsClient) waitFor(msgType string) wsOutbound {
	c.t.Helper()
	for {
		out, err := c.read()
		if err != nil {
			c.t.Fatalf("waiting for %s: %v", msgType, err)
		}
		if out.Type == msgType {
			return out
		}
	}
}

// until reads until cond holds.
func (c *wsClient) until(cond func() bool) {
	c.t.Helper()
	for !cond() {
		if _, err := c.read(); err != nil {
			c.t.Fatalf("condition not met: %v", err)
		}
	}
}

func (c *wsClient) join(req proto.JoinData) {
	c.t.Helper()
	c.send(proto.TypeJoin, req)
	c.waitFor(proto.TypeSendRoomData)
}

func (c *wsClient) get(path ...string) any {
	v, _ := c.replica.Get(path...)
	return v
}

func decodeError(t *testing.T, out wsOutbound) proto.Error {
	t.Helper()
	var e proto.Error
	if err := json.Unmarshal(out.Data, &e); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return e
}
