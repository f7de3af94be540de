package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/skyoffice-server/internal/config"
	"github.com/vovakirdan/skyoffice-server/internal/core"
	transporthttp "github.com/vovakirdan/skyoffice-server/internal/transport/http"
)

func startSmokeServer(t *testing.T) string {
	t.Helper()
	logger := zerolog.Nop()
	hub := core.NewHub(core.Config{PatchRate: 10 * time.Millisecond}, core.Services{}, &logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	cfg := config.Default()
	srv := transporthttp.NewServer(hub, nil, nil, &cfg, &logger)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
}

func TestSmoke(t *testing.T) {
	url := startSmokeServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := &bytes.Buffer{}
	err := runSmoke(ctx, &SmokeOptions{URL: url, Moves: 2}, out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), `joined "SkyOffice" (public)`)
	assert.Contains(t, out.String(), "moved to (110, 105)")
	assert.Contains(t, out.String(), "moved to (120, 110)")
	assert.Contains(t, out.String(), "1 players in room")
}

func TestSmokeUnknownRoom(t *testing.T) {
	url := startSmokeServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := runSmoke(ctx, &SmokeOptions{URL: url, Room: "nope"}, &bytes.Buffer{})
	require.ErrorIs(t, err, errServer)
	assert.Contains(t, err.Error(), core.ErrCodeRoomNotFound)
}
