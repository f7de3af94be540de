package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/skyoffice-server/internal/core"
	"github.com/vovakirdan/skyoffice-server/internal/proto"
	"github.com/vovakirdan/skyoffice-server/internal/utils"
)

// joinTimeout bounds the wait for the JOIN message.
const joinTimeout = 10 * time.Second

var errClosedByServer = errors.New("closed by server")

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub             *core.Hub
	log             *zerolog.Logger
	maxMessageBytes int64
	rateLimit       int
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, maxMessageBytes int64, rateLimit int, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub:             hub,
		log:             logger,
		maxMessageBytes: maxMessageBytes,
		rateLimit:       rateLimit,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()
	if h.maxMessageBytes > 0 {
		conn.SetReadLimit(h.maxMessageBytes)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := h.hub.NewClient(utils.NewSessionID())
	log := h.log.With().Str("session_id", client.ID).Logger()

	if !h.join(ctx, conn, client, &log) {
		return
	}
	defer func() {
		// Close first so a join still queued on the room loop backs out.
		client.Close(core.CloseNormal, "")
		h.hub.Leave(client)
	}()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, &log)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client, &log)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	select {
	case <-client.Closed():
		code, why := client.CloseStatus()
		status, reason = websocket.StatusCode(code), why
		log.Info().Int("code", code).Str("reason", why).Msg("ws closed by server")
	default:
		// a close frame from the peer or a cancelled request is not an error
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) && websocket.CloseStatus(err) == -1 {
			status = websocket.StatusInternalError
			reason = "internal error"
			log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	_ = conn.Close(status, reason)
}

// join handles the first message. It reports whether the client is in a
// room; otherwise the connection has been closed.
func (h *WSHandler) join(ctx context.Context, conn *websocket.Conn, client *core.Client, log *zerolog.Logger) bool {
	joinCtx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()

	var inbound proto.Inbound
	if err := wsjson.Read(joinCtx, conn, &inbound); err != nil {
		log.Debug().Err(err).Msg("no join message")
		_ = conn.Close(websocket.StatusPolicyViolation, "join required")
		return false
	}

	req, perr := parseJoin(inbound)
	if perr == nil {
		if _, err := h.hub.Join(joinCtx, client, req); err != nil {
			ce := core.AsCoreError(err)
			log.Info().Str("code", ce.Code).Str("room_id", req.RoomID).Msg("join rejected")
			perr = &proto.Error{Code: ce.Code, Msg: ce.Message}
		}
	}
	if perr != nil {
		_ = wsjson.Write(joinCtx, conn, errorOutbound(perr))
		_ = conn.Close(websocket.StatusCode(core.CloseJoinRejected), perr.Code)
		return false
	}
	return true
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, log *zerolog.Logger) error {
	limiter := newRateLimiter(h.rateLimit)
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if !limiter.allow() {
			if err := wsjson.Write(ctx, conn, errorOutbound(&proto.Error{
				Code: core.ErrCodeRateLimited,
				Msg:  "too many messages",
			})); err != nil {
				return err
			}
			continue
		}

		cmd, perr := inboundToCommand(inbound)
		if perr != nil {
			log.Debug().Str("type", inbound.Type).Str("code", perr.Code).Msg("rejected inbound")
			if err := wsjson.Write(ctx, conn, errorOutbound(perr)); err != nil {
				return err
			}
			continue
		}
		if err := h.hub.Dispatch(client, cmd); err != nil {
			return err
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, log *zerolog.Logger) error {
	for {
		select {
		case event := <-client.Events:
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				log.Error().Err(err).Msg("write ws event")
				return err
			}
		case <-client.Closed():
			return errClosedByServer
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
