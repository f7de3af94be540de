package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/skyoffice-server/internal/proto"
	"github.com/vovakirdan/skyoffice-server/internal/synced"
)

// SmokeOptions holds flags for the smoke command.
type SmokeOptions struct {
	*RootOptions
	URL          string
	Room         string
	RoomPassword string
	Username     string
	Password     string
	Moves        int
	Timeout      time.Duration
}

// NewSmokeCommand creates the smoke command.
func NewSmokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SmokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Join a running server and walk around",
		Long: `Connect to a server over websocket, join a room, move the avatar a few
times and check that the mirrored room state follows.

Example:
  skyoffice smoke --url ws://localhost:2567/ws --moves 5`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()
			return runSmoke(ctx, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "ws://localhost:2567/ws", "websocket address")
	cmd.Flags().StringVar(&opts.Room, "room", "", "room id (public room when empty)")
	cmd.Flags().StringVar(&opts.RoomPassword, "room-password", "", "room password")
	cmd.Flags().StringVar(&opts.Username, "username", "", "account to log in with")
	cmd.Flags().StringVar(&opts.Password, "password", "", "account password")
	cmd.Flags().IntVar(&opts.Moves, "moves", 3, "number of UPDATE_PLAYER messages to send")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 5*time.Second, "total timeout for the run")

	return cmd
}

// smokeClient mirrors the room state of one connection.
type smokeClient struct {
	conn      *websocket.Conn
	out       io.Writer
	replica   *synced.Replica
	loaded    bool
	sessionID string
}

type rawOutbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

var errServer = errors.New("server error")

func runSmoke(ctx context.Context, opts *SmokeOptions, out io.Writer) error {
	conn, _, err := websocket.Dial(ctx, opts.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()

	c := &smokeClient{conn: conn, out: out, replica: synced.NewReplica()}

	if err := c.send(ctx, proto.TypeJoin, proto.JoinData{
		RoomID:       opts.Room,
		Password:     opts.RoomPassword,
		Username:     opts.Username,
		UserPassword: opts.Password,
	}); err != nil {
		return err
	}

	if err := c.until(ctx, func() bool {
		return c.loaded && c.sessionID != "" && c.has("players", c.sessionID)
	}); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	for i := 1; i <= opts.Moves; i++ {
		x, y := float64(100+10*i), float64(100+5*i)
		if err := c.send(ctx, proto.TypeUpdatePlayer, proto.UpdatePlayerData{X: x, Y: y, Anim: "adam_run_right"}); err != nil {
			return err
		}
		if err := c.until(ctx, func() bool {
			v, _ := c.replica.Get("players", c.sessionID, "x")
			return v == x
		}); err != nil {
			return fmt.Errorf("move %d: %w", i, err)
		}
		fmt.Fprintf(out, "moved to (%.0f, %.0f) at seq %d\n", x, y, c.replica.Seq())
	}

	players, _ := c.replica.Get("players")
	count := 0
	if m, ok := players.(map[string]any); ok {
		count = len(m)
	}
	fmt.Fprintf(out, "ok: session %s, seq %d, %d players in room\n", c.sessionID, c.replica.Seq(), count)

	return conn.Close(websocket.StatusNormalClosure, "bye")
}

func (c *smokeClient) send(ctx context.Context, msgType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msgType, err)
	}
	if err := wsjson.Write(ctx, c.conn, proto.Inbound{Type: msgType, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", msgType, err)
	}
	return nil
}

func (c *smokeClient) has(path ...string) bool {
	_, ok := c.replica.Get(path...)
	return ok
}

// until reads messages until cond holds.
func (c *smokeClient) until(ctx context.Context, cond func() bool) error {
	for !cond() {
		if err := c.read(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *smokeClient) read(ctx context.Context) error {
	var msg rawOutbound
	if err := wsjson.Read(ctx, c.conn, &msg); err != nil {
		return fmt.Errorf("read: %w", err)
	}

	switch msg.Type {
	case proto.TypeRoomState:
		var s synced.Snapshot
		if err := json.Unmarshal(msg.Data, &s); err != nil {
			return fmt.Errorf("decode state: %w", err)
		}
		c.replica.Load(s)
		c.loaded = true
	case proto.TypeRoomPatch:
		var p synced.Patch
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return fmt.Errorf("decode patch: %w", err)
		}
		if err := c.replica.Apply(p); err != nil {
			return err
		}
	case proto.TypeSendRoomData:
		var d proto.RoomData
		if err := json.Unmarshal(msg.Data, &d); err != nil {
			return fmt.Errorf("decode room data: %w", err)
		}
		c.sessionID = d.SessionID
		fmt.Fprintf(c.out, "joined %q (%s) as %s\n", d.Name, d.ID, d.SessionID)
	case proto.TypeSessionToken:
		var tok proto.SessionToken
		if err := json.Unmarshal(msg.Data, &tok); err == nil {
			fmt.Fprintf(c.out, "logged in as %s\n", tok.Username)
		}
	case proto.TypePointsUpdated:
		p, err := proto.ParsePointsUpdated(msg.Data)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "+%d points (%s), total %d\n", p.PointsEarned, p.Reason, p.NewTotal)
	case proto.TypeError:
		var e proto.Error
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			return fmt.Errorf("decode error: %w", err)
		}
		return fmt.Errorf("%w: %s: %s", errServer, e.Code, e.Msg)
	}
	return nil
}
