package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/skyoffice-server/internal/auth"
	"github.com/vovakirdan/skyoffice-server/internal/office"
)

// PublicRoomID is the id of the lobby every client can join.
const PublicRoomID = "public"

// Hub is the registry of rooms. Each room runs its own loop; the hub only
// routes clients to them.
type Hub struct {
	cfg Config
	svc Services
	log *zerolog.Logger
	ids *office.IDPool

	ready chan struct{}
	ctx   context.Context

	mu    sync.RWMutex
	rooms map[string]*Room
	wg    sync.WaitGroup
}

// NewHub creates a hub. Rooms become available once Run is called.
func NewHub(cfg Config, svc Services, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		cfg:   cfg.withDefaults(),
		svc:   svc,
		log:   logger,
		ids:   office.NewIDPool(),
		ready: make(chan struct{}),
		rooms: make(map[string]*Room),
	}
}

// Run opens the public room and blocks until ctx is done. Every room is
// shut down before Run returns.
func (h *Hub) Run(ctx context.Context) {
	h.ctx = ctx
	h.logServices()

	if _, err := h.createRoom(RoomOptions{
		ID:          PublicRoomID,
		Name:        h.cfg.PublicRoomName,
		Description: h.cfg.PublicRoomDescription,
	}); err != nil {
		h.log.Error().Err(err).Msg("failed to create public room")
	}
	close(h.ready)

	<-ctx.Done()
	h.wg.Wait()
	h.log.Info().Msg("hub stopped")
}

func (h *Hub) logServices() {
	disabled := []string{}
	if h.svc.Auth == nil {
		disabled = append(disabled, "auth")
	}
	if h.svc.Users == nil || h.svc.Conversations == nil {
		disabled = append(disabled, "persistence")
	}
	if h.svc.Points == nil {
		disabled = append(disabled, "points")
	}
	if h.svc.AI == nil {
		disabled = append(disabled, "ai")
	}
	if h.svc.Events == nil {
		disabled = append(disabled, "analytics")
	}
	if h.svc.Media == nil {
		disabled = append(disabled, "media")
	}
	if len(disabled) > 0 {
		h.log.Warn().Strs("features", disabled).Msg("running with features disabled")
	}
}

func (h *Hub) wait(ctx context.Context) error {
	select {
	case <-h.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NewClient builds a client with the configured buffer size.
func (h *Hub) NewClient(id string) *Client {
	return NewClient(id, h.cfg.ClientBuffer)
}

// IDs returns the global id pool shared by all rooms.
func (h *Hub) IDs() *office.IDPool { return h.ids }

// RoomOptions configures a custom room.
type RoomOptions struct {
	ID          string
	Name        string
	Description string
	Password    string
	AutoDispose bool
}

// CreateRoom opens a custom room.
func (h *Hub) CreateRoom(ctx context.Context, opts RoomOptions) (*Room, error) {
	if err := h.wait(ctx); err != nil {
		return nil, err
	}
	opts.Name = strings.TrimSpace(opts.Name)
	if opts.Name == "" {
		return nil, BadRequest("room name is required")
	}
	return h.createRoom(opts)
}

func (h *Hub) createRoom(opts RoomOptions) (*Room, error) {
	if h.ctx.Err() != nil {
		return nil, ErrRoomClosed
	}
	if opts.ID == "" {
		opts.ID = uuid.New().String()
	}

	var hash string
	if opts.Password != "" {
		var err error
		hash, err = auth.HashPassword(opts.Password)
		if err != nil {
			return nil, fmt.Errorf("create room: %w", err)
		}
	}

	h.mu.Lock()
	if _, exists := h.rooms[opts.ID]; exists {
		h.mu.Unlock()
		return nil, BadRequest("room already exists")
	}
	r := newRoom(h, opts, hash)
	h.rooms[opts.ID] = r
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		r.run(h.ctx)
	}()

	h.log.Info().Str("room_id", r.ID).Str("name", r.Name).Bool("locked", hash != "").Msg("room created")
	return r, nil
}

// Room looks up a room by id.
func (h *Hub) Room(id string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[id]
	return r, ok
}

// Rooms lists open rooms, public room first.
func (h *Hub) Rooms() []RoomInfo {
	h.mu.RLock()
	infos := make([]RoomInfo, 0, len(h.rooms))
	for _, r := range h.rooms {
		infos = append(infos, r.Info())
	}
	h.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		if (infos[i].ID == PublicRoomID) != (infos[j].ID == PublicRoomID) {
			return infos[i].ID == PublicRoomID
		}
		return infos[i].Name < infos[j].Name
	})
	return infos
}

func (h *Hub) remove(r *Room) {
	h.mu.Lock()
	if h.rooms[r.ID] == r {
		delete(h.rooms, r.ID)
	}
	h.mu.Unlock()
}

// JoinRequest carries the JOIN message.
type JoinRequest struct {
	RoomID       string
	Password     string
	Username     string
	UserPassword string
	SessionToken string
}

// Join authenticates c and adds it to the requested room. Password hashing
// and user lookups run on the caller's goroutine, never on the room loop.
func (h *Hub) Join(ctx context.Context, c *Client, req JoinRequest) (*Room, error) {
	if err := h.wait(ctx); err != nil {
		return nil, err
	}
	if c.Room() != nil {
		return nil, BadRequest("already joined")
	}

	roomID := req.RoomID
	if roomID == "" {
		roomID = PublicRoomID
	}
	r, ok := h.Room(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}

	id, err := r.authenticate(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := r.join(ctx, c, id); err != nil {
		return nil, err
	}
	return r, nil
}

// Dispatch routes a command to the client's room.
func (h *Hub) Dispatch(c *Client, cmd *Command) error {
	r := c.Room()
	if r == nil {
		return ErrNotJoined
	}
	return r.submit(func() { r.handle(c, cmd) })
}

// Leave removes c from its room. It is safe to call more than once.
func (h *Hub) Leave(c *Client) {
	r := c.Room()
	if r == nil {
		return
	}
	if err := r.submit(func() { r.onLeave(c) }); err != nil && !errors.Is(err, ErrRoomClosed) {
		h.log.Warn().Err(err).Str("session_id", c.ID).Msg("leave failed")
	}
}
