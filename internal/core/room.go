package core

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/skyoffice-server/internal/analytics"
	"github.com/vovakirdan/skyoffice-server/internal/auth"
	"github.com/vovakirdan/skyoffice-server/internal/office"
	"github.com/vovakirdan/skyoffice-server/internal/points"
	"github.com/vovakirdan/skyoffice-server/internal/store"
	"github.com/vovakirdan/skyoffice-server/internal/synced"
)

// RoomState is the lifecycle of a room.
type RoomState int32

const (
	RoomCreating RoomState = iota
	RoomOpen
	RoomDisposing
	RoomDisposed
)

func (s RoomState) String() string {
	switch s {
	case RoomCreating:
		return "creating"
	case RoomOpen:
		return "open"
	case RoomDisposing:
		return "disposing"
	case RoomDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// RoomInfo is a read-only view of a room for listings.
type RoomInfo struct {
	ID          string
	Name        string
	Description string
	HasPassword bool
	AutoDispose bool
	Clients     int
	State       RoomState
}

// member is a joined client with its avatar.
type member struct {
	client   *Client
	player   *office.Player
	user     *store.User // nil for guests
	joinedAt time.Time
}

func (m *member) userID() int64 {
	if m.user == nil {
		return 0
	}
	return m.user.ID
}

// identity is the outcome of authenticate.
type identity struct {
	user      *store.User
	session   *auth.Session
	guestName string
}

// Room owns one office state. All state access happens on the room's loop
// goroutine; other goroutines talk to it through submit.
type Room struct {
	ID          string
	Name        string
	Description string

	passwordHash string
	autoDispose  bool

	hub *Hub
	cfg Config
	svc Services
	log zerolog.Logger
	now func() time.Time

	state   *office.State
	engine  *synced.Engine
	members map[string]*member
	router  *MessageRouter
	// unwatch drops the name listener of a player that joined unnamed.
	unwatch map[string]func()

	ctx   context.Context
	inbox chan func()
	// resume carries the continuation of an awaited call. The inbox is not
	// read while one is outstanding.
	resume   chan func()
	awaiting bool
	done     chan struct{}
	status   atomic.Int32
	size     atomic.Int32
	disposed bool
}

func newRoom(h *Hub, opts RoomOptions, passwordHash string) *Room {
	r := &Room{
		ID:           opts.ID,
		Name:         opts.Name,
		Description:  opts.Description,
		passwordHash: passwordHash,
		autoDispose:  opts.AutoDispose,
		hub:          h,
		cfg:          h.cfg,
		svc:          h.svc,
		log:          h.log.With().Str("room_id", opts.ID).Logger(),
		now:          time.Now,
		members:      make(map[string]*member),
		unwatch:      make(map[string]func()),
		router:       defaultRouter,
		ctx:          context.Background(),
		inbox:        make(chan func(), 64),
		resume:       make(chan func()),
		done:         make(chan struct{}),
	}
	r.state = office.NewState(h.cfg.Layout, h.ids)
	r.engine = synced.NewEngine(r.state)
	r.watchPlayers()
	return r
}

// State returns the lifecycle state.
func (r *Room) State() RoomState { return RoomState(r.status.Load()) }

// Done is closed once the room is disposed.
func (r *Room) Done() <-chan struct{} { return r.done }

// Info describes the room.
func (r *Room) Info() RoomInfo {
	return RoomInfo{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		HasPassword: r.passwordHash != "",
		AutoDispose: r.autoDispose,
		Clients:     int(r.size.Load()),
		State:       r.State(),
	}
}

func (r *Room) run(ctx context.Context) {
	defer close(r.done)

	r.ctx = ctx
	r.status.Store(int32(RoomOpen))

	ticker := time.NewTicker(r.cfg.PatchRate)
	defer ticker.Stop()

	for {
		inbox := r.inbox
		if r.awaiting {
			inbox = nil
		}
		select {
		case <-ctx.Done():
			r.shutdown()
			return
		case task := <-inbox:
			task()
		case cont := <-r.resume:
			r.awaiting = false
			cont()
		case <-ticker.C:
			r.flush()
		}
		if r.disposed {
			r.dispose()
			return
		}
	}
}

// await runs call off the loop and holds every queued task until the
// continuation it returns has run on the loop. Handlers use it for slow
// external calls so they still complete before the next message.
func (r *Room) await(timeout time.Duration, call func(ctx context.Context) func()) {
	r.awaiting = true
	ctx, cancel := context.WithTimeout(r.ctx, timeout)
	go func() {
		defer cancel()
		cont := call(ctx)
		select {
		case r.resume <- cont:
		case <-r.done:
		}
	}()
}

// submit queues task on the room loop.
func (r *Room) submit(task func()) error {
	select {
	case <-r.done:
		return ErrRoomClosed
	default:
	}
	select {
	case r.inbox <- task:
		return nil
	case <-r.done:
		return ErrRoomClosed
	}
}

// authenticate runs on the caller's goroutine.
func (r *Room) authenticate(ctx context.Context, req JoinRequest) (*identity, error) {
	if !auth.CheckRoomPassword(r.passwordHash, req.Password) {
		return nil, ErrIncorrectPassword
	}

	switch {
	case req.SessionToken != "":
		if r.svc.Auth == nil {
			return nil, ErrInvalidCredentials
		}
		user, err := r.svc.Auth.ResolveToken(ctx, req.SessionToken)
		if err != nil {
			return nil, ErrInvalidCredentials
		}
		return &identity{user: user}, nil

	case req.Username != "" && req.UserPassword != "":
		if r.svc.Auth == nil {
			return nil, ErrInvalidCredentials
		}
		user, err := r.svc.Auth.Authenticate(ctx, req.Username, req.UserPassword)
		if err != nil {
			return nil, ErrInvalidCredentials
		}
		id := &identity{user: user}
		session, err := r.svc.Auth.IssueToken(user)
		if err != nil {
			r.log.Warn().Err(err).Msg("failed to issue session token")
		} else {
			id.session = session
		}
		return id, nil

	case r.cfg.AuthRequired:
		return nil, ErrAuthRequired

	default:
		return &identity{guestName: office.NormalizeName(req.Username)}, nil
	}
}

func (r *Room) join(ctx context.Context, c *Client, id *identity) error {
	result := make(chan error, 1)
	if err := r.submit(func() { result <- r.onJoin(c, id) }); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Room) onJoin(c *Client, id *identity) error {
	if c.isClosed() {
		return ErrRoomClosed
	}
	if _, exists := r.members[c.ID]; exists {
		return BadRequest("already joined")
	}

	if id.user != nil {
		r.kickSessionsOf(id.user.ID)
	}

	p := office.NewPlayer()
	if u := id.user; u != nil {
		p.SetUserID(strconv.FormatInt(u.ID, 10))
		p.SetName(u.Username)
		p.SetPoints(u.TotalPoints)
		if flow, ok := points.ParseFlowType(u.FlowType); ok {
			p.FlowType = flow
		}
		if prog := u.Progress; prog != nil {
			p.Move(prog.X, prog.Y, prog.Anim)
		} else {
			p.Move(p.X(), p.Y(), office.IdleAnim(u.Avatar))
		}
	} else if id.guestName != "" {
		p.SetName(id.guestName)
	}

	m := &member{client: c, player: p, user: id.user, joinedAt: r.now()}
	r.members[c.ID] = m
	r.size.Store(int32(len(r.members)))
	c.setRoom(r)
	if id.user != nil && id.session != nil {
		r.logEvent(m, analytics.UserLogin, analytics.Metadata{"avatar": id.user.Avatar})
	}

	// Existing members get everything up to and including the new player;
	// the newcomer starts from a snapshot at the same sequence number.
	r.state.Players().Set(c.ID, p)
	r.flush()

	if c.isClosed() {
		// the transport gave up while the join was queued
		r.onLeave(c)
		return ErrRoomClosed
	}

	snap := r.engine.Snapshot()
	c.send(&Event{Kind: EventRoomState, Seq: snap.Seq, State: snap.State})
	info := r.Info()
	c.send(&Event{Kind: EventRoomData, Room: &info, ClientID: c.ID})
	if id.session != nil {
		c.send(&Event{Kind: EventSessionToken, Session: id.session})
	}

	return nil
}

// kickSessionsOf closes every session the user already has in the room.
func (r *Room) kickSessionsOf(userID int64) {
	for _, m := range r.members {
		if m.user == nil || m.user.ID != userID {
			continue
		}
		r.removeMember(m)
		m.client.Close(CloseKicked, "signed in elsewhere")
		r.log.Info().Str("session_id", m.client.ID).Msg("duplicate session kicked")
	}
}

// watchPlayers hooks the room's bookkeeping onto the players map. A player
// counts as joined once it has a name.
func (r *Room) watchPlayers() {
	players := r.state.Players()
	players.OnAdd(func(p *office.Player, id string) {
		m, ok := r.members[id]
		if !ok {
			return
		}
		if p.Name() != "" {
			r.playerJoined(m)
			return
		}
		r.unwatch[id] = p.OnChange(func(changes []synced.FieldChange) {
			for _, ch := range changes {
				if ch.Field == office.PlayerNameField && ch.Value != "" {
					r.stopWatching(id)
					r.playerJoined(m)
					return
				}
			}
		})
	})
	players.OnRemove(func(p *office.Player, id string) {
		r.stopWatching(id)
		if m, ok := r.members[id]; ok {
			r.playerLeft(m)
		}
	})
}

func (r *Room) stopWatching(id string) {
	if stop, ok := r.unwatch[id]; ok {
		stop()
		delete(r.unwatch, id)
	}
}

func (r *Room) playerJoined(m *member) {
	r.logEvent(m, analytics.SessionStart, analytics.Metadata{"roomId": r.ID})
	r.log.Info().
		Str("session_id", m.client.ID).
		Str("name", m.player.Name()).
		Bool("guest", m.user == nil).
		Int("clients", len(r.members)).
		Msg("player joined")
}

func (r *Room) playerLeft(m *member) {
	ctx, cancel := r.storeContext()
	defer cancel()
	if r.svc.Events != nil {
		r.svc.Events.EndSession(ctx, m.client.ID)
	}
	if m.user != nil {
		t := m.player.Tracking
		r.logEvent(m, analytics.SessionEnd, analytics.Metadata{
			"sessionDuration":  r.now().Sub(m.joinedAt).Milliseconds(),
			"finalPosition":    map[string]float64{"x": m.player.X(), "y": m.player.Y()},
			"distanceTraveled": t.Distance,
			"zonesVisited":     t.ZonesVisited,
		})
		r.logEvent(m, analytics.UserLogout, nil)
	}
	r.log.Info().Str("session_id", m.client.ID).Str("name", m.player.Name()).Msg("player left")
}

func (r *Room) onLeave(c *Client) {
	m, ok := r.members[c.ID]
	if !ok {
		return
	}
	r.removeMember(m)

	if len(r.members) == 0 && r.autoDispose {
		r.disposed = true
	}
}

// removeMember persists what the member leaves behind and takes its player
// out of the state. Its NPC conversations stay for the room's lifetime.
func (r *Room) removeMember(m *member) {
	id := m.client.ID

	ctx, cancel := r.storeContext()
	defer cancel()

	if m.user != nil && r.svc.Users != nil {
		err := r.svc.Users.SaveProgress(ctx, m.user.ID, store.Progress{
			X:    m.player.X(),
			Y:    m.player.Y(),
			Anim: m.player.Anim(),
		})
		if err != nil {
			r.log.Error().Err(err).Str("session_id", id).Msg("failed to save progress")
		}
	}

	r.state.Disconnect(id)
	r.state.NPCs().Range(func(_ string, npc *office.NPC) bool {
		conv, ok := npc.Conversation(id)
		if !ok {
			return true
		}
		conv.Active = false
		if conv.RecordID != "" && r.svc.Conversations != nil {
			if err := r.svc.Conversations.EndConversation(ctx, conv.RecordID, r.now()); err != nil {
				r.log.Warn().Err(err).Str("session_id", id).Msg("failed to close conversation")
			}
		}
		return true
	})
	// OnRemove still sees the member
	r.state.Players().Delete(id)

	delete(r.members, id)
	r.size.Store(int32(len(r.members)))
	m.client.setRoom(nil)
}

// dispose releases shared resources once the last client left.
func (r *Room) dispose() {
	r.status.Store(int32(RoomDisposing))
	r.hub.remove(r)
	r.state.ReleaseIDs(r.hub.ids)
	r.status.Store(int32(RoomDisposed))
	r.log.Info().Msg("room disposed")
}

// shutdown kicks everyone with a reconnectable code.
func (r *Room) shutdown() {
	for _, m := range r.members {
		r.removeMember(m)
		m.client.Close(CloseAbnormal, "server shutting down")
	}
	r.dispose()
}

// flush broadcasts pending changes to every member.
func (r *Room) flush() {
	patch, ok := r.engine.Flush()
	if !ok {
		return
	}
	ev := &Event{Kind: EventRoomPatch, Seq: patch.Seq, Ops: patch.Ops}
	for _, m := range r.members {
		m.client.send(ev)
	}
}

func (r *Room) handle(c *Client, cmd *Command) {
	m, ok := r.members[c.ID]
	if !ok {
		return
	}
	if !r.router.Route(r, m, cmd) {
		c.send(ErrorEvent(BadRequest("unsupported command " + cmd.Kind.String())))
	}
}

func (r *Room) storeContext() (context.Context, context.CancelFunc) {
	// shutdown runs after r.ctx is cancelled and still needs to persist
	base := r.ctx
	if base.Err() != nil {
		base = context.Background()
	}
	return context.WithTimeout(base, r.cfg.StoreTimeout)
}

func (r *Room) logEvent(m *member, t analytics.EventType, md analytics.Metadata) {
	if r.svc.Events == nil || m.user == nil {
		return
	}
	r.svc.Events.Log(m.user.ID, m.client.ID, t, md)
}

func isCooldown(err error) bool {
	return errors.Is(err, points.ErrCooldown)
}
