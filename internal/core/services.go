package core

import (
	"context"
	"time"

	"github.com/vovakirdan/skyoffice-server/internal/ai"
	"github.com/vovakirdan/skyoffice-server/internal/analytics"
	"github.com/vovakirdan/skyoffice-server/internal/auth"
	"github.com/vovakirdan/skyoffice-server/internal/media"
	"github.com/vovakirdan/skyoffice-server/internal/office"
	"github.com/vovakirdan/skyoffice-server/internal/points"
	"github.com/vovakirdan/skyoffice-server/internal/store"
)

// Authenticator identifies users joining a room.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*store.User, error)
	ResolveToken(ctx context.Context, token string) (*store.User, error)
	IssueToken(user *store.User) (*auth.Session, error)
}

// Awarder grants points.
type Awarder interface {
	Award(ctx context.Context, userID int64, t points.Type, md points.Metadata) (*points.Award, error)
}

// EventLogger records analytics.
type EventLogger interface {
	Log(userID int64, sessionID string, t analytics.EventType, md analytics.Metadata)
	StartInteraction(userID int64, sessionID, targetType, targetID string, md analytics.Metadata)
	EndInteraction(ctx context.Context, sessionID, targetType, targetID string) (time.Duration, bool)
	EndSession(ctx context.Context, sessionID string) int
}

// Services are the optional collaborators of a room. A nil field turns the
// related feature off.
type Services struct {
	Auth          Authenticator
	Users         store.UserStore
	Conversations store.ConversationStore
	Points        Awarder
	AI            ai.Responder
	Events        EventLogger
	Media         media.Engine
}

// Config tunes rooms.
type Config struct {
	// PatchRate is how often pending changes are broadcast.
	PatchRate    time.Duration
	ClientBuffer int
	// AITimeout bounds one NPC reply.
	AITimeout time.Duration
	// StoreTimeout bounds one persistence call made from a room.
	StoreTimeout time.Duration
	// AuthRequired rejects joins without credentials.
	AuthRequired bool

	PublicRoomName        string
	PublicRoomDescription string
	Layout                office.Layout
}

func (c Config) withDefaults() Config {
	if c.PatchRate <= 0 {
		c.PatchRate = 50 * time.Millisecond
	}
	if c.ClientBuffer <= 0 {
		c.ClientBuffer = DefaultClientBuffer
	}
	if c.AITimeout <= 0 {
		c.AITimeout = 20 * time.Second
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 5 * time.Second
	}
	if c.PublicRoomName == "" {
		c.PublicRoomName = "SkyOffice"
	}
	if c.PublicRoomDescription == "" {
		c.PublicRoomDescription = "The public lobby"
	}
	if c.Layout.NPCs == nil && c.Layout.Computers == 0 && c.Layout.Whiteboards == 0 {
		c.Layout = office.DefaultLayout()
	}
	return c
}
