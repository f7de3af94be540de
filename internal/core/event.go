package core

import (
	"time"

	"github.com/vovakirdan/skyoffice-server/internal/auth"
	"github.com/vovakirdan/skyoffice-server/internal/media"
	"github.com/vovakirdan/skyoffice-server/internal/synced"
)

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventRoomState delivers a full snapshot after joining.
	EventRoomState EventKind = iota
	// EventRoomPatch delivers the changes of one tick.
	EventRoomPatch
	// EventRoomData describes the joined room.
	EventRoomData
	// EventPointsUpdated notifies a player about an award.
	EventPointsUpdated
	// EventNPCInteraction answers INTERACT_WITH_NPC.
	EventNPCInteraction
	// EventNPCConversation answers START_NPC_CONVERSATION.
	EventNPCConversation
	// EventSessionToken hands out a session token after a password login.
	EventSessionToken
	// EventMediaJoinInfo delivers media backend credentials.
	EventMediaJoinInfo
	EventStopScreenShare
	EventDisconnectStream
	// EventError notifies clients about a domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind EventKind

	Seq   uint64
	State any         // EventRoomState
	Ops   []synced.Op // EventRoomPatch

	Room     *RoomInfo
	Points   *PointsAward
	NPCID    string
	Text     string
	Messages []ChatLine
	Session  *auth.Session
	Media    *media.JoinInfo

	ComputerID string
	ClientID   string

	Error *CoreError
}

// PointsAward describes an award as shown to its recipient.
type PointsAward struct {
	PointsEarned int64
	NewTotal     int64
	Reason       string
	AwardedBy    string
}

// ChatLine is one conversation message.
type ChatLine struct {
	Author    string
	Content   string
	IsNPC     bool
	CreatedAt time.Time
}

// ErrorEvent wraps err for delivery to a client.
func ErrorEvent(err error) *Event {
	return &Event{Kind: EventError, Error: AsCoreError(err)}
}
