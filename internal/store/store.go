package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is wrapped by lookups that match no row.
var ErrNotFound = errors.New("not found")

// User is an account allowed to enter the office.
type User struct {
	ID             int64
	Username       string
	PasswordHash   string
	Email          string
	Avatar         string
	FlowType       string // SYSTEM or NPC
	TotalPoints    int64
	LifetimePoints int64
	Progress       *Progress // nil until the user has left a room once
	CreatedAt      time.Time
}

// NewUser holds the fields needed to create an account.
type NewUser struct {
	Username     string
	PasswordHash string
	Email        string
	Avatar       string
	FlowType     string
}

// Progress is the last known avatar placement of a user.
type Progress struct {
	X                   float64
	Y                   float64
	Anim                string
	NPCInteractionCount int64
	LastActiveAt        time.Time
}

// Conversation is a persisted NPC conversation.
type Conversation struct {
	ID        string
	UserID    int64
	NPCID     string
	StartedAt time.Time
	EndedAt   *time.Time
	Messages  []*ConversationMessage
}

// ConversationMessage is one persisted line of a conversation.
type ConversationMessage struct {
	ID             int64
	ConversationID string
	Author         string
	Content        string
	IsNPC          bool
	CreatedAt      time.Time
}

// PointTransaction is an immutable ledger row for one award.
type PointTransaction struct {
	ID        string
	UserID    int64
	Points    int64
	Type      string
	Reason    string
	Metadata  string // JSON
	CreatedAt time.Time
}

// Event is one analytics record.
type Event struct {
	ID        int64
	UserID    int64
	SessionID string
	Type      string
	Category  string
	Metadata  string // JSON
	Timestamp time.Time
}

// Interaction is a finished interaction session (e.g. a conversation with
// an NPC) with its duration.
type Interaction struct {
	UserID     int64
	SessionID  string
	TargetType string
	TargetID   string
	StartTime  time.Time
	EndTime    time.Time
	Metadata   string // JSON
}

// Duration returns EndTime - StartTime.
func (i *Interaction) Duration() time.Duration { return i.EndTime.Sub(i.StartTime) }

// EventCount is a per-type aggregate.
type EventCount struct {
	Type  string
	Count int64
}

// UserStore defines persistence operations for users.
type UserStore interface {
	// CreateUser inserts a new account.
	CreateUser(ctx context.Context, u NewUser) (*User, error)
	// GetUserByID loads a user with progress.
	GetUserByID(ctx context.Context, id int64) (*User, error)
	// GetUserByUsername loads a user with progress.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	// SaveProgress upserts the last known placement.
	SaveProgress(ctx context.Context, userID int64, p Progress) error
	// RecordNPCInteraction bumps the NPC interaction counter.
	RecordNPCInteraction(ctx context.Context, userID int64) error
	// SetFlowType changes how point awards are announced to the user.
	SetFlowType(ctx context.Context, userID int64, flowType string) error
}

// ConversationStore defines persistence operations for NPC conversations.
type ConversationStore interface {
	// CreateConversation opens a new conversation record.
	CreateConversation(ctx context.Context, userID int64, npcID string) (*Conversation, error)
	// LatestConversation returns the most recent conversation between a user
	// and an NPC, with messages in insertion order.
	LatestConversation(ctx context.Context, userID int64, npcID string) (*Conversation, error)
	// AppendConversationMessage adds a message to a conversation.
	AppendConversationMessage(ctx context.Context, msg *ConversationMessage) error
	// EndConversation stamps the end time.
	EndConversation(ctx context.Context, id string, at time.Time) error
}

// PointStore defines persistence operations for points.
type PointStore interface {
	// AwardPoints adds tx.Points to the user's balance and records tx in one
	// transaction. It returns the new total.
	AwardPoints(ctx context.Context, tx *PointTransaction) (int64, error)
	// ListPointTransactions returns the newest ledger rows for a user.
	ListPointTransactions(ctx context.Context, userID int64, limit int) ([]*PointTransaction, error)
}

// EventStore defines persistence operations for analytics.
type EventStore interface {
	// InsertEvents writes a batch atomically.
	InsertEvents(ctx context.Context, events []*Event) error
	// InsertInteraction records a finished interaction session.
	InsertInteraction(ctx context.Context, in *Interaction) error
	// RecentEvents returns the newest events.
	RecentEvents(ctx context.Context, limit int) ([]*Event, error)
	// EventCounts aggregates events per type, most frequent first.
	EventCounts(ctx context.Context) ([]EventCount, error)
	// CountInteractions returns the number of recorded interactions.
	CountInteractions(ctx context.Context) (int64, error)
}

// Store aggregates all persistence interfaces.
type Store interface {
	UserStore
	ConversationStore
	PointStore
	EventStore
	Close() error
}
