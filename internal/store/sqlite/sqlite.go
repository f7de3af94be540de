package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/skyoffice-server/internal/store"
)

//go:embed schema.sql
var schema string

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, ApplySchema)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Tests use it to apply a partial or broken schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// single connection: sqlite serializes writers anyway, and :memory:
	// databases live per connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// ApplySchema creates all tables if they do not exist.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

const userColumns = `
	u.id, u.username, u.password_hash, COALESCE(u.email, ''), u.avatar_texture,
	u.point_flow_type, u.total_points, u.lifetime_points, u.created_at,
	p.last_x, p.last_y, p.last_anim, p.npc_interaction_count, p.last_active_at`

// CreateUser inserts a new account.
func (s *SQLiteStore) CreateUser(ctx context.Context, u store.NewUser) (*store.User, error) {
	avatar := u.Avatar
	if avatar == "" {
		avatar = "adam"
	}
	flow := u.FlowType
	if flow == "" {
		flow = "SYSTEM"
	}
	query := `
		INSERT INTO users (username, password_hash, email, avatar_texture, point_flow_type)
		VALUES (?, ?, NULLIF(?, ''), ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, u.Username, u.PasswordHash, u.Email, avatar, flow)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `SELECT` + userColumns + `
		FROM users u LEFT JOIN game_progress p ON p.user_id = u.id
		WHERE u.id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `SELECT` + userColumns + `
		FROM users u LEFT JOIN game_progress p ON p.user_id = u.id
		WHERE u.username = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var (
		user       store.User
		lastX      sql.NullFloat64
		lastY      sql.NullFloat64
		lastAnim   sql.NullString
		npcCount   sql.NullInt64
		lastActive sql.NullTime
	)
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Email,
		&user.Avatar,
		&user.FlowType,
		&user.TotalPoints,
		&user.LifetimePoints,
		&user.CreatedAt,
		&lastX,
		&lastY,
		&lastAnim,
		&npcCount,
		&lastActive,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	if lastX.Valid {
		user.Progress = &store.Progress{
			X:                   lastX.Float64,
			Y:                   lastY.Float64,
			Anim:                lastAnim.String,
			NPCInteractionCount: npcCount.Int64,
			LastActiveAt:        lastActive.Time,
		}
	}
	return &user, nil
}

// SaveProgress upserts the last known placement.
func (s *SQLiteStore) SaveProgress(ctx context.Context, userID int64, p store.Progress) error {
	query := `
		INSERT INTO game_progress (user_id, last_x, last_y, last_anim, last_active_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			last_x = excluded.last_x,
			last_y = excluded.last_y,
			last_anim = excluded.last_anim,
			last_active_at = excluded.last_active_at
	`
	if _, err := s.db.ExecContext(ctx, query, userID, p.X, p.Y, p.Anim, time.Now().UTC()); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// RecordNPCInteraction bumps the NPC interaction counter.
func (s *SQLiteStore) RecordNPCInteraction(ctx context.Context, userID int64) error {
	query := `
		INSERT INTO game_progress (user_id, last_x, last_y, last_anim, npc_interaction_count, last_active_at)
		VALUES (?, 705, 500, 'adam_idle_down', 1, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			npc_interaction_count = npc_interaction_count + 1,
			last_active_at = excluded.last_active_at
	`
	if _, err := s.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("record npc interaction: %w", err)
	}
	return nil
}

// SetFlowType changes how point awards are announced to the user.
func (s *SQLiteStore) SetFlowType(ctx context.Context, userID int64, flowType string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET point_flow_type = ? WHERE id = ?`, flowType, userID)
	if err != nil {
		return fmt.Errorf("update flow type: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d: %w", userID, store.ErrNotFound)
	}
	return nil
}

// ==== ConversationStore implementation ====

// CreateConversation opens a new conversation record.
func (s *SQLiteStore) CreateConversation(ctx context.Context, userID int64, npcID string) (*store.Conversation, error) {
	conv := &store.Conversation{
		ID:        uuid.New().String(),
		UserID:    userID,
		NPCID:     npcID,
		StartedAt: time.Now().UTC(),
	}
	query := `
		INSERT INTO npc_conversations (id, user_id, npc_id, started_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, conv.ID, conv.UserID, conv.NPCID, conv.StartedAt); err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return conv, nil
}

// LatestConversation returns the newest conversation of a user with an NPC.
func (s *SQLiteStore) LatestConversation(ctx context.Context, userID int64, npcID string) (*store.Conversation, error) {
	query := `
		SELECT id, user_id, npc_id, started_at, ended_at
		FROM npc_conversations
		WHERE user_id = ? AND npc_id = ?
		ORDER BY started_at DESC, rowid DESC
		LIMIT 1
	`
	var (
		conv  store.Conversation
		ended sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, userID, npcID).Scan(
		&conv.ID,
		&conv.UserID,
		&conv.NPCID,
		&conv.StartedAt,
		&ended,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("conversation: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	if ended.Valid {
		conv.EndedAt = &ended.Time
	}

	msgQuery := `
		SELECT id, conversation_id, author, content, is_npc, created_at
		FROM conversation_messages
		WHERE conversation_id = ?
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, msgQuery, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("query conversation messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m store.ConversationMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Author, &m.Content, &m.IsNPC, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation message: %w", err)
		}
		conv.Messages = append(conv.Messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation messages: %w", err)
	}
	return &conv, nil
}

// AppendConversationMessage adds a message to a conversation.
func (s *SQLiteStore) AppendConversationMessage(ctx context.Context, msg *store.ConversationMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO conversation_messages (conversation_id, author, content, is_npc, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, msg.ConversationID, msg.Author, msg.Content, msg.IsNPC, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert conversation message: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		msg.ID = id
	}
	return nil
}

// EndConversation stamps the end time.
func (s *SQLiteStore) EndConversation(ctx context.Context, id string, at time.Time) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE npc_conversations SET ended_at = ? WHERE id = ?`, at.UTC(), id); err != nil {
		return fmt.Errorf("end conversation: %w", err)
	}
	return nil
}

// ==== PointStore implementation ====

// AwardPoints updates the balance and writes the ledger row in one
// transaction.
func (s *SQLiteStore) AwardPoints(ctx context.Context, ptx *store.PointTransaction) (int64, error) {
	if ptx.ID == "" {
		ptx.ID = uuid.New().String()
	}
	if ptx.CreatedAt.IsZero() {
		ptx.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE users
		SET total_points = total_points + ?,
		    lifetime_points = lifetime_points + MAX(?, 0)
		WHERE id = ?
	`, ptx.Points, ptx.Points, ptx.UserID)
	if err != nil {
		return 0, fmt.Errorf("update balance: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("user %d: %w", ptx.UserID, store.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO point_transactions (id, user_id, points, type, reason, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), ?)
	`, ptx.ID, ptx.UserID, ptx.Points, ptx.Type, ptx.Reason, ptx.Metadata, ptx.CreatedAt); err != nil {
		return 0, fmt.Errorf("insert point transaction: %w", err)
	}

	var total int64
	if err := tx.QueryRowContext(ctx, `SELECT total_points FROM users WHERE id = ?`, ptx.UserID).Scan(&total); err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return total, nil
}

// ListPointTransactions returns the newest ledger rows for a user.
func (s *SQLiteStore) ListPointTransactions(ctx context.Context, userID int64, limit int) ([]*store.PointTransaction, error) {
	query := `
		SELECT id, user_id, points, type, reason, COALESCE(metadata, ''), created_at
		FROM point_transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query point transactions: %w", err)
	}
	defer rows.Close()

	var out []*store.PointTransaction
	for rows.Next() {
		var t store.PointTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Points, &t.Type, &t.Reason, &t.Metadata, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan point transaction: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// ==== EventStore implementation ====

// InsertEvents writes a batch atomically.
func (s *SQLiteStore) InsertEvents(ctx context.Context, events []*store.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO user_events (user_id, session_id, event_type, event_category, metadata, timestamp)
		VALUES (?, NULLIF(?, ''), ?, ?, NULLIF(?, ''), ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert event: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx, ev.UserID, ev.SessionID, ev.Type, ev.Category, ev.Metadata, ev.Timestamp.UTC()); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// InsertInteraction records a finished interaction session.
func (s *SQLiteStore) InsertInteraction(ctx context.Context, in *store.Interaction) error {
	query := `
		INSERT INTO interaction_sessions
			(user_id, session_id, target_type, target_id, start_time, end_time, duration_ms, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''))
	`
	_, err := s.db.ExecContext(ctx, query,
		in.UserID, in.SessionID, in.TargetType, in.TargetID,
		in.StartTime.UTC(), in.EndTime.UTC(), in.Duration().Milliseconds(), in.Metadata,
	)
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

// RecentEvents returns the newest events.
func (s *SQLiteStore) RecentEvents(ctx context.Context, limit int) ([]*store.Event, error) {
	query := `
		SELECT id, user_id, COALESCE(session_id, ''), event_type, event_category, COALESCE(metadata, ''), timestamp
		FROM user_events
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []*store.Event
	for rows.Next() {
		var ev store.Event
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.SessionID, &ev.Type, &ev.Category, &ev.Metadata, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}

// EventCounts aggregates events per type.
func (s *SQLiteStore) EventCounts(ctx context.Context) ([]store.EventCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_type, COUNT(*) AS n
		FROM user_events
		GROUP BY event_type
		ORDER BY n DESC, event_type ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	var out []store.EventCount
	for rows.Next() {
		var c store.EventCount
		if err := rows.Scan(&c.Type, &c.Count); err != nil {
			return nil, fmt.Errorf("scan event count: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountInteractions returns the number of recorded interactions.
func (s *SQLiteStore) CountInteractions(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM interaction_sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count interactions: %w", err)
	}
	return n, nil
}

var _ store.Store = (*SQLiteStore)(nil)
