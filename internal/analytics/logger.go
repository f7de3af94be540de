package analytics

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/skyoffice-server/internal/store"
)

const (
	DefaultFlushInterval = 3 * time.Second
	DefaultMaxQueue      = 100
	// DefaultMaxBacklog bounds the events kept while the sink is failing.
	DefaultMaxBacklog = 10 * DefaultMaxQueue
)

// Sink persists events and interactions. store.EventStore satisfies it.
type Sink interface {
	InsertEvents(ctx context.Context, events []*store.Event) error
	InsertInteraction(ctx context.Context, in *store.Interaction) error
}

// Publisher forwards flushed events to other consumers.
type Publisher interface {
	Publish(events []*store.Event) error
}

// Metadata is free-form event detail encoded as JSON.
type Metadata map[string]any

type interaction struct {
	userID     int64
	sessionID  string
	targetType string
	targetID   string
	start      time.Time
	metadata   Metadata
}

// Logger queues events and writes them in batches.
type Logger struct {
	sink      Sink
	publisher Publisher
	log       *zerolog.Logger
	now       func() time.Time

	flushInterval time.Duration
	maxQueue      int
	maxBacklog    int
	kick          chan struct{}

	mu           sync.Mutex
	queue        []*store.Event
	interactions map[string]*interaction
}

// Config tunes a Logger.
type Config struct {
	FlushInterval time.Duration
	MaxQueue      int
	MaxBacklog    int
	Publisher     Publisher
	Now           func() time.Time
}

// NewLogger creates a logger writing to sink.
func NewLogger(sink Sink, cfg Config, logger *zerolog.Logger) *Logger {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = DefaultMaxQueue
	}
	if cfg.MaxBacklog <= 0 {
		cfg.MaxBacklog = max(DefaultMaxBacklog, cfg.MaxQueue)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Logger{
		sink:          sink,
		publisher:     cfg.Publisher,
		log:           logger,
		now:           cfg.Now,
		flushInterval: cfg.FlushInterval,
		maxQueue:      cfg.MaxQueue,
		maxBacklog:    cfg.MaxBacklog,
		kick:          make(chan struct{}, 1),
		interactions:  make(map[string]*interaction),
	}
}

// Log queues an event. It never blocks on I/O: a full queue wakes Run.
func (l *Logger) Log(userID int64, sessionID string, t EventType, md Metadata) {
	var meta string
	if len(md) > 0 {
		b, err := json.Marshal(md)
		if err != nil {
			l.log.Warn().Err(err).Str("type", string(t)).Msg("event metadata not serializable")
		} else {
			meta = string(b)
		}
	}

	l.mu.Lock()
	l.queue = append(l.queue, &store.Event{
		UserID:    userID,
		SessionID: sessionID,
		Type:      string(t),
		Category:  string(CategoryOf(t)),
		Metadata:  meta,
		Timestamp: l.now().UTC(),
	})
	full := len(l.queue) >= l.maxQueue
	l.mu.Unlock()

	if full {
		select {
		case l.kick <- struct{}{}:
		default:
		}
	}
}

// Pending returns the number of queued events.
func (l *Logger) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func interactionKey(sessionID, targetType, targetID string) string {
	return sessionID + "-" + targetType + "-" + targetID
}

// StartInteraction opens an interaction and logs its start event.
func (l *Logger) StartInteraction(userID int64, sessionID, targetType, targetID string, md Metadata) {
	l.mu.Lock()
	l.interactions[interactionKey(sessionID, targetType, targetID)] = &interaction{
		userID:     userID,
		sessionID:  sessionID,
		targetType: targetType,
		targetID:   targetID,
		start:      l.now(),
		metadata:   md,
	}
	l.mu.Unlock()

	t := PlayerProximityStart
	if targetType == TargetNPC {
		t = NPCConversationStart
	}
	ev := Metadata{"targetId": targetID}
	for k, v := range md {
		ev[k] = v
	}
	l.Log(userID, sessionID, t, ev)
}

// EndInteraction closes an interaction, stores it with its duration and
// logs the end event. ok is false if no such interaction is open.
func (l *Logger) EndInteraction(ctx context.Context, sessionID, targetType, targetID string) (time.Duration, bool) {
	key := interactionKey(sessionID, targetType, targetID)

	l.mu.Lock()
	in, ok := l.interactions[key]
	delete(l.interactions, key)
	l.mu.Unlock()

	if !ok {
		return 0, false
	}
	return l.finish(ctx, in), true
}

// EndSession closes every open interaction of a session.
func (l *Logger) EndSession(ctx context.Context, sessionID string) int {
	l.mu.Lock()
	var open []*interaction
	for key, in := range l.interactions {
		if in.sessionID == sessionID {
			open = append(open, in)
			delete(l.interactions, key)
		}
	}
	l.mu.Unlock()

	for _, in := range open {
		l.finish(ctx, in)
	}
	return len(open)
}

func (l *Logger) finish(ctx context.Context, in *interaction) time.Duration {
	end := l.now()
	record := &store.Interaction{
		UserID:     in.userID,
		SessionID:  in.sessionID,
		TargetType: in.targetType,
		TargetID:   in.targetID,
		StartTime:  in.start,
		EndTime:    end,
	}
	if len(in.metadata) > 0 {
		if b, err := json.Marshal(in.metadata); err == nil {
			record.Metadata = string(b)
		}
	}
	if err := l.sink.InsertInteraction(ctx, record); err != nil {
		l.log.Error().Err(err).Str("session_id", in.sessionID).Msg("failed to save interaction")
	}

	duration := record.Duration()
	t := PlayerProximityEnd
	if in.targetType == TargetNPC {
		t = NPCConversationEnd
	}
	l.Log(in.userID, in.sessionID, t, Metadata{
		"targetId": in.targetID,
		"duration": duration.Milliseconds(),
	})
	return duration
}

// Flush writes the queue. Events are put back in front of the queue if the
// write fails; past MaxBacklog the oldest ones are dropped.
func (l *Logger) Flush(ctx context.Context) error {
	l.mu.Lock()
	events := l.queue
	l.queue = nil
	l.mu.Unlock()

	if len(events) == 0 {
		return nil
	}

	if err := l.sink.InsertEvents(ctx, events); err != nil {
		l.mu.Lock()
		backlog := append(events, l.queue...)
		dropped := len(backlog) - l.maxBacklog
		if dropped > 0 {
			backlog = backlog[dropped:]
		}
		l.queue = backlog
		l.mu.Unlock()
		l.log.Error().Err(err).Int("count", len(events)).Msg("failed to flush events")
		if dropped > 0 {
			l.log.Warn().Int("dropped", dropped).Int("backlog", l.maxBacklog).Msg("event backlog full, oldest events dropped")
		}
		return err
	}

	if l.publisher != nil {
		if err := l.publisher.Publish(events); err != nil {
			l.log.Warn().Err(err).Msg("failed to publish events")
		}
	}
	l.log.Debug().Int("count", len(events)).Msg("events flushed")
	return nil
}

// Run flushes on the interval, and early when the queue fills up, until
// ctx is done. Remaining events are flushed before returning.
func (l *Logger) Run(ctx context.Context) {
	ticker := time.NewTicker(l.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = l.Flush(shutdownCtx) //nolint:errcheck // logged in Flush
			cancel()
			return
		case <-ticker.C:
			_ = l.Flush(ctx) //nolint:errcheck // logged in Flush
		case <-l.kick:
			_ = l.Flush(ctx) //nolint:errcheck // logged in Flush
		}
	}
}
