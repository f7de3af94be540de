package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/skyoffice-server/internal/store"
)

type memorySink struct {
	mu           sync.Mutex
	events       []*store.Event
	interactions []*store.Interaction
	fail         error
}

func (m *memorySink) InsertEvents(_ context.Context, events []*store.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.events = append(m.events, events...)
	return nil
}

func (m *memorySink) InsertInteraction(_ context.Context, in *store.Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactions = append(m.interactions, in)
	return nil
}

func (m *memorySink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func TestCategoryOf(t *testing.T) {
	cases := map[EventType]Category{
		UserLogin:            CategoryAuth,
		SessionEnd:           CategoryAuth,
		NPCMessageSent:       CategoryNPC,
		ZoneEnter:            CategoryMovement,
		IdleStart:            CategoryMovement,
		MovementSample:       CategoryMovement,
		PlayerProximityStart: CategorySocial,
		ExplorationPattern:   CategoryLearning,
		EventType("CUSTOM"):  CategorySystem,
	}
	for typ, want := range cases {
		assert.Equal(t, want, CategoryOf(typ), typ)
	}
}

func TestFlushRequeuesOnFailure(t *testing.T) {
	sink := &memorySink{fail: errors.New("db locked")}
	l := NewLogger(sink, Config{}, nil)
	ctx := context.Background()

	l.Log(1, "s1", ZoneEnter, Metadata{"zone": "spawn"})
	l.Log(1, "s1", ZoneExit, nil)

	require.Error(t, l.Flush(ctx))
	assert.Equal(t, 2, l.Pending())

	l.Log(1, "s1", IdleStart, nil)
	sink.fail = nil
	require.NoError(t, l.Flush(ctx))
	assert.Equal(t, 0, l.Pending())

	require.Len(t, sink.events, 3)
	assert.Equal(t, "ZONE_ENTER", sink.events[0].Type)
	assert.Equal(t, "MOVEMENT", sink.events[0].Category)
	assert.JSONEq(t, `{"zone":"spawn"}`, sink.events[0].Metadata)
	assert.Equal(t, "IDLE_START", sink.events[2].Type)
}

func TestFailedFlushBacklogIsBounded(t *testing.T) {
	sink := &memorySink{fail: errors.New("disk full")}
	l := NewLogger(sink, Config{MaxQueue: 2, MaxBacklog: 3}, nil)
	ctx := context.Background()

	for i := range 5 {
		l.Log(int64(i), "s1", MovementSample, nil)
		_ = l.Flush(ctx)
	}
	assert.Equal(t, 3, l.Pending())

	sink.fail = nil
	require.NoError(t, l.Flush(ctx))
	require.Len(t, sink.events, 3)
	// the oldest events went first
	assert.Equal(t, int64(2), sink.events[0].UserID)
	assert.Equal(t, int64(4), sink.events[2].UserID)
}

func TestFullQueueFlushesEarly(t *testing.T) {
	sink := &memorySink{}
	l := NewLogger(sink, Config{FlushInterval: time.Hour, MaxQueue: 5}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	for range 5 {
		l.Log(2, "s2", MovementSample, nil)
	}
	require.Eventually(t, func() bool { return sink.count() == 5 }, 2*time.Second, 10*time.Millisecond)
}

func TestRunFlushesOnShutdown(t *testing.T) {
	sink := &memorySink{}
	l := NewLogger(sink, Config{FlushInterval: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	l.Log(3, "s3", UserLogout, nil)
	cancel()
	<-done
	assert.Equal(t, 1, sink.count())
}

func TestInteractionDuration(t *testing.T) {
	sink := &memorySink{}
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	l := NewLogger(sink, Config{Now: func() time.Time { return now }}, nil)
	ctx := context.Background()

	l.StartInteraction(7, "s7", TargetNPC, "guide", Metadata{"npcName": "Prof. Laura"})
	now = now.Add(90 * time.Second)

	d, ok := l.EndInteraction(ctx, "s7", TargetNPC, "guide")
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, d)

	_, ok = l.EndInteraction(ctx, "s7", TargetNPC, "guide")
	assert.False(t, ok)

	require.NoError(t, l.Flush(ctx))
	require.Len(t, sink.events, 2)
	assert.Equal(t, "NPC_CONVERSATION_START", sink.events[0].Type)
	assert.JSONEq(t, `{"targetId":"guide","npcName":"Prof. Laura"}`, sink.events[0].Metadata)
	assert.Equal(t, "NPC_CONVERSATION_END", sink.events[1].Type)
	assert.JSONEq(t, `{"targetId":"guide","duration":90000}`, sink.events[1].Metadata)

	require.Len(t, sink.interactions, 1)
	assert.Equal(t, 90*time.Second, sink.interactions[0].Duration())
}

func TestEndSessionClosesOpenInteractions(t *testing.T) {
	sink := &memorySink{}
	l := NewLogger(sink, Config{}, nil)
	ctx := context.Background()

	l.StartInteraction(1, "a", TargetNPC, "guide", nil)
	l.StartInteraction(1, "a", TargetPlayer, "b", nil)
	l.StartInteraction(2, "b", TargetNPC, "guide", nil)

	assert.Equal(t, 2, l.EndSession(ctx, "a"))
	assert.Len(t, sink.interactions, 2)
	_, ok := l.EndInteraction(ctx, "b", TargetNPC, "guide")
	assert.True(t, ok)
}

func TestNATSPublisher(t *testing.T) {
	srv, err := StartEmbeddedServer("127.0.0.1", -1)
	require.NoError(t, err)
	t.Cleanup(srv.Shutdown)

	sub, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(sub.Close)

	msgs := make(chan *nats.Msg, 4)
	_, err = sub.ChanSubscribe(DefaultSubject+".>", msgs)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	pub, err := NewNATSPublisher(srv.ClientURL(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	sink := &memorySink{}
	l := NewLogger(sink, Config{Publisher: pub}, nil)
	l.Log(5, "s5", NPCMessageSent, Metadata{"npcId": "guide"})
	require.NoError(t, l.Flush(context.Background()))

	select {
	case msg := <-msgs:
		assert.Equal(t, "skyoffice.events.npc", msg.Subject)
		var w WireEvent
		require.NoError(t, json.Unmarshal(msg.Data, &w))
		assert.Equal(t, int64(5), w.UserID)
		assert.Equal(t, "NPC_MESSAGE_SENT", w.Type)
		assert.JSONEq(t, `{"npcId":"guide"}`, string(w.Metadata))
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
	}
}
