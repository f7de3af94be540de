package points

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/skyoffice-server/internal/store"
)

type fakeLedger struct {
	mu     sync.Mutex
	totals map[int64]int64
	rows   []*store.PointTransaction
	fail   error
}

func newFakeLedger(users ...int64) *fakeLedger {
	f := &fakeLedger{totals: make(map[int64]int64)}
	for _, id := range users {
		f.totals[id] = 0
	}
	return f
}

func (f *fakeLedger) AwardPoints(_ context.Context, tx *store.PointTransaction) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return 0, f.fail
	}
	total, ok := f.totals[tx.UserID]
	if !ok {
		return 0, store.ErrNotFound
	}
	total += tx.Points
	f.totals[tx.UserID] = total
	f.rows = append(f.rows, tx)
	return total, nil
}

func (f *fakeLedger) ListPointTransactions(context.Context, int64, int) ([]*store.PointTransaction, error) {
	return nil, nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(l *fakeLedger) (*Service, *clock) {
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewService(l, nil, WithClock(c.now)), c
}

func TestMeaningfulQuestionHasNoCooldown(t *testing.T) {
	l := newFakeLedger(1)
	s, _ := newTestService(l)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		a, err := s.Award(ctx, 1, MeaningfulQuestion, Metadata{})
		require.NoError(t, err)
		assert.Equal(t, int64(10), a.PointsEarned)
		assert.Equal(t, int64(10*i), a.NewTotal)
	}
	assert.Len(t, l.rows, 3)
}

func TestConversationStartCooldownIsPerTarget(t *testing.T) {
	l := newFakeLedger(1)
	s, c := newTestService(l)
	ctx := context.Background()

	_, err := s.Award(ctx, 1, NPCConversationStart, Metadata{TargetID: "guide"})
	require.NoError(t, err)

	_, err = s.Award(ctx, 1, NPCConversationStart, Metadata{TargetID: "guide"})
	assert.ErrorIs(t, err, ErrCooldown)

	// another NPC is not affected
	_, err = s.Award(ctx, 1, NPCConversationStart, Metadata{TargetID: "librarian"})
	require.NoError(t, err)

	c.advance(59 * time.Second)
	_, err = s.Award(ctx, 1, NPCConversationStart, Metadata{TargetID: "guide"})
	assert.ErrorIs(t, err, ErrCooldown)

	c.advance(time.Second)
	a, err := s.Award(ctx, 1, NPCConversationStart, Metadata{TargetID: "guide"})
	require.NoError(t, err)
	assert.Equal(t, int64(30), a.NewTotal)
	assert.Equal(t, `{"npcId":"guide"}`, l.rows[2].Metadata)
}

func TestAwardErrors(t *testing.T) {
	l := newFakeLedger(1)
	s, _ := newTestService(l)
	ctx := context.Background()

	_, err := s.Award(ctx, 1, Type("FLYING"), Metadata{})
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = s.Award(ctx, 99, MeaningfulQuestion, Metadata{})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestFailedWriteReleasesCooldown(t *testing.T) {
	l := newFakeLedger(1)
	s, _ := newTestService(l)
	ctx := context.Background()

	l.fail = errors.New("disk full")
	_, err := s.Award(ctx, 1, NPCConversationStart, Metadata{TargetID: "guide"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCooldown)

	l.fail = nil
	_, err = s.Award(ctx, 1, NPCConversationStart, Metadata{TargetID: "guide"})
	require.NoError(t, err)
}

func TestConcurrentAwardsRespectCooldown(t *testing.T) {
	l := newFakeLedger(1)
	s := NewService(l, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Award(ctx, 1, NPCConversationStart, Metadata{TargetID: "guide"}); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, granted)
	assert.Equal(t, int64(10), l.totals[1])
}

func TestSweepEvictsOldEntries(t *testing.T) {
	l := newFakeLedger(1, 2)
	s, c := newTestService(l)
	ctx := context.Background()

	_, err := s.Award(ctx, 1, NPCConversationStart, Metadata{TargetID: "guide"})
	require.NoError(t, err)
	c.advance(30 * time.Minute)
	_, err = s.Award(ctx, 2, NPCConversationStart, Metadata{TargetID: "guide"})
	require.NoError(t, err)

	c.advance(31 * time.Minute)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 0, s.Sweep())
}

func TestRenderAwardMessage(t *testing.T) {
	msg, err := RenderAwardMessage("Great job starting our conversation! I'm awarding you {{ .Points }} points.", MessageData{Points: 10})
	require.NoError(t, err)
	assert.Equal(t, "Great job starting our conversation! I'm awarding you 10 points.", msg)

	msg, err = RenderAwardMessage("", MessageData{Points: 5})
	require.NoError(t, err)
	assert.Equal(t, "I'm awarding you 5 points for engaging with me!", msg)

	msg, err = RenderAwardMessage(`{{ .Player | upper }} earned {{ .Points }}`, MessageData{Points: 10, Player: "ada"})
	require.NoError(t, err)
	assert.Equal(t, "ADA earned 10", msg)

	_, err = RenderAwardMessage("{{ .Points", MessageData{})
	assert.Error(t, err)
}

func TestParseFlowType(t *testing.T) {
	f, ok := ParseFlowType("NPC")
	assert.True(t, ok)
	assert.Equal(t, FlowNPC, f)

	f, ok = ParseFlowType("")
	assert.True(t, ok)
	assert.Equal(t, FlowSystem, f)

	_, ok = ParseFlowType("robot")
	assert.False(t, ok)
}
