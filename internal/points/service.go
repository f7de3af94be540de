package points

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/skyoffice-server/internal/store"
)

var (
	ErrUnknownType  = errors.New("unknown point type")
	ErrCooldown     = errors.New("point award on cooldown")
	ErrUserNotFound = errors.New("user not found")
)

const (
	sweepInterval = 5 * time.Minute
	// maxCooldownAge bounds how long a cooldown entry is kept.
	maxCooldownAge = time.Hour
)

// Service awards points through a store.PointStore.
type Service struct {
	store store.PointStore
	rules map[Type]Rule
	log   *zerolog.Logger
	now   func() time.Time

	mu        sync.Mutex
	cooldowns map[string]time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRules replaces DefaultRules.
func WithRules(rules map[Type]Rule) Option {
	return func(s *Service) { s.rules = rules }
}

// NewService constructs a points service.
func NewService(st store.PointStore, logger *zerolog.Logger, opts ...Option) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &Service{
		store:     st,
		rules:     DefaultRules,
		log:       logger,
		now:       time.Now,
		cooldowns: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rule returns the rule for t.
func (s *Service) Rule(t Type) (Rule, bool) {
	r, ok := s.rules[t]
	return r, ok
}

// Award grants the points configured for t to userID.
//
// The cooldown slot is claimed before the ledger write so two rooms racing
// for the same award cannot both succeed. A failed write gives the slot back.
func (s *Service) Award(ctx context.Context, userID int64, t Type, md Metadata) (*Award, error) {
	rule, ok := s.rules[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, t)
	}

	key := cooldownKey(userID, rule, md)
	prev, reserved := s.reserve(key, rule.Cooldown)
	if !reserved {
		return nil, ErrCooldown
	}

	var meta string
	if md != (Metadata{}) {
		b, err := json.Marshal(md)
		if err == nil {
			meta = string(b)
		}
	}

	total, err := s.store.AwardPoints(ctx, &store.PointTransaction{
		UserID:    userID,
		Points:    rule.Points,
		Type:      string(t),
		Reason:    rule.Description,
		Metadata:  meta,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		s.restore(key, prev)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("award points: %w", err)
	}

	s.log.Info().
		Int64("user_id", userID).
		Str("type", string(t)).
		Int64("points", rule.Points).
		Int64("total", total).
		Msg("points awarded")

	return &Award{
		Type:         t,
		PointsEarned: rule.Points,
		NewTotal:     total,
		Reason:       rule.Description,
	}, nil
}

func cooldownKey(userID int64, rule Rule, md Metadata) string {
	key := strconv.FormatInt(userID, 10) + ":" + string(rule.Type)
	if rule.PerTarget && md.TargetID != "" {
		key += ":" + md.TargetID
	}
	return key
}

// reserve claims key if its cooldown has elapsed. It returns the previous
// timestamp so a failed award can put it back.
func (s *Service) reserve(key string, cooldown time.Duration) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	prev, seen := s.cooldowns[key]
	if seen && now.Sub(prev) < cooldown {
		return prev, false
	}
	s.cooldowns[key] = now
	return prev, true
}

func (s *Service) restore(key string, prev time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev.IsZero() {
		delete(s.cooldowns, key)
		return
	}
	s.cooldowns[key] = prev
}

// Sweep evicts cooldown entries older than an hour and returns how many
// were removed.
func (s *Service) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, at := range s.cooldowns {
		if now.Sub(at) > maxCooldownAge {
			delete(s.cooldowns, key)
			removed++
		}
	}
	return removed
}

// Run sweeps cooldowns periodically until ctx is done.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.log.Debug().Int("removed", n).Msg("expired point cooldowns swept")
			}
		}
	}
}
