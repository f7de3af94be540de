package office

import (
	"math"
	"strings"
	"time"
)

// SampleInterval is the minimum spacing of movement samples.
const SampleInterval = 10 * time.Second

// Tracking is per-player movement state used for analytics. It is never
// replicated.
type Tracking struct {
	LastSampleTime time.Time
	CurrentZone    Zone
	IsIdle         bool
	IdleStartTime  time.Time
	Distance       float64
	ZonesVisited   []Zone

	lastX, lastY float64
	started      bool
}

// Movement lists what one position update means for analytics.
type Movement struct {
	Sample       bool
	ZoneChanged  bool
	FromZone     Zone
	ToZone       Zone
	IdleStarted  bool
	IdleEnded    bool
	IdleDuration time.Duration
}

// Observe folds a position update into t.
func (t *Tracking) Observe(now time.Time, x, y float64, anim string) Movement {
	var mv Movement
	zone := ZoneAt(x, y)
	if !t.started {
		t.started = true
		t.LastSampleTime = now
		t.lastX, t.lastY = x, y
	} else {
		t.Distance += math.Hypot(x-t.lastX, y-t.lastY)
		t.lastX, t.lastY = x, y
	}

	if now.Sub(t.LastSampleTime) > SampleInterval {
		mv.Sample = true
		t.LastSampleTime = now
	}

	if zone != t.CurrentZone {
		mv.ZoneChanged = true
		mv.FromZone = t.CurrentZone
		mv.ToZone = zone
		t.CurrentZone = zone
		t.visit(zone)
	}

	idle := strings.Contains(anim, "idle")
	switch {
	case idle && !t.IsIdle:
		t.IsIdle = true
		t.IdleStartTime = now
		mv.IdleStarted = true
	case !idle && t.IsIdle:
		t.IsIdle = false
		mv.IdleEnded = true
		mv.IdleDuration = now.Sub(t.IdleStartTime)
	}
	return mv
}

func (t *Tracking) visit(z Zone) {
	for _, v := range t.ZonesVisited {
		if v == z {
			return
		}
	}
	t.ZonesVisited = append(t.ZonesVisited, z)
}
