package core

import (
	"github.com/vovakirdan/skyoffice-server/internal/analytics"
	"github.com/vovakirdan/skyoffice-server/internal/media"
	"github.com/vovakirdan/skyoffice-server/internal/office"
)

func handleUpdatePlayer(r *Room, m *member, cmd *Command) {
	p := m.player
	p.Move(cmd.X, cmd.Y, cmd.Anim)

	mv := p.Tracking.Observe(r.now(), cmd.X, cmd.Y, cmd.Anim)
	position := map[string]float64{"x": cmd.X, "y": cmd.Y}

	if mv.Sample {
		r.logEvent(m, analytics.MovementSample, analytics.Metadata{
			"position":  position,
			"animation": cmd.Anim,
			"zone":      p.Tracking.CurrentZone,
		})
	}
	if mv.ZoneChanged {
		if mv.FromZone != "" {
			r.logEvent(m, analytics.ZoneExit, analytics.Metadata{"zone": mv.FromZone, "toZone": mv.ToZone})
		}
		r.logEvent(m, analytics.ZoneEnter, analytics.Metadata{"zone": mv.ToZone, "fromZone": mv.FromZone})
	}
	switch {
	case mv.IdleStarted:
		r.logEvent(m, analytics.IdleStart, analytics.Metadata{"position": position, "animation": cmd.Anim})
	case mv.IdleEnded:
		r.logEvent(m, analytics.IdleEnd, analytics.Metadata{
			"position":  position,
			"animation": cmd.Anim,
			"duration":  mv.IdleDuration.Seconds(),
		})
	}
}

func handleUpdatePlayerName(_ *Room, m *member, cmd *Command) {
	if name := office.NormalizeName(cmd.Name); name != "" {
		m.player.SetName(name)
	}
}

func handleReadyToConnect(r *Room, m *member, _ *Command) {
	m.player.SetReadyToConnect(true)
	r.sendMediaJoinInfo(m, media.RoomName(r.ID), "")
}

func handleVideoConnected(_ *Room, m *member, _ *Command) {
	m.player.SetVideoConnected(true)
}

func (r *Room) sendMediaJoinInfo(m *member, roomName, computerID string) {
	if r.svc.Media == nil {
		return
	}
	ctx, cancel := r.storeContext()
	defer cancel()

	info, err := r.svc.Media.GenerateJoinInfo(ctx, roomName, m.client.ID, m.player.Name())
	if err != nil {
		r.log.Warn().Err(err).Str("session_id", m.client.ID).Msg("failed to generate media credentials")
		return
	}
	m.client.send(&Event{Kind: EventMediaJoinInfo, Media: info, ComputerID: computerID})
}
