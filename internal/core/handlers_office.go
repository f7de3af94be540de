package core

import "github.com/vovakirdan/skyoffice-server/internal/media"

func handleConnectWhiteboard(r *Room, m *member, cmd *Command) {
	if wb, ok := r.state.Whiteboards().Get(cmd.TargetID); ok {
		wb.ConnectedUser().Add(m.client.ID)
	}
}

func handleDisconnectWhiteboard(r *Room, m *member, cmd *Command) {
	if wb, ok := r.state.Whiteboards().Get(cmd.TargetID); ok {
		wb.ConnectedUser().Delete(m.client.ID)
	}
}

func handleConnectComputer(r *Room, m *member, cmd *Command) {
	comp, ok := r.state.Computers().Get(cmd.TargetID)
	if !ok {
		return
	}
	comp.ConnectedUser().Add(m.client.ID)
	r.sendMediaJoinInfo(m, media.ComputerRoomName(r.ID, cmd.TargetID), cmd.TargetID)
}

func handleDisconnectComputer(r *Room, m *member, cmd *Command) {
	if comp, ok := r.state.Computers().Get(cmd.TargetID); ok {
		comp.ConnectedUser().Delete(m.client.ID)
	}
}

// handleStopScreenShare tells everyone else at the computer that the sender
// stopped sharing.
func handleStopScreenShare(r *Room, m *member, cmd *Command) {
	comp, ok := r.state.Computers().Get(cmd.TargetID)
	if !ok {
		return
	}
	for _, id := range comp.ConnectedUser().Values() {
		if id == m.client.ID {
			continue
		}
		if other, ok := r.members[id]; ok {
			other.client.send(&Event{Kind: EventStopScreenShare, ComputerID: cmd.TargetID, ClientID: m.client.ID})
		}
	}
}

func handleDisconnectStream(r *Room, m *member, cmd *Command) {
	if target, ok := r.members[cmd.TargetID]; ok && target != m {
		target.client.send(&Event{Kind: EventDisconnectStream, ClientID: m.client.ID})
	}
}
