package office

import (
	"strconv"

	"github.com/vovakirdan/skyoffice-server/internal/synced"
)

var stateDescriptor = synced.NewDescriptor("OfficeState",
	synced.Child("players"),
	synced.Child("npcs"),
	synced.Child("computers"),
	synced.Child("whiteboards"),
)

const (
	statePlayers = iota
	stateNPCs
	stateComputers
	stateWhiteboards
)

// Layout is the fixed furniture of a new room.
type Layout struct {
	NPCs        []NPCConfig
	Computers   int
	Whiteboards int
}

// DefaultLayout matches the stock office map.
func DefaultLayout() Layout {
	return Layout{
		NPCs:        DefaultNPCs(),
		Computers:   5,
		Whiteboards: 3,
	}
}

// State is the replicated root of one room.
type State struct {
	*synced.Object
}

// NewState builds a room state, reserving one id per whiteboard from ids.
func NewState(layout Layout, ids *IDPool) *State {
	s := &State{Object: synced.NewObject(stateDescriptor)}
	s.Apply(
		synced.F(statePlayers, synced.NewMap[*Player]()),
		synced.F(stateNPCs, synced.NewMap[*NPC]()),
		synced.F(stateComputers, synced.NewMap[*Computer]()),
		synced.F(stateWhiteboards, synced.NewMap[*Whiteboard]()),
	)
	for _, cfg := range layout.NPCs {
		s.NPCs().Set(cfg.ID, NewNPC(cfg))
	}
	for i := 0; i < layout.Computers; i++ {
		s.Computers().Set(strconv.Itoa(i), NewComputer())
	}
	for i := 0; i < layout.Whiteboards; i++ {
		s.Whiteboards().Set(strconv.Itoa(i), NewWhiteboard(ids.Reserve()))
	}
	return s
}

func (s *State) Players() *synced.Map[*Player] {
	return s.ChildAt(statePlayers).(*synced.Map[*Player])
}

func (s *State) NPCs() *synced.Map[*NPC] {
	return s.ChildAt(stateNPCs).(*synced.Map[*NPC])
}

func (s *State) Computers() *synced.Map[*Computer] {
	return s.ChildAt(stateComputers).(*synced.Map[*Computer])
}

func (s *State) Whiteboards() *synced.Map[*Whiteboard] {
	return s.ChildAt(stateWhiteboards).(*synced.Map[*Whiteboard])
}

func (s *State) Player(sessionID string) (*Player, bool) { return s.Players().Get(sessionID) }
func (s *State) NPC(id string) (*NPC, bool) { return s.NPCs().Get(id) }

// Disconnect removes sessionID from every whiteboard and computer.
func (s *State) Disconnect(sessionID string) {
	s.Whiteboards().Range(func(_ string, w *Whiteboard) bool {
		w.ConnectedUser().Delete(sessionID)
		return true
	})
	s.Computers().Range(func(_ string, c *Computer) bool {
		c.ConnectedUser().Delete(sessionID)
		return true
	})
}

// ReleaseIDs returns the whiteboard ids to the pool.
func (s *State) ReleaseIDs(ids *IDPool) {
	s.Whiteboards().Range(func(_ string, w *Whiteboard) bool {
		ids.Release(w.RoomID())
		return true
	})
}
