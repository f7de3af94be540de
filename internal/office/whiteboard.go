package office

import "github.com/vovakirdan/skyoffice-server/internal/synced"

var whiteboardDescriptor = synced.NewDescriptor("Whiteboard",
	synced.String("roomId"),
	synced.Child("connectedUser"),
)

// Whiteboard is a shared drawing surface. RoomID names the external board
// session and is unique across the process.
type Whiteboard struct {
	*synced.Object
}

func NewWhiteboard(roomID string) *Whiteboard {
	w := &Whiteboard{Object: synced.NewObject(whiteboardDescriptor)}
	w.Apply(synced.F(0, roomID), synced.F(1, synced.NewSet()))
	return w
}

func (w *Whiteboard) RoomID() string { return w.Str(0) }

func (w *Whiteboard) ConnectedUser() *synced.Set { return w.ChildAt(1).(*synced.Set) }

var computerDescriptor = synced.NewDescriptor("Computer",
	synced.Child("connectedUser"),
)

// Computer is a screen-sharing station.
type Computer struct {
	*synced.Object
}

func NewComputer() *Computer {
	c := &Computer{Object: synced.NewObject(computerDescriptor)}
	c.SetChild(0, synced.NewSet())
	return c
}

func (c *Computer) ConnectedUser() *synced.Set { return c.ChildAt(0).(*synced.Set) }
