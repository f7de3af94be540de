package office

import (
	"github.com/vovakirdan/skyoffice-server/internal/points"
	"github.com/vovakirdan/skyoffice-server/internal/synced"
)

const (
	// SpawnX and SpawnY are where players without saved progress appear.
	SpawnX = 705
	SpawnY = 500

	DefaultAvatar = "adam"
)

var playerDescriptor = synced.NewDescriptor("Player",
	synced.String(PlayerNameField),
	synced.Number("x"),
	synced.Number("y"),
	synced.String("anim"),
	synced.Bool("readyToConnect"),
	synced.Bool("videoConnected"),
	synced.String("userId"),
	synced.Int("points"),
)

// PlayerNameField is the replicated name of a player, as reported by
// OnChange.
const PlayerNameField = "name"

const (
	playerName = iota
	playerX
	playerY
	playerAnim
	playerReadyToConnect
	playerVideoConnected
	playerUserID
	playerPoints
)

// Player is one connected avatar. The embedded object holds the replicated
// fields; FlowType and Tracking stay on the server.
type Player struct {
	*synced.Object

	FlowType points.FlowType
	Tracking Tracking
}

// NewPlayer returns a player at the spawn point with the default avatar.
func NewPlayer() *Player {
	p := &Player{
		Object:   synced.NewObject(playerDescriptor),
		FlowType: points.FlowSystem,
	}
	p.Apply(
		synced.F(playerX, float64(SpawnX)),
		synced.F(playerY, float64(SpawnY)),
		synced.F(playerAnim, IdleAnim(DefaultAvatar)),
	)
	return p
}

// IdleAnim returns the idle-facing-down animation key for an avatar.
func IdleAnim(avatar string) string {
	if avatar == "" {
		avatar = DefaultAvatar
	}
	return avatar + "_idle_down"
}

func (p *Player) Name() string { return p.Str(playerName) }
func (p *Player) X() float64 { return p.Num(playerX) }
func (p *Player) Y() float64 { return p.Num(playerY) }
func (p *Player) Anim() string { return p.Str(playerAnim) }
func (p *Player) ReadyToConnect() bool { return p.Bool(playerReadyToConnect) }
func (p *Player) VideoConnected() bool { return p.Bool(playerVideoConnected) }
func (p *Player) UserID() string { return p.Str(playerUserID) }
func (p *Player) Points() int64 { return p.Int(playerPoints) }

func (p *Player) SetName(name string) { p.SetStr(playerName, name) }
func (p *Player) SetReadyToConnect(v bool) { p.SetBool(playerReadyToConnect, v) }
func (p *Player) SetVideoConnected(v bool) { p.SetBool(playerVideoConnected, v) }
func (p *Player) SetUserID(id string) { p.SetStr(playerUserID, id) }
func (p *Player) SetPoints(total int64) { p.SetInt(playerPoints, max(total, 0)) }

// Move updates position and animation as one change.
func (p *Player) Move(x, y float64, anim string) {
	p.Apply(
		synced.F(playerX, x),
		synced.F(playerY, y),
		synced.F(playerAnim, anim),
	)
}
