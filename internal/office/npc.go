package office

import (
	"github.com/vovakirdan/skyoffice-server/internal/synced"
)

var npcDescriptor = synced.NewDescriptor("NPC",
	synced.String("id"),
	synced.String("name"),
	synced.Number("x"),
	synced.Number("y"),
	synced.String("texture"),
	synced.String("anim"),
	synced.Child("conversations"),
)

const (
	npcID = iota
	npcName
	npcX
	npcY
	npcTexture
	npcAnim
	npcConversations
)

// NPCConfig describes an NPC spawned at room creation.
type NPCConfig struct {
	ID      string
	Name    string
	X, Y    float64
	Texture string
	Anim    string
	// Greeting is posted when a player first opens a conversation.
	Greeting string
	// AwardMessage is a text/template with sprig functions announcing a
	// point award. It is executed with points.MessageData.
	AwardMessage string
	// Chat enables AI replies.
	Chat bool
}

// DefaultNPCs is the built-in catalog.
func DefaultNPCs() []NPCConfig {
	return []NPCConfig{{
		ID:           "guide",
		Name:         "Prof. Laura",
		X:            400,
		Y:            300,
		Texture:      "nancy",
		Anim:         "nancy_idle_down",
		Greeting:     "Hello! I'm Prof. Laura. How can I help you with your studies today?",
		AwardMessage: "Great question, {{ .Player }}! I'm awarding you {{ .Points }} points. You now have {{ .NewTotal }}.",
		Chat:         true,
	}}
}

// NPC is a fixed non-player character with one conversation per player
// session.
type NPC struct {
	*synced.Object

	Greeting     string
	AwardMessage string
	Chat         bool
}

func NewNPC(cfg NPCConfig) *NPC {
	n := &NPC{
		Object:       synced.NewObject(npcDescriptor),
		Greeting:     cfg.Greeting,
		AwardMessage: cfg.AwardMessage,
		Chat:         cfg.Chat,
	}
	anim := cfg.Anim
	if anim == "" && cfg.Texture != "" {
		anim = IdleAnim(cfg.Texture)
	}
	n.Apply(
		synced.F(npcID, cfg.ID),
		synced.F(npcName, cfg.Name),
		synced.F(npcX, cfg.X),
		synced.F(npcY, cfg.Y),
		synced.F(npcTexture, cfg.Texture),
		synced.F(npcAnim, anim),
		synced.F(npcConversations, synced.NewMap[*Conversation]()),
	)
	return n
}

func (n *NPC) ID() string { return n.Str(npcID) }
func (n *NPC) Name() string { return n.Str(npcName) }
func (n *NPC) Texture() string { return n.Str(npcTexture) }

func (n *NPC) Conversations() *synced.Map[*Conversation] {
	return n.ChildAt(npcConversations).(*synced.Map[*Conversation])
}

func (n *NPC) Conversation(sessionID string) (*Conversation, bool) {
	return n.Conversations().Get(sessionID)
}

// OpenConversation returns the session's conversation, creating it on first
// use.
func (n *NPC) OpenConversation(sessionID string) (c *Conversation, created bool) {
	if c, ok := n.Conversations().Get(sessionID); ok {
		return c, false
	}
	c = NewConversation()
	n.Conversations().Set(sessionID, c)
	return c, true
}
