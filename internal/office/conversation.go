package office

import (
	"time"

	"github.com/vovakirdan/skyoffice-server/internal/synced"
)

var messageDescriptor = synced.NewDescriptor("Message",
	synced.String("author"),
	synced.String("content"),
	synced.Bool("isNpc"),
	synced.Int("createdAt"),
)

const (
	messageAuthor = iota
	messageContent
	messageIsNPC
	messageCreatedAt
)

// Message is one line of a conversation.
type Message struct {
	*synced.Object
}

func NewMessage(author, content string, isNPC bool, at time.Time) *Message {
	m := &Message{Object: synced.NewObject(messageDescriptor)}
	m.Apply(
		synced.F(messageAuthor, author),
		synced.F(messageContent, content),
		synced.F(messageIsNPC, isNPC),
		synced.F(messageCreatedAt, at.UnixMilli()),
	)
	return m
}

func (m *Message) Author() string { return m.Str(messageAuthor) }
func (m *Message) Content() string { return m.Str(messageContent) }
func (m *Message) IsNPC() bool { return m.Bool(messageIsNPC) }

func (m *Message) CreatedAt() time.Time {
	return time.UnixMilli(m.Int(messageCreatedAt))
}

var conversationDescriptor = synced.NewDescriptor("Conversation",
	synced.Child("messages"),
)

const conversationMessages = 0

// Conversation is the message history between one player session and one
// NPC. Messages are only ever appended.
type Conversation struct {
	*synced.Object

	// RecordID is the persisted conversation id, empty for guests or when
	// persistence is off.
	RecordID string
	// Active is set between START and END of an interaction.
	Active bool
}

func NewConversation() *Conversation {
	c := &Conversation{Object: synced.NewObject(conversationDescriptor)}
	c.SetChild(conversationMessages, synced.NewArray[*Message]())
	return c
}

func (c *Conversation) Messages() *synced.Array[*Message] {
	return c.ChildAt(conversationMessages).(*synced.Array[*Message])
}

func (c *Conversation) Append(m *Message) {
	c.Messages().Push(m)
}

// History returns the messages in insertion order.
func (c *Conversation) History() []*Message {
	return c.Messages().Items()
}
