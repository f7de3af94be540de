// Package points awards points for learning activity and enforces
// per-user cooldowns in front of the persistent ledger.
package points

import "time"

// Type identifies what a user is being rewarded for.
type Type string

const (
	// MeaningfulQuestion is awarded when the AI collaborator classifies a
	// question as meaningful.
	MeaningfulQuestion Type = "MEANINGFUL_QUESTION"
	// NPCConversationStart rewards opening a conversation with an NPC. It is
	// cooled down per NPC.
	NPCConversationStart Type = "NPC_CONVERSATION_START"
)

// FlowType selects how an award is announced to its recipient.
type FlowType string

const (
	// FlowSystem announces awards as coming from the system.
	FlowSystem FlowType = "SYSTEM"
	// FlowNPC lets the NPC involved announce the award in chat.
	FlowNPC FlowType = "NPC"
)

// ParseFlowType returns the flow type named by s, defaulting to FlowSystem.
func ParseFlowType(s string) (FlowType, bool) {
	switch FlowType(s) {
	case FlowSystem, "":
		return FlowSystem, true
	case FlowNPC:
		return FlowNPC, true
	default:
		return FlowSystem, false
	}
}

// Rule configures one award type.
type Rule struct {
	Type        Type
	Points      int64
	Description string
	Cooldown    time.Duration
	// PerTarget scopes the cooldown to Metadata.TargetID.
	PerTarget bool
}

// DefaultRules is the built-in catalog.
var DefaultRules = map[Type]Rule{
	MeaningfulQuestion: {
		Type:        MeaningfulQuestion,
		Points:      10,
		Description: "Asked a meaningful question",
	},
	NPCConversationStart: {
		Type:        NPCConversationStart,
		Points:      10,
		Description: "Started conversation with NPC",
		Cooldown:    time.Minute,
		PerTarget:   true,
	},
}

// Metadata is stored with the ledger row.
type Metadata struct {
	TargetID  string `json:"npcId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Question  string `json:"question,omitempty"`
}

// Award is the outcome of a successful Service.Award call.
type Award struct {
	Type         Type
	PointsEarned int64
	NewTotal     int64
	Reason       string
}
