// Package analytics records behavioral events for learning research.
package analytics

import "strings"

// EventType names a tracked event.
type EventType string

const (
	UserLogin    EventType = "USER_LOGIN"
	UserLogout   EventType = "USER_LOGOUT"
	SessionStart EventType = "SESSION_START"
	SessionEnd   EventType = "SESSION_END"

	NPCApproach          EventType = "NPC_APPROACH"
	NPCConversationStart EventType = "NPC_CONVERSATION_START"
	NPCMessageSent       EventType = "NPC_MESSAGE_SENT"
	NPCMessageReceived   EventType = "NPC_MESSAGE_RECEIVED"
	NPCConversationEnd   EventType = "NPC_CONVERSATION_END"
	NPCAbandon           EventType = "NPC_ABANDON"

	ZoneEnter      EventType = "ZONE_ENTER"
	ZoneExit       EventType = "ZONE_EXIT"
	MovementSample EventType = "MOVEMENT_SAMPLE"
	IdleStart      EventType = "IDLE_START"
	IdleEnd        EventType = "IDLE_END"

	PlayerProximityStart EventType = "PLAYER_PROXIMITY_START"
	PlayerProximityEnd   EventType = "PLAYER_PROXIMITY_END"

	ExplorationPattern EventType = "EXPLORATION_PATTERN"
)

// Category groups event types.
type Category string

const (
	CategoryAuth     Category = "AUTH"
	CategoryNPC      Category = "NPC"
	CategoryMovement Category = "MOVEMENT"
	CategorySocial   Category = "SOCIAL"
	CategoryLearning Category = "LEARNING"
	CategorySystem   Category = "SYSTEM"
)

// CategoryOf derives the category from the event type name, so ad hoc
// types get a sensible category too.
func CategoryOf(t EventType) Category {
	s := string(t)
	switch {
	case strings.Contains(s, "LOGIN"), strings.Contains(s, "LOGOUT"), strings.Contains(s, "SESSION"):
		return CategoryAuth
	case strings.Contains(s, "NPC"):
		return CategoryNPC
	case strings.Contains(s, "MOVEMENT"), strings.Contains(s, "ZONE"), strings.Contains(s, "IDLE"):
		return CategoryMovement
	case strings.Contains(s, "PROXIMITY"):
		return CategorySocial
	case strings.Contains(s, "EXPLORATION"):
		return CategoryLearning
	default:
		return CategorySystem
	}
}

// Target types for interactions.
const (
	TargetNPC    = "NPC"
	TargetPlayer = "PLAYER"
)
