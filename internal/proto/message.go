// Package proto defines the JSON messages exchanged over the websocket.
package proto

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vovakirdan/skyoffice-server/internal/synced"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Inbound message types.
const (
	TypeJoin                     = "JOIN"
	TypeUpdatePlayer             = "UPDATE_PLAYER"
	TypeUpdatePlayerName         = "UPDATE_PLAYER_NAME"
	TypeConnectToWhiteboard      = "CONNECT_TO_WHITEBOARD"
	TypeDisconnectFromWhiteboard = "DISCONNECT_FROM_WHITEBOARD"
	TypeConnectToComputer        = "CONNECT_TO_COMPUTER"
	TypeDisconnectFromComputer   = "DISCONNECT_FROM_COMPUTER"
	TypeStopScreenShare          = "STOP_SCREEN_SHARE"
	TypeDisconnectStream         = "DISCONNECT_STREAM"
	TypeInteractWithNPC          = "INTERACT_WITH_NPC"
	TypeStartNPCConversation     = "START_NPC_CONVERSATION"
	TypeSendNPCMessage           = "SEND_NPC_MESSAGE"
	TypeEndNPCConversation       = "END_NPC_CONVERSATION"
	TypeReadyToConnect           = "READY_TO_CONNECT"
	TypeVideoConnected           = "VIDEO_CONNECTED"
)

// Outbound-only message types.
const (
	TypeRoomState     = "ROOM_STATE"
	TypeRoomPatch     = "ROOM_PATCH"
	TypeSendRoomData  = "SEND_ROOM_DATA"
	TypePointsUpdated = "POINTS_UPDATED"
	TypeSessionToken  = "SESSION_TOKEN"
	TypeMediaJoinInfo = "MEDIA_JOIN_INFO"
	TypeError         = "ERROR"
)

// JoinData is the first message of every connection.
type JoinData struct {
	RoomID       string `json:"roomId,omitempty"`
	Password     string `json:"password,omitempty"`
	Username     string `json:"username,omitempty"`
	UserPassword string `json:"userPassword,omitempty"`
	SessionToken string `json:"sessionToken,omitempty"`
}

// UpdatePlayerData moves the sender's avatar.
type UpdatePlayerData struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Anim string  `json:"anim"`
}

// UpdatePlayerNameData renames the sender's avatar.
type UpdatePlayerNameData struct {
	Name string `json:"name"`
}

// WhiteboardData references a whiteboard.
type WhiteboardData struct {
	WhiteboardID string `json:"whiteboardId"`
}

// ComputerData references a computer.
type ComputerData struct {
	ComputerID string `json:"computerId"`
}

// StopScreenShareData is relayed to the other users of a computer.
type StopScreenShareData struct {
	ComputerID string `json:"computerId"`
	ClientID   string `json:"clientId,omitempty"`
}

// DisconnectStreamData asks a peer to drop its stream from the sender.
type DisconnectStreamData struct {
	ClientID string `json:"clientId"`
}

// NPCData references an NPC.
type NPCData struct {
	NPCID string `json:"npcId"`
}

// NPCMessageData is a player line addressed to an NPC.
type NPCMessageData struct {
	NPCID   string `json:"npcId"`
	Content string `json:"content"`
}

// RoomState carries a full snapshot.
type RoomState struct {
	Seq   uint64 `json:"seq"`
	State any    `json:"state"`
}

// RoomPatch carries the changes of one tick.
type RoomPatch struct {
	Seq uint64      `json:"seq"`
	Ops []synced.Op `json:"ops"`
}

// RoomData describes the room the client joined. SessionID is the key of
// the client's own player in the state.
type RoomData struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SessionID   string `json:"sessionId"`
}

// InteractWithNPC answers INTERACT_WITH_NPC.
type InteractWithNPC struct {
	NPCID   string `json:"npcId"`
	Message string `json:"message"`
}

// ChatMessage is one conversation line.
type ChatMessage struct {
	Author    string `json:"author"`
	Content   string `json:"content"`
	IsNPC     bool   `json:"isNpc"`
	CreatedAt int64  `json:"createdAt"`
}

// NPCConversation answers START_NPC_CONVERSATION.
type NPCConversation struct {
	NPCID    string        `json:"npcId"`
	Success  bool          `json:"success"`
	Messages []ChatMessage `json:"messages"`
}

// SessionToken is sent after a password login.
type SessionToken struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
	Username  string `json:"username"`
}

// MediaJoinInfo carries credentials for the media backend. ComputerID is
// set for screen sharing rooms.
type MediaJoinInfo struct {
	URL        string `json:"url"`
	Token      string `json:"token"`
	RoomName   string `json:"roomName"`
	Identity   string `json:"identity"`
	ComputerID string `json:"computerId,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// PointsUpdated notifies a player about an award.
type PointsUpdated struct {
	PointsEarned int64  `json:"pointsEarned"`
	NewTotal     int64  `json:"newTotal"`
	Reason       string `json:"reason"`
	AwardedBy    string `json:"awardedBy"`
}

// ErrInvalidPointsUpdate is returned by ParsePointsUpdated.
var ErrInvalidPointsUpdate = errors.New("invalid points update")

// ParsePointsUpdated decodes and validates a POINTS_UPDATED payload.
func ParsePointsUpdated(data []byte) (*PointsUpdated, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPointsUpdate, err)
	}
	for _, field := range []string{"pointsEarned", "newTotal"} {
		v, ok := raw[field]
		if !ok {
			return nil, fmt.Errorf("%w: missing %s", ErrInvalidPointsUpdate, field)
		}
		var n float64
		if string(v) == "null" || json.Unmarshal(v, &n) != nil {
			return nil, fmt.Errorf("%w: %s is not a number", ErrInvalidPointsUpdate, field)
		}
	}
	var p PointsUpdated
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPointsUpdate, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks value ranges.
func (p *PointsUpdated) Validate() error {
	if p.PointsEarned < 0 || p.NewTotal < 0 {
		return fmt.Errorf("%w: negative points", ErrInvalidPointsUpdate)
	}
	if p.AwardedBy == "" {
		return fmt.Errorf("%w: missing awardedBy", ErrInvalidPointsUpdate)
	}
	return nil
}
