package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandUpdatePlayer moves the avatar.
	CommandUpdatePlayer CommandKind = iota
	// CommandUpdatePlayerName renames the avatar.
	CommandUpdatePlayerName
	CommandConnectWhiteboard
	CommandDisconnectWhiteboard
	CommandConnectComputer
	CommandDisconnectComputer
	// CommandStopScreenShare tells the other users of a computer that the
	// sender stopped sharing.
	CommandStopScreenShare
	// CommandDisconnectStream asks one peer to drop the sender's stream.
	CommandDisconnectStream
	CommandInteractNPC
	CommandStartNPCConversation
	CommandSendNPCMessage
	CommandEndNPCConversation
	// CommandReadyToConnect marks the player ready for proximity media.
	CommandReadyToConnect
	CommandVideoConnected
)

var commandNames = [...]string{
	CommandUpdatePlayer:         "UPDATE_PLAYER",
	CommandUpdatePlayerName:     "UPDATE_PLAYER_NAME",
	CommandConnectWhiteboard:    "CONNECT_TO_WHITEBOARD",
	CommandDisconnectWhiteboard: "DISCONNECT_FROM_WHITEBOARD",
	CommandConnectComputer:      "CONNECT_TO_COMPUTER",
	CommandDisconnectComputer:   "DISCONNECT_FROM_COMPUTER",
	CommandStopScreenShare:      "STOP_SCREEN_SHARE",
	CommandDisconnectStream:     "DISCONNECT_STREAM",
	CommandInteractNPC:          "INTERACT_WITH_NPC",
	CommandStartNPCConversation: "START_NPC_CONVERSATION",
	CommandSendNPCMessage:       "SEND_NPC_MESSAGE",
	CommandEndNPCConversation:   "END_NPC_CONVERSATION",
	CommandReadyToConnect:       "READY_TO_CONNECT",
	CommandVideoConnected:       "VIDEO_CONNECTED",
}

func (k CommandKind) String() string {
	if k >= 0 && int(k) < len(commandNames) {
		return commandNames[k]
	}
	return "UNKNOWN"
}

// Command represents an action requested by a client. Only the fields
// relevant to Kind are set.
type Command struct {
	Kind CommandKind

	X, Y float64
	Anim string
	Name string

	// TargetID is the whiteboard, computer, NPC or client the command refers to.
	TargetID string
	Content  string
}
