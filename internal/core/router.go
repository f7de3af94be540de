package core

// HandlerFunc handles one command on the room loop.
type HandlerFunc func(r *Room, m *member, cmd *Command)

// MessageRouter maps command kinds to handlers.
type MessageRouter struct {
	handlers map[CommandKind]HandlerFunc
}

// NewMessageRouter returns an empty router.
func NewMessageRouter() *MessageRouter {
	return &MessageRouter{handlers: make(map[CommandKind]HandlerFunc)}
}

// Handle registers fn for kind, replacing any previous handler.
func (mr *MessageRouter) Handle(kind CommandKind, fn HandlerFunc) {
	mr.handlers[kind] = fn
}

// Route runs the handler for cmd. It returns false if none is registered.
func (mr *MessageRouter) Route(r *Room, m *member, cmd *Command) bool {
	fn, ok := mr.handlers[cmd.Kind]
	if !ok {
		return false
	}
	fn(r, m, cmd)
	return true
}

var defaultRouter = newDefaultRouter()

func newDefaultRouter() *MessageRouter {
	mr := NewMessageRouter()

	mr.Handle(CommandUpdatePlayer, handleUpdatePlayer)
	mr.Handle(CommandUpdatePlayerName, handleUpdatePlayerName)
	mr.Handle(CommandReadyToConnect, handleReadyToConnect)
	mr.Handle(CommandVideoConnected, handleVideoConnected)

	mr.Handle(CommandConnectWhiteboard, handleConnectWhiteboard)
	mr.Handle(CommandDisconnectWhiteboard, handleDisconnectWhiteboard)
	mr.Handle(CommandConnectComputer, handleConnectComputer)
	mr.Handle(CommandDisconnectComputer, handleDisconnectComputer)
	mr.Handle(CommandStopScreenShare, handleStopScreenShare)
	mr.Handle(CommandDisconnectStream, handleDisconnectStream)

	mr.Handle(CommandInteractNPC, handleInteractNPC)
	mr.Handle(CommandStartNPCConversation, handleStartNPCConversation)
	mr.Handle(CommandSendNPCMessage, handleSendNPCMessage)
	mr.Handle(CommandEndNPCConversation, handleEndNPCConversation)

	return mr
}
