package http

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/vovakirdan/skyoffice-server/internal/core"
	"github.com/vovakirdan/skyoffice-server/internal/proto"
)

func badRequest(msg string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeBadRequest, Msg: msg}
}

// decodeData unmarshals a payload. Missing data decodes to the zero value.
func decodeData(raw json.RawMessage, v any) *proto.Error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return badRequest("malformed data")
	}
	return nil
}

func parseJoin(inbound proto.Inbound) (core.JoinRequest, *proto.Error) {
	if inbound.Type != proto.TypeJoin {
		return core.JoinRequest{}, badRequest("first message must be " + proto.TypeJoin)
	}
	var join proto.JoinData
	if perr := decodeData(inbound.Data, &join); perr != nil {
		return core.JoinRequest{}, perr
	}
	return core.JoinRequest{
		RoomID:       join.RoomID,
		Password:     join.Password,
		Username:     join.Username,
		UserPassword: join.UserPassword,
		SessionToken: join.SessionToken,
	}, nil
}

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.TypeJoin:
		return nil, badRequest("already joined")

	case proto.TypeUpdatePlayer:
		var d proto.UpdatePlayerData
		if perr := decodeData(inbound.Data, &d); perr != nil {
			return nil, perr
		}
		return &core.Command{Kind: core.CommandUpdatePlayer, X: d.X, Y: d.Y, Anim: d.Anim}, nil

	case proto.TypeUpdatePlayerName:
		var d proto.UpdatePlayerNameData
		if perr := decodeData(inbound.Data, &d); perr != nil {
			return nil, perr
		}
		return &core.Command{Kind: core.CommandUpdatePlayerName, Name: d.Name}, nil

	case proto.TypeConnectToWhiteboard, proto.TypeDisconnectFromWhiteboard:
		var d proto.WhiteboardData
		if perr := decodeData(inbound.Data, &d); perr != nil {
			return nil, perr
		}
		kind := core.CommandConnectWhiteboard
		if inbound.Type == proto.TypeDisconnectFromWhiteboard {
			kind = core.CommandDisconnectWhiteboard
		}
		return &core.Command{Kind: kind, TargetID: d.WhiteboardID}, nil

	case proto.TypeConnectToComputer, proto.TypeDisconnectFromComputer:
		var d proto.ComputerData
		if perr := decodeData(inbound.Data, &d); perr != nil {
			return nil, perr
		}
		kind := core.CommandConnectComputer
		if inbound.Type == proto.TypeDisconnectFromComputer {
			kind = core.CommandDisconnectComputer
		}
		return &core.Command{Kind: kind, TargetID: d.ComputerID}, nil

	case proto.TypeStopScreenShare:
		var d proto.StopScreenShareData
		if perr := decodeData(inbound.Data, &d); perr != nil {
			return nil, perr
		}
		return &core.Command{Kind: core.CommandStopScreenShare, TargetID: d.ComputerID}, nil

	case proto.TypeDisconnectStream:
		var d proto.DisconnectStreamData
		if perr := decodeData(inbound.Data, &d); perr != nil {
			return nil, perr
		}
		return &core.Command{Kind: core.CommandDisconnectStream, TargetID: d.ClientID}, nil

	case proto.TypeInteractWithNPC, proto.TypeStartNPCConversation, proto.TypeEndNPCConversation:
		var d proto.NPCData
		if perr := decodeData(inbound.Data, &d); perr != nil {
			return nil, perr
		}
		kind := map[string]core.CommandKind{
			proto.TypeInteractWithNPC:      core.CommandInteractNPC,
			proto.TypeStartNPCConversation: core.CommandStartNPCConversation,
			proto.TypeEndNPCConversation:   core.CommandEndNPCConversation,
		}[inbound.Type]
		return &core.Command{Kind: kind, TargetID: d.NPCID}, nil

	case proto.TypeSendNPCMessage:
		var d proto.NPCMessageData
		if perr := decodeData(inbound.Data, &d); perr != nil {
			return nil, perr
		}
		content := strings.TrimSpace(d.Content)
		if content == "" {
			return nil, badRequest("message is empty")
		}
		if utf8.RuneCountInString(content) > core.MaxNPCMessageLength {
			return nil, badRequest("message is too long")
		}
		return &core.Command{Kind: core.CommandSendNPCMessage, TargetID: d.NPCID, Content: content}, nil

	case proto.TypeReadyToConnect:
		return &core.Command{Kind: core.CommandReadyToConnect}, nil

	case proto.TypeVideoConnected:
		return &core.Command{Kind: core.CommandVideoConnected}, nil

	default:
		return nil, badRequest("unknown message type")
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventRoomState:
		return proto.Outbound{Type: proto.TypeRoomState, Data: proto.RoomState{Seq: event.Seq, State: event.State}}

	case core.EventRoomPatch:
		return proto.Outbound{Type: proto.TypeRoomPatch, Data: proto.RoomPatch{Seq: event.Seq, Ops: event.Ops}}

	case core.EventRoomData:
		return proto.Outbound{Type: proto.TypeSendRoomData, Data: proto.RoomData{
			ID:          event.Room.ID,
			Name:        event.Room.Name,
			Description: event.Room.Description,
			SessionID:   event.ClientID,
		}}

	case core.EventPointsUpdated:
		return proto.Outbound{Type: proto.TypePointsUpdated, Data: proto.PointsUpdated{
			PointsEarned: event.Points.PointsEarned,
			NewTotal:     event.Points.NewTotal,
			Reason:       event.Points.Reason,
			AwardedBy:    event.Points.AwardedBy,
		}}

	case core.EventNPCInteraction:
		return proto.Outbound{Type: proto.TypeInteractWithNPC, Data: proto.InteractWithNPC{
			NPCID:   event.NPCID,
			Message: event.Text,
		}}

	case core.EventNPCConversation:
		messages := make([]proto.ChatMessage, 0, len(event.Messages))
		for _, m := range event.Messages {
			messages = append(messages, proto.ChatMessage{
				Author:    m.Author,
				Content:   m.Content,
				IsNPC:     m.IsNPC,
				CreatedAt: m.CreatedAt.UnixMilli(),
			})
		}
		return proto.Outbound{Type: proto.TypeStartNPCConversation, Data: proto.NPCConversation{
			NPCID:    event.NPCID,
			Success:  true,
			Messages: messages,
		}}

	case core.EventSessionToken:
		st := proto.SessionToken{
			Token:     event.Session.Token,
			ExpiresAt: event.Session.ExpiresAt.UnixMilli(),
		}
		if event.Session.User != nil {
			st.Username = event.Session.User.Username
		}
		return proto.Outbound{Type: proto.TypeSessionToken, Data: st}

	case core.EventMediaJoinInfo:
		return proto.Outbound{Type: proto.TypeMediaJoinInfo, Data: proto.MediaJoinInfo{
			URL:        event.Media.URL,
			Token:      event.Media.Token,
			RoomName:   event.Media.RoomName,
			Identity:   event.Media.Identity,
			ComputerID: event.ComputerID,
		}}

	case core.EventStopScreenShare:
		return proto.Outbound{Type: proto.TypeStopScreenShare, Data: proto.StopScreenShareData{
			ComputerID: event.ComputerID,
			ClientID:   event.ClientID,
		}}

	case core.EventDisconnectStream:
		return proto.Outbound{Type: proto.TypeDisconnectStream, Data: proto.DisconnectStreamData{ClientID: event.ClientID}}

	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.TypeError, Data: proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{Type: proto.TypeError, Data: proto.Error{Code: event.Error.Code, Msg: event.Error.Message}}

	default:
		return proto.Outbound{Type: proto.TypeError, Data: proto.Error{Code: "unknown", Msg: "unsupported event"}}
	}
}

func errorOutbound(err *proto.Error) proto.Outbound {
	return proto.Outbound{Type: proto.TypeError, Data: *err}
}
