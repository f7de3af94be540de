package http

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/skyoffice-server/internal/core"
	"github.com/vovakirdan/skyoffice-server/internal/proto"
)

func inbound(t *testing.T, msgType string, data any) proto.Inbound {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return proto.Inbound{Type: msgType, Data: raw}
}

func TestInboundToCommand(t *testing.T) {
	cmd, perr := inboundToCommand(inbound(t, proto.TypeDisconnectFromWhiteboard, proto.WhiteboardData{WhiteboardID: "2"}))
	require.Nil(t, perr)
	assert.Equal(t, core.CommandDisconnectWhiteboard, cmd.Kind)
	assert.Equal(t, "2", cmd.TargetID)

	cmd, perr = inboundToCommand(inbound(t, proto.TypeEndNPCConversation, proto.NPCData{NPCID: "guide"}))
	require.Nil(t, perr)
	assert.Equal(t, core.CommandEndNPCConversation, cmd.Kind)

	cmd, perr = inboundToCommand(proto.Inbound{Type: proto.TypeReadyToConnect})
	require.Nil(t, perr)
	assert.Equal(t, core.CommandReadyToConnect, cmd.Kind)

	cmd, perr = inboundToCommand(inbound(t, proto.TypeSendNPCMessage, proto.NPCMessageData{NPCID: "guide", Content: "  hi  "}))
	require.Nil(t, perr)
	assert.Equal(t, "hi", cmd.Content)
}

func TestInboundToCommandRejects(t *testing.T) {
	cases := []proto.Inbound{
		inbound(t, proto.TypeJoin, proto.JoinData{}),
		inbound(t, proto.TypeSendNPCMessage, proto.NPCMessageData{NPCID: "guide"}),
		inbound(t, proto.TypeSendNPCMessage, proto.NPCMessageData{NPCID: "guide", Content: strings.Repeat("é", core.MaxNPCMessageLength+1)}),
		{Type: proto.TypeUpdatePlayer, Data: json.RawMessage(`{"x":"left"}`)},
		{Type: "DANCE"},
	}
	for _, in := range cases {
		cmd, perr := inboundToCommand(in)
		assert.Nil(t, cmd, in.Type)
		require.NotNil(t, perr, in.Type)
		assert.Equal(t, core.ErrCodeBadRequest, perr.Code)
	}

	// exactly the limit is fine
	_, perr := inboundToCommand(inbound(t, proto.TypeSendNPCMessage, proto.NPCMessageData{NPCID: "guide", Content: strings.Repeat("é", core.MaxNPCMessageLength)}))
	assert.Nil(t, perr)
}

func TestParseJoin(t *testing.T) {
	req, perr := parseJoin(inbound(t, proto.TypeJoin, proto.JoinData{RoomID: "r1", Username: "ann"}))
	require.Nil(t, perr)
	assert.Equal(t, "r1", req.RoomID)
	assert.Equal(t, "ann", req.Username)

	_, perr = parseJoin(proto.Inbound{Type: proto.TypeJoin})
	assert.Nil(t, perr)

	_, perr = parseJoin(inbound(t, proto.TypeUpdatePlayer, proto.UpdatePlayerData{}))
	require.NotNil(t, perr)
}

func TestOutboundFromEventPoints(t *testing.T) {
	out := outboundFromEvent(&core.Event{Kind: core.EventPointsUpdated, Points: &core.PointsAward{
		PointsEarned: 10, NewTotal: 40, Reason: "Asked a meaningful question", AwardedBy: "SYSTEM",
	}})
	assert.Equal(t, proto.TypePointsUpdated, out.Type)

	raw, err := json.Marshal(out.Data)
	require.NoError(t, err)
	p, err := proto.ParsePointsUpdated(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(40), p.NewTotal)
}
