package core

import (
	"context"
	"errors"
	"strconv"

	"github.com/vovakirdan/skyoffice-server/internal/ai"
	"github.com/vovakirdan/skyoffice-server/internal/analytics"
	"github.com/vovakirdan/skyoffice-server/internal/office"
	"github.com/vovakirdan/skyoffice-server/internal/points"
	"github.com/vovakirdan/skyoffice-server/internal/store"
)

const (
	// NPCWelcome answers INTERACT_WITH_NPC.
	NPCWelcome = "Hello! Welcome to SkyOffice!"
	// NPCFallback replaces an NPC reply that could not be generated.
	NPCFallback = "I apologize, I'm having a bit of trouble formulating my thoughts right now. Could you please try asking again?"
	// MaxNPCMessageLength bounds player messages to NPCs, in runes.
	MaxNPCMessageLength = 1000
	// SystemAwarder is the awardedBy value for awards not announced by an NPC.
	SystemAwarder = "SYSTEM"
)

func handleInteractNPC(r *Room, m *member, cmd *Command) {
	npc, ok := r.state.NPC(cmd.TargetID)
	if !ok {
		return
	}
	m.client.send(&Event{Kind: EventNPCInteraction, NPCID: npc.ID(), Text: NPCWelcome})
	r.logEvent(m, analytics.NPCApproach, analytics.Metadata{"npcId": npc.ID()})
}

func handleStartNPCConversation(r *Room, m *member, cmd *Command) {
	npc, ok := r.state.NPC(cmd.TargetID)
	if !ok {
		return
	}
	conv, created := npc.OpenConversation(m.client.ID)
	if created {
		restored := r.attachRecord(m, npc, conv, true)
		if !restored && npc.Greeting != "" {
			r.appendMessage(conv, office.NewMessage(npc.Name(), npc.Greeting, true, r.now()))
		}
	}

	if !conv.Active {
		conv.Active = true
		if m.user != nil {
			ctx, cancel := r.storeContext()
			if r.svc.Users != nil {
				if err := r.svc.Users.RecordNPCInteraction(ctx, m.user.ID); err != nil {
					r.log.Warn().Err(err).Str("session_id", m.client.ID).Msg("failed to count npc interaction")
				}
			}
			cancel()
			if r.svc.Events != nil {
				r.svc.Events.StartInteraction(m.user.ID, m.client.ID, analytics.TargetNPC, npc.ID(), analytics.Metadata{
					"npcName":        npc.Name(),
					"conversationId": conv.RecordID,
				})
			}
		}
	}

	history := conv.History()
	lines := make([]ChatLine, 0, len(history))
	for _, msg := range history {
		lines = append(lines, ChatLine{
			Author:    msg.Author(),
			Content:   msg.Content(),
			IsNPC:     msg.IsNPC(),
			CreatedAt: msg.CreatedAt(),
		})
	}
	m.client.send(&Event{Kind: EventNPCConversation, NPCID: npc.ID(), Messages: lines})
}

func handleEndNPCConversation(r *Room, m *member, cmd *Command) {
	npc, ok := r.state.NPC(cmd.TargetID)
	if !ok {
		return
	}
	conv, ok := npc.Conversation(m.client.ID)
	if !ok || !conv.Active {
		return
	}
	// the history stays for the lifetime of the room
	conv.Active = false
	if r.svc.Events != nil {
		ctx, cancel := r.storeContext()
		r.svc.Events.EndInteraction(ctx, m.client.ID, analytics.TargetNPC, npc.ID())
		cancel()
	}
}

func handleSendNPCMessage(r *Room, m *member, cmd *Command) {
	npc, ok := r.state.NPC(cmd.TargetID)
	if !ok {
		return
	}
	conv, created := npc.OpenConversation(m.client.ID)
	if created {
		r.attachRecord(m, npc, conv, false)
	}

	r.appendMessage(conv, office.NewMessage(m.player.Name(), cmd.Content, false, r.now()))
	r.logEvent(m, analytics.NPCMessageSent, analytics.Metadata{
		"npcId":          npc.ID(),
		"conversationId": conv.RecordID,
		"messageLength":  len([]rune(cmd.Content)),
	})

	if !npc.Chat || r.svc.AI == nil {
		return
	}
	r.askNPC(m, npc, conv, cmd.Content)
}

// askNPC gets the NPC's answer to question. The room takes no other message
// until the answer, or the fallback, is in the conversation.
func (r *Room) askNPC(m *member, npc *office.NPC, conv *office.Conversation, question string) {
	history := conv.History()
	turns := make([]ai.Turn, 0, len(history))
	for _, msg := range history {
		turns = append(turns, ai.Turn{Author: msg.Author(), Content: msg.Content(), IsNPC: msg.IsNPC()})
	}
	npcName, playerName := npc.Name(), m.player.Name()

	r.await(r.cfg.AITimeout, func(ctx context.Context) func() {
		reply, err := r.svc.AI.Respond(ctx, turns, npcName, playerName)
		return func() { r.answerNPC(m, npc, conv, question, reply, err) }
	})
}

func (r *Room) answerNPC(m *member, npc *office.NPC, conv *office.Conversation, question string, reply *ai.Reply, err error) {
	if err != nil {
		r.log.Warn().Err(err).Str("session_id", m.client.ID).Str("npc_id", npc.ID()).Msg("npc reply failed")
		r.appendMessage(conv, office.NewMessage(npc.Name(), NPCFallback, true, r.now()))
		return
	}

	r.appendMessage(conv, office.NewMessage(npc.Name(), reply.Response, true, r.now()))
	r.logEvent(m, analytics.NPCMessageReceived, analytics.Metadata{
		"npcId":         npc.ID(),
		"messageLength": len([]rune(reply.Response)),
		"meaningful":    reply.IsMeaningfulQuestion,
	})
	if reply.IsMeaningfulQuestion {
		r.award(m, npc, conv, points.MeaningfulQuestion, points.Metadata{
			TargetID:  npc.ID(),
			SessionID: m.client.ID,
			Question:  question,
		})
	}
}

// attachRecord links conv to a persisted conversation. With resume set the
// user's latest conversation with npc is reopened and its messages copied
// in; it reports whether any were.
func (r *Room) attachRecord(m *member, npc *office.NPC, conv *office.Conversation, resume bool) bool {
	if m.user == nil || r.svc.Conversations == nil {
		return false
	}
	ctx, cancel := r.storeContext()
	defer cancel()

	if resume {
		rec, err := r.svc.Conversations.LatestConversation(ctx, m.user.ID, npc.ID())
		switch {
		case err == nil:
			conv.RecordID = rec.ID
			for _, msg := range rec.Messages {
				conv.Append(office.NewMessage(msg.Author, msg.Content, msg.IsNPC, msg.CreatedAt))
			}
			return len(rec.Messages) > 0
		case !errors.Is(err, store.ErrNotFound):
			r.log.Warn().Err(err).Str("session_id", m.client.ID).Msg("failed to load conversation")
			return false
		}
	}

	rec, err := r.svc.Conversations.CreateConversation(ctx, m.user.ID, npc.ID())
	if err != nil {
		r.log.Warn().Err(err).Str("session_id", m.client.ID).Msg("failed to create conversation")
		return false
	}
	conv.RecordID = rec.ID
	return false
}

// appendMessage adds msg to conv and persists it when conv has a record.
func (r *Room) appendMessage(conv *office.Conversation, msg *office.Message) {
	conv.Append(msg)
	if conv.RecordID == "" || r.svc.Conversations == nil {
		return
	}
	ctx, cancel := r.storeContext()
	defer cancel()
	err := r.svc.Conversations.AppendConversationMessage(ctx, &store.ConversationMessage{
		ConversationID: conv.RecordID,
		Author:         msg.Author(),
		Content:        msg.Content(),
		IsNPC:          msg.IsNPC(),
		CreatedAt:      msg.CreatedAt(),
	})
	if err != nil {
		r.log.Warn().Err(err).Str("conversation_id", conv.RecordID).Msg("failed to persist message")
	}
}

// award grants t to the member and announces it.
func (r *Room) award(m *member, npc *office.NPC, conv *office.Conversation, t points.Type, md points.Metadata) {
	if m.user == nil || r.svc.Points == nil {
		return
	}
	ctx, cancel := r.storeContext()
	a, err := r.svc.Points.Award(ctx, m.user.ID, t, md)
	cancel()
	if err != nil {
		ev := r.log.Warn()
		if isCooldown(err) {
			ev = r.log.Debug()
		}
		ev.Err(err).Str("session_id", m.client.ID).Str("type", string(t)).Msg("no points awarded")
		return
	}

	m.player.SetPoints(a.NewTotal)
	m.user.TotalPoints = a.NewTotal

	awardedBy := SystemAwarder
	if m.player.FlowType == points.FlowNPC && npc != nil {
		awardedBy = npc.Name()
		text, err := points.RenderAwardMessage(npc.AwardMessage, points.MessageData{
			Points:   a.PointsEarned,
			NewTotal: a.NewTotal,
			Reason:   a.Reason,
			Player:   m.player.Name(),
			NPC:      npc.Name(),
		})
		if err != nil {
			r.log.Warn().Err(err).Str("npc_id", npc.ID()).Msg("bad award template")
		} else if conv != nil {
			r.appendMessage(conv, office.NewMessage(npc.Name(), text, true, r.now()))
		}
	}

	m.client.send(&Event{Kind: EventPointsUpdated, Points: &PointsAward{
		PointsEarned: a.PointsEarned,
		NewTotal:     a.NewTotal,
		Reason:       a.Reason,
		AwardedBy:    awardedBy,
	}})
	r.log.Info().
		Str("session_id", m.client.ID).
		Str("user_id", strconv.FormatInt(m.user.ID, 10)).
		Int64("points", a.PointsEarned).
		Str("awarded_by", awardedBy).
		Msg("points awarded")
}
