package http

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vovakirdan/huddle/internal/core"
	"github.com/vovakirdan/huddle/internal/proto"
	"github.com/vovakirdan/huddle/internal/store"
)

func badRequest(op, msg string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeBadRequest, Msg: msg, Op: op}
}

// inboundToCommand decodes an envelope. A *proto.Error is a recoverable
// client mistake; a non-nil error means the payload was not valid JSON.
func inboundToCommand(inbound proto.Inbound) (core.Command, *proto.Error, error) {
	decode := func(v any) error {
		if len(inbound.Data) == 0 {
			return nil
		}
		if err := json.Unmarshal(inbound.Data, v); err != nil {
			return fmt.Errorf("decode %s: %w", inbound.Type, err)
		}
		return nil
	}

	switch inbound.Type {
	case proto.InboundTypeRegister:
		var data proto.RegisterData
		if err := decode(&data); err != nil {
			return nil, nil, err
		}
		if data.Protocol != 0 && data.Protocol != proto.ProtocolVersion {
			return nil, &proto.Error{
				Code: core.ErrCodeUnsupportedVersion,
				Msg:  fmt.Sprintf("unsupported protocol version %d, server speaks %d", data.Protocol, proto.ProtocolVersion),
				Op:   inbound.Type,
			}, nil
		}
		if data.Token == "" {
			return nil, badRequest(inbound.Type, "token is required"), nil
		}
		return &core.RegisterCommand{Token: data.Token}, nil, nil

	case proto.InboundTypeJoinRoom, proto.InboundTypeLeaveRoom, proto.InboundTypeTypingStart, proto.InboundTypeTypingStop:
		var data proto.RoomData
		if err := decode(&data); err != nil {
			return nil, nil, err
		}
		if data.RoomID == "" {
			return nil, badRequest(inbound.Type, "roomId is required"), nil
		}
		switch inbound.Type {
		case proto.InboundTypeJoinRoom:
			return &core.JoinRoomCommand{Room: data.RoomID}, nil, nil
		case proto.InboundTypeLeaveRoom:
			return &core.LeaveRoomCommand{Room: data.RoomID}, nil, nil
		default:
			return &core.TypingCommand{Room: data.RoomID, Typing: inbound.Type == proto.InboundTypeTypingStart}, nil, nil
		}

	case proto.InboundTypeSendMessage:
		var data proto.SendMessageData
		if err := decode(&data); err != nil {
			return nil, nil, err
		}
		if data.RoomID == "" {
			return nil, badRequest(inbound.Type, "roomId is required"), nil
		}
		return &core.SendMessageCommand{
			Room:    data.RoomID,
			Content: data.Content,
			Type:    data.Type,
			ReplyTo: data.ReplyToID,
		}, nil, nil

	case proto.InboundTypeEditMessage, proto.InboundTypeDeleteMessage:
		var data proto.MessageRefData
		if err := decode(&data); err != nil {
			return nil, nil, err
		}
		if data.MessageID <= 0 {
			return nil, badRequest(inbound.Type, "messageId is required"), nil
		}
		if inbound.Type == proto.InboundTypeDeleteMessage {
			return &core.DeleteMessageCommand{MessageID: data.MessageID}, nil, nil
		}
		return &core.EditMessageCommand{MessageID: data.MessageID, Content: data.Content}, nil, nil

	case proto.InboundTypeAddReaction, proto.InboundTypeRemoveReaction:
		var data proto.ReactionData
		if err := decode(&data); err != nil {
			return nil, nil, err
		}
		if data.MessageID <= 0 {
			return nil, badRequest(inbound.Type, "messageId is required"), nil
		}
		return &core.ReactionCommand{
			MessageID: data.MessageID,
			Emoji:     data.Emoji,
			Remove:    inbound.Type == proto.InboundTypeRemoveReaction,
		}, nil, nil

	case proto.InboundTypeMarkRead:
		var data proto.MarkReadData
		if err := decode(&data); err != nil {
			return nil, nil, err
		}
		if data.RoomID == "" {
			return nil, badRequest(inbound.Type, "roomId is required"), nil
		}
		return &core.MarkReadCommand{Room: data.RoomID, MessageID: data.MessageID}, nil, nil

	case proto.InboundTypeInitiateCall:
		var data proto.InitiateCallData
		if err := decode(&data); err != nil {
			return nil, nil, err
		}
		if data.RoomID == "" {
			return nil, badRequest(inbound.Type, "roomId is required"), nil
		}
		return &core.InitiateCallCommand{Room: data.RoomID, Kind: core.CallKind(data.Kind)}, nil, nil

	case proto.InboundTypeCallResponse:
		var data proto.CallResponseData
		if err := decode(&data); err != nil {
			return nil, nil, err
		}
		if data.CallID == "" {
			return nil, badRequest(inbound.Type, "callId is required"), nil
		}
		return &core.CallResponseCommand{CallID: data.CallID, Decision: core.Decision(data.Decision)}, nil, nil

	case proto.InboundTypeEndCall:
		var data proto.CallRefData
		if err := decode(&data); err != nil {
			return nil, nil, err
		}
		if data.CallID == "" {
			return nil, badRequest(inbound.Type, "callId is required"), nil
		}
		return &core.EndCallCommand{CallID: data.CallID}, nil, nil

	case proto.InboundTypeRelaySignal:
		var data proto.RelaySignalData
		if err := decode(&data); err != nil {
			return nil, nil, err
		}
		if data.CallID == "" || data.TargetUserID == "" {
			return nil, badRequest(inbound.Type, "callId and targetUserId are required"), nil
		}
		return &core.RelaySignalCommand{CallID: data.CallID, Target: data.TargetUserID, Payload: data.Payload}, nil, nil

	default:
		return nil, badRequest(inbound.Type, "unknown message type"), nil
	}
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func optionalMillis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	v := t.UnixMilli()
	return &v
}

func messageToProto(m store.Message) proto.Message {
	return proto.Message{
		ID:        m.ID,
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		Type:      string(m.Type),
		ReplyToID: m.ReplyToID,
		Metadata:  m.Metadata,
		CreatedAt: millis(m.CreatedAt),
		EditedAt:  optionalMillis(m.EditedAt),
		DeletedAt: optionalMillis(m.DeletedAt),
	}
}

func callToProto(c core.CallSnapshot) proto.Call {
	return proto.Call{
		ID:           c.ID,
		RoomID:       c.RoomID,
		InitiatorID:  c.InitiatorID,
		Kind:         string(c.Kind),
		Status:       string(c.Status),
		Participants: c.Participants,
		Declined:     c.Declined,
		StartedAt:    millis(c.StartedAt),
		AnsweredAt:   optionalMillis(c.AnsweredAt),
		EndedAt:      optionalMillis(c.EndedAt),
		EndReason:    c.EndReason,
		DurationMS:   c.Duration.Milliseconds(),
	}
}

func eventOut(kind core.EventKind, data any) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeEvent, Event: kind.String(), Data: data}
}

// outboundFromEvent renders ev for delivery to client.
func outboundFromEvent(ev core.Event, client *core.Client) proto.Outbound {
	switch ev := ev.(type) {
	case *core.MessageEvent:
		msg := messageToProto(ev.Message)
		msg.Echo = ev.OriginConn == client.ID
		return eventOut(ev.Kind(), msg)
	case *core.StatusEvent:
		status := "offline"
		if ev.Online {
			status = "online"
		}
		return eventOut(ev.Kind(), proto.EventUserStatus{UserID: ev.User, Status: status, At: millis(ev.At)})
	case *core.TypingEvent:
		return eventOut(ev.Kind(), proto.EventUserTyping{UserID: ev.User, RoomID: ev.Room, IsTyping: ev.IsTyping})
	case *core.ReactionEvent:
		return eventOut(ev.Kind(), proto.EventReaction{
			MessageID: ev.Reaction.MessageID,
			RoomID:    ev.Room,
			UserID:    ev.Reaction.UserID,
			Emoji:     ev.Reaction.Emoji,
		})
	case *core.ReadReceiptEvent:
		return eventOut(ev.Kind(), proto.EventReadReceipt{
			RoomID:    ev.Room,
			UserID:    ev.User,
			MessageID: ev.MessageID,
			ReadAt:    millis(ev.ReadAt),
		})
	case *core.RegisteredEvent:
		return eventOut(ev.Kind(), proto.EventRegistered{UserID: ev.User, ConnID: ev.ConnID, Protocol: proto.ProtocolVersion})
	case *core.RoomStateEvent:
		state := proto.EventRoomState{RoomID: ev.Room, Typing: ev.Typing}
		if state.Typing == nil {
			state.Typing = []string{}
		}
		if ev.Call != nil {
			call := callToProto(*ev.Call)
			state.Call = &call
		}
		return eventOut(ev.Kind(), state)
	case *core.CallEvent:
		out := proto.EventCall{
			Call:     callToProto(ev.Call),
			UserID:   ev.User,
			Decision: string(ev.Decision),
		}
		if ev.SystemMessage != nil {
			msg := messageToProto(*ev.SystemMessage)
			out.SystemMessage = &msg
		}
		return eventOut(ev.Kind(), out)
	case *core.CallJoinInfoEvent:
		return eventOut(ev.Kind(), proto.EventCallJoinInfo{
			CallID:   ev.CallID,
			URL:      ev.Info.URL,
			Token:    ev.Info.Token,
			RoomName: ev.Info.RoomName,
			Identity: ev.Info.Identity,
		})
	case *core.SignalEvent:
		return eventOut(ev.Kind(), proto.EventRelaySignal{CallID: ev.CallID, FromUserID: ev.From, Payload: ev.Payload})
	case *core.ErrorEvent:
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: ev.Code, Msg: ev.Message, Op: ev.Op},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown event"}}
	}
}
