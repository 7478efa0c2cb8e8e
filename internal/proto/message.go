package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const ProtocolVersion = 1

// Client -> server message types.
const (
	InboundTypeRegister       = "register"
	InboundTypeJoinRoom       = "join_room"
	InboundTypeLeaveRoom      = "leave_room"
	InboundTypeSendMessage    = "send_message"
	InboundTypeEditMessage    = "edit_message"
	InboundTypeDeleteMessage  = "delete_message"
	InboundTypeTypingStart    = "typing_start"
	InboundTypeTypingStop     = "typing_stop"
	InboundTypeAddReaction    = "add_reaction"
	InboundTypeRemoveReaction = "remove_reaction"
	InboundTypeMarkRead       = "mark_read"
	InboundTypeInitiateCall   = "initiate_call"
	InboundTypeCallResponse   = "call_response"
	InboundTypeEndCall        = "end_call"
	InboundTypeRelaySignal    = "relay_signal"
)

const (
	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// RegisterData binds the connection to the identity behind Token.
type RegisterData struct {
	Token    string `json:"token"`
	Protocol int    `json:"protocol,omitempty"`
}

// RoomData names a room for join_room, leave_room and typing signals.
type RoomData struct {
	RoomID string `json:"roomId"`
}

// SendMessageData is a chat message from the client.
type SendMessageData struct {
	RoomID    string `json:"roomId"`
	Content   string `json:"content"`
	Type      string `json:"type,omitempty"`
	ReplyToID *int64 `json:"replyToId,omitempty"`
}

// MessageRefData targets an existing message for edit or delete.
type MessageRefData struct {
	MessageID int64  `json:"messageId"`
	Content   string `json:"content,omitempty"`
}

// ReactionData targets a reaction on a message.
type ReactionData struct {
	MessageID int64  `json:"messageId"`
	Emoji     string `json:"emoji"`
}

// MarkReadData advances the read cursor.
type MarkReadData struct {
	RoomID    string `json:"roomId"`
	MessageID *int64 `json:"messageId,omitempty"`
}

// InitiateCallData starts a call in a room.
type InitiateCallData struct {
	RoomID string `json:"roomId"`
	Kind   string `json:"kind"`
}

// CallResponseData answers a call.
type CallResponseData struct {
	CallID   string `json:"callId"`
	Decision string `json:"decision"`
}

// CallRefData targets a call.
type CallRefData struct {
	CallID string `json:"callId"`
}

// RelaySignalData forwards an opaque payload to another user.
type RelaySignalData struct {
	CallID       string          `json:"callId"`
	TargetUserID string          `json:"targetUserId"`
	Payload      json.RawMessage `json:"payload"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Message is the wire form of a chat message. Echo is true only on the
// delivery to the connection that sent it.
type Message struct {
	ID        int64           `json:"id"`
	RoomID    string          `json:"roomId"`
	SenderID  string          `json:"senderId"`
	Content   string          `json:"content"`
	Type      string          `json:"type"`
	ReplyToID *int64          `json:"replyToId,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt int64           `json:"createdAt"`
	EditedAt  *int64          `json:"editedAt,omitempty"`
	DeletedAt *int64          `json:"deletedAt,omitempty"`
	Echo      bool            `json:"echo,omitempty"`
}

// EventUserStatus is the global presence broadcast.
type EventUserStatus struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
	At     int64  `json:"at"`
}

// EventUserTyping reports a typing transition.
type EventUserTyping struct {
	UserID   string `json:"userId"`
	RoomID   string `json:"roomId"`
	IsTyping bool   `json:"isTyping"`
}

// EventReaction carries a reaction delta.
type EventReaction struct {
	MessageID int64  `json:"messageId"`
	RoomID    string `json:"roomId"`
	UserID    string `json:"userId"`
	Emoji     string `json:"emoji"`
}

// EventReadReceipt reports a read cursor advance.
type EventReadReceipt struct {
	RoomID    string `json:"roomId"`
	UserID    string `json:"userId"`
	MessageID *int64 `json:"messageId,omitempty"`
	ReadAt    int64  `json:"readAt"`
}

// EventRegistered confirms the bound identity.
type EventRegistered struct {
	UserID   string `json:"userId"`
	ConnID   string `json:"connId"`
	Protocol int    `json:"protocol"`
}

// EventRoomState is the snapshot sent after join_room.
type EventRoomState struct {
	RoomID string   `json:"roomId"`
	Typing []string `json:"typing"`
	Call   *Call    `json:"call,omitempty"`
}

// Call is the wire form of a call record.
type Call struct {
	ID           string   `json:"id"`
	RoomID       string   `json:"roomId"`
	InitiatorID  string   `json:"initiatorId"`
	Kind         string   `json:"kind"`
	Status       string   `json:"status"`
	Participants []string `json:"participants"`
	Declined     []string `json:"declined,omitempty"`
	StartedAt    int64    `json:"startedAt"`
	AnsweredAt   *int64   `json:"answeredAt,omitempty"`
	EndedAt      *int64   `json:"endedAt,omitempty"`
	EndReason    string   `json:"endReason,omitempty"`
	DurationMS   int64    `json:"durationMs,omitempty"`
}

// EventCall carries call_invitation, call_response and call_ended.
type EventCall struct {
	Call          Call     `json:"call"`
	SystemMessage *Message `json:"systemMessage,omitempty"`
	UserID        string   `json:"userId,omitempty"`
	Decision      string   `json:"decision,omitempty"`
}

// EventCallJoinInfo delivers media credentials.
type EventCallJoinInfo struct {
	CallID   string `json:"callId"`
	URL      string `json:"url"`
	Token    string `json:"token"`
	RoomName string `json:"roomName"`
	Identity string `json:"identity"`
}

// EventRelaySignal is an opaque payload forwarded from another participant.
type EventRelaySignal struct {
	CallID     string          `json:"callId"`
	FromUserID string          `json:"fromUserId"`
	Payload    json.RawMessage `json:"payload"`
}

// Error describes a failed command. Op names the inbound type that failed.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Op   string `json:"op,omitempty"`
}
