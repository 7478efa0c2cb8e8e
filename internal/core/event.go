package core

import (
	"encoding/json"
	"time"

	"github.com/vovakirdan/huddle/internal/callengine"
	"github.com/vovakirdan/huddle/internal/store"
)

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventNewMessage notifies room members about a persisted message.
	EventNewMessage EventKind = iota
	// EventMessageUpdated carries an edited message.
	EventMessageUpdated
	// EventMessageDeleted carries a tombstone.
	EventMessageDeleted
	// EventUserStatusChanged is the global presence broadcast.
	EventUserStatusChanged
	// EventUserTyping reports a typing transition in a room.
	EventUserTyping
	// EventReactionAdded and EventReactionRemoved carry reaction deltas.
	EventReactionAdded
	EventReactionRemoved
	// EventReadReceipt reports an advanced read cursor.
	EventReadReceipt
	// EventRegistered confirms identity binding to the connection.
	EventRegistered
	// EventRoomState is sent to a connection after it joins a room.
	EventRoomState
	// EventError notifies the originating connection about a failed command.
	EventError

	// Call events
	// EventCallInvitation is broadcast when a call starts ringing.
	EventCallInvitation
	// EventCallResponse is broadcast when a member accepts or declines.
	EventCallResponse
	// EventCallEnded is broadcast when a call terminates.
	EventCallEnded
	// EventCallJoinInfo delivers media credentials to a participant.
	EventCallJoinInfo
	// EventRelaySignal forwards an opaque signaling payload to one user.
	EventRelaySignal
)

var eventNames = [...]string{
	EventNewMessage:        "new_message",
	EventMessageUpdated:    "message_updated",
	EventMessageDeleted:    "message_deleted",
	EventUserStatusChanged: "user_status_changed",
	EventUserTyping:        "user_typing",
	EventReactionAdded:     "reaction_added",
	EventReactionRemoved:   "reaction_removed",
	EventReadReceipt:       "read_receipt",
	EventRegistered:        "registered",
	EventRoomState:         "room_state",
	EventError:             "error",
	EventCallInvitation:    "call_invitation",
	EventCallResponse:      "call_response",
	EventCallEnded:         "call_ended",
	EventCallJoinInfo:      "call_join_info",
	EventRelaySignal:       "relay_signal",
}

// String returns the wire name of the event.
func (k EventKind) String() string {
	if int(k) < 0 || int(k) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[k]
}

// Event is the closed set of notifications delivered to clients.
type Event interface {
	Kind() EventKind
	isEvent()
}

// MessageEvent carries a materialized message. Broadcasts reach every joined
// connection including the origin; OriginConn lets the transport flag the echo.
type MessageEvent struct {
	EventKind  EventKind
	Message    store.Message
	OriginConn string
}

// StatusEvent is a presence transition.
type StatusEvent struct {
	User   string
	Online bool
	At     time.Time
}

// TypingEvent reports whether a user is typing in a room.
type TypingEvent struct {
	Room     string
	User     string
	IsTyping bool
}

// ReactionEvent carries a reaction delta. Consumers apply it idempotently.
type ReactionEvent struct {
	Added    bool
	Room     string
	Reaction store.Reaction
}

// ReadReceiptEvent reports a read cursor advance.
type ReadReceiptEvent struct {
	Room      string
	User      string
	MessageID *int64
	ReadAt    time.Time
}

// RegisteredEvent confirms the identity bound to a connection.
type RegisteredEvent struct {
	User   string
	ConnID string
}

// RoomStateEvent is the snapshot a connection receives after joining.
type RoomStateEvent struct {
	Room   string
	Typing []string
	Call   *CallSnapshot
}

// ErrorEvent describes a failed command. Only the originating connection receives it.
type ErrorEvent struct {
	Op      string
	Code    string
	Message string
}

// CallEvent carries a call lifecycle transition.
type CallEvent struct {
	EventKind     EventKind
	Call          CallSnapshot
	SystemMessage *store.Message
	User          string   // responder for call_response, ender for call_ended
	Decision      Decision // call_response only
}

// CallJoinInfoEvent delivers media credentials to a single participant.
type CallJoinInfoEvent struct {
	CallID string
	Info   callengine.JoinInfo
}

// SignalEvent is an opaque payload relayed between call participants.
type SignalEvent struct {
	CallID  string
	From    string
	Payload json.RawMessage
}

func (e *MessageEvent) Kind() EventKind      { return e.EventKind }
func (e *StatusEvent) Kind() EventKind       { return EventUserStatusChanged }
func (e *TypingEvent) Kind() EventKind       { return EventUserTyping }
func (e *ReadReceiptEvent) Kind() EventKind  { return EventReadReceipt }
func (e *RegisteredEvent) Kind() EventKind   { return EventRegistered }
func (e *RoomStateEvent) Kind() EventKind    { return EventRoomState }
func (e *ErrorEvent) Kind() EventKind        { return EventError }
func (e *CallEvent) Kind() EventKind         { return e.EventKind }
func (e *CallJoinInfoEvent) Kind() EventKind { return EventCallJoinInfo }
func (e *SignalEvent) Kind() EventKind       { return EventRelaySignal }

func (e *ReactionEvent) Kind() EventKind {
	if e.Added {
		return EventReactionAdded
	}
	return EventReactionRemoved
}

func (*MessageEvent) isEvent()      {}
func (*StatusEvent) isEvent()       {}
func (*TypingEvent) isEvent()       {}
func (*ReactionEvent) isEvent()     {}
func (*ReadReceiptEvent) isEvent()  {}
func (*RegisteredEvent) isEvent()   {}
func (*RoomStateEvent) isEvent()    {}
func (*ErrorEvent) isEvent()        {}
func (*CallEvent) isEvent()         {}
func (*CallJoinInfoEvent) isEvent() {}
func (*SignalEvent) isEvent()       {}
