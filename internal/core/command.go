package core

import "encoding/json"

// Command represents an action requested by a client. The set is closed;
// Hub.Handle dispatches every implementation in a single switch.
type Command interface {
	// Op is the wire name of the command, echoed back in error events.
	Op() string
	isCommand()
}

// RegisterCommand binds the connection to the identity carried by Token.
type RegisterCommand struct {
	Token string
}

// JoinRoomCommand subscribes the connection to a room.
type JoinRoomCommand struct {
	Room string
}

// LeaveRoomCommand unsubscribes the connection from a room.
type LeaveRoomCommand struct {
	Room string
}

// SendMessageCommand posts a message to a room.
type SendMessageCommand struct {
	Room    string
	Content string
	Type    string
	ReplyTo *int64
}

// EditMessageCommand replaces the content of the caller's own message.
type EditMessageCommand struct {
	MessageID int64
	Content   string
}

// DeleteMessageCommand tombstones the caller's own message.
type DeleteMessageCommand struct {
	MessageID int64
}

// TypingCommand starts or stops the typing indicator.
type TypingCommand struct {
	Room   string
	Typing bool
}

// ReactionCommand adds or removes one of the caller's reactions.
type ReactionCommand struct {
	MessageID int64
	Emoji     string
	Remove    bool
}

// MarkReadCommand advances the caller's read cursor.
type MarkReadCommand struct {
	Room      string
	MessageID *int64
}

// InitiateCallCommand starts ringing a call in a room.
type InitiateCallCommand struct {
	Room string
	Kind CallKind
}

// CallResponseCommand accepts or declines a ringing or active call.
type CallResponseCommand struct {
	CallID   string
	Decision Decision
}

// EndCallCommand terminates a call.
type EndCallCommand struct {
	CallID string
}

// RelaySignalCommand forwards an opaque payload to another user's connections.
type RelaySignalCommand struct {
	CallID  string
	Target  string
	Payload json.RawMessage
}

func (*RegisterCommand) Op() string      { return "register" }
func (*JoinRoomCommand) Op() string      { return "join_room" }
func (*LeaveRoomCommand) Op() string     { return "leave_room" }
func (*SendMessageCommand) Op() string   { return "send_message" }
func (*EditMessageCommand) Op() string   { return "edit_message" }
func (*DeleteMessageCommand) Op() string { return "delete_message" }
func (*MarkReadCommand) Op() string      { return "mark_read" }
func (*InitiateCallCommand) Op() string  { return "initiate_call" }
func (*CallResponseCommand) Op() string  { return "call_response" }
func (*EndCallCommand) Op() string       { return "end_call" }
func (*RelaySignalCommand) Op() string   { return "relay_signal" }

func (c *TypingCommand) Op() string {
	if c.Typing {
		return "typing_start"
	}
	return "typing_stop"
}

func (c *ReactionCommand) Op() string {
	if c.Remove {
		return "remove_reaction"
	}
	return "add_reaction"
}

func (*RegisterCommand) isCommand()      {}
func (*JoinRoomCommand) isCommand()      {}
func (*LeaveRoomCommand) isCommand()     {}
func (*SendMessageCommand) isCommand()   {}
func (*EditMessageCommand) isCommand()   {}
func (*DeleteMessageCommand) isCommand() {}
func (*TypingCommand) isCommand()        {}
func (*ReactionCommand) isCommand()      {}
func (*MarkReadCommand) isCommand()      {}
func (*InitiateCallCommand) isCommand()  {}
func (*CallResponseCommand) isCommand()  {}
func (*EndCallCommand) isCommand()       {}
func (*RelaySignalCommand) isCommand()   {}
