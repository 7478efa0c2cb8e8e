package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/huddle/internal/callengine"
	"github.com/vovakirdan/huddle/internal/store"
)

// Default call timings.
const (
	DefaultCallRingTimeout    = 45 * time.Second
	DefaultEndedCallRetention = 10 * time.Minute
)

// Signaling owns the call table and drives each call through
// ringing -> active -> ended. At most one non-ended call exists per room.
type Signaling struct {
	messages store.MessageStore
	rooms    store.RoomStore
	members  *Membership
	registry *Registry
	engine   callengine.Engine
	locks    *roomLocks
	log      zerolog.Logger

	ringTimeout time.Duration
	retention   time.Duration
	now         func() time.Time

	mu     sync.Mutex
	calls  map[string]*Call
	active map[string]string // room -> call id
}

// InitiateCall starts ringing a call in a room the caller is joined to. The
// system message recording the call is persisted first; if that fails the
// call is dropped and nothing is broadcast.
func (s *Signaling) InitiateCall(ctx context.Context, c *Client, cmd *InitiateCallCommand) (*CallSnapshot, error) {
	if !s.members.IsJoined(c, cmd.Room) {
		return nil, coreError(ErrAccessDenied, "not joined to room %s", cmd.Room)
	}
	kind := cmd.Kind
	if kind == "" {
		kind = CallKindAudio
	}
	if !kind.Valid() {
		return nil, coreError(ErrBadRequest, "unsupported call kind %q", cmd.Kind)
	}

	user := c.User()
	call := &Call{
		ID:           uuid.NewString(),
		RoomID:       cmd.Room,
		InitiatorID:  user,
		Kind:         kind,
		Status:       CallRinging,
		Participants: map[string]struct{}{user: {}},
		Declined:     make(map[string]struct{}),
		StartedAt:    s.now().UTC(),
	}

	s.mu.Lock()
	if id, busy := s.active[cmd.Room]; busy {
		s.mu.Unlock()
		return nil, coreError(ErrCallInProgress, "call %s is already in progress", id)
	}
	s.active[cmd.Room] = call.ID
	s.mu.Unlock()

	unlock := s.locks.lock(cmd.Room)
	defer unlock()

	msg := store.Message{
		RoomID:   cmd.Room,
		SenderID: user,
		Content:  string(kind) + " call",
		Type:     store.MessageTypeCall,
		Metadata: call.metadata(),
	}
	if err := s.messages.SaveMessage(ctx, &msg); err != nil {
		s.mu.Lock()
		if s.active[cmd.Room] == call.ID {
			delete(s.active, cmd.Room)
		}
		s.mu.Unlock()
		s.log.Error().Err(err).Str("room_id", cmd.Room).Str("call_id", call.ID).Msg("persist call start")
		return nil, persistenceError("call", err)
	}
	if err := s.rooms.TouchRoom(ctx, cmd.Room, msg.CreatedAt); err != nil {
		s.log.Warn().Err(err).Str("room_id", cmd.Room).Msg("touch room activity")
	}

	s.mu.Lock()
	call.message = msg
	s.calls[call.ID] = call
	call.ringTimer = time.AfterFunc(s.ringTimeout, func() { s.expire(call.ID) })
	snap := call.snapshot()
	s.mu.Unlock()

	s.members.Broadcast(cmd.Room, &CallEvent{
		EventKind:     EventCallInvitation,
		Call:          snap,
		SystemMessage: &msg,
		User:          user,
	}, nil)
	s.log.Info().Str("call_id", call.ID).Str("room_id", cmd.Room).Str("user_id", user).Msg("call ringing")

	s.sendJoinInfo(ctx, c, snap)
	return &snap, nil
}

// Respond records an accept or decline. The first accept moves the call to
// active; later accepts only add participants. A decline never ends the call.
func (s *Signaling) Respond(ctx context.Context, c *Client, cmd *CallResponseCommand) (*CallSnapshot, error) {
	if !cmd.Decision.Valid() {
		return nil, coreError(ErrBadRequest, "unsupported decision %q", cmd.Decision)
	}
	room, err := s.roomOf(cmd.CallID)
	if err != nil {
		return nil, err
	}
	if !s.members.IsJoined(c, room) {
		return nil, coreError(ErrAccessDenied, "not joined to room %s", room)
	}

	unlock := s.locks.lock(room)
	defer unlock()

	user := c.User()

	s.mu.Lock()
	call, ok := s.calls[cmd.CallID]
	if !ok {
		s.mu.Unlock()
		return nil, coreError(ErrNotFound, "call %s not found", cmd.CallID)
	}
	if call.Status == CallEnded {
		s.mu.Unlock()
		return nil, coreError(ErrCallEnded, "call %s has ended", call.ID)
	}
	if user == call.InitiatorID {
		s.mu.Unlock()
		return nil, coreError(ErrBadRequest, "the initiator cannot answer their own call")
	}

	var joined, activated bool
	switch cmd.Decision {
	case DecisionAccept:
		if !call.isParticipant(user) {
			call.Participants[user] = struct{}{}
			delete(call.Declined, user)
			joined = true
		}
		if call.advance(CallActive) {
			now := s.now().UTC()
			call.AnsweredAt = &now
			if call.ringTimer != nil {
				call.ringTimer.Stop()
			}
			activated = true
		}
	case DecisionDecline:
		if call.isParticipant(user) {
			s.mu.Unlock()
			return nil, coreError(ErrBadRequest, "already in call %s, use end_call to leave", call.ID)
		}
		call.Declined[user] = struct{}{}
	}
	snap := call.snapshot()
	var msg store.Message
	if activated {
		call.message.Metadata = call.metadata()
		msg = call.message
	}
	s.mu.Unlock()

	if activated {
		if err := s.messages.UpdateMessage(ctx, &msg); err != nil {
			s.log.Error().Err(err).Str("call_id", snap.ID).Msg("persist call activation")
		}
	}

	s.members.Broadcast(room, &CallEvent{
		EventKind: EventCallResponse,
		Call:      snap,
		User:      user,
		Decision:  cmd.Decision,
	}, nil)

	if joined {
		s.sendJoinInfo(ctx, c, snap)
	}
	return &snap, nil
}

// EndCall terminates a call. Ending an ended call is a no-op.
func (s *Signaling) EndCall(ctx context.Context, c *Client, cmd *EndCallCommand) error {
	room, err := s.roomOf(cmd.CallID)
	if err != nil {
		return err
	}

	unlock := s.locks.lock(room)
	defer unlock()

	user := c.User()

	s.mu.Lock()
	call, ok := s.calls[cmd.CallID]
	if !ok || call.Status == CallEnded {
		s.mu.Unlock()
		return nil
	}
	if user != call.InitiatorID && !call.isParticipant(user) {
		s.mu.Unlock()
		return coreError(ErrNotParticipant, "not a participant of call %s", call.ID)
	}
	snap, msg := s.finishLocked(call, EndReasonHangup)
	s.mu.Unlock()

	s.announceEnd(ctx, snap, msg, user)
	return nil
}

// expire ends a call that is still ringing when its ring timer fires.
func (s *Signaling) expire(id string) {
	room, err := s.roomOf(id)
	if err != nil {
		return
	}

	unlock := s.locks.lock(room)
	defer unlock()

	s.mu.Lock()
	call, ok := s.calls[id]
	if !ok || call.Status != CallRinging {
		s.mu.Unlock()
		return
	}
	snap, msg := s.finishLocked(call, EndReasonTimeout)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.announceEnd(ctx, snap, msg, "")
}

// finishLocked moves the call to ended and frees its room slot.
func (s *Signaling) finishLocked(call *Call, reason string) (CallSnapshot, store.Message) {
	call.advance(CallEnded)
	now := s.now().UTC()
	call.EndedAt = &now
	call.EndReason = reason
	if call.ringTimer != nil {
		call.ringTimer.Stop()
	}
	if s.active[call.RoomID] == call.ID {
		delete(s.active, call.RoomID)
	}
	call.message.Metadata = call.metadata()
	return call.snapshot(), call.message
}

// announceEnd persists the final call state and broadcasts call_ended. A
// persistence failure is logged; the broadcast happens regardless.
func (s *Signaling) announceEnd(ctx context.Context, snap CallSnapshot, msg store.Message, by string) {
	if err := s.messages.UpdateMessage(ctx, &msg); err != nil {
		s.log.Error().Err(err).
			Str("call_id", snap.ID).
			Str("room_id", snap.RoomID).
			Int64("message_id", msg.ID).
			Msg("persist call end")
	}

	s.members.Broadcast(snap.RoomID, &CallEvent{
		EventKind:     EventCallEnded,
		Call:          snap,
		SystemMessage: &msg,
		User:          by,
	}, nil)
	s.log.Info().
		Str("call_id", snap.ID).
		Str("reason", snap.EndReason).
		Dur("duration", snap.Duration).
		Msg("call ended")

	if s.engine != nil {
		err := s.engine.EndCall(ctx, callengine.Call{ID: snap.ID, RoomID: snap.RoomID, Kind: string(snap.Kind)})
		if err != nil {
			s.log.Warn().Err(err).Str("call_id", snap.ID).Msg("end media session")
		}
	}
}

// RelaySignal forwards an opaque payload to every live connection of the
// target user. An offline target is not an error; the payload is dropped.
func (s *Signaling) RelaySignal(_ context.Context, c *Client, cmd *RelaySignalCommand) error {
	if cmd.Target == "" {
		return coreError(ErrBadRequest, "target is required")
	}
	if len(cmd.Payload) == 0 {
		return coreError(ErrBadRequest, "payload is required")
	}
	user := c.User()

	s.mu.Lock()
	call, ok := s.calls[cmd.CallID]
	if !ok {
		s.mu.Unlock()
		return coreError(ErrNotFound, "call %s not found", cmd.CallID)
	}
	if call.Status == CallEnded {
		s.mu.Unlock()
		return coreError(ErrCallEnded, "call %s has ended", call.ID)
	}
	if !call.isParticipant(user) {
		s.mu.Unlock()
		return coreError(ErrNotParticipant, "not a participant of call %s", call.ID)
	}
	s.mu.Unlock()

	conns := s.registry.Connections(cmd.Target)
	if len(conns) == 0 {
		s.log.Debug().Str("call_id", cmd.CallID).Str("target", cmd.Target).Msg("relay target offline, dropping signal")
		return nil
	}
	ev := &SignalEvent{CallID: cmd.CallID, From: user, Payload: cmd.Payload}
	for _, conn := range conns {
		conn.deliver(ev)
	}
	return nil
}

// ActiveCall returns the room's non-ended call, or nil.
func (s *Signaling) ActiveCall(room string) *CallSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.calls[s.active[room]]
	if !ok {
		return nil
	}
	snap := call.snapshot()
	return &snap
}

// Get returns a snapshot of any retained call.
func (s *Signaling) Get(id string) (*CallSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.calls[id]
	if !ok {
		return nil, false
	}
	snap := call.snapshot()
	return &snap, true
}

// Purge forgets ended calls older than the retention window.
func (s *Signaling) Purge(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, call := range s.calls {
		if call.Status == CallEnded && call.EndedAt != nil && now.Sub(*call.EndedAt) >= s.retention {
			delete(s.calls, id)
			n++
		}
	}
	return n
}

// Stop cancels pending ring timers.
func (s *Signaling) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, call := range s.calls {
		if call.ringTimer != nil {
			call.ringTimer.Stop()
		}
	}
}

func (s *Signaling) roomOf(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.calls[id]
	if !ok {
		return "", coreError(ErrNotFound, "call %s not found", id)
	}
	return call.RoomID, nil
}

func (s *Signaling) sendJoinInfo(ctx context.Context, c *Client, snap CallSnapshot) {
	if s.engine == nil {
		return
	}
	info, err := s.engine.GenerateJoinInfo(ctx, callengine.Call{
		ID:     snap.ID,
		RoomID: snap.RoomID,
		Kind:   string(snap.Kind),
	}, c.User())
	if err != nil {
		s.log.Warn().Err(err).Str("call_id", snap.ID).Str("user_id", c.User()).Msg("generate join info")
		return
	}
	c.deliver(&CallJoinInfoEvent{CallID: snap.ID, Info: *info})
}
