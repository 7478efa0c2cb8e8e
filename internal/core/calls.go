package core

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/vovakirdan/huddle/internal/store"
)

// CallKind is the media type of a call.
type CallKind string

const (
	CallKindAudio CallKind = "audio"
	CallKindVideo CallKind = "video"
)

// Valid reports whether the kind is known.
func (k CallKind) Valid() bool {
	return k == CallKindAudio || k == CallKindVideo
}

// CallStatus is a state of the call lifecycle.
type CallStatus string

const (
	CallRinging CallStatus = "ringing"
	CallActive  CallStatus = "active"
	CallEnded   CallStatus = "ended"
)

// Decision is a member's answer to a call invitation.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionDecline Decision = "decline"
)

// Valid reports whether the decision is known.
func (d Decision) Valid() bool {
	return d == DecisionAccept || d == DecisionDecline
}

// End reasons recorded on the call and its system message.
const (
	EndReasonHangup  = "hangup"
	EndReasonTimeout = "timeout"
)

// Call is the in-memory record of a call. Guarded by Signaling.mu.
type Call struct {
	ID           string
	RoomID       string
	InitiatorID  string
	Kind         CallKind
	Status       CallStatus
	Participants map[string]struct{}
	Declined     map[string]struct{}
	StartedAt    time.Time
	AnsweredAt   *time.Time
	EndedAt      *time.Time
	EndReason    string

	message   store.Message
	ringTimer *time.Timer
}

// advance moves the call forward. Only ringing->active, ringing->ended and
// active->ended are allowed; everything else is refused.
func (c *Call) advance(to CallStatus) bool {
	switch {
	case c.Status == CallRinging && to == CallActive:
	case c.Status == CallRinging && to == CallEnded:
	case c.Status == CallActive && to == CallEnded:
	default:
		return false
	}
	c.Status = to
	return true
}

func (c *Call) isParticipant(user string) bool {
	_, ok := c.Participants[user]
	return ok
}

// Duration is the time between the first acceptance and the end of the call.
func (c *Call) Duration() time.Duration {
	if c.AnsweredAt == nil || c.EndedAt == nil {
		return 0
	}
	return c.EndedAt.Sub(*c.AnsweredAt)
}

// CallSnapshot is an immutable copy of a call handed to events.
type CallSnapshot struct {
	ID           string
	RoomID       string
	InitiatorID  string
	Kind         CallKind
	Status       CallStatus
	Participants []string
	Declined     []string
	StartedAt    time.Time
	AnsweredAt   *time.Time
	EndedAt      *time.Time
	EndReason    string
	Duration     time.Duration
}

func (c *Call) snapshot() CallSnapshot {
	return CallSnapshot{
		ID:           c.ID,
		RoomID:       c.RoomID,
		InitiatorID:  c.InitiatorID,
		Kind:         c.Kind,
		Status:       c.Status,
		Participants: sortedKeys(c.Participants),
		Declined:     sortedKeys(c.Declined),
		StartedAt:    c.StartedAt,
		AnsweredAt:   copyTime(c.AnsweredAt),
		EndedAt:      copyTime(c.EndedAt),
		EndReason:    c.EndReason,
		Duration:     c.Duration(),
	}
}

// callMetadata is the JSON stored on the call's system message.
type callMetadata struct {
	CallID       string     `json:"call_id"`
	Kind         CallKind   `json:"kind"`
	Status       CallStatus `json:"status"`
	Initiator    string     `json:"initiator"`
	Participants []string   `json:"participants,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	EndReason    string     `json:"end_reason,omitempty"`
	DurationSec  int64      `json:"duration_sec,omitempty"`
}

func (c *Call) metadata() json.RawMessage {
	// callMetadata holds only strings, ints and times, so Marshal cannot fail.
	raw, _ := json.Marshal(callMetadata{
		CallID:       c.ID,
		Kind:         c.Kind,
		Status:       c.Status,
		Initiator:    c.InitiatorID,
		Participants: sortedKeys(c.Participants),
		EndedAt:      c.EndedAt,
		EndReason:    c.EndReason,
		DurationSec:  int64(c.Duration() / time.Second),
	})
	return raw
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
