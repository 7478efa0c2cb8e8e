package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCallAdvanceIsMonotonic(t *testing.T) {
	tests := []struct {
		from, to CallStatus
		ok       bool
	}{
		{CallRinging, CallActive, true},
		{CallRinging, CallEnded, true},
		{CallActive, CallEnded, true},
		{CallActive, CallRinging, false},
		{CallActive, CallActive, false},
		{CallRinging, CallRinging, false},
		{CallEnded, CallRinging, false},
		{CallEnded, CallActive, false},
		{CallEnded, CallEnded, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			call := &Call{Status: tt.from}
			if got := call.advance(tt.to); got != tt.ok {
				t.Fatalf("advance = %v, want %v", got, tt.ok)
			}
			want := tt.from
			if tt.ok {
				want = tt.to
			}
			if call.Status != want {
				t.Fatalf("status = %s, want %s", call.Status, want)
			}
		})
	}
}

func TestCallSnapshotDuration(t *testing.T) {
	start := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	answered := start.Add(5 * time.Second)
	ended := answered.Add(90 * time.Second)

	call := &Call{
		ID:           "c1",
		Status:       CallEnded,
		Participants: map[string]struct{}{"bob": {}, "alice": {}},
		StartedAt:    start,
		AnsweredAt:   &answered,
		EndedAt:      &ended,
	}
	snap := call.snapshot()
	if snap.Duration != 90*time.Second {
		t.Fatalf("duration = %v", snap.Duration)
	}
	if len(snap.Participants) != 2 || snap.Participants[0] != "alice" {
		t.Fatalf("participants not sorted: %v", snap.Participants)
	}

	unanswered := &Call{Status: CallEnded, StartedAt: start, EndedAt: &ended}
	if d := unanswered.Duration(); d != 0 {
		t.Fatalf("unanswered call has duration %v", d)
	}
}

func TestCallMetadataRecordsFinalState(t *testing.T) {
	answered := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	ended := answered.Add(42 * time.Second)

	call := &Call{
		ID:           "c1",
		Kind:         CallKindVideo,
		Status:       CallEnded,
		InitiatorID:  "alice",
		Participants: map[string]struct{}{"bob": {}, "alice": {}},
		AnsweredAt:   &answered,
		EndedAt:      &ended,
		EndReason:    EndReasonHangup,
	}

	var meta callMetadata
	if err := json.Unmarshal(call.metadata(), &meta); err != nil {
		t.Fatalf("metadata is not valid JSON: %v", err)
	}
	if meta.CallID != "c1" || meta.Status != CallEnded || meta.Kind != CallKindVideo || meta.Initiator != "alice" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if meta.DurationSec != 42 || meta.EndReason != EndReasonHangup {
		t.Fatalf("unexpected end state: %+v", meta)
	}
	if len(meta.Participants) != 2 || meta.Participants[0] != "alice" {
		t.Fatalf("participants not sorted: %v", meta.Participants)
	}
}
