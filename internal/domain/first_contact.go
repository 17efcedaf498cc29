package domain

import (
	"fmt"
	"time"
)

// DefaultFirstContactLimit is how many messages a sender may send before the
// receiver replies.
const DefaultFirstContactLimit = 3

// FirstContactState is the throttle state of a directed (sender, receiver) pair.
type FirstContactState string

const (
	ContactOpen       FirstContactState = "open"
	ContactThrottling FirstContactState = "throttling"
	ContactBlocked    FirstContactState = "blocked"
	ContactUnlocked   FirstContactState = "unlocked"
)

// FirstContact records unsolicited messages from Sender to Receiver.
// SentCount only grows while ReplyReceived is false; ReplyReceived never reverts.
type FirstContact struct {
	SenderID      int64     `db:"sender_id"`
	ReceiverID    int64     `db:"receiver_id"`
	SentCount     int       `db:"sent_count"`
	ReplyReceived bool      `db:"reply_received"`
	CreatedAt     time.Time `db:"created_at"`
}

// StateOf returns the state of a possibly missing record.
func StateOf(fc *FirstContact, limit int) FirstContactState {
	switch {
	case fc == nil:
		return ContactOpen
	case fc.ReplyReceived:
		return ContactUnlocked
	case fc.SentCount >= limit:
		return ContactBlocked
	default:
		return ContactThrottling
	}
}

// RecordSend applies a send attempt to the record. It returns
// ErrRateLimitExceeded without touching the record when the pair is blocked.
// The record must already exist; an Open pair is represented by a zero count.
func (fc *FirstContact) RecordSend(limit int) error {
	if fc.ReplyReceived {
		return nil
	}
	if fc.SentCount >= limit {
		return ErrRateLimitExceeded
	}
	fc.SentCount++
	return nil
}

// RecordReply unlocks the record. It reports whether anything changed.
func (fc *FirstContact) RecordReply() bool {
	if fc.ReplyReceived {
		return false
	}
	fc.ReplyReceived = true
	return true
}

// ThrottleStatus describes the sender's side of a pair for display.
type ThrottleStatus struct {
	State     FirstContactState `json:"state"`
	SentCount int               `json:"sent_count"`
	Limit     int               `json:"limit"`
	CanSend   bool              `json:"can_send"`
	Warning   string            `json:"warning,omitempty"`
}

func NewThrottleStatus(fc *FirstContact, limit int) ThrottleStatus {
	st := ThrottleStatus{State: StateOf(fc, limit), Limit: limit, CanSend: true}
	if fc != nil {
		st.SentCount = fc.SentCount
	}
	switch st.State {
	case ContactBlocked:
		st.CanSend = false
		st.Warning = fmt.Sprintf("You've reached the %d-message limit. Wait for them to reply.", limit)
	case ContactThrottling:
		st.Warning = fmt.Sprintf("First contact: %d/%d messages sent. They must reply before you can send more.", fc.SentCount, limit)
	}
	return st
}
