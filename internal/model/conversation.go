package model

import (
	"fmt"
	"time"

	"eduops.app/relay/internal/domain"
)

// ConversationStatus is the attendance status shown on the dashboards.
type ConversationStatus string

const (
	StatusPending    ConversationStatus = "Pendente"
	StatusInProgress ConversationStatus = "Em andamento"
	StatusDone       ConversationStatus = "Concluído"
)

func (s ConversationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusDone:
		return true
	}
	return false
}

func ParseConversationStatus(s string) (ConversationStatus, error) {
	status := ConversationStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown conversation status %q", s)
	}
	return status, nil
}

// CanTransitionTo reports whether moving from s to next is allowed. Staying
// put is always allowed. Concluído only leaves through a reopen to
// Em andamento, and nothing returns to Pendente.
func (s ConversationStatus) CanTransitionTo(next ConversationStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusPending:
		return next == StatusInProgress || next == StatusDone
	case StatusInProgress:
		return next == StatusDone
	case StatusDone:
		return next == StatusInProgress
	}
	return false
}

// StatusSignals are the facts a poll or webhook observed about a conversation.
type StatusSignals struct {
	Assigned bool // an attendant owns the conversation
	Replied  bool // staff sent at least one message
	Closed   bool // the platform reports the conversation closed
	Reopened bool // explicit reopen after a close
}

// target is the status the signals describe on their own, ignoring history.
func (sig StatusSignals) target() ConversationStatus {
	switch {
	case sig.Closed && !sig.Reopened:
		return StatusDone
	case sig.Reopened, sig.Assigned, sig.Replied:
		return StatusInProgress
	default:
		return StatusPending
	}
}

// NextStatus applies signals to the current status. It never regresses: a
// snapshot that looks earlier than the stored state leaves the status alone.
func NextStatus(current ConversationStatus, sig StatusSignals) ConversationStatus {
	if current == StatusDone {
		if sig.Reopened && !sig.Closed {
			return StatusInProgress
		}
		return StatusDone
	}
	target := sig.target()
	if current.CanTransitionTo(target) {
		return target
	}
	return current
}

// ConversationRecord is the persisted attendance row, one per
// (Account, ExternalID).
type ConversationRecord struct {
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	RemoteUpdatedAt time.Time          `json:"remote_updated_at"`
	StartedAt       *time.Time         `json:"started_at,omitempty"`
	FirstReplyAt    *time.Time         `json:"first_reply_at,omitempty"`
	LastMessageAt   *time.Time         `json:"last_message_at,omitempty"`
	ClosedAt        *time.Time         `json:"closed_at,omitempty"`
	ReopenedAt      *time.Time         `json:"reopened_at,omitempty"`
	AttendantID     *string            `json:"attendant_id,omitempty"`
	AttendantName   *string            `json:"attendant_name,omitempty"`
	AttendantEmail  *string            `json:"attendant_email,omitempty"`
	Department      *string            `json:"department,omitempty"`
	WebhookLogID    *int64             `json:"webhook_log_id,omitempty"`
	Account         Account            `json:"account"`
	ExternalID      string             `json:"external_id"`
	SubscriberID    string             `json:"subscriber_id"`
	LeadName        string             `json:"lead_name"`
	LeadPhone       string             `json:"lead_phone"`
	Status          ConversationStatus `json:"status"`
	DurationSeconds int64              `json:"duration_seconds"`
	ID              int64              `json:"id"`
}

// ConversationSnapshot is a normalized view of one remote conversation,
// produced by either the poller or the webhook processor.
type ConversationSnapshot struct {
	RemoteUpdatedAt time.Time
	StartedAt       *time.Time
	FirstReplyAt    *time.Time
	LastMessageAt   *time.Time
	ClosedAt        *time.Time
	ReopenedAt      *time.Time
	Attendant       *Manager
	WebhookLogID    *int64
	Account         Account
	ExternalID      string
	SubscriberID    string
	LeadName        string
	LeadPhone       string
	Department      string
	Signals         StatusSignals
}

type MergeOutcome string

const (
	MergeInserted  MergeOutcome = "inserted"
	MergeUpdated   MergeOutcome = "updated"
	MergeUnchanged MergeOutcome = "unchanged"
	MergeStale     MergeOutcome = "stale"
)

// MergeConversation folds snap into existing (nil on first sighting) and
// returns the row to write. A snapshot older than the stored remote
// timestamp yields MergeStale and domain.ErrConflict.
func MergeConversation(existing *ConversationRecord, snap ConversationSnapshot, now time.Time) (ConversationRecord, MergeOutcome, error) {
	if existing == nil {
		rec := ConversationRecord{
			Account:         snap.Account,
			ExternalID:      snap.ExternalID,
			SubscriberID:    snap.SubscriberID,
			LeadName:        snap.LeadName,
			LeadPhone:       snap.LeadPhone,
			Department:      nonEmpty(snap.Department),
			Status:          NextStatus(StatusPending, snap.Signals),
			StartedAt:       snap.StartedAt,
			FirstReplyAt:    snap.FirstReplyAt,
			LastMessageAt:   snap.LastMessageAt,
			ReopenedAt:      snap.ReopenedAt,
			RemoteUpdatedAt: snap.RemoteUpdatedAt,
			WebhookLogID:    snap.WebhookLogID,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		setAttendant(&rec, snap.Attendant)
		if rec.Status == StatusDone {
			rec.ClosedAt = firstNonNil(snap.ClosedAt, &snap.RemoteUpdatedAt)
		}
		rec.DurationSeconds = duration(rec)
		return rec, MergeInserted, nil
	}

	if snap.RemoteUpdatedAt.Before(existing.RemoteUpdatedAt) {
		return *existing, MergeStale, domain.ErrConflict
	}

	rec := *existing
	if snap.SubscriberID != "" {
		rec.SubscriberID = snap.SubscriberID
	}
	if snap.LeadName != "" {
		rec.LeadName = snap.LeadName
	}
	if snap.LeadPhone != "" {
		rec.LeadPhone = snap.LeadPhone
	}
	if snap.Department != "" {
		rec.Department = nonEmpty(snap.Department)
	}
	// A snapshot without a resolved attendant keeps the stored one.
	if snap.Attendant != nil {
		setAttendant(&rec, snap.Attendant)
	}

	rec.StartedAt = earliest(existing.StartedAt, snap.StartedAt)
	rec.FirstReplyAt = earliest(existing.FirstReplyAt, snap.FirstReplyAt)
	rec.LastMessageAt = latest(existing.LastMessageAt, snap.LastMessageAt)

	rec.Status = NextStatus(existing.Status, snap.Signals)
	switch {
	case existing.Status == StatusDone && rec.Status == StatusInProgress:
		rec.ClosedAt = nil
		rec.ReopenedAt = firstNonNil(snap.ReopenedAt, &snap.RemoteUpdatedAt)
	case rec.Status == StatusDone && existing.Status != StatusDone:
		rec.ClosedAt = firstNonNil(snap.ClosedAt, &snap.RemoteUpdatedAt)
	}

	rec.RemoteUpdatedAt = snap.RemoteUpdatedAt
	if snap.WebhookLogID != nil {
		rec.WebhookLogID = snap.WebhookLogID
	}
	rec.DurationSeconds = duration(rec)

	if sameContent(*existing, rec) {
		return *existing, MergeUnchanged, nil
	}
	rec.UpdatedAt = now
	return rec, MergeUpdated, nil
}

// duration runs from the start of the conversation to its close, or to the
// last activity while it is still open.
func duration(rec ConversationRecord) int64 {
	if rec.StartedAt == nil {
		return 0
	}
	end := rec.RemoteUpdatedAt
	switch {
	case rec.Status == StatusDone && rec.ClosedAt != nil:
		end = *rec.ClosedAt
	case rec.LastMessageAt != nil:
		end = *rec.LastMessageAt
	}
	secs := int64(end.Sub(*rec.StartedAt) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

func setAttendant(rec *ConversationRecord, m *Manager) {
	if m == nil {
		rec.AttendantID, rec.AttendantName, rec.AttendantEmail = nil, nil, nil
		return
	}
	id := m.ID.String()
	rec.AttendantID = &id
	rec.AttendantName = nonEmpty(m.FullName)
	rec.AttendantEmail = nonEmpty(m.Email)
}

func sameContent(a, b ConversationRecord) bool {
	return a.SubscriberID == b.SubscriberID &&
		a.LeadName == b.LeadName &&
		a.LeadPhone == b.LeadPhone &&
		a.Status == b.Status &&
		a.DurationSeconds == b.DurationSeconds &&
		a.RemoteUpdatedAt.Equal(b.RemoteUpdatedAt) &&
		equalString(a.AttendantID, b.AttendantID) &&
		equalString(a.AttendantName, b.AttendantName) &&
		equalString(a.AttendantEmail, b.AttendantEmail) &&
		equalString(a.Department, b.Department) &&
		equalTime(a.StartedAt, b.StartedAt) &&
		equalTime(a.FirstReplyAt, b.FirstReplyAt) &&
		equalTime(a.LastMessageAt, b.LastMessageAt) &&
		equalTime(a.ClosedAt, b.ClosedAt) &&
		equalTime(a.ReopenedAt, b.ReopenedAt) &&
		equalInt64(a.WebhookLogID, b.WebhookLogID)
}

func earliest(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.Before(*a):
		return b
	}
	return a
}

func latest(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.After(*a):
		return b
	}
	return a
}

func firstNonNil(ts ...*time.Time) *time.Time {
	for _, t := range ts {
		if t != nil && !t.IsZero() {
			v := *t
			return &v
		}
	}
	return nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func equalInt64(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
