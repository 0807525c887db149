// Package domain contains the quote aggregate and its service contract.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/smallbiznis/quotebook/internal/client/domain"
	docdomain "github.com/smallbiznis/quotebook/internal/document/domain"
	"github.com/smallbiznis/quotebook/internal/document/format"
)

type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusViewed   Status = "viewed"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

var Statuses = []Status{
	StatusDraft,
	StatusSent,
	StatusViewed,
	StatusAccepted,
	StatusRejected,
	StatusExpired,
}

func (s Status) Valid() bool {
	for _, status := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// Pending reports whether the quote is waiting on the client.
func (s Status) Pending() bool {
	return s == StatusSent || s == StatusViewed
}

type Quote struct {
	ID       snowflake.ID  `gorm:"primaryKey" json:"id"`
	Number   string        `gorm:"type:varchar(64);not null;uniqueIndex" json:"number"`
	ClientID snowflake.ID  `gorm:"not null;index" json:"client_id"`
	JobID    *snowflake.ID `gorm:"index" json:"job_id,omitempty"`
	Status   Status        `gorm:"type:varchar(32);not null;index" json:"status"`

	docdomain.Totals `gorm:"embedded"`

	ValidUntil    *time.Time `json:"valid_until,omitempty"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	ViewedAt      *time.Time `json:"viewed_at,omitempty"`
	Notes         string     `gorm:"type:text" json:"notes,omitempty"`
	InternalNotes string     `gorm:"type:text" json:"internal_notes,omitempty"`
	Version       int64      `gorm:"not null;default:1" json:"version"`
	CreatedAt     time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null" json:"updated_at"`

	Items           []docdomain.LineItem `gorm:"-" json:"items,omitempty"`
	Client          *clientdomain.Client `gorm:"-" json:"client,omitempty"`
	EffectiveStatus Status               `gorm:"-" json:"effective_status,omitempty"`
	Formatted       *format.Amounts      `gorm:"-" json:"formatted,omitempty"`
}

func (Quote) TableName() string { return "quotes" }

// StatusAt reports expired for a pending quote past validUntil. The stored
// status is left alone.
func (q Quote) StatusAt(now time.Time) Status {
	if q.Status.Pending() && q.ValidUntil != nil && now.After(*q.ValidUntil) {
		return StatusExpired
	}
	return q.Status
}

// Present fills the read-only fields a caller sees at now.
func (q *Quote) Present(now time.Time, currency string) {
	q.EffectiveStatus = q.StatusAt(now)
	q.Formatted = format.Totals(q.Totals, currency)
}
