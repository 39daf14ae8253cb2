package models

import (
	"time"

	"gorm.io/gorm"
)

// Broadcast statuses
const (
	BroadcastStatusDraft     = "draft"
	BroadcastStatusScheduled = "scheduled"
	BroadcastStatusSending   = "sending"
	BroadcastStatusCompleted = "completed"
)

// Broadcast represents a campaign message sent to every contact
// carrying one of the target tag labels.
type Broadcast struct {
	gorm.Model
	Name       string `gorm:"not null" json:"name"`
	Message    string `gorm:"type:text;not null" json:"message"`
	TargetTags string `gorm:"not null" json:"targetTags"` // comma-separated tag labels
	Status     string `gorm:"not null;default:'draft'" json:"status"`

	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// Statistics
	TotalCount  int `gorm:"default:0" json:"total"`
	SentCount   int `gorm:"default:0" json:"sent"`
	FailedCount int `gorm:"default:0" json:"failed"`

	// Relations
	Recipients []BroadcastRecipient `gorm:"foreignKey:BroadcastID" json:"recipients,omitempty"`
}

// BroadcastRecipient records the delivery outcome for one contact.
type BroadcastRecipient struct {
	gorm.Model
	BroadcastID uint   `gorm:"not null;index" json:"broadcast_id"`
	ContactID   string `gorm:"not null;index" json:"contact_id"`
	Status      string `gorm:"not null;default:'pending'" json:"status"` // pending, sent, failed
	Error       string `json:"error,omitempty"`
}
