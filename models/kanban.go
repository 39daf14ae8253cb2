package models

import (
	"time"
)

// Column represents a pipeline stage on the kanban board.
// Columns are created at setup time and referenced by contacts;
// they are never deleted while contacts point at them.
type Column struct {
	ID           string    `gorm:"primaryKey" json:"id"` // stable slug, e.g. "leads"
	Title        string    `gorm:"not null" json:"title"`
	Color        string    `json:"color"`
	DisplayOrder int       `gorm:"not null;default:0" json:"order"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`

	// Relations
	Contacts []Contact `gorm:"foreignKey:ColumnID" json:"-"`
}

// Contact represents one WhatsApp counterparty tracked on the board.
// A contact belongs to exactly one column at all times; moving it is a
// reassignment of ColumnID, never a copy. LastActivityAt is the sole
// field that determines its rank within a column and only ever advances.
type Contact struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"not null" json:"name"`
	Phone          string    `gorm:"not null;index" json:"phone"` // digits only, correlation key for inbound messages
	AvatarURL      string    `json:"avatarUrl"`
	ColumnID       string    `gorm:"not null;index" json:"columnId"`
	UnreadCount    int       `gorm:"not null;default:0" json:"unreadCount"`
	LastActivityAt time.Time `gorm:"not null;index" json:"lastActivityAt"`
	Status         string    `gorm:"not null;default:'offline'" json:"status"` // online, offline
	AssignedTo     string    `json:"assignedTo"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"-"`

	// Relations
	Tags   []Tag  `gorm:"foreignKey:ContactID" json:"tags"`
	Column Column `json:"-"`
}

// Tag is a colored label owned by exactly one contact.
type Tag struct {
	ID        uint   `gorm:"primaryKey" json:"-"`
	ContactID string `gorm:"not null;index" json:"-"`
	Color     string `gorm:"not null" json:"color"` // red, green, blue, yellow, gray
	Label     string `json:"label,omitempty"`
}

// ColumnView is one column of the computed board projection.
type ColumnView struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Color string    `json:"color"`
	Count int       `json:"count"`
	Items []Contact `json:"items"`
}

// BoardView is the derived, read-only projection handed to clients and
// to the fan-out channel. It is recomputed from the store on demand and
// is never itself a source of truth.
type BoardView []ColumnView
