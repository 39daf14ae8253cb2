package models

import (
	"time"
)

// Message is one chat message exchanged with a contact. Messages are
// immutable once created and append-only per contact.
type Message struct {
	ID        string `gorm:"primaryKey" json:"id"`
	ContactID string `gorm:"not null;index" json:"contactId"`
	Content   string `gorm:"type:text" json:"content"`
	MediaURL  string `json:"mediaUrl,omitempty"`
	MediaType string `json:"mediaType,omitempty"` // image, video, audio, document
	FromMe    bool   `gorm:"not null;default:false" json:"fromMe"`

	// ProviderMessageID is the identifier assigned by the messaging
	// network for inbound messages. It is the de-duplication key for
	// webhook redeliveries; nil for locally originated messages so the
	// unique index only applies where a provider id exists.
	ProviderMessageID *string `gorm:"uniqueIndex" json:"providerMessageId,omitempty"`

	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
	CreatedAt time.Time `json:"-"`

	// Relations
	Contact Contact `json:"-"`
}
