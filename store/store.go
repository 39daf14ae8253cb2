package store

import (
	"errors"
	"time"

	"zapflow/models"
)

var (
	// ErrNotFound is returned when a referenced row does not exist, or
	// when a conditional update matched zero rows.
	ErrNotFound = errors.New("store: record not found")

	// ErrDuplicateKey is returned when an insert violates a unique
	// constraint, e.g. a provider message id seen twice.
	ErrDuplicateKey = errors.New("store: duplicate key")
)

// BoardFilter bounds the board projection by contact creation date.
// Nil bounds are open.
type BoardFilter struct {
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// Store is the durability boundary of the sync core. Implementations
// must guarantee per-row atomicity for the mutating calls: an unread
// increment racing a read-ack must not lose either write.
type Store interface {
	// Columns
	GetColumn(id string) (*models.Column, error)
	ListColumns() ([]models.Column, error)

	// Contacts
	GetContact(id string) (*models.Contact, error)
	FindContactByPhone(phone string) (*models.Contact, error)
	CreateContact(contact *models.Contact) error
	ListContacts(search string) ([]models.Contact, error)
	ContactsByTagLabels(labels []string) ([]models.Contact, error)

	// MoveContact reassigns the contact's column and advances its
	// last-activity timestamp in a single conditional update.
	MoveContact(contactID, columnID string, at time.Time) error

	// TouchContact advances the contact's last-activity timestamp.
	TouchContact(contactID string, at time.Time) error

	// IncrementUnread atomically bumps the unread counter and advances
	// the last-activity timestamp.
	IncrementUnread(contactID string, at time.Time) error

	// MarkRead zeroes the unread counter without touching recency.
	MarkRead(contactID string) error

	// Messages
	AppendMessage(msg *models.Message) error
	ListMessages(contactID string) ([]models.Message, error)
	MessageByProviderID(providerID string) (*models.Message, error)
	CountMessages(from, to time.Time) (int64, error)

	// BoardView computes the denormalized board projection: columns in
	// display order, contacts by last activity descending.
	BoardView(filter *BoardFilter) (models.BoardView, error)
}
