// Package core is the mediator that keeps the shared board consistent
// across concurrent actors: operator moves and sends, inbound webhook
// deliveries, and every connected observer. All mutations run to
// completion against the store before any fan-out publish happens.
package core

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"zapflow/models"
	"zapflow/store"
)

// Gateway delivers messages to the external WhatsApp network. Treated
// as an opaque, potentially slow, fallible remote call.
type Gateway interface {
	SendText(phone, text string) error
	SendMedia(phone, mediaURL, mediaType, caption string) error
}

// Publisher fans out change notifications to connected clients.
// Delivery is best effort; the core never blocks on it.
type Publisher interface {
	PublishBoard(view models.BoardView)
	PublishMessage(msg models.Message)
}

// InboundMessage is a webhook payload normalized down to the fields
// the core needs.
type InboundMessage struct {
	ProviderMessageID string
	Phone             string // digits only
	SenderName        string
	Content           string
	MediaURL          string
	MediaType         string
	Timestamp         time.Time
}

// CreateContactInput is the explicit contact-creation request.
type CreateContactInput struct {
	Name       string
	Phone      string
	AvatarURL  string
	Status     string
	ColumnID   string
	AssignedTo string
	Tags       []models.Tag
}

// Core is the synchronization service. It is constructed once at
// process start with its collaborators injected and torn down at
// shutdown; no package-level state.
type Core struct {
	store           store.Store
	gateway         Gateway
	publisher       Publisher
	logger          *log.Logger
	defaultColumnID string
	now             func() time.Time
}

func New(st store.Store, gw Gateway, pub Publisher, defaultColumnID string, logger *log.Logger) *Core {
	return &Core{
		store:           st,
		gateway:         gw,
		publisher:       pub,
		logger:          logger,
		defaultColumnID: defaultColumnID,
		now:             time.Now,
	}
}

// MoveContact reassigns the contact's column and bumps its recency, so
// the card surfaces at the head of the target column. Moving to the
// same column still bumps recency; any touch refreshes the card.
// The refreshed board is returned so the initiating client can
// reconcile without waiting for the fan-out round trip.
func (c *Core) MoveContact(contactID, targetColumnID string) (models.BoardView, error) {
	if _, err := c.store.GetColumn(targetColumnID); err != nil {
		if err == store.ErrNotFound {
			return nil, fmt.Errorf("%w: column %s", ErrNotFound, targetColumnID)
		}
		return nil, err
	}

	if err := c.store.MoveContact(contactID, targetColumnID, c.now()); err != nil {
		if err == store.ErrNotFound {
			return nil, fmt.Errorf("%w: contact %s", ErrNotFound, contactID)
		}
		return nil, err
	}

	view, err := c.store.BoardView(nil)
	if err != nil {
		return nil, err
	}
	c.publisher.PublishBoard(view)
	return view, nil
}

// RecordOutboundMessage delivers through the gateway first and only
// persists after delivery is confirmed; a failed send must never leave
// a false "sent" record behind.
func (c *Core) RecordOutboundMessage(contactID, content, mediaURL, mediaType string) (*models.Message, error) {
	contact, err := c.store.GetContact(contactID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, fmt.Errorf("%w: contact %s", ErrNotFound, contactID)
		}
		return nil, err
	}

	if mediaURL != "" {
		err = c.gateway.SendMedia(contact.Phone, mediaURL, mediaType, content)
	} else {
		err = c.gateway.SendText(contact.Phone, content)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayDelivery, err)
	}

	now := c.now()
	msg := &models.Message{
		ID:        uuid.NewString(),
		ContactID: contact.ID,
		Content:   content,
		MediaURL:  mediaURL,
		MediaType: mediaType,
		FromMe:    true,
		Timestamp: now,
	}
	if err := c.store.AppendMessage(msg); err != nil {
		return nil, err
	}
	if err := c.store.TouchContact(contact.ID, now); err != nil {
		return nil, err
	}

	c.publisher.PublishMessage(*msg)
	c.publishBoard()
	return msg, nil
}

// RecordInboundMessage applies one webhook delivery: find or create
// the contact by phone, append the message, bump the unread counter.
// Redelivery of an already-recorded provider message id is detected
// and applied as a no-op.
func (c *Core) RecordInboundMessage(in InboundMessage) (*models.Message, error) {
	if in.ProviderMessageID == "" || in.Phone == "" {
		return nil, ErrMalformedPayload
	}
	if in.Content == "" && in.MediaURL == "" {
		return nil, ErrMalformedPayload
	}

	if existing, err := c.store.MessageByProviderID(in.ProviderMessageID); err == nil {
		return existing, ErrDuplicateDelivery
	} else if err != store.ErrNotFound {
		return nil, err
	}

	now := c.now()
	ts := in.Timestamp
	if ts.IsZero() {
		ts = now
	}

	contact, err := c.store.FindContactByPhone(in.Phone)
	switch err {
	case nil:
	case store.ErrNotFound:
		name := in.SenderName
		if name == "" {
			name = in.Phone
		}
		contact = &models.Contact{
			ID:             uuid.NewString(),
			Name:           name,
			Phone:          in.Phone,
			ColumnID:       c.defaultColumnID,
			LastActivityAt: now,
			Status:         "offline",
		}
		if err := c.store.CreateContact(contact); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	providerID := in.ProviderMessageID
	msg := &models.Message{
		ID:                uuid.NewString(),
		ContactID:         contact.ID,
		Content:           in.Content,
		MediaURL:          in.MediaURL,
		MediaType:         in.MediaType,
		FromMe:            false,
		ProviderMessageID: &providerID,
		Timestamp:         ts,
	}
	if err := c.store.AppendMessage(msg); err != nil {
		if err == store.ErrDuplicateKey {
			// Lost the race against a concurrent redelivery; the other
			// writer owns the record and the unread increment.
			return nil, ErrDuplicateDelivery
		}
		return nil, err
	}

	// Increment only after the append wins. The unique index on the
	// provider message id arbitrates concurrent redeliveries, and only
	// the winner may touch the counter.
	if err := c.store.IncrementUnread(contact.ID, now); err != nil {
		return nil, err
	}

	c.publisher.PublishMessage(*msg)
	c.publishBoard()
	return msg, nil
}

// MarkRead zeroes the contact's unread counter. Recency is untouched;
// reading a conversation does not resurface the card.
func (c *Core) MarkRead(contactID string) error {
	if err := c.store.MarkRead(contactID); err != nil {
		if err == store.ErrNotFound {
			return fmt.Errorf("%w: contact %s", ErrNotFound, contactID)
		}
		return err
	}
	c.publishBoard()
	return nil
}

// GetBoardView is a pure read of the board projection.
func (c *Core) GetBoardView(filter *store.BoardFilter) (models.BoardView, error) {
	return c.store.BoardView(filter)
}

// GetMessages returns the contact's message history in append order.
func (c *Core) GetMessages(contactID string) ([]models.Message, error) {
	if _, err := c.store.GetContact(contactID); err != nil {
		if err == store.ErrNotFound {
			return nil, fmt.Errorf("%w: contact %s", ErrNotFound, contactID)
		}
		return nil, err
	}
	return c.store.ListMessages(contactID)
}

// CreateContact explicitly creates a contact, defaulting to the
// configured leads column when no column is requested.
func (c *Core) CreateContact(in CreateContactInput) (*models.Contact, error) {
	columnID := in.ColumnID
	if columnID == "" {
		columnID = c.defaultColumnID
	}
	if _, err := c.store.GetColumn(columnID); err != nil {
		if err == store.ErrNotFound {
			return nil, fmt.Errorf("%w: column %s", ErrNotFound, columnID)
		}
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = "offline"
	}
	contact := &models.Contact{
		ID:             uuid.NewString(),
		Name:           in.Name,
		Phone:          in.Phone,
		AvatarURL:      in.AvatarURL,
		ColumnID:       columnID,
		LastActivityAt: c.now(),
		Status:         status,
		AssignedTo:     in.AssignedTo,
		Tags:           in.Tags,
	}
	if err := c.store.CreateContact(contact); err != nil {
		return nil, err
	}
	c.publishBoard()
	return contact, nil
}

func (c *Core) publishBoard() {
	view, err := c.store.BoardView(nil)
	if err != nil {
		c.logger.Printf("Failed to recompute board view: %v", err)
		return
	}
	c.publisher.PublishBoard(view)
}
