package store

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"zapflow/models"
)

// GormStore implements Store on top of a relational database via GORM.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetColumn(id string) (*models.Column, error) {
	var col models.Column
	if err := s.db.First(&col, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &col, nil
}

func (s *GormStore) ListColumns() ([]models.Column, error) {
	var cols []models.Column
	if err := s.db.Order("display_order asc").Find(&cols).Error; err != nil {
		return nil, err
	}
	return cols, nil
}

func (s *GormStore) GetContact(id string) (*models.Contact, error) {
	var contact models.Contact
	if err := s.db.Preload("Tags").First(&contact, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &contact, nil
}

// FindContactByPhone resolves a contact by its normalized phone digits.
// Exact match is tried first; a contains match covers legacy rows that
// were stored with formatting characters.
func (s *GormStore) FindContactByPhone(phone string) (*models.Contact, error) {
	var contact models.Contact
	err := s.db.Preload("Tags").First(&contact, "phone = ?", phone).Error
	if err == nil {
		return &contact, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	err = s.db.Preload("Tags").
		Where("phone LIKE ?", "%"+phone+"%").
		First(&contact).Error
	if err != nil {
		return nil, translate(err)
	}
	return &contact, nil
}

func (s *GormStore) CreateContact(contact *models.Contact) error {
	return translate(s.db.Create(contact).Error)
}

func (s *GormStore) ListContacts(search string) ([]models.Contact, error) {
	var contacts []models.Contact
	q := s.db.Preload("Tags").Order("last_activity_at desc")
	if search != "" {
		like := "%" + search + "%"
		q = q.Where("name LIKE ? OR phone LIKE ?", like, like)
	}
	if err := q.Find(&contacts).Error; err != nil {
		return nil, err
	}
	return contacts, nil
}

func (s *GormStore) ContactsByTagLabels(labels []string) ([]models.Contact, error) {
	if len(labels) == 0 {
		return nil, nil
	}
	var contacts []models.Contact
	err := s.db.Preload("Tags").
		Where("id IN (?)", s.db.Model(&models.Tag{}).
			Select("contact_id").
			Where("label IN ?", labels)).
		Order("last_activity_at desc").
		Find(&contacts).Error
	if err != nil {
		return nil, err
	}
	return contacts, nil
}

// recencyExpr advances last_activity_at without ever moving it backward.
func recencyExpr(at time.Time) interface{} {
	return gorm.Expr("CASE WHEN last_activity_at > ? THEN last_activity_at ELSE ? END", at, at)
}

func (s *GormStore) MoveContact(contactID, columnID string, at time.Time) error {
	res := s.db.Model(&models.Contact{}).
		Where("id = ?", contactID).
		Updates(map[string]interface{}{
			"column_id":        columnID,
			"last_activity_at": recencyExpr(at),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) TouchContact(contactID string, at time.Time) error {
	res := s.db.Model(&models.Contact{}).
		Where("id = ?", contactID).
		Updates(map[string]interface{}{
			"last_activity_at": recencyExpr(at),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) IncrementUnread(contactID string, at time.Time) error {
	res := s.db.Model(&models.Contact{}).
		Where("id = ?", contactID).
		Updates(map[string]interface{}{
			"unread_count":     gorm.Expr("unread_count + 1"),
			"last_activity_at": recencyExpr(at),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) MarkRead(contactID string) error {
	res := s.db.Model(&models.Contact{}).
		Where("id = ?", contactID).
		Update("unread_count", 0)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) AppendMessage(msg *models.Message) error {
	return translate(s.db.Create(msg).Error)
}

func (s *GormStore) ListMessages(contactID string) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.Where("contact_id = ?", contactID).
		Order("timestamp asc").
		Order("created_at asc").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *GormStore) MessageByProviderID(providerID string) (*models.Message, error) {
	var msg models.Message
	err := s.db.First(&msg, "provider_message_id = ?", providerID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &msg, nil
}

func (s *GormStore) CountMessages(from, to time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&models.Message{}).
		Where("timestamp >= ? AND timestamp <= ?", from, to).
		Count(&count).Error
	return count, err
}

func (s *GormStore) BoardView(filter *BoardFilter) (models.BoardView, error) {
	cols, err := s.ListColumns()
	if err != nil {
		return nil, err
	}

	q := s.db.Preload("Tags").Order("last_activity_at desc")
	if filter != nil {
		if filter.CreatedFrom != nil {
			q = q.Where("created_at >= ?", *filter.CreatedFrom)
		}
		if filter.CreatedTo != nil {
			q = q.Where("created_at <= ?", *filter.CreatedTo)
		}
	}
	var contacts []models.Contact
	if err := q.Find(&contacts).Error; err != nil {
		return nil, err
	}

	byColumn := make(map[string][]models.Contact, len(cols))
	for _, contact := range contacts {
		byColumn[contact.ColumnID] = append(byColumn[contact.ColumnID], contact)
	}

	view := make(models.BoardView, 0, len(cols))
	for _, col := range cols {
		items := byColumn[col.ID]
		if items == nil {
			items = []models.Contact{}
		}
		view = append(view, models.ColumnView{
			ID:    col.ID,
			Title: col.Title,
			Color: col.Color,
			Count: len(items),
			Items: items,
		})
	}
	return view, nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateKey
	case strings.Contains(err.Error(), "UNIQUE constraint failed"):
		// sqlite without error translation
		return ErrDuplicateKey
	default:
		return err
	}
}
