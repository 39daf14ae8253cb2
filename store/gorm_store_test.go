package store

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"zapflow/models"
	"zapflow/utils"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&models.Column{}, &models.Contact{}, &models.Tag{}, &models.Message{})
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	columns := []models.Column{
		{ID: "leads", Title: "Leads", Color: "bg-emerald-600", DisplayOrder: 0},
		{ID: "negociando", Title: "Negociando", Color: "bg-teal-600", DisplayOrder: 1},
		{ID: "ganhou", Title: "Ganhou", Color: "bg-teal-700", DisplayOrder: 2},
	}
	for _, col := range columns {
		if err := db.Create(&col).Error; err != nil {
			t.Fatalf("failed to seed column: %v", err)
		}
	}
	return NewGormStore(db)
}

func seedContact(t *testing.T, s *GormStore, id, columnID string, lastActivity time.Time) {
	t.Helper()
	err := s.CreateContact(&models.Contact{
		ID:             id,
		Name:           "Contact " + id,
		Phone:          "5511" + id,
		ColumnID:       columnID,
		LastActivityAt: lastActivity,
		Status:         "offline",
	})
	if err != nil {
		t.Fatalf("failed to seed contact %s: %v", id, err)
	}
}

func TestMoveContactUpdatesColumnAndRecency(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	seedContact(t, s, "c1", "leads", base)

	at := base.Add(time.Hour)
	if err := s.MoveContact("c1", "negociando", at); err != nil {
		t.Fatalf("move failed: %v", err)
	}

	contact, err := s.GetContact("c1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if contact.ColumnID != "negociando" {
		t.Errorf("got column %q, want negociando", contact.ColumnID)
	}
	if !contact.LastActivityAt.Equal(at) {
		t.Errorf("got last activity %v, want %v", contact.LastActivityAt, at)
	}
}

func TestMoveContactNotFound(t *testing.T) {
	s := newTestStore(t)
	if err := s.MoveContact("missing", "leads", time.Now()); err != ErrNotFound {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestRecencyNeverMovesBackward(t *testing.T) {
	s := newTestStore(t)
	newer := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	seedContact(t, s, "c1", "leads", newer)

	older := newer.Add(-time.Hour)
	if err := s.TouchContact("c1", older); err != nil {
		t.Fatalf("touch failed: %v", err)
	}

	contact, _ := s.GetContact("c1")
	if !contact.LastActivityAt.Equal(newer) {
		t.Errorf("recency moved backward: got %v, want %v", contact.LastActivityAt, newer)
	}
}

func TestIncrementUnread(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	seedContact(t, s, "c1", "leads", base)

	for i := 0; i < 3; i++ {
		if err := s.IncrementUnread("c1", base.Add(time.Duration(i+1)*time.Minute)); err != nil {
			t.Fatalf("increment failed: %v", err)
		}
	}

	contact, _ := s.GetContact("c1")
	if contact.UnreadCount != 3 {
		t.Errorf("got unread %d, want 3", contact.UnreadCount)
	}

	if err := s.MarkRead("c1"); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}
	contact, _ = s.GetContact("c1")
	if contact.UnreadCount != 0 {
		t.Errorf("got unread %d after mark read, want 0", contact.UnreadCount)
	}
	if !contact.LastActivityAt.Equal(base.Add(3 * time.Minute)) {
		t.Errorf("mark read changed recency: got %v", contact.LastActivityAt)
	}
}

func TestFindContactByPhone(t *testing.T) {
	s := newTestStore(t)
	base := time.Now()
	seedContact(t, s, "c1", "leads", base)

	// Exact normalized match
	contact, err := s.FindContactByPhone("5511c1")
	if err != nil {
		t.Fatalf("exact lookup failed: %v", err)
	}
	if contact.ID != "c1" {
		t.Errorf("got contact %s, want c1", contact.ID)
	}

	// Legacy row stored with formatting; contains fallback finds it
	err = s.CreateContact(&models.Contact{
		ID: "c2", Name: "Legacy", Phone: "+55 (11) 988880000",
		ColumnID: "leads", LastActivityAt: base, Status: "offline",
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	contact, err = s.FindContactByPhone("98888")
	if err != nil {
		t.Fatalf("contains lookup failed: %v", err)
	}
	if contact.ID != "c2" {
		t.Errorf("got contact %s, want c2", contact.ID)
	}

	if _, err := s.FindContactByPhone("000000"); err != ErrNotFound {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestAppendMessageDuplicateProviderID(t *testing.T) {
	s := newTestStore(t)
	seedContact(t, s, "c1", "leads", time.Now())

	providerID := "BAE5F1A2"
	first := &models.Message{
		ID: "m1", ContactID: "c1", Content: "oi",
		ProviderMessageID: &providerID, Timestamp: time.Now(),
	}
	if err := s.AppendMessage(first); err != nil {
		t.Fatalf("first append failed: %v", err)
	}

	dup := &models.Message{
		ID: "m2", ContactID: "c1", Content: "oi",
		ProviderMessageID: &providerID, Timestamp: time.Now(),
	}
	if err := s.AppendMessage(dup); err != ErrDuplicateKey {
		t.Errorf("got %v, want ErrDuplicateKey", err)
	}

	// Messages without provider ids never collide
	for _, id := range []string{"m3", "m4"} {
		if err := s.AppendMessage(&models.Message{
			ID: id, ContactID: "c1", Content: "sem provider", FromMe: true, Timestamp: time.Now(),
		}); err != nil {
			t.Fatalf("append %s failed: %v", id, err)
		}
	}
}

func TestListMessagesOrder(t *testing.T) {
	s := newTestStore(t)
	seedContact(t, s, "c1", "leads", time.Now())

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ids := []string{"m1", "m2", "m3"}
	for i, id := range ids {
		err := s.AppendMessage(&models.Message{
			ID: id, ContactID: "c1", Content: id,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	messages, err := s.ListMessages("c1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(messages))
	}
	for i, id := range ids {
		if messages[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, messages[i].ID, id)
		}
	}
}

func TestCountMessagesInRange(t *testing.T) {
	s := newTestStore(t)
	seedContact(t, s, "c1", "leads", time.Now())

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err := s.AppendMessage(&models.Message{
			ID: string(rune('a' + i)), ContactID: "c1", Content: "x",
			Timestamp: base.Add(time.Duration(i) * 24 * time.Hour),
		})
		if err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	count, err := s.CountMessages(base.Add(24*time.Hour), base.Add(3*24*time.Hour))
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("got count %d, want 3", count)
	}
}

func TestBoardViewOrderingAndCounts(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	seedContact(t, s, "old", "leads", base)
	seedContact(t, s, "new", "leads", base.Add(time.Hour))
	seedContact(t, s, "won", "ganhou", base)

	view, err := s.BoardView(nil)
	if err != nil {
		t.Fatalf("board view failed: %v", err)
	}
	if len(view) != 3 {
		t.Fatalf("got %d columns, want 3", len(view))
	}
	if view[0].ID != "leads" || view[1].ID != "negociando" || view[2].ID != "ganhou" {
		t.Errorf("columns out of display order: %s, %s, %s", view[0].ID, view[1].ID, view[2].ID)
	}

	leads := view[0]
	if leads.Count != 2 || len(leads.Items) != 2 {
		t.Fatalf("got leads count %d (%d items), want 2", leads.Count, len(leads.Items))
	}
	if leads.Items[0].ID != "new" {
		t.Errorf("most recent contact not at head: got %s", leads.Items[0].ID)
	}
	if view[1].Count != 0 || view[1].Items == nil {
		t.Errorf("empty column should carry zero count and empty items")
	}
}

func TestBoardViewEveryContactInExactlyOneColumn(t *testing.T) {
	s := newTestStore(t)
	base := time.Now()
	for _, id := range []string{"a", "b", "c"} {
		seedContact(t, s, id, "leads", base)
	}
	if err := s.MoveContact("b", "ganhou", base.Add(time.Minute)); err != nil {
		t.Fatalf("move failed: %v", err)
	}

	view, err := s.BoardView(nil)
	if err != nil {
		t.Fatalf("board view failed: %v", err)
	}

	appearances := make(map[string]int)
	for _, col := range view {
		for _, item := range col.Items {
			appearances[item.ID]++
		}
	}
	for _, id := range []string{"a", "b", "c"} {
		if appearances[id] != 1 {
			t.Errorf("contact %s appears %d times, want exactly 1", id, appearances[id])
		}
	}
}

func TestBoardViewCreationDateFilter(t *testing.T) {
	s := newTestStore(t)
	base := time.Now()
	seedContact(t, s, "c1", "leads", base)
	seedContact(t, s, "c2", "leads", base)

	// Push c1's creation date into the past
	db := s.db
	old := base.Add(-30 * 24 * time.Hour)
	if err := db.Model(&models.Contact{}).Where("id = ?", "c1").Update("created_at", old).Error; err != nil {
		t.Fatalf("backdate failed: %v", err)
	}

	from := base.Add(-time.Hour)
	view, err := s.BoardView(&BoardFilter{CreatedFrom: utils.Pointer(from)})
	if err != nil {
		t.Fatalf("board view failed: %v", err)
	}

	var total int
	for _, col := range view {
		total += col.Count
	}
	if total != 1 {
		t.Errorf("got %d contacts after filter, want 1", total)
	}
}
