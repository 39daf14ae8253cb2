package controller

import (
	"bytes"
	"errors"
	"log"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"zapflow/core"
	"zapflow/models"
	"zapflow/store"
)

func TestNormalizeInboundText(t *testing.T) {
	body := []byte(`{
		"event": "messages.upsert",
		"data": {
			"key": {"remoteJid": "553199999999@s.whatsapp.net", "fromMe": false, "id": "BAE5ABCD"},
			"pushName": "Maria",
			"messageTimestamp": 1718000000,
			"message": {"conversation": "Tenho interesse"}
		}
	}`)

	in, err := normalizeInbound(body)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if in.Phone != "553199999999" {
		t.Errorf("got phone %q, want 553199999999", in.Phone)
	}
	if in.ProviderMessageID != "BAE5ABCD" {
		t.Errorf("got provider id %q", in.ProviderMessageID)
	}
	if in.Content != "Tenho interesse" {
		t.Errorf("got content %q", in.Content)
	}
	if in.SenderName != "Maria" {
		t.Errorf("got sender %q", in.SenderName)
	}
	if in.Timestamp.Unix() != 1718000000 {
		t.Errorf("got timestamp %v", in.Timestamp)
	}
}

func TestNormalizeInboundExtendedTextAndEventVariants(t *testing.T) {
	body := []byte(`{
		"eventType": "MESSAGES_UPSERT",
		"data": {
			"key": {"remoteJid": "5511988880000@s.whatsapp.net", "id": "BAE5EF01"},
			"message": {"extendedTextMessage": {"text": "link: https://x"}}
		}
	}`)

	in, err := normalizeInbound(body)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if in.Content != "link: https://x" {
		t.Errorf("got content %q", in.Content)
	}
}

func TestNormalizeInboundImage(t *testing.T) {
	body := []byte(`{
		"event": "messages.upsert",
		"data": {
			"key": {"remoteJid": "5511988880000@s.whatsapp.net", "id": "BAE5EF02"},
			"message": {"imageMessage": {"url": "https://cdn/img.jpg", "caption": "olha isso"}}
		}
	}`)

	in, err := normalizeInbound(body)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if in.MediaURL != "https://cdn/img.jpg" || in.MediaType != "image" {
		t.Errorf("media not extracted: %+v", in)
	}
	if in.Content != "olha isso" {
		t.Errorf("caption not used as content: %q", in.Content)
	}
}

func TestNormalizeInboundSkipsAndRejects(t *testing.T) {
	cases := []struct {
		name string
		body string
		want error
	}{
		{"empty body", ``, errIgnoredEvent},
		{"other event", `{"event": "connection.update", "data": {}}`, errIgnoredEvent},
		{"own echo", `{"event": "messages.upsert", "data": {"key": {"remoteJid": "x@s.whatsapp.net", "fromMe": true, "id": "B1"}, "message": {"conversation": "oi"}}}`, errIgnoredEvent},
		{"not json", `<?xml version="1.0"?>`, core.ErrMalformedPayload},
		{"no remote jid", `{"event": "messages.upsert", "data": {"key": {"id": "B1"}, "message": {"conversation": "oi"}}}`, core.ErrMalformedPayload},
		{"no provider id", `{"event": "messages.upsert", "data": {"key": {"remoteJid": "x@s.whatsapp.net"}, "message": {"conversation": "oi"}}}`, core.ErrMalformedPayload},
		{"no content", `{"event": "messages.upsert", "data": {"key": {"remoteJid": "x@s.whatsapp.net", "id": "B1"}, "message": {}}}`, core.ErrMalformedPayload},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := normalizeInbound([]byte(tc.body))
			if !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

type noopGateway struct{}

func (noopGateway) SendText(phone, text string) error                     { return nil }
func (noopGateway) SendMedia(phone, url, mediaType, caption string) error { return nil }

type noopPublisher struct{}

func (noopPublisher) PublishBoard(models.BoardView) {}
func (noopPublisher) PublishMessage(models.Message) {}

func newWebhookApp(t *testing.T) (*fiber.App, store.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.Column{}, &models.Contact{}, &models.Tag{}, &models.Message{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if err := db.Create(&models.Column{ID: "leads", Title: "Leads"}).Error; err != nil {
		t.Fatalf("failed to seed: %v", err)
	}

	st := store.NewGormStore(db)
	syncCore := core.New(st, noopGateway{}, noopPublisher{}, "leads", log.New(os.Stdout, "TEST: ", log.LstdFlags))
	wc := NewWebhookController(syncCore, "", log.New(os.Stdout, "WEBHOOK: ", log.LstdFlags))

	app := fiber.New()
	app.Post("/api/webhooks/evolution", wc.HandleEvolutionWebhook)
	return app, st
}

func postWebhook(t *testing.T, app *fiber.App, body string) int {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/webhooks/evolution", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp.StatusCode
}

func TestWebhookAlwaysAcknowledges(t *testing.T) {
	app, _ := newWebhookApp(t)

	bodies := []string{
		``,                    // empty
		`not even json`,       // garbage
		`{"event": "other"}`,  // unrecognized event
		`{"event": "messages.upsert", "data": {"key": {}}}`, // malformed message
	}
	for i, body := range bodies {
		if status := postWebhook(t, app, body); status != fiber.StatusOK {
			t.Errorf("case %d: got status %d, want 200", i, status)
		}
	}
}

func TestWebhookRecordsMessageAndDeduplicatesRedelivery(t *testing.T) {
	app, st := newWebhookApp(t)

	body := `{
		"event": "messages.upsert",
		"data": {
			"key": {"remoteJid": "5511999990000@s.whatsapp.net", "id": "BAE5DEDUP"},
			"pushName": "Maria",
			"message": {"conversation": "oi"}
		}
	}`

	if status := postWebhook(t, app, body); status != fiber.StatusOK {
		t.Fatalf("first delivery: got status %d", status)
	}
	// Provider redelivers the same push
	if status := postWebhook(t, app, body); status != fiber.StatusOK {
		t.Fatalf("redelivery: got status %d", status)
	}

	contact, err := st.FindContactByPhone("5511999990000")
	if err != nil {
		t.Fatalf("contact not created: %v", err)
	}
	messages, err := st.ListMessages(contact.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(messages) != 1 {
		t.Errorf("got %d messages after redelivery, want 1", len(messages))
	}
	if contact.UnreadCount != 1 {
		t.Errorf("got unread %d after redelivery, want 1", contact.UnreadCount)
	}
}

func TestWebhookTokenCheck(t *testing.T) {
	app := fiber.New()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	st := store.NewGormStore(db)
	syncCore := core.New(st, noopGateway{}, noopPublisher{}, "leads", log.New(os.Stdout, "TEST: ", log.LstdFlags))
	wc := NewWebhookController(syncCore, "secret", log.New(os.Stdout, "WEBHOOK: ", log.LstdFlags))
	app.Post("/api/webhooks/evolution", wc.HandleEvolutionWebhook)

	req := httptest.NewRequest("POST", "/api/webhooks/evolution", bytes.NewReader([]byte(`{}`)))
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("got status %d without token, want 401", resp.StatusCode)
	}

	req = httptest.NewRequest("POST", "/api/webhooks/evolution", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("apikey", "secret")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("got status %d with token, want 200", resp.StatusCode)
	}
}
