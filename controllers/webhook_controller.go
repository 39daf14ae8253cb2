package controller

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"

	"zapflow/core"
	"zapflow/utils"
)

type WebhookController struct {
	Core   *core.Core
	Logger *log.Logger

	// Token is the shared secret the provider sends in the apikey
	// header. Empty disables the check.
	Token string
}

func NewWebhookController(syncCore *core.Core, token string, logger *log.Logger) *WebhookController {
	return &WebhookController{
		Core:   syncCore,
		Logger: logger,
		Token:  token,
	}
}

// evolutionEnvelope is the inbound push shape the Evolution API sends.
// Field names vary between deployments (event vs eventType), so both
// are accepted.
type evolutionEnvelope struct {
	Event     string `json:"event"`
	EventType string `json:"eventType"`
	Data      struct {
		Key struct {
			RemoteJid string `json:"remoteJid"`
			FromMe    bool   `json:"fromMe"`
			ID        string `json:"id"`
		} `json:"key"`
		PushName         string `json:"pushName"`
		MessageTimestamp int64  `json:"messageTimestamp"`
		Message          struct {
			Conversation        string `json:"conversation"`
			ExtendedTextMessage struct {
				Text string `json:"text"`
			} `json:"extendedTextMessage"`
			ImageMessage struct {
				URL     string `json:"url"`
				Caption string `json:"caption"`
			} `json:"imageMessage"`
			AudioMessage struct {
				URL string `json:"url"`
			} `json:"audioMessage"`
		} `json:"message"`
	} `json:"data"`
}

// errIgnoredEvent marks payloads that are valid but not for us: status
// events, our own outbound echoes, and so on.
var errIgnoredEvent = errors.New("ignored event")

// HandleEvolutionWebhook processes inbound pushes from the messaging
// network. It always acknowledges 200 — internal failures are logged
// and reported, never propagated to the provider, which would retry
// the delivery in a storm.
func (wc *WebhookController) HandleEvolutionWebhook(c *fiber.Ctx) error {
	if wc.Token != "" && c.Get("apikey") != wc.Token {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	inbound, err := normalizeInbound(c.Body())
	if err != nil {
		if errors.Is(err, core.ErrMalformedPayload) {
			wc.Logger.Printf("Malformed webhook payload: %v", err)
		}
		return c.SendStatus(fiber.StatusOK)
	}

	if _, err := wc.Core.RecordInboundMessage(inbound); err != nil {
		switch {
		case errors.Is(err, core.ErrDuplicateDelivery):
			// Redelivery of an already-recorded message; ack as success.
		case errors.Is(err, core.ErrMalformedPayload):
			wc.Logger.Printf("Malformed webhook payload: %v", err)
		default:
			wc.Logger.Printf("Webhook processing failed: %v", err)
			sentry.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("webhook", "evolution")
				scope.SetExtra("provider_message_id", inbound.ProviderMessageID)
				sentry.CaptureException(err)
			})
		}
	}

	return c.SendStatus(fiber.StatusOK)
}

// normalizeInbound reduces an Evolution envelope to the fields the
// core needs. Returns errIgnoredEvent for payloads that should be
// acknowledged and skipped, core.ErrMalformedPayload for payloads
// that should have been messages but are missing required fields.
func normalizeInbound(body []byte) (core.InboundMessage, error) {
	var in core.InboundMessage

	if len(body) == 0 {
		return in, errIgnoredEvent
	}

	var envelope evolutionEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return in, core.ErrMalformedPayload
	}

	event := envelope.EventType
	if event == "" {
		event = envelope.Event
	}
	if event != "messages.upsert" && event != "MESSAGES_UPSERT" {
		return in, errIgnoredEvent
	}
	if envelope.Data.Key.FromMe {
		return in, errIgnoredEvent
	}

	if envelope.Data.Key.RemoteJid == "" || envelope.Data.Key.ID == "" {
		return in, core.ErrMalformedPayload
	}

	msg := envelope.Data.Message
	content := msg.Conversation
	if content == "" {
		content = msg.ExtendedTextMessage.Text
	}

	mediaURL, mediaType := "", ""
	switch {
	case msg.ImageMessage.URL != "":
		mediaURL, mediaType = msg.ImageMessage.URL, "image"
		if content == "" {
			content = msg.ImageMessage.Caption
		}
	case msg.AudioMessage.URL != "":
		mediaURL, mediaType = msg.AudioMessage.URL, "audio"
	}

	if content == "" && mediaURL == "" {
		return in, core.ErrMalformedPayload
	}

	in = core.InboundMessage{
		ProviderMessageID: envelope.Data.Key.ID,
		Phone:             utils.PhoneFromJID(envelope.Data.Key.RemoteJid),
		SenderName:        envelope.Data.PushName,
		Content:           content,
		MediaURL:          mediaURL,
		MediaType:         mediaType,
	}
	if envelope.Data.MessageTimestamp > 0 {
		in.Timestamp = time.Unix(envelope.Data.MessageTimestamp, 0)
	}
	return in, nil
}
