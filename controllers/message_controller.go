package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"zapflow/core"
	"zapflow/utils"
)

type MessageController struct {
	Core   *core.Core
	Logger *log.Logger
}

func NewMessageController(syncCore *core.Core, logger *log.Logger) *MessageController {
	return &MessageController{
		Core:   syncCore,
		Logger: logger,
	}
}

// SendMessage delivers a message through the WhatsApp gateway and
// records it. Delivery happens before persistence: a gateway failure
// leaves no record and the client restores the typed text.
func (mc *MessageController) SendMessage(c *fiber.Ctx) error {
	var input struct {
		ContactID string `json:"contactId" validate:"required"`
		Content   string `json:"content" validate:"required_without=MediaURL"`
		MediaURL  string `json:"mediaUrl"`
		MediaType string `json:"mediaType" validate:"omitempty,oneof=image video audio document"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	msg, err := mc.Core.RecordOutboundMessage(input.ContactID, input.Content, input.MediaURL, input.MediaType)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNotFound):
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Contact not found", err)
		case errors.Is(err, core.ErrGatewayDelivery):
			mc.Logger.Printf("Gateway delivery failed for contact %s: %v", input.ContactID, err)
			return utils.ErrorResponse(c, fiber.StatusBadGateway, "Failed to deliver message", err)
		default:
			mc.Logger.Printf("Failed to record outbound message: %v", err)
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to send message", nil)
		}
	}

	return c.JSON(msg)
}

// GetMessages returns a contact's message history in append order.
func (mc *MessageController) GetMessages(c *fiber.Ctx) error {
	contactID := c.Params("id")

	messages, err := mc.Core.GetMessages(contactID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Contact not found", err)
		}
		mc.Logger.Printf("Failed to fetch messages for %s: %v", contactID, err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch messages", nil)
	}
	return c.JSON(messages)
}

// MarkRead zeroes the contact's unread counter.
func (mc *MessageController) MarkRead(c *fiber.Ctx) error {
	contactID := c.Params("id")

	if err := mc.Core.MarkRead(contactID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Contact not found", err)
		}
		mc.Logger.Printf("Failed to mark %s read: %v", contactID, err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to mark as read", nil)
	}
	return c.JSON(fiber.Map{"success": true})
}
