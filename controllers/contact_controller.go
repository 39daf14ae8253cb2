package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"zapflow/core"
	"zapflow/models"
	"zapflow/store"
	"zapflow/utils"
)

type ContactController struct {
	Core   *core.Core
	Store  store.Store
	Logger *log.Logger
}

func NewContactController(syncCore *core.Core, st store.Store, logger *log.Logger) *ContactController {
	return &ContactController{
		Core:   syncCore,
		Store:  st,
		Logger: logger,
	}
}

// CreateContact explicitly creates a contact on the board.
func (cc *ContactController) CreateContact(c *fiber.Ctx) error {
	var input struct {
		Name       string `json:"name" validate:"required,max=200"`
		Phone      string `json:"phone" validate:"required"`
		AvatarURL  string `json:"avatarUrl"`
		Status     string `json:"status" validate:"omitempty,oneof=online offline"`
		ColumnID   string `json:"columnId"`
		AssignedTo string `json:"assignedTo"`
		Tags       []struct {
			Color string `json:"color" validate:"required,oneof=red green blue yellow gray"`
			Label string `json:"label"`
		} `json:"tags" validate:"dive"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	tags := make([]models.Tag, 0, len(input.Tags))
	for _, t := range input.Tags {
		tags = append(tags, models.Tag{Color: t.Color, Label: t.Label})
	}

	contact, err := cc.Core.CreateContact(core.CreateContactInput{
		Name:       input.Name,
		Phone:      utils.NormalizePhone(input.Phone),
		AvatarURL:  input.AvatarURL,
		Status:     input.Status,
		ColumnID:   input.ColumnID,
		AssignedTo: input.AssignedTo,
		Tags:       tags,
	})
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Column not found", err)
		}
		cc.Logger.Printf("Failed to create contact: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create contact", nil)
	}

	return c.Status(fiber.StatusCreated).JSON(contact)
}

// GetContacts lists contacts by recency, optionally filtered by a
// name/phone search term.
func (cc *ContactController) GetContacts(c *fiber.Ctx) error {
	contacts, err := cc.Store.ListContacts(c.Query("search"))
	if err != nil {
		cc.Logger.Printf("Failed to list contacts: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch contacts", nil)
	}
	return c.JSON(contacts)
}

// GetContact returns one contact with its tags.
func (cc *ContactController) GetContact(c *fiber.Ctx) error {
	contact, err := cc.Store.GetContact(c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Contact not found", nil)
		}
		cc.Logger.Printf("Failed to fetch contact: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch contact", nil)
	}
	return c.JSON(contact)
}
