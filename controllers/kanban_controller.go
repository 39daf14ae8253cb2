package controller

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"zapflow/core"
	"zapflow/store"
	"zapflow/utils"
)

type KanbanController struct {
	Core   *core.Core
	Logger *log.Logger
}

func NewKanbanController(syncCore *core.Core, logger *log.Logger) *KanbanController {
	return &KanbanController{
		Core:   syncCore,
		Logger: logger,
	}
}

// GetKanban returns the board projection. Optional from/to query
// params (RFC 3339 or YYYY-MM-DD) bound contacts by creation date;
// used by the reporting screens.
func (kc *KanbanController) GetKanban(c *fiber.Ctx) error {
	var filter *store.BoardFilter

	from, err := parseDateQuery(c.Query("from"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid from date", err)
	}
	to, err := parseDateQuery(c.Query("to"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid to date", err)
	}
	if from != nil || to != nil {
		filter = &store.BoardFilter{CreatedFrom: from, CreatedTo: to}
	}

	view, err := kc.Core.GetBoardView(filter)
	if err != nil {
		kc.Logger.Printf("Failed to build board view: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch board", nil)
	}
	return c.JSON(view)
}

// MoveCard handles a drag-and-drop move. The fresh board is returned
// in the response so the initiating client reconciles immediately.
func (kc *KanbanController) MoveCard(c *fiber.Ctx) error {
	var input struct {
		CardID      string `json:"cardId" validate:"required"`
		TargetColID string `json:"targetColId" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	view, err := kc.Core.MoveContact(input.CardID, input.TargetColID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Contact or column not found", err)
		}
		kc.Logger.Printf("Failed to move card %s: %v", input.CardID, err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to move card", nil)
	}

	return c.JSON(fiber.Map{"success": true, "data": view})
}

func parseDateQuery(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
