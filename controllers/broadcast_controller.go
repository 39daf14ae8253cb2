package controller

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"zapflow/models"
	"zapflow/utils"
)

type BroadcastController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewBroadcastController(db *gorm.DB, logger *log.Logger) *BroadcastController {
	return &BroadcastController{
		DB:     db,
		Logger: logger,
	}
}

// CreateBroadcast creates a draft campaign targeting contacts by tag
// label. Delivery happens through the broadcast worker once started.
func (bc *BroadcastController) CreateBroadcast(c *fiber.Ctx) error {
	var input struct {
		Name        string     `json:"name" validate:"required,max=200"`
		Message     string     `json:"message" validate:"required"`
		TargetTags  []string   `json:"targetTags" validate:"required,min=1"`
		ScheduledAt *time.Time `json:"scheduledAt"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	broadcast := models.Broadcast{
		Name:        input.Name,
		Message:     input.Message,
		TargetTags:  strings.Join(input.TargetTags, ","),
		Status:      models.BroadcastStatusDraft,
		ScheduledAt: input.ScheduledAt,
	}
	if err := bc.DB.Create(&broadcast).Error; err != nil {
		bc.Logger.Printf("Failed to create broadcast: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create broadcast", nil)
	}

	return c.Status(fiber.StatusCreated).JSON(broadcast)
}

// GetBroadcasts lists campaigns, newest first.
func (bc *BroadcastController) GetBroadcasts(c *fiber.Ctx) error {
	var broadcasts []models.Broadcast
	if err := bc.DB.Order("created_at desc").Find(&broadcasts).Error; err != nil {
		bc.Logger.Printf("Failed to list broadcasts: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch broadcasts", nil)
	}
	return c.JSON(broadcasts)
}

// GetBroadcast returns one campaign with its recipient outcomes.
func (bc *BroadcastController) GetBroadcast(c *fiber.Ctx) error {
	var broadcast models.Broadcast
	err := bc.DB.Preload("Recipients").First(&broadcast, c.Params("id")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Broadcast not found", nil)
		}
		bc.Logger.Printf("Failed to fetch broadcast: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch broadcast", nil)
	}
	return c.JSON(broadcast)
}

// StartBroadcast schedules a draft for delivery. The worker picks it
// up on its next tick.
func (bc *BroadcastController) StartBroadcast(c *fiber.Ctx) error {
	var broadcast models.Broadcast
	if err := bc.DB.First(&broadcast, c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Broadcast not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch broadcast", nil)
	}

	if broadcast.Status != models.BroadcastStatusDraft {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Broadcast already started", nil)
	}

	updates := map[string]interface{}{"status": models.BroadcastStatusScheduled}
	if broadcast.ScheduledAt == nil {
		updates["scheduled_at"] = utils.Pointer(time.Now())
	}
	if err := bc.DB.Model(&broadcast).Updates(updates).Error; err != nil {
		bc.Logger.Printf("Failed to start broadcast %d: %v", broadcast.ID, err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to start broadcast", nil)
	}

	return c.JSON(fiber.Map{"success": true, "status": models.BroadcastStatusScheduled})
}
