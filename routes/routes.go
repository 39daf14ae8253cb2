package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"

	"zapflow/config"
	controller "zapflow/controllers"
	"zapflow/core"
	"zapflow/hub"
	"zapflow/middleware"
	"zapflow/store"
)

// SetupRoutes wires every endpoint to its controller.
func SetupRoutes(app *fiber.App, db *gorm.DB, syncCore *core.Core, fanout *hub.Hub, st store.Store) {
	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	setupAuthRoutes(app)
	// Registered ahead of the /api group so the webhook route matches
	// before the auth middleware does.
	setupRealtimeRoutes(app, syncCore, fanout)
	setupAPIRoutes(app, db, syncCore, st)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}

func setupAuthRoutes(app *fiber.App) {
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)

	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Get("/me", controller.GetCurrentUser)
}

func setupAPIRoutes(app *fiber.App, db *gorm.DB, syncCore *core.Core, st store.Store) {
	kanbanController := controller.NewKanbanController(syncCore, log.New(os.Stdout, "KANBAN: ", log.LstdFlags))
	messageController := controller.NewMessageController(syncCore, log.New(os.Stdout, "MESSAGE: ", log.LstdFlags))
	contactController := controller.NewContactController(syncCore, st, log.New(os.Stdout, "CONTACT: ", log.LstdFlags))
	broadcastController := controller.NewBroadcastController(db, log.New(os.Stdout, "BROADCAST: ", log.LstdFlags))

	api := app.Group("/api", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Kanban board
	api.Get("/kanban", kanbanController.GetKanban)
	api.Post("/kanban/move", kanbanController.MoveCard)

	// Contacts
	api.Post("/contacts", contactController.CreateContact)
	api.Get("/contacts", contactController.GetContacts)
	api.Get("/contacts/:id", contactController.GetContact)
	api.Get("/contacts/:id/messages", messageController.GetMessages)
	api.Post("/contacts/:id/read", messageController.MarkRead)

	// Messages (rate limited per operator)
	api.Post("/messages", middleware.SendRateLimiter(), messageController.SendMessage)

	// Broadcasts
	api.Post("/broadcasts", broadcastController.CreateBroadcast)
	api.Get("/broadcasts", broadcastController.GetBroadcasts)
	api.Get("/broadcasts/:id", broadcastController.GetBroadcast)
	api.Post("/broadcasts/:id/start", broadcastController.StartBroadcast)

	log.Println("API routes initialized successfully")
}

func setupRealtimeRoutes(app *fiber.App, syncCore *core.Core, fanout *hub.Hub) {
	webhookController := controller.NewWebhookController(
		syncCore,
		config.AppConfig.Evolution.WebhookToken,
		log.New(os.Stdout, "WEBHOOK: ", log.LstdFlags),
	)

	// Inbound pushes from the Evolution API; must stay reachable
	// without operator auth.
	app.Post("/api/webhooks/evolution", webhookController.HandleEvolutionWebhook)

	// Fan-out channel for board updates
	app.Get("/ws/board", websocket.New(controller.HandleBoardWS(fanout)))
}
