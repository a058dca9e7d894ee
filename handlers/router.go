package handlers

import (
	"time"

	"github.com/fenilmodi00/ipo-admin/database"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// AppOptions configures the reference API server
type AppOptions struct {
	Catalog database.Catalog
	Users   *UserRegistry
	// RequestLogging prints one access log line per request
	RequestLogging bool
}

// NewApp builds the reference IPO catalog API with the same routes and
// payloads as the production backend
func NewApp(options AppOptions) *fiber.App {
	if options.Catalog == nil {
		options.Catalog = database.NewMemoryCatalog()
	}
	if options.Users == nil {
		options.Users = NewUserRegistry()
	}

	app := fiber.New(fiber.Config{
		AppName:               "ipoadmin reference API",
		DisableStartupMessage: true,
		// the production backend routes "/api/ipo/" and "/api/ipo" alike
		StrictRouting: false,
	})

	app.Use(requestid.New())
	if options.RequestLogging {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
		}))
	}
	app.Use(cors.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	authHandler := NewAuthHandler(options.Users)
	ipoHandler := NewIPOHandler(options.Catalog)

	api := app.Group("/api")
	api.Post("/signup/", authHandler.Signup)
	api.Post("/login/", authHandler.Login)
	api.Post("/logout/", authHandler.RequireAuth, authHandler.Logout)

	ipo := api.Group("/ipo", authHandler.RequireAuth)
	ipo.Get("/paginated/", ipoHandler.ListCompanies)
	ipo.Get("/", ipoHandler.ListCompanies)
	ipo.Post("/", ipoHandler.CreateCompany)
	ipo.Get("/:id<int>/", ipoHandler.GetRound)
	ipo.Put("/:id<int>/", ipoHandler.UpdateRound)
	ipo.Delete("/:id<int>/", ipoHandler.DeleteRound)

	return app
}
