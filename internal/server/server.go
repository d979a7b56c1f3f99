package server

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/waypointhq/waypoint/internal/config"
	"github.com/waypointhq/waypoint/internal/domain"
	"github.com/waypointhq/waypoint/internal/handler"
	"github.com/waypointhq/waypoint/internal/infrastructure/nominatim"
	"github.com/waypointhq/waypoint/internal/middleware"
	"github.com/waypointhq/waypoint/internal/repository"
	"github.com/waypointhq/waypoint/internal/service"
	"github.com/waypointhq/waypoint/internal/telemetry"
)

// AppDependencies holds the dependencies required to start the application
type AppDependencies struct {
	Config      *config.Config
	MongoDB     *mongo.Database
	RedisClient *redis.Client
	ObjectStore domain.ObjectStore
}

// NewApp creates and configures the Fiber application with the given dependencies
func NewApp(deps AppDependencies) *fiber.App {
	// Initialize repositories
	locationRepo := repository.NewMongoLocationRepository(deps.MongoDB)
	geocodeCache := repository.NewRedisGeocodeCache(deps.RedisClient)

	// Geocoding client with Redis-backed result cache
	geocoder := repository.NewCachedGeocoder(
		nominatim.NewClient(deps.Config.Geocoder),
		geocodeCache,
	)

	// Initialize services
	locationService := service.NewLocationService(locationRepo, geocoder, deps.ObjectStore)

	// Initialize handlers
	locationHandler := handler.NewLocationHandler(locationService)

	// Create Fiber app. The body limit is derived from the bucket's upload
	// ceiling plus slack for multipart framing; the store's own check on
	// the file size remains the authoritative limit.
	app := fiber.New(fiber.Config{
		AppName:      "Waypoint API",
		BodyLimit:    int(domain.LocationImagesBucket.MaxSizeBytes) + (1 << 20),
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Correlation-ID",
		AllowMethods: "GET, POST, PATCH, DELETE, OPTIONS",
	}))
	if deps.Config.OTEL.Enabled {
		app.Use(telemetry.FiberMiddleware())
	}

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "waypoint-api",
		})
	})

	// API v1 routes
	v1 := app.Group("/v1")

	locations := v1.Group("/locations")
	locations.Use(middleware.VerifyAccessToken(deps.Config.JWT.Secret))
	locations.Post("/", locationHandler.CreateLocation)
	locations.Get("/", locationHandler.ListLocations)
	locations.Get("/:id", locationHandler.GetLocation)
	locations.Patch("/:id", locationHandler.UpdateLocation)
	locations.Delete("/:id", locationHandler.DeleteLocation)

	return app
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	log.Printf("Error: %v", err)
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
