package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tcn-network/banshare-api/internal/config"
	"github.com/tcn-network/banshare-api/internal/handlers"
	"github.com/tcn-network/banshare-api/internal/middleware"
	"github.com/tcn-network/banshare-api/internal/services"
)

// Limiters counts successful requests per user.
type Limiters struct {
	PostBanshare   fiber.Handler
	EditBanshare   fiber.Handler
	ReportBanshare fiber.Handler
}

// NewLimiters builds the banshare rate limiters. storage may be nil, which
// keeps counters in process memory.
func NewLimiters(storage fiber.Storage) Limiters {
	return Limiters{
		PostBanshare:   middleware.RateLimit("post-banshare", 2, time.Minute, storage),
		EditBanshare:   middleware.RateLimit("edit-banshare", 2, 3*time.Second, storage),
		ReportBanshare: middleware.RateLimit("report-banshare", 1, 15*time.Second, storage),
	}
}

func Setup(
	app *fiber.App,
	cfg *config.Config,
	perms *services.PermissionService,
	limiters Limiters,
	healthHandler *handlers.HealthHandler,
	banshareHandler *handlers.BanshareHandler,
	settingsHandler *handlers.SettingsHandler,
) {
	app.Get("/health", healthHandler.Check)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1", middleware.JWTProtected(cfg))

	observer := middleware.RequireObserver(perms)
	council := middleware.RequireCouncil(perms)
	executor := middleware.RequireGuildExecutor(perms)
	owner := middleware.RequireGuildOwner(perms)

	scope := middleware.RequireScope

	b := api.Group("/banshares")

	// Static segments first so they are not captured by /:message.
	b.Post("/", scope("banshares/create"), limiters.PostBanshare, banshareHandler.Create)
	b.Get("/pending", council, scope("banshares/read"), banshareHandler.Pending)
	b.Get("/guilds", observer, scope("banshares/manage"), settingsHandler.List)

	b.Get("/settings/logs/:guild", owner, scope("banshares/settings"), settingsHandler.Logs)
	b.Put("/settings/logs/:guild/:channel", owner, scope("banshares/settings"), settingsHandler.AddLog)
	b.Delete("/settings/logs/:guild/:channel", owner, scope("banshares/settings"), settingsHandler.RemoveLog)
	b.Get("/settings/:guild", executor, scope("banshares/settings"), settingsHandler.Get)
	b.Patch("/settings/:guild", owner, scope("banshares/settings"), settingsHandler.Update)

	b.Post("/report/:message", scope("banshares/report"), limiters.ReportBanshare, banshareHandler.Report)

	b.Get("/:message", scope("banshares/read"), banshareHandler.Get)
	b.Delete("/:message", observer, scope("banshares/manage"), banshareHandler.Delete)
	b.Patch("/:message/severity/:severity", observer, scope("banshares/manage"), limiters.EditBanshare, banshareHandler.ChangeSeverity)
	b.Post("/:message/reject", observer, scope("banshares/manage"), limiters.EditBanshare, banshareHandler.Reject)
	b.Post("/:message/publish", observer, scope("banshares/manage"), limiters.EditBanshare, banshareHandler.Publish)
	b.Post("/:message/rescind", observer, scope("banshares/manage"), limiters.EditBanshare, banshareHandler.Rescind)
	b.Post("/:message/execute/:guild", executor, scope("banshares/execute"), limiters.EditBanshare, banshareHandler.Execute)
	b.Get("/:message/crossposts", observer, scope("banshares/read"), banshareHandler.Crossposts)
	b.Put("/:message/crossposts", observer, scope("banshares/manage"), banshareHandler.RegisterCrossposts)
	b.Get("/:message/crossposts/:guild", scope("banshares/read"), banshareHandler.Crosspost)
	b.Get("/:message/autoban/:guild", observer, scope("banshares/read"), banshareHandler.Autoban)
}
