package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"telepharmacy-server/internal/config"
	"telepharmacy-server/internal/handlers"
	"telepharmacy-server/internal/middleware"
	"telepharmacy-server/internal/models"
	"telepharmacy-server/internal/repository"
	"telepharmacy-server/internal/scheduling"
	"telepharmacy-server/internal/utils"
)

// Dependencies are the collaborators the routes are built from.
type Dependencies struct {
	Config        *config.Config
	Logger        *zap.Logger
	Users         repository.UserRepository
	RefreshTokens handlers.RefreshTokenStore
	Appointments  handlers.AppointmentService
	// Now drives the slot listing. Defaults to time.Now.
	Now func() time.Time
	// Gatherer backs /metrics. Defaults to the global registry.
	Gatherer     prometheus.Gatherer
	HealthChecks []handlers.HealthCheck
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	utils.RegisterValidators()
	cfg := deps.Config

	authHandler := handlers.NewAuthHandler(deps.Users, deps.RefreshTokens, cfg, deps.Logger)
	pharmacistHandler := handlers.NewPharmacistHandler(deps.Users, cfg.ClinicLocation, deps.Logger)
	if deps.Now != nil {
		pharmacistHandler.Now = deps.Now
	}
	appointmentHandler := handlers.NewAppointmentHandler(deps.Appointments, deps.Logger)
	videoHandler := handlers.NewVideoHandler(deps.Appointments, deps.Logger)
	healthHandler := handlers.NewHealthHandler(deps.HealthChecks...)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
		}
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg))
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/logout", authHandler.Logout)
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
			authRoutesPrivate.PUT("/profile", authHandler.UpdateProfile)
		}

		pharmacistRoutes := private.Group("/pharmacists")
		{
			pharmacistRoutes.GET("", pharmacistHandler.ListPharmacists)
			pharmacistRoutes.GET("/:id", pharmacistHandler.GetPharmacist)
			pharmacistRoutes.GET("/:id/slots", pharmacistHandler.GetSlots)
		}

		settingsRoutes := private.Group("/settings")
		settingsRoutes.Use(middleware.RoleAuthMiddleware(models.RolePharmacist))
		{
			settingsRoutes.GET("/availability", pharmacistHandler.GetAvailability)
			settingsRoutes.PUT("/availability", pharmacistHandler.UpdateAvailability)
		}

		appointmentRoutes := private.Group("/appointments")
		{
			appointmentRoutes.POST("", middleware.RoleAuthMiddleware(models.RolePatient), appointmentHandler.CreateAppointment)
			appointmentRoutes.GET("", appointmentHandler.GetAppointmentsForUser)
			appointmentRoutes.GET("/:id", appointmentHandler.GetAppointmentByID)

			// Who may apply each action is decided by the status machine.
			for _, action := range []scheduling.Action{
				scheduling.ActionConfirm,
				scheduling.ActionReject,
				scheduling.ActionCancel,
				scheduling.ActionStart,
				scheduling.ActionComplete,
			} {
				appointmentRoutes.PATCH("/:id/"+string(action), appointmentHandler.Transition(action))
			}

			appointmentRoutes.POST("/:id/join", appointmentHandler.JoinCall)
		}

		private.POST("/video/token", videoHandler.IssueToken)
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	router.GET("/health", healthHandler.Health)
}
