package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/Freeeeeet/office_hours/internal/auth"
	"github.com/Freeeeeet/office_hours/internal/controller/handlers"
	"github.com/Freeeeeet/office_hours/internal/controller/middleware"
	"github.com/Freeeeeet/office_hours/internal/metrics"
	"github.com/Freeeeeet/office_hours/internal/model"
	"github.com/Freeeeeet/office_hours/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthCheck проверка одной внешней зависимости
type HealthCheck func(ctx context.Context) error

// Dependencies всё, что нужно HTTP слою
type Dependencies struct {
	UserService         *service.UserService
	AvailabilityService *service.AvailabilityService
	BookingService      *service.BookingService
	AppointmentService  *service.AppointmentService
	Issuer              *auth.Issuer

	// Limiter может быть nil, тогда ограничение выключено
	Limiter        middleware.Limiter
	Metrics        *metrics.Recorder
	MetricsHandler http.Handler
	HealthChecks   map[string]HealthCheck
	Logger         *zap.Logger
}

// NewRouter собирает gin движок со всеми маршрутами
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := handlers.RegisterValidators(); err != nil {
		return nil, err
	}

	h := handlers.NewHandlers(
		deps.UserService,
		deps.AvailabilityService,
		deps.BookingService,
		deps.AppointmentService,
		deps.Issuer,
		deps.Logger,
	)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(deps.Logger, deps.Metrics, "/healthz", "/metrics"))

	r.GET("/healthz", healthHandler(deps.HealthChecks))
	if deps.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	api := r.Group("/api")
	if deps.Limiter != nil {
		api.Use(middleware.RateLimit(deps.Limiter, deps.Logger))
	}

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.HandleRegister)
		authGroup.POST("/login", h.HandleLogin)
	}

	protected := api.Group("")
	protected.Use(auth.Authenticate(deps.Issuer))

	availability := protected.Group("/availability")
	{
		availability.POST("", auth.RequireRole(model.RoleProfessor), h.HandleCreateAvailability)
		availability.GET("/professor/:id", h.HandleListProfessorAvailability)
	}

	appointments := protected.Group("/appointments")
	{
		appointments.POST("", auth.RequireRole(model.RoleStudent), h.HandleBookAppointment)
		appointments.PUT("/:id/cancel", auth.RequireRole(model.RoleProfessor), h.HandleCancelAppointment)
		appointments.GET("/student", auth.RequireRole(model.RoleStudent), h.HandleStudentAppointments)
		appointments.GET("/professor", auth.RequireRole(model.RoleProfessor), h.HandleProfessorAppointments)
	}

	return r, nil
}

func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		result := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				result[name] = err.Error()
				continue
			}
			result[name] = "ok"
		}

		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": result})
	}
}
