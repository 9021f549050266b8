package handlers

import (
	"github.com/Freeeeeet/office_hours/internal/auth"
	"github.com/Freeeeeet/office_hours/internal/model"
	"github.com/Freeeeeet/office_hours/internal/service"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Handlers содержит все зависимости для обработки HTTP запросов
type Handlers struct {
	userService         *service.UserService
	availabilityService *service.AvailabilityService
	bookingService      *service.BookingService
	appointmentService  *service.AppointmentService
	issuer              *auth.Issuer
	logger              *zap.Logger
}

// NewHandlers создаёт обработчики запросов
func NewHandlers(
	userService *service.UserService,
	availabilityService *service.AvailabilityService,
	bookingService *service.BookingService,
	appointmentService *service.AppointmentService,
	issuer *auth.Issuer,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		userService:         userService,
		availabilityService: availabilityService,
		bookingService:      bookingService,
		appointmentService:  appointmentService,
		issuer:              issuer,
		logger:              logger,
	}
}

// RegisterValidators добавляет собственные теги валидации в движок gin
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
		return model.Role(fl.Field().String()).Valid()
	})
}
