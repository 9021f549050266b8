package handlers

import (
	"net/http"

	"github.com/Freeeeeet/office_hours/internal/auth"
	"github.com/gin-gonic/gin"
)

type bookRequest struct {
	AvailabilityID int64 `json:"availability_id" binding:"required,gt=0"`
	ProfessorID    int64 `json:"professor_id" binding:"required,gt=0"`
}

// HandleBookAppointment POST /api/appointments
func (h *Handlers) HandleBookAppointment(c *gin.Context) {
	actor, _ := auth.ActorFrom(c)

	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	appointment, err := h.bookingService.Book(c.Request.Context(), actor, req.ProfessorID, req.AvailabilityID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, appointment)
}

// HandleCancelAppointment PUT /api/appointments/:id/cancel
func (h *Handlers) HandleCancelAppointment(c *gin.Context) {
	actor, _ := auth.ActorFrom(c)

	appointmentID, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.bookingService.Cancel(c.Request.Context(), actor, appointmentID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "appointment cancelled successfully"})
}

// HandleStudentAppointments GET /api/appointments/student
func (h *Handlers) HandleStudentAppointments(c *gin.Context) {
	actor, _ := auth.ActorFrom(c)

	appointments, err := h.appointmentService.ListScheduled(c.Request.Context(), actor.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, appointments)
}

// HandleProfessorAppointments GET /api/appointments/professor
func (h *Handlers) HandleProfessorAppointments(c *gin.Context) {
	actor, _ := auth.ActorFrom(c)

	appointments, err := h.appointmentService.ListScheduledForProfessor(c.Request.Context(), actor.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, appointments)
}
