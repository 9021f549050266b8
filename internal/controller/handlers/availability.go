package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Freeeeeet/office_hours/internal/auth"
	"github.com/gin-gonic/gin"
)

type createAvailabilityRequest struct {
	StartTime time.Time `json:"start_time" binding:"required"`
	EndTime   time.Time `json:"end_time" binding:"required"`
}

// HandleCreateAvailability POST /api/availability
func (h *Handlers) HandleCreateAvailability(c *gin.Context) {
	actor, _ := auth.ActorFrom(c)

	var req createAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	availability, err := h.availabilityService.Publish(c.Request.Context(), actor, req.StartTime, req.EndTime)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, availability)
}

// HandleListProfessorAvailability GET /api/availability/professor/:id
func (h *Handlers) HandleListProfessorAvailability(c *gin.Context) {
	professorID, ok := pathID(c)
	if !ok {
		return
	}

	slots, err := h.availabilityService.ListOpenForProfessor(c.Request.Context(), professorID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, slots)
}

// pathID разбирает :id из пути, при ошибке отвечает 400
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Code:    CodeValidation,
			Message: "invalid id",
		})
		return 0, false
	}
	return id, true
}
