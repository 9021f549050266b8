package handlers

import (
	"net/http"
	"time"

	"github.com/Freeeeeet/office_hours/internal/model"
	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Name           string     `json:"name" binding:"required,max=200"`
	Email          string     `json:"email" binding:"required,email"`
	Password       string     `json:"password" binding:"required,min=6,max=72"`
	Role           model.Role `json:"role" binding:"required,user_role"`
	TelegramChatID *int64     `json:"telegram_chat_id"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// HandleRegister POST /api/auth/register
func (h *Handlers) HandleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.userService.RegisterUser(c.Request.Context(), req.Name, req.Email, req.Password, req.Role, req.TelegramChatID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.respondWithToken(c, http.StatusCreated, user)
}

// HandleLogin POST /api/auth/login
func (h *Handlers) HandleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.respondWithToken(c, http.StatusOK, user)
}

func (h *Handlers) respondWithToken(c *gin.Context, status int, user *model.User) {
	token, err := h.issuer.Issue(user)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(status, authResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		Token:     token.AccessToken,
		ExpiresAt: token.ExpiresAt,
	})
}
