package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Freeeeeet/office_hours/internal/model"
	"github.com/Freeeeeet/office_hours/internal/repository/base"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserService регистрация и проверка учётных данных
type UserService struct {
	userRepo UserStore
	hashCost int
	logger   *zap.Logger
}

func NewUserService(userRepo UserStore, logger *zap.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		hashCost: bcrypt.DefaultCost,
		logger:   logger,
	}
}

// RegisterUser создаёт пользователя с указанной ролью
func (s *UserService) RegisterUser(ctx context.Context, name, email, password string, role model.Role, telegramChatID *int64) (*model.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	email = normalizeEmail(email)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Name:           strings.TrimSpace(name),
		Email:          email,
		PasswordHash:   string(hash),
		Role:           role,
		TelegramChatID: telegramChatID,
	}

	err = s.userRepo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, base.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("New user registered",
		zap.Int64("user_id", user.ID),
		zap.String("role", string(role)),
	)

	return user, nil
}

// Authenticate проверяет email и пароль
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
