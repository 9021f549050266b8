package model

import "time"

type Role string

const (
	RoleStudent   Role = "student"
	RoleProfessor Role = "professor"
)

// Valid проверяет что роль известна
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleProfessor
}

type User struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Role           Role      `json:"role"`
	TelegramChatID *int64    `json:"telegram_chat_id,omitempty"` // nil - уведомления не отправляются
	CreatedAt      time.Time `json:"created_at"`
}

func (u *User) IsProfessor() bool {
	return u.Role == RoleProfessor
}

// Summary возвращает публичную часть профиля
func (u *User) Summary() *UserSummary {
	return &UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

// UserSummary денормализованные данные пользователя для выдачи в списках
type UserSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Actor аутентифицированный участник запроса
type Actor struct {
	ID   int64
	Role Role
}
