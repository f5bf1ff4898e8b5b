package models

import (
	"time"

	"github.com/google/uuid"
)

// Роли пользователей клуба.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

// User — модель пользователя в системе.
// PasswordHash никогда не покидает сервисный слой: наружу отдаётся Public().
type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	Role         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser — представление пользователя без секретов.
// Именно его диспетчер прикрепляет к контексту запроса после аутентификации.
type PublicUser struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
	Role  string    `json:"role"`
}

// Public возвращает копию пользователя с вычищенными секретами.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	}
}
