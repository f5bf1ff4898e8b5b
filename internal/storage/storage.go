// storage задаёт контракты хранилища симулятора.
//
// Шлюз — dev-заглушка реального бэкенда, поэтому долговечность не требуется:
// рабочая реализация лежит в storage/inmemory. Контракты при этом повторяют
// форму настоящего хранилища, чтобы обработчики не зависели от того, что за
// ними — карта в памяти или база.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/thiago-salvador/clubedolivro-sub001/internal/models"
)

var (
	// ErrNotFound — запись не найдена (пользователь/ученик).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email).
	ErrAlreadyExists = errors.New("already exists")
)

// UserStorage выполняет операции над пользователями.
// UserByEmail — контракт user-lookup, который потребляет аутентификация.
type UserStorage interface {
	// SaveUser создаёт нового пользователя.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail находит пользователя по email (нормализованному).
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// StudentStorage выполняет операции над учениками.
type StudentStorage interface {
	// SaveStudent создаёт нового ученика.
	SaveStudent(ctx context.Context, student *models.Student) error
	// StudentByID находит ученика по ID.
	StudentByID(ctx context.Context, id uuid.UUID) (*models.Student, error)
	// ListStudents возвращает страницу учеников и общее количество.
	ListStudents(ctx context.Context, limit, offset int) ([]models.Student, int, error)
	// UpdateStudent сохраняет изменённого ученика.
	UpdateStudent(ctx context.Context, student *models.Student) error
	// DeleteStudent удаляет ученика.
	DeleteStudent(ctx context.Context, id uuid.UUID) error
}

// Storage задаёт полный контракт хранилища.
type Storage interface {
	UserStorage
	StudentStorage
	Close()
}
