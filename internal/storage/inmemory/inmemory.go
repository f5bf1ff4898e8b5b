// inmemory — хранилище симулятора: мьютекс поверх карт.
//
// Методы отдают копии моделей, чтобы вызывающие не могли менять общее
// состояние в обход хранилища.
package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thiago-salvador/clubedolivro-sub001/internal/models"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/storage"
)

// Store реализует storage.Storage в памяти процесса.
type Store struct {
	mu         sync.RWMutex
	users      map[uuid.UUID]models.User
	emailIndex map[string]uuid.UUID
	students   map[uuid.UUID]models.Student
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{
		users:      make(map[uuid.UUID]models.User),
		emailIndex: make(map[string]uuid.UUID),
		students:   make(map[uuid.UUID]models.Student),
	}
}

func normEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SaveUser создаёт пользователя; email уникален.
func (s *Store) SaveUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normEmail(user.Email)
	if _, ok := s.emailIndex[key]; ok {
		return storage.ErrAlreadyExists
	}

	s.users[user.ID] = *user
	s.emailIndex[key] = user.ID
	return nil
}

// UserByEmail находит пользователя по email.
func (s *Store) UserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emailIndex[normEmail(email)]
	if !ok {
		return nil, storage.ErrNotFound
	}

	u := s.users[id]
	return &u, nil
}

// UserByID находит пользователя по ID.
func (s *Store) UserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	return &u, nil
}

// SaveStudent создаёт ученика.
func (s *Store) SaveStudent(_ context.Context, student *models.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.students[student.ID]; ok {
		return storage.ErrAlreadyExists
	}

	s.students[student.ID] = cloneStudent(*student)
	return nil
}

// StudentByID находит ученика по ID.
func (s *Store) StudentByID(_ context.Context, id uuid.UUID) (*models.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.students[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	st = cloneStudent(st)
	return &st, nil
}

// ListStudents возвращает страницу учеников, отсортированных по дате
// создания (старые первыми; при равенстве — по ID для стабильности).
func (s *Store) ListStudents(_ context.Context, limit, offset int) ([]models.Student, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]models.Student, 0, len(s.students))
	for _, st := range s.students {
		all = append(all, cloneStudent(st))
	}

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID.String() < all[j].ID.String()
	})

	total := len(all)
	if offset >= total {
		return []models.Student{}, total, nil
	}

	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}

	return all[offset:end], total, nil
}

// UpdateStudent сохраняет изменённого ученика.
func (s *Store) UpdateStudent(_ context.Context, student *models.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.students[student.ID]; !ok {
		return storage.ErrNotFound
	}

	up := cloneStudent(*student)
	up.UpdatedAt = time.Now().UTC()
	s.students[student.ID] = up
	return nil
}

// DeleteStudent удаляет ученика.
func (s *Store) DeleteStudent(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.students[id]; !ok {
		return storage.ErrNotFound
	}

	delete(s.students, id)
	return nil
}

// Close ничего не освобождает: хранилище живёт в памяти процесса.
func (s *Store) Close() {}

func cloneStudent(st models.Student) models.Student {
	tags := make([]string, len(st.Tags))
	copy(tags, st.Tags)
	st.Tags = tags
	return st
}
