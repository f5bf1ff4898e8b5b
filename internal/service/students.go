package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thiago-salvador/clubedolivro-sub001/internal/models"
)

// Пределы пагинации списка учеников.
const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// CreateStudent создаёт ученика.
// Форму полей гарантирует ValidateRequest в цепочке маршрута; здесь —
// только нормализация и запись.
func (s *Service) CreateStudent(ctx context.Context, name, email, phone string) (*models.Student, error) {
	const op = "service.students.CreateStudent"

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	now := time.Now().UTC()
	student := &models.Student{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(name),
		Email:     normEmail,
		Phone:     strings.TrimSpace(phone),
		Tags:      []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.storage.SaveStudent(ctx, student); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return student, nil
}

// StudentByID возвращает ученика.
func (s *Service) StudentByID(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	const op = "service.students.StudentByID"

	student, err := s.storage.StudentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return student, nil
}

// ClampPage нормализует параметры пагинации к допустимым пределам.
// Используется и сервисом, и слоем handlers (для метаданных ответа).
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	return limit, offset
}

// ListStudents возвращает страницу учеников и общее количество.
func (s *Service) ListStudents(ctx context.Context, limit, offset int) ([]models.Student, int, error) {
	const op = "service.students.ListStudents"

	limit, offset = ClampPage(limit, offset)

	students, total, err := s.storage.ListStudents(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	return students, total, nil
}

// UpdateStudent обновляет непустые поля ученика.
func (s *Service) UpdateStudent(ctx context.Context, id uuid.UUID, name, email, phone string) (*models.Student, error) {
	const op = "service.students.UpdateStudent"

	student, err := s.storage.StudentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if name = strings.TrimSpace(name); name != "" {
		student.Name = name
	}

	if email = strings.TrimSpace(email); email != "" {
		normEmail, err := validateEmail(email)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
		}
		student.Email = normEmail
	}

	if phone = strings.TrimSpace(phone); phone != "" {
		student.Phone = phone
	}

	if err := s.storage.UpdateStudent(ctx, student); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return student, nil
}

// DeleteStudent удаляет ученика.
func (s *Service) DeleteStudent(ctx context.Context, id uuid.UUID) error {
	const op = "service.students.DeleteStudent"

	if err := s.storage.DeleteStudent(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// AttachTag добавляет тег ученику (идемпотентно).
func (s *Service) AttachTag(ctx context.Context, id uuid.UUID, tag string) (*models.Student, error) {
	const op = "service.students.AttachTag"

	tag = strings.TrimSpace(tag)

	student, err := s.storage.StudentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !slices.Contains(student.Tags, tag) {
		student.Tags = append(student.Tags, tag)
		if err := s.storage.UpdateStudent(ctx, student); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return student, nil
}

// DetachTag убирает тег у ученика (идемпотентно).
func (s *Service) DetachTag(ctx context.Context, id uuid.UUID, tag string) (*models.Student, error) {
	const op = "service.students.DetachTag"

	tag = strings.TrimSpace(tag)

	student, err := s.storage.StudentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if idx := slices.Index(student.Tags, tag); idx >= 0 {
		student.Tags = slices.Delete(student.Tags, idx, idx+1)
		if err := s.storage.UpdateStudent(ctx, student); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return student, nil
}
