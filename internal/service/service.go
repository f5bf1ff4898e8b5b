// service содержит бизнес-логику симулятора: регистрацию/вход пользователей,
// обновление и отзыв токенов, операции над учениками.
//
// Экземпляр Service не хранит состояние запроса и безопасен для конкурентного
// использования при потокобезопасном хранилище (storage.Storage). Ошибки
// возвращаются значениями и маппятся на конверт в слое handlers.
package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/thiago-salvador/clubedolivro-sub001/internal/cache"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/config"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/ratelimit"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/storage"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/token"
)

var (
	// ErrInvalidCredentials — пара email/пароль неверна или пользователь
	// не найден. Наружу: 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken — refresh-токен некорректен. Наружу: 401.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия refresh-токена истёк. Наружу: 401.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked — refresh-токен отозван (logout/ротация) и
	// недействителен независимо от срока. Наружу: 401.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrEmailTaken — e-mail уже занят. Наружу: 409.
	ErrEmailTaken = errors.New("email already taken")

	// ErrInvalidEmail — e-mail некорректного формата. Наружу: 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrWeakPassword — пароль не проходит политику сложности. Наружу: 400.
	ErrWeakPassword = errors.New("password is too weak")
)

// TooManyAttemptsError — сработал лимит попыток входа для пары email+IP.
// Наружу: 429 с retryAfter.
type TooManyAttemptsError struct {
	RetryAfter time.Duration
}

func (e *TooManyAttemptsError) Error() string {
	return fmt.Sprintf("too many login attempts, retry after %s", e.RetryAfter)
}

// Service описывает бизнес-логику симулятора.
type Service struct {
	storage      storage.Storage
	tokens       *token.Service
	cfg          config.AuthConfig
	rcache       cache.RevocationCache // может быть nil — отзыв отключён
	loginLimiter *ratelimit.Limiter    // может быть nil — вход без лимита
}

// New создаёт новый экземпляр Service.
func New(st storage.Storage, tokens *token.Service, cfg config.AuthConfig) *Service {
	return &Service{
		storage: st,
		tokens:  tokens,
		cfg:     cfg,
	}
}

// SetRevocationCache устанавливает кэш отозванных токенов (опционально).
func (s *Service) SetRevocationCache(c cache.RevocationCache) {
	s.rcache = c
}

// SetLoginLimiter устанавливает лимитер попыток входа (опционально).
func (s *Service) SetLoginLimiter(l *ratelimit.Limiter) {
	s.loginLimiter = l
}
