package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/thiago-salvador/clubedolivro-sub001/internal/models"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/pkg/log"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/pkg/redact"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/storage"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/token"
)

// RegisterUser регистрирует нового пользователя и выдаёт пару токенов.
func (s *Service) RegisterUser(ctx context.Context, email, password, name string) (*models.TokenPair, *models.PublicUser, error) {
	const op = "service.auth.RegisterUser"

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if err := validatePassword(password); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.storage.UserByEmail(ctx, normEmail)
	if err == nil {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	hashed, err := hashPassword(password)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Email:        normEmail,
		Name:         strings.TrimSpace(name),
		Role:         models.RoleStudent,
		PasswordHash: hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.tokens.IssuePair(user, now)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, user.Public(), nil
}

// LoginUser выполняет вход по email+пароль.
//
// clientIP участвует в ключе лимитера попыток: лимит действует на пару
// email+IP, а не на IP целиком, чтобы злоумышленник не мог выбить лимит
// чужому адресу. Причина отказа (нет пользователя / неверный пароль)
// наружу неразличима.
func (s *Service) LoginUser(ctx context.Context, email, password, clientIP string) (*models.TokenPair, *models.PublicUser, error) {
	const op = "service.auth.LoginUser"

	lg := log.From(ctx)

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if s.loginLimiter != nil {
		if d := s.loginLimiter.Check(normEmail + "|" + clientIP); !d.Allowed {
			lg.Warn("login_throttled",
				slog.String("op", op),
				slog.String("email", redact.Email(normEmail)),
			)
			return nil, nil, fmt.Errorf("%s: %w", op, &TooManyAttemptsError{RetryAfter: d.RetryAfter})
		}
	}

	if len(password) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.storage.UserByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, password) {
		lg.Warn("login_wrong_password",
			slog.String("op", op),
			slog.String("user_id", user.ID.String()),
		)
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	pair, err := s.tokens.IssuePair(user, time.Now().UTC())
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, user.Public(), nil
}

// RefreshToken обновляет пару токенов по refresh-токену с ротацией:
// предъявленный токен отзывается до конца своего срока, выдаётся новая пара.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	const op = "service.auth.RefreshToken"

	lg := log.From(ctx)

	claims, err := s.verifyRefresh(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	uid, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	user, err := s.storage.UserByID(ctx, uid)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("refresh_user_gone",
				slog.String("op", op),
				slog.String("user_id", uid.String()),
			)
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.revokeClaims(ctx, claims); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.tokens.IssuePair(user, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, nil
}

// RevokeToken отзывает refresh-токен (logout).
func (s *Service) RevokeToken(ctx context.Context, refreshToken string) error {
	const op = "service.auth.RevokeToken"

	claims, err := s.verifyRefresh(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.revokeClaims(ctx, claims); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// verifyRefresh проверяет подпись/срок/тип токена и статус отзыва.
func (s *Service) verifyRefresh(ctx context.Context, refreshToken string) (*token.Claims, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}

		return nil, ErrInvalidToken
	}

	if s.rcache != nil {
		revoked, err := s.rcache.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, err
		}

		if revoked {
			log.From(ctx).Warn("refresh_revoked",
				slog.String("user_id", claims.UserID),
			)
			return nil, ErrTokenRevoked
		}
	}

	return claims, nil
}

// revokeClaims помечает jti отозванным до естественного истечения токена.
func (s *Service) revokeClaims(ctx context.Context, claims *token.Claims) error {
	if s.rcache == nil || claims.ExpiresAt == nil {
		return nil
	}

	return s.rcache.Revoke(ctx, claims.ID, time.Until(claims.ExpiresAt.Time))
}

// validateEmail нормализует и проверяет форму адреса.
func validateEmail(email string) (string, error) {
	norm := strings.ToLower(strings.TrimSpace(email))

	addr, err := mail.ParseAddress(norm)
	if err != nil || addr.Address != norm {
		return "", ErrInvalidEmail
	}

	return norm, nil
}

// validatePassword — политика сложности: минимум 8 символов,
// хотя бы одна буква и одна цифра.
func validatePassword(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasLetter || !hasDigit {
		return ErrWeakPassword
	}

	return nil
}

// hashPassword хэширует пароль с помощью bcrypt.
func hashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// checkPassword сверяет пароль с хэшем.
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
