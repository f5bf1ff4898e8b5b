// token реализует выпуск и проверку подписанных bearer-токенов шлюза.
//
// Формат — три base64url-сегмента через точку (заголовок, claims, подпись
// HMAC-SHA256 над "header.payload"); за кодирование, проверку структуры,
// constant-time сравнение подписи и срок действия отвечает golang-jwt/v5.
//
// Access- и refresh-токены подписываются разными секретами и различаются
// claim'ом typ: утечка access-секрета не позволяет выпускать refresh-токены,
// и наоборот. Секрет всегда передаётся явно в момент подписи — общего
// мутируемого состояния конфигурации нет, выпуск безопасен при конкуренции.
//
// Семантика отказов: битая структура, неверная подпись, истёкший срок и
// чужой issuer неразличимы для вызывающего (все — "invalid token");
// конкретная причина остаётся в серверном логе на границе шлюза.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/thiago-salvador/clubedolivro-sub001/internal/config"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/models"
)

var (
	// ErrInvalidToken — токен некорректен по структуре/подписи/issuer/типу.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия токена истёк.
	// На границе шлюза маппится в тот же UNAUTHORIZED, что и ErrInvalidToken.
	ErrTokenExpired = errors.New("token expired")
)

// Типы токенов (claim "typ").
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims — полезная нагрузка токена.
// Зарезервированные поля (iat, exp, iss, jti, sub) лежат в RegisteredClaims.
type Claims struct {
	UserID    string `json:"uid"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Service выпускает и проверяет токены. Конфигурация читается только при
// создании; экземпляр безопасен для конкурентного использования.
type Service struct {
	cfg config.AuthConfig
}

// New создаёт сервис токенов.
func New(cfg config.AuthConfig) *Service {
	return &Service{cfg: cfg}
}

// IssueAccess выпускает access-токен для пользователя.
// Возвращает подписанную строку и момент истечения (UTC).
func (s *Service) IssueAccess(user *models.User, now time.Time) (string, time.Time, error) {
	return s.issue(user, now, TypeAccess, s.cfg.AccessTokenTTL, s.cfg.AccessSecret)
}

// IssueRefresh выпускает refresh-токен (typ=refresh, отдельный секрет).
func (s *Service) IssueRefresh(user *models.User, now time.Time) (string, time.Time, error) {
	return s.issue(user, now, TypeRefresh, s.cfg.RefreshTokenTTL, s.cfg.RefreshSecret)
}

// IssuePair выпускает пару access+refresh одним моментом времени.
func (s *Service) IssuePair(user *models.User, now time.Time) (*models.TokenPair, error) {
	const op = "token.IssuePair"

	access, accessExp, err := s.IssueAccess(user, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refresh, _, err := s.IssueRefresh(user, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.TokenPair{
		AccessToken:     access,
		RefreshToken:    refresh,
		AccessExpiresAt: accessExp,
	}, nil
}

func (s *Service) issue(user *models.User, now time.Time, typ string, ttl time.Duration, secret string) (string, time.Time, error) {
	const op = "token.issue"

	now = now.UTC()
	expiresAt := now.Add(ttl)

	claims := Claims{
		UserID:    user.ID.String(),
		Email:     user.Email,
		Role:      user.Role,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID.String(),
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, expiresAt, nil
}

// VerifyAccess проверяет access-токен и возвращает его claims.
func (s *Service) VerifyAccess(tokenStr string) (*Claims, error) {
	return s.verify(tokenStr, TypeAccess, s.cfg.AccessSecret)
}

// VerifyRefresh проверяет refresh-токен и возвращает его claims.
func (s *Service) VerifyRefresh(tokenStr string) (*Claims, error) {
	return s.verify(tokenStr, TypeRefresh, s.cfg.RefreshSecret)
}

// verify никогда не возвращает частично доверенные claims:
// любой отказ — (nil, error).
func (s *Service) verify(tokenStr, typ, secret string) (*Claims, error) {
	const op = "token.verify"

	tok, err := jwt.ParseWithClaims(tokenStr, &Claims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
			}

			return []byte(secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if claims.TokenType != typ {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return claims, nil
}

// Decode разбирает claims без проверки подписи и срока действия.
// Только для отображения вне границы доверия; для авторизации — Verify*.
func (s *Service) Decode(tokenStr string) *Claims {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil
	}

	return claims
}
