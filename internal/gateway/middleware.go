package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"unicode"

	"github.com/thiago-salvador/clubedolivro-sub001/internal/models"
	logctx "github.com/thiago-salvador/clubedolivro-sub001/internal/pkg/log"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/pkg/redact"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/ratelimit"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/token"
)

// UserLookup — контракт поиска пользователя, потребляемый аутентификацией.
// Его реализует хранилище; в тестах подменяется моком.
type UserLookup interface {
	UserByEmail(ctx context.Context, email string) (*models.User, error)
}

var bearerRe = regexp.MustCompile(`^Bearer\s+(.+)$`)

// Authenticate требует валидный bearer-токен и существующего пользователя.
// На успехе прикрепляет к запросу пользователя без секретов.
func Authenticate(tokens *token.Service, users UserLookup) Middleware {
	return func(ctx context.Context, req *Request) error {
		return authenticateRequest(ctx, req, tokens, users)
	}
}

// authenticateRequest — общая проверка для middleware Authenticate и
// маршрутного гейта непубличных маршрутов. Любая причина отказа наружу
// выглядит одинаково (ErrUnauthorized); конкретика — только в логе.
func authenticateRequest(ctx context.Context, req *Request, tokens *token.Service, users UserLookup) error {
	const op = "gateway.middleware.authenticateRequest"

	lg := logctx.From(ctx)

	if req.User != nil {
		// Уже аутентифицирован ранее в этой цепочке.
		return nil
	}

	raw := req.Header("Authorization")
	if raw == "" {
		lg.Warn("auth_header_missing", slog.String("op", op))
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	m := bearerRe.FindStringSubmatch(raw)
	if m == nil {
		lg.Warn("auth_header_malformed", slog.String("op", op))
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	claims, err := tokens.VerifyAccess(strings.TrimSpace(m[1]))
	if err != nil {
		lg.Warn("auth_token_rejected",
			slog.String("op", op),
			slog.String("token", redact.Token()),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		lg.Warn("auth_claims_email_invalid", slog.String("op", op))
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	user, err := users.UserByEmail(ctx, email)
	if err != nil {
		lg.Warn("auth_user_not_found",
			slog.String("op", op),
			slog.String("email", redact.Email(email)),
		)
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	req.User = user.Public()
	return nil
}

// RequireRole сперва аутентифицирует запрос, затем требует одну из ролей.
// Сравнение ролей нечувствительно к регистру и пробелам.
func RequireRole(tokens *token.Service, users UserLookup, allowed ...string) Middleware {
	return func(ctx context.Context, req *Request) error {
		const op = "gateway.middleware.RequireRole"

		if err := authenticateRequest(ctx, req, tokens, users); err != nil {
			return err
		}

		role := normalizeRole(req.User.Role)
		for _, a := range allowed {
			if role == normalizeRole(a) {
				return nil
			}
		}

		// Логируем попытку без учётных данных: id, фактическая роль,
		// требуемые роли.
		logctx.From(ctx).Warn("role_denied",
			slog.String("op", op),
			slog.String("user_id", req.User.ID.String()),
			slog.String("role", req.User.Role),
			slog.Any("required", allowed),
		)

		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

// ValidateRequest отклоняет POST/PUT с пустым телом, а на создающих
// эндпойнтах учеников дополнительно проверяет поля.
func ValidateRequest() Middleware {
	return func(ctx context.Context, req *Request) error {
		const op = "gateway.middleware.ValidateRequest"

		if req.Method != "POST" && req.Method != "PUT" {
			return nil
		}

		if isEmptyBody(req.Body) {
			return fmt.Errorf("%s: %w", op, &ValidationError{
				Field:   "body",
				Message: "request body is required",
			})
		}

		if req.Method == "POST" && strings.HasSuffix(req.Path, "/students") {
			if err := validateStudentFields(req.Body); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}

		return nil
	}
}

func isEmptyBody(body any) bool {
	switch b := body.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(b) == ""
	case map[string]any:
		return len(b) == 0
	default:
		return false
	}
}

// validateStudentFields — проверки полей создания ученика:
// имя от 2 символов, email корректной формы, телефон из 10-15 цифр.
func validateStudentFields(body any) error {
	fields, ok := body.(map[string]any)
	if !ok {
		return &ValidationError{Field: "body", Message: "request body must be an object"}
	}

	name, _ := fields["name"].(string)
	if len(strings.TrimSpace(name)) < 2 {
		return &ValidationError{Field: "name", Message: "name must be at least 2 characters"}
	}

	email, _ := fields["email"].(string)
	if _, err := mail.ParseAddress(strings.TrimSpace(email)); err != nil {
		return &ValidationError{Field: "email", Message: "email must be a valid address"}
	}

	if phone, ok := fields["phone"].(string); ok && phone != "" {
		digits := countDigits(phone)
		if digits < 10 || digits > 15 {
			return &ValidationError{Field: "phone", Message: "phone must contain 10 to 15 digits"}
		}
	}

	return nil
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}

	return n
}

// RateLimit оборачивает проверку лимитера в middleware маршрута.
func RateLimit(l *ratelimit.Limiter) Middleware {
	return func(ctx context.Context, req *Request) error {
		const op = "gateway.middleware.RateLimit"

		d := l.Check(ClientKey(req.Headers))
		if d.Allowed {
			return nil
		}

		logctx.From(ctx).Warn("rate_limited", slog.String("op", op))

		return fmt.Errorf("%s: %w", op, &RateLimitError{
			RetryAfter: d.RetryAfter,
			Message:    d.Message,
		})
	}
}

// ClientKey выводит ключ клиента из заголовков в духе forwarded-IP:
// первый адрес X-Forwarded-For, затем X-Real-Ip, иначе "anonymous".
func ClientKey(headers map[string]string) string {
	if v := headerValue(headers, "X-Forwarded-For"); v != "" {
		if first, _, found := strings.Cut(v, ","); found {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(v)
	}

	if v := headerValue(headers, "X-Real-Ip"); v != "" {
		return strings.TrimSpace(v)
	}

	return "anonymous"
}

func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}

	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}

	return ""
}
