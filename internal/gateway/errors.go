package gateway

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrUnauthorized — запрос не прошёл аутентификацию. Конкретная причина
	// (нет заголовка, битый токен, истёкший срок, неизвестный пользователь)
	// наружу не отдаётся — только в серверный лог.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden — пользователь аутентифицирован, но роль не подходит.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError — нарушение ограничения на входных данных.
// В отличие от ошибок авторизации, поле и ограничение безопасно отдавать:
// они описывают собственный ввод вызывающего.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// RateLimitError — отказ лимитера с рекомендацией повтора.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	return "rate limit exceeded"
}

// ToEnvelope — единственная точка маппинга ошибок middleware в конверт.
//
// err == nil — программная ошибка вызова: отвечаем 500, чтобы не замаскировать
// баг успешным конвертом.
func ToEnvelope(err error) Envelope {
	if err == nil {
		return internalEnvelope()
	}

	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		env := Fail(CodeRateLimit, rateErr.Message, http.StatusTooManyRequests)
		env.RetryAfter = retryAfterSeconds(rateErr.RetryAfter)
		return env
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return FailDetails(CodeValidation, valErr.Message, http.StatusBadRequest, map[string]string{
			"field": valErr.Field,
		})
	}

	if errors.Is(err, ErrForbidden) {
		return Fail(CodeForbidden, "insufficient permissions", http.StatusForbidden)
	}

	if errors.Is(err, ErrUnauthorized) {
		return Fail(CodeUnauthorized, "authentication required", http.StatusUnauthorized)
	}

	return internalEnvelope()
}

// retryAfterSeconds округляет срок вверх до целых секунд; при отказе
// лимитера значение всегда положительное.
func retryAfterSeconds(d time.Duration) int {
	sec := int(math.Ceil(d.Seconds()))
	if sec < 1 {
		sec = 1
	}

	return sec
}

const maxMessageLen = 200

// sanitizeMessage чистит сообщение перед отдачей наружу: переводы строк
// убираются (защита от инъекций в лог/ответ), длина ограничивается.
func sanitizeMessage(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)

	if len(s) > maxMessageLen {
		s = s[:maxMessageLen]
	}

	return s
}
