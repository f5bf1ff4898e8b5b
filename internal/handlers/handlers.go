// handlers связывает таблицу маршрутов шлюза с бизнес-логикой:
// разбирает вход запроса, зовёт service и сводит результат к конверту.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/thiago-salvador/clubedolivro-sub001/internal/gateway"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/service"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/storage"
)

// Handlers — набор обработчиков поверх Service.
type Handlers struct {
	svc *service.Service
}

// New создаёт обработчики.
func New(svc *service.Service) *Handlers {
	return &Handlers{svc: svc}
}

// envelopeFromService — единственная точка маппинга ошибок сервиса в конверт.
// Ошибки, не попавшие в известные категории, наружу уходят как 500 без деталей.
func envelopeFromService(err error) gateway.Envelope {
	var tooMany *service.TooManyAttemptsError
	if errors.As(err, &tooMany) {
		// Переиспользуем маппинг лимитера шлюза: округление retryAfter там.
		return gateway.ToEnvelope(&gateway.RateLimitError{
			RetryAfter: tooMany.RetryAfter,
			Message:    "too many login attempts, please try again later",
		})
	}

	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return gateway.Fail(gateway.CodeUnauthorized, "invalid credentials", http.StatusUnauthorized)

	// Битый, истёкший и отозванный токены наружу неразличимы.
	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrTokenRevoked):
		return gateway.Fail(gateway.CodeUnauthorized, "invalid token", http.StatusUnauthorized)

	case errors.Is(err, service.ErrEmailTaken):
		return gateway.Fail(gateway.CodeConflict, "email is already registered", http.StatusConflict)

	case errors.Is(err, service.ErrInvalidEmail):
		return gateway.FailDetails(gateway.CodeValidation, "email must be a valid address",
			http.StatusBadRequest, map[string]string{"field": "email"})

	case errors.Is(err, service.ErrWeakPassword):
		return gateway.FailDetails(gateway.CodeValidation,
			"password must be at least 8 characters with letters and digits",
			http.StatusBadRequest, map[string]string{"field": "password"})

	case errors.Is(err, storage.ErrNotFound):
		return gateway.Fail(gateway.CodeNotFound, "resource not found", http.StatusNotFound)

	default:
		return gateway.Fail(gateway.CodeInternal, "internal server error", http.StatusInternalServerError)
	}
}

// stringField достаёт строковое поле из тела-объекта; отсутствие — "".
func stringField(body any, key string) string {
	obj, ok := body.(map[string]any)
	if !ok {
		return ""
	}

	v, _ := obj[key].(string)
	return strings.TrimSpace(v)
}
