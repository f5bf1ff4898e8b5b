package gateway

import (
	"context"
	"strings"

	"github.com/thiago-salvador/clubedolivro-sub001/internal/models"
)

// Request — эфемерный контекст одного запроса: живёт только в пределах
// вызова Dispatch. User появляется после аутентификации и уже очищен
// от секретов.
type Request struct {
	Method  string
	Path    string
	Params  map[string]string
	Body    any
	Headers map[string]string

	// User — аутентифицированный пользователь (nil до authenticate).
	User *models.PublicUser
}

// Header возвращает значение заголовка без учёта регистра имени.
func (r *Request) Header(name string) string {
	if v, ok := r.Headers[name]; ok {
		return v
	}

	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}

	return ""
}

// Handler — бизнес-обработчик маршрута. Ожидаемые отказы он возвращает
// конвертом с Success=false, а не паникой; неожиданные паники ловит
// диспетчер на своей границе.
type Handler func(ctx context.Context, req *Request) Envelope

// Middleware — одна проверка цепочки: nil — пропустить дальше, ошибка —
// оборвать цепочку (обработчик не вызывается). Ошибку в конверт переводит
// ToEnvelope.
type Middleware func(ctx context.Context, req *Request) error
