// gateway — ядро обработки запросов симулятора: роутер, цепочка middleware
// и диспетчер. Пакет не знает про net/http: "транспортом" служит вызов
// Dispatcher.Dispatch из кода приложения.
package gateway

import "net/http"

// Коды ошибок в конверте — короткие стабильные строки для машиночитаемой
// обработки на фронте.
const (
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeValidation   = "VALIDATION_ERROR"
	CodeRateLimit    = "RATE_LIMIT_EXCEEDED"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"
)

// Meta — пагинация списочных ответов.
type Meta struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Envelope — единый формат ответа: каждый обработчик и каждый отказ
// middleware сводятся к этой форме, вызывающему не нужно различать,
// на какой стадии запрос завершился.
type Envelope struct {
	Success    bool   `json:"success"`
	Data       any    `json:"data,omitempty"`
	Message    string `json:"message,omitempty"`
	Metadata   *Meta  `json:"metadata,omitempty"`
	Error      string `json:"error,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
	Details    any    `json:"details,omitempty"`
	// RetryAfter — секунды до повтора, только для RATE_LIMIT_EXCEEDED.
	RetryAfter int `json:"retryAfter,omitempty"`
}

// OK — успешный ответ с данными.
func OK(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

// OKMessage — успешный ответ с данными и сообщением.
func OKMessage(data any, message string) Envelope {
	return Envelope{Success: true, Data: data, Message: message}
}

// OKPage — успешный списочный ответ с метаданными пагинации.
func OKPage(data any, meta Meta) Envelope {
	return Envelope{Success: true, Data: data, Metadata: &meta}
}

// Fail — ответ об ошибке.
func Fail(code, message string, statusCode int) Envelope {
	return Envelope{
		Success:    false,
		Error:      code,
		Message:    sanitizeMessage(message),
		StatusCode: statusCode,
	}
}

// FailDetails — ответ об ошибке с безопасными деталями
// (например, поле и нарушенное ограничение валидации).
func FailDetails(code, message string, statusCode int, details any) Envelope {
	env := Fail(code, message, statusCode)
	env.Details = details
	return env
}

func internalEnvelope() Envelope {
	return Fail(CodeInternal, "internal server error", http.StatusInternalServerError)
}
