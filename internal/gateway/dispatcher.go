package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"

	logctx "github.com/thiago-salvador/clubedolivro-sub001/internal/pkg/log"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/ratelimit"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/token"
)

// Options — зависимости диспетчера, собираемые при старте.
type Options struct {
	Router        *Router
	GlobalLimiter *ratelimit.Limiter
	Tokens        *token.Service
	Users         UserLookup
	Logger        *slog.Logger

	// Latency — инжектируемая задержка "сети" перед вызовом обработчика.
	// Декорация для ручной разработки: на порядок и корректность не влияет,
	// в тестах nil.
	Latency func(ctx context.Context)
}

// Dispatcher — входная точка ядра. Каждый вызов Dispatch логически
// независим: запросы не делят состояние, кроме хранилищ лимитеров
// (защищены мьютексом) и read-only конфигурации токенов.
type Dispatcher struct {
	router  *Router
	global  *ratelimit.Limiter
	tokens  *token.Service
	users   UserLookup
	log     *slog.Logger
	latency func(ctx context.Context)
}

// NewDispatcher создаёт диспетчер.
func NewDispatcher(opts Options) *Dispatcher {
	lg := opts.Logger
	if lg == nil {
		lg = slog.Default()
	}

	return &Dispatcher{
		router:  opts.Router,
		global:  opts.GlobalLimiter,
		tokens:  opts.Tokens,
		users:   opts.Users,
		log:     lg,
		latency: opts.Latency,
	}
}

// Input — входные данные симулированного запроса.
type Input struct {
	Params  map[string]string
	Body    any
	Headers map[string]string
}

// Dispatch обрабатывает один запрос и всегда возвращает конверт.
//
// Порядок стадий:
//  1. глобальный лимит на клиента — до роутинга и аутентификации, чтобы
//     абьюзивный трафик стоил как можно дешевле;
//  2. резолв маршрута;
//  3. маршрутный гейт: непубличный маршрут требует валидный bearer-токен
//     (те же проверки, что authenticate) — это слой перед явными middleware
//     маршрута, а не их замена;
//  4. цепочка middleware в порядке объявления, первый отказ обрывает её;
//  5. вызов обработчика;
//  6. паника на любой стадии гасится на границе: детали — в лог,
//     вызывающему — нейтральный INTERNAL_ERROR.
func (d *Dispatcher) Dispatch(ctx context.Context, method, path string, in Input) (env Envelope) {
	clientKey := ClientKey(in.Headers)

	lg := d.log.With(
		slog.String("method", method),
		slog.String("path", path),
		slog.String("client_key", clientKey),
	)
	ctx = logctx.Into(ctx, lg)

	defer func() {
		if r := recover(); r != nil {
			lg.Error("panic_recovered",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			env = internalEnvelope()
		}
	}()

	if d.global != nil {
		if dec := d.global.Check(clientKey); !dec.Allowed {
			lg.Warn("global_rate_limited")

			return ToEnvelope(&RateLimitError{
				RetryAfter: dec.RetryAfter,
				Message:    dec.Message,
			})
		}
	}

	route, pathParams, ok := d.router.Resolve(method, path)
	if !ok {
		lg.Info("route_not_found")
		return Fail(CodeNotFound, "route not found", http.StatusNotFound)
	}

	req := &Request{
		Method:  method,
		Path:    path,
		Params:  mergeParams(in.Params, pathParams),
		Body:    in.Body,
		Headers: in.Headers,
	}

	if !route.Public {
		if err := authenticateRequest(ctx, req, d.tokens, d.users); err != nil {
			return ToEnvelope(err)
		}
	}

	for _, mw := range route.Middleware {
		if err := mw(ctx, req); err != nil {
			return ToEnvelope(err)
		}
	}

	if d.latency != nil {
		d.latency(ctx)
	}

	return route.Handler(ctx, req)
}

// mergeParams объединяет параметры вызова с параметрами из шаблона пути;
// при совпадении имён выигрывает значение из пути.
func mergeParams(callerParams, pathParams map[string]string) map[string]string {
	merged := make(map[string]string, len(callerParams)+len(pathParams))
	for k, v := range callerParams {
		merged[k] = v
	}
	for k, v := range pathParams {
		merged[k] = v
	}

	return merged
}
