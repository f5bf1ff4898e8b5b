// ratelimit реализует лимитер с фиксированными окнами.
//
// Запросы считаются по паре (clientKey, windowStart); на одну пару — не более
// одной записи. Проверка и инкремент выполняются под одним мьютексом, поэтому
// два конкурентных запроса одного клиента не могут оба увидеть счётчик до
// инкремента и проскочить лимит.
//
// Память ограничена: фоновая уборка удаляет записи, чей resetAt старше двух
// ширин окна, то есть хранится не более ~двух окон различных ключей.
package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Config — параметры одного лимитера.
type Config struct {
	// Window — ширина окна.
	Window time.Duration
	// Max — максимум запросов на ключ в пределах окна.
	Max int
	// Message — человекочитаемое сообщение при отказе.
	Message string
}

// Decision — результат проверки.
type Decision struct {
	Allowed bool
	// RetryAfter — через сколько клиенту имеет смысл повторить
	// (ненулевой только при отказе).
	RetryAfter time.Duration
	// Message — сообщение лимитера при отказе.
	Message string
}

type entry struct {
	count   int
	resetAt time.Time
}

// Limiter — потокобезопасный лимитер с собственным хранилищем окон.
// Несколько независимых лимитеров (глобальный, логин и т.п.) сосуществуют,
// у каждого свой Config и своё хранилище.
type Limiter struct {
	cfg Config

	mu      sync.Mutex
	entries map[string]*entry

	// now подменяется в тестах.
	now func() time.Time
}

// New создаёт лимитер. Нулевые поля конфигурации получают разумные значения.
func New(cfg Config) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Max <= 0 {
		cfg.Max = 60
	}
	if cfg.Message == "" {
		cfg.Message = "too many requests, please try again later"
	}

	return &Limiter{
		cfg:     cfg,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Check регистрирует запрос клиента и решает, пропускать ли его.
func (l *Limiter) Check(clientKey string) Decision {
	now := l.now()
	windowStart := now.Truncate(l.cfg.Window)
	key := clientKey + ":" + strconv.FormatInt(windowStart.UnixMilli(), 10)

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{resetAt: windowStart.Add(l.cfg.Window)}
		l.entries[key] = e
	}

	e.count++
	if e.count > l.cfg.Max {
		retry := e.resetAt.Sub(now)
		if retry < 0 {
			retry = 0
		}

		return Decision{
			Allowed:    false,
			RetryAfter: retry,
			Message:    l.cfg.Message,
		}
	}

	return Decision{Allowed: true}
}

// StartJanitor запускает фоновую уборку устаревших окон с периодом every
// (0 — раз в минуту). Уборка останавливается по ctx и делит мьютекс с Check,
// поэтому безопасна при конкурентных проверках.
func (l *Limiter) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}

	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.cleanup(l.now())
			}
		}
	}()
}

// cleanup удаляет записи, чей resetAt старше двух ширин окна.
func (l *Limiter) cleanup(now time.Time) {
	cutoff := now.Add(-2 * l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, e := range l.entries {
		if e.resetAt.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}

// Size возвращает число хранимых окон (для тестов и диагностики).
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries)
}
