package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"

	"github.com/thiago-salvador/clubedolivro-sub001/internal/cache"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/config"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/gateway"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/handlers"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/models"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/ratelimit"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/service"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/storage"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/storage/inmemory"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/token"
)

// Константы для определения окружения.
const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// request — одна строка stdin: симулированный запрос к шлюзу.
type request struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Params  map[string]string `json:"params,omitempty"`
	Body    any               `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	// Логи идут в stderr: stdout занят конвертами ответов.
	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting gateway", "env", cfg.Env)

	// Корневой контекст по сигналам.
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	store := inmemory.New()
	defer store.Close()

	if err := seedAdmin(rootCtx, store, cfg.Admin); err != nil {
		log.Error("admin_seed_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	log.Info("admin_seeded")

	tokens := token.New(cfg.Auth)

	// Кэш отозванных refresh-токенов: Redis по конфигу, иначе — in-memory
	// с фоновой уборкой.
	var rcache cache.RevocationCache
	if cfg.Cache.RedisURL != "" {
		rc, err := cache.NewRedis(cfg.Cache.RedisURL, cfg.Cache.Prefix)
		if err != nil {
			log.Error("redis_connect_failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
		log.Info("redis_connected")
		rcache = rc
	} else {
		mc := cache.NewMemory()
		mc.StartJanitor(rootCtx, 5*time.Minute)
		rcache = mc
	}
	defer rcache.Close()

	globalLimiter := ratelimit.New(ratelimit.Config{
		Window:  cfg.Limits.Global.Window,
		Max:     cfg.Limits.Global.Max,
		Message: "too many requests, please try again later",
	})
	globalLimiter.StartJanitor(rootCtx, cfg.Limits.Global.Window)

	loginLimiter := ratelimit.New(ratelimit.Config{
		Window:  cfg.Limits.Login.Window,
		Max:     cfg.Limits.Login.Max,
		Message: "too many login attempts, please try again later",
	})
	loginLimiter.StartJanitor(rootCtx, cfg.Limits.Login.Window)

	svc := service.New(store, tokens, cfg.Auth)
	svc.SetRevocationCache(rcache)
	svc.SetLoginLimiter(loginLimiter)
	log.Info("service_initialized")

	h := handlers.New(svc)
	dispatcher := gateway.NewDispatcher(gateway.Options{
		Router:        gateway.NewRouter(cfg.Gateway.Prefix, handlers.Routes(h, tokens, store)),
		GlobalLimiter: globalLimiter,
		Tokens:        tokens,
		Users:         store,
		Logger:        log,
		Latency:       latencyFor(cfg.Env),
	})

	if err := runLoop(rootCtx, dispatcher, log); err != nil {
		log.Error("loop_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	log.Info("gateway_stopped")
}

// runLoop читает запросы из stdin построчно и печатает конверты в stdout.
// Завершается по EOF или по сигналу.
func runLoop(ctx context.Context, d *gateway.Dispatcher, log *slog.Logger) error {
	lines := make(chan []byte)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)

		sc := bufio.NewScanner(os.Stdin)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for sc.Scan() {
			line := make([]byte, len(sc.Bytes()))
			copy(line, sc.Bytes())

			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	enc := json.NewEncoder(os.Stdout)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown_requested")
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return err
					}
				default:
				}
				return nil
			}

			if len(line) == 0 {
				continue
			}

			var req request
			if err := json.Unmarshal(line, &req); err != nil {
				log.Warn("request_malformed", slog.String("err", err.Error()))
				continue
			}

			env := d.Dispatch(ctx, req.Method, req.Path, gateway.Input{
				Params:  req.Params,
				Body:    req.Body,
				Headers: req.Headers,
			})

			if err := enc.Encode(env); err != nil {
				return err
			}
		}
	}
}

// seedAdmin засевает учётку администратора; повторный запуск — no-op.
func seedAdmin(ctx context.Context, store *inmemory.Store, admin config.BootstrapAdmin) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	err = store.SaveUser(ctx, &models.User{
		ID:           uuid.New(),
		Email:        admin.Email,
		Name:         admin.Name,
		Role:         models.RoleAdmin,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
		return err
	}

	return nil
}

// latencyFor — имитация сетевой задержки перед обработчиком; только в local.
func latencyFor(env string) func(ctx context.Context) {
	if env != envLocal {
		return nil
	}

	return func(ctx context.Context) {
		delay := time.Duration(20+rand.Intn(100)) * time.Millisecond

		t := time.NewTimer(delay)
		defer t.Stop()

		select {
		case <-ctx.Done():
		case <-t.C:
		}
	}
}

// setupLogger настраивает slog по окружению.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return log
}
