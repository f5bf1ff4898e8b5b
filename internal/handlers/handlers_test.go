package handlers

// Сквозные тесты: запрос идёт через диспетчер, таблицу маршрутов, сервис и
// in-memory хранилище, как в работающем симуляторе.

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/thiago-salvador/clubedolivro-sub001/internal/cache"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/config"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/gateway"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/models"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/service"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/storage/inmemory"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/token"
)

const (
	adminEmail    = "admin@clubedolivro.dev"
	adminPassword = "admin-senha-1"
)

type testApp struct {
	dispatcher *gateway.Dispatcher
	store      *inmemory.Store
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	authCfg := config.AuthConfig{
		AccessSecret:    "access-secret-for-tests",
		RefreshSecret:   "refresh-secret-for-tests",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: time.Hour,
		Issuer:          "clubedolivro-test",
	}

	store := inmemory.New()
	tokens := token.New(authCfg)

	svc := service.New(store, tokens, authCfg)
	svc.SetRevocationCache(cache.NewMemory())

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, store.SaveUser(context.Background(), &models.User{
		ID:           uuid.New(),
		Email:        adminEmail,
		Name:         "Admin",
		Role:         models.RoleAdmin,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}))

	h := New(svc)
	d := gateway.NewDispatcher(gateway.Options{
		Router: gateway.NewRouter("/api", Routes(h, tokens, store)),
		Tokens: tokens,
		Users:  store,
	})

	return &testApp{dispatcher: d, store: store}
}

func (a *testApp) post(t *testing.T, path string, body map[string]any, headers map[string]string) gateway.Envelope {
	t.Helper()
	return a.dispatcher.Dispatch(context.Background(), "POST", path, gateway.Input{Body: body, Headers: headers})
}

func (a *testApp) get(t *testing.T, path string, headers map[string]string) gateway.Envelope {
	t.Helper()
	return a.dispatcher.Dispatch(context.Background(), "GET", path, gateway.Input{Headers: headers})
}

// login возвращает заголовки с bearer-токеном и refresh-токен.
func (a *testApp) login(t *testing.T, email, password string) (map[string]string, string) {
	t.Helper()

	env := a.post(t, "/api/auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, nil)
	require.True(t, env.Success, "login failed: %s", env.Message)

	data, ok := env.Data.(authResponse)
	require.True(t, ok)

	return map[string]string{"Authorization": "Bearer " + data.AccessToken}, data.RefreshToken
}

func (a *testApp) createStudent(t *testing.T, headers map[string]string, name, email, phone string) *models.Student {
	t.Helper()

	env := a.post(t, "/api/students", map[string]any{
		"name":  name,
		"email": email,
		"phone": phone,
	}, headers)
	require.True(t, env.Success, "create student failed: %s", env.Message)

	student, ok := env.Data.(*models.Student)
	require.True(t, ok)

	return student
}

func TestRegisterLoginMe(t *testing.T) {
	app := newTestApp(t)

	env := app.post(t, "/api/auth/register", map[string]any{
		"email":    "Ana@Club.DEV",
		"password": "senha123",
		"name":     "Ana",
	}, nil)
	require.True(t, env.Success)

	data, ok := env.Data.(authResponse)
	require.True(t, ok)
	require.Equal(t, "ana@club.dev", data.User.Email)
	require.Equal(t, models.RoleStudent, data.User.Role)

	headers, _ := app.login(t, "ana@club.dev", "senha123")

	me := app.get(t, "/api/me", headers)
	require.True(t, me.Success)

	public, ok := me.Data.(*models.PublicUser)
	require.True(t, ok)
	require.Equal(t, "ana@club.dev", public.Email)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	app := newTestApp(t)

	body := map[string]any{"email": "ana@club.dev", "password": "senha123", "name": "Ana"}
	require.True(t, app.post(t, "/api/auth/register", body, nil).Success)

	env := app.post(t, "/api/auth/register", body, nil)
	require.False(t, env.Success)
	require.Equal(t, gateway.CodeConflict, env.Error)
	require.Equal(t, http.StatusConflict, env.StatusCode)
}

func TestRegister_WeakPassword(t *testing.T) {
	app := newTestApp(t)

	env := app.post(t, "/api/auth/register", map[string]any{
		"email":    "ana@club.dev",
		"password": "short",
		"name":     "Ana",
	}, nil)

	require.Equal(t, gateway.CodeValidation, env.Error)
	require.Equal(t, http.StatusBadRequest, env.StatusCode)
	require.Equal(t, map[string]string{"field": "password"}, env.Details)
}

func TestLogin_WrongPassword(t *testing.T) {
	app := newTestApp(t)

	env := app.post(t, "/api/auth/login", map[string]any{
		"email":    adminEmail,
		"password": "wrong-pass-1",
	}, nil)

	require.Equal(t, gateway.CodeUnauthorized, env.Error)
	require.Equal(t, http.StatusUnauthorized, env.StatusCode)
}

func TestRefresh_Rotation(t *testing.T) {
	app := newTestApp(t)

	_, refresh := app.login(t, adminEmail, adminPassword)

	env := app.post(t, "/api/auth/refresh", map[string]any{"refreshToken": refresh}, nil)
	require.True(t, env.Success)

	// Старый refresh-токен отозван ротацией.
	replay := app.post(t, "/api/auth/refresh", map[string]any{"refreshToken": refresh}, nil)
	require.Equal(t, gateway.CodeUnauthorized, replay.Error)
	require.Equal(t, http.StatusUnauthorized, replay.StatusCode)
}

func TestLogout_RevokesRefresh(t *testing.T) {
	app := newTestApp(t)

	_, refresh := app.login(t, adminEmail, adminPassword)

	env := app.post(t, "/api/auth/logout", map[string]any{"refreshToken": refresh}, nil)
	require.True(t, env.Success)

	after := app.post(t, "/api/auth/refresh", map[string]any{"refreshToken": refresh}, nil)
	require.Equal(t, gateway.CodeUnauthorized, after.Error)
}

func TestStudents_AdminCRUD(t *testing.T) {
	app := newTestApp(t)
	headers, _ := app.login(t, adminEmail, adminPassword)

	student := app.createStudent(t, headers, "Bruno", "bruno@club.dev", "11987654321")
	require.Equal(t, "bruno@club.dev", student.Email)

	got := app.get(t, "/api/students/"+student.ID.String(), headers)
	require.True(t, got.Success)

	upd := app.dispatcher.Dispatch(context.Background(), "PUT", "/api/students/"+student.ID.String(), gateway.Input{
		Headers: headers,
		Body:    map[string]any{"name": "Bruno Silva"},
	})
	require.True(t, upd.Success)
	require.Equal(t, "Bruno Silva", upd.Data.(*models.Student).Name)

	del := app.dispatcher.Dispatch(context.Background(), "DELETE", "/api/students/"+student.ID.String(), gateway.Input{Headers: headers})
	require.True(t, del.Success)

	gone := app.get(t, "/api/students/"+student.ID.String(), headers)
	require.Equal(t, gateway.CodeNotFound, gone.Error)
	require.Equal(t, http.StatusNotFound, gone.StatusCode)
}

func TestStudents_WriteForbiddenForStudentRole(t *testing.T) {
	app := newTestApp(t)

	require.True(t, app.post(t, "/api/auth/register", map[string]any{
		"email":    "ana@club.dev",
		"password": "senha123",
		"name":     "Ana",
	}, nil).Success)

	headers, _ := app.login(t, "ana@club.dev", "senha123")

	// Чтение доступно, запись — нет.
	require.True(t, app.get(t, "/api/students", headers).Success)

	env := app.post(t, "/api/students", map[string]any{
		"name":  "Bruno",
		"email": "bruno@club.dev",
	}, headers)
	require.Equal(t, gateway.CodeForbidden, env.Error)
	require.Equal(t, http.StatusForbidden, env.StatusCode)
}

func TestStudents_RequireAuth(t *testing.T) {
	app := newTestApp(t)

	env := app.get(t, "/api/students", nil)
	require.Equal(t, gateway.CodeUnauthorized, env.Error)
	require.Equal(t, http.StatusUnauthorized, env.StatusCode)
}

func TestStudents_CreateValidation(t *testing.T) {
	app := newTestApp(t)
	headers, _ := app.login(t, adminEmail, adminPassword)

	tests := []struct {
		name      string
		body      map[string]any
		wantField string
	}{
		{name: "empty body", body: map[string]any{}, wantField: "body"},
		{name: "short name", body: map[string]any{"name": "B", "email": "b@club.dev"}, wantField: "name"},
		{name: "bad email", body: map[string]any{"name": "Bruno", "email": "nope"}, wantField: "email"},
		{name: "bad phone", body: map[string]any{"name": "Bruno", "email": "b@club.dev", "phone": "123"}, wantField: "phone"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := app.post(t, "/api/students", tc.body, headers)

			require.Equal(t, gateway.CodeValidation, env.Error)
			require.Equal(t, http.StatusBadRequest, env.StatusCode)
			require.Equal(t, map[string]string{"field": tc.wantField}, env.Details)
		})
	}
}

func TestStudents_ListPagination(t *testing.T) {
	app := newTestApp(t)
	headers, _ := app.login(t, adminEmail, adminPassword)

	for _, name := range []string{"Ana Lima", "Bruno Dias", "Carla Souza"} {
		email := name[:3] + "@club.dev"
		app.createStudent(t, headers, name, email, "11987654321")
	}

	env := app.dispatcher.Dispatch(context.Background(), "GET", "/api/students", gateway.Input{
		Headers: headers,
		Params:  map[string]string{"limit": "2", "offset": "1"},
	})
	require.True(t, env.Success)

	require.NotNil(t, env.Metadata)
	require.Equal(t, 3, env.Metadata.Total)
	require.Equal(t, 2, env.Metadata.Limit)
	require.Equal(t, 1, env.Metadata.Offset)

	students, ok := env.Data.([]models.Student)
	require.True(t, ok)
	require.Len(t, students, 2)
}

func TestStudents_Tags(t *testing.T) {
	app := newTestApp(t)
	headers, _ := app.login(t, adminEmail, adminPassword)

	student := app.createStudent(t, headers, "Bruno", "bruno@club.dev", "11987654321")
	base := "/api/students/" + student.ID.String() + "/tags/"

	env := app.post(t, base+"turma-2026", nil, headers)
	require.True(t, env.Success)
	require.Equal(t, []string{"turma-2026"}, env.Data.(*models.Student).Tags)

	// Повторное добавление идемпотентно.
	env = app.post(t, base+"turma-2026", nil, headers)
	require.True(t, env.Success)
	require.Equal(t, []string{"turma-2026"}, env.Data.(*models.Student).Tags)

	env = app.dispatcher.Dispatch(context.Background(), "DELETE", base+"turma-2026", gateway.Input{Headers: headers})
	require.True(t, env.Success)
	require.Empty(t, env.Data.(*models.Student).Tags)
}

func TestStudents_InvalidID(t *testing.T) {
	app := newTestApp(t)
	headers, _ := app.login(t, adminEmail, adminPassword)

	env := app.get(t, "/api/students/not-a-uuid", headers)
	require.Equal(t, gateway.CodeValidation, env.Error)
	require.Equal(t, map[string]string{"field": "id"}, env.Details)
}
