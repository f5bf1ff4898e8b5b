package handlers

import (
	"github.com/thiago-salvador/clubedolivro-sub001/internal/gateway"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/models"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/token"
)

// Routes — таблица маршрутов шлюза.
//
// Порядок объявления значим: при совпадении шаблонов побеждает первый.
// Непубличные маршруты дополнительно проходят маршрутный гейт диспетчера,
// поэтому Authenticate здесь не дублируется; RequireRole — только там, где
// нужна роль поверх аутентификации.
func Routes(h *Handlers, tokens *token.Service, users gateway.UserLookup) []gateway.Route {
	adminOnly := gateway.RequireRole(tokens, users, models.RoleAdmin)
	validate := gateway.ValidateRequest()

	return []gateway.Route{
		// Аутентификация: вход свободный, лимит попыток — внутри сервиса.
		{Method: "POST", Path: "/auth/register", Public: true, Middleware: []gateway.Middleware{validate}, Handler: h.Register},
		{Method: "POST", Path: "/auth/login", Public: true, Middleware: []gateway.Middleware{validate}, Handler: h.Login},
		{Method: "POST", Path: "/auth/refresh", Public: true, Middleware: []gateway.Middleware{validate}, Handler: h.Refresh},
		{Method: "POST", Path: "/auth/logout", Public: true, Middleware: []gateway.Middleware{validate}, Handler: h.Logout},

		{Method: "GET", Path: "/me", Handler: h.Me},

		// Чтение доступно любому аутентифицированному пользователю,
		// запись — только администратору.
		{Method: "GET", Path: "/students", Handler: h.ListStudents},
		{Method: "GET", Path: "/students/:id", Handler: h.GetStudent},
		{Method: "POST", Path: "/students", Middleware: []gateway.Middleware{adminOnly, validate}, Handler: h.CreateStudent},
		{Method: "PUT", Path: "/students/:id", Middleware: []gateway.Middleware{adminOnly, validate}, Handler: h.UpdateStudent},
		{Method: "DELETE", Path: "/students/:id", Middleware: []gateway.Middleware{adminOnly}, Handler: h.DeleteStudent},
		{Method: "POST", Path: "/students/:id/tags/:tagId", Middleware: []gateway.Middleware{adminOnly}, Handler: h.AttachTag},
		{Method: "DELETE", Path: "/students/:id/tags/:tagId", Middleware: []gateway.Middleware{adminOnly}, Handler: h.DetachTag},
	}
}
