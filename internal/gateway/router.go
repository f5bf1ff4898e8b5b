package gateway

import "strings"

// Route — неизменяемый дескриптор маршрута. Таблица объявляется один раз
// при старте и дальше не мутируется.
type Route struct {
	// Method — GET/POST/PUT/DELETE/PATCH.
	Method string
	// Path — шаблон пути с параметрами вида ":name"
	// (например, "/students/:id/tags/:tagId"); префикс роутера добавляется
	// при сборке таблицы.
	Path string
	// Handler — бизнес-обработчик.
	Handler Handler
	// Middleware — упорядоченная цепочка проверок (может быть пустой).
	Middleware []Middleware
	// Public — маршрут доступен без Authorization.
	Public bool
}

type compiledRoute struct {
	Route
	fullPath string
	segments []string
}

// Router сопоставляет (method, path) с маршрутом.
//
// Литеральные шаблоны (без ":") лежат в карте точных совпадений; шаблоны с
// параметрами проверяются посегментным перебором в порядке объявления —
// специфичность дальше порядка не ранжируется, поэтому более конкретные
// литеральные маршруты объявляются раньше параметризованных.
type Router struct {
	prefix string
	exact  map[string]compiledRoute
	scan   []compiledRoute
}

// NewRouter собирает таблицу маршрутов с общим префиксом путей.
func NewRouter(prefix string, routes []Route) *Router {
	r := &Router{
		prefix: prefix,
		exact:  make(map[string]compiledRoute),
	}

	for _, route := range routes {
		c := compiledRoute{
			Route:    route,
			fullPath: prefix + route.Path,
		}

		if !strings.Contains(c.fullPath, ":") {
			r.exact[routeKey(route.Method, c.fullPath)] = c
			continue
		}

		c.segments = strings.Split(c.fullPath, "/")
		r.scan = append(r.scan, c)
	}

	return r
}

func routeKey(method, fullPath string) string {
	return method + ":" + fullPath
}

// Resolve находит маршрут для входящего запроса и извлекает параметры пути.
//
// Порядок: сперва точное совпадение (быстрый путь без параметров), затем
// посегментный перебор шаблонов того же метода; выигрывает первый
// совпавший. Нет совпадений — (nil, nil, false), эквивалент 404.
func (r *Router) Resolve(method, path string) (*Route, map[string]string, bool) {
	if c, ok := r.exact[routeKey(method, path)]; ok {
		return &c.Route, map[string]string{}, true
	}

	pathSegments := strings.Split(path, "/")

	for i := range r.scan {
		c := &r.scan[i]
		if c.Method != method {
			continue
		}

		params, ok := matchSegments(c.segments, pathSegments)
		if !ok {
			continue
		}

		return &c.Route, params, true
	}

	return nil, nil, false
}

// matchSegments сопоставляет сегменты шаблона и пути: количество должно
// совпадать, сегмент ":name" связывает значение, остальные сравниваются
// буквально.
func matchSegments(template, path []string) (map[string]string, bool) {
	if len(template) != len(path) {
		return nil, false
	}

	params := make(map[string]string)
	for i, seg := range template {
		if strings.HasPrefix(seg, ":") && len(seg) > 1 {
			params[seg[1:]] = path[i]
			continue
		}

		if seg != path[i] {
			return nil, false
		}
	}

	return params, true
}
