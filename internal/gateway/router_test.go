package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func nopHandler(tag string) Handler {
	return func(_ context.Context, _ *Request) Envelope {
		return OK(tag)
	}
}

func handlerTag(t *testing.T, h Handler) string {
	t.Helper()
	env := h(context.Background(), &Request{})
	tag, ok := env.Data.(string)
	require.True(t, ok)
	return tag
}

func TestResolve_ExactBeforeParameterized(t *testing.T) {
	r := NewRouter("/api", []Route{
		{Method: "GET", Path: "/students/export", Handler: nopHandler("export"), Public: true},
		{Method: "GET", Path: "/students/:id", Handler: nopHandler("byID"), Public: true},
	})

	route, params, ok := r.Resolve("GET", "/api/students/export")
	require.True(t, ok)
	require.Equal(t, "export", handlerTag(t, route.Handler))
	require.Empty(t, params)

	route, params, ok = r.Resolve("GET", "/api/students/42")
	require.True(t, ok)
	require.Equal(t, "byID", handlerTag(t, route.Handler))
	require.Equal(t, map[string]string{"id": "42"}, params)
}

func TestResolve_ParamExtraction(t *testing.T) {
	r := NewRouter("/api", []Route{
		{Method: "POST", Path: "/students/:id/tags/:tagId", Handler: nopHandler("tag"), Public: true},
	})

	_, params, ok := r.Resolve("POST", "/api/students/42/tags/7")
	require.True(t, ok)
	require.Equal(t, map[string]string{"id": "42", "tagId": "7"}, params)
}

func TestResolve_DeclarationOrderWins(t *testing.T) {
	// Оба шаблона совпадают с путём; выигрывает объявленный первым.
	r := NewRouter("", []Route{
		{Method: "GET", Path: "/a/:x", Handler: nopHandler("first"), Public: true},
		{Method: "GET", Path: "/a/:y", Handler: nopHandler("second"), Public: true},
	})

	route, params, ok := r.Resolve("GET", "/a/1")
	require.True(t, ok)
	require.Equal(t, "first", handlerTag(t, route.Handler))
	require.Equal(t, map[string]string{"x": "1"}, params)
}

func TestResolve_NoMatch(t *testing.T) {
	r := NewRouter("/api", []Route{
		{Method: "GET", Path: "/students/:id", Handler: nopHandler("byID"), Public: true},
	})

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"неизвестный путь", "GET", "/api/teachers/1"},
		{"чужой метод", "DELETE", "/api/students/1"},
		{"другое число сегментов", "GET", "/api/students/1/extra"},
		{"без префикса", "GET", "/students/1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, ok := r.Resolve(tc.method, tc.path)
			require.False(t, ok)
		})
	}
}

func TestResolve_LiteralSegmentsMustEqual(t *testing.T) {
	r := NewRouter("", []Route{
		{Method: "GET", Path: "/students/:id/tags", Handler: nopHandler("tags"), Public: true},
	})

	_, _, ok := r.Resolve("GET", "/students/42/notes")
	require.False(t, ok)
}
