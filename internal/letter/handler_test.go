package letter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	myMiddleware "lettrly/internal/middleware"
)

// asUser pretends the auth middleware accepted the caller.
func asUser(id string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(myMiddleware.WithUser(r.Context(), id, "leigh")))
		})
	}
}

func setupRouter(svc *Service) http.Handler {
	h := NewHandler(svc, validator.New())

	r := chi.NewRouter()
	r.Post("/api/u/{username}/letters", h.Send)
	r.Group(func(r chi.Router) {
		r.Use(asUser("r-1"))
		r.Get("/api/letters", h.List)
		r.Get("/api/letters/{id}", h.Get)
		r.Post("/api/letters/{id}/read", h.MarkRead)
		r.Post("/api/letters/{id}/favorite", h.Favorite)
		r.Delete("/api/letters/{id}", h.Delete)
	})
	return r
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, strings.NewReader(body)))
	return w
}

func TestHandler_SendAndList(t *testing.T) {
	svc, _, _ := newTestService()
	r := setupRouter(svc)

	w := do(r, http.MethodPost, "/api/u/leigh/letters", `{"content":"hello there","sender_name":"Sam"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created sendResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)

	w = do(r, http.MethodGet, "/api/letters", "")
	require.Equal(t, http.StatusOK, w.Code)

	var letters []Letter
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &letters))
	require.Len(t, letters, 1)
	assert.Equal(t, created.ID, letters[0].ID)
	assert.Equal(t, "Sam", letters[0].SenderName())
}

func TestHandler_SendErrors(t *testing.T) {
	svc, _, _ := newTestService()
	r := setupRouter(svc)

	tests := []struct {
		name   string
		target string
		body   string
		status int
	}{
		{name: "bad json", target: "/api/u/leigh/letters", body: `{`, status: http.StatusBadRequest},
		{name: "missing content", target: "/api/u/leigh/letters", body: `{}`, status: http.StatusBadRequest},
		{name: "blank content", target: "/api/u/leigh/letters", body: `{"content":"   "}`, status: http.StatusBadRequest},
		{name: "too long", target: "/api/u/leigh/letters", body: `{"content":"` + strings.Repeat("a", 21) + `"}`, status: http.StatusBadRequest},
		{name: "unknown recipient", target: "/api/u/ghost/letters", body: `{"content":"hi"}`, status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestHandler_Mutations(t *testing.T) {
	svc, store, _ := newTestService()
	r := setupRouter(svc)

	sent, err := svc.Send(t.Context(), "leigh", Sender{}, "hello")
	require.NoError(t, err)

	w := do(r, http.MethodGet, "/api/letters/"+sent.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, store.letters[sent.ID].IsRead)

	w = do(r, http.MethodPost, "/api/letters/"+sent.ID+"/favorite", `{"is_favorited":true}`)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, store.letters[sent.ID].IsFavorited)

	w = do(r, http.MethodDelete, "/api/letters/"+sent.ID, "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(r, http.MethodPost, "/api/letters/"+sent.ID+"/read", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_RequiresIdentity(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc, validator.New())

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/api/letters", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
