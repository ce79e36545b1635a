package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	myMiddleware "lettrly/internal/middleware"
)

func setupRouter(t *testing.T) http.Handler {
	return setupRouterWithRepo(t, newMemRepo())
}

// setupRouterWithRepo mounts the account routes behind a stub that
// authenticates as the user id in the X-User header.
func setupRouterWithRepo(t *testing.T, repo *memRepo) http.Handler {
	v := validator.New()
	require.NoError(t, RegisterValidations(v))
	h := NewHandler(NewService(repo, "secret", time.Hour), v)

	r := chi.NewRouter()
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Get("/api/u/{username}", h.Profile)
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if id := r.Header.Get("X-User"); id != "" {
					r = r.WithContext(myMiddleware.WithUser(r.Context(), id, ""))
				}
				next.ServeHTTP(w, r)
			})
		})
		r.Get("/api/me", h.Me)
		r.Patch("/api/me", h.UpdateMe)
		r.Delete("/api/me", h.DeleteMe)
		r.Get("/api/me/stats", h.Stats)
		r.Get("/api/me/username/{username}", h.CheckUsername)
	})
	return r
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	return doAs(r, "", method, target, body)
}

func doAs(r http.Handler, userID, method, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if userID != "" {
		req.Header.Set("X-User", userID)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_RegisterLoginProfile(t *testing.T) {
	r := setupRouter(t)

	w := do(r, http.MethodPost, "/register", `{"email":"a@b.co","username":"ann","password":"password1","display_name":"Ann"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(r, http.MethodPost, "/login", `{"email":"a@b.co","password":"password1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "access_token")

	w = do(r, http.MethodGet, "/api/u/ann", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"username":"ann","display_name":"Ann"}`, w.Body.String())

	w = do(r, http.MethodGet, "/api/u/nobody", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_RegisterValidation(t *testing.T) {
	r := setupRouter(t)

	tests := map[string]string{
		"bad email":         `{"email":"nope","username":"ann","password":"password1"}`,
		"short password":    `{"email":"a@b.co","username":"ann","password":"short"}`,
		"bad username":      `{"email":"a@b.co","username":"a n!","password":"password1"}`,
		"long display name": `{"email":"a@b.co","username":"ann","password":"password1","display_name":"` + strings.Repeat("x", 51) + `"}`,
		"malformed json":    `{`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/register", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestHandler_RegisterReservedUsername(t *testing.T) {
	r := setupRouter(t)

	for _, name := range []string{"admin", "api", "dashboard", "lettrly", "Settings"} {
		t.Run(name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/register", `{"email":"`+name+`@b.co","username":"`+name+`","password":"password1"}`)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestHandler_RegisterErrors(t *testing.T) {
	body := `{"email":"a@b.co","username":"ann","password":"password1"}`

	t.Run("duplicate is a conflict", func(t *testing.T) {
		r := setupRouter(t)
		require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/register", body).Code)

		w := do(r, http.MethodPost, "/register", body)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.JSONEq(t, `{"error":"email or username already taken"}`, w.Body.String())
	})

	t.Run("store failure is a server error", func(t *testing.T) {
		repo := newMemRepo()
		repo.err = errors.New("connection refused")
		r := setupRouterWithRepo(t, repo)

		w := do(r, http.MethodPost, "/register", body)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
	})
}

func TestHandler_LoginWrongPassword(t *testing.T) {
	r := setupRouter(t)
	require.Equal(t, http.StatusCreated,
		do(r, http.MethodPost, "/register", `{"email":"a@b.co","username":"ann","password":"password1"}`).Code)

	w := do(r, http.MethodPost, "/login", `{"email":"a@b.co","password":"password2"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func registerAnn(t *testing.T) (http.Handler, *memRepo, string) {
	repo := newMemRepo()
	r := setupRouterWithRepo(t, repo)
	require.Equal(t, http.StatusCreated,
		do(r, http.MethodPost, "/register", `{"email":"a@b.co","username":"ann","password":"password1","display_name":"Ann"}`).Code)
	require.Equal(t, http.StatusCreated,
		do(r, http.MethodPost, "/register", `{"email":"b@b.co","username":"bob","password":"password1"}`).Code)
	return r, repo, repo.byEmail["a@b.co"].ID
}

func TestHandler_Me(t *testing.T) {
	r, _, id := registerAnn(t)

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/me", "").Code)

	w := doAs(r, id, http.MethodGet, "/api/me", "")
	require.Equal(t, http.StatusOK, w.Code)
	var u map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
	assert.Equal(t, "ann", u["username"])
	assert.NotContains(t, u, "password_hash")
}

func TestHandler_UpdateMe(t *testing.T) {
	r, _, id := registerAnn(t)

	w := doAs(r, id, http.MethodPatch, "/api/me", `{"username":"Annie","display_name":"Annie B","avatar_url":"https://img.example/a.png"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var u User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
	assert.Equal(t, "annie", u.Username)
	assert.Equal(t, "Annie B", u.DisplayName)
	assert.Equal(t, "https://img.example/a.png", u.AvatarURL)

	w = do(r, http.MethodGet, "/api/u/annie", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"username":"annie","display_name":"Annie B","avatar_url":"https://img.example/a.png"}`, w.Body.String())

	tests := []struct {
		name string
		body string
		code int
	}{
		{"empty body", `{}`, http.StatusBadRequest},
		{"reserved username", `{"username":"admin"}`, http.StatusBadRequest},
		{"short username", `{"username":"ab"}`, http.StatusBadRequest},
		{"long display name", `{"display_name":"` + strings.Repeat("x", 51) + `"}`, http.StatusBadRequest},
		{"ftp avatar", `{"avatar_url":"ftp://img.example/a.png"}`, http.StatusBadRequest},
		{"relative avatar", `{"avatar_url":"/a.png"}`, http.StatusBadRequest},
		{"taken username", `{"username":"bob"}`, http.StatusConflict},
		{"clear avatar", `{"avatar_url":""}`, http.StatusOK},
		{"same username", `{"username":"annie"}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doAs(r, id, http.MethodPatch, "/api/me", tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}

	assert.Equal(t, http.StatusNotFound,
		doAs(r, "missing", http.MethodPatch, "/api/me", `{"display_name":"x"}`).Code)
}

func TestHandler_CheckUsername(t *testing.T) {
	r, _, id := registerAnn(t)

	w := doAs(r, id, http.MethodGet, "/api/me/username/carol", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"username":"carol","available":true}`, w.Body.String())

	w = doAs(r, id, http.MethodGet, "/api/me/username/bob", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"username":"bob","available":false,"reason":"this username is already taken"}`, w.Body.String())

	w = doAs(r, id, http.MethodGet, "/api/me/username/lettrly", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"username":"lettrly","available":false,"reason":"this username is reserved"}`, w.Body.String())
}

func TestHandler_StatsAndDelete(t *testing.T) {
	r, repo, id := registerAnn(t)
	joined := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	repo.stats[id] = &ProfileStats{TotalLetters: 4, UnreadLetters: 2, FavoritedLetters: 1, MemberSince: joined}

	w := doAs(r, id, http.MethodGet, "/api/me/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total_letters":4,"unread_letters":2,"favorited_letters":1,"member_since":"2025-01-02T00:00:00Z"}`, w.Body.String())

	w = doAs(r, id, http.MethodDelete, "/api/me", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	assert.Equal(t, http.StatusNotFound, doAs(r, id, http.MethodGet, "/api/me/stats", "").Code)
	assert.Equal(t, http.StatusNotFound, doAs(r, id, http.MethodDelete, "/api/me", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/u/ann", "").Code)

	repo.err = errors.New("connection refused")
	assert.Equal(t, http.StatusInternalServerError, doAs(r, id, http.MethodGet, "/api/me/stats", "").Code)
}
