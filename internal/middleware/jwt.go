package myMiddleware

import (
	"context"
	"net/http"
	"strings"

	"lettrly/internal/respond"
)

// 1. Context keys (exported so handlers can read them)
type contextKey string

const (
	UserKey     contextKey = "user_id"
	UsernameKey contextKey = "username"
)

// 2. What we need from the user service
type TokenValidator interface {
	ValidateToken(tokenString string) (string, string, error)
}

type AuthMiddleware struct {
	validator TokenValidator
}

func NewAuthMiddleware(v TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: v}
}

// Handle rejects the request with 401 unless it carries a valid token.
func (am *AuthMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := tokenFromRequest(r)
		if tokenString == "" {
			respond.Fail(w, http.StatusUnauthorized, errMissingToken)
			return
		}

		userID, username, err := am.validator.ValidateToken(tokenString)
		if err != nil {
			respond.Fail(w, http.StatusUnauthorized, errInvalidToken)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID, username)))
	})
}

// Optional attaches the identity when a valid token is present and lets
// anonymous requests through untouched.
func (am *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tokenString := tokenFromRequest(r); tokenString != "" {
			if userID, username, err := am.validator.ValidateToken(tokenString); err == nil {
				r = r.WithContext(WithUser(r.Context(), userID, username))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// WithUser injects an authenticated identity into ctx.
func WithUser(ctx context.Context, userID, username string) context.Context {
	ctx = context.WithValue(ctx, UserKey, userID)
	return context.WithValue(ctx, UsernameKey, username)
}

// UserID returns the authenticated user id, if any.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserKey).(string)
	return id, ok && id != ""
}

func Username(ctx context.Context) string {
	name, _ := ctx.Value(UsernameKey).(string)
	return name
}

func tokenFromRequest(r *http.Request) string {
	// Authorization header first
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	// Fallback: query param (EventSource cannot set headers)
	return r.URL.Query().Get("token")
}
