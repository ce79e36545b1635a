package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"regexp"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	myMiddleware "lettrly/internal/middleware"
	"lettrly/internal/respond"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// RegisterValidations adds the "username" and "avatar_url" tags used by the
// request types.
func RegisterValidations(v *validator.Validate) error {
	if err := v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		return usernamePattern.MatchString(name) && !IsReservedUsername(name)
	}); err != nil {
		return err
	}
	return v.RegisterValidation("avatar_url", func(fl validator.FieldLevel) bool {
		return validAvatarURL(fl.Field().String())
	})
}

// validAvatarURL accepts an empty value, which clears the avatar.
func validAvatarURL(raw string) bool {
	if raw == "" {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

type userService interface {
	Register(ctx context.Context, req *RegisterRequest) (*Profile, error)
	Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error)
	Profile(ctx context.Context, username string) (*Profile, error)
	Me(ctx context.Context, userID string) (*User, error)
	UpdateProfile(ctx context.Context, userID string, req *UpdateProfileRequest) (*User, error)
	UsernameAvailable(ctx context.Context, userID, username string) (*UsernameAvailability, error)
	DeleteAccount(ctx context.Context, userID string) error
	Stats(ctx context.Context, userID string) (*ProfileStats, error)
}

type Handler struct {
	service   userService
	validator *validator.Validate
}

func NewHandler(s userService, v *validator.Validate) *Handler {
	return &Handler{service: s, validator: v}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fail(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		respond.Fail(w, http.StatusBadRequest, errors.New("validation error: "+err.Error()))
		return
	}

	res, err := h.service.Register(r.Context(), &req)
	if err != nil {
		h.fail(w, err, "failed to register user")
		return
	}

	respond.Created(w, res)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fail(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		respond.Fail(w, http.StatusBadRequest, errors.New("validation error: "+err.Error()))
		return
	}

	res, err := h.service.Login(r.Context(), &req)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			log.Error().Err(err).Msg("failed to log in")
		}
		respond.Fail(w, http.StatusUnauthorized, ErrInvalidCredentials)
		return
	}

	respond.OK(w, res)
}

// Profile handles GET /api/u/{username}, the public share link lookup.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Profile(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		h.fail(w, err, "failed to load profile")
		return
	}
	respond.OK(w, p)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := myMiddleware.UserID(r.Context())
	if !ok {
		respond.Fail(w, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	u, err := h.service.Me(r.Context(), userID)
	if err != nil {
		h.fail(w, err, "failed to load account")
		return
	}
	respond.OK(w, u)
}

// UpdateMe handles PATCH /api/me.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := myMiddleware.UserID(r.Context())
	if !ok {
		respond.Fail(w, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fail(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		respond.Fail(w, http.StatusBadRequest, errors.New("validation error: "+err.Error()))
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), userID, &req)
	if err != nil {
		h.fail(w, err, "failed to update profile")
		return
	}
	respond.OK(w, u)
}

// CheckUsername handles GET /api/me/username/{username}. Invalid names are
// reported as unavailable, not as a request error.
func (h *Handler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	userID, ok := myMiddleware.UserID(r.Context())
	if !ok {
		respond.Fail(w, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	res, err := h.service.UsernameAvailable(r.Context(), userID, chi.URLParam(r, "username"))
	if err != nil {
		h.fail(w, err, "failed to check username")
		return
	}
	respond.OK(w, res)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := myMiddleware.UserID(r.Context())
	if !ok {
		respond.Fail(w, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		h.fail(w, err, "failed to load profile stats")
		return
	}
	respond.OK(w, stats)
}

// DeleteMe handles DELETE /api/me. The caller's token stays valid until it
// expires but no longer resolves to an account.
func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := myMiddleware.UserID(r.Context())
	if !ok {
		respond.Fail(w, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	if err := h.service.DeleteAccount(r.Context(), userID); err != nil {
		h.fail(w, err, "failed to delete account")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		respond.Fail(w, http.StatusNotFound, err)
	case errors.Is(err, ErrUserTaken):
		respond.Fail(w, http.StatusConflict, err)
	case errors.Is(err, ErrInvalidUsername), errors.Is(err, ErrUsernameReserved), errors.Is(err, ErrNoUpdates):
		respond.Fail(w, http.StatusBadRequest, err)
	default:
		log.Error().Err(err).Msg(msg)
		respond.Fail(w, http.StatusInternalServerError, errors.New("internal server error"))
	}
}
