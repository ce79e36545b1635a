package letter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	myMiddleware "lettrly/internal/middleware"
	"lettrly/internal/respond"
)

type letterService interface {
	Send(ctx context.Context, username string, from Sender, content string) (Letter, error)
	List(ctx context.Context, recipientID string) ([]Letter, error)
	Open(ctx context.Context, id, recipientID string) (Letter, error)
	MarkRead(ctx context.Context, id, recipientID string) error
	SetFavorite(ctx context.Context, id, recipientID string, favorited bool) error
	Delete(ctx context.Context, id, recipientID string) error
}

type Handler struct {
	service   letterService
	validator *validator.Validate
}

func NewHandler(s letterService, v *validator.Validate) *Handler {
	return &Handler{service: s, validator: v}
}

type sendResponse struct {
	ID string `json:"id"`
}

// Send handles POST /api/u/{username}/letters. Signing in is optional.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fail(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		respond.Fail(w, http.StatusBadRequest, errors.New("validation error: "+err.Error()))
		return
	}

	from := Sender{DisplayName: req.SenderName, Anonymous: req.IsAnonymous}
	if id, ok := myMiddleware.UserID(r.Context()); ok {
		from.SenderID = id
	}

	l, err := h.service.Send(r.Context(), chi.URLParam(r, "username"), from, req.Content)
	if err != nil {
		h.fail(w, err, "failed to send letter")
		return
	}

	respond.Created(w, sendResponse{ID: l.ID})
}

// List handles GET /api/letters: the caller's full inbox.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	recipientID, ok := myMiddleware.UserID(r.Context())
	if !ok {
		respond.Fail(w, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	letters, err := h.service.List(r.Context(), recipientID)
	if err != nil {
		h.fail(w, err, "failed to list letters")
		return
	}
	respond.OK(w, letters)
}

// Get handles GET /api/letters/{id} and marks the letter read.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	recipientID, ok := myMiddleware.UserID(r.Context())
	if !ok {
		respond.Fail(w, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	l, err := h.service.Open(r.Context(), chi.URLParam(r, "id"), recipientID)
	if err != nil {
		h.fail(w, err, "failed to open letter")
		return
	}
	respond.OK(w, l)
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	recipientID, ok := myMiddleware.UserID(r.Context())
	if !ok {
		respond.Fail(w, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	if err := h.service.MarkRead(r.Context(), chi.URLParam(r, "id"), recipientID); err != nil {
		h.fail(w, err, "failed to mark letter read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Favorite(w http.ResponseWriter, r *http.Request) {
	recipientID, ok := myMiddleware.UserID(r.Context())
	if !ok {
		respond.Fail(w, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	var req FavoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fail(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	if err := h.service.SetFavorite(r.Context(), chi.URLParam(r, "id"), recipientID, req.IsFavorited); err != nil {
		h.fail(w, err, "failed to toggle favorite")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	recipientID, ok := myMiddleware.UserID(r.Context())
	if !ok {
		respond.Fail(w, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id"), recipientID); err != nil {
		h.fail(w, err, "failed to delete letter")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, err error, msg string) {
	var tooLong ErrContentTooLong
	switch {
	case errors.Is(err, ErrLetterNotFound), errors.Is(err, ErrRecipientNotFound):
		respond.Fail(w, http.StatusNotFound, err)
	case errors.Is(err, ErrEmptyContent), errors.As(err, &tooLong):
		respond.Fail(w, http.StatusBadRequest, err)
	default:
		log.Error().Err(err).Msg(msg)
		respond.Fail(w, http.StatusInternalServerError, errors.New("internal server error"))
	}
}
