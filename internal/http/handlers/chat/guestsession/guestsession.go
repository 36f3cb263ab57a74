// Package guestsession реализует обмен токена доступа гостя из письма
// на токен поставщика идентичности.
package guestsession

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/inspectra/internal/http/response"
	"github.com/magabrotheeeer/inspectra/internal/lib/sl"
	"github.com/magabrotheeeer/inspectra/internal/services/chat"
)

// Request — тело запроса сессии гостя.
type Request struct {
	AccessToken string `json:"accessToken" validate:"required"`
}

// Service описывает выпуск сессии гостя.
type Service interface {
	StartGuestSession(ctx context.Context, accessToken string) (*chat.GuestSession, error)
}

// Handler обрабатывает запросы на вход гостя.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Сессия гостя
// @Description Обменивает токен доступа из ссылки на чат на JWT гостя
// @Tags Chat
// @Accept json
// @Produce json
// @Param request body Request true "Токен доступа"
// @Success 200 {object} response.Response{data=chat.GuestSession}
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse "Неизвестный токен"
// @Failure 422 {object} response.ErrorResponse
// @Router /chat/guest/session [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.chat.guestsession"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	session, err := h.service.StartGuestSession(r.Context(), req.AccessToken)
	if err != nil {
		log.Warn("failed to start guest session", sl.Err(err))
		response.FromError(w, r, err)
		return
	}

	log.Info("guest session started", slog.String("guest_id", session.Guest.ID))
	render.JSON(w, r, response.StatusOKWithData(session))
}
