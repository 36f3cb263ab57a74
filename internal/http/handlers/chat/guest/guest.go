// Package guest реализует HTTP-обработчик получения гостя чата по идентификатору.
package guest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/inspectra/internal/http/response"
	"github.com/magabrotheeeer/inspectra/internal/lib/sl"
	"github.com/magabrotheeeer/inspectra/internal/models"
)

// Service описывает чтение гостя.
type Service interface {
	GetGuest(ctx context.Context, id string) (*models.GuestUser, error)
}

// Handler обрабатывает запросы на получение гостя.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Гость чата
// @Tags Chat
// @Produce json
// @Param id path string true "ID гостя"
// @Success 200 {object} response.Response{data=models.GuestUser}
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /chat/guests/{id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.chat.guest"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id := chi.URLParam(r, "id")
	g, err := h.service.GetGuest(r.Context(), id)
	if err != nil {
		log.Error("failed to get guest", slog.String("guest_id", id), sl.Err(err))
		response.FromError(w, r, err)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(g))
}
