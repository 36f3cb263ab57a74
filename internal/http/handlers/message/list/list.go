// Package list реализует выдачу истории сообщений комнаты.
package list

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

// Service описывает чтение журнала сообщений.
type Service interface {
	ListForRoom(ctx context.Context, roomID string) ([]*models.Message, error)
}

// Handler отдаёт сообщения комнаты в порядке создания.
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
// @Summary Сообщения комнаты
// @Tags Messages
// @Produce json
// @Param roomID path string true "ID комнаты"
// @Success 200 {object} response.Response{data=[]models.Message}
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /messages/{roomID} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.message.list"
	roomID := chi.URLParam(r, "roomID")
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("room_id", roomID),
	)

	msgs, err := h.service.ListForRoom(r.Context(), roomID)
	if err != nil {
		log.Error("failed to list messages", sl.Err(err))
		response.FromError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}

	render.JSON(w, r, response.StatusOKWithData(msgs))
}
