// Package listrooms реализует HTTP-обработчик списка комнат субъекта
// в качестве клиента или риелтора.
package listrooms

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/inspectra/internal/http/middlewarectx"
	"github.com/magabrotheeeer/inspectra/internal/http/response"
	"github.com/magabrotheeeer/inspectra/internal/lib/sl"
	"github.com/magabrotheeeer/inspectra/internal/models"
)

// Service описывает выборку комнат.
type Service interface {
	ListRoomsForUser(ctx context.Context, userID string, role models.RoomRole) ([]*models.RoomView, error)
}

// Handler отдаёт комнаты субъекта из токена в роли role.
type Handler struct {
	log     *slog.Logger
	service Service
	role    models.RoomRole
}

// New создает Handler для роли role.
func New(log *slog.Logger, service Service, role models.RoomRole) *Handler {
	return &Handler{
		log:     log,
		service: service,
		role:    role,
	}
}

// ServeHTTP godoc
// @Summary Комнаты пользователя
// @Description Комнаты клиента (доступно гостю) или риелтора, по убыванию времени последнего сообщения
// @Tags Chat
// @Produce json
// @Success 200 {object} response.Response{data=[]models.RoomView}
// @Failure 401 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /chat/rooms/client [get]
// @Router /chat/rooms/realtor [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.chat.listrooms"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("role", string(h.role)),
	)

	userUID, ok := middlewarectx.UserUIDFrom(r.Context())
	if !ok {
		log.Error("user UID not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	rooms, err := h.service.ListRoomsForUser(r.Context(), userUID, h.role)
	if err != nil {
		log.Error("failed to list rooms", sl.Err(err))
		response.FromError(w, r, err)
		return
	}
	if rooms == nil {
		rooms = []*models.RoomView{}
	}

	log.Debug("rooms listed", slog.Int("count", len(rooms)))
	render.JSON(w, r, response.StatusOKWithData(rooms))
}
