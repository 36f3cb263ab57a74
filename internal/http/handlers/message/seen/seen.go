// Package seen реализует отметку сообщений комнаты прочитанными через REST.
package seen

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
	"github.com/magabrotheeeer/inspectra/internal/models"
)

// Gateway — точка входа шлюза: отметка и рассылка messages_seen.
type Gateway interface {
	MarkSeen(ctx context.Context, roomID, readerID, exclude string) error
}

// Handler обрабатывает отметку прочтения.
type Handler struct {
	log      *slog.Logger
	gateway  Gateway
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, gateway Gateway) *Handler {
	return &Handler{
		log:      log,
		gateway:  gateway,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Отметить сообщения прочитанными
// @Description Все сообщения комнаты, написанные не userId, помечаются прочитанными
// @Tags Messages
// @Accept json
// @Produce json
// @Param request body models.DummySeen true "Комната и читатель"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /messages/seen [patch]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.message.seen"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummySeen
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

	if err := h.gateway.MarkSeen(r.Context(), req.ChatroomID, req.UserID, ""); err != nil {
		log.Error("failed to mark messages as seen", slog.String("room_id", req.ChatroomID), sl.Err(err))
		response.FromError(w, r, err)
		return
	}

	render.JSON(w, r, response.OK())
}
