// Package send реализует отправку сообщения через REST, когда сокет недоступен.
// Сообщение проходит тот же путь, что и событие new_message: запись в журнал,
// затем рассылка участникам комнаты через шлюз.
package send

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

// Gateway — точка входа шлюза для записи и рассылки сообщения.
type Gateway interface {
	SendMessage(ctx context.Context, roomID string, sender models.Sender, content, exclude string) (*models.Message, error)
}

// Handler обрабатывает отправку сообщения.
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
// @Summary Отправить сообщение
// @Description Сохраняет сообщение и рассылает receive_message всем подключённым участникам комнаты
// @Tags Messages
// @Accept json
// @Produce json
// @Param request body models.DummyMessage true "Сообщение"
// @Success 201 {object} response.Response{data=models.Message}
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse "Комната или отправитель не найдены"
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /messages [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.message.send"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyMessage
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

	sender := models.Sender{Kind: req.SenderModel, ID: req.Sender}
	msg, err := h.gateway.SendMessage(r.Context(), req.Chatroom, sender, req.Content, "")
	if err != nil {
		log.Error("failed to send message", slog.String("room_id", req.Chatroom), sl.Err(err))
		response.FromError(w, r, err)
		return
	}

	log.Info("message sent", slog.String("room_id", msg.ChatroomID), slog.String("message_id", msg.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(msg))
}
