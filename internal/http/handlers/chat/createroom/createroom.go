// Package createroom реализует HTTP-обработчик создания гостевой комнаты чата.
//
// Клиент без учётной записи указывает объявление, имя и email. Сервис находит
// риелтора объявления, заводит гостя и комнату и отправляет гостю ссылку на чат.
package createroom

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
	"github.com/magabrotheeeer/inspectra/internal/services/chat"
)

// Service описывает бизнес-логику создания гостевой комнаты.
type Service interface {
	CreateGuestRoom(ctx context.Context, req models.DummyRoom) (*chat.GuestChat, error)
}

// Handler обрабатывает запросы на создание комнаты.
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
// @Summary Создать гостевую комнату
// @Description Находит или создаёт гостя по email и комнату по объявлению, отправляет гостю ссылку на чат
// @Tags Chat
// @Accept json
// @Produce json
// @Param request body models.DummyRoom true "Объявление и контакты клиента"
// @Success 201 {object} response.Response{data=chat.GuestChat}
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Объявление не найдено"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse
// @Router /chat/rooms [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.chat.createroom"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyRoom
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

	res, err := h.service.CreateGuestRoom(r.Context(), req)
	if err != nil {
		log.Error("failed to create guest room", sl.Err(err))
		response.FromError(w, r, err)
		return
	}

	log.Info("guest room ready", slog.String("room_id", res.Room.ID), slog.String("guest_id", res.Guest.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(res))
}
