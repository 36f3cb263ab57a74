// Package trial реализует подключение пробного периода.
package trial

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/inspectra/internal/http/middlewarectx"
	"github.com/magabrotheeeer/inspectra/internal/http/response"
	"github.com/magabrotheeeer/inspectra/internal/lib/sl"
	"github.com/magabrotheeeer/inspectra/internal/models"
)

// Request — тело запроса пробного периода.
type Request struct {
	PlanID string `json:"planId" validate:"required"`
	Days   int    `json:"days" validate:"required,min=1,max=90"`
}

// Service описывает запуск пробного периода.
type Service interface {
	StartTrial(ctx context.Context, userUID, planID string, days int) (*models.Subscription, error)
}

// Handler обрабатывает запросы пробного периода.
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
// @Summary Пробный период
// @Description Доступен только пользователю без подписок в истории
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param request body Request true "Тариф и длительность"
// @Success 201 {object} response.Response{data=models.Subscription}
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Подписки уже были"
// @Failure 422 {object} response.ErrorResponse
// @Router /subscriptions/trial [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.trial"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := middlewarectx.UserUIDFrom(r.Context())
	if !ok {
		log.Error("user UID not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

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

	sub, err := h.service.StartTrial(r.Context(), userUID, req.PlanID, req.Days)
	if err != nil {
		log.Error("failed to start trial", slog.String("user_uid", userUID), sl.Err(err))
		response.FromError(w, r, err)
		return
	}

	log.Info("trial started", slog.String("user_uid", userUID), slog.Time("end_date", sub.EndDate))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(sub))
}
