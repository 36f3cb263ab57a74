// Package usage реализует учёт квот: списание после записи объявления
// и возврат при его удалении. Вызывается сервисом объявлений, а не
// конечным пользователем, поэтому владелец квоты передаётся в теле запроса.
package usage

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/inspectra/internal/http/middlewarectx"
	"github.com/magabrotheeeer/inspectra/internal/http/response"
	"github.com/magabrotheeeer/inspectra/internal/lib/sl"
	"github.com/magabrotheeeer/inspectra/internal/models"
)

// Service описывает изменение счётчиков использования.
type Service interface {
	Charge(ctx context.Context, userUID, subscriptionID string, action models.ActionType) (*models.Subscription, error)
	Release(ctx context.Context, userUID string, action models.ActionType) (*models.Subscription, error)
}

// ChargeHandler списывает квоту с подписки, выбранной проверкой права.
type ChargeHandler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// NewCharge создает ChargeHandler.
func NewCharge(log *slog.Logger, service Service) *ChargeHandler {
	return &ChargeHandler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Списать квоту
// @Tags Entitlements
// @Accept json
// @Produce json
// @Param action path string true "normal или featured"
// @Param request body models.DummyCharge true "Владелец объявления и подписка из chargeTo"
// @Success 200 {object} response.Response{data=models.Subscription}
// @Failure 403 {object} response.ErrorResponse "Нет роли сервиса или чужая подписка"
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /entitlements/{action}/charge [post]
// @Security BearerAuth
func (h *ChargeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.entitlement.charge"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	action, ok := parseAction(w, r, log)
	if !ok {
		return
	}

	var req models.DummyCharge
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

	sub, err := h.service.Charge(r.Context(), req.UserID, req.SubscriptionID, action)
	if err != nil {
		log.Error("failed to charge usage", slog.String("subscription_id", req.SubscriptionID), sl.Err(err))
		response.FromError(w, r, err)
		return
	}

	log.Info("usage charged",
		slog.String("subscription_id", sub.ID),
		slog.String("action", string(action)),
		slog.String("caller", callerUID(r)),
	)
	render.JSON(w, r, response.StatusOKWithData(sub))
}

// ReleaseHandler возвращает квоту текущей подписки владельца объявления.
type ReleaseHandler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// NewRelease создает ReleaseHandler.
func NewRelease(log *slog.Logger, service Service) *ReleaseHandler {
	return &ReleaseHandler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Вернуть квоту
// @Description Уменьшает счётчики текущей подписки, но не ниже нуля
// @Tags Entitlements
// @Accept json
// @Produce json
// @Param action path string true "normal или featured"
// @Param request body models.DummyRelease true "Владелец удалённого объявления"
// @Success 200 {object} response.Response{data=models.Subscription}
// @Failure 403 {object} response.ErrorResponse "Нет роли сервиса"
// @Failure 404 {object} response.ErrorResponse "Нет текущей подписки"
// @Failure 422 {object} response.ErrorResponse
// @Router /entitlements/{action}/release [post]
// @Security BearerAuth
func (h *ReleaseHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.entitlement.release"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	action, ok := parseAction(w, r, log)
	if !ok {
		return
	}

	var req models.DummyRelease
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

	sub, err := h.service.Release(r.Context(), req.UserID, action)
	if err != nil {
		log.Error("failed to release usage", sl.Err(err))
		response.FromError(w, r, err)
		return
	}

	log.Info("usage released",
		slog.String("subscription_id", sub.ID),
		slog.String("action", string(action)),
		slog.String("caller", callerUID(r)),
	)
	render.JSON(w, r, response.StatusOKWithData(sub))
}

func parseAction(w http.ResponseWriter, r *http.Request, log *slog.Logger) (models.ActionType, bool) {
	action, err := models.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		log.Warn("unknown action", sl.Err(err))
		response.FromError(w, r, err)
		return "", false
	}
	return action, true
}

func callerUID(r *http.Request) string {
	uid, _ := middlewarectx.UserUIDFrom(r.Context())
	return uid
}
