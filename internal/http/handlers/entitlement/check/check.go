// Package check реализует проверку права на квотируемое действие.
//
// Отказ по квоте — штатный результат: ответ 200 с allowed=false и причиной.
package check

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/inspectra/internal/http/middlewarectx"
	"github.com/magabrotheeeer/inspectra/internal/http/response"
	"github.com/magabrotheeeer/inspectra/internal/lib/sl"
	"github.com/magabrotheeeer/inspectra/internal/models"
	"github.com/magabrotheeeer/inspectra/internal/services/entitlement"
)

// Service описывает проверку права.
type Service interface {
	CanPerform(ctx context.Context, userUID string, action models.ActionType) (*entitlement.Decision, error)
}

// Handler обрабатывает запросы проверки.
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
// @Summary Проверить право на действие
// @Tags Entitlements
// @Produce json
// @Param action path string true "normal или featured"
// @Success 200 {object} response.Response{data=entitlement.Decision}
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse "Неизвестное действие"
// @Router /entitlements/{action} [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.entitlement.check"
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
	action, err := models.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		log.Warn("unknown action", sl.Err(err))
		response.FromError(w, r, err)
		return
	}

	decision, err := h.service.CanPerform(r.Context(), userUID, action)
	if err != nil {
		log.Error("failed to check entitlement", sl.Err(err))
		response.FromError(w, r, err)
		return
	}

	log.Debug("entitlement checked", slog.Bool("allowed", decision.Allowed), slog.String("reason", decision.Reason))
	render.JSON(w, r, response.StatusOKWithData(decision))
}
