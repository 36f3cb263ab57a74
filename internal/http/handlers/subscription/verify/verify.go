// Package verify реализует подтверждение оплаты после возврата пользователя
// со страницы платёжного шлюза.
package verify

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/inspectra/internal/http/response"
	"github.com/magabrotheeeer/inspectra/internal/lib/sl"
	"github.com/magabrotheeeer/inspectra/internal/models"
)

// Service описывает подтверждение платежа.
type Service interface {
	Verify(ctx context.Context, status, transactionID, txRef string) (*models.Subscription, error)
}

// Handler обрабатывает возврат со страницы оплаты.
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
// @Summary Подтвердить оплату
// @Description Проверяет транзакцию в шлюзе и активирует подписку
// @Tags Subscriptions
// @Produce json
// @Param status query string true "Статус из редиректа шлюза"
// @Param transaction_id query string true "ID транзакции"
// @Param tx_ref query string true "Референс платежа"
// @Success 200 {object} response.Response{data=models.Subscription}
// @Failure 400 {object} response.ErrorResponse "Платёж не прошёл"
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /subscriptions/verify [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.verify"
	q := r.URL.Query()
	txRef := q.Get("tx_ref")
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("tx_ref", txRef),
	)

	sub, err := h.service.Verify(r.Context(), q.Get("status"), q.Get("transaction_id"), txRef)
	if err != nil {
		log.Error("failed to verify payment", sl.Err(err))
		response.FromError(w, r, err)
		return
	}

	log.Info("subscription activated", slog.String("subscription_id", sub.ID), slog.String("plan", sub.PlanName))
	render.JSON(w, r, response.StatusOKWithData(sub))
}
