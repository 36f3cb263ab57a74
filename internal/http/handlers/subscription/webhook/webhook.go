// Package webhook принимает уведомления платёжного шлюза.
//
// Подпись проверяется сравнением заголовка verif-hash с настроенным секретом.
// Неинтересные события и платежи за неизвестные тарифы подтверждаются
// ответом 200, чтобы шлюз не повторял доставку.
package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/inspectra/internal/http/response"
	"github.com/magabrotheeeer/inspectra/internal/lib/sl"
	"github.com/magabrotheeeer/inspectra/internal/paymentprovider"
)

// SignatureHeader — заголовок с секретом вебхука.
const SignatureHeader = "verif-hash"

// Service описывает обработку событий шлюза.
type Service interface {
	VerifyWebhookSignature(signature string) bool
	HandleWebhook(ctx context.Context, event paymentprovider.WebhookEvent) (string, error)
}

// Handler обрабатывает вебхуки.
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
// @Summary Вебхук платёжного шлюза
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param verif-hash header string true "Секрет вебхука"
// @Param request body paymentprovider.WebhookEvent true "Событие"
// @Success 200 {object} response.Response{data=map[string]string}
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /subscriptions/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if !h.service.VerifyWebhookSignature(r.Header.Get(SignatureHeader)) {
		log.Warn("invalid or missing webhook signature")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid signature"))
		return
	}

	var event paymentprovider.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	outcome, err := h.service.HandleWebhook(r.Context(), event)
	if err != nil {
		log.Error("failed to process webhook event", slog.String("event", event.Event), sl.Err(err))
		response.FromError(w, r, err)
		return
	}

	log.Info("webhook processed", slog.String("event", event.Event), slog.String("outcome", outcome))
	render.JSON(w, r, response.StatusOKWithData(map[string]string{"message": outcome}))
}
