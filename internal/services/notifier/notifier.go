// Package notifier публикует уведомления в брокер. Доставкой писем
// занимается отдельный процесс sender.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/magabrotheeeer/inspectra/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/inspectra/internal/lib/sl"
	"github.com/magabrotheeeer/inspectra/internal/models"
)

// Publisher публикует уведомления по ключу шаблона.
type Publisher struct {
	mu  sync.Mutex
	ch  rabbitmq.Channel
	log *slog.Logger
}

// New создаёт Publisher поверх канала ch.
func New(ch rabbitmq.Channel, log *slog.Logger) *Publisher {
	return &Publisher{ch: ch, log: log}
}

// Notify публикует n в обменник уведомлений с ключом маршрутизации n.Template.
func (p *Publisher) Notify(ctx context.Context, n models.Notification) error {
	const op = "notifier.Notify"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n.Template == "" || n.To == "" {
		return fmt.Errorf("%s: %w: template and recipient are required", op, models.ErrValidation)
	}

	p.mu.Lock()
	err := rabbitmq.PublishMessage(p.ch, rabbitmq.NotificationsExchange, n.Template, n)
	p.mu.Unlock()
	if err != nil {
		p.log.Error("failed to publish notification",
			slog.String("op", op), slog.String("template", n.Template), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	p.log.Debug("notification published", slog.String("op", op), slog.String("template", n.Template))
	return nil
}
