package rabbitmq

// QueueConfig связывает очередь с ключом маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// Ключи шаблонов писем, они же ключи маршрутизации.
const (
	TemplateGuestChatLink = "guestChatLink"
	TemplateSubExpired    = "subExpiredNotification"
)

// NotificationQueues возвращает очереди, которые обслуживает процесс sender.
func NotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notifications.guest_chat_link", RoutingKey: TemplateGuestChatLink},
		{QueueName: "notifications.sub_expired", RoutingKey: TemplateSubExpired},
	}
}
