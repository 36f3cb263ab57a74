package models

// Notification — письмо, которое процесс sender отрисовывает по шаблону Template.
type Notification struct {
	Template string            `json:"template"`
	To       string            `json:"to"`
	Name     string            `json:"name"`
	Data     map[string]string `json:"data,omitempty"`
}
