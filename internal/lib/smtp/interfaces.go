// Package smtp отправляет письма через SMTP-сервер с STARTTLS и PLAIN-аутентификацией.
package smtp

import "io"

// Client — подмножество *smtp.Client, используемое при отправке письма.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// TransportInterface открывает сессии с SMTP-сервером.
type TransportInterface interface {
	Connect() (Client, error)
	GetSMTPUser() string
}
