// Package jwt реализует локальную проверку и выпуск токенов Identity Provider.
//
// Токен несёт идентификатор субъекта, его роль и вид субъекта:
// зарегистрированный пользователь или гость чата.
package jwt

import (
	"time"
)

// Maker описывает выпуск и разбор токенов.
type Maker interface {
	// GenerateToken выпускает токен зарегистрированного пользователя.
	GenerateToken(subject, role string) (string, error)
	// GenerateGuestToken выпускает токен гостя по идентификатору GuestUser.
	GenerateGuestToken(guestID string) (string, error)
	// ParseToken проверяет подпись и срок действия токена.
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует Maker на HMAC-SHA256.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
	guestTTL  time.Duration
}

// NewJWTMaker создаёт Maker. guestTTL задаёт срок жизни гостевых токенов.
func NewJWTMaker(secretKey string, ttl, guestTTL time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
		guestTTL:  guestTTL,
	}
}
