package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SubjectKind различает владельцев токенов.
type SubjectKind string

const (
	KindUser  SubjectKind = "user"
	KindGuest SubjectKind = "guest"
)

// CustomClaims описывает данные, хранящиеся в токене. Идентификатор субъекта
// лежит в стандартном поле sub.
type CustomClaims struct {
	Role string      `json:"role"`
	Kind SubjectKind `json:"kind"`
	jwt.RegisteredClaims
}

// GenerateToken создаёт токен пользователя с ролью role.
func (j *MakerImpl) GenerateToken(subject, role string) (string, error) {
	return j.sign(subject, role, KindUser, j.tokenTTL)
}

// GenerateGuestToken создаёт токен гостя чата.
func (j *MakerImpl) GenerateGuestToken(guestID string) (string, error) {
	return j.sign(guestID, "guest", KindGuest, j.guestTTL)
}

func (j *MakerImpl) sign(subject, role string, kind SubjectKind, ttl time.Duration) (string, error) {
	const op = "jwt.sign"
	if subject == "" {
		return "", fmt.Errorf("%s: empty subject", op)
	}
	now := time.Now()
	claims := CustomClaims{
		Role: role,
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signed, nil
}

// ParseToken разбирает токен, проверяя алгоритм, подпись и срок действия.
func (j *MakerImpl) ParseToken(tokenStr string) (*CustomClaims, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%s: %w", op, errors.New("token without subject"))
	}
	if claims.Kind == "" {
		claims.Kind = KindUser
	}
	return claims, nil
}
