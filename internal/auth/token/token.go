package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

type Claims struct {
	jwt.RegisteredClaims
	UserCode string
}

const tokenExp = time.Hour * 24

var ErrTokenInvalid = errors.New("token is invalid")

// BuildJWTString создает токен с кодом пользователя
func BuildJWTString(userCode string, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenExp)),
		},
		UserCode: userCode,
	})

	return token.SignedString([]byte(secret))
}

// GetUserCode возвращает код пользователя из токена
func GetUserCode(tokenString string, secret string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrTokenInvalid
			}
			return []byte(secret), nil
		})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", ErrTokenInvalid
	}

	return claims.UserCode, nil
}
