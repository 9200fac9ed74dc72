package service

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
)

var ErrNoActor = errors.New("токен не содержит id пользователя")

// IdentityClaims - клеймы токена провайдера идентификации. ActorID равен
// нулю, пока учётная запись на стороне REST API не создана.
type IdentityClaims struct {
	ActorID    int64
	ExternalID string
	Email      string
	Name       string
	Role       entity.Role
}

// TokenManager проверяет токены провайдера идентификации (HS256).
type TokenManager struct {
	secret []byte
}

// NewTokenManager создаёт менеджер токенов.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret)}
}

// Parse проверяет подпись и срок действия и извлекает клеймы.
func (m *TokenManager) Parse(token string) (*IdentityClaims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	role := entity.Role(stringClaim(claims, "role"))
	if !role.IsValid() {
		return nil, jwt.ErrTokenInvalidClaims
	}

	out := &IdentityClaims{
		ExternalID: stringClaim(claims, "ext"),
		Email:      stringClaim(claims, "email"),
		Name:       stringClaim(claims, "name"),
		Role:       role,
	}
	if sub := stringClaim(claims, "sub"); sub != "" {
		id, err := strconv.ParseInt(sub, 10, 64)
		if err != nil || id <= 0 {
			return nil, jwt.ErrTokenInvalidSubject
		}
		out.ActorID = id
	}

	return out, nil
}

// ParseAccess извлекает id пользователя и роль; токен без sub отклоняется.
func (m *TokenManager) ParseAccess(token string) (int64, entity.Role, error) {
	claims, err := m.Parse(token)
	if err != nil {
		return 0, "", err
	}
	if claims.ActorID == 0 {
		return 0, "", ErrNoActor
	}
	return claims.ActorID, claims.Role, nil
}

// Issue выпускает токен с теми же клеймами, что и провайдер. Используется
// в тестах и локальной разработке.
func (m *TokenManager) Issue(c IdentityClaims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"role": string(c.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	if c.ActorID > 0 {
		claims["sub"] = strconv.FormatInt(c.ActorID, 10)
	}
	if c.ExternalID != "" {
		claims["ext"] = c.ExternalID
	}
	if c.Email != "" {
		claims["email"] = c.Email
	}
	if c.Name != "" {
		claims["name"] = c.Name
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func stringClaim(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return v
}
