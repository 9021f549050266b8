package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Freeeeeet/office_hours/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrIssuerMismatch = errors.New("issuer mismatch")
)

// Claims полезная нагрузка токена
type Claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// Actor извлекает участника из claims
func (c Claims) Actor() (model.Actor, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return model.Actor{}, fmt.Errorf("parse subject: %w", err)
	}
	if !c.Role.Valid() {
		return model.Actor{}, fmt.Errorf("unknown role %q", c.Role)
	}
	return model.Actor{ID: id, Role: c.Role}, nil
}

// Token выданный токен доступа
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Issuer выпускает и проверяет HS256 токены
type Issuer struct {
	issuer string
	key    []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(issuer, signingKey string, ttl time.Duration) *Issuer {
	return &Issuer{
		issuer: issuer,
		key:    []byte(signingKey),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue выпускает токен для пользователя
func (i *Issuer) Issue(user *model.User) (Token, error) {
	issuedAt := i.now()
	expiresAt := issuedAt.Add(i.ttl)

	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}

	return Token{AccessToken: signed, ExpiresAt: expiresAt}, nil
}

// Parse проверяет подпись, срок действия и издателя
func (i *Issuer) Parse(tokenStr string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return i.key, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if i.issuer != "" && claims.Issuer != i.issuer {
		return Claims{}, ErrIssuerMismatch
	}
	return *claims, nil
}
