// Package identity resolves bearer credentials into principals.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Spok95/campus-attendance/internal/apperr"
	"github.com/Spok95/campus-attendance/internal/models"
)

type Provider interface {
	ResolvePrincipal(ctx context.Context, credential string) (models.Principal, error)
}

type Claims struct {
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWT verifies HS256 tokens whose subject is the numeric principal id.
type JWT struct {
	secret []byte
	issuer string
	now    func() time.Time
}

var _ Provider = (*JWT)(nil)

func NewJWT(secret, issuer string) (*JWT, error) {
	if len(secret) < 16 {
		return nil, errors.New("identity: jwt secret must be at least 16 bytes")
	}
	return &JWT{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

func unauthenticated(reason string) error {
	return fmt.Errorf("%w: %s", apperr.ErrUnauthenticated, reason)
}

func (j *JWT) ResolvePrincipal(_ context.Context, credential string) (models.Principal, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return models.Principal{}, unauthenticated("missing token")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}
	token, err := jwt.ParseWithClaims(credential, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return j.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Principal{}, unauthenticated("token expired")
		}
		return models.Principal{}, unauthenticated("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return models.Principal{}, unauthenticated("invalid claims")
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return models.Principal{}, unauthenticated("subject is not a numeric id")
	}
	role, ok := models.ParseRole(claims.Role)
	if !ok {
		return models.Principal{}, unauthenticated("unknown role " + strconv.Quote(claims.Role))
	}
	return models.Principal{ID: id, Role: role, Name: claims.Name}, nil
}

// Issue mints a token for p valid for ttl.
func (j *JWT) Issue(p models.Principal, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("identity: ttl must be positive")
	}
	now := j.now()
	claims := Claims{
		Role: string(p.Role),
		Name: p.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.ID, 10),
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}
