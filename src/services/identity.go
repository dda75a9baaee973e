package services

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"hive/src/models"
)

// IdentityResolver turns a bearer token into a caller. Sessions are issued
// elsewhere; only the signature and the subject claim are checked here.
type IdentityResolver struct {
	secret []byte
}

func NewIdentityResolver(secret string) *IdentityResolver {
	return &IdentityResolver{secret: []byte(secret)}
}

// Resolve returns the anonymous caller when no Authorization header is set
// and ErrUnauthenticated when a token is present but unusable.
func (r *IdentityResolver) Resolve(req *http.Request) (models.Caller, error) {
	header := strings.TrimSpace(req.Header.Get("Authorization"))
	if header == "" {
		return models.Caller{}, nil
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return models.Caller{}, ErrUnauthenticated
	}
	userID, err := r.ParseToken(strings.TrimSpace(token))
	if err != nil {
		return models.Caller{}, &Error{Kind: KindUnauthenticated, Message: ErrUnauthenticated.Message, Err: err}
	}
	return models.Caller{UserID: userID}, nil
}

func (r *IdentityResolver) ParseToken(token string) (string, error) {
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid {
		return "", fmt.Errorf("token is not valid")
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return subject, nil
}

// IssueToken signs a token for userID. Used by tests and local tooling.
func (r *IdentityResolver) IssueToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(r.secret)
}

// requireCaller rejects anonymous callers.
func requireCaller(caller models.Caller) error {
	if caller.Anonymous() {
		return ErrUnauthenticated
	}
	return nil
}
