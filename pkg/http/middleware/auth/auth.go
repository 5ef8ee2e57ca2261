package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleOperator is the role required for back-office routes.
const RoleOperator = "operator"

var (
	ErrForbidden = errors.New("operator role required")
	ErrNoSecret  = errors.New("token secret is not configured")
)

type ctxKey struct{}

// Claims are the operator token claims.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 operator token.
func IssueToken(secret []byte, issuer, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: RoleOperator,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken validates an operator token and returns its claims.
func ParseToken(secret []byte, issuer, token string) (*Claims, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}

	var claims Claims
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.Role != RoleOperator {
		return nil, ErrForbidden
	}

	return &claims, nil
}

// NewOperatorMiddleware rejects requests without a valid operator bearer token.
func NewOperatorMiddleware(secret []byte, issuer string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				deny(w, http.StatusUnauthorized, "missing bearer token")

				return
			}

			claims, err := ParseToken(secret, issuer, raw)
			if errors.Is(err, ErrForbidden) {
				deny(w, http.StatusForbidden, err.Error())

				return
			}
			if err != nil {
				deny(w, http.StatusUnauthorized, "invalid token")

				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims.Subject)))
		})
	}
}

// Subject returns the authenticated operator, or an empty string.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(ctxKey{}).(string)

	return s
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
