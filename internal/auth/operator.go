package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"paidqa/internal/logger"
)

const operatorKey ContextKey = "operator"

// OperatorClaims are the claims of an operator bearer token
type OperatorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// OperatorAuth validates HS256 operator tokens for the admin API.
type OperatorAuth struct {
	secret    []byte
	issuer    string
	clockSkew time.Duration
}

// NewOperatorAuth creates an authenticator; an empty secret rejects every token.
func NewOperatorAuth(secret, issuer string) *OperatorAuth {
	return &OperatorAuth{
		secret:    []byte(strings.TrimSpace(secret)),
		issuer:    issuer,
		clockSkew: 2 * time.Minute,
	}
}

// Parse validates tokenString and returns its claims.
func (a *OperatorAuth) Parse(tokenString string) (*OperatorClaims, error) {
	if len(a.secret) == 0 {
		return nil, errors.New("operator secret not configured")
	}
	opts := []jwt.ParserOption{
		jwt.WithLeeway(a.clockSkew),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &OperatorClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token invalid")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// Issue signs a token for subject with role, valid for ttl.
func (a *OperatorAuth) Issue(subject, role string, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("operator secret not configured")
	}
	now := time.Now()
	claims := OperatorClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Middleware requires a valid operator bearer token.
func (a *OperatorAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := extractBearer(r.Header.Get("Authorization"))
		if tokenString == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		claims, err := a.Parse(tokenString)
		if err != nil {
			logger.Debug(0, "operator_auth_failed", fmt.Sprintf("path=%s error=%v", r.URL.Path, err))
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), operatorKey, claims)))
	})
}

// OperatorFromContext returns the claims placed by Middleware.
func OperatorFromContext(ctx context.Context) (*OperatorClaims, bool) {
	claims, ok := ctx.Value(operatorKey).(*OperatorClaims)
	return claims, ok && claims != nil
}

func extractBearer(header string) string {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
