package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestOperatorTokenRoundTrip(t *testing.T) {
	a := NewOperatorAuth("s3cret", "paidqa")

	token, err := a.Issue("ops@example.com", "operator", time.Hour)
	require.NoError(t, err)

	claims, err := a.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "ops@example.com", claims.Subject)
	require.Equal(t, "operator", claims.Role)
}

func TestOperatorTokenRejected(t *testing.T) {
	a := NewOperatorAuth("s3cret", "paidqa")

	expired, err := a.Issue("ops", "operator", -time.Hour)
	require.NoError(t, err)
	otherIssuer, err := NewOperatorAuth("s3cret", "elsewhere").Issue("ops", "operator", time.Hour)
	require.NoError(t, err)
	otherSecret, err := NewOperatorAuth("different", "paidqa").Issue("ops", "operator", time.Hour)
	require.NoError(t, err)
	noSubject, err := a.Issue("", "operator", time.Hour)
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, OperatorClaims{
		Role:             "operator",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "ops", Issuer: "paidqa"},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":      expired,
		"other issuer": otherIssuer,
		"other secret": otherSecret,
		"no subject":   noSubject,
		"no expiry":    noExpiry,
		"garbage":      "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := a.Parse(token)
			require.Error(t, err)
		})
	}

	_, err = NewOperatorAuth("", "paidqa").Parse(expired)
	require.Error(t, err)
}

func TestOperatorMiddleware(t *testing.T) {
	a := NewOperatorAuth("s3cret", "paidqa")
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := OperatorFromContext(r.Context())
		require.True(t, ok)
		w.Write([]byte(claims.Subject))
	}))

	token, err := a.Issue("ops", "operator", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/disputes", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ops", rec.Body.String())

	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer nope"} {
		req := httptest.NewRequest(http.MethodGet, "/admin/disputes", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestExtractBearer(t *testing.T) {
	require.Equal(t, "abc", extractBearer("Bearer abc"))
	require.Equal(t, "abc", extractBearer("bearer  abc "))
	require.Equal(t, "", extractBearer("Token abc"))
	require.Equal(t, "", extractBearer(""))
}
