package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"paidqa/internal/logger"
)

// ContextKey is the key type for context values
type ContextKey string

const (
	// UserIDKey is the context key for the caller's Telegram user ID
	UserIDKey ContextKey = "user_id"
	// TelegramUserKey is the context key for the full Telegram profile
	TelegramUserKey ContextKey = "telegram_user"

	// InitDataHeader carries Telegram Web App initData on API requests
	InitDataHeader = "X-Telegram-Init-Data"
	// InitDataQuery carries initData where headers cannot be set (websockets)
	InitDataQuery = "init_data"

	// DefaultMaxAge is how long signed initData stays valid
	DefaultMaxAge = 24 * time.Hour
)

var (
	ErrMissingHash  = errors.New("hash not found in initData")
	ErrInvalidHash  = errors.New("invalid hash")
	ErrExpired      = errors.New("auth_date is too old")
	ErrMissingUser  = errors.New("user not found in initData")
	ErrNoBotToken   = errors.New("bot token not configured")
	ErrMissingDate  = errors.New("auth_date not found")
	ErrInvalidDate  = errors.New("invalid auth_date format")
	ErrInvalidInput = errors.New("malformed initData")
)

// TelegramUser is the user object embedded in initData
type TelegramUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
}

// Validator checks Telegram Web App initData signatures.
type Validator struct {
	botToken string
	maxAge   time.Duration
	now      func() time.Time
}

// NewValidator creates a validator for initData signed by botToken.
func NewValidator(botToken string, maxAge time.Duration) *Validator {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Validator{botToken: botToken, maxAge: maxAge, now: time.Now}
}

// ValidateInitData validates the Telegram initData string.
// It checks the HMAC-SHA256 signature and the auth_date, then returns the user.
func (v *Validator) ValidateInitData(initData string) (*TelegramUser, error) {
	if v.botToken == "" {
		return nil, ErrNoBotToken
	}
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	hash := values.Get("hash")
	if hash == "" {
		return nil, ErrMissingHash
	}
	expected := signature(v.botToken, values)
	if !hmac.Equal([]byte(strings.ToLower(hash)), []byte(expected)) {
		return nil, ErrInvalidHash
	}

	authDateStr := values.Get("auth_date")
	if authDateStr == "" {
		return nil, ErrMissingDate
	}
	authDate, err := strconv.ParseInt(authDateStr, 10, 64)
	if err != nil {
		return nil, ErrInvalidDate
	}
	if v.now().Sub(time.Unix(authDate, 0)) > v.maxAge {
		return nil, ErrExpired
	}

	userJSON := values.Get("user")
	if userJSON == "" {
		return nil, ErrMissingUser
	}
	var user TelegramUser
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		return nil, fmt.Errorf("failed to parse user: %w", err)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("failed to parse user: %w", ErrMissingUser)
	}
	return &user, nil
}

// signature computes the Web App hash: the data check string is every field
// except hash as key=value lines sorted by key, signed with
// HMAC(HMAC("WebAppData", botToken)).
func signature(botToken string, values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		if key == "hash" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, key := range keys {
		lines[i] = key + "=" + values.Get(key)
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	h := hmac.New(sha256.New, secret.Sum(nil))
	h.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(h.Sum(nil))
}

// SignInitData returns values encoded as initData with a valid hash.
// Used by tests and local tooling.
func SignInitData(botToken string, values url.Values) string {
	signed := url.Values{}
	for key, vals := range values {
		if key != "hash" {
			signed[key] = vals
		}
	}
	signed.Set("hash", signature(botToken, signed))
	return signed.Encode()
}

// Middleware returns an HTTP middleware that validates Telegram initData
func (v *Validator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		initData := r.Header.Get(InitDataHeader)
		if initData == "" {
			initData = r.URL.Query().Get(InitDataQuery)
		}
		if initData == "" {
			http.Error(w, "Unauthorized: missing "+InitDataHeader+" header", http.StatusUnauthorized)
			return
		}

		user, err := v.ValidateInitData(initData)
		if err != nil {
			logger.Debug(0, "auth_failed", fmt.Sprintf("path=%s error=%v", r.URL.Path, err))
			http.Error(w, "Unauthorized: invalid initData", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
	})
}

// ContextWithUser adds the Telegram user to the context
func ContextWithUser(ctx context.Context, user *TelegramUser) context.Context {
	ctx = context.WithValue(ctx, TelegramUserKey, user)
	return context.WithValue(ctx, UserIDKey, user.ID)
}

// GetUserIDFromContext retrieves the Telegram user ID from the context
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	return userID, ok
}

// UserFromContext retrieves the Telegram profile from the context
func UserFromContext(ctx context.Context) (*TelegramUser, bool) {
	user, ok := ctx.Value(TelegramUserKey).(*TelegramUser)
	return user, ok && user != nil
}
