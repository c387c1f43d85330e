package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"paidqa/internal/auth"
	"paidqa/internal/errorz"
	"paidqa/internal/logger"
	"paidqa/internal/money"
	"paidqa/internal/storage"
)

// UserResponse is the response for the /api/me endpoint
type UserResponse struct {
	ID         int64        `json:"id"`
	TelegramID int64        `json:"telegram_id"`
	Username   string       `json:"username"`
	FirstName  string       `json:"first_name"`
	Balance    money.Amount `json:"balance"`
}

// currentUser resolves the caller, registering them with the welcome bonus
// on first contact. It writes the error response itself and returns nil.
func (a *API) currentUser(w http.ResponseWriter, r *http.Request, action string) *storage.User {
	ctx := r.Context()
	tgUser, ok := auth.UserFromContext(ctx)
	if !ok {
		logger.Debug(0, action+"_unauthorized", "path="+r.URL.Path)
		respondWithError(w, "Unauthorized: user not in context", http.StatusUnauthorized)
		return nil
	}

	user, err := a.users.GetUserByTelegramID(ctx, tgUser.ID)
	if err == nil && user == nil {
		user, err = a.users.CreateUser(ctx, tgUser.ID, tgUser.Username, tgUser.FirstName, a.welcomeBonus)
		switch {
		case errors.Is(err, errorz.ErrConflict):
			// Registered concurrently, e.g. through the bot's /start.
			user, err = a.users.GetUserByTelegramID(ctx, tgUser.ID)
			if err == nil && user == nil {
				err = fmt.Errorf("user %d vanished after registration conflict", tgUser.ID)
			}
		case err == nil:
			logger.Info(user.ID, "user_registered", fmt.Sprintf("telegram_id=%d source=webapp", tgUser.ID))
		}
	}
	if err != nil {
		logger.Error(tgUser.ID, action+"_user_error", "error="+err.Error())
		respondWithError(w, "Failed to get user", http.StatusInternalServerError)
		return nil
	}
	return user
}

// HandleMe handles the GET /api/me endpoint
func (a *API) HandleMe(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r, "me")
	if user == nil {
		return
	}

	logger.Debug(user.ID, "me_success", fmt.Sprintf("telegram_id=%d balance=%s", user.TelegramID, user.Balance))
	respondJSON(w, http.StatusOK, UserResponse{
		ID:         user.ID,
		TelegramID: user.TelegramID,
		Username:   user.Username,
		FirstName:  user.FirstName,
		Balance:    user.Balance,
	})
}

// HandleTransactions handles GET /api/me/transactions
func (a *API) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r, "transactions")
	if user == nil {
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			respondWithError(w, "limit must be between 1 and 500", http.StatusBadRequest)
			return
		}
		limit = n
	}

	txs, err := a.users.ListTransactions(r.Context(), user.ID, limit)
	if err != nil {
		respondWithServiceError(w, user.ID, "transactions", err)
		return
	}
	if txs == nil {
		txs = []*storage.Transaction{}
	}
	respondJSON(w, http.StatusOK, txs)
}
