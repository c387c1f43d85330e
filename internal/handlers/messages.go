package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"paidqa/internal/logger"
)

// SendMessageRequest is the request body for posting a chat message
type SendMessageRequest struct {
	Content string `json:"content"`
}

// HandleConversations handles GET /api/conversations
func (a *API) HandleConversations(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r, "conversations")
	if user == nil {
		return
	}
	conversations, err := a.escrow.Conversations(r.Context(), user.ID)
	if err != nil {
		respondWithServiceError(w, user.ID, "conversations", err)
		return
	}
	respondJSON(w, http.StatusOK, conversations)
}

// HandleMessages handles GET /api/conversations/{conversationID}/messages?limit=&before=
func (a *API) HandleMessages(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r, "messages")
	if user == nil {
		return
	}

	var before int64
	limit := 0
	query := r.URL.Query()
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondWithError(w, "limit must be a number", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if raw := query.Get("before"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			respondWithError(w, "before must be a message id", http.StatusBadRequest)
			return
		}
		before = n
	}

	messages, err := a.escrow.Messages(r.Context(), user.ID, chi.URLParam(r, "conversationID"), before, limit)
	if err != nil {
		respondWithServiceError(w, user.ID, "messages", err)
		return
	}
	respondJSON(w, http.StatusOK, messages)
}

// HandleSendMessage handles POST /api/conversations/{conversationID}/messages
func (a *API) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r, "message_send")
	if user == nil {
		return
	}
	var req SendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Debug(user.ID, "message_send_invalid_body", "error="+err.Error())
		respondWithError(w, err.Error(), http.StatusBadRequest)
		return
	}

	m, err := a.escrow.SendMessage(r.Context(), user.ID, chi.URLParam(r, "conversationID"), req.Content)
	if err != nil {
		respondWithServiceError(w, user.ID, "message_send", err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

// HandleWS handles GET /api/ws by streaming the caller's question events.
func (a *API) HandleWS(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r, "ws")
	if user == nil {
		return
	}
	if a.hub == nil {
		respondWithError(w, "Realtime updates unavailable", http.StatusServiceUnavailable)
		return
	}
	a.hub.ServeUser(w, r, user.ID)
}
