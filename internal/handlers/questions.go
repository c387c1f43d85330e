package handlers

import (
	"fmt"
	"net/http"

	"paidqa/internal/logger"
	"paidqa/internal/money"
	"paidqa/internal/storage"
)

// CreateQuestionRequest is the request body for asking a paid question
type CreateQuestionRequest struct {
	AnswererID int64        `json:"answerer_id"`
	Content    string       `json:"content"`
	Price      money.Amount `json:"price"`
}

// AnswerRequest is the request body for answering a question
type AnswerRequest struct {
	Content string `json:"content"`
}

// DisputeRequest is the request body for disputing a question
type DisputeRequest struct {
	Reason string `json:"reason"`
}

// HandleCreateQuestion handles POST /api/questions
func (a *API) HandleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r, "question_create")
	if user == nil {
		return
	}

	var req CreateQuestionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Debug(user.ID, "question_create_invalid_body", "error="+err.Error())
		respondWithError(w, err.Error(), http.StatusBadRequest)
		return
	}

	q, err := a.escrow.CreateQuestion(r.Context(), user.ID, req.AnswererID, req.Content, req.Price)
	if err != nil {
		respondWithServiceError(w, user.ID, "question_create", err)
		return
	}
	respondJSON(w, http.StatusCreated, q)
}

// HandleMyAsked handles GET /api/questions/my-asked
func (a *API) HandleMyAsked(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r, "questions_asked")
	if user == nil {
		return
	}
	questions, err := a.escrow.ListByAsker(r.Context(), user.ID)
	if err != nil {
		respondWithServiceError(w, user.ID, "questions_asked", err)
		return
	}
	respondJSON(w, http.StatusOK, questions)
}

// HandleMyReceived handles GET /api/questions/my-received
func (a *API) HandleMyReceived(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r, "questions_received")
	if user == nil {
		return
	}
	questions, err := a.escrow.ListByAnswerer(r.Context(), user.ID)
	if err != nil {
		respondWithServiceError(w, user.ID, "questions_received", err)
		return
	}
	respondJSON(w, http.StatusOK, questions)
}

// HandleConversation handles GET /api/questions/conversation/{userID}
func (a *API) HandleConversation(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r, "questions_conversation")
	if user == nil {
		return
	}
	otherID, err := idParam(r, "userID")
	if err != nil {
		respondWithError(w, err.Error(), http.StatusBadRequest)
		return
	}
	questions, err := a.escrow.ListConversation(r.Context(), user.ID, otherID)
	if err != nil {
		respondWithServiceError(w, user.ID, "questions_conversation", err)
		return
	}
	respondJSON(w, http.StatusOK, questions)
}

// HandleGetQuestion handles GET /api/questions/{id}
func (a *API) HandleGetQuestion(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r, "question_get")
	if user == nil {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		respondWithError(w, err.Error(), http.StatusBadRequest)
		return
	}
	q, err := a.escrow.GetQuestion(r.Context(), user.ID, id)
	if err != nil {
		respondWithServiceError(w, user.ID, "question_get", err)
		return
	}
	respondJSON(w, http.StatusOK, q)
}

// transition runs one of the caller's question actions and writes the result.
func (a *API) transition(w http.ResponseWriter, r *http.Request, action string, run func(userID, questionID int64) (*storage.Question, error)) {
	user := a.currentUser(w, r, action)
	if user == nil {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		respondWithError(w, err.Error(), http.StatusBadRequest)
		return
	}
	q, err := run(user.ID, id)
	if err != nil {
		respondWithServiceError(w, user.ID, action, err)
		return
	}
	logger.Debug(user.ID, action+"_success", fmt.Sprintf("question_id=%d status=%s", q.ID, q.Status))
	respondJSON(w, http.StatusOK, q)
}

// HandleAccept handles POST /api/questions/{id}/accept
func (a *API) HandleAccept(w http.ResponseWriter, r *http.Request) {
	a.transition(w, r, "question_accept", func(userID, id int64) (*storage.Question, error) {
		return a.escrow.AcceptQuestion(r.Context(), userID, id)
	})
}

// HandleReject handles POST /api/questions/{id}/reject
func (a *API) HandleReject(w http.ResponseWriter, r *http.Request) {
	a.transition(w, r, "question_reject", func(userID, id int64) (*storage.Question, error) {
		return a.escrow.RejectQuestion(r.Context(), userID, id)
	})
}

// HandleAnswer handles POST /api/questions/{id}/answer
func (a *API) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, err.Error(), http.StatusBadRequest)
		return
	}
	a.transition(w, r, "question_answer", func(userID, id int64) (*storage.Question, error) {
		return a.escrow.AnswerQuestion(r.Context(), userID, id, req.Content)
	})
}

// HandleDispute handles POST /api/questions/{id}/dispute
func (a *API) HandleDispute(w http.ResponseWriter, r *http.Request) {
	var req DisputeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, err.Error(), http.StatusBadRequest)
		return
	}
	a.transition(w, r, "question_dispute", func(userID, id int64) (*storage.Question, error) {
		return a.escrow.DisputeQuestion(r.Context(), userID, id, req.Reason)
	})
}
