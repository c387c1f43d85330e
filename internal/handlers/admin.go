package handlers

import (
	"fmt"
	"net/http"

	"paidqa/internal/auth"
	"paidqa/internal/logger"
	"paidqa/internal/service"
	"paidqa/internal/storage"
)

// ResolveRequest is the request body for resolving a dispute
type ResolveRequest struct {
	Resolution storage.Resolution `json:"resolution"`
}

func operatorFrom(r *http.Request) service.Operator {
	claims, ok := auth.OperatorFromContext(r.Context())
	if !ok {
		return service.Operator{}
	}
	return service.Operator{Subject: claims.Subject, Role: claims.Role}
}

// HandleListDisputes handles GET /admin/disputes
func (a *API) HandleListDisputes(w http.ResponseWriter, r *http.Request) {
	questions, err := a.escrow.ListDisputes(r.Context(), operatorFrom(r))
	if err != nil {
		respondWithServiceError(w, 0, "admin_disputes", err)
		return
	}
	respondJSON(w, http.StatusOK, questions)
}

// HandleInspectQuestion handles GET /admin/questions/{id}
func (a *API) HandleInspectQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondWithError(w, err.Error(), http.StatusBadRequest)
		return
	}
	q, err := a.escrow.InspectQuestion(r.Context(), operatorFrom(r), id)
	if err != nil {
		respondWithServiceError(w, 0, "admin_inspect", err)
		return
	}
	respondJSON(w, http.StatusOK, q)
}

// HandleResolve handles POST /admin/questions/{id}/resolve
func (a *API) HandleResolve(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondWithError(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req ResolveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, err.Error(), http.StatusBadRequest)
		return
	}

	op := operatorFrom(r)
	q, err := a.escrow.ResolveDispute(r.Context(), op, id, req.Resolution)
	if err != nil {
		respondWithServiceError(w, 0, "admin_resolve", err)
		return
	}
	logger.Info(0, "admin_resolve_success", fmt.Sprintf("question_id=%d operator=%s resolution=%s", q.ID, op.Subject, req.Resolution))
	respondJSON(w, http.StatusOK, q)
}
