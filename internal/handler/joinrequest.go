package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/gitpilot/internal/model"
	"github.com/sakif/gitpilot/internal/service"
)

// JoinRequestHandler exposes the join request ledger.
type JoinRequestHandler struct {
	requests *service.JoinRequestService
	logger   *slog.Logger
}

func NewJoinRequestHandler(requests *service.JoinRequestService, logger *slog.Logger) *JoinRequestHandler {
	return &JoinRequestHandler{requests: requests, logger: logger}
}

type submitJoinRequest struct {
	Message    string `json:"message"`
	InviteCode string `json:"inviteCode"`
}

// HandleSubmit files a join request for the caller.
//
// HTTP: POST /api/projects/{id}/join-requests
// REQUEST BODY: {"message": "please add me", "inviteCode": "..."} (both optional)
func (h *JoinRequestHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitJoinRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	created, err := h.requests.Submit(r.Context(), chi.URLParam(r, "id"), service.SubmitInput{
		Message:    req.Message,
		InviteCode: req.InviteCode,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleList returns the project's requests, newest first.
//
// HTTP: GET /api/projects/{id}/join-requests?status=pending
func (h *JoinRequestHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	status := model.JoinRequestStatus(r.URL.Query().Get("status"))

	requests, err := h.requests.List(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

type resolveJoinRequest struct {
	Decision model.JoinRequestStatus `json:"decision"`
}

// HandleResolve accepts or rejects a pending request.
//
// HTTP: POST /api/join-requests/{id}/resolve
// REQUEST BODY: {"decision": "accepted"} or {"decision": "rejected"}
func (h *JoinRequestHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveJoinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	resolved, err := h.requests.Resolve(r.Context(), chi.URLParam(r, "id"), req.Decision)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}
