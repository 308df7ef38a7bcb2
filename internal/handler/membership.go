package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/gitpilot/internal/model"
	"github.com/sakif/gitpilot/internal/service"
)

// MembershipHandler serves role lookups and member management.
type MembershipHandler struct {
	members *service.MembershipService
	logger  *slog.Logger
}

func NewMembershipHandler(members *service.MembershipService, logger *slog.Logger) *MembershipHandler {
	return &MembershipHandler{members: members, logger: logger}
}

// HandleRole reports the caller's role. Anonymous callers get "none".
//
// HTTP: GET /api/projects/{id}/role
func (h *MembershipHandler) HandleRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.members.ResolveRole(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

// HTTP: GET /api/projects/{id}/members
func (h *MembershipHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	members, err := h.members.ListMembers(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

type setRoleRequest struct {
	Role model.Role `json:"role"`
}

// HTTP: PUT /api/projects/{id}/members/{userID}
// REQUEST BODY: {"role": "admin"}
func (h *MembershipHandler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	var req setRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	err := h.members.SetMemberRole(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "userID"), req.Role)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HTTP: DELETE /api/projects/{id}/members/{userID}
func (h *MembershipHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	if err := h.members.RemoveMember(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "userID")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
