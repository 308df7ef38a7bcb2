package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/gitpilot/internal/service"
)

// ProjectHandler serves project CRUD, invites and repository connection.
type ProjectHandler struct {
	projects *service.ProjectService
	repos    *service.RepositoryService
	logger   *slog.Logger
}

func NewProjectHandler(projects *service.ProjectService, repos *service.RepositoryService, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, repos: repos, logger: logger}
}

type projectRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	IsPublic    bool     `json:"isPublic"`
}

func (p projectRequest) input() service.ProjectInput {
	return service.ProjectInput{
		Name:        p.Name,
		Description: p.Description,
		Tags:        p.Tags,
		IsPublic:    p.IsPublic,
	}
}

// HandleCreate creates a project owned by the caller.
//
// HTTP: POST /api/projects
func (h *ProjectHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	project, err := h.projects.Create(r.Context(), req.input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// HandleListPublic pages through public projects.
//
// HTTP: GET /api/projects?limit=20&offset=0
func (h *ProjectHandler) HandleListPublic(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	projects, err := h.projects.ListPublic(r.Context(), limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// HandleListMine lists projects the caller owns or belongs to.
//
// HTTP: GET /api/projects/mine
func (h *ProjectHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.ListMine(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// HTTP: GET /api/projects/{id}
func (h *ProjectHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	project, err := h.projects.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// HTTP: PUT /api/projects/{id}
func (h *ProjectHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	project, err := h.projects.Update(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// HTTP: POST /api/projects/{id}/upvote
func (h *ProjectHandler) HandleUpvote(w http.ResponseWriter, r *http.Request) {
	n, err := h.projects.Upvote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"upvotes": n})
}

// HandleRegenerateInvite returns a fresh invite code. It is shown once.
//
// HTTP: POST /api/projects/{id}/invite
func (h *ProjectHandler) HandleRegenerateInvite(w http.ResponseWriter, r *http.Request) {
	code, err := h.projects.RegenerateInvite(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"inviteCode": code})
}

// HTTP: DELETE /api/projects/{id}/invite
func (h *ProjectHandler) HandleRevokeInvite(w http.ResponseWriter, r *http.Request) {
	if err := h.projects.RevokeInvite(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type connectRepositoryRequest struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// HandleConnectRepository links a GitHub repository to the project.
//
// HTTP: POST /api/projects/{id}/repository
// REQUEST BODY: {"owner": "octocat", "name": "hello-world"}
func (h *ProjectHandler) HandleConnectRepository(w http.ResponseWriter, r *http.Request) {
	var req connectRepositoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	repo, err := h.repos.Connect(r.Context(), chi.URLParam(r, "id"), req.Owner, req.Name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, repo)
}

// HTTP: GET /api/me/repository
func (h *ProjectHandler) HandleMyRepository(w http.ResponseWriter, r *http.Request) {
	repo, err := h.repos.GetMine(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, repo)
}
