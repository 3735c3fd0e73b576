package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/usecase"
)

type ProjectHandler struct {
	commands *usecase.Commands
	reads    ReadModels
	logger   *slog.Logger
}

func NewProjectHandler(c *usecase.Commands, reads ReadModels, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{commands: c, reads: reads, logger: logger}
}

type idResponse struct {
	ID string `json:"id"`
}

type assignLeaderRequest struct {
	LeaderID domain.UserID `json:"leader_id"`
}

type linkRepoRequest struct {
	GithubRepoID domain.GithubRepoID `json:"github_repo_id"`
}

func projectID(r *http.Request) (domain.ProjectID, error) {
	id, err := domain.ParseProjectID(chi.URLParam(r, "projectID"))
	if err != nil {
		return domain.ProjectID{}, domain.InvalidInputs(fmt.Errorf("invalid project id: %w", err))
	}
	return id, nil
}

func repoID(r *http.Request) (domain.GithubRepoID, error) {
	n, err := strconv.ParseInt(chi.URLParam(r, "repoID"), 10, 64)
	if err != nil || n <= 0 {
		return 0, domain.InvalidInputs(fmt.Errorf("invalid github repo id %q", chi.URLParam(r, "repoID")))
	}
	return domain.GithubRepoID(n), nil
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, err := h.commands.CreateProject(r.Context())
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, idResponse{ID: id.String()})
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	view, err := h.reads.GetProject(r.Context(), id)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *ProjectHandler) AssignLeader(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	var req assignLeaderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	if err := h.commands.AssignLeader(r.Context(), id, req.LeaderID); err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectHandler) UnassignLeader(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	leader, err := domain.ParseUserID(chi.URLParam(r, "leaderID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid leader id")
		return
	}
	if err := h.commands.UnassignLeader(r.Context(), id, leader); err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectHandler) LinkGithubRepo(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	var req linkRepoRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	if req.GithubRepoID <= 0 {
		respondError(w, http.StatusBadRequest, "github_repo_id is required")
		return
	}
	if err := h.commands.LinkGithubRepo(r.Context(), id, req.GithubRepoID); err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectHandler) UnlinkGithubRepo(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	repo, err := repoID(r)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	if err := h.commands.UnlinkGithubRepo(r.Context(), id, repo); err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetGithubRepo returns the indexed copy of a linked repository.
func (h *ProjectHandler) GetGithubRepo(w http.ResponseWriter, r *http.Request) {
	repo, err := repoID(r)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	indexed, err := h.reads.GetGithubRepo(r.Context(), repo)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, indexed)
}

func (h *ProjectHandler) GetBudget(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	view, err := h.reads.GetBudgetByProject(r.Context(), id)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// UpdateAllocation sets the remaining amount of the project budget.
func (h *ProjectHandler) UpdateAllocation(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	var req domain.Amount
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	if _, err := domain.ParseCurrency(string(req.Currency)); err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	budgetID, err := h.commands.UpdateAllocation(r.Context(), id, req)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, idResponse{ID: budgetID.String()})
}
