package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/usecase"
)

type SponsorHandler struct {
	sponsors *usecase.Sponsors
	reads    ReadModels
	logger   *slog.Logger
}

func NewSponsorHandler(s *usecase.Sponsors, reads ReadModels, logger *slog.Logger) *SponsorHandler {
	return &SponsorHandler{sponsors: s, reads: reads, logger: logger}
}

func sponsorID(r *http.Request) (domain.SponsorID, error) {
	id, err := domain.ParseSponsorID(chi.URLParam(r, "sponsorID"))
	if err != nil {
		return domain.SponsorID{}, domain.InvalidInputs(fmt.Errorf("invalid sponsor id: %w", err))
	}
	return id, nil
}

func (h *SponsorHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req usecase.CreateSponsorRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	id, err := h.sponsors.Create(r.Context(), req)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, idResponse{ID: id.String()})
}

func (h *SponsorHandler) List(w http.ResponseWriter, r *http.Request) {
	sponsors, err := h.reads.ListSponsors(r.Context(), nil)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sponsors)
}

func (h *SponsorHandler) ListForProject(w http.ResponseWriter, r *http.Request) {
	project, err := projectID(r)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	sponsors, err := h.reads.ListSponsors(r.Context(), &project)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sponsors)
}

func (h *SponsorHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := sponsorID(r)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	sp, err := h.reads.GetSponsor(r.Context(), id)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sp)
}

func (h *SponsorHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := sponsorID(r)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	var req usecase.UpdateSponsorRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	if err := h.sponsors.Update(r.Context(), id, req); err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SponsorHandler) AddToProject(w http.ResponseWriter, r *http.Request) {
	project, err := projectID(r)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	id, err := sponsorID(r)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	if err := h.sponsors.AddToProject(r.Context(), project, id); err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SponsorHandler) RemoveFromProject(w http.ResponseWriter, r *http.Request) {
	project, err := projectID(r)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	id, err := sponsorID(r)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	if err := h.sponsors.RemoveFromProject(r.Context(), project, id); err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
