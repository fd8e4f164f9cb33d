package handler

import (
	"net/http"

	"github.com/honesta/lostfound-api/internal/domain"
	"github.com/honesta/lostfound-api/internal/service"
	"go.uber.org/zap"
)

type ClaimHandler struct {
	claimService *service.ClaimService
	logger       *zap.Logger
}

func NewClaimHandler(claimService *service.ClaimService, logger *zap.Logger) *ClaimHandler {
	return &ClaimHandler{
		claimService: claimService,
		logger:       logger,
	}
}

// Verify godoc
// @Summary Answer an item's verification questions
// @Description A wrong answer returns 200 with verified=false and the attempts left.
// @Description Once the attempts are used up the claimant gets 429 with Retry-After.
// @Tags Claims
// @Accept json
// @Produce json
// @Param id path string true "Item ID"
// @Param request body domain.ClaimRequest true "Answers in question order"
// @Success 200 {object} domain.ClaimResultDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Failure 429 {object} domain.APIError
// @Security BearerAuth
// @Router /items/{id}/claims [post]
func (h *ClaimHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var req domain.ClaimRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.claimService.Verify(r.Context(), id, &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "verify claim")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Status returns the current user's standing on an item
func (h *ClaimHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	status, err := h.claimService.Status(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err, "load claim status")
		return
	}

	respondJSON(w, http.StatusOK, status)
}
