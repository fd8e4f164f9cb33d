package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/honesta/lostfound-api/internal/domain"
	"github.com/honesta/lostfound-api/internal/service"
	"go.uber.org/zap"
)

type ItemHandler struct {
	itemService *service.ItemService
	maxUpload   int64
	logger      *zap.Logger
}

// NewItemHandler creates an item handler; maxUpload is the photo limit in bytes.
func NewItemHandler(itemService *service.ItemService, maxUpload int64, logger *zap.Logger) *ItemHandler {
	return &ItemHandler{
		itemService: itemService,
		maxUpload:   maxUpload,
		logger:      logger,
	}
}

// Report godoc
// @Summary Report a found item
// @Description Upload a photo. In ai mode the challenge is generated; in manual mode the
// @Description founder supplies 1-5 question/answer pairs as JSON in the questions field.
// @Tags Items
// @Accept multipart/form-data
// @Produce json
// @Param photo formData file true "Photo of the item"
// @Param mode formData string true "ai or manual"
// @Param title formData string false "Title (manual mode)"
// @Param questions formData string false "JSON array of {q, a} (manual mode)"
// @Success 201 {object} domain.FoundItemDTO
// @Failure 400 {object} domain.APIError
// @Failure 413 {object} domain.APIError
// @Security BearerAuth
// @Router /items [post]
func (h *ItemHandler) Report(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Photo too large: maximum size is %dMB", h.maxUpload>>20))
			return
		}
		respondWithError(w, http.StatusBadRequest, "Invalid upload: expected a multipart form")
		return
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid upload: photo field is required")
		return
	}
	defer file.Close()

	photo, err := io.ReadAll(file)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Failed to read photo")
		return
	}

	req := domain.ReportItemRequest{
		Mode:  domain.ReportMode(strings.ToLower(strings.TrimSpace(r.FormValue("mode")))),
		Title: r.FormValue("title"),
	}
	if raw := strings.TrimSpace(r.FormValue("questions")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Questions); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid questions: expected a JSON array of {q, a}")
			return
		}
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	item, err := h.itemService.Report(r.Context(), &req, photo)
	if err != nil {
		handleServiceError(w, h.logger, err, "report item")
		return
	}

	respondJSON(w, http.StatusCreated, item)
}

// List godoc
// @Summary List the found-item feed
// @Tags Items
// @Produce json
// @Param search query string false "Case-insensitive title search"
// @Param status query string false "available or handovered"
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.FoundItemDTO}
// @Security BearerAuth
// @Router /items [get]
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	filter := domain.ItemListFilter{
		Search:   r.URL.Query().Get("search"),
		Status:   domain.ItemStatus(r.URL.Query().Get("status")),
		Page:     page,
		PageSize: pageSize,
	}

	result, err := h.itemService.List(r.Context(), filter)
	if err != nil {
		handleServiceError(w, h.logger, err, "list items")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Mine returns the current user's own reports
func (h *ItemHandler) Mine(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)

	result, err := h.itemService.Mine(r.Context(), page, pageSize)
	if err != nil {
		handleServiceError(w, h.logger, err, "list your reports")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	item, err := h.itemService.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err, "load item")
		return
	}

	respondJSON(w, http.StatusOK, item)
}

// Handover godoc
// @Summary Mark an item as handed over
// @Description Founder only. Repeating the call has no further effect.
// @Tags Items
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} domain.FoundItemDTO
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /items/{id}/handover [post]
func (h *ItemHandler) Handover(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	item, err := h.itemService.Handover(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err, "hand over item")
		return
	}

	respondJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.itemService.Delete(r.Context(), id); err != nil {
		handleServiceError(w, h.logger, err, "delete item")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PublicImage streams the dark rendition. No authentication is needed.
func (h *ItemHandler) PublicImage(w http.ResponseWriter, r *http.Request) {
	h.streamImage(w, r, service.RenditionPublic, "public, max-age=86400")
}

// OriginalImage streams the full-color photo to the founder or a verified claimant
func (h *ItemHandler) OriginalImage(w http.ResponseWriter, r *http.Request) {
	h.streamImage(w, r, service.RenditionOriginal, "private, no-store")
}

func (h *ItemHandler) streamImage(w http.ResponseWriter, r *http.Request, rendition, cacheControl string) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	reader, err := h.itemService.OpenImage(r.Context(), id, rendition)
	if err != nil {
		handleServiceError(w, h.logger, err, "load image")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", cacheControl)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Warn("image stream interrupted", zap.String("item_id", id.String()), zap.Error(err))
	}
}
