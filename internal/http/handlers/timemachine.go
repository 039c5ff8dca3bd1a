package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/internal/middleware"
	"server/internal/providers/image"
	"server/internal/timemachine"
)

const (
	minTargetYear = 1800
	maxTargetYear = 2030

	maxUploadBytes = 15 << 20
)

type timePhotoResponse struct {
	ID             string     `json:"id"`
	OwnerID        string     `json:"owner_id"`
	OriginalURL    string     `json:"original_image_url"`
	ResultURL      string     `json:"result_image_url,omitempty"`
	TargetYear     int        `json:"target_year"`
	Mode           string     `json:"transformation_mode"`
	StyleApplied   string     `json:"style_applied"`
	PromptUsed     string     `json:"prompt_used"`
	Provider       string     `json:"provider"`
	ExternalTaskID string     `json:"external_task_id,omitempty"`
	Status         string     `json:"status"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	Cost           int        `json:"cost"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

func toPhotoResponse(p *domain.TimePhoto) timePhotoResponse {
	return timePhotoResponse{
		ID:             p.ID,
		OwnerID:        p.OwnerID,
		OriginalURL:    p.OriginalURL,
		ResultURL:      p.ResultURL,
		TargetYear:     p.TargetYear,
		Mode:           string(p.Mode),
		StyleApplied:   p.StyleApplied,
		PromptUsed:     p.PromptUsed,
		Provider:       p.Provider,
		ExternalTaskID: p.ExternalTaskID,
		Status:         string(p.Status),
		ErrorMessage:   p.ErrorMessage,
		Cost:           p.Cost,
		CreatedAt:      p.CreatedAt,
		CompletedAt:    p.CompletedAt,
	}
}

// Generate accepts a multipart photo upload and starts a transformation.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart payload")
		return
	}

	targetYear, err := strconv.Atoi(r.FormValue("target_year"))
	if err != nil || targetYear < minTargetYear || targetYear > maxTargetYear {
		a.error(w, http.StatusBadRequest, "bad_request", "target_year must be between 1800 and 2030")
		return
	}
	mode := domain.TransformMode(r.FormValue("mode"))

	file, header, err := r.FormFile("file")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "failed to read upload")
		return
	}

	originalURL, err := a.Uploads.SaveUpload(r.Context(), header.Filename, data)
	if err != nil {
		a.Logger.Error().Err(err).Msg("failed to persist upload")
		a.error(w, http.StatusInternalServerError, "internal", "failed to store upload")
		return
	}

	photo, err := a.TimeMachine.Submit(r.Context(), timemachine.SubmitRequest{
		OwnerID:     userID,
		OriginalURL: originalURL,
		Upload: image.SourceImage{
			Data:     data,
			Filename: header.Filename,
			MIME:     header.Header.Get("Content-Type"),
		},
		TargetYear: targetYear,
		Mode:       mode,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientCredits) {
			a.error(w, http.StatusPaymentRequired, "insufficient_credits", "not enough credits, at least 1 required")
			return
		}
		a.Logger.Error().Err(err).Msg("failed to submit transformation")
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	a.json(w, http.StatusCreated, toPhotoResponse(photo))
}

// Check polls the provider for a pending transformation and returns the
// current job state. Safe to call repeatedly.
func (a *App) Check(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	photoID := chi.URLParam(r, "id")

	photo, err := a.TimeMachine.Reconcile(r.Context(), photoID, userID)
	if err != nil {
		a.photoError(w, err)
		return
	}
	a.json(w, http.StatusOK, toPhotoResponse(photo))
}

// GetPhoto returns one of the caller's transformations.
func (a *App) GetPhoto(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	photo, err := a.TimeMachine.Get(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		a.photoError(w, err)
		return
	}
	a.json(w, http.StatusOK, toPhotoResponse(photo))
}

// Balance returns the caller's credit balance.
func (a *App) Balance(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	balance, err := a.TimeMachine.Balance(r.Context(), userID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("failed to load balance")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load balance")
		return
	}
	a.json(w, http.StatusOK, map[string]int{"credits": balance})
}

// History returns a page of the caller's transformations.
func (a *App) History(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	history, err := a.TimeMachine.History(r.Context(), userID, page, perPage)
	if err != nil {
		a.Logger.Error().Err(err).Msg("failed to load history")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load history")
		return
	}

	items := make([]timePhotoResponse, 0, len(history.Items))
	for i := range history.Items {
		items = append(items, toPhotoResponse(&history.Items[i]))
	}
	a.json(w, http.StatusOK, map[string]any{
		"items":    items,
		"total":    history.Total,
		"page":     history.Page,
		"per_page": history.PerPage,
		"pages":    history.Pages,
	})
}

// TimeMachineConfig returns the active provider, default mode, and the
// localized mode catalog.
func (a *App) TimeMachineConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := a.TimeMachine.ActiveConfig(r.Context(), middleware.LocaleFromContext(r.Context()))
	if err != nil {
		a.Logger.Error().Err(err).Msg("failed to resolve config")
		a.error(w, http.StatusInternalServerError, "internal", "failed to resolve configuration")
		return
	}
	a.json(w, http.StatusOK, cfg)
}

func (a *App) photoError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNotOwner):
		// Foreign jobs are reported as missing rather than forbidden, so
		// job ids cannot be probed.
		a.error(w, http.StatusNotFound, "not_found", "photo not found")
	default:
		a.Logger.Error().Err(err).Msg("photo request failed")
		a.error(w, http.StatusInternalServerError, "internal", "request failed")
	}
}
