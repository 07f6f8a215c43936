package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ecociclo/ecociclo/internal/middleware"
	"github.com/ecociclo/ecociclo/internal/photo"
)

// SignPhotoRequest represents the request body for POST /v1/photos/sign.
type SignPhotoRequest struct {
	ContentType string  `json:"content_type"`
	SizeBytes   int64   `json:"size_bytes"`
	PointID     *string `json:"point_id,omitempty"`
}

// SignPhotoResponse represents the response for POST /v1/photos/sign.
type SignPhotoResponse struct {
	URL       string `json:"url"`
	Key       string `json:"key"`
	ExpiresAt string `json:"expires_at"` // ISO 8601 format
}

// PhotoHandlers holds dependencies for photo upload HTTP handlers.
type PhotoHandlers struct {
	photoService *photo.Service
}

// NewPhotoHandlers creates a new PhotoHandlers instance.
func NewPhotoHandlers(photoService *photo.Service) *PhotoHandlers {
	return &PhotoHandlers{photoService: photoService}
}

// SignPhoto handles POST /v1/photos/sign - generates a pre-signed upload URL
// for a collection point photo.
func (h *PhotoHandlers) SignPhoto(w http.ResponseWriter, r *http.Request) {
	var req SignPhotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if req.ContentType == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "content_type is required")
		return
	}
	if req.SizeBytes <= 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "size_bytes must be positive")
		return
	}

	signedURL, err := h.photoService.GenerateSignedURL(r.Context(), photo.SignedURLRequest{
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
		PointID:     req.PointID,
	})
	if err != nil {
		switch {
		case errors.Is(err, photo.ErrUnsupportedType):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnsupportedType)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeUnsupportedType,
				"Unsupported content type. Allowed types: image/jpeg, image/png, image/webp")
		case errors.Is(err, photo.ErrFileTooLarge):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "File size exceeds maximum allowed")
		case errors.Is(err, photo.ErrInvalidPointID):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Invalid point ID")
		default:
			slog.ErrorContext(r.Context(), "failed to generate signed URL", "error", err)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to generate signed URL")
		}
		return
	}

	response := SignPhotoResponse{
		URL:       signedURL.URL,
		Key:       signedURL.Key,
		ExpiresAt: signedURL.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
		return
	}
}
