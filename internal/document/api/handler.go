package api

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	httperr "github.com/xtal-lab/xtal/internal/core/errors"
	"github.com/xtal-lab/xtal/internal/document"
)

// Handler handles document management HTTP requests.
type Handler struct {
	docs             *document.Service
	maxBodySizeBytes int
}

// NewHandler creates a new document API handler.
func NewHandler(docs *document.Service, maxBodySizeBytes int) *Handler {
	return &Handler{
		docs:             docs,
		maxBodySizeBytes: maxBodySizeBytes,
	}
}

// CreateDocumentRequest is the request body for POST /v1/documents.
type CreateDocumentRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// DocumentResponse is the response body for document operations.
type DocumentResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Content   string `json:"content"`
	Active    bool   `json:"active"`
	Result    string `json:"result"`
	Errors    string `json:"errors"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type apiError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

// HandleList handles GET /v1/documents.
func (h *Handler) HandleList(c *gin.Context) {
	docs, err := h.docs.List(c.Request.Context())
	if err != nil {
		slog.Error("[Documents] List error", "error", err)
		writeError(c, internalError("Failed to list documents"))
		return
	}

	responses := make([]*DocumentResponse, len(docs))
	for i, d := range docs {
		responses[i] = toResponse(d)
	}
	c.JSON(http.StatusOK, responses)
}

// HandleCreate handles POST /v1/documents.
func (h *Handler) HandleCreate(c *gin.Context) {
	var req CreateDocumentRequest
	if apiErr := h.bind(c, &req); apiErr != nil {
		writeError(c, apiErr)
		return
	}

	d, err := h.docs.Create(c.Request.Context(), req.Name, req.Content)
	if err != nil {
		writeError(c, storageError(err, ""))
		return
	}
	c.JSON(http.StatusCreated, toResponse(d))
}

// HandleGet handles GET /v1/documents/{id}.
func (h *Handler) HandleGet(c *gin.Context) {
	id := c.Param("id")
	d, err := h.docs.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, storageError(err, id))
		return
	}
	c.JSON(http.StatusOK, toResponse(d))
}

// HandleUpdate handles PUT /v1/documents/{id}.
func (h *Handler) HandleUpdate(c *gin.Context) {
	id := c.Param("id")
	var patch document.Patch
	if apiErr := h.bind(c, &patch); apiErr != nil {
		writeError(c, apiErr)
		return
	}

	d, err := h.docs.Update(c.Request.Context(), id, patch)
	if err != nil {
		writeError(c, storageError(err, id))
		return
	}
	c.JSON(http.StatusOK, toResponse(d))
}

// HandleDelete handles DELETE /v1/documents/{id}.
func (h *Handler) HandleDelete(c *gin.Context) {
	id := c.Param("id")
	if err := h.docs.Remove(c.Request.Context(), id); err != nil {
		writeError(c, storageError(err, id))
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleActivate handles POST /v1/documents/{id}/activate.
func (h *Handler) HandleActivate(c *gin.Context) {
	id := c.Param("id")
	if err := h.docs.Activate(c.Request.Context(), id); err != nil {
		writeError(c, storageError(err, id))
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "active": true})
}

// bind reads the size-limited body and decodes it into dst.
func (h *Handler) bind(c *gin.Context, dst interface{}) *apiError {
	maxBytes := int64(h.maxBodySizeBytes)
	bodyBytes, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBytes+1))
	if err != nil {
		slog.Error("[Documents] Failed to read request body", "error", err)
		return internalError("Failed to read request body")
	}
	if int64(len(bodyBytes)) > maxBytes {
		return &apiError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details:    map[string]interface{}{"max_size_mb": maxBytes / (1024 * 1024)},
		}
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	if err := c.ShouldBindJSON(dst); err != nil {
		slog.Warn("[Documents] Invalid JSON body received", "error", err)
		return &apiError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Invalid JSON body",
		}
	}
	return nil
}

func storageError(err error, id string) *apiError {
	switch {
	case errors.Is(err, document.ErrNotFound):
		return &apiError{
			statusCode: http.StatusNotFound,
			errorType:  httperr.HttpDocumentNotFoundError,
			message:    "Document not found",
			details:    map[string]interface{}{"id": id},
		}
	case errors.Is(err, document.ErrAlreadyExists):
		return &apiError{
			statusCode: http.StatusConflict,
			errorType:  httperr.HttpDocumentConflictError,
			message:    "Document already exists",
		}
	default:
		slog.Error("[Documents] Storage error", "id", id, "error", err)
		return internalError("Document storage failed")
	}
}

func internalError(msg string) *apiError {
	return &apiError{
		statusCode: http.StatusInternalServerError,
		errorType:  httperr.HttpInternalError,
		message:    msg,
	}
}

func writeError(c *gin.Context, err *apiError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}

func toResponse(d *document.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:        d.ID,
		Name:      d.Name,
		Content:   d.Content,
		Active:    d.Active,
		Result:    d.Result,
		Errors:    d.Errors,
		CreatedAt: d.CreatedAt.Format(time.RFC3339),
		UpdatedAt: d.UpdatedAt.Format(time.RFC3339),
	}
}
