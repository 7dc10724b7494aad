package evaluation

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	httperr "github.com/xtal-lab/xtal/internal/core/errors"
	"github.com/xtal-lab/xtal/internal/document"
)

const (
	msgReadBodyFailed     = "Failed to read request body"
	msgInvalidJSON        = "Invalid JSON body"
	msgDocumentNotFound   = "Document not found"
	msgEvaluationFailed   = "Evaluation failed"
	msgEvaluationRejected = "Evaluation could not be scheduled"
)

// evaluationError carries the structured HTTP error shape from a helper back to the handler.
type evaluationError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *evaluationError) Error() string {
	return e.message
}

// EvaluateHandler handles POST /v1/evaluate.
func (s *Service) EvaluateHandler(c *gin.Context) {
	req, err := s.parseRequest(c)
	if err != nil {
		writeError(c, err)
		return
	}

	out, evalErr := s.Evaluate(c.Request.Context(), *req)
	if evalErr != nil {
		writeError(c, evaluationFailure(evalErr, req.DocumentID))
		return
	}
	c.JSON(http.StatusOK, out)
}

// EvaluateDocumentHandler handles POST /v1/documents/:id/evaluate.
func (s *Service) EvaluateDocumentHandler(c *gin.Context) {
	id := c.Param("id")
	out, err := s.EvaluateDocument(c.Request.Context(), id)
	if err != nil {
		writeError(c, evaluationFailure(err, id))
		return
	}
	c.JSON(http.StatusOK, out)
}

// parseRequest reads the size-limited body and binds it into a Request.
func (s *Service) parseRequest(c *gin.Context) (*Request, *evaluationError) {
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("[Evaluation] Failed to read request body", "error", err)
		return nil, &evaluationError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("[Evaluation] Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return nil, &evaluationError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("[Evaluation] Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		return nil, &evaluationError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		}
	}
	return &req, nil
}

// evaluationFailure maps a pipeline error to its HTTP shape. Script errors are
// never pipeline errors; they are part of a successful Outcome.
func evaluationFailure(err error, documentID string) *evaluationError {
	switch {
	case errors.Is(err, document.ErrNotFound):
		return &evaluationError{
			statusCode: http.StatusNotFound,
			errorType:  httperr.HttpDocumentNotFoundError,
			message:    msgDocumentNotFound,
			details:    map[string]interface{}{"id": documentID},
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		slog.Warn("[Evaluation] Request abandoned", "document_id", documentID, "error", err)
		return &evaluationError{
			statusCode: http.StatusServiceUnavailable,
			errorType:  httperr.HttpEvaluationFailedError,
			message:    msgEvaluationRejected,
		}
	default:
		slog.Error("[Evaluation] Evaluation failed", "document_id", documentID, "error", err)
		return &evaluationError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpEvaluationFailedError,
			message:    msgEvaluationFailed,
		}
	}
}

// writeError serializes an evaluationError as the JSON HTTP response.
func writeError(c *gin.Context, err *evaluationError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
