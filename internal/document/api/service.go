// Package api exposes document management over HTTP.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/xtal-lab/xtal/internal/document"
)

// Service provides the document management API.
type Service struct {
	docs             *document.Service
	maxBodySizeBytes int
}

// NewService creates a new document API service.
func NewService(docs *document.Service, maxBodySizeMB int) *Service {
	if docs == nil {
		panic("api: document service must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		docs:             docs,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
	}
}

// RegisterRoutes registers the document API routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	handler := NewHandler(s.docs, s.maxBodySizeBytes)

	documents := r.Group("/v1/documents")
	{
		documents.GET("", handler.HandleList)
		documents.POST("", handler.HandleCreate)
		documents.GET("/:id", handler.HandleGet)
		documents.PUT("/:id", handler.HandleUpdate)
		documents.DELETE("/:id", handler.HandleDelete)
		documents.POST("/:id/activate", handler.HandleActivate)
	}
}
