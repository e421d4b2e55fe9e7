package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/firmscout/backend/internal/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	serviceName    = "firmscout-backend"
	serviceVersion = "1.0.0"

	hintTimeout    = "The origin site is responding slowly, please try again."
	hintConnection = "Could not reach the origin site."
)

// DirectoryService is the pipeline the handlers expose
type DirectoryService interface {
	Search(ctx context.Context, rawKeywords string) (*domain.SearchResult, error)
	CacheStatus() domain.CacheStatus
	ClearCache()
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	directory DirectoryService
}

// NewHandler creates a new HTTP handler
func NewHandler(directory DirectoryService) *Handler {
	return &Handler{directory: directory}
}

// SearchResponse is the body of a successful search
type SearchResponse struct {
	Success         bool                 `json:"success"`
	TotalRecords    int                  `json:"totalRecords"`
	MatchedRecords  int                  `json:"matchedRecords"`
	Records         []domain.MatchResult `json:"records"`
	ElapsedMs       int64                `json:"elapsedMs"`
	ServedFromCache bool                 `json:"servedFromCache"`
	Stale           bool                 `json:"stale,omitempty"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Hint    string `json:"hint,omitempty"`
}

// HealthCheck returns the health status of the API and the cache state.
// It never triggers a directory refresh.
func (h *Handler) HealthCheck(c *gin.Context) {
	status := h.directory.CacheStatus()

	var cacheAge interface{}
	if status.Populated {
		cacheAge = int64(status.Age.Seconds())
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"service":         serviceName,
		"version":         serviceVersion,
		"cached":          status.Populated,
		"fresh":           status.Fresh,
		"cacheAgeSeconds": cacheAge,
		"records":         status.Records,
	})
}

// SearchCompanies handles keyword searches over the company directory.
// Keywords come from the JSON body on POST and from the query string on GET.
func (h *Handler) SearchCompanies(c *gin.Context) {
	var req domain.SearchRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Keywords) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: domain.ErrInvalidQuery.Error()})
		return
	}

	result, err := h.directory.Search(c.Request.Context(), req.Keywords)
	if err != nil {
		h.writeSearchError(c, err)
		return
	}

	c.JSON(http.StatusOK, SearchResponse{
		Success:         true,
		TotalRecords:    result.TotalRecords,
		MatchedRecords:  result.MatchedRecords,
		Records:         result.Records,
		ElapsedMs:       result.Elapsed.Milliseconds(),
		ServedFromCache: result.ServedFromCache,
		Stale:           result.Stale,
	})
}

// ClearCache drops the cached directory
func (h *Handler) ClearCache(c *gin.Context) {
	h.directory.ClearCache()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "cache cleared",
	})
}

// writeSearchError maps pipeline errors to responses
func (h *Handler) writeSearchError(c *gin.Context, err error) {
	var fetchErr *domain.FetchError

	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.As(err, &fetchErr):
		hint := hintConnection
		if fetchErr.Timeout() {
			hint = hintTimeout
		}
		zap.L().Error("directory search failed",
			zap.String("component", "http"),
			zap.Int("attempts", fetchErr.Attempts),
			zap.Error(err),
		)
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error(), Hint: hint})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: err.Error(), Hint: hintTimeout})
	default:
		zap.L().Error("directory search failed", zap.String("component", "http"), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}
