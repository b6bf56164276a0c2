package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/metrics"
	"github.com/vovakirdan/roomchat/internal/store"
)

// DocHandlers provides HTTP handlers for document endpoints.
type DocHandlers struct {
	store   store.DocumentStore
	metrics *metrics.Metrics
	log     *zerolog.Logger
}

// NewDocHandlers creates a new document handlers instance.
func NewDocHandlers(st store.DocumentStore, m *metrics.Metrics, logger *zerolog.Logger) *DocHandlers {
	return &DocHandlers{
		store:   st,
		metrics: m,
		log:     logger,
	}
}

// DocumentRequest is the body of write requests.
type DocumentRequest struct {
	Data json.RawMessage `json:"data"`
}

// GetDocument returns a single document.
// GET /api/docs/*path
func (h *DocHandlers) GetDocument(c *gin.Context) {
	doc, err := h.store.Get(c.Request.Context(), c.Param("path"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// SetDocument creates or replaces a document.
// PUT /api/docs/*path
func (h *DocHandlers) SetDocument(c *gin.Context) {
	var req DocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid set document request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	doc, err := h.store.Set(c.Request.Context(), c.Param("path"), req.Data)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.metrics.DocumentWritten("set")
	h.log.Debug().Str("path", doc.Path).Msg("document set")
	c.JSON(http.StatusOK, doc)
}

// AddDocument appends a document with a generated ID.
// POST /api/collections/*path
func (h *DocHandlers) AddDocument(c *gin.Context) {
	var req DocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid add document request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	doc, err := h.store.Add(c.Request.Context(), c.Param("path"), req.Data)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.metrics.DocumentWritten("add")
	h.log.Debug().Str("path", doc.Path).Msg("document added")
	c.JSON(http.StatusCreated, doc)
}

// QueryCollection runs a one-shot query.
// GET /api/collections/*path?direction=asc|desc&limit=N
func (h *DocHandlers) QueryCollection(c *gin.Context) {
	q := store.Query{
		Collection: c.Param("path"),
		Direction:  store.Direction(c.Query("direction")),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		q.Limit = limit
	}

	docs, err := h.store.Query(c.Request.Context(), q)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, QueryResponse{Docs: docs})
}

// QueryResponse is the body of a one-shot query.
type QueryResponse struct {
	Docs []store.Document `json:"docs"`
}

func (h *DocHandlers) writeError(c *gin.Context, err error) {
	status, msg := statusFromStoreError(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.Param("path")).Msg("store request failed")
	}
	c.JSON(status, ErrorResponse{Error: msg})
}
