package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/tenantrag/internal/indexer"
	"github.com/hyperjump/tenantrag/internal/models"
	"github.com/hyperjump/tenantrag/internal/storage"
	"github.com/hyperjump/tenantrag/internal/store"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type indexResponse struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Chunks   int    `json:"chunks"`
}

type updateResponse struct {
	*models.Document
	Chunks int `json:"chunks"`
}

type listResponse struct {
	Documents []*models.Document `json:"documents"`
	Total     int64              `json:"total"`
	Offset    int                `json:"offset"`
	Limit     int                `json:"limit"`
}

func (s *Server) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFrom(r)
	var input models.DocumentInput
	if err := s.decode(w, r, &input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(input.Content) == "" {
		s.respondError(w, http.StatusBadRequest, "content is required")
		return
	}
	s.logger.Debug("index document request",
		zap.String("tenant_id", tenantID), zap.String("id", input.ID), zap.String("title", input.Title))
	doc, n, err := s.indexer.IndexDocument(r.Context(), tenantID, &input)
	if err != nil {
		s.respondFailure(w, "indexing failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, indexResponse{ID: doc.ID, TenantID: tenantID, Chunks: n})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	catalog := s.indexer.Catalog()
	if catalog == nil {
		s.respondError(w, http.StatusNotImplemented, "document catalog not enabled")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil || limit <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	limit = min(limit, maxListLimit)

	tenantID := tenantFrom(r)
	docs, err := catalog.ListDocuments(r.Context(), tenantID, offset, limit)
	if err != nil {
		s.respondFailure(w, "list documents failed", err)
		return
	}
	total, err := catalog.CountDocuments(r.Context(), tenantID)
	if err != nil {
		s.respondFailure(w, "count documents failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, listResponse{Documents: docs, Total: total, Offset: offset, Limit: limit})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	catalog := s.indexer.Catalog()
	if catalog == nil {
		s.respondError(w, http.StatusNotImplemented, "document catalog not enabled")
		return
	}
	id := chi.URLParam(r, "id")
	doc, err := catalog.GetDocument(r.Context(), tenantFrom(r), id)
	if err != nil {
		s.respondFailure(w, "get document failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	var update models.DocumentUpdate
	if err := s.decode(w, r, &update); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tenantID := tenantFrom(r)
	id := chi.URLParam(r, "id")
	s.logger.Debug("update document request", zap.String("tenant_id", tenantID), zap.String("id", id))
	doc, n, err := s.indexer.UpdateDocument(r.Context(), tenantID, id, &update)
	if err != nil {
		s.respondFailure(w, "update failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, updateResponse{Document: doc, Chunks: n})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFrom(r)
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("tenant_id", tenantID), zap.String("id", id))
	n, err := s.indexer.DeleteDocument(r.Context(), tenantID, id)
	if err != nil {
		s.respondFailure(w, "deletion failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"status": "deleted", "chunks": n})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.RetrieveRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp, err := s.engine.Retrieve(r.Context(), tenantFrom(r), &req)
	if err != nil {
		s.respondFailure(w, "query failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.RetrieveRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	answer, err := s.engine.Answer(r.Context(), tenantFrom(r), &req)
	if err != nil {
		s.respondFailure(w, "chat failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, answer)
}

func (s *Server) handleDeleteTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFrom(r)
	if err := s.indexer.DeleteTenant(r.Context(), tenantID); err != nil {
		s.respondFailure(w, "tenant deletion failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted", "tenant_id": tenantID})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := CollectStatus(r.Context(), s.registry, s.indexer.Catalog(), s.config)
	if err != nil {
		s.respondFailure(w, "status failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"directory": s.watch.Root(),
		"tenants":   s.watch.Tenants(),
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrMalformedInput), errors.Is(err, models.ErrInvalidValue):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrStoreClosed):
		return http.StatusConflict
	case errors.Is(err, indexer.ErrNoCatalog):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondFailure(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Int("status", status), zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
