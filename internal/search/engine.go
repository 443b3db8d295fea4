// Package search answers retrieval requests against tenant stores.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/tenantrag/internal/config"
	"github.com/hyperjump/tenantrag/internal/models"
	"github.com/hyperjump/tenantrag/internal/store"
	"go.uber.org/zap"
)

// Engine runs ranked retrieval over a tenant's chunks.
type Engine struct {
	registry *store.Registry
	config   config.RetrievalConfig
	logger   *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates a search engine reading from registry.
func NewEngine(registry *store.Registry, cfg config.RetrievalConfig, opts ...EngineOption) *Engine {
	e := &Engine{registry: registry, config: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Retrieve validates req, applies result-count defaults, and returns the best chunks of
// the tenant, best first.
func (e *Engine) Retrieve(ctx context.Context, tenantID string, req *models.RetrieveRequest) (*models.RetrieveResponse, error) {
	startTime := time.Now()
	if req == nil {
		return nil, fmt.Errorf("%w: request is nil", store.ErrMalformedInput)
	}
	if err := req.Validate(e.config.DefaultResults, e.config.MaxResults); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrMalformedInput, err)
	}
	s, err := e.registry.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	result, err := s.Query(ctx, req.Query, req.MaxResults, req.MetadataFilter)
	if err != nil {
		return nil, err
	}
	hits := result.Hits()
	e.logger.Debug("retrieve",
		zap.String("tenant_id", tenantID), zap.String("query", req.Query),
		zap.Int("limit", req.MaxResults), zap.Int("hits", len(hits)))
	return &models.RetrieveResponse{
		Query:     req.Query,
		Tenant:    tenantID,
		Results:   hits,
		Total:     len(hits),
		QueryTime: time.Since(startTime).Milliseconds(),
	}, nil
}

// Answer retrieves the best chunks and builds an extractive answer with its sources.
func (e *Engine) Answer(ctx context.Context, tenantID string, req *models.RetrieveRequest) (*models.Answer, error) {
	resp, err := e.Retrieve(ctx, tenantID, req)
	if err != nil {
		return nil, err
	}
	return BuildAnswer(resp.Results), nil
}
