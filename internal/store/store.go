// Package store holds per-tenant chunk collections, their registry, and snapshot persistence.
//
// A TenantStore keeps three aligned sequences (chunk text, metadata, id) behind a
// per-tenant read/write lock and writes a full snapshot on every mutation.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/hyperjump/tenantrag/internal/metrics"
	"github.com/hyperjump/tenantrag/internal/models"
	"github.com/hyperjump/tenantrag/internal/ranking"
	"github.com/hyperjump/tenantrag/internal/tokenize"
	"go.uber.org/zap"
)

// Option configures a TenantStore or Registry.
type Option func(*options)

type options struct {
	logger *zap.Logger
	scorer ranking.Scorer
}

// WithLogger sets the logger used for load fallbacks and persistence failures.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithScorer replaces the default overlap scorer. Ranking changes are opt-in only.
func WithScorer(s ranking.Scorer) Option {
	return func(o *options) { o.scorer = s }
}

func buildOptions(opts []Option) options {
	o := options{scorer: ranking.OverlapScorer{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.scorer == nil {
		o.scorer = ranking.OverlapScorer{}
	}
	return o
}

// TenantStore is one tenant's chunk collection.
type TenantStore struct {
	tenantID  string
	persister Persister
	scorer    ranking.Scorer
	logger    *zap.Logger

	loadOnce sync.Once

	mu        sync.RWMutex
	documents []string
	metadatas []models.Metadata
	ids       []string
	terms     []ranking.TermCounts // derived from documents, never persisted
	idSet     map[string]struct{}
	closed    bool
}

// NewTenantStore returns a store for tenantID. Its snapshot is loaded on first use.
func NewTenantStore(tenantID string, p Persister, opts ...Option) *TenantStore {
	o := buildOptions(opts)
	return &TenantStore{
		tenantID:  tenantID,
		persister: p,
		scorer:    o.scorer,
		logger:    o.logger.With(zap.String("tenant_id", tenantID)),
		idSet:     make(map[string]struct{}),
	}
}

// TenantID returns the owning tenant.
func (s *TenantStore) TenantID() string { return s.tenantID }

func (s *TenantStore) ensureLoaded(ctx context.Context) {
	s.loadOnce.Do(func() { s.load(context.WithoutCancel(ctx)) })
}

// load replaces the in-memory state with the persisted snapshot. Missing or unreadable
// snapshots leave the store empty.
func (s *TenantStore) load(ctx context.Context) {
	defer metrics.ObserveSince("load", time.Now())
	snap, err := s.persister.Load(ctx, s.tenantID)
	if err != nil {
		if errors.Is(err, ErrSnapshotNotFound) {
			s.logger.Debug("no snapshot, starting empty")
			return
		}
		metrics.LoadFallbacksTotal.WithLabelValues(s.persister.Kind()).Inc()
		s.logger.Warn("snapshot load failed, starting empty", zap.Error(err))
		return
	}
	if err := snap.Validate(); err != nil {
		metrics.LoadFallbacksTotal.WithLabelValues(s.persister.Kind()).Inc()
		s.logger.Warn("snapshot misaligned, starting empty", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.documents = snap.Documents
	s.metadatas = snap.Metadatas
	s.ids = snap.IDs
	s.terms = make([]ranking.TermCounts, len(snap.Documents))
	for i, doc := range snap.Documents {
		s.terms[i] = ranking.Counts(tokenize.Tokenize(doc))
	}
	for _, id := range snap.IDs {
		s.idSet[id] = struct{}{}
	}
	s.logger.Debug("snapshot loaded", zap.Int("chunks", len(s.ids)))
}

// Add appends chunks in lock-step and persists the full store. The three slices must have
// equal length, and ids must be new to the tenant. When persisting fails the chunks stay in
// memory and an ErrPersistence error is returned.
func (s *TenantStore) Add(ctx context.Context, documents []string, metadatas []models.Metadata, ids []string) error {
	if len(documents) != len(metadatas) || len(documents) != len(ids) {
		return fmt.Errorf("%w: add got %d documents, %d metadatas, %d ids",
			ErrMalformedInput, len(documents), len(metadatas), len(ids))
	}
	s.ensureLoaded(ctx)
	defer metrics.ObserveSince("add", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			return fmt.Errorf("%w: empty chunk id", ErrMalformedInput)
		}
		if _, dup := s.idSet[id]; dup {
			return fmt.Errorf("%w: chunk id %q already exists", ErrMalformedInput, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: chunk id %q repeated in batch", ErrMalformedInput, id)
		}
		seen[id] = struct{}{}
	}
	for i, m := range metadatas {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("%w: chunk %q: %w", ErrMalformedInput, ids[i], err)
		}
	}

	for i, id := range ids {
		s.documents = append(s.documents, documents[i])
		s.metadatas = append(s.metadatas, metadatas[i].Clone())
		s.ids = append(s.ids, id)
		s.terms = append(s.terms, ranking.Counts(tokenize.Tokenize(documents[i])))
		s.idSet[id] = struct{}{}
	}
	metrics.ChunksIngestedTotal.Add(float64(len(ids)))
	return s.persistLocked(ctx)
}

type candidate struct {
	idx   int
	score float64
}

// Query ranks the tenant's chunks against queryText and returns the best nResults.
// When filter is non-empty only chunks whose metadata holds every filter key with an equal
// value are considered. Ties keep insertion order. Distances are 1 - score.
func (s *TenantStore) Query(ctx context.Context, queryText string, nResults int, filter models.Metadata) (*models.QueryResult, error) {
	if nResults < 0 {
		return nil, fmt.Errorf("%w: n_results must not be negative, got %d", ErrMalformedInput, nResults)
	}
	s.ensureLoaded(ctx)
	defer metrics.ObserveSince("query", time.Now())

	result := &models.QueryResult{
		Documents: []string{},
		Metadatas: []models.Metadata{},
		IDs:       []string{},
		Distances: []float64{},
	}
	queryTokens := tokenize.Tokenize(queryText)
	queryCounts := ranking.Counts(queryTokens)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || nResults == 0 || len(s.ids) == 0 {
		return result, nil
	}

	candidates := make([]candidate, 0, len(s.ids))
	for i := range s.ids {
		if len(filter) > 0 && !s.metadatas[i].Matches(filter) {
			continue
		}
		candidates = append(candidates, candidate{
			idx:   i,
			score: s.scorer.Score(queryCounts, s.terms[i], len(queryTokens)),
		})
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score > candidates[b].score
	})
	if len(candidates) > nResults {
		candidates = candidates[:nResults]
	}
	for _, c := range candidates {
		result.Documents = append(result.Documents, s.documents[c.idx])
		result.Metadatas = append(result.Metadatas, s.metadatas[c.idx].Clone())
		result.IDs = append(result.IDs, s.ids[c.idx])
		result.Distances = append(result.Distances, 1-c.score)
	}
	return result, nil
}

// Delete removes every chunk whose id is in ids and persists. Unknown ids are ignored;
// when nothing matches, nothing is written.
func (s *TenantStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	s.ensureLoaded(ctx)
	defer metrics.ObserveSince("delete", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	removed := s.removeLocked(func(i int) bool {
		_, ok := drop[s.ids[i]]
		return ok
	})
	if removed == 0 {
		return nil
	}
	return s.persistLocked(ctx)
}

// DeleteWhere removes every chunk whose metadata matches filter and persists.
// It returns the number of chunks removed. An empty filter is rejected.
func (s *TenantStore) DeleteWhere(ctx context.Context, filter models.Metadata) (int, error) {
	if len(filter) == 0 {
		return 0, fmt.Errorf("%w: delete filter is empty", ErrMalformedInput)
	}
	s.ensureLoaded(ctx)
	defer metrics.ObserveSince("delete", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStoreClosed
	}
	removed := s.removeLocked(func(i int) bool {
		return s.metadatas[i].Matches(filter)
	})
	if removed == 0 {
		return 0, nil
	}
	return removed, s.persistLocked(ctx)
}

// removeLocked compacts all parallel slices, dropping indices for which drop is true.
func (s *TenantStore) removeLocked(drop func(i int) bool) int {
	kept := 0
	for i := range s.ids {
		if drop(i) {
			delete(s.idSet, s.ids[i])
			continue
		}
		s.documents[kept] = s.documents[i]
		s.metadatas[kept] = s.metadatas[i]
		s.ids[kept] = s.ids[i]
		s.terms[kept] = s.terms[i]
		kept++
	}
	removed := len(s.ids) - kept
	if removed == 0 {
		return 0
	}
	clear(s.documents[kept:])
	clear(s.metadatas[kept:])
	clear(s.terms[kept:])
	s.documents = s.documents[:kept]
	s.metadatas = s.metadatas[:kept]
	s.ids = s.ids[:kept]
	s.terms = s.terms[:kept]
	metrics.ChunksDeletedTotal.Add(float64(removed))
	return removed
}

// persistLocked writes the full snapshot. The write is not cancelled with ctx.
// The snapshot gets its own slices since removeLocked compacts in place.
func (s *TenantStore) persistLocked(ctx context.Context) error {
	snap := &Snapshot{
		Documents: slices.Clone(s.documents),
		Metadatas: slices.Clone(s.metadatas),
		IDs:       slices.Clone(s.ids),
	}
	if err := s.persister.Save(context.WithoutCancel(ctx), s.tenantID, snap); err != nil {
		metrics.PersistFailuresTotal.WithLabelValues(s.persister.Kind()).Inc()
		s.logger.Error("snapshot save failed", zap.Int("chunks", len(s.ids)), zap.Error(err))
		return fmt.Errorf("%w: save tenant %q: %w", ErrPersistence, s.tenantID, err)
	}
	return nil
}

// close marks the store deleted and drops its contents.
func (s *TenantStore) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.documents, s.metadatas, s.ids, s.terms = nil, nil, nil, nil
	s.idSet = make(map[string]struct{})
}

// Len returns the number of chunks.
func (s *TenantStore) Len() int {
	s.ensureLoaded(context.Background())
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// IDs returns a copy of the chunk ids in insertion order.
func (s *TenantStore) IDs() []string {
	s.ensureLoaded(context.Background())
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.ids...)
}

// Get returns the chunk with the given id.
func (s *TenantStore) Get(id string) (*models.Chunk, bool) {
	s.ensureLoaded(context.Background())
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, cid := range s.ids {
		if cid == id {
			return &models.Chunk{
				ID:       cid,
				TenantID: s.tenantID,
				Text:     s.documents[i],
				Metadata: s.metadatas[i].Clone(),
			}, true
		}
	}
	return nil, false
}
