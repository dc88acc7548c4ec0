// Package resultstore is the process-local registry of completed pipeline
// runs (spec.md §4.7, §5): single-writer-at-insert, many-reader-after,
// keyed by a freshly generated result id so external collaborators can
// retrieve a result for the lifetime of the process.
package resultstore

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/valknut-dev/valknut/internal/entity"
	"github.com/valknut-dev/valknut/internal/impact"
	"github.com/valknut-dev/valknut/internal/score"
	"github.com/valknut-dev/valknut/internal/vkconfig"
	"github.com/valknut-dev/valknut/internal/vkerrors"
)

// Result is one completed pipeline run, assembled by internal/pipeline and
// inserted here for later retrieval by result id.
type Result struct {
	ID              string
	Config          *vkconfig.Config
	TotalFiles      int
	TotalEntities   int
	ProcessingTime  time.Duration
	CompletedAt     time.Time
	Ranked          []score.RankedEntry
	Indexes         map[string]*entity.ParseIndex
	Packs           []*impact.Pack
	Warnings        []*vkerrors.StageError
}

// Store is a process-local, single-writer/many-reader registry keyed by
// result id. A plain RWMutex is sufficient: writes happen once per
// analyze_repo call (pipeline completion), reads happen on every other
// tool call (spec.md §5's "keyed maps with single-writer, many-reader
// semantics" guidance).
type Store struct {
	mu      sync.RWMutex
	results map[string]*Result
}

func New() *Store {
	return &Store{results: make(map[string]*Result)}
}

// Put assigns a fresh uuid to result and inserts it, returning the id.
func (s *Store) Put(result *Result) string {
	id := uuid.NewString()
	result.ID = id
	s.mu.Lock()
	s.results[id] = result
	s.mu.Unlock()
	return id
}

// Get retrieves a result by id.
func (s *Store) Get(id string) (*Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[id]
	return r, ok
}

// Delete removes a result, freeing its retained parse indexes/vectors.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.results, id)
	s.mu.Unlock()
}

// Len reports how many results are currently retained.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}
