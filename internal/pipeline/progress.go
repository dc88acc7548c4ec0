// Package pipeline orchestrates the full analysis run (spec.md §2): file
// discovery, parsing, extraction, normalization, scoring, and impact-pack
// synthesis, assembling the final PipelineResult.
package pipeline

import (
	"sync"
	"sync/atomic"
	"time"
)

// Progress reports the pipeline's current stage and counters, adapted
// from the teacher's ProgressTracker (internal/indexing/pipeline_progress.go):
// sharded atomic counters for the hot per-entity increment path, a mutex
// only around the comparatively rare current-stage/current-item update.
type Progress struct {
	total     int64
	startTime time.Time

	processed       []int64 // sharded counters
	processedShards []uint32
	flushed         int64

	stageMu     sync.RWMutex
	stage       string
	currentItem string
}

const progressShards = 8

// NewProgress creates a tracker with its clock started.
func NewProgress() *Progress {
	return &Progress{
		startTime:       time.Now(),
		processed:       make([]int64, progressShards),
		processedShards: make([]uint32, progressShards),
	}
}

// SetTotal records the total item count for the current stage.
func (p *Progress) SetTotal(total int) {
	atomic.StoreInt64(&p.total, int64(total))
}

// SetStage records which pipeline stage is currently running.
func (p *Progress) SetStage(stage string) {
	p.stageMu.Lock()
	p.stage = stage
	p.stageMu.Unlock()
}

// Increment records one processed item, sharded by name to reduce atomic
// contention under concurrent extractor workers.
func (p *Progress) Increment(item string) {
	var hash uint32 = 5381
	for _, c := range item {
		hash = ((hash << 5) + hash) + uint32(c)
	}
	shard := hash % progressShards
	atomic.AddInt64(&p.processed[shard], 1)

	count := atomic.AddUint32(&p.processedShards[shard], 1)
	if count >= 20 {
		p.flushShard(int(shard))
		p.stageMu.Lock()
		p.currentItem = item
		p.stageMu.Unlock()
	}
}

func (p *Progress) flushShard(shard int) {
	n := atomic.SwapInt64(&p.processed[shard], 0)
	atomic.StoreUint32(&p.processedShards[shard], 0)
	atomic.AddInt64(&p.flushed, n)
}

// Snapshot is a point-in-time read of the tracker's counters.
type Snapshot struct {
	Stage       string
	CurrentItem string
	Processed   int64
	Total       int64
	Elapsed     time.Duration
}

// Snapshot flushes every shard and returns the current counters.
func (p *Progress) Snapshot() Snapshot {
	for i := range p.processed {
		p.flushShard(i)
	}
	p.stageMu.RLock()
	stage, item := p.stage, p.currentItem
	p.stageMu.RUnlock()
	return Snapshot{
		Stage:       stage,
		CurrentItem: item,
		Processed:   atomic.LoadInt64(&p.flushed),
		Total:       atomic.LoadInt64(&p.total),
		Elapsed:     time.Since(p.startTime),
	}
}
