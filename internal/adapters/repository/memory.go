package repository

import (
	"cmp"
	"context"
	"hash/fnv"
	"slices"
	"sync"
	"time"

	"github.com/okian/guardrail/internal/domain/model"
	"github.com/okian/guardrail/pkg/metrics"
)

const (
	defaultShardCount            = 16
	defaultMetricsUpdateInterval = 5 * time.Second
)

type shard struct {
	mu      sync.RWMutex
	reports map[string]model.Report
}

// MemoryStore is a Store kept in process memory, sharded by run ID.
type MemoryStore struct {
	shards                []*shard
	shardCount            int
	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewMemoryStore constructs a memory store and starts its metrics updater,
// which runs until ctx is done or Close is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		shardCount:            defaultShardCount,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{reports: make(map[string]model.Report)}
	}
	s.startMetricsUpdater(ctx)
	return s
}

func (s *MemoryStore) shardFor(runID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(runID))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, r model.Report) error {
	if r.RunID == "" {
		return ErrInvalidReport
	}
	start := time.Now()
	defer observe("put", start)

	sh := s.shardFor(r.RunID)
	sh.mu.Lock()
	sh.reports[r.RunID] = r
	sh.mu.Unlock()
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, runID string) (model.Report, error) {
	start := time.Now()
	defer observe("get", start)

	sh := s.shardFor(runID)
	sh.mu.RLock()
	r, ok := sh.reports[runID]
	sh.mu.RUnlock()
	if !ok {
		return model.Report{}, ErrNotFound
	}
	return r, nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, limit int) ([]model.Report, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	start := time.Now()
	defer observe("list", start)

	var all []model.Report
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, r := range sh.reports {
			all = append(all, r)
		}
		sh.mu.RUnlock()
	}
	slices.SortFunc(all, newestFirst)
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.reports)
		sh.mu.RUnlock()
	}
	return n, nil
}

// Close stops the metrics updater.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				n, _ := s.Count(ctx)
				metrics.UpdateStoredReports(n)
			}
		}
	}()
}

// newestFirst orders by submission time descending, then run ID ascending.
func newestFirst(a, b model.Report) int {
	if c := b.SubmittedAt.Compare(a.SubmittedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.RunID, b.RunID)
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}
