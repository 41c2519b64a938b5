package repository

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/xplor/crewscore/internal/domain/types"
	"github.com/xplor/crewscore/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: score DESC, then crew id ASC (deterministic). "less" means
// ranks earlier, so in-order traversal yields the leaderboard best first.
// Nodes carry subtree sizes so ranks are answered in O(log n).

const defaultMetricsUpdateInterval = 5 * time.Second

type node struct {
	id    string
	score int
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func less(aScore int, aID string, bScore int, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

// priority derives a heap priority from the crew id. Hashing keeps the
// tree balanced in expectation without a shared random source.
func priority(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	x := h.Sum64()
	// splitmix64 finalizer spreads similar ids.
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, score int) *node {
	if n == nil {
		return &node{id: id, score: score, prio: priority(id), size: 1}
	}
	if less(score, id, n.score, n.id) {
		n.left = insert(n.left, id, score)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, score int) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	case less(score, id, n.score, n.id):
		n.left = deleteNode(n.left, id, score)
	default:
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// countHigher returns how many nodes score strictly above score.
func countHigher(n *node, score int) int {
	count := 0
	for n != nil {
		if n.score > score {
			count += 1 + nsize(n.left)
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectTopN appends up to limit ids in rank order.
func collectTopN(n *node, limit int, out *[]string) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.id)
	}
	collectTopN(n.right, limit, out)
}

// TreapStore is a single scheme leaderboard.
type TreapStore struct {
	mu     sync.RWMutex
	root   *node
	byID   map[string]types.Entry
	closed bool
	scheme string

	metricsUpdateInterval time.Duration
	wg                    sync.WaitGroup
	stopChan              chan struct{}
	stopOnce              sync.Once
}

// NewTreapStore constructs a treap store. Background metrics stop when ctx
// ends or Close is called.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		byID:                  make(map[string]types.Entry),
		scheme:                "default",
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Upsert stores the latest entry for a crew member in O(log n) expected time.
// An entry older than the stored one, by UpdatedAt, is ignored.
func (s *TreapStore) Upsert(_ context.Context, e types.Entry) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	e.Rank = 0
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrClosed
	}
	old, exists := s.byID[e.CrewID]
	if exists && e.UpdatedAt.Before(old.UpdatedAt) {
		s.mu.Unlock()
		return false, nil
	}
	changed := !exists || old.Score != e.Score || old.Tier != e.Tier
	if exists && old.Score != e.Score {
		s.root = deleteNode(s.root, e.CrewID, old.Score)
	}
	if !exists || old.Score != e.Score {
		s.root = insert(s.root, e.CrewID, e.Score)
	}
	s.byID[e.CrewID] = e
	count := len(s.byID)
	s.mu.Unlock()

	if !exists {
		metrics.UpdateCrewsTotal(s.scheme, count)
	}
	return changed, nil
}

// Rank returns the entry and its competition rank: one plus the number of
// crew members with a strictly higher score.
func (s *TreapStore) Rank(_ context.Context, crewID string) (types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.byID[crewID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return types.Entry{}, ErrNotFound
	}
	e.Rank = countHigher(s.root, e.Score) + 1
	return e, nil
}

// TopN returns the top n entries. Equal scores share a rank.
func (s *TreapStore) TopN(_ context.Context, n int) ([]types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := n
	if limit > len(s.byID) {
		limit = len(s.byID)
	}
	ids := make([]string, 0, limit)
	collectTopN(s.root, limit, &ids)

	out := make([]types.Entry, len(ids))
	for i, id := range ids {
		e := s.byID[id]
		switch {
		case i == 0:
			e.Rank = 1
		case e.Score == out[i-1].Score:
			e.Rank = out[i-1].Rank
		default:
			e.Rank = i + 1
		}
		out[i] = e
	}
	return out, nil
}

// Count returns the number of ranked crew members.
func (s *TreapStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Close stops background work. Later writes fail with ErrClosed; reads keep working.
func (s *TreapStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func (s *TreapStore) startMetricsUpdater(ctx context.Context) {
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
				metrics.UpdateCrewsTotal(s.scheme, s.Count(ctx))
			}
		}
	}()
}
