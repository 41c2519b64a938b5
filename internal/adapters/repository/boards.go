package repository

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/xplor/crewscore/internal/domain/types"
)

// Boards holds one leaderboard per scoring scheme. Boards are created on
// first write.
type Boards struct {
	ctx    context.Context
	opts   []Option
	mu     sync.RWMutex
	stores map[string]*TreapStore
	closed bool
}

// NewBoards creates an empty set of leaderboards. opts apply to every board.
func NewBoards(ctx context.Context, opts ...Option) *Boards {
	return &Boards{
		ctx:    ctx,
		opts:   opts,
		stores: make(map[string]*TreapStore),
	}
}

func (b *Boards) board(scheme string, create bool) (*TreapStore, error) {
	b.mu.RLock()
	s, ok := b.stores[scheme]
	closed := b.closed
	b.mu.RUnlock()
	if ok {
		return s, nil
	}
	if closed {
		return nil, ErrClosed
	}
	if !create {
		return nil, ErrNotFound
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.stores[scheme]; ok {
		return s, nil
	}
	if b.closed {
		return nil, ErrClosed
	}
	opts := append(append([]Option{}, b.opts...), WithScheme(scheme))
	s = NewTreapStore(b.ctx, opts...)
	b.stores[scheme] = s
	return s, nil
}

// Upsert stores e on the scheme's board.
func (b *Boards) Upsert(ctx context.Context, scheme string, e types.Entry) (bool, error) {
	s, err := b.board(scheme, true)
	if err != nil {
		return false, err
	}
	return s.Upsert(ctx, e)
}

// Rank returns a crew member's entry on the scheme's board.
func (b *Boards) Rank(ctx context.Context, scheme, crewID string) (types.Entry, error) {
	s, err := b.board(scheme, false)
	if err != nil {
		return types.Entry{}, err
	}
	return s.Rank(ctx, crewID)
}

// TopN returns the top n entries of the scheme's board. An unknown scheme
// has an empty board.
func (b *Boards) TopN(ctx context.Context, scheme string, n int) ([]types.Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	s, err := b.board(scheme, false)
	if errors.Is(err, ErrNotFound) {
		return []types.Entry{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.TopN(ctx, n)
}

// Count returns the number of crew members ranked under scheme.
func (b *Boards) Count(ctx context.Context, scheme string) int {
	s, err := b.board(scheme, false)
	if err != nil {
		return 0
	}
	return s.Count(ctx)
}

// Counts returns the ranked crew count of every board.
func (b *Boards) Counts(ctx context.Context) map[string]int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]int, len(b.stores))
	for name, s := range b.stores {
		out[name] = s.Count(ctx)
	}
	return out
}

// Schemes returns the schemes that have a board, sorted.
func (b *Boards) Schemes() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.stores))
	for name := range b.stores {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Close closes every board.
func (b *Boards) Close() error {
	b.mu.Lock()
	b.closed = true
	stores := make([]*TreapStore, 0, len(b.stores))
	for _, s := range b.stores {
		stores = append(stores, s)
	}
	b.mu.Unlock()

	for _, s := range stores {
		if err := s.Close(); err != nil {
			return err
		}
	}
	return nil
}
