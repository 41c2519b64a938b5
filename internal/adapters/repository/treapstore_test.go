package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/xplor/crewscore/internal/domain/types"
)

func entry(crew string, score int) types.Entry {
	return types.Entry{CrewID: crew, Score: score, Tier: "Standard", SubmissionID: "sub-" + crew, UpdatedAt: time.Unix(1700000000, 0)}
}

func mustUpsert(t testing.TB, s *TreapStore, e types.Entry) bool {
	t.Helper()
	changed, err := s.Upsert(context.Background(), e)
	if err != nil {
		t.Fatalf("upsert %s: %v", e.CrewID, err)
	}
	return changed
}

func TestTreapStore_BasicOperations(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	if count := store.Count(ctx); count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}
	if !mustUpsert(t, store, entry("crew1", 55)) {
		t.Error("expected first upsert to change the board")
	}
	if count := store.Count(ctx); count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	e, err := store.Rank(ctx, "crew1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Rank != 1 || e.Score != 55 || e.SubmissionID != "sub-crew1" {
		t.Errorf("unexpected entry %+v", e)
	}

	top, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(top) != 1 || top[0].CrewID != "crew1" || top[0].Rank != 1 {
		t.Errorf("unexpected top %+v", top)
	}
}

func TestTreapStore_LatestScoreWins(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	mustUpsert(t, store, entry("crew1", 80))
	mustUpsert(t, store, entry("crew2", 60))

	// A profile update can lower the score.
	if !mustUpsert(t, store, entry("crew1", 40)) {
		t.Error("expected lower score to change the board")
	}
	if mustUpsert(t, store, entry("crew1", 40)) {
		t.Error("expected identical score and tier to be a no-op")
	}

	e, _ := store.Rank(ctx, "crew1")
	if e.Rank != 2 || e.Score != 40 {
		t.Errorf("expected crew1 at rank 2 with 40, got %+v", e)
	}
	if store.Count(ctx) != 2 {
		t.Errorf("expected 2 crew members, got %d", store.Count(ctx))
	}

	retiered := entry("crew1", 40)
	retiered.Tier = "Active"
	if !mustUpsert(t, store, retiered) {
		t.Error("expected tier change to be reported")
	}
}

func TestTreapStore_OutOfOrderUpserts(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	newer := entry("crew1", 80)
	newer.SubmissionID, newer.UpdatedAt = "new", base.Add(time.Minute)
	older := entry("crew1", 10)
	older.SubmissionID, older.UpdatedAt = "old", base

	mustUpsert(t, store, newer)
	if mustUpsert(t, store, older) {
		t.Error("expected an older entry to leave the board unchanged")
	}
	e, _ := store.Rank(ctx, "crew1")
	if e.Score != 80 || e.SubmissionID != "new" {
		t.Errorf("expected the newer submission to stay, got %+v", e)
	}
	top, _ := store.TopN(ctx, 1)
	if len(top) != 1 || top[0].Score != 80 {
		t.Errorf("expected leaderboard to keep 80, got %+v", top)
	}

	// Same timestamp still replaces.
	sameTime := entry("crew1", 30)
	sameTime.UpdatedAt = newer.UpdatedAt
	if !mustUpsert(t, store, sameTime) {
		t.Error("expected an entry with the same timestamp to replace")
	}
}

func TestTreapStore_Ordering(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	scores := map[string]int{"a": 10, "b": 90, "c": 50, "d": 70, "e": 30}
	for id, sc := range scores {
		mustUpsert(t, store, entry(id, sc))
	}

	top, err := store.TopN(ctx, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"b", "d", "c"}
	for i, w := range want {
		if top[i].CrewID != w || top[i].Rank != i+1 {
			t.Errorf("position %d: expected %s rank %d, got %+v", i, w, i+1, top[i])
		}
	}
}

func TestTreapStore_TiesShareRank(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	mustUpsert(t, store, entry("zed", 70))
	mustUpsert(t, store, entry("amy", 70))
	mustUpsert(t, store, entry("bob", 90))
	mustUpsert(t, store, entry("cat", 40))

	top, _ := store.TopN(ctx, 10)
	got := make([]string, len(top))
	for i, e := range top {
		got[i] = fmt.Sprintf("%s:%d", e.CrewID, e.Rank)
	}
	want := []string{"bob:1", "amy:2", "zed:2", "cat:4"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	for id, rank := range map[string]int{"bob": 1, "amy": 2, "zed": 2, "cat": 4} {
		e, err := store.Rank(ctx, id)
		if err != nil || e.Rank != rank {
			t.Errorf("rank of %s: expected %d, got %d (%v)", id, rank, e.Rank, err)
		}
	}
}

func TestTreapStore_Errors(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)

	if _, err := store.Rank(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.TopN(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
	top, err := store.TopN(ctx, 5)
	if err != nil || len(top) != 0 {
		t.Errorf("expected empty top from empty store, got %v %v", top, err)
	}

	mustUpsert(t, store, entry("crew1", 1))
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := store.Upsert(ctx, entry("crew2", 2)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := store.Rank(ctx, "crew1"); err != nil {
		t.Errorf("reads should keep working after close: %v", err)
	}
}

// TestTreapStore_RankMatchesSort checks the treap against a sorted reference
// across random upserts, including score decreases.
func TestTreapStore_ConcurrentClose(t *testing.T) {
	store := NewTreapStore(context.Background())
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.Close(); err != nil {
				t.Errorf("close: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestTreapStore_RankMatchesSort(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	rng := rand.New(rand.NewSource(7)) //nolint:gosec // deterministic test data
	ref := make(map[string]int)
	for i := 0; i < 5000; i++ {
		id := fmt.Sprintf("crew-%03d", rng.Intn(400))
		sc := rng.Intn(111)
		ref[id] = sc
		mustUpsert(t, store, entry(id, sc))
	}

	type row struct {
		id    string
		score int
	}
	rows := make([]row, 0, len(ref))
	for id, sc := range ref {
		rows = append(rows, row{id, sc})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].score != rows[j].score {
			return rows[i].score > rows[j].score
		}
		return rows[i].id < rows[j].id
	})

	top, err := store.TopN(ctx, len(rows)+10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != len(rows) {
		t.Fatalf("expected %d entries, got %d", len(rows), len(top))
	}
	for i, r := range rows {
		if top[i].CrewID != r.id || top[i].Score != r.score {
			t.Fatalf("position %d: expected %v, got %+v", i, r, top[i])
		}
		e, err := store.Rank(ctx, r.id)
		if err != nil {
			t.Fatalf("rank %s: %v", r.id, err)
		}
		if e.Rank != top[i].Rank {
			t.Fatalf("rank mismatch for %s: Rank()=%d TopN()=%d", r.id, e.Rank, top[i].Rank)
		}
	}
	if nsize(store.root) != len(rows) {
		t.Errorf("subtree size %d does not match %d entries", nsize(store.root), len(rows))
	}
}

func TestTreapStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := fmt.Sprintf("crew-%d-%d", g, i%50)
				if _, err := store.Upsert(ctx, entry(id, (g*i)%101)); err != nil {
					t.Errorf("upsert: %v", err)
					return
				}
				if _, err := store.TopN(ctx, 10); err != nil {
					t.Errorf("top: %v", err)
					return
				}
				_, _ = store.Rank(ctx, id)
			}
		}(g)
	}
	wg.Wait()

	if store.Count(ctx) != 8*50 {
		t.Errorf("expected %d crew members, got %d", 8*50, store.Count(ctx))
	}
}

func TestBoards(t *testing.T) {
	ctx := context.Background()
	boards := NewBoards(ctx, WithMetricsUpdateInterval(time.Hour))

	if _, err := boards.Upsert(ctx, "cri", entry("crew1", 70)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := boards.Upsert(ctx, "yci", entry("crew1", 20)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := boards.Upsert(ctx, "cri", entry("crew2", 90)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	e, err := boards.Rank(ctx, "cri", "crew1")
	if err != nil || e.Rank != 2 {
		t.Errorf("expected crew1 rank 2 on cri, got %+v %v", e, err)
	}
	e, err = boards.Rank(ctx, "yci", "crew1")
	if err != nil || e.Rank != 1 || e.Score != 20 {
		t.Errorf("expected crew1 rank 1 on yci, got %+v %v", e, err)
	}
	if _, err := boards.Rank(ctx, "none", "crew1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown board, got %v", err)
	}

	top, err := boards.TopN(ctx, "none", 5)
	if err != nil || len(top) != 0 {
		t.Errorf("expected empty board, got %v %v", top, err)
	}
	if _, err := boards.TopN(ctx, "cri", -1); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}

	if got := boards.Schemes(); len(got) != 2 || got[0] != "cri" || got[1] != "yci" {
		t.Errorf("unexpected schemes %v", got)
	}
	if counts := boards.Counts(ctx); counts["cri"] != 2 || counts["yci"] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
	if boards.Count(ctx, "cri") != 2 || boards.Count(ctx, "none") != 0 {
		t.Error("unexpected per-scheme count")
	}

	if err := boards.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := boards.Upsert(ctx, "new", entry("crew3", 1)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after close, got %v", err)
	}
}

func BenchmarkTreapStore_Upsert(b *testing.B) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()
	rng := rand.New(rand.NewSource(1)) //nolint:gosec // benchmark data

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.Upsert(ctx, entry(fmt.Sprintf("crew-%d", rng.Intn(100000)), rng.Intn(101)))
	}
}

func BenchmarkTreapStore_Rank(b *testing.B) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()
	const n = 100000
	for i := 0; i < n; i++ {
		mustUpsert(b, store, entry(fmt.Sprintf("crew-%d", i), i%101))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.Rank(ctx, fmt.Sprintf("crew-%d", i%n))
	}
}

func BenchmarkTreapStore_TopN(b *testing.B) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()
	for i := 0; i < 100000; i++ {
		mustUpsert(b, store, entry(fmt.Sprintf("crew-%d", i), i%101))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.TopN(ctx, 100)
	}
}
