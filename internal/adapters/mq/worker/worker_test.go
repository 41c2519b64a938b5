package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	worker "github.com/xplor/crewscore/internal/adapters/mq/worker"
	"github.com/xplor/crewscore/internal/domain/model"
	"github.com/xplor/crewscore/internal/domain/scoring"
	"github.com/xplor/crewscore/internal/domain/types"
	"github.com/xplor/crewscore/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	ch   chan model.Submission
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{ch: make(chan model.Submission, 64)}
}

func (q *mockQueue) Dequeue(context.Context) <-chan model.Submission { return q.ch }

func (q *mockQueue) Close() error {
	q.once.Do(func() { close(q.ch) })
	return nil
}

type mockScorer struct {
	mu     sync.Mutex
	errors map[string]error
}

func (s *mockScorer) Score(ctx context.Context, in scoring.Input) (scoring.Result, error) {
	s.mu.Lock()
	err := s.errors[in.CrewID]
	s.mu.Unlock()
	if err != nil {
		return scoring.Result{}, err
	}
	total := int(in.Profile.Number("points"))
	return scoring.Result{
		CrewID:      in.CrewID,
		Scheme:      "cri",
		Total:       total,
		Tier:        scoring.Tier{Label: "Standard"},
		TierMatched: true,
	}, nil
}

type mockUpdater struct {
	mu      sync.Mutex
	entries map[string]types.Entry
	fail    error
}

func newMockUpdater() *mockUpdater {
	return &mockUpdater{entries: make(map[string]types.Entry)}
}

func (u *mockUpdater) Upsert(_ context.Context, scheme string, e types.Entry) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.fail != nil {
		return false, u.fail
	}
	u.entries[scheme+"/"+e.CrewID] = e
	return true, nil
}

func (u *mockUpdater) get(key string) (types.Entry, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	e, ok := u.entries[key]
	return e, ok
}

func (u *mockUpdater) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.entries)
}

type mockArchiver struct {
	mu    sync.Mutex
	cards []model.ScoreCard
	fail  error
}

func (a *mockArchiver) Save(_ context.Context, c model.ScoreCard) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail != nil {
		return a.fail
	}
	a.cards = append(a.cards, c)
	return nil
}

func (a *mockArchiver) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.cards)
}

func submission(crew string, points int) model.Submission {
	return model.Submission{
		SubmissionID: "sub-" + crew,
		CrewID:       crew,
		Scheme:       "cri",
		Profile:      scoring.NewProfile(map[string]any{"points": points}),
	}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running worker", t, func() {
		q := newMockQueue()
		scorer := &mockScorer{errors: map[string]error{}}
		updater := newMockUpdater()
		archiver := &mockArchiver{}
		fixed := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

		w := worker.NewInMemoryWorker(q, scorer, updater,
			worker.WithName("w-test"),
			worker.WithLogger(logger.NewNop()),
			worker.WithArchiver(archiver),
			worker.WithClock(func() time.Time { return fixed }),
		)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a submission is queued", func() {
			q.ch <- submission("crew-1", 42)

			convey.Convey("Then the leaderboard and archive receive the result", func() {
				convey.So(waitFor(func() bool { return archiver.len() == 1 }), convey.ShouldBeTrue)
				e, ok := updater.get("cri/crew-1")
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(e.Score, convey.ShouldEqual, 42)
				convey.So(e.Tier, convey.ShouldEqual, "Standard")
				convey.So(e.SubmissionID, convey.ShouldEqual, "sub-crew-1")
				convey.So(e.UpdatedAt, convey.ShouldEqual, fixed)
				convey.So(archiver.cards[0].Total, convey.ShouldEqual, 42)
			})
		})

		convey.Convey("When a submission carries its own timestamp", func() {
			sub := submission("crew-ts", 7)
			sub.TS = fixed.Add(-time.Hour)
			q.ch <- sub

			convey.Convey("Then the board entry is stamped with it", func() {
				convey.So(waitFor(func() bool { _, ok := updater.get("cri/crew-ts"); return ok }), convey.ShouldBeTrue)
				e, _ := updater.get("cri/crew-ts")
				convey.So(e.UpdatedAt, convey.ShouldEqual, sub.TS)
			})
		})

		convey.Convey("When scoring fails for one submission", func() {
			scorer.mu.Lock()
			scorer.errors["bad"] = errors.New("scheme missing")
			scorer.mu.Unlock()
			q.ch <- submission("bad", 1)
			q.ch <- submission("good", 2)

			convey.Convey("Then the worker keeps going", func() {
				convey.So(waitFor(func() bool { return updater.count() == 1 }), convey.ShouldBeTrue)
				_, ok := updater.get("cri/bad")
				convey.So(ok, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When the worker is shut down", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()

			convey.Convey("Then it stops and can be shut down twice", func() {
				convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
				convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
				<-w.Done()
			})
		})
	})

	convey.Convey("Given an updater that fails", t, func() {
		q := newMockQueue()
		updater := newMockUpdater()
		updater.fail = errors.New("store closed")
		archiver := &mockArchiver{}
		w := worker.NewInMemoryWorker(q, &mockScorer{errors: map[string]error{}}, updater,
			worker.WithLogger(logger.NewNop()), worker.WithArchiver(archiver))

		convey.Convey("When the queue delivers a submission and closes", func() {
			q.ch <- submission("crew-1", 5)
			_ = q.Close()
			w.Run(context.Background())

			convey.Convey("Then nothing is archived", func() {
				convey.So(archiver.len(), convey.ShouldEqual, 0)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a worker pool", t, func() {
		q := newMockQueue()
		updater := newMockUpdater()
		archiver := &mockArchiver{}
		pool := worker.NewPool(4, q, &mockScorer{errors: map[string]error{}}, updater,
			worker.WithLogger(logger.NewNop()), worker.WithArchiver(archiver))
		pool.Start(context.Background())

		convey.So(pool.Size(), convey.ShouldEqual, 4)

		convey.Convey("When submissions are processed and the pool shuts down", func() {
			const n = 40
			for i := 0; i < n; i++ {
				q.ch <- submission(fmt.Sprintf("crew-%d", i), i)
			}
			err := pool.Shutdown(context.Background())

			convey.Convey("Then every queued submission was drained", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(updater.count(), convey.ShouldEqual, n)
				convey.So(archiver.len(), convey.ShouldEqual, n)
				convey.So(pool.Processed(), convey.ShouldEqual, int64(n))
			})
		})
	})

	convey.Convey("Given a pool with no explicit size", t, func() {
		pool := worker.NewPool(0, newMockQueue(), &mockScorer{}, newMockUpdater())

		convey.Convey("Then it sizes itself from the CPU count", func() {
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}
