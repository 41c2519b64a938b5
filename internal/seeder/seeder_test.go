package seeder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/xplor/crewscore/internal/adapters/http/api"
	service "github.com/xplor/crewscore/internal/app"
	"github.com/xplor/crewscore/pkg/logger"
)

func TestGenerator(t *testing.T) {
	Convey("Given two generators with the same seed", t, func() {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		a, errA := newGenerator(42, "cri").generate(25, now)
		b, errB := newGenerator(42, "cri").generate(25, now)

		Convey("Then they produce the same submissions", func() {
			So(errA, ShouldBeNil)
			So(errB, ShouldBeNil)
			So(a, ShouldResemble, b)
		})

		Convey("And every crew member is distinct and fully described", func() {
			seen := map[string]bool{}
			for _, s := range a {
				So(seen[s.CrewID], ShouldBeFalse)
				seen[s.CrewID] = true
				So(s.Scheme, ShouldEqual, "cri")
				So(s.TS, ShouldEqual, "2026-03-01T12:00:00Z")
				So(s.Profile, ShouldContainKey, "selectedPosition")
				So(s.Profile, ShouldContainKey, "qualifications")
			}
		})
	})

	Convey("Given generators with different seeds", t, func() {
		a, _ := newGenerator(1, "cri").generate(5, time.Now())
		b, _ := newGenerator(2, "cri").generate(5, time.Now())

		Convey("Then the crew ids differ", func() {
			So(a[0].CrewID, ShouldNotEqual, b[0].CrewID)
		})
	})
}

func TestVerify(t *testing.T) {
	board := []Entry{
		{Rank: 1, CrewID: "a", Score: 90},
		{Rank: 2, CrewID: "b", Score: 70},
		{Rank: 2, CrewID: "c", Score: 70},
		{Rank: 4, CrewID: "d", Score: 40},
	}

	Convey("Given a consistent leaderboard", t, func() {
		rankings := []Entry{board[1], board[3], {Rank: 5, CrewID: "e", Score: 30}}

		Convey("Then verification passes", func() {
			So(Verify(board, rankings), ShouldBeNil)
		})
	})

	Convey("Given a leaderboard out of order", t, func() {
		bad := []Entry{{Rank: 1, CrewID: "a", Score: 10}, {Rank: 2, CrewID: "b", Score: 20}}

		Convey("Then verification fails", func() {
			So(errors.Is(Verify(bad, nil), ErrInconsistent), ShouldBeTrue)
		})
	})

	Convey("Given tied entries with different ranks", t, func() {
		bad := []Entry{{Rank: 1, CrewID: "a", Score: 50}, {Rank: 2, CrewID: "b", Score: 50}}

		Convey("Then verification fails", func() {
			So(errors.Is(Verify(bad, nil), ErrInconsistent), ShouldBeTrue)
		})
	})

	Convey("Given a rank that disagrees with the leaderboard", t, func() {
		rankings := []Entry{{Rank: 3, CrewID: "b", Score: 70}}

		Convey("Then verification fails", func() {
			So(errors.Is(Verify(board, rankings), ErrInconsistent), ShouldBeTrue)
		})
	})

	Convey("Given a high scorer missing from the leaderboard", t, func() {
		rankings := []Entry{{Rank: 1, CrewID: "z", Score: 95}}

		Convey("Then verification fails", func() {
			So(errors.Is(Verify(board, rankings), ErrInconsistent), ShouldBeTrue)
		})
	})

	Convey("Given an empty leaderboard", t, func() {
		Convey("Then it is consistent only without rankings", func() {
			So(Verify(nil, nil), ShouldBeNil)
			So(errors.Is(Verify(nil, board[:1]), ErrInconsistent), ShouldBeTrue)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		svc := service.New(service.WithWorkerCount(4), service.WithQueueSize(1000))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		mux := http.NewServeMux()
		api.NewServer(svc, svc).Register(ctx, mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		Convey("When seeding profiles", func() {
			out := filepath.Join(t.TempDir(), "out", "subs.json")
			report, err := Run(ctx, Config{
				BaseURL:    srv.URL,
				Profiles:   60,
				TopN:       20,
				Workers:    8,
				Seed:       7,
				Settle:     5 * time.Second,
				OutputFile: out,
				Logger:     logger.NewNop(),
			})

			Convey("Then every profile is accepted, ranked and verified", func() {
				So(err, ShouldBeNil)
				So(report.Generated, ShouldEqual, 60)
				So(report.Accepted, ShouldEqual, 60)
				So(report.Failed, ShouldEqual, 0)
				So(report.Ranked, ShouldEqual, 60)
				So(len(report.Leaderboard), ShouldEqual, 20)
				So(report.Leaderboard[0].Rank, ShouldEqual, 1)

				tiered := 0
				for _, n := range report.Tiers {
					tiered += n
				}
				So(tiered, ShouldEqual, 60)
			})

			Convey("And the submissions are written to the output file", func() {
				data, err := os.ReadFile(out)
				So(err, ShouldBeNil)
				var subs []Submission
				So(json.Unmarshal(data, &subs), ShouldBeNil)
				So(len(subs), ShouldEqual, 60)
			})

			Convey("And replaying the same seed only yields duplicates", func() {
				again, err := Run(ctx, Config{BaseURL: srv.URL, Profiles: 60, TopN: 20, Workers: 8, Seed: 7, Settle: 5 * time.Second, Logger: logger.NewNop()})
				So(err, ShouldBeNil)
				So(again.Accepted, ShouldEqual, 0)
				So(again.Duplicate, ShouldEqual, 60)
			})
		})
	})

	Convey("Given an unhealthy service", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		Convey("Then the run fails before submitting", func() {
			report, err := Run(context.Background(), Config{BaseURL: srv.URL, Profiles: 5, Logger: logger.NewNop()})
			So(errors.Is(err, ErrUnhealthy), ShouldBeTrue)
			So(report.Generated, ShouldEqual, 0)
		})
	})
}
