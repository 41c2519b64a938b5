package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/xplor/crewscore/internal/app"
	"github.com/xplor/crewscore/internal/domain/model"
	"github.com/xplor/crewscore/internal/domain/scoring"
)

func experienceProfile() scoring.Profile {
	return scoring.NewProfile(map[string]any{
		"totalYearsYachting": 10,
		"numberOfYachts":     5,
		"longevityLastYacht": 4,
		"largestGRT":         3000,
	})
}

type memArchive struct {
	cards  []model.ScoreCard
	closed bool
}

func (a *memArchive) Save(_ context.Context, c model.ScoreCard) error {
	a.cards = append(a.cards, c)
	return nil
}

func (a *memArchive) History(_ context.Context, crewID string, _ int) ([]model.ScoreCard, error) {
	var out []model.ScoreCard
	for _, c := range a.cards {
		if c.CrewID == crewID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (a *memArchive) Close() error {
	a.closed = true
	return nil
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it is not started and uses the cri scheme", func() {
			So(svc, ShouldNotBeNil)
			So(svc.DefaultScheme(), ShouldEqual, "cri")
			So(svc.GetStats()["started"], ShouldEqual, false)
			So(svc.Schemes(), ShouldBeNil)
		})

		Convey("And operations before Start are refused", func() {
			ctx := context.Background()
			_, err := svc.Score(ctx, "", scoring.Profile{})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.TopN(ctx, "", 10)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.Submit(ctx, model.Submission{CrewID: "c"}), ShouldBeFalse)
		})
	})

	Convey("Given a service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(3),
			service.WithQueueSize(50),
			service.WithDedupeSize(25),
			service.WithBatchConcurrency(2),
			service.WithDefaultScheme("yci"),
		)

		Convey("Then the stats reflect them", func() {
			stats := svc.GetStats()
			So(stats["workerCount"], ShouldEqual, 3)
			So(stats["queueSize"], ShouldEqual, 50)
			So(stats["dedupeSize"], ShouldEqual, 25)
			So(stats["defaultScheme"], ShouldEqual, "yci")
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithWorkerCount(2), service.WithQueueSize(10))
		defer svc.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When starting the service", func() {
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then it is marked as started with the built-in schemes", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["schemes"], ShouldResemble, []string{"cri", "yci"})
				So(stats["totalCrews"], ShouldEqual, 0)
			})

			Convey("And a second Start is a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})
		})
	})

	Convey("Given a default scheme that is not registered", t, func() {
		svc := service.New(service.WithDefaultScheme("nope"))

		Convey("Then Start fails with an unknown scheme error", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, scoring.ErrUnknownScheme), ShouldBeTrue)
		})
	})
}

func TestService_Score(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New(service.WithWorkerCount(1), service.WithBatchConcurrency(2))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When scoring without naming a scheme", func() {
			res, err := svc.Score(ctx, "", experienceProfile())

			Convey("Then the default scheme is used", func() {
				So(err, ShouldBeNil)
				So(res.Scheme, ShouldEqual, "cri")
				So(res.Total, ShouldEqual, 16)
				So(res.Tier.Label, ShouldEqual, "Standard")
			})
		})

		Convey("When scoring under an unknown scheme", func() {
			_, err := svc.Score(ctx, "unknown", experienceProfile())

			Convey("Then an unknown scheme error is returned", func() {
				So(errors.Is(err, scoring.ErrUnknownScheme), ShouldBeTrue)
			})
		})

		Convey("When scoring a batch", func() {
			profiles := []scoring.Profile{
				experienceProfile(),
				{},
				scoring.NewProfile(map[string]any{"selectedYachtSize": "80m+", "selectedPosition": "Captain"}),
			}
			results, err := svc.ScoreBatch(ctx, "cri", profiles)

			Convey("Then results keep the input order", func() {
				So(err, ShouldBeNil)
				So(len(results), ShouldEqual, 3)
				So(results[0].Total, ShouldEqual, 16)
				So(results[1].Total, ShouldEqual, 0)
				So(results[2].Breakdown.Get("position"), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When a batch names an unknown scheme", func() {
			_, err := svc.ScoreBatch(ctx, "nope", []scoring.Profile{{}})

			Convey("Then it fails before scoring", func() {
				So(errors.Is(err, scoring.ErrUnknownScheme), ShouldBeTrue)
			})
		})

		Convey("When a batch is empty", func() {
			results, err := svc.ScoreBatch(ctx, "", nil)

			Convey("Then an empty result is returned", func() {
				So(err, ShouldBeNil)
				So(len(results), ShouldEqual, 0)
			})
		})

		Convey("When listing schemes", func() {
			s, err := svc.Scheme("yci")

			Convey("Then both schemes are available", func() {
				So(len(svc.Schemes()), ShouldEqual, 2)
				So(err, ShouldBeNil)
				So(s.Name, ShouldEqual, "yci")
			})
		})
	})
}

func TestService_Dedupe(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New(service.WithWorkerCount(1), service.WithDedupeSize(10))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When the same id is recorded twice", func() {
			first := svc.SeenAndRecord(ctx, "sub-1")
			second := svc.SeenAndRecord(ctx, "sub-1")

			Convey("Then only the second is a duplicate", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(svc.Size(), ShouldEqual, 1)
			})

			Convey("And Unrecord allows a retry", func() {
				svc.Unrecord(ctx, "sub-1")
				So(svc.SeenAndRecord(ctx, "sub-1"), ShouldBeFalse)
			})
		})
	})
}

func TestService_History(t *testing.T) {
	Convey("Given a service without an archive", t, func() {
		svc := service.New()

		Convey("Then history is disabled", func() {
			_, err := svc.History(context.Background(), "crew-1", 10)
			So(errors.Is(err, service.ErrArchiveDisabled), ShouldBeTrue)
		})
	})

	Convey("Given a service with an archive", t, func() {
		archive := &memArchive{}
		svc := service.New(service.WithWorkerCount(1), service.WithArchive(archive))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When a submission is processed", func() {
			So(svc.Submit(ctx, model.Submission{CrewID: "crew-1", Profile: experienceProfile()}), ShouldBeTrue)
			So(waitFor(func() bool {
				_, err := svc.Rank(ctx, "", "crew-1")
				return err == nil
			}), ShouldBeTrue)
			svc.Stop()

			Convey("Then its card is archived and the archive is closed", func() {
				cards, err := svc.History(ctx, "crew-1", 10)
				So(err, ShouldBeNil)
				So(len(cards), ShouldEqual, 1)
				So(cards[0].Total, ShouldEqual, 16)
				So(cards[0].SubmissionID, ShouldStartWith, "sub-")
				So(archive.closed, ShouldBeTrue)
			})
		})
	})
}

// waitFor polls cond for up to two seconds.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}
