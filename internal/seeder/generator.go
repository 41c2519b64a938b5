package seeder

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

var (
	yachtSizes = []string{"Under 30m", "30-50m", "50-80m", "80m+"}
	cocLevels  = []string{"Master Unlimited", "Master of Yachts", "Chief Mate", "Officer of the Watch", "Yachtmaster Offshore", "Yachtmaster Coastal", "Day Skipper", "Y1", "Y2", "Y3", "Y4", "AEC"}
	statuses   = []string{"valid", "valid", "valid", "expired", "pending"}
	certs      = []string{"STCW Basic Safety", "ENG1 Medical", "PDSD", "Food Safety L2", "Powerboat L2", "GMDSS", "HELM (O)", "Medical Care", "Security Awareness", "Tender Driving"}
)

// archetype bounds the random draw for one kind of crew member.
type archetype struct {
	positions []string
	years     [2]int
	yachts    [2]int
	grt       [2]int
	seaMiles  [2]int
	crossings [2]int
	certs     [2]int
	senior    bool
}

var archetypes = []archetype{
	{positions: []string{"Deckhand", "Stewardess"}, years: [2]int{0, 3}, yachts: [2]int{0, 2}, grt: [2]int{100, 800}, seaMiles: [2]int{0, 8000}, crossings: [2]int{0, 1}, certs: [2]int{1, 3}},
	{positions: []string{"Bosun", "Second Officer", "Second Engineer", "Chief Stewardess", "Head Chef"}, years: [2]int{3, 8}, yachts: [2]int{2, 5}, grt: [2]int{500, 2500}, seaMiles: [2]int{8000, 40000}, crossings: [2]int{0, 3}, certs: [2]int{3, 6}},
	{positions: []string{"Chief Officer", "Chief Engineer"}, years: [2]int{6, 15}, yachts: [2]int{3, 7}, grt: [2]int{1500, 5000}, seaMiles: [2]int{30000, 90000}, crossings: [2]int{2, 5}, certs: [2]int{5, 9}, senior: true},
	{positions: []string{"Captain"}, years: [2]int{10, 30}, yachts: [2]int{4, 10}, grt: [2]int{2000, 9000}, seaMiles: [2]int{60000, 200000}, crossings: [2]int{3, 8}, certs: [2]int{6, 10}, senior: true},
}

// generator produces reproducible crew submissions from a seed.
type generator struct {
	src    *rand.ChaCha8
	rng    *rand.Rand
	scheme string
}

func newGenerator(seed uint64, scheme string) *generator {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:], seed)
	src := rand.NewChaCha8(key)
	return &generator{src: src, rng: rand.New(src), scheme: scheme}
}

func (g *generator) between(r [2]int) int {
	if r[1] <= r[0] {
		return r[0]
	}
	return r[0] + g.rng.IntN(r[1]-r[0]+1)
}

func (g *generator) pick(xs []string) string { return xs[g.rng.IntN(len(xs))] }

// generate returns n submissions for distinct crew members.
func (g *generator) generate(n int, now time.Time) ([]Submission, error) {
	out := make([]Submission, n)
	for i := range out {
		id, err := uuid.NewRandomFromReader(g.src)
		if err != nil {
			return nil, fmt.Errorf("crew id %d: %w", i, err)
		}
		out[i] = Submission{
			SubmissionID: fmt.Sprintf("seed-%s-%d", id.String()[:8], i),
			CrewID:       id.String(),
			Scheme:       g.scheme,
			Profile:      g.profile(),
			TS:           now.UTC().Format(time.RFC3339),
		}
	}
	return out, nil
}

func (g *generator) profile() map[string]any {
	a := archetypes[g.rng.IntN(len(archetypes))]

	quals := make(map[string]string)
	for _, c := range g.rng.Perm(len(certs))[:g.between(a.certs)] {
		quals[certs[c]] = g.pick(statuses)
	}

	p := map[string]any{
		"totalYearsYachting": g.between(a.years),
		"numberOfYachts":     g.between(a.yachts),
		"longevityLastYacht": g.rng.IntN(g.between(a.years)+1) + 1,
		"largestGRT":         g.between(a.grt),
		"seaMilesLogged":     g.between(a.seaMiles),
		"atlanticCrossings":  g.between(a.crossings),
		"pacificCrossings":   g.rng.IntN(2),
		"selectedYachtSize":  g.pick(yachtSizes),
		"selectedPosition":   g.pick(a.positions),
		"qualifications":     quals,
	}
	if a.senior || g.rng.IntN(3) == 0 {
		p["selectedCoC"] = g.pick(cocLevels)
	}
	return p
}
