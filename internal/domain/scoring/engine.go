package scoring

import "math"

// maxUncapped bounds uncapped categories so the integer conversion stays defined.
const maxUncapped = math.MaxInt32

// CategoryScore is one row of a breakdown.
type CategoryScore struct {
	Category string `json:"category"`
	Label    string `json:"label"`
	Score    int    `json:"score"`
	Max      int    `json:"max"`
	Uncapped bool   `json:"uncapped,omitempty"`
}

// Breakdown lists every category of a scheme in declaration order.
type Breakdown []CategoryScore

// Get returns the score for a category, 0 when absent.
func (b Breakdown) Get(category string) int {
	for _, c := range b {
		if c.Category == category {
			return c.Score
		}
	}
	return 0
}

// Map returns the breakdown keyed by category name.
func (b Breakdown) Map() map[string]int {
	out := make(map[string]int, len(b))
	for _, c := range b {
		out[c.Category] = c.Score
	}
	return out
}

// Result is the outcome of scoring one profile against one scheme.
type Result struct {
	CrewID      string    `json:"crew_id,omitempty"`
	Scheme      string    `json:"scheme"`
	Breakdown   Breakdown `json:"breakdown"`
	Total       int       `json:"total"`
	Tier        Tier      `json:"tier"`
	TierMatched bool      `json:"tier_matched"`
}

// ComputeBreakdown scores every category of the scheme. It never fails:
// missing or malformed profile data contributes nothing.
func ComputeBreakdown(p Profile, s Scheme) Breakdown {
	out := make(Breakdown, 0, len(s.Categories))
	for _, c := range s.Categories {
		out = append(out, CategoryScore{
			Category: c.Name,
			Label:    c.Label,
			Score:    c.Score(p),
			Max:      c.Max,
			Uncapped: c.Uncapped,
		})
	}
	return out
}

// Score sums the category terms, rounds once and clamps to [0, Max].
func (c Category) Score(p Profile) int {
	if c.Placeholder() {
		return 0
	}
	sum := 0.0
	for _, t := range c.Terms {
		sum += t.Award(p)
	}
	if math.IsNaN(sum) {
		return 0
	}
	v := math.Round(sum)
	if v < 0 {
		return 0
	}
	if c.Uncapped {
		return int(math.Min(v, maxUncapped))
	}
	if v > float64(c.Max) {
		return c.Max
	}
	return int(v)
}

// Award evaluates a single term before category rounding.
func (t Term) Award(p Profile) float64 {
	var pts float64
	switch t.Rule {
	case RuleLinear:
		pts = t.input(p) * t.PerUnit
	case RuleBreakpoints:
		in := t.input(p)
		for _, bp := range t.Breakpoints {
			if in >= bp.Min {
				pts = bp.Points
				break
			}
		}
	case RuleLookup:
		pts = lookupPoints(t, p)
	case RuleTable:
		pts = tablePoints(t, p)
	}
	if math.IsNaN(pts) {
		return 0
	}
	if t.Cap != nil && pts > *t.Cap {
		pts = *t.Cap
	}
	return pts
}

func (t Term) input(p Profile) float64 {
	if t.Source == SourceValidQualifications {
		return float64(p.ValidQualifications())
	}
	sum := 0.0
	for _, f := range t.Fields {
		sum += p.Number(f)
	}
	return sum
}

func lookupPoints(t Term, p Profile) float64 {
	if len(t.Fields) != 1 {
		return 0
	}
	choice, ok := p.Choice(t.Fields[0])
	if !ok {
		return 0
	}
	v, _ := lookupFold(t.Points, choice)
	return v
}

func tablePoints(t Term, p Profile) float64 {
	if len(t.Fields) != 2 {
		return 0
	}
	rowKey, ok := p.Choice(t.Fields[0])
	if !ok {
		return 0
	}
	colKey, ok := p.Choice(t.Fields[1])
	if !ok {
		return 0
	}
	row, ok := lookupFold(t.Table, rowKey)
	if !ok {
		return 0
	}
	v, _ := lookupFold(row, colKey)
	return v
}

// lookupFold matches keys case-insensitively; exact hits short-circuit.
func lookupFold[V any](m map[string]V, key string) (V, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	norm := normalizeKey(key)
	for k, v := range m {
		if normalizeKey(k) == norm {
			return v, true
		}
	}
	var zero V
	return zero, false
}

// ComputeTotal sums all sub-scores, placeholders and uncapped categories included.
func ComputeTotal(b Breakdown) int {
	total := 0
	for _, c := range b {
		total += c.Score
	}
	return total
}

// ClassifyTier returns the band containing total, or the overflow fallback.
func ClassifyTier(total int, tt TierTable) Tier {
	t, _ := tt.Classify(total)
	return t
}

// Classify returns the first band containing total. When none does, the
// fallback band is returned with matched=false. The default policy falls back
// to the lowest band; OverflowNearest picks the band closest to total.
func (tt TierTable) Classify(total int) (Tier, bool) {
	if len(tt.Bands) == 0 {
		return Tier{}, false
	}
	for _, b := range tt.Bands {
		if b.Contains(total) {
			return b, true
		}
	}
	lowest, highest := tt.Bands[0], tt.Bands[0]
	for _, b := range tt.Bands[1:] {
		if b.Min < lowest.Min {
			lowest = b
		}
		if b.Max > highest.Max {
			highest = b
		}
	}
	if tt.Overflow == OverflowNearest && total > highest.Max {
		return highest, false
	}
	return lowest, false
}

// Evaluate runs the full pipeline for a profile.
func Evaluate(p Profile, s Scheme) Result {
	b := ComputeBreakdown(p, s)
	total := ComputeTotal(b)
	tier, matched := s.Tiers.Classify(total)
	return Result{
		Scheme:      s.Name,
		Breakdown:   b,
		Total:       total,
		Tier:        tier,
		TierMatched: matched,
	}
}
