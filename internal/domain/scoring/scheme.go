package scoring

import (
	"fmt"
	"strings"
)

// Rule selects how a term turns profile data into points.
type Rule string

// Supported term rules.
const (
	RuleLinear      Rule = "linear"      // sum(fields) * per_unit, optionally capped
	RuleBreakpoints Rule = "breakpoints" // first descending threshold met
	RuleLookup      Rule = "lookup"      // points[choice]
	RuleTable       Rule = "table"       // table[row][col]
)

// SourceValidQualifications makes a term read the valid qualification count
// instead of named fields.
const SourceValidQualifications = "valid_qualifications"

// OverflowPolicy decides the tier for totals outside every band.
type OverflowPolicy string

// Overflow policies.
const (
	OverflowLowest  OverflowPolicy = "lowest"
	OverflowNearest OverflowPolicy = "nearest"
)

// Breakpoint awards Points when the input is at least Min.
type Breakpoint struct {
	Min    float64 `yaml:"min" json:"min"`
	Points float64 `yaml:"points" json:"points"`
}

// Term is one contribution to a category.
type Term struct {
	Name        string                        `yaml:"name" json:"name"`
	Rule        Rule                          `yaml:"rule" json:"rule"`
	Fields      []string                      `yaml:"fields,omitempty" json:"fields,omitempty"`
	Source      string                        `yaml:"source,omitempty" json:"source,omitempty"`
	PerUnit     float64                       `yaml:"per_unit,omitempty" json:"per_unit,omitempty"`
	Cap         *float64                      `yaml:"cap,omitempty" json:"cap,omitempty"`
	Breakpoints []Breakpoint                  `yaml:"breakpoints,omitempty" json:"breakpoints,omitempty"`
	Points      map[string]float64            `yaml:"points,omitempty" json:"points,omitempty"`
	Table       map[string]map[string]float64 `yaml:"table,omitempty" json:"table,omitempty"`
}

// Category groups terms under one capped sub-score.
// A category without terms is a placeholder and always scores 0.
type Category struct {
	Name     string `yaml:"name" json:"name"`
	Label    string `yaml:"label" json:"label"`
	Max      int    `yaml:"max" json:"max"`
	Uncapped bool   `yaml:"uncapped,omitempty" json:"uncapped,omitempty"`
	Terms    []Term `yaml:"terms,omitempty" json:"terms,omitempty"`
}

// Placeholder reports whether the category has no scoring terms.
func (c Category) Placeholder() bool { return len(c.Terms) == 0 }

// Tier is a named score band with display tokens.
type Tier struct {
	Min   int    `yaml:"min" json:"min"`
	Max   int    `yaml:"max" json:"max"`
	Label string `yaml:"label" json:"label"`
	Color string `yaml:"color" json:"color"`
	Icon  string `yaml:"icon" json:"icon"`
}

// Contains reports whether total lies in the inclusive band.
func (t Tier) Contains(total int) bool { return t.Min <= total && total <= t.Max }

// TierTable is an ordered list of contiguous bands.
type TierTable struct {
	Bands    []Tier         `yaml:"bands" json:"bands"`
	Overflow OverflowPolicy `yaml:"overflow,omitempty" json:"overflow,omitempty"`
}

// Scheme is a complete weight table plus its tier table.
type Scheme struct {
	Name        string     `yaml:"name" json:"name"`
	Label       string     `yaml:"label" json:"label"`
	Version     string     `yaml:"version" json:"version"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Categories  []Category `yaml:"categories" json:"categories"`
	Tiers       TierTable  `yaml:"tiers" json:"tiers"`
}

// MaxTotal is the sum of the capped category maxima.
func (s Scheme) MaxTotal() int {
	total := 0
	for _, c := range s.Categories {
		if !c.Uncapped {
			total += c.Max
		}
	}
	return total
}

// Category returns the named category.
func (s Scheme) Category(name string) (Category, bool) {
	for _, c := range s.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// Validate checks the scheme tables once at load so the engine can stay total.
func (s Scheme) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: scheme name is required", ErrInvalidScheme)
	}
	if len(s.Categories) == 0 {
		return fmt.Errorf("%w: %s: no categories", ErrInvalidScheme, s.Name)
	}
	seen := make(map[string]struct{}, len(s.Categories))
	for _, c := range s.Categories {
		if c.Name == "" {
			return fmt.Errorf("%w: %s: category name is required", ErrInvalidScheme, s.Name)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("%w: %s: duplicate category %q", ErrInvalidScheme, s.Name, c.Name)
		}
		seen[c.Name] = struct{}{}
		if c.Max < 0 {
			return fmt.Errorf("%w: %s/%s: negative max", ErrInvalidScheme, s.Name, c.Name)
		}
		for _, t := range c.Terms {
			if err := t.validate(); err != nil {
				return fmt.Errorf("%w: %s/%s: %v", ErrInvalidScheme, s.Name, c.Name, err)
			}
		}
	}
	if err := s.Tiers.validate(s.MaxTotal()); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidScheme, s.Name, err)
	}
	return nil
}

func (t Term) validate() error {
	if t.Cap != nil && *t.Cap < 0 {
		return fmt.Errorf("term %q: negative cap", t.Name)
	}
	switch t.Rule {
	case RuleLinear:
		if len(t.Fields) == 0 && t.Source == "" {
			return fmt.Errorf("term %q: linear needs fields or source", t.Name)
		}
	case RuleBreakpoints:
		if len(t.Fields) == 0 && t.Source == "" {
			return fmt.Errorf("term %q: breakpoints needs fields or source", t.Name)
		}
		if len(t.Breakpoints) == 0 {
			return fmt.Errorf("term %q: no breakpoints", t.Name)
		}
		for i := 1; i < len(t.Breakpoints); i++ {
			if t.Breakpoints[i].Min >= t.Breakpoints[i-1].Min {
				return fmt.Errorf("term %q: breakpoints must be strictly descending", t.Name)
			}
		}
	case RuleLookup:
		if len(t.Fields) != 1 {
			return fmt.Errorf("term %q: lookup needs exactly one field", t.Name)
		}
		if err := uniqueFold(keysOf(t.Points)); err != nil {
			return fmt.Errorf("term %q: %v", t.Name, err)
		}
	case RuleTable:
		if len(t.Fields) != 2 {
			return fmt.Errorf("term %q: table needs exactly two fields", t.Name)
		}
		if err := uniqueFold(keysOf(t.Table)); err != nil {
			return fmt.Errorf("term %q: %v", t.Name, err)
		}
		for _, row := range t.Table {
			if err := uniqueFold(keysOf(row)); err != nil {
				return fmt.Errorf("term %q: %v", t.Name, err)
			}
		}
	default:
		return fmt.Errorf("term %q: unknown rule %q", t.Name, t.Rule)
	}
	return nil
}

func (tt TierTable) validate(maxTotal int) error {
	switch tt.Overflow {
	case "", OverflowLowest, OverflowNearest:
	default:
		return fmt.Errorf("unknown overflow policy %q", tt.Overflow)
	}
	if len(tt.Bands) == 0 {
		return fmt.Errorf("no tiers")
	}
	if tt.Bands[0].Min != 0 {
		return fmt.Errorf("tiers must start at 0, got %d", tt.Bands[0].Min)
	}
	for i, b := range tt.Bands {
		if b.Label == "" {
			return fmt.Errorf("tier %d has no label", i)
		}
		if b.Min > b.Max {
			return fmt.Errorf("tier %q: min %d above max %d", b.Label, b.Min, b.Max)
		}
		if i > 0 && b.Min != tt.Bands[i-1].Max+1 {
			return fmt.Errorf("tier %q does not follow %q contiguously", b.Label, tt.Bands[i-1].Label)
		}
	}
	if last := tt.Bands[len(tt.Bands)-1]; last.Max != maxTotal {
		return fmt.Errorf("tiers end at %d, categories sum to %d", last.Max, maxTotal)
	}
	return nil
}

func keysOf[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func uniqueFold(keys []string) error {
	seen := make(map[string]string, len(keys))
	for _, k := range keys {
		norm := normalizeKey(k)
		if prev, ok := seen[norm]; ok {
			return fmt.Errorf("keys %q and %q collide", prev, k)
		}
		seen[norm] = k
	}
	return nil
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
