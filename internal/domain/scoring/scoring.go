// Package scoring implements the crew rating engine: data-driven weight
// tables, per-category clamped sub-scores and tier classification.
//
// ComputeBreakdown, ComputeTotal, ClassifyTier and Evaluate are pure and
// total. Scorer wraps them for callers that work with scheme names and
// contexts.
package scoring

import (
	"context"
	"fmt"
)

// DefaultScheme is used when an input does not name a scheme.
const DefaultScheme = "cri"

// Option applies a configuration option to the TableScorer.
type Option func(*TableScorer)

// WithDefaultScheme sets the scheme used for inputs without one.
func WithDefaultScheme(name string) Option {
	return func(s *TableScorer) {
		if name != "" {
			s.defaultScheme = name
		}
	}
}

// Input is a profile to score under a named scheme.
type Input struct {
	CrewID  string
	Scheme  string
	Profile Profile
}

// Scorer computes a result from an input.
type Scorer interface {
	// Score computes a result, honoring ctx for cancellation.
	Score(ctx context.Context, in Input) (Result, error)
}

// TableScorer implements Scorer over a Registry of schemes.
type TableScorer struct {
	registry      *Registry
	defaultScheme string
}

// NewTableScorer creates a scorer backed by reg.
func NewTableScorer(reg *Registry, opts ...Option) *TableScorer {
	s := &TableScorer{
		registry:      reg,
		defaultScheme: DefaultScheme,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score evaluates the input. It fails only for a cancelled context or an unknown scheme.
func (s *TableScorer) Score(ctx context.Context, in Input) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("context cancelled: %w", err)
	}
	name := in.Scheme
	if name == "" {
		name = s.defaultScheme
	}
	scheme, err := s.registry.Get(name)
	if err != nil {
		return Result{}, err
	}
	res := Evaluate(in.Profile, scheme)
	res.CrewID = in.CrewID
	return res, nil
}

// Registry exposes the backing scheme registry.
func (s *TableScorer) Registry() *Registry { return s.registry }

// DefaultSchemeName returns the scheme used for inputs without one.
func (s *TableScorer) DefaultSchemeName() string { return s.defaultScheme }
