package tiers

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	ErrTierOutOfRange = errors.New("tiers: tier index out of range")
	ErrItemOutOfRange = errors.New("tiers: item index out of range")
	ErrInvalidScheme  = errors.New("tiers: invalid scheme")
)

// Scheme is a tier layout: one label and one percentage weight per tier.
type Scheme struct {
	Labels  []string  `yaml:"labels" json:"labels"`
	Weights []float64 `yaml:"weights" json:"weights"`
}

// DefaultScheme is the S-to-F layout offered before any adjustment.
func DefaultScheme() Scheme {
	return Scheme{
		Labels:  []string{"S", "A", "B", "C", "D", "F"},
		Weights: []float64{10, 20, 30, 25, 10, 5},
	}
}

// ClampWeight limits a slider value to 0..100.
func ClampWeight(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// SetWeight clamps and stores the weight of tier i.
func (s *Scheme) SetWeight(i int, v float64) error {
	if i < 0 || i >= len(s.Weights) {
		return fmt.Errorf("%w: %d", ErrTierOutOfRange, i)
	}
	s.Weights[i] = ClampWeight(v)
	return nil
}

// Total is the sum of all weights, shown next to the sliders.
func (s Scheme) Total() float64 {
	total := 0.0
	for _, w := range s.Weights {
		total += w
	}
	return total
}

func (s Scheme) Validate() error {
	if len(s.Labels) == 0 {
		return fmt.Errorf("%w: no tiers", ErrInvalidScheme)
	}
	if len(s.Labels) != len(s.Weights) {
		return fmt.Errorf("%w: %d labels but %d weights", ErrInvalidScheme, len(s.Labels), len(s.Weights))
	}
	seen := make(map[string]bool, len(s.Labels))
	for _, l := range s.Labels {
		if l == "" {
			return fmt.Errorf("%w: empty tier label", ErrInvalidScheme)
		}
		if seen[l] {
			return fmt.Errorf("%w: duplicate tier label %q", ErrInvalidScheme, l)
		}
		seen[l] = true
	}
	for i, w := range s.Weights {
		if w < 0 || w > 100 || math.IsNaN(w) {
			return fmt.Errorf("%w: weight %v for tier %q outside 0..100", ErrInvalidScheme, w, s.Labels[i])
		}
	}
	return nil
}

// Partition applies the scheme to a ranked list.
func (s Scheme) Partition(sorted []string) []TierGroup {
	return Partition(sorted, s.Weights, s.Labels)
}

// LoadScheme reads a YAML scheme file:
//
//	labels: [S, A, B, C, D, F]
//	weights: [10, 20, 30, 25, 10, 5]
func LoadScheme(path string) (Scheme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scheme{}, fmt.Errorf("failed to read tier scheme %s: %w", path, err)
	}

	var s Scheme
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Scheme{}, fmt.Errorf("failed to parse tier scheme %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return Scheme{}, err
	}
	return s, nil
}
