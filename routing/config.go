package routing

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// NoCandidatePolicy decides what happens to an observation that cannot be placed in the lattice
type NoCandidatePolicy string

const (
	// PolicySkip leaves the observation out and keeps decoding
	PolicySkip NoCandidatePolicy = "skip"
	// PolicyFail aborts the whole trajectory
	PolicyFail NoCandidatePolicy = "fail"
)

// Config holds the matcher parameters. Distances are in meters.
type Config struct {
	MaxDist           float64           `yaml:"max_dist" validate:"gt=0"`            // candidate search radius
	ObsNoise          float64           `yaml:"obs_noise" validate:"gt=0"`           // emission std. dev. for direct hits
	ObsNoiseUnmatched float64           `yaml:"obs_noise_unmatched" validate:"gt=0"` // std. dev. for pass-through edges
	MinProbNorm       float64           `yaml:"min_prob_norm" validate:"gte=0,lt=1"`
	DistNoise         float64           `yaml:"dist_noise" validate:"gt=0"` // route vs great-circle discrepancy std. dev.
	MaxLatticeWidth   int               `yaml:"max_lattice_width" validate:"gt=0"`
	RouteFactor       float64           `yaml:"route_factor" validate:"gte=1"` // route search cutoff multiplier
	AvoidGoingBack    bool              `yaml:"avoid_going_back"`
	NoCandidate       NoCandidatePolicy `yaml:"no_candidate" validate:"oneof=skip fail"`
}

// DefaultConfig returns parameters suited to urban GPS traces sampled every few seconds
func DefaultConfig() Config {
	return Config{
		MaxDist:           50,
		ObsNoise:          20,
		ObsNoiseUnmatched: 20,
		MinProbNorm:       0.01,
		DistNoise:         50,
		MaxLatticeWidth:   5,
		RouteFactor:       3,
		AvoidGoingBack:    true,
		NoCandidate:       PolicySkip,
	}
}

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// searchCutoff bounds the route search between two observations gcDist meters apart
func (c Config) searchCutoff(gcDist float64) float64 {
	return c.RouteFactor*gcDist + 2*c.MaxDist
}
