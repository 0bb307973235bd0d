package routing

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// scorer holds the Gaussian noise models of the hidden Markov model. All scores are log-probabilities.
type scorer struct {
	obs      distuv.Normal // perpendicular distance of a direct hit
	obsNE    distuv.Normal // deviation of a pass-through edge from the observed displacement
	distDiff distuv.Normal // route distance minus great-circle distance
}

func newScorer(cfg Config) scorer {
	return scorer{
		obs:      distuv.Normal{Mu: 0, Sigma: cfg.ObsNoise},
		obsNE:    distuv.Normal{Mu: 0, Sigma: cfg.ObsNoiseUnmatched},
		distDiff: distuv.Normal{Mu: 0, Sigma: cfg.DistNoise},
	}
}

// emission is log P(observation | candidate) for a candidate at the given distance
func (s scorer) emission(distance float64) float64 {
	return s.obs.LogProb(distance)
}

// emissionNorm is the emission probability scaled so that a zero-distance hit scores 1
func (s scorer) emissionNorm(distance float64) float64 {
	return math.Exp(s.obs.LogProb(distance) - s.obs.LogProb(0))
}

// passThrough is the normalised log score of one edge traversed without its own observation
func (s scorer) passThrough(deviation float64) float64 {
	return s.obsNE.LogProb(deviation) - s.obsNE.LogProb(0)
}

// transition is log P(state_t | state_{t-1}) from the route and great-circle distances
func (s scorer) transition(routeDist, gcDist float64) float64 {
	return s.distDiff.LogProb(math.Abs(routeDist - gcDist))
}

// calculateConfidence converts the final layer scores to a confidence score
func calculateConfidence(scores []float64, bestIdx int) float64 {
	if len(scores) == 0 {
		return 0
	}

	bestLogProb := scores[bestIdx]

	// Calculate average log probability of all paths at final step
	sumExp := 0.0
	for _, logP := range scores {
		sumExp += math.Exp(logP - bestLogProb) // normalize to prevent overflow
	}
	avgLogProb := bestLogProb + math.Log(sumExp/float64(len(scores)))

	// Confidence based on how much better best path is than average
	diff := bestLogProb - avgLogProb
	confidence := 1.0 - math.Exp(-diff)

	// Clamp to [0, 1]
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return confidence
}
