package quantum

// Energy model weights. Failure risk and serialization are fractions,
// so they are scaled into the same order of magnitude as duration and
// cost before weighting.
const (
	weightDuration = 0.4
	weightCost     = 0.3
	weightRisk     = 0.2
	weightSerial   = 0.1

	riskScale   = 1000.0
	serialScale = 100.0
)

// Energy scores a path; lower is better. The score is strictly
// increasing in duration, cost and failure risk, and strictly
// decreasing in parallelization factor.
func Energy(p Path) float64 {
	factor := float64(p.ParallelizationFactor)
	if factor < 1 {
		factor = 1
	}
	return weightDuration*p.EstimatedDuration +
		weightCost*p.EstimatedCost +
		weightRisk*(1-p.SuccessProbability)*riskScale +
		weightSerial*(1/factor)*serialScale
}
