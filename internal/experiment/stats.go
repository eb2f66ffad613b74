package experiment

import "math"

// zForConfidence maps common two-tailed confidence levels to their critical
// z value. Unlisted levels fall back to 95%.
func zForConfidence(confidence float64) float64 {
	switch {
	case confidence >= 0.999:
		return 3.29
	case confidence >= 0.99:
		return 2.576
	case confidence >= 0.95:
		return 1.96
	case confidence >= 0.90:
		return 1.645
	default:
		return 1.96
	}
}

// zForPower maps common statistical power levels to the one-tailed z value
// used in the sample-size formula. Unlisted levels fall back to 80%.
func zForPower(power float64) float64 {
	switch {
	case power >= 0.95:
		return 1.645
	case power >= 0.90:
		return 1.282
	case power >= 0.80:
		return 0.842
	default:
		return 0.842
	}
}

// RequiredSampleSize estimates the per-variant sample size via the reduced
// power formula n = ceil(2·(zα+zβ)²·p·(1−p) / δ²), where p is the assumed
// baseline conversion rate and δ the expected improvement. An approximation,
// not exact power analysis.
func RequiredSampleSize(baseline, improvement, confidence, power float64) int {
	if improvement <= 0 {
		return 0
	}
	z := zForConfidence(confidence) + zForPower(power)
	n := 2 * z * z * baseline * (1 - baseline) / (improvement * improvement)
	return int(math.Ceil(n))
}

// TwoProportionZ computes the pooled two-proportion z score for a variant
// against control:
//
//	z = (pVariant − pControl) / sqrt(pPooled·(1−pPooled)·(1/nControl + 1/nVariant))
//
// Returns 0 when either group has no trials or the pooled variance is 0
// (e.g. both proportions are 0 or 1).
func TwoProportionZ(controlSuccesses, controlTrials, variantSuccesses, variantTrials int64) float64 {
	if controlTrials == 0 || variantTrials == 0 {
		return 0
	}
	pControl := float64(controlSuccesses) / float64(controlTrials)
	pVariant := float64(variantSuccesses) / float64(variantTrials)
	pPooled := float64(controlSuccesses+variantSuccesses) / float64(controlTrials+variantTrials)

	variance := pPooled * (1 - pPooled) * (1/float64(controlTrials) + 1/float64(variantTrials))
	if variance <= 0 {
		return 0
	}
	return (pVariant - pControl) / math.Sqrt(variance)
}

// PValueTwoTailed converts a z score to a two-tailed p-value through the
// normal CDF, Φ(z) = (1 + erf(z/√2))/2. math.Erf is the numerically stable
// error-function implementation.
func PValueTwoTailed(z float64) float64 {
	z = math.Abs(z)
	p := 2 * (1 - normalCDF(z))
	if p > 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}

func normalCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}
