package strain

import "math"

// Amplitude computes the decayed amplitude for a node:
//
//	clamp(accessCount * baseAmplitude * decayRate^hoursElapsed)
//
// For decayRate < 1 the result is monotonically decreasing in
// hoursElapsed. Negative elapsed time is treated as zero.
func Amplitude(accessCount int, baseAmplitude, decayRate, hoursElapsed float64) float64 {
	if accessCount <= 0 {
		return 0
	}
	if hoursElapsed < 0 {
		hoursElapsed = 0
	}
	return Clamp01(float64(accessCount) * baseAmplitude * math.Pow(decayRate, hoursElapsed))
}

// Resistance derives flow impedance from how established a node is:
// frequently seen, well-connected nodes resist incoming strain less.
// Each ratio is clamped to [0,1] before the product.
func Resistance(frequency, connectionStrength, maxFrequency, maxConnections float64) float64 {
	var freqRatio, connRatio float64
	if maxFrequency > 0 {
		freqRatio = Clamp01(frequency / maxFrequency)
	}
	if maxConnections > 0 {
		connRatio = Clamp01(connectionStrength / maxConnections)
	}
	return Clamp01((1 - freqRatio) * (1 - connRatio))
}

// ComputeFlow computes the strain transfer from one node to another
// across an edge whose own resistance acts as distance resistance.
// Strain only flows downhill: if the source amplitude does not exceed
// the target's, the flow is zero. When the total resistance is exactly
// zero the raw amplitude difference is returned.
//
// The flow direction is the source's direction hint, normalized.
func ComputeFlow(from, to Data, distanceResistance float64) Flow {
	if from.Amplitude <= to.Amplitude {
		return Flow{}
	}
	diff := from.Amplitude - to.Amplitude
	total := from.Resistance + to.Resistance + distanceResistance
	if total <= 0 {
		return Flow{Amount: diff, Direction: from.Direction.Normalize()}
	}
	return Flow{Amount: diff / total, Direction: from.Direction.Normalize()}
}

// Interference measures how strongly two flows reinforce or oppose
// each other: |dot(dirA, dirB)| scaled by the smaller flow amount.
func Interference(a, b Flow) float64 {
	if a.Amount <= 0 || b.Amount <= 0 {
		return 0
	}
	alignment := math.Abs(a.Direction.Normalize().Dot(b.Direction.Normalize()))
	smaller := math.Min(a.Amount, b.Amount)
	return Clamp01(alignment * smaller)
}

// Dissonance scores the contradiction between two attribute maps. For
// every key present in both maps a differing value counts as a
// mismatch; the score is mismatches / compared keys. Scores at or
// below the threshold report 0.0 — identical maps, disjoint maps, and
// empty maps never produce strain.
func Dissonance(attrsA, attrsB map[string]string, threshold float64) float64 {
	compared := 0
	mismatches := 0
	for k, va := range attrsA {
		vb, ok := attrsB[k]
		if !ok {
			continue
		}
		compared++
		if va != vb {
			mismatches++
		}
	}
	if compared == 0 || mismatches == 0 {
		return 0
	}
	score := float64(mismatches) / float64(compared)
	if score <= threshold {
		return 0
	}
	return score
}
