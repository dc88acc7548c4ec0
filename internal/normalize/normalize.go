// Package normalize implements the normalizer stage (spec.md §4.4):
// robust/minmax/zscore normalization, each with an optional Bayesian
// fallback for zero-variance or singleton samples. Ported in meaning from
// original_source/attic/python-valknut/valknut/core/bayesian_normalization.py
// (see priors.go for the priors table and confidence tiers).
package normalize

import (
	"math"
	"math/rand"
	"sort"

	"github.com/valknut-dev/valknut/internal/entity"
)

// Scheme selects a normalization family plus whether its Bayesian
// fallback is enabled.
type Scheme int

const (
	SchemeRobust Scheme = iota
	SchemeMinMax
	SchemeZScore
	SchemeRobustBayesian
	SchemeMinMaxBayesian
	SchemeZScoreBayesian
)

// Diagnostics records, per feature, which confidence tier its fallback
// used (when the Bayesian path engaged) — surfaced when
// confidence_reporting is enabled (spec.md §6).
type Diagnostics struct {
	UsedFallback bool
	Confidence   VarianceConfidence
}

// Normalizer fits per-feature statistics over a batch of FeatureVectors
// and writes their Normalized maps in place.
type Normalizer struct {
	Scheme     Scheme
	ClipMin    float64
	ClipMax    float64
	Source     rand.Source
	Reporting  bool

	Diagnostics map[string]Diagnostics
}

// New constructs a Normalizer. seed makes the Bayesian fallback's
// stochastic offset reproducible (spec.md §9's determinism decision);
// pass the same seed to get byte-identical normalized output across runs
// on identical input.
func New(scheme Scheme, clipMin, clipMax float64, seed int64) *Normalizer {
	return &Normalizer{
		Scheme:      scheme,
		ClipMin:     clipMin,
		ClipMax:     clipMax,
		Source:      rand.NewSource(seed),
		Diagnostics: make(map[string]Diagnostics),
	}
}

func (n *Normalizer) bayesian() bool {
	return n.Scheme == SchemeRobustBayesian || n.Scheme == SchemeMinMaxBayesian || n.Scheme == SchemeZScoreBayesian
}

func (n *Normalizer) baseScheme() Scheme {
	switch n.Scheme {
	case SchemeRobustBayesian:
		return SchemeRobust
	case SchemeMinMaxBayesian:
		return SchemeMinMax
	case SchemeZScoreBayesian:
		return SchemeZScore
	default:
		return n.Scheme
	}
}

// Fit normalizes every feature across the batch in place, writing into
// each vector's Normalized map. defs supplies each feature's polarity
// (higher_is_worse) so the normalized value always orients toward
// "higher = more refactorable".
func (n *Normalizer) Fit(vectors []*entity.FeatureVector, defs []entity.FeatureDefinition) {
	polarity := make(map[string]bool, len(defs))
	for _, d := range defs {
		polarity[d.Name] = d.HigherIsWorse
	}

	featureNames := make(map[string]bool)
	for _, fv := range vectors {
		for name := range fv.Raw {
			featureNames[name] = true
		}
	}

	names := make([]string, 0, len(featureNames))
	for name := range featureNames {
		names = append(names, name)
	}
	// Sorted so the fallback's shared random stream is consumed in the
	// same feature order on every run.
	sort.Strings(names)

	for _, name := range names {
		values := make([]float64, 0, len(vectors))
		for _, fv := range vectors {
			if v, ok := fv.Raw[name]; ok {
				values = append(values, v)
			}
		}
		normalized, diag := n.normalizeFeature(name, values)
		n.Diagnostics[name] = diag

		higherIsWorse := polarity[name]
		i := 0
		for _, fv := range vectors {
			if _, ok := fv.Raw[name]; !ok {
				continue
			}
			v := normalized[i]
			i++
			if higherIsWorse {
				v = 1 - v
			}
			fv.Normalized[name] = clip(v, n.ClipMin, n.ClipMax)
		}
	}
}

func (n *Normalizer) normalizeFeature(name string, values []float64) ([]float64, Diagnostics) {
	mean, variance := meanVariance(values)
	prior := PriorFor(name)
	confidence := classifyVariance(len(values), variance, prior)

	if n.bayesian() && confidence != ConfidenceHigh {
		return n.bayesianFallback(name, values, mean, variance, prior, confidence), Diagnostics{UsedFallback: true, Confidence: confidence}
	}

	switch n.baseScheme() {
	case SchemeMinMax:
		return minMaxNormalize(values), Diagnostics{Confidence: confidence}
	case SchemeZScore:
		return zScoreNormalize(values, mean, variance), Diagnostics{Confidence: confidence}
	default:
		return robustNormalize(values), Diagnostics{Confidence: confidence}
	}
}

// bayesianFallback blends the observed distribution with the feature's
// prior, weighted by confidence tier, and applies a small deterministic
// offset (seeded) to break ties among otherwise-identical values so the
// scorer's deterministic tie-break still has distinguishing input when
// every sample shares one value.
func (n *Normalizer) bayesianFallback(name string, values []float64, mean, variance float64, prior Prior, confidence VarianceConfidence) []float64 {
	w := priorWeight[confidence]
	blendedMean := w*prior.ExpectedMean + (1-w)*mean
	blendedVar := w*prior.Variance() + (1-w)*variance
	if blendedVar <= 0 {
		blendedVar = prior.Variance()
	}
	std := math.Sqrt(blendedVar)
	if std == 0 {
		std = 1
	}

	noise := noiseFactor[confidence]
	r := rand.New(n.Source)
	out := make([]float64, len(values))
	for i, v := range values {
		z := (v - blendedMean) / std
		sigmoid := 1 / (1 + math.Exp(-z))
		offset := r.NormFloat64() * noise * std
		out[i] = clip(sigmoid+offset, 0, 1)
	}
	return out
}

// noiseFactor scales the fallback's tie-breaking offset by confidence
// tier — 0.02 at high confidence up to 0.15 at insufficient — ported from
// bayesian_normalization.py's _confidence_weighted_fallback.
var noiseFactor = map[VarianceConfidence]float64{
	ConfidenceHigh:         0.02,
	ConfidenceMedium:       0.05,
	ConfidenceLow:          0.1,
	ConfidenceVeryLow:      0.15,
	ConfidenceInsufficient: 0.15,
}

func robustNormalize(values []float64) []float64 {
	if len(values) == 0 {
		return values
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	median := percentile(sorted, 0.5)
	q1 := percentile(sorted, 0.25)
	q3 := percentile(sorted, 0.75)
	iqr := q3 - q1
	if iqr == 0 {
		iqr = 1
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = clip((v-median)/iqr/2+0.5, 0, 1)
	}
	return out
}

func minMaxNormalize(values []float64) []float64 {
	if len(values) == 0 {
		return values
	}
	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	span := max - min
	out := make([]float64, len(values))
	for i, v := range values {
		if span == 0 {
			out[i] = 0.5
			continue
		}
		out[i] = (v - min) / span
	}
	return out
}

func zScoreNormalize(values []float64, mean, variance float64) []float64 {
	std := math.Sqrt(variance)
	out := make([]float64, len(values))
	for i, v := range values {
		if std == 0 {
			out[i] = 0.5
			continue
		}
		z := (v - mean) / std
		out[i] = clip(1/(1+math.Exp(-z)), 0, 1)
	}
	return out
}

func meanVariance(values []float64) (mean, variance float64) {
	n := len(values)
	if n == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(n)
	if n < 2 {
		return mean, 0
	}
	sq := 0.0
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	variance = sq / float64(n-1)
	return mean, variance
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	idx := p * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func clip(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
