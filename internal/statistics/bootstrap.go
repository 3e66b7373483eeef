// Package statistics computes bootstrap confidence intervals for evaluation metrics.
package statistics

import (
	"math"
	"math/rand"
	"sort"

	"github.com/spboyer/playground/internal/metrics"
	"gonum.org/v1/gonum/stat"
)

// ConfidenceInterval holds the result of a bootstrap confidence interval computation.
type ConfidenceInterval struct {
	Lower           float64 `json:"lower"`
	Upper           float64 `json:"upper"`
	Mean            float64 `json:"mean"`
	ConfidenceLevel float64 `json:"confidence_level"`
	NumBootstraps   int     `json:"num_bootstraps"`
}

// DefaultBootstrapIterations is the number of bootstrap resamples.
const DefaultBootstrapIterations = 10000

// BootstrapCIWithSeed computes a percentile bootstrap confidence interval of
// the mean of scores. confidenceLevel should be in (0, 1), e.g. 0.95. A
// negative seed uses a non-deterministic source. Fewer than 2 scores yield a
// degenerate interval at the mean.
func BootstrapCIWithSeed(scores []float64, confidenceLevel float64, seed int64) ConfidenceInterval {
	n := len(scores)
	m := mean(scores)
	if n < 2 {
		return ConfidenceInterval{Lower: m, Upper: m, Mean: m, ConfidenceLevel: confidenceLevel}
	}

	rng := newRand(seed)
	bootMeans := make([]float64, DefaultBootstrapIterations)
	sample := make([]float64, n)
	for i := range bootMeans {
		for j := 0; j < n; j++ {
			sample[j] = scores[rng.Intn(n)]
		}
		bootMeans[i] = mean(sample)
	}
	return percentile(bootMeans, m, confidenceLevel)
}

// AccuracyCI is the bootstrap interval of the accuracy of probs against labels.
func AccuracyCI(probs, labels []float64, confidenceLevel float64, seed int64) ConfidenceInterval {
	return BootstrapCIWithSeed(metrics.Correct(probs, labels), confidenceLevel, seed)
}

// AUCCI is the bootstrap interval of the ROC-AUC of probs against labels,
// resampling (prediction, label) pairs. Resamples holding a single class are
// skipped. The interval is NaN-valued when the AUC itself is undefined.
func AUCCI(probs, labels []float64, confidenceLevel float64, seed int64) ConfidenceInterval {
	auc := metrics.ROCAUC(probs, labels)
	if math.IsNaN(auc) {
		return ConfidenceInterval{Lower: auc, Upper: auc, Mean: auc, ConfidenceLevel: confidenceLevel}
	}

	n := len(probs)
	rng := newRand(seed)
	boot := make([]float64, 0, DefaultBootstrapIterations)
	ps := make([]float64, n)
	ls := make([]float64, n)
	for i := 0; i < DefaultBootstrapIterations; i++ {
		for j := 0; j < n; j++ {
			k := rng.Intn(n)
			ps[j], ls[j] = probs[k], labels[k]
		}
		if v := metrics.ROCAUC(ps, ls); !math.IsNaN(v) {
			boot = append(boot, v)
		}
	}
	if len(boot) == 0 {
		return ConfidenceInterval{Lower: auc, Upper: auc, Mean: auc, ConfidenceLevel: confidenceLevel}
	}
	return percentile(boot, auc, confidenceLevel)
}

// percentile returns the interval of the percentile method over bootstrap statistics.
func percentile(boot []float64, m, confidenceLevel float64) ConfidenceInterval {
	sort.Float64s(boot)
	alpha := 1.0 - confidenceLevel
	return ConfidenceInterval{
		Lower:           stat.Quantile(alpha/2, stat.Empirical, boot, nil),
		Upper:           stat.Quantile(1-alpha/2, stat.Empirical, boot, nil),
		Mean:            m,
		ConfidenceLevel: confidenceLevel,
		NumBootstraps:   len(boot),
	}
}

func newRand(seed int64) *rand.Rand {
	if seed >= 0 {
		return rand.New(rand.NewSource(seed))
	}
	return rand.New(rand.NewSource(rand.Int63()))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	return stat.Mean(values, nil)
}
