package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// Epsilon clips probabilities away from 0 and 1 before taking logarithms.
const Epsilon = 1e-7

// Threshold is the probability above which a prediction counts as positive.
const Threshold = 0.5

// ROCAUC returns the area under the ROC curve of scores against binary labels.
// It returns NaN when the lengths differ, when a score is NaN, or when only one
// class is present.
func ROCAUC(scores, labels []float64) float64 {
	n := len(scores)
	if n == 0 || n != len(labels) {
		return math.NaN()
	}

	idx := make([]int, n)
	for i := range idx {
		if math.IsNaN(scores[i]) {
			return math.NaN()
		}
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] < scores[idx[b]] })

	y := make([]float64, n)
	classes := make([]bool, n)
	var pos int
	for i, j := range idx {
		y[i] = scores[j]
		classes[i] = labels[j] >= Threshold
		if classes[i] {
			pos++
		}
	}
	if pos == 0 || pos == n {
		return math.NaN()
	}

	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}

// Accuracy is the fraction of predictions on the right side of Threshold.
func Accuracy(probs, labels []float64) float64 {
	if len(probs) == 0 {
		return 0
	}
	correct := 0
	for i, p := range probs {
		if (p > Threshold) == (labels[i] >= Threshold) {
			correct++
		}
	}
	return float64(correct) / float64(len(probs))
}

// Correct returns 1 for every prediction on the right side of Threshold and 0 otherwise.
func Correct(probs, labels []float64) []float64 {
	out := make([]float64, len(probs))
	for i, p := range probs {
		if (p > Threshold) == (labels[i] >= Threshold) {
			out[i] = 1
		}
	}
	return out
}

// BinaryCrossEntropy is the mean of the per-example weighted log loss.
// weights may be nil for unweighted loss.
func BinaryCrossEntropy(probs, labels, weights []float64) float64 {
	if len(probs) == 0 {
		return 0
	}
	sum := 0.0
	for i, p := range probs {
		p = math.Min(math.Max(p, Epsilon), 1-Epsilon)
		l := -(labels[i]*math.Log(p) + (1-labels[i])*math.Log(1-p))
		if weights != nil {
			l *= weights[i]
		}
		sum += l
	}
	return sum / float64(len(probs))
}

// Classification bundles the metrics reported for a binary classifier.
type Classification struct {
	Loss     float64 `json:"loss"`
	Accuracy float64 `json:"accuracy"`
	AUC      float64 `json:"auc"`
}

// Classify computes loss, accuracy and AUC of probabilities against labels.
func Classify(probs, labels []float64) Classification {
	return Classification{
		Loss:     BinaryCrossEntropy(probs, labels, nil),
		Accuracy: Accuracy(probs, labels),
		AUC:      ROCAUC(probs, labels),
	}
}
