package statistics

import (
	"math"
	"testing"
)

func TestBootstrapCI_EmptyScores(t *testing.T) {
	ci := BootstrapCIWithSeed(nil, 0.95, 1)
	if ci.Mean != 0.0 || ci.Lower != 0.0 || ci.Upper != 0.0 {
		t.Errorf("expected zero CI for empty input, got %+v", ci)
	}
	if ci.NumBootstraps != 0 {
		t.Errorf("expected 0 bootstraps for empty input, got %d", ci.NumBootstraps)
	}
}

func TestBootstrapCI_SingleValue(t *testing.T) {
	ci := BootstrapCIWithSeed([]float64{0.75}, 0.95, 1)
	if ci.Mean != 0.75 || ci.Lower != 0.75 || ci.Upper != 0.75 {
		t.Errorf("expected degenerate CI for single value, got %+v", ci)
	}
}

func TestBootstrapCI_IdenticalValues(t *testing.T) {
	ci := BootstrapCIWithSeed([]float64{0.5, 0.5, 0.5, 0.5}, 0.95, 42)
	if math.Abs(ci.Lower-0.5) > 1e-9 || math.Abs(ci.Upper-0.5) > 1e-9 {
		t.Errorf("expected CI [0.5, 0.5] for identical values, got [%f, %f]", ci.Lower, ci.Upper)
	}
}

func TestBootstrapCI_KnownDistribution(t *testing.T) {
	scores := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}
	ci := BootstrapCIWithSeed(scores, 0.95, 42)

	if ci.Mean < 0.54 || ci.Mean > 0.56 {
		t.Errorf("expected mean ~0.55, got %f", ci.Mean)
	}
	if ci.Lower >= ci.Mean {
		t.Errorf("lower bound %f should be < mean %f", ci.Lower, ci.Mean)
	}
	if ci.Upper <= ci.Mean {
		t.Errorf("upper bound %f should be > mean %f", ci.Upper, ci.Mean)
	}
	if ci.NumBootstraps != DefaultBootstrapIterations {
		t.Errorf("expected %d bootstraps, got %d", DefaultBootstrapIterations, ci.NumBootstraps)
	}
}

func TestBootstrapCI_Deterministic(t *testing.T) {
	scores := []float64{0.2, 0.4, 0.6, 0.8}
	ci1 := BootstrapCIWithSeed(scores, 0.95, 99)
	ci2 := BootstrapCIWithSeed(scores, 0.95, 99)

	if ci1 != ci2 {
		t.Errorf("same seed should produce identical CIs: %+v vs %+v", ci1, ci2)
	}
}

func TestBootstrapCI_DifferentConfidenceLevels(t *testing.T) {
	scores := []float64{0.1, 0.3, 0.5, 0.7, 0.9, 0.2, 0.4, 0.6, 0.8, 1.0}
	ci90 := BootstrapCIWithSeed(scores, 0.90, 42)
	ci99 := BootstrapCIWithSeed(scores, 0.99, 42)

	if ci99.Upper-ci99.Lower <= ci90.Upper-ci90.Lower {
		t.Errorf("99%% CI should be wider than 90%%: 90%%=%+v, 99%%=%+v", ci90, ci99)
	}
}

func TestAccuracyCI(t *testing.T) {
	probs := []float64{0.9, 0.8, 0.2, 0.1, 0.7, 0.4, 0.6, 0.3}
	labels := []float64{1, 1, 0, 0, 0, 0, 1, 1}
	ci := AccuracyCI(probs, labels, 0.95, 17)

	if ci.Mean != 0.75 {
		t.Errorf("expected accuracy 0.75, got %f", ci.Mean)
	}
	if ci.Lower > ci.Mean || ci.Upper < ci.Mean {
		t.Errorf("CI [%f, %f] should contain accuracy %f", ci.Lower, ci.Upper, ci.Mean)
	}
	if ci.Upper > 1 || ci.Lower < 0 {
		t.Errorf("accuracy CI out of [0, 1]: %+v", ci)
	}
}

func TestAUCCI(t *testing.T) {
	probs := []float64{0.1, 0.4, 0.35, 0.8, 0.2, 0.7, 0.65, 0.3}
	labels := []float64{0, 0, 1, 1, 0, 1, 1, 0}
	ci := AUCCI(probs, labels, 0.95, 17)

	if ci.Lower > ci.Mean || ci.Upper < ci.Mean {
		t.Errorf("CI [%f, %f] should contain AUC %f", ci.Lower, ci.Upper, ci.Mean)
	}
	if ci.Upper > 1 || ci.Lower < 0 {
		t.Errorf("AUC CI out of [0, 1]: %+v", ci)
	}
	if ci.NumBootstraps == 0 || ci.NumBootstraps > DefaultBootstrapIterations {
		t.Errorf("unexpected bootstrap count %d", ci.NumBootstraps)
	}
}

func TestAUCCI_Undefined(t *testing.T) {
	ci := AUCCI([]float64{0.2, 0.8}, []float64{1, 1}, 0.95, 17)
	if !math.IsNaN(ci.Mean) || !math.IsNaN(ci.Lower) {
		t.Errorf("expected NaN interval for a single class, got %+v", ci)
	}
}
