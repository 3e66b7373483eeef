package reporting

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spboyer/playground/internal/training"
)

// InterpretAUC returns a plain-language label for a ROC-AUC value.
func InterpretAUC(auc float64) string {
	switch {
	case math.IsNaN(auc):
		return "Undefined (single class)"
	case auc >= 0.9:
		return "Excellent (>=0.90)"
	case auc >= 0.8:
		return "Good (0.80-0.90)"
	case auc >= 0.7:
		return "Fair (0.70-0.80)"
	case auc > 0.5:
		return "Weak (0.50-0.70)"
	default:
		return "No better than chance (<=0.50)"
	}
}

// InterpretAccuracy explains accuracy relative to its bootstrap interval.
func InterpretAccuracy(r training.Report) string {
	ci := r.AccuracyCI
	return fmt.Sprintf("%.1f%% of %d examples classified correctly (%.0f%% CI %.1f%%-%.1f%%)",
		r.Accuracy*100, r.Examples, ci.ConfidenceLevel*100, ci.Lower*100, ci.Upper*100)
}

// FormatReport renders an evaluation as an aligned table.
func FormatReport(r training.Report) string {
	rows := [][2]string{
		{"Loss", fmt.Sprintf("%.3f", r.Loss)},
		{"Accuracy", fmt.Sprintf("%.3f", r.Accuracy)},
		{"AUC", fmt.Sprintf("%.3f", r.AUC)},
		{"ROC AUC", fmt.Sprintf("%.3f — %s", r.ROCAUC, InterpretAUC(r.ROCAUC))},
		{"ROC AUC CI", interval(r.AUCCI.Lower, r.AUCCI.Upper, r.AUCCI.ConfidenceLevel)},
		{"Accuracy CI", interval(r.AccuracyCI.Lower, r.AccuracyCI.Upper, r.AccuracyCI.ConfidenceLevel)},
		{"Examples", fmt.Sprintf("%d", r.Examples)},
	}
	return table(rows)
}

// FormatSummaryReport produces a full plain-language report of a training run.
func FormatSummaryReport(s *training.Summary) string {
	var b strings.Builder

	b.WriteString("=== Training Summary ===\n\n")
	b.WriteString(table([][2]string{
		{"Features", strings.Join(s.Features, ", ")},
		{"Hyperparameters", s.Best.String()},
		{"Search", fmt.Sprintf("%d trials, %d runs, best val AUC %.3f", s.Trials, s.Runs, s.BestScore)},
		{"Best epoch", fmt.Sprintf("%d", s.BestEpoch)},
		{"Members", fmt.Sprintf("%d", s.Members)},
		{"Model", s.ModelDir},
		{"Published", fmt.Sprintf("%t", s.Published)},
		{"Duration", s.Duration.Round(time.Millisecond).String()},
	}))

	b.WriteString("\n=== Evaluation ===\n\n")
	b.WriteString(FormatReport(s.Evaluation))
	b.WriteString("\n")
	b.WriteString(InterpretAccuracy(s.Evaluation))
	b.WriteString("\n")
	return b.String()
}

func interval(lo, hi, level float64) string {
	if math.IsNaN(lo) || math.IsNaN(hi) {
		return "n/a"
	}
	return fmt.Sprintf("[%.3f, %.3f] at %.0f%%", lo, hi, level*100)
}

// table left-aligns the labels by display width.
func table(rows [][2]string) string {
	width := 0
	for _, r := range rows {
		width = max(width, runewidth.StringWidth(r[0]))
	}
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(padRight(r[0]+":", width+1))
		b.WriteString("  ")
		b.WriteString(r[1])
		b.WriteString("\n")
	}
	return b.String()
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}
