package search

import (
	"fmt"
	"strings"
)

// Round is one successive-halving step: Trials configurations each trained up
// to epoch Epochs.
type Round struct {
	Trials int `json:"trials"`
	Epochs int `json:"epochs"`
}

// Bracket is a sequence of rounds with a shrinking pool and growing budget.
// Index is the bracket's aggressiveness; the highest index starts with the
// most trials and the smallest budget.
type Bracket struct {
	Index  int     `json:"bracket"`
	Rounds []Round `json:"rounds"`
}

// Schedule returns the bracket table for maxEpochs and factor, most aggressive
// bracket first. All arithmetic is integer so the table is exact.
//
// For maxEpochs=10 and factor=3:
//
//	bracket 2: 12 trials x 2 epochs, 4 x 4, 2 x 10
//	bracket 1:  6 x 4, 2 x 10
//	bracket 0:  4 x 10
func Schedule(maxEpochs, factor int) ([]Bracket, error) {
	if maxEpochs < 1 {
		return nil, fmt.Errorf("search: max epochs must be at least 1, got %d", maxEpochs)
	}
	if factor < 2 {
		return nil, fmt.Errorf("search: factor must be at least 2, got %d", factor)
	}

	// smallest k with factor^k >= maxEpochs
	kceil := 0
	for pow(factor, kceil) < maxEpochs {
		kceil++
	}
	end := 1 + kceil

	// largest s with factor^s <= maxEpochs
	top := 0
	for pow(factor, top+1) <= maxEpochs {
		top++
	}

	brackets := make([]Bracket, 0, top+1)
	for b := top; b >= 0; b-- {
		br := Bracket{Index: b}
		for r := 0; r <= b; r++ {
			scale := pow(factor, b-r)
			br.Rounds = append(br.Rounds, Round{
				Trials: ceilDiv(end*scale, b+1),
				Epochs: ceilDiv(maxEpochs, scale),
			})
		}
		brackets = append(brackets, br)
	}
	return brackets, nil
}

// TotalEpochs is the number of epochs a full run of the schedule trains when
// every trial resumes from its previous round.
func TotalEpochs(brackets []Bracket) int {
	total := 0
	for _, b := range brackets {
		prev := 0
		for _, r := range b.Rounds {
			total += r.Trials * (r.Epochs - prev)
			prev = r.Epochs
		}
	}
	return total
}

// FormatSchedule renders the bracket table one bracket per line.
func FormatSchedule(brackets []Bracket) string {
	var sb strings.Builder
	for _, b := range brackets {
		fmt.Fprintf(&sb, "bracket %d:", b.Index)
		for i, r := range b.Rounds {
			if i > 0 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, " %d x %d", r.Trials, r.Epochs)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func pow(base, exp int) int {
	out := 1
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
