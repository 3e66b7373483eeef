// Package modelstore persists a trained ensemble as a model directory: a
// model.json manifest plus one compressed weight file per member.
package modelstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spboyer/playground/internal/cache"
	"github.com/spboyer/playground/internal/dataset"
	"github.com/spboyer/playground/internal/ensemble"
	"github.com/spboyer/playground/internal/hyperparams"
	"github.com/spboyer/playground/internal/network"
	"github.com/spboyer/playground/internal/validation"
)

const (
	// ManifestFile is the name of the manifest inside a model directory.
	ManifestFile = "model.json"

	// Format and Version identify the manifest layout.
	Format  = "playground-ensemble"
	Version = 1
)

// MemberEntry points at the weights of one ensemble member.
type MemberEntry struct {
	File string `json:"file"`
	Seed int64  `json:"seed"`
}

// SearchSummary records how the hyperparameters were found.
type SearchSummary struct {
	BestScore *float64 `json:"best_score"`
	Trials    int      `json:"trials"`
	Runs      int      `json:"runs"`
}

// Manifest describes a persisted ensemble.
type Manifest struct {
	Format          string         `json:"format"`
	Version         int            `json:"version"`
	CreatedAt       string         `json:"created_at,omitempty"`
	LabelColumn     string         `json:"label_column,omitempty"`
	Features        []string       `json:"features"`
	Hyperparameters map[string]any `json:"hyperparameters"`
	BestEpoch       int            `json:"best_epoch"`
	Members         []MemberEntry  `json:"members"`
	DataFingerprint string         `json:"data_fingerprint,omitempty"`
	Search          *SearchSummary `json:"search,omitempty"`
}

// Info is the training context stored next to the weights.
type Info struct {
	LabelColumn string
	BestEpoch   int

	// DataFiles are fingerprinted into the manifest when set.
	DataFiles []string

	// SearchScore, Trials and Runs summarize the search; Trials == 0 omits them.
	SearchScore float64
	Trials      int
	Runs        int
}

// Save writes model into dir, creating it if needed. Every member must be a
// *network.Model and all members must share one configuration.
func Save(dir string, model *ensemble.Model, info Info) error {
	members := model.Members()
	nets := make([]*network.Model, len(members))
	for i, m := range members {
		n, ok := m.(*network.Model)
		if !ok {
			return fmt.Errorf("modelstore: member %d is %T, not a network model", i, m)
		}
		if i > 0 && n.Config() != nets[0].Config() {
			return fmt.Errorf("modelstore: member %d has configuration %s, want %s", i, n.Config(), nets[0].Config())
		}
		nets[i] = n
	}
	if info.BestEpoch < 1 {
		return fmt.Errorf("modelstore: best epoch must be at least 1, got %d", info.BestEpoch)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("modelstore: %w", err)
	}

	man := Manifest{
		Format:          Format,
		Version:         Version,
		CreatedAt:       time.Now().UTC().Format(time.RFC3339),
		LabelColumn:     info.LabelColumn,
		Features:        model.Features().Names(),
		Hyperparameters: nets[0].Config().Values(),
		BestEpoch:       info.BestEpoch,
	}
	if len(info.DataFiles) > 0 {
		fp, err := cache.Fingerprint(info.DataFiles...)
		if err != nil {
			return fmt.Errorf("modelstore: fingerprinting data: %w", err)
		}
		man.DataFingerprint = fp
	}
	if info.Trials > 0 {
		s := &SearchSummary{Trials: info.Trials, Runs: info.Runs}
		if !math.IsNaN(info.SearchScore) {
			score := info.SearchScore
			s.BestScore = &score
		}
		man.Search = s
	}

	for i, n := range nets {
		entry := MemberEntry{File: memberFile(i), Seed: n.Seed()}
		if err := network.SaveWeights(filepath.Join(dir, entry.File), n.Snapshot()); err != nil {
			return fmt.Errorf("modelstore: saving member %d: %w", i, err)
		}
		man.Members = append(man.Members, entry)
	}

	data, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return fmt.Errorf("modelstore: encoding manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("modelstore: %w", err)
	}
	return nil
}

// Load reads the model directory written by Save and rebuilds the ensemble.
func Load(dir string) (*ensemble.Model, *Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, nil, fmt.Errorf("modelstore: %w", err)
	}
	if errs := validation.ValidateManifestBytes(data); len(errs) > 0 {
		return nil, nil, fmt.Errorf("modelstore: invalid manifest:\n  %s", strings.Join(errs, "\n  "))
	}

	var man Manifest
	if err := json.Unmarshal(data, &man); err != nil {
		return nil, nil, fmt.Errorf("modelstore: decoding manifest: %w", err)
	}
	cfg, err := hyperparams.Decode(man.Hyperparameters)
	if err != nil {
		return nil, nil, fmt.Errorf("modelstore: %w", err)
	}
	features, err := dataset.FeaturesOf(man.Features...)
	if err != nil {
		return nil, nil, fmt.Errorf("modelstore: %w", err)
	}

	members := make([]ensemble.Member, 0, len(man.Members))
	for i, entry := range man.Members {
		n, err := network.Build(cfg, features, entry.Seed)
		if err != nil {
			return nil, nil, fmt.Errorf("modelstore: member %d: %w", i, err)
		}
		w, err := network.LoadWeights(filepath.Join(dir, entry.File))
		if err != nil {
			return nil, nil, fmt.Errorf("modelstore: member %d: %w", i, err)
		}
		if err := n.Restore(w); err != nil {
			return nil, nil, fmt.Errorf("modelstore: member %d: %w", i, err)
		}
		members = append(members, n)
	}

	model, err := ensemble.Wrap(features, members)
	if err != nil {
		return nil, nil, err
	}
	return model, &man, nil
}

// Files lists the manifest and member files of the model directory dir.
func Files(dir string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("modelstore: %w", err)
	}
	var man Manifest
	if err := json.Unmarshal(data, &man); err != nil {
		return nil, fmt.Errorf("modelstore: decoding manifest: %w", err)
	}
	if len(man.Members) == 0 {
		return nil, errors.New("modelstore: manifest lists no members")
	}
	files := []string{ManifestFile}
	for _, m := range man.Members {
		files = append(files, m.File)
	}
	return files, nil
}

func memberFile(i int) string {
	return fmt.Sprintf("member-%d.weights.zst", i)
}
