// Package projectconfig provides the ProjectConfig struct and loader for
// .playground.yaml project-level configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spboyer/playground/internal/validation"
	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file looked up by Load.
const FileName = ".playground.yaml"

// Default values for project configuration. These are the single source of
// truth: New() references them and no other code should duplicate them.
const (
	DefaultLabelColumn        = "classification_target"
	DefaultIDColumn           = "id"
	DefaultBatchSize          = 64
	DefaultShuffleBuffer      = 1000
	DefaultUnionShuffleBuffer = 2000
	DefaultSeed               = 17

	DefaultMaxEpochs  = 10
	DefaultFactor     = 3
	DefaultMaxRetries = 100

	DefaultReduceLRFactor        = 0.1
	DefaultReduceLRPatience      = 1
	DefaultReduceLRMinDelta      = 1e-4
	DefaultEarlyStoppingPatience = 3

	DefaultMembers = 3
)

// DataConfig holds dataset settings.
type DataConfig struct {
	LabelColumn        string `yaml:"label_column,omitempty"`
	IDColumn           string `yaml:"id_column,omitempty"`
	BatchSize          int    `yaml:"batch_size,omitempty"`
	ShuffleBuffer      int    `yaml:"shuffle_buffer,omitempty"`
	UnionShuffleBuffer int    `yaml:"union_shuffle_buffer,omitempty"`
	Seed               *int64 `yaml:"seed,omitempty"`
}

// SearchConfig holds hyperparameter search settings.
type SearchConfig struct {
	MaxEpochs    int    `yaml:"max_epochs,omitempty"`
	Factor       int    `yaml:"factor,omitempty"`
	Seed         *int64 `yaml:"seed,omitempty"`
	MaxRetries   int    `yaml:"max_retries,omitempty"`
	WorkspaceDir string `yaml:"workspace_dir,omitempty"`
}

// CallbacksConfig holds the learning-rate and early-stopping settings.
type CallbacksConfig struct {
	ReduceLRFactor        float64 `yaml:"reduce_lr_factor,omitempty"`
	ReduceLRPatience      int     `yaml:"reduce_lr_patience,omitempty"`
	ReduceLRMinDelta      float64 `yaml:"reduce_lr_min_delta,omitempty"`
	EarlyStoppingPatience int     `yaml:"early_stopping_patience,omitempty"`
}

// EnsembleConfig holds ensemble training settings.
type EnsembleConfig struct {
	Members int    `yaml:"members,omitempty"`
	Seed    *int64 `yaml:"seed,omitempty"`
}

// BlobConfig holds the optional Azure Blob Storage publish target. An empty
// AccountURL disables publishing.
type BlobConfig struct {
	AccountURL string `yaml:"account_url,omitempty"`
	Container  string `yaml:"container,omitempty"`
	Prefix     string `yaml:"prefix,omitempty"`
}

// StorageConfig holds model storage settings.
type StorageConfig struct {
	Blob BlobConfig `yaml:"blob,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .playground.yaml.
type ProjectConfig struct {
	Data      DataConfig      `yaml:"data,omitempty"`
	Search    SearchConfig    `yaml:"search,omitempty"`
	Callbacks CallbacksConfig `yaml:"callbacks,omitempty"`
	Ensemble  EnsembleConfig  `yaml:"ensemble,omitempty"`
	Storage   StorageConfig   `yaml:"storage,omitempty"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Data: DataConfig{
			LabelColumn:        DefaultLabelColumn,
			IDColumn:           DefaultIDColumn,
			BatchSize:          DefaultBatchSize,
			ShuffleBuffer:      DefaultShuffleBuffer,
			UnionShuffleBuffer: DefaultUnionShuffleBuffer,
			Seed:               int64Ptr(DefaultSeed),
		},
		Search: SearchConfig{
			MaxEpochs:  DefaultMaxEpochs,
			Factor:     DefaultFactor,
			Seed:       int64Ptr(DefaultSeed),
			MaxRetries: DefaultMaxRetries,
		},
		Callbacks: CallbacksConfig{
			ReduceLRFactor:        DefaultReduceLRFactor,
			ReduceLRPatience:      DefaultReduceLRPatience,
			ReduceLRMinDelta:      DefaultReduceLRMinDelta,
			EarlyStoppingPatience: DefaultEarlyStoppingPatience,
		},
		Ensemble: EnsembleConfig{
			Members: DefaultMembers,
			Seed:    int64Ptr(DefaultSeed),
		},
	}
}

// Load finds .playground.yaml by walking up from startDir (max 10 levels),
// validates it against the config schema, unmarshals it, and fills in
// missing fields with defaults.
// If no config file is found, returns defaults with a nil error.
// Real I/O errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	data, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil // no file found, use defaults
		}
		return nil, fmt.Errorf("loading %s: %w", FileName, err)
	}

	if errs := validation.ValidateConfigBytes(data); len(errs) > 0 {
		return nil, fmt.Errorf("invalid %s:\n  %s", FileName, strings.Join(errs, "\n  "))
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}

	// Merge file values onto defaults.
	mergeConfig(cfg, &fileCfg)
	return cfg, nil
}

// findConfigFile walks up from dir looking for .playground.yaml (max 10 levels).
// Returns os.ErrNotExist if no config file is found. Propagates real I/O
// errors (e.g. permission denied) instead of silently swallowing them.
func findConfigFile(dir string) ([]byte, error) {
	// Convert to absolute path so filepath.Dir(".") walks correctly.
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, FileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return nil, os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	// Data
	if src.Data.LabelColumn != "" {
		dst.Data.LabelColumn = src.Data.LabelColumn
	}
	if src.Data.IDColumn != "" {
		dst.Data.IDColumn = src.Data.IDColumn
	}
	if src.Data.BatchSize != 0 {
		dst.Data.BatchSize = src.Data.BatchSize
	}
	if src.Data.ShuffleBuffer != 0 {
		dst.Data.ShuffleBuffer = src.Data.ShuffleBuffer
	}
	if src.Data.UnionShuffleBuffer != 0 {
		dst.Data.UnionShuffleBuffer = src.Data.UnionShuffleBuffer
	}
	if src.Data.Seed != nil {
		dst.Data.Seed = src.Data.Seed
	}

	// Search
	if src.Search.MaxEpochs != 0 {
		dst.Search.MaxEpochs = src.Search.MaxEpochs
	}
	if src.Search.Factor != 0 {
		dst.Search.Factor = src.Search.Factor
	}
	if src.Search.Seed != nil {
		dst.Search.Seed = src.Search.Seed
	}
	if src.Search.MaxRetries != 0 {
		dst.Search.MaxRetries = src.Search.MaxRetries
	}
	if src.Search.WorkspaceDir != "" {
		dst.Search.WorkspaceDir = src.Search.WorkspaceDir
	}

	// Callbacks
	if src.Callbacks.ReduceLRFactor != 0 {
		dst.Callbacks.ReduceLRFactor = src.Callbacks.ReduceLRFactor
	}
	if src.Callbacks.ReduceLRPatience != 0 {
		dst.Callbacks.ReduceLRPatience = src.Callbacks.ReduceLRPatience
	}
	if src.Callbacks.ReduceLRMinDelta != 0 {
		dst.Callbacks.ReduceLRMinDelta = src.Callbacks.ReduceLRMinDelta
	}
	if src.Callbacks.EarlyStoppingPatience != 0 {
		dst.Callbacks.EarlyStoppingPatience = src.Callbacks.EarlyStoppingPatience
	}

	// Ensemble
	if src.Ensemble.Members != 0 {
		dst.Ensemble.Members = src.Ensemble.Members
	}
	if src.Ensemble.Seed != nil {
		dst.Ensemble.Seed = src.Ensemble.Seed
	}

	// Storage
	if src.Storage.Blob.AccountURL != "" {
		dst.Storage.Blob.AccountURL = src.Storage.Blob.AccountURL
	}
	if src.Storage.Blob.Container != "" {
		dst.Storage.Blob.Container = src.Storage.Blob.Container
	}
	if src.Storage.Blob.Prefix != "" {
		dst.Storage.Blob.Prefix = src.Storage.Blob.Prefix
	}
}

func int64Ptr(v int64) *int64 {
	return &v
}
