// Package search runs a Hyperband search over the hyperparameter space.
//
// Brackets run one after another, most aggressive first. Inside a bracket the
// first round samples fresh configurations; every later round resumes the
// best surviving trials from their previous checkpoint with a larger epoch
// budget. A run is scored by the highest validation AUC it reached.
package search

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"slices"

	"github.com/spboyer/playground/internal/cache"
	"github.com/spboyer/playground/internal/dataset"
	"github.com/spboyer/playground/internal/hyperparams"
	"github.com/spboyer/playground/internal/network"
	"github.com/spboyer/playground/internal/session"
)

// Defaults for Options.
const (
	DefaultMaxEpochs  = 10
	DefaultFactor     = 3
	DefaultSeed       = 17
	DefaultMaxRetries = 100

	DefaultReduceLRFactor        = 0.1
	DefaultReduceLRPatience      = 1
	DefaultReduceLRMinDelta      = 1e-4
	DefaultEarlyStoppingPatience = 3

	workspacePrefix = "playground-search-"
)

// ErrNoTrials is returned when the search could not run a single trial.
var ErrNoTrials = errors.New("search: no trials were run")

// Callbacks holds the settings of the training callbacks attached to every run.
type Callbacks struct {
	ReduceLRFactor        float64
	ReduceLRPatience      int
	ReduceLRMinDelta      float64
	EarlyStoppingPatience int
}

// DefaultCallbacks returns the callback settings used by search and retrain.
func DefaultCallbacks() Callbacks {
	return Callbacks{
		ReduceLRFactor:        DefaultReduceLRFactor,
		ReduceLRPatience:      DefaultReduceLRPatience,
		ReduceLRMinDelta:      DefaultReduceLRMinDelta,
		EarlyStoppingPatience: DefaultEarlyStoppingPatience,
	}
}

// Build returns fresh callback instances.
func (c Callbacks) Build() []network.Callback {
	return []network.Callback{
		network.NewReduceLROnPlateau(c.ReduceLRFactor, c.ReduceLRPatience, c.ReduceLRMinDelta),
		network.NewEarlyStopping(c.EarlyStoppingPatience),
	}
}

// Options configures a Controller.
type Options struct {
	MaxEpochs  int
	Factor     int
	Seed       int64
	MaxRetries int
	Space      hyperparams.Space

	// WorkspaceDir is the parent of the temporary trial workspace. Empty
	// means the OS temp dir.
	WorkspaceDir string

	Callbacks Callbacks

	// Trial replaces model training. Nil trains a network per run.
	Trial TrialFunc

	// Events receives one trial_run event per run. Nil disables it.
	Events session.Logger
}

// DefaultOptions returns the options the pipeline uses.
func DefaultOptions() Options {
	return Options{
		MaxEpochs:  DefaultMaxEpochs,
		Factor:     DefaultFactor,
		Seed:       DefaultSeed,
		MaxRetries: DefaultMaxRetries,
		Space:      hyperparams.DefaultSpace(),
		Callbacks:  DefaultCallbacks(),
	}
}

// TrialRun describes one training run of a trial.
type TrialRun struct {
	TrialID string
	Bracket int
	Round   int
	Config  hyperparams.Config
	Seed    int64

	// InitialEpoch is the epoch the run resumes from; Epochs the last epoch to train.
	InitialEpoch int
	Epochs       int
}

// TrialResult is the outcome of one run.
type TrialResult struct {
	// Score is the objective (maximum validation AUC over the run). NaN
	// ranks below every number.
	Score float64

	// Checkpoint holds the weights at the best-scoring epoch. Later rounds
	// resume from it. It may be nil.
	Checkpoint *network.Weights
}

// TrialFunc trains one run. resume is the previous round's checkpoint or nil
// for a first round.
type TrialFunc func(run TrialRun, resume *network.Weights) (TrialResult, error)

// RoundScore is the score one trial reached in one round.
type RoundScore struct {
	Round  int     `json:"round"`
	Epochs int     `json:"epochs"`
	Score  float64 `json:"score"`
}

// Trial is the record of one sampled configuration.
type Trial struct {
	ID      string             `json:"trial_id"`
	Bracket int                `json:"bracket"`
	Config  hyperparams.Config `json:"hyperparameters"`
	Rounds  []RoundScore       `json:"rounds"`
}

// Best returns the highest round score of the trial, NaN if none is a number.
func (t Trial) Best() float64 {
	best := math.NaN()
	for _, r := range t.Rounds {
		if better(r.Score, best) {
			best = r.Score
		}
	}
	return best
}

// Result is the outcome of Search.
type Result struct {
	Best      hyperparams.Config
	BestScore float64
	BestTrial string
	Trials    []Trial
	Runs      int
}

// Controller runs the search.
type Controller struct {
	opts Options
}

// New validates opts and returns a controller.
func New(opts Options) (*Controller, error) {
	if _, err := Schedule(opts.MaxEpochs, opts.Factor); err != nil {
		return nil, err
	}
	if opts.MaxRetries < 1 {
		return nil, fmt.Errorf("search: max retries must be at least 1, got %d", opts.MaxRetries)
	}
	if len(opts.Space.FirstLayerUnits) == 0 || len(opts.Space.Activations) == 0 || len(opts.Space.Regularizations) == 0 {
		return nil, fmt.Errorf("search: hyperparameter space has an empty dimension")
	}
	return &Controller{opts: opts}, nil
}

// Search explores the space and returns the best configuration. The trial
// workspace is removed before Search returns, on every path.
func (c *Controller) Search(train, valid *dataset.Dataset, features dataset.FeatureSet, weights dataset.ClassWeights) (*Result, error) {
	trial := c.opts.Trial
	if trial == nil {
		trial = FitTrial(train, valid, features, weights, c.opts.Callbacks)
	}

	brackets, err := Schedule(c.opts.MaxEpochs, c.opts.Factor)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(c.opts.WorkspaceDir, workspacePrefix)
	if err != nil {
		return nil, fmt.Errorf("search: creating workspace: %w", err)
	}
	ws := cache.New(dir)
	defer func() {
		if err := ws.Clear(); err != nil {
			slog.Warn("clearing search workspace", "dir", dir, "error", err)
			_ = os.RemoveAll(dir)
		}
	}()
	slog.Debug("search workspace created", "dir", dir)

	s := &state{
		opts:  c.opts,
		trial: trial,
		ws:    ws,
		rng:   rand.New(rand.NewSource(c.opts.Seed)),
		seen:  make(map[string]bool),
	}
	for _, b := range brackets {
		if err := s.runBracket(b); err != nil {
			return nil, err
		}
	}
	return s.result()
}

// state is the mutable state of one Search call.
type state struct {
	opts  Options
	trial TrialFunc
	ws    *cache.Cache
	rng   *rand.Rand
	seen  map[string]bool

	ids  []string
	runs int

	best      hyperparams.Config
	bestScore float64
	bestTrial string
}

// active is a trial taking part in the current bracket.
type active struct {
	record Trial
	score  float64
}

func (s *state) runBracket(b Bracket) error {
	pool := s.sample(b)
	if len(pool) == 0 {
		slog.Debug("search space exhausted", "bracket", b.Index)
		return nil
	}

	prev := 0
	for r, round := range b.Rounds {
		slog.Debug("search round", "bracket", b.Index, "round", r, "trials", len(pool), "epochs", round.Epochs)

		for i := range pool {
			if err := s.runTrial(&pool[i], b.Index, r, prev, round.Epochs); err != nil {
				return err
			}
		}

		if r+1 < len(b.Rounds) {
			keep := min(b.Rounds[r+1].Trials, len(pool))
			slices.SortStableFunc(pool, func(x, y active) int {
				switch {
				case better(x.score, y.score):
					return -1
				case better(y.score, x.score):
					return 1
				}
				return 0
			})
			pool = pool[:keep]
		}
		prev = round.Epochs
	}
	return nil
}

// sample draws up to the first round's size of configurations never seen
// before. Sampling stops early once MaxRetries draws in a row are duplicates.
func (s *state) sample(b Bracket) []active {
	want := b.Rounds[0].Trials
	pool := make([]active, 0, want)
	for len(pool) < want {
		cfg, ok := s.draw()
		if !ok {
			break
		}
		id := fmt.Sprintf("trial-%04d", len(s.ids))
		s.ids = append(s.ids, id)
		pool = append(pool, active{
			record: Trial{ID: id, Bracket: b.Index, Config: cfg},
			score:  math.NaN(),
		})
	}
	return pool
}

func (s *state) draw() (hyperparams.Config, bool) {
	for i := 0; i < s.opts.MaxRetries; i++ {
		cfg := s.opts.Space.Sample(s.rng)
		key := cfg.Key()
		if !s.seen[key] {
			s.seen[key] = true
			return cfg, true
		}
	}
	return hyperparams.Config{}, false
}

func (s *state) runTrial(a *active, bracket, round, initial, epochs int) error {
	run := TrialRun{
		TrialID:      a.record.ID,
		Bracket:      bracket,
		Round:        round,
		Config:       a.record.Config,
		Seed:         s.opts.Seed + int64(s.runs),
		InitialEpoch: initial,
		Epochs:       epochs,
	}

	var resume *network.Weights
	if round > 0 {
		w, err := s.loadCheckpoint(a.record.ID, round-1)
		if err != nil {
			return err
		}
		resume = w
	}

	res, err := s.trial(run, resume)
	if err != nil {
		return fmt.Errorf("search: %s round %d: %w", a.record.ID, round, err)
	}
	s.runs++

	if res.Checkpoint != nil {
		if err := s.saveCheckpoint(a.record.ID, round, res.Checkpoint); err != nil {
			return err
		}
	}

	a.score = res.Score
	a.record.Rounds = append(a.record.Rounds, RoundScore{Round: round, Epochs: epochs, Score: res.Score})
	if err := s.ws.Put(a.record.ID, newTrialRecord(a.record)); err != nil {
		return fmt.Errorf("search: recording %s: %w", a.record.ID, err)
	}

	slog.Debug("trial complete",
		"trial", a.record.ID,
		"bracket", bracket,
		"round", round,
		"epochs", epochs,
		"score", res.Score,
		"hyperparameters", a.record.Config.String())
	session.Emit(s.opts.Events, session.EventTrialRun,
		session.TrialRunData(a.record.ID, bracket, round, epochs, res.Score, a.record.Config.String()))

	if s.runs == 1 || better(res.Score, s.bestScore) {
		s.best = a.record.Config
		s.bestScore = res.Score
		s.bestTrial = a.record.ID
	}
	return nil
}

func checkpointKey(trialID string, round int) string {
	return cache.Key(trialID, "checkpoint", fmt.Sprint(round))
}

func (s *state) saveCheckpoint(trialID string, round int, w *network.Weights) error {
	f, err := s.ws.Create(checkpointKey(trialID, round))
	if err != nil {
		return fmt.Errorf("search: checkpoint %s: %w", trialID, err)
	}
	if err := network.EncodeWeights(f, w); err != nil {
		_ = f.Close()
		return fmt.Errorf("search: checkpoint %s: %w", trialID, err)
	}
	return f.Close()
}

// loadCheckpoint returns the checkpoint of the given round, or nil when the
// run produced none.
func (s *state) loadCheckpoint(trialID string, round int) (*network.Weights, error) {
	f, err := s.ws.Open(checkpointKey(trialID, round))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("search: resuming %s: %w", trialID, err)
	}
	defer f.Close() //nolint:errcheck
	w, err := network.DecodeWeights(f)
	if err != nil {
		return nil, fmt.Errorf("search: resuming %s: %w", trialID, err)
	}
	return w, nil
}

// result reads the trial records back from the workspace.
func (s *state) result() (*Result, error) {
	if s.runs == 0 {
		return nil, ErrNoTrials
	}
	res := &Result{
		Best:      s.best,
		BestScore: s.bestScore,
		BestTrial: s.bestTrial,
		Runs:      s.runs,
	}
	for _, id := range s.ids {
		var rec trialRecord
		if !s.ws.Get(id, &rec) {
			continue
		}
		t, err := rec.trial()
		if err != nil {
			return nil, fmt.Errorf("search: reading %s: %w", id, err)
		}
		res.Trials = append(res.Trials, t)
	}
	slices.SortStableFunc(res.Trials, func(x, y Trial) int { return cmp.Compare(x.ID, y.ID) })
	return res, nil
}

// better reports whether a ranks above b. NaN ranks below every number.
func better(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	return math.IsNaN(b) || a > b
}

// trialRecord is the on-disk form of a Trial. JSON has no NaN, so missing
// scores are null.
type trialRecord struct {
	ID              string         `json:"trial_id"`
	Bracket         int            `json:"bracket"`
	Hyperparameters map[string]any `json:"hyperparameters"`
	Rounds          []roundRecord  `json:"rounds"`
}

type roundRecord struct {
	Round  int      `json:"round"`
	Epochs int      `json:"epochs"`
	Score  *float64 `json:"score"`
}

func newTrialRecord(t Trial) trialRecord {
	rec := trialRecord{
		ID:              t.ID,
		Bracket:         t.Bracket,
		Hyperparameters: t.Config.Values(),
	}
	for _, r := range t.Rounds {
		rr := roundRecord{Round: r.Round, Epochs: r.Epochs}
		if !math.IsNaN(r.Score) && !math.IsInf(r.Score, 0) {
			score := r.Score
			rr.Score = &score
		}
		rec.Rounds = append(rec.Rounds, rr)
	}
	return rec
}

func (r trialRecord) trial() (Trial, error) {
	cfg, err := hyperparams.Decode(r.Hyperparameters)
	if err != nil {
		return Trial{}, err
	}
	t := Trial{ID: r.ID, Bracket: r.Bracket, Config: cfg}
	for _, rr := range r.Rounds {
		score := math.NaN()
		if rr.Score != nil {
			score = *rr.Score
		}
		t.Rounds = append(t.Rounds, RoundScore{Round: rr.Round, Epochs: rr.Epochs, Score: score})
	}
	return t, nil
}
