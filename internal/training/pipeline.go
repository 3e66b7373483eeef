package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spboyer/playground/internal/compute"
	"github.com/spboyer/playground/internal/dataset"
	"github.com/spboyer/playground/internal/ensemble"
	"github.com/spboyer/playground/internal/hyperparams"
	"github.com/spboyer/playground/internal/metrics"
	"github.com/spboyer/playground/internal/modelstore"
	"github.com/spboyer/playground/internal/network"
	"github.com/spboyer/playground/internal/projectconfig"
	"github.com/spboyer/playground/internal/search"
	"github.com/spboyer/playground/internal/session"
	"github.com/spboyer/playground/internal/statistics"
	"golang.org/x/sync/errgroup"
)

// ConfidenceLevel is the level of the bootstrap intervals reported by Evaluate.
const ConfidenceLevel = 0.95

// Publisher uploads a saved model directory somewhere else.
type Publisher interface {
	Publish(ctx context.Context, dir string) error
}

// Config holds every setting of a pipeline run.
type Config struct {
	LabelColumn string
	// IDColumn is dropped from the features. Empty keeps every column.
	IDColumn string

	BatchSize          int
	ShuffleBuffer      int
	UnionShuffleBuffer int
	DataSeed           int64

	Search search.Options

	Members    int
	MemberSeed int64

	// Publisher, when set, receives the model directory after it is saved.
	Publisher Publisher

	// Events records the run as a session log. Search.Events defaults to it.
	Events session.Logger
}

// DefaultConfig returns the configuration of a pipeline without a project file.
func DefaultConfig() Config {
	return ConfigFrom(projectconfig.New())
}

// ConfigFrom maps a project configuration onto a pipeline configuration.
func ConfigFrom(pc *projectconfig.ProjectConfig) Config {
	opts := search.DefaultOptions()
	opts.MaxEpochs = pc.Search.MaxEpochs
	opts.Factor = pc.Search.Factor
	opts.MaxRetries = pc.Search.MaxRetries
	opts.WorkspaceDir = pc.Search.WorkspaceDir
	opts.Seed = seedOr(pc.Search.Seed)
	opts.Callbacks = search.Callbacks{
		ReduceLRFactor:        pc.Callbacks.ReduceLRFactor,
		ReduceLRPatience:      pc.Callbacks.ReduceLRPatience,
		ReduceLRMinDelta:      pc.Callbacks.ReduceLRMinDelta,
		EarlyStoppingPatience: pc.Callbacks.EarlyStoppingPatience,
	}

	return Config{
		LabelColumn:        pc.Data.LabelColumn,
		IDColumn:           pc.Data.IDColumn,
		BatchSize:          pc.Data.BatchSize,
		ShuffleBuffer:      pc.Data.ShuffleBuffer,
		UnionShuffleBuffer: pc.Data.UnionShuffleBuffer,
		DataSeed:           seedOr(pc.Data.Seed),
		Search:             opts,
		Members:            pc.Ensemble.Members,
		MemberSeed:         seedOr(pc.Ensemble.Seed),
	}
}

func seedOr(p *int64) int64 {
	if p == nil {
		return projectconfig.DefaultSeed
	}
	return *p
}

// Files names the inputs and the output of a pipeline run.
type Files struct {
	Train      string
	Validation string
	Evaluation string
	ModelDir   string
}

// Report is the evaluation of a model on one dataset.
type Report struct {
	metrics.Classification

	// ROCAUC is computed from the flat predictions against the ground truth.
	ROCAUC     float64                       `json:"roc_auc"`
	AccuracyCI statistics.ConfidenceInterval `json:"accuracy_ci"`
	AUCCI      statistics.ConfidenceInterval `json:"auc_ci"`
	Examples   int                           `json:"examples"`
}

// Summary is the outcome of Pipeline.Train.
type Summary struct {
	Features   []string           `json:"features"`
	Best       hyperparams.Config `json:"best_hyperparameters"`
	BestScore  float64            `json:"-"`
	Trials     int                `json:"trials"`
	Runs       int                `json:"runs"`
	BestEpoch  int                `json:"best_epoch"`
	Retrain    network.History    `json:"retrain"`
	Members    int                `json:"members"`
	ModelDir   string             `json:"model_dir"`
	Published  bool               `json:"published"`
	Evaluation Report             `json:"evaluation"`
	Duration   time.Duration      `json:"duration"`
}

// Pipeline trains, persists and evaluates an ensemble.
type Pipeline struct {
	Config Config
}

// NewPipeline returns a pipeline for cfg.
func NewPipeline(cfg Config) *Pipeline {
	return &Pipeline{Config: cfg}
}

type inputs struct {
	weights       dataset.ClassWeights
	train         *dataset.Dataset
	valid         *dataset.Dataset
	trainAndValid *dataset.Dataset
	eval          *dataset.Dataset
}

// Train runs the whole pipeline. ctx is checked between stages and passed
// to the publisher.
func (p *Pipeline) Train(ctx context.Context, files Files) (*Summary, error) {
	sum, err := p.train(ctx, files)
	if err != nil {
		session.Emit(p.Config.Events, session.EventError, session.ErrorData(err.Error(), nil))
		return nil, err
	}
	session.Emit(p.Config.Events, session.EventRunEnd,
		session.RunCompleteData(sum.ModelDir, sum.Duration.Milliseconds()))
	return sum, nil
}

func (p *Pipeline) train(ctx context.Context, files Files) (*Summary, error) {
	start := time.Now()
	cfg := p.Config
	if cfg.Search.Events == nil {
		cfg.Search.Events = cfg.Events
	}
	session.Emit(cfg.Events, session.EventRunStart, session.RunStartData(
		files.Train, files.Validation, files.Evaluation, cfg.Search.MaxEpochs, cfg.Search.Factor, cfg.Members))
	slog.Debug("Starting model training",
		"train", files.Train, "validation", files.Validation, "evaluation", files.Evaluation)
	brand, cpuFeatures := compute.Describe()
	slog.Debug("compute", "cpu", brand, "features", cpuFeatures, "workers", compute.Workers())

	in, err := p.load(ctx, files)
	if err != nil {
		return nil, err
	}

	features, err := dataset.NewFeatureSet(in.train.Schema(), cfg.IDColumn)
	if err != nil {
		return nil, err
	}
	slog.Debug("features", "names", features.Names(), "class_weights", in.weights)

	ctrl, err := search.New(cfg.Search)
	if err != nil {
		return nil, err
	}
	slog.Debug("Starting hyperparameter search", "max_epochs", cfg.Search.MaxEpochs, "factor", cfg.Search.Factor)
	res, err := ctrl.Search(in.train, in.valid, features, in.weights)
	if err != nil {
		return nil, err
	}
	slog.Info("Best hyperparameters", "values", res.Best.String(), "val_auc", res.BestScore, "trial", res.BestTrial)
	session.Emit(cfg.Events, session.EventSearchComplete,
		session.SearchCompleteData(res.Best.String(), res.BestScore, len(res.Trials), res.Runs))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bestEpoch, hist, err := Retrain(res.Best, in.train, in.valid, features, in.weights, RetrainOptions{
		MaxEpochs: cfg.Search.MaxEpochs,
		Seed:      cfg.Search.Seed,
		Callbacks: cfg.Search.Callbacks,
	})
	if err != nil {
		return nil, err
	}
	session.Emit(cfg.Events, session.EventBestEpoch, session.BestEpochData(bestEpoch, hist.ValAUC()[bestEpoch-1]))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	nets, err := TrainMembers(res.Best, bestEpoch, in.trainAndValid, features, in.weights, MemberOptions{
		N:    cfg.Members,
		Seed: cfg.MemberSeed,
	})
	if err != nil {
		return nil, err
	}
	members := make([]ensemble.Member, len(nets))
	for i, n := range nets {
		members[i] = n
		session.Emit(cfg.Events, session.EventMemberTrained, session.MemberTrainedData(i, cfg.MemberSeed+int64(i), bestEpoch))
	}
	slog.Debug("Wrapping ensemble model", "members", len(members))
	model, err := ensemble.Wrap(features, members)
	if err != nil {
		return nil, err
	}
	slog.Info("Model trained")

	slog.Debug("Saving model", "dir", files.ModelDir)
	err = modelstore.Save(files.ModelDir, model, modelstore.Info{
		LabelColumn: cfg.LabelColumn,
		BestEpoch:   bestEpoch,
		DataFiles:   []string{files.Train, files.Validation},
		SearchScore: res.BestScore,
		Trials:      len(res.Trials),
		Runs:        res.Runs,
	})
	if err != nil {
		return nil, err
	}
	published := false
	if cfg.Publisher != nil {
		if err := cfg.Publisher.Publish(ctx, files.ModelDir); err != nil {
			return nil, err
		}
		published = true
	}

	slog.Debug("Evaluating model...")
	report, err := Evaluate(model, in.eval)
	if err != nil {
		return nil, err
	}
	session.Emit(cfg.Events, session.EventEvaluation,
		session.EvaluationData(report.Loss, report.Accuracy, report.AUC, report.ROCAUC))

	return &Summary{
		Features:   features.Names(),
		Best:       res.Best,
		BestScore:  res.BestScore,
		Trials:     len(res.Trials),
		Runs:       res.Runs,
		BestEpoch:  bestEpoch,
		Retrain:    hist,
		Members:    model.Len(),
		ModelDir:   files.ModelDir,
		Published:  published,
		Evaluation: report,
		Duration:   time.Since(start),
	}, nil
}

// load computes the class weights and opens the four datasets concurrently.
func (p *Pipeline) load(ctx context.Context, files Files) (*inputs, error) {
	cfg := p.Config
	base := dataset.Options{BatchSize: cfg.BatchSize, LabelColumn: cfg.LabelColumn}
	shuffled := func(buffer int) dataset.Options {
		o := base
		o.Shuffle = true
		o.ShuffleBufferSize = buffer
		o.Seed = cfg.DataSeed
		return o
	}

	in := &inputs{}
	g, ctx := errgroup.WithContext(ctx)
	open := func(dst **dataset.Dataset, paths []string, opts dataset.Options) {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ds, err := dataset.Open(paths, opts)
			if err != nil {
				return err
			}
			*dst = ds
			return nil
		})
	}
	g.Go(func() error {
		w, err := dataset.ComputeClassWeights(files.Train, cfg.LabelColumn)
		if err != nil {
			return err
		}
		in.weights = w
		return nil
	})
	open(&in.train, []string{files.Train}, shuffled(cfg.ShuffleBuffer))
	open(&in.valid, []string{files.Validation}, base)
	open(&in.trainAndValid, []string{files.Train, files.Validation}, shuffled(cfg.UnionShuffleBuffer))
	open(&in.eval, []string{files.Evaluation}, base)
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return in, nil
}

// Evaluate scores model on one pass of ds and adds a flat ROC-AUC and
// bootstrap intervals. ds must not be shuffled so predictions line up with
// the ground truth.
func Evaluate(model *ensemble.Model, ds *dataset.Dataset) (Report, error) {
	ev, err := model.Evaluate(ds)
	if err != nil {
		return Report{}, err
	}
	slog.Info("Eval metrics", "loss", ev.Loss, "accuracy", ev.Accuracy, "auc", ev.AUC)

	probs, _, err := network.PredictDataset(model, ds)
	if err != nil {
		return Report{}, err
	}
	truth := dataset.GroundTruth(ds)
	if len(truth) != len(probs) {
		return Report{}, errors.New("training: predictions and ground truth differ in length")
	}

	r := Report{
		Classification: ev,
		ROCAUC:         metrics.ROCAUC(probs, truth),
		AccuracyCI:     statistics.AccuracyCI(probs, truth, ConfidenceLevel, projectconfig.DefaultSeed),
		AUCCI:          statistics.AUCCI(probs, truth, ConfidenceLevel, projectconfig.DefaultSeed),
		Examples:       len(truth),
	}
	slog.Info("Eval ROC AUC score", "roc_auc", r.ROCAUC)
	return r, nil
}

// String renders the headline metrics.
func (r Report) String() string {
	return fmt.Sprintf("loss=%.3f accuracy=%.3f auc=%.3f roc_auc=%.3f", r.Loss, r.Accuracy, r.AUC, r.ROCAUC)
}
