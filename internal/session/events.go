package session

import (
	"math"
	"time"
)

// EventType identifies the kind of session event.
type EventType string

const (
	EventRunStart       EventType = "run_start"
	EventRunEnd         EventType = "run_complete"
	EventTrialRun       EventType = "trial_run"
	EventSearchComplete EventType = "search_complete"
	EventBestEpoch      EventType = "best_epoch"
	EventMemberTrained  EventType = "member_trained"
	EventEvaluation     EventType = "evaluation"
	EventError          EventType = "error"
)

// Event is a single timestamped entry in a session log.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      EventType      `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEvent creates an event with the current timestamp.
func NewEvent(t EventType, data map[string]any) Event {
	return Event{
		Timestamp: time.Now().UTC(),
		Type:      t,
		Data:      data,
	}
}

// RunStartData returns event data for the start of a training run.
func RunStartData(trainFile, validationFile, evaluationFile string, maxEpochs, factor, members int) map[string]any {
	return map[string]any{
		"train_file":      trainFile,
		"validation_file": validationFile,
		"evaluation_file": evaluationFile,
		"max_epochs":      maxEpochs,
		"factor":          factor,
		"members":         members,
	}
}

// RunCompleteData returns event data for the end of a training run.
func RunCompleteData(modelDir string, durationMs int64) map[string]any {
	return map[string]any{
		"model_dir":   modelDir,
		"duration_ms": durationMs,
	}
}

// TrialRunData returns event data for one completed search run.
func TrialRunData(trialID string, bracket, round, epochs int, score float64, hyperparameters string) map[string]any {
	return map[string]any{
		"trial_id":        trialID,
		"bracket":         bracket,
		"round":           round,
		"epochs":          epochs,
		"score":           number(score),
		"hyperparameters": hyperparameters,
	}
}

// SearchCompleteData returns event data for the end of the search.
func SearchCompleteData(best string, score float64, trials, runs int) map[string]any {
	return map[string]any{
		"hyperparameters": best,
		"score":           number(score),
		"trials":          trials,
		"runs":            runs,
	}
}

// BestEpochData returns event data for the retrain result.
func BestEpochData(epoch int, valAUC float64) map[string]any {
	return map[string]any{
		"epoch":   epoch,
		"val_auc": number(valAUC),
	}
}

// MemberTrainedData returns event data for one trained ensemble member.
func MemberTrainedData(member int, seed int64, epochs int) map[string]any {
	return map[string]any{
		"member": member,
		"seed":   seed,
		"epochs": epochs,
	}
}

// EvaluationData returns event data for the final evaluation.
func EvaluationData(loss, accuracy, auc, rocAUC float64) map[string]any {
	return map[string]any{
		"loss":     number(loss),
		"accuracy": number(accuracy),
		"auc":      number(auc),
		"roc_auc":  number(rocAUC),
	}
}

// ErrorData returns event data for an error.
func ErrorData(message string, details map[string]any) map[string]any {
	d := map[string]any{
		"message": message,
	}
	for k, v := range details {
		d[k] = v
	}
	return d
}

// number maps values JSON cannot carry (NaN, ±Inf) to null.
func number(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
