package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SessionFile represents a session log file on disk.
type SessionFile struct {
	Path      string
	Name      string
	Size      int64
	ModTime   time.Time
	NumEvents int
}

// ListSessions finds .jsonl session log files in dir.
func ListSessions(dir string) ([]SessionFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading session directory: %w", err)
	}

	var files []SessionFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(e.Name(), LogSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}

		path := filepath.Join(dir, e.Name())
		n, _ := countLines(path) //nolint:errcheck
		files = append(files, SessionFile{
			Path:      path,
			Name:      e.Name(),
			Size:      info.Size(),
			ModTime:   info.ModTime(),
			NumEvents: n,
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})

	return files, nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close() //nolint:errcheck
	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		n++
	}
	return n, scanner.Err()
}

// ReadEvents parses all events from a session log file.
func ReadEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening session file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	var events []Event
	scanner := bufio.NewScanner(f)
	// Increase buffer for large lines.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue // skip malformed lines
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading session file: %w", err)
	}
	return events, nil
}

// RenderTimeline writes a human-readable training timeline to w.
//
//nolint:errcheck // display-only writes; errors are not actionable
func RenderTimeline(w io.Writer, events []Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events found.")
		return
	}

	fmt.Fprintln(w, "═══════════════════════════════════════════════════════")
	fmt.Fprintln(w, " TRAINING TIMELINE")
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════")
	fmt.Fprintln(w)

	start := events[0].Timestamp
	for _, ev := range events {
		ts := formatDuration(ev.Timestamp.Sub(start))

		switch ev.Type {
		case EventRunStart:
			train, _ := ev.Data["train_file"].(string) //nolint:errcheck
			fmt.Fprintf(w, "[%s] 🚀 Run started  train=%s  max_epochs=%d  factor=%d  members=%d\n",
				ts, train, jsonNumber(ev.Data["max_epochs"]), jsonNumber(ev.Data["factor"]), jsonNumber(ev.Data["members"]))

		case EventTrialRun:
			id, _ := ev.Data["trial_id"].(string) //nolint:errcheck
			fmt.Fprintf(w, "[%s] ▶  Trial %s  bracket=%d round=%d epochs=%d  score=%s\n",
				ts, id, jsonNumber(ev.Data["bracket"]), jsonNumber(ev.Data["round"]),
				jsonNumber(ev.Data["epochs"]), formatScore(ev.Data["score"]))

		case EventSearchComplete:
			hp, _ := ev.Data["hyperparameters"].(string) //nolint:errcheck
			fmt.Fprintf(w, "[%s] ✓  Search complete  %d trials  %d runs  best=%s  score=%s\n",
				ts, jsonNumber(ev.Data["trials"]), jsonNumber(ev.Data["runs"]), hp, formatScore(ev.Data["score"]))

		case EventBestEpoch:
			fmt.Fprintf(w, "[%s] ✓  Best epoch %d  val_auc=%s\n",
				ts, jsonNumber(ev.Data["epoch"]), formatScore(ev.Data["val_auc"]))

		case EventMemberTrained:
			fmt.Fprintf(w, "[%s]    Member %d trained  seed=%d  epochs=%d\n",
				ts, jsonNumber(ev.Data["member"]), jsonNumber(ev.Data["seed"]), jsonNumber(ev.Data["epochs"]))

		case EventEvaluation:
			fmt.Fprintf(w, "[%s] 📊 Evaluation  loss=%s  accuracy=%s  auc=%s  roc_auc=%s\n",
				ts, formatScore(ev.Data["loss"]), formatScore(ev.Data["accuracy"]),
				formatScore(ev.Data["auc"]), formatScore(ev.Data["roc_auc"]))

		case EventError:
			msg, _ := ev.Data["message"].(string) //nolint:errcheck
			fmt.Fprintf(w, "[%s] ❌ Error: %s\n", ts, msg)

		case EventRunEnd:
			dir, _ := ev.Data["model_dir"].(string) //nolint:errcheck
			fmt.Fprintf(w, "[%s] 🏁 Run complete  model=%s  (%dms)\n", ts, dir, jsonNumber(ev.Data["duration_ms"]))

		default:
			fmt.Fprintf(w, "[%s] %s %v\n", ts, ev.Type, ev.Data)
		}
	}
	fmt.Fprintln(w)
}

// formatScore prints n/a for values logged as null.
func formatScore(v any) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", jsonFloat(v))
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%6dms", d.Milliseconds())
	}
	return fmt.Sprintf("%6.1fs", d.Seconds())
}

// jsonNumber extracts a number from a JSON-decoded interface{} (float64 or json.Number).
func jsonNumber(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case json.Number:
		i, _ := n.Int64() //nolint:errcheck
		return int(i)
	}
	return 0
}

func jsonFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64() //nolint:errcheck
		return f
	}
	return 0
}
