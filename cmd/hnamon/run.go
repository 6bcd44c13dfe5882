package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/hna-go/hnamon/internal/hna"
	"github.com/hna-go/hnamon/internal/jsonl"
	"github.com/hna-go/hnamon/internal/schema"
	"github.com/hna-go/hnamon/internal/specfile"
	"github.com/hna-go/hnamon/internal/telemetry"
)

var (
	runFixturePath string
	runWatch       bool
	runClean       bool
	runJSON        bool
)

func init() {
	runCmd.Flags().StringVar(&runFixturePath, "fixture", "", "path to a JSONL event-fixture file to replay")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "re-read and re-replay the fixture file whenever it changes on disk")
	runCmd.Flags().BoolVar(&runClean, "clean", false, "pass the fixture through internal/jsonl.CleanEvents before replay")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the verdict report as JSON")
	_ = runCmd.MarkFlagRequired("fixture")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a JSONL event fixture against a specification and print the resulting verdict",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := requireSpecPath()
		if err != nil {
			return err
		}

		shutdown := telemetry.Discard()
		if telemetryOn {
			shutdown, err = telemetry.Setup(telemetry.Stderr)
			if err != nil {
				return err
			}
		}
		defer func() { _ = shutdown(context.Background()) }()

		doc, err := specfile.Load(path)
		if err != nil {
			return err
		}
		spec, sc, alphabet, err := doc.Build()
		if err != nil {
			return err
		}

		if !runWatch {
			report, err := replayFixtureOnce(spec, sc, alphabet)
			if err != nil {
				return err
			}
			printReport(report, runJSON)
			return nil
		}

		return watchAndRun(cmd.Context(), spec, sc, alphabet)
	},
}

// verdictReport is the human- or machine-readable summary run/check print.
type verdictReport struct {
	Overall string              `json:"overall"`
	Slices  []sliceVerdictEntry `json:"slices"`
}

type sliceVerdictEntry struct {
	NodeID  string `json:"node_id"`
	State   string `json:"state"`
	Verdict string `json:"verdict"`
	Retired bool   `json:"retired"`
}

// replayFixtureOnce builds a fresh slice tree, reads and (optionally)
// cleans runFixturePath, replays it, finishes the tree, and steps it with
// settle.
func replayFixtureOnce(spec *hna.Spec, sc *schema.Schema, alphabet []string) (*verdictReport, error) {
	events, err := jsonl.ReadEventsFromFile(runFixturePath)
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}

	if runClean {
		result, cleaned, err := jsonl.CleanEvents(events, spec, jsonl.DefaultCleanerOptions())
		if err != nil {
			return nil, fmt.Errorf("cleaning fixture: %w", err)
		}
		if result.HasRejections() {
			slog.Warn("fixture cleaning rejected events", "summary", result.Summary())
		}
		events = cleaned
	}

	return replayFixtureFromEvents(spec, sc, alphabet, events)
}

// replayFixtureFromEvents builds a fresh slice tree, replays an
// already-read event slice into it, and steps it to a settled verdict.
// Shared by run (reads+optionally cleans its own fixture) and check's
// in-process fallback (reads once, never cleans -- check is a CI entry
// point and a miscleaned fixture should fail loudly, not be repaired).
func replayFixtureFromEvents(spec *hna.Spec, sc *schema.Schema, alphabet []string, events []jsonl.Event) (*verdictReport, error) {
	tree, err := hna.NewSlicesTree(spec, sc, alphabet)
	if err != nil {
		return nil, fmt.Errorf("building slice tree: %w", err)
	}
	if err := jsonl.Replay(tree, events); err != nil {
		return nil, fmt.Errorf("replaying fixture: %w", err)
	}
	tree.Finish()

	return settle(tree), nil
}

// settle steps tree until its overall verdict stops being UNKNOWN, at most
// len(Nodes())+1 times. The bound does not grow with trace length: a tree
// whose monitors need more steps than that to decide is reported with
// overall UNKNOWN.
func settle(tree *hna.SlicesTree) *verdictReport {
	var overall string
	for i := 0; i < len(tree.Nodes())+1; i++ {
		overall = tree.Step().String()
		if overall != "UNKNOWN" {
			break
		}
	}

	nodes := tree.Nodes()
	slices := make([]sliceVerdictEntry, 0, len(nodes))
	for _, n := range nodes {
		v, retired := n.Verdict()
		slices = append(slices, sliceVerdictEntry{
			NodeID:  n.ID(),
			State:   n.State(),
			Verdict: v.String(),
			Retired: retired,
		})
	}
	return &verdictReport{Overall: overall, Slices: slices}
}

func printReport(report *verdictReport, asJSON bool) {
	if asJSON {
		data, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(data))
		return
	}
	fmt.Printf("overall: %s\n", report.Overall)
	for _, s := range report.Slices {
		fmt.Printf("  %-20s state=%-12s verdict=%-8s retired=%v\n", s.NodeID, s.State, s.Verdict, s.Retired)
	}
}

// watchAndRun re-replays the fixture from scratch every time fsnotify
// reports it changed on disk, the same watch-for-change idiom the
// teacher's daemon uses for its own config/lockfile watching -- useful
// for interactive specification development, where a spec author edits
// a fixture and wants the verdict recomputed without restarting hnamon.
func watchAndRun(ctx context.Context, spec *hna.Spec, sc *schema.Schema, alphabet []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fixture watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(runFixturePath); err != nil {
		return fmt.Errorf("watching %s: %w", runFixturePath, err)
	}

	replay := func() {
		report, err := replayFixtureOnce(spec, sc, alphabet)
		if err != nil {
			slog.Error("replay failed", "error", err)
			return
		}
		printReport(report, runJSON)
	}

	replay()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				replay()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("fixture watcher error", "error", err)
		}
	}
}
