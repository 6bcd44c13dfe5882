package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hna-go/hnamon/internal/jsonl"
	"github.com/hna-go/hnamon/internal/rpc"
	"github.com/hna-go/hnamon/internal/specfile"
)

// Process exit codes for batch-mode `hnamon check`: the verdict is
// encoded directly in the exit status so a CI pipeline can branch on it
// without parsing output.
const (
	exitVerdictTrue    = 0
	exitVerdictFalse   = 1
	exitVerdictUnknown = 2
	exitError          = 3
)

var (
	checkFixturePath string
	checkNoDaemon    bool
)

func init() {
	checkCmd.Flags().StringVar(&checkFixturePath, "fixture", "", "path to a JSONL event-fixture file to replay")
	checkCmd.Flags().BoolVar(&checkNoDaemon, "no-daemon", false, "build the slice tree in-process, never dial the daemon socket")
	_ = checkCmd.MarkFlagRequired("fixture")
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Replay a fixture to a definite verdict and exit with a verdict-coded status",
	Long: `check is hnamon's batch/CI entry point: it replays --fixture against --spec,
drives the monitor to a settled verdict, and exits 0 for TRUE, 1 for
FALSE, or 2 for UNKNOWN, printing the same report run does to stdout.

If a daemon is already listening on --socket, check submits the fixture
to it over RPC instead of building its own slice tree, so repeated CI
invocations share one compiled automaton. Pass --no-daemon to always
build in-process.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := requireSpecPath()
		if err != nil {
			exitWith(exitError, err)
			return nil
		}

		events, err := jsonl.ReadEventsFromFile(checkFixturePath)
		if err != nil {
			exitWith(exitError, err)
			return nil
		}

		var report *verdictReport
		if !checkNoDaemon {
			report, err = checkViaDaemon(cmd.Context(), events)
			if errors.Is(err, rpc.ErrDaemonUnavailable) {
				slog.Debug("no daemon reachable, falling back to in-process check", "error", err)
				report, err = checkInProcess(path, events)
			}
		} else {
			report, err = checkInProcess(path, events)
		}
		if err != nil {
			exitWith(exitError, err)
			return nil
		}

		printReport(report, runJSON)
		switch report.Overall {
		case "TRUE":
			os.Exit(exitVerdictTrue)
		case "FALSE":
			os.Exit(exitVerdictFalse)
		default:
			os.Exit(exitVerdictUnknown)
		}
		return nil
	},
}

func exitWith(code int, err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(code)
}

func checkInProcess(specPath string, events []jsonl.Event) (*verdictReport, error) {
	doc, err := specfile.Load(specPath)
	if err != nil {
		return nil, err
	}
	spec, sc, alphabet, err := doc.Build()
	if err != nil {
		return nil, err
	}
	return replayFixtureFromEvents(spec, sc, alphabet, events)
}

func checkViaDaemon(ctx context.Context, events []jsonl.Event) (*verdictReport, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	client, err := rpc.Dial(dialCtx, socketPath)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	for _, ev := range events {
		switch ev.Kind {
		case jsonl.KindRegular:
			if err := client.RegularEvent(rpc.RegularEventArgs{EntityID: ev.EntityID, Fields: ev.Fields}); err != nil {
				return nil, fmt.Errorf("submitting regular event: %w", err)
			}
		case jsonl.KindAction:
			if err := client.ActionEvent(rpc.ActionEventArgs{EntityID: ev.EntityID, Action: ev.Action}); err != nil {
				return nil, fmt.Errorf("submitting action event: %w", err)
			}
		default:
			return nil, fmt.Errorf("unknown event kind %q", ev.Kind)
		}
	}

	if err := client.Finish(); err != nil {
		return nil, fmt.Errorf("finishing stream: %w", err)
	}

	// Each Verdict call drives one server-side scheduling round (the
	// daemon's handleVerdict steps the tree once per request, the same
	// way settle() in run.go steps a local tree), so a settled verdict
	// may take more than one round-trip to reach.
	var verdict *rpc.VerdictResponse
	for i := 0; ; i++ {
		verdict, err = client.Verdict()
		if err != nil {
			return nil, fmt.Errorf("fetching verdict: %w", err)
		}
		if verdict.Overall != "UNKNOWN" || i >= len(verdict.Slices) {
			break
		}
	}

	slices := make([]sliceVerdictEntry, len(verdict.Slices))
	for i, s := range verdict.Slices {
		slices[i] = sliceVerdictEntry{NodeID: s.NodeID, State: s.State, Verdict: s.Verdict, Retired: s.Retired}
	}
	return &verdictReport{Overall: verdict.Overall, Slices: slices}, nil
}
