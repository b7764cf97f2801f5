package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/resourcewise/internal/observability"
	"github.com/jonathan/resourcewise/internal/workflow"
)

var (
	askSession string
	askJSON    bool
	askStream  bool
	askVerbose bool
)

var askCmd = &cobra.Command{
	Use:   `ask "<question>"`,
	Short: "Ask one question and print the answer",
	Long: `Run one utterance through the assistant. Pass --session to continue a
conversation; follow-up questions such as "what about their projects?" use the
session history.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "Session ID to continue (a new one is created when empty)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the full result as JSON")
	askCmd.Flags().BoolVar(&askStream, "stream", false, "Stream the answer as it is generated")
	askCmd.Flags().BoolVarP(&askVerbose, "verbose", "v", false, "Print stage progress")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	req := workflow.Request{SessionID: askSession, Input: strings.Join(args, " ")}
	if askVerbose {
		req.OnProgress = func(ev workflow.ProgressEvent) {
			fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", ev.Stage, ev.Status) //nolint:errcheck
		}
	}

	if askStream && !askJSON {
		res, events, err := a.engine.Stream(ctx, req)
		if err != nil {
			return err
		}
		for ev := range events {
			if ev.Err != nil {
				return fmt.Errorf("answer stream failed: %w", ev.Err)
			}
			fmt.Fprint(out, ev.Token) //nolint:errcheck
		}
		fmt.Fprintf(out, "\n\nsession: %s\n", res.SessionID) //nolint:errcheck
		return nil
	}

	res, err := a.engine.Run(ctx, req)
	if err != nil {
		return err
	}

	if askJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	printer := observability.NewPrinter(out)
	if res.Match != nil {
		printer.PrintMatchResult(res.Match)
	}
	printer.PrintAnswer(string(res.Stage), res.Response)
	fmt.Fprintf(out, "session: %s\n", res.SessionID) //nolint:errcheck
	return nil
}

