package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/resourcewise/internal/observability"
)

var resolveJSON bool

var resolveCmd = &cobra.Command{
	Use:   `resolve "<question>"`,
	Short: "Show how vague terms in a question resolve",
	Long: `Classify a question and resolve its vague terms ("SSE", "frontend folks",
"cloud experts") to designation titles and skill names, without running a query.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "Print the full resolution as JSON")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.resolver.ResolveQuery(ctx, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("failed to resolve terms: %w", err)
	}

	if resolveJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if len(res.Resolution) == 0 && len(res.Unresolved) == 0 {
		fmt.Fprintln(out, "No vague terms found.") //nolint:errcheck
		return nil
	}
	observability.NewPrinter(out).PrintResolution(res.Resolution, res.Unresolved)
	fmt.Fprintf(out, "resolved %d of %d term(s): %d static, %d fuzzy, %d vector\n", //nolint:errcheck
		res.Stats.Total-res.Stats.Unresolved, res.Stats.Total, res.Stats.Static, res.Stats.Fuzzy, res.Stats.Vector)
	return nil
}
