package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/jonathan/resourcewise/internal/matching"
	"github.com/jonathan/resourcewise/internal/observability"
	"github.com/jonathan/resourcewise/internal/types"
	"github.com/jonathan/resourcewise/internal/vocabulary"
	"github.com/jonathan/resourcewise/internal/workflow"
)

var (
	matchProjectPath   string
	matchEmployeesPath string
	matchJSON          bool
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Propose teams for a project from an employee file",
	Long: `Run the team search offline: --project is a project requirement JSON file and
--employees a JSON array of employee candidates with their spare capacity.`,
	Args: cobra.NoArgs,
	RunE: runMatch,
}

func init() {
	matchCmd.Flags().StringVarP(&matchProjectPath, "project", "p", "", "Path to project requirement JSON")
	matchCmd.Flags().StringVarP(&matchEmployeesPath, "employees", "e", "", "Path to employee candidates JSON")
	matchCmd.Flags().BoolVar(&matchJSON, "json", false, "Print the match result as JSON")
	_ = matchCmd.MarkFlagRequired("project")
	_ = matchCmd.MarkFlagRequired("employees")
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	var project types.ProjectRequirement
	if err := readJSON(matchProjectPath, &project); err != nil {
		return err
	}
	if err := project.Validate(); err != nil {
		return fmt.Errorf("invalid project %s: %w", matchProjectPath, err)
	}

	var employees []types.EmployeeCandidate
	if err := readJSON(matchEmployeesPath, &employees); err != nil {
		return err
	}
	if len(employees) == 0 {
		return fmt.Errorf("no employees in %s", matchEmployeesPath)
	}
	validate := validator.New()
	for i := range employees {
		if err := validate.Struct(&employees[i]); err != nil {
			return fmt.Errorf("invalid employee %d in %s: %w", i, matchEmployeesPath, err)
		}
	}

	vocab, err := vocabulary.Load(cfg.Fuzzy.VocabularyPath)
	if err != nil {
		return fmt.Errorf("failed to load vocabulary: %w", err)
	}
	searcher := matching.NewSearcher(vocab, matching.Options{MaxCombinations: cfg.MaxCombinations}, logger)
	result, err := searcher.Search(&project, employees)
	if err != nil {
		return fmt.Errorf("failed to match team: %w", err)
	}

	if matchJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printer := observability.NewPrinter(out)
	printer.PrintProject(&project)
	printer.PrintMatchResult(result)
	if len(result.Combinations) == 0 {
		fmt.Fprintln(out, workflow.MatchingGapMessage(&project, result)) //nolint:errcheck
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
