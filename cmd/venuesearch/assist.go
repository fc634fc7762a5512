package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helixir/venue-search-service/internal/domain"
)

var assistCmd = &cobra.Command{
	Use:   "assist",
	Short: "Find papers for a research intent",
	Long: `Assist extracts search keywords from a free-text research intent, scans
every keyword against the selected venue, merges the results and asks the
language model for the most relevant papers with a reason for each.

The API key is read from VENUESEARCH_LLM_API_KEY or DEEPSEEK_API_KEY unless
--api-key is given. Without a key the keywords fall back to the intent and
results are listed unranked.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		sel, err := selectionFromFlags(cmd)
		if err != nil {
			return err
		}
		intent, _ := cmd.Flags().GetString("intent")
		if strings.TrimSpace(intent) == "" {
			return fmt.Errorf("--intent is required")
		}
		apiKey, _ := cmd.Flags().GetString("api-key")
		top, _ := cmd.Flags().GetInt("top")
		asJSON, _ := cmd.Flags().GetBool("json")

		view, err := components.Engine.Assist(cmd.Context(), sel, intent, apiKey)
		if err != nil {
			if errors.Is(err, domain.ErrNoCandidates) {
				fmt.Fprintf(cmd.ErrOrStderr(), "no papers found for keywords %s\n", strings.Join(view.FinalKeywords, ", "))
				return nil
			}
			return err
		}

		results := view.Results
		if top > 0 && len(results) > top {
			results = results[:top]
		}

		out := cmd.OutOrStdout()
		if asJSON {
			view.Results = results
			return writeJSON(out, view)
		}

		errOut := cmd.ErrOrStderr()
		if view.ExtractionDegraded {
			fmt.Fprintln(errOut, "warning: keyword extraction unavailable, searching the intent as a keyword")
		}
		if view.RankingDegraded {
			fmt.Fprintln(errOut, "warning: ranking unavailable, showing candidates in source order")
		}

		fmt.Fprintf(out, "Keywords: %s\n", strings.Join(view.FinalKeywords, ", "))
		if view.Reasoning != "" {
			fmt.Fprintf(out, "Reasoning: %s\n", view.Reasoning)
		}
		fmt.Fprintf(out, "Candidates: %d, recommended: %d\n\n", view.CandidateCount, len(results))
		printPapers(out, results)
		return nil
	},
}

func init() {
	addSelectionFlags(assistCmd)
	assistCmd.Flags().String("intent", "", "research intent in free text (required)")
	assistCmd.Flags().String("api-key", "", "language model API key (overrides the configured key)")
	assistCmd.Flags().Int("top", 0, "show at most this many recommendations (0 shows all)")
	assistCmd.Flags().Bool("json", false, "output the session as JSON")

	rootCmd.AddCommand(assistCmd)
}
