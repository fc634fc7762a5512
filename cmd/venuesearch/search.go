package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helixir/venue-search-service/internal/domain"
	"github.com/helixir/venue-search-service/internal/papersources"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search one or more venues for a keyword",
	Long: `Search fetches the papers of each venue and year that mention the keyword
in their title, abstract or keywords. Venues are searched in parallel; repeat
--venue or pass a comma-separated list. No language model is involved.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		keyword, _ := cmd.Flags().GetString("keyword")
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			return fmt.Errorf("--keyword is required")
		}
		queries, err := queriesFromFlags(cmd, keyword)
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		results := components.Router.SearchMany(cmd.Context(), queries)
		for i, res := range results {
			if res.Failed() {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s source unavailable: %v\n", queries[i].Venue, res.Err)
			}
		}

		out := cmd.OutOrStdout()
		if asJSON {
			if len(results) == 1 {
				return writeJSON(out, results[0].Papers)
			}
			return writeJSON(out, toVenueResults(queries, results))
		}
		for i, res := range results {
			q := queries[i]
			fmt.Fprintf(out, "Found %d papers for %q at %s %d\n\n", len(res.Papers), keyword, q.Venue, q.Year)
			printPapers(out, res.Papers)
		}
		return nil
	},
}

func init() {
	addSearchFlags(searchCmd)
	rootCmd.AddCommand(searchCmd)
}

func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("venue", nil, "conferences to search, repeatable (ICLR, NeurIPS, ICML, CVPR, ECCV, ICCV, AAAI)")
	cmd.Flags().Int("year", 0, "conference year")
	cmd.Flags().String("status", string(domain.StatusAccepted), `review status ("Accepted" or "Under Review")`)
	cmd.Flags().String("keyword", "", "keyword to match (required)")
	cmd.Flags().Bool("json", false, "output results as JSON")
	_ = cmd.MarkFlagRequired("venue")
	_ = cmd.MarkFlagRequired("year")
}

// venueResult is the JSON form of one venue's search in a multi-venue run.
type venueResult struct {
	Venue  domain.Venue    `json:"venue"`
	Year   int             `json:"year"`
	Papers []*domain.Paper `json:"papers"`
	Error  string          `json:"error,omitempty"`
}

func toVenueResults(queries []papersources.Query, results []papersources.Result) []venueResult {
	out := make([]venueResult, len(queries))
	for i, q := range queries {
		out[i] = venueResult{Venue: q.Venue, Year: q.Year, Papers: results[i].Papers}
		if results[i].Failed() {
			out[i].Error = results[i].Err.Error()
		}
	}
	return out
}

// queriesFromFlags builds one query per distinct venue flag value.
func queriesFromFlags(cmd *cobra.Command, keyword string) ([]papersources.Query, error) {
	venues, _ := cmd.Flags().GetStringSlice("venue")
	year, _ := cmd.Flags().GetInt("year")
	status, _ := cmd.Flags().GetString("status")

	var queries []papersources.Query
	seen := make(map[domain.Venue]bool)
	for _, name := range venues {
		if name = strings.TrimSpace(name); name == "" {
			continue
		}
		sel, err := parseSelection(name, year, status)
		if err != nil {
			return nil, err
		}
		if seen[sel.Venue] {
			continue
		}
		seen[sel.Venue] = true
		queries = append(queries, papersources.Query{
			Venue:   sel.Venue,
			Year:    sel.Year,
			Keyword: keyword,
			Status:  sel.Status,
		})
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("--venue is required")
	}
	return queries, nil
}

// addSelectionFlags registers the venue, year and status flags.
func addSelectionFlags(cmd *cobra.Command) {
	cmd.Flags().String("venue", "", "conference (ICLR, NeurIPS, ICML, CVPR, ECCV, ICCV, AAAI)")
	cmd.Flags().Int("year", 0, "conference year")
	cmd.Flags().String("status", string(domain.StatusAccepted), `review status ("Accepted" or "Under Review")`)
	_ = cmd.MarkFlagRequired("venue")
	_ = cmd.MarkFlagRequired("year")
}

// selectionFromFlags parses and validates the selection flags.
func selectionFromFlags(cmd *cobra.Command) (domain.Selection, error) {
	venue, _ := cmd.Flags().GetString("venue")
	year, _ := cmd.Flags().GetInt("year")
	status, _ := cmd.Flags().GetString("status")
	return parseSelection(venue, year, status)
}

func parseSelection(venueName string, year int, statusName string) (domain.Selection, error) {
	venue, ok := domain.ParseVenue(venueName)
	if !ok {
		return domain.Selection{}, fmt.Errorf("unsupported venue %q", venueName)
	}
	status, ok := domain.ParseStatus(statusName)
	if !ok {
		return domain.Selection{}, fmt.Errorf("unsupported status %q", statusName)
	}
	sel := domain.Selection{Venue: venue, Year: year, Status: status}
	if err := sel.Validate(); err != nil {
		return domain.Selection{}, err
	}
	return sel, nil
}
