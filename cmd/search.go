package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-engine/internal/cost"
	"github.com/sells-group/lead-engine/internal/lead"
	"github.com/sells-group/lead-engine/internal/search"
)

var (
	searchLocation   string
	searchMaxResults int
	searchMinRating  float64
	searchWebsite    string
	searchIndustry   string
	searchScore      bool
	searchJSON       bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a multi-strategy business search",
	Long: `Search for local businesses with several reformulations of the query and merge the results.
Without --location the query is read as a sentence, e.g. "burgers with no website in Los Angeles, CA".`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEngine(ctx, cfg, "search")
		if err != nil {
			return err
		}
		defer env.Close()

		req, err := buildSearchRequest(strings.Join(args, " "), cmd.Flags().Changed("min-rating"))
		if err != nil {
			return err
		}
		if req.MaxResults <= 0 {
			req.MaxResults = cfg.Search.MaxResults
		}

		tracker := cost.NewTracker(env.Pricing)
		ctx = cost.WithTracker(ctx, tracker)

		resp, err := env.Engine.Search(ctx, req)
		if err != nil {
			return eris.Wrap(err, "search")
		}
		if searchScore {
			resp.Leads = lead.Rank(env.Scorer.ScoreBatch(ctx, resp.Leads, cfg.Scorer.AILimit))
		}
		tracker.Log(uuid.NewString())

		if searchJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}
		printSearch(cmd.OutOrStdout(), resp, tracker.Total())
		return nil
	},
}

// buildSearchRequest merges flags over the sentence parse of text.
func buildSearchRequest(text string, minRatingSet bool) (search.Request, error) {
	req := search.Request{Query: text, Location: searchLocation}
	if searchLocation == "" {
		req = search.ParseRequest(text)
	}
	if searchWebsite != "" {
		w, err := lead.ParseWebsiteFilter(searchWebsite)
		if err != nil {
			return search.Request{}, err
		}
		req.Website = w
	}
	if minRatingSet {
		if searchMinRating < 0 || searchMinRating > 5 {
			return search.Request{}, eris.New("--min-rating must be between 0 and 5")
		}
		r := searchMinRating
		req.MinRating = &r
	}
	req.MaxResults = searchMaxResults
	req.Industry = searchIndustry
	return req, nil
}

func printSearch(w io.Writer, resp *search.Response, costUSD float64) {
	fmt.Fprintf(w, "Search: %s\n", resp.SearchQuery)
	if resp.Message != "" {
		fmt.Fprintln(w, resp.Message)
	}
	for _, warn := range resp.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tNAME\tRATING\tREVIEWS\tPHONE\tWEBSITE\tCITY")
	for _, l := range resp.Leads {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			l.OpportunityScore, l.Name, fmtRating(l.Rating), fmtCount(l.ReviewCount),
			orDash(lead.Deref(l.Phone)), orDash(lead.Deref(l.Website)), orDash(l.City))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d shown of %d found (est. cost $%.4f)\n", len(resp.Leads), resp.TotalFound, costUSD)
}

func fmtRating(r *float64) string {
	if r == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *r)
}

func fmtCount(n *int) string {
	if n == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *n)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	searchCmd.Flags().StringVar(&searchLocation, "location", "", "city, region or address (default: parsed from the query)")
	searchCmd.Flags().IntVar(&searchMaxResults, "max-results", 0, "maximum leads to return (default from config)")
	searchCmd.Flags().Float64Var(&searchMinRating, "min-rating", 0, "drop businesses rated below this")
	searchCmd.Flags().StringVar(&searchWebsite, "website", "", "website filter: any, required or absent")
	searchCmd.Flags().StringVar(&searchIndustry, "industry", "", "industry label for every lead")
	searchCmd.Flags().BoolVar(&searchScore, "score", false, "score leads as sales opportunities and rank them")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print the raw JSON response")
	rootCmd.AddCommand(searchCmd)
}
