package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/lead-engine/internal/agent"
	"github.com/sells-group/lead-engine/internal/lead"
)

var (
	orchMaxIterations int
	orchEmail         bool
	orchWebsite       bool
	orchJSON          bool
)

var orchestrateCmd = &cobra.Command{
	Use:   "orchestrate <request>",
	Short: "Let the agent find and qualify leads for a free-form request",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEngine(ctx, cfg, "orchestrate")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Orchestrator.Run(ctx, agent.Request{
			Query:                 strings.Join(args, " "),
			MaxIterations:         orchMaxIterations,
			EnableEmailEnrichment: orchEmail,
			EnableWebsiteAnalysis: orchWebsite,
		})
		if err != nil {
			return err
		}

		if orchJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		printOrchestration(cmd.OutOrStdout(), res)
		return nil
	},
}

func printOrchestration(w io.Writer, res *agent.Result) {
	for _, s := range res.ExecutionSteps {
		status := "ok"
		if s.Output.Failed() {
			status = "error: " + s.Output.Error
		}
		fmt.Fprintf(w, "[%d] iteration %d  %s  %s  (%d leads, %dms)\n",
			s.Step, s.Iteration, s.Tool, status, len(s.Output.Leads), s.Output.DurationMS)
	}
	fmt.Fprintln(w)
	for i, l := range res.Leads {
		fmt.Fprintf(w, "%2d. %-40s score %3d  %s  %s\n", i+1, l.Name, l.OpportunityScore,
			orDash(lead.Deref(l.Phone)), orDash(lead.Deref(l.Website)))
		if len(l.PainPoints) > 0 {
			fmt.Fprintf(w, "    pain points: %s\n", strings.Join(l.PainPoints, "; "))
		}
	}
	fmt.Fprintf(w, "\n%s\n\n", res.Reasoning)

	m := res.Metadata
	fmt.Fprintf(w, "leads: %d  tools: %s  confidence: %.2f  iterations: %d  cost: $%.4f  run: %s\n",
		m.Count, strings.Join(res.ToolsUsed, ","), m.Confidence, m.Iterations, m.CostUSD, m.RunID)
	for _, warn := range m.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
}

func init() {
	orchestrateCmd.Flags().IntVar(&orchMaxIterations, "max-iterations", 0, "reasoning turn budget (default from config)")
	orchestrateCmd.Flags().BoolVar(&orchEmail, "email", false, "allow contact email enrichment")
	orchestrateCmd.Flags().BoolVar(&orchWebsite, "website-analysis", false, "allow website analysis")
	orchestrateCmd.Flags().BoolVar(&orchJSON, "json", false, "print the raw JSON result")
	rootCmd.AddCommand(orchestrateCmd)
}
