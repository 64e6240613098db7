package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/lead-engine/internal/tools"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the agent's tool catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := tools.NewRegistry(tools.Deps{})
		w := cmd.OutOrStdout()
		for _, s := range registry.Specs(tools.AllEnabled) {
			fmt.Fprintf(w, "%s\n  %s\n", s.Name, s.Description)
			props := make([]string, 0, len(s.InputSchema.Properties))
			for name := range s.InputSchema.Properties {
				props = append(props, name)
			}
			sort.Strings(props)
			for _, name := range props {
				p := s.InputSchema.Properties[name]
				req := ""
				for _, r := range s.InputSchema.Required {
					if r == name {
						req = " (required)"
					}
				}
				line := fmt.Sprintf("    %s: %s%s", name, p.Type, req)
				if len(p.Enum) > 0 {
					line += " [" + strings.Join(p.Enum, "|") + "]"
				}
				fmt.Fprintln(w, line)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}
