package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/calderglen/joinery-imports/internal/importer"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the registered importers",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tLABEL\tFIELDS\tGROUPED BY\tPOLICY")
		for _, def := range importer.All() {
			grouped := "-"
			if def.GroupField != "" {
				grouped = def.GroupField
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				def.Key, def.Label, strings.Join(def.FieldNames(), ","), grouped, policyName(def.Policy))
		}
		return w.Flush()
	},
}

func policyName(p importer.SubmitPolicy) string {
	if p == importer.SkipInvalid {
		return "skip-invalid"
	}
	return "block-on-error"
}

func init() {
	rootCmd.AddCommand(listCmd)
}
