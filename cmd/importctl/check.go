package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/calderglen/joinery-imports/internal/importer"
	"github.com/calderglen/joinery-imports/internal/sheet"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <importer> <file>",
	Short: "Run an importer's pipeline over a local file and report row errors",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, ok := importer.Get(args[0])
		if !ok {
			return fmt.Errorf("unknown importer %q", args[0])
		}

		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}

		table, err := sheet.Decode(data, filepath.Base(args[1]))
		if err != nil {
			return err
		}
		if err := sheet.RequireHeaders(table, def.RequiredHeaders); err != nil {
			return err
		}

		records := importer.MapRows(def, table)
		if len(records) == 0 {
			return fmt.Errorf("%s: no data rows below the header", args[1])
		}

		errs := importer.Validate(def, records)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %d rows, %d error(s)\n", args[1], len(records), len(errs))
		for _, e := range errs {
			fmt.Fprintf(out, "  row %d: %s\n", e.Row, e.Message)
		}

		if def.GroupField != "" {
			grouping, err := importer.BuildGroups(def, records)
			if err != nil {
				return err
			}
			for _, g := range grouping.Groups {
				fmt.Fprintf(out, "  %s %q: %d row(s)\n", def.GroupField, g.Key, len(g.Members))
			}
		}

		if len(errs) > 0 {
			return fmt.Errorf("%d validation error(s)", len(errs))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
