package main

import (
	"fmt"
	"os"

	"github.com/calderglen/joinery-imports/internal/importer"
	"github.com/calderglen/joinery-imports/internal/sheet"
	"github.com/spf13/cobra"
)

var templateOut string

var templateCmd = &cobra.Command{
	Use:   "template <importer>",
	Short: "Write a blank upload template for an importer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, ok := importer.Get(args[0])
		if !ok {
			return fmt.Errorf("unknown importer %q", args[0])
		}

		data, err := sheet.WriteTemplate(def.TemplateHeader(), def.SampleRows)
		if err != nil {
			return err
		}

		out := templateOut
		if out == "" {
			out = def.Key + "-template.xlsx"
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(data))
		return nil
	},
}

func init() {
	templateCmd.Flags().StringVarP(&templateOut, "out", "o", "", "output file (default <importer>-template.xlsx)")
	rootCmd.AddCommand(templateCmd)
}
