package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"library-catalog/internal/client"
	"library-catalog/pkg/importer"
)

func (a *app) importCmd() *cobra.Command {
	var opts client.ImportOptions
	cmd := &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Upload a workbook of libraries and projects (staff only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			sum, err := a.svc.Import(cmd.Context(), filepath.Base(args[0]), f, opts)
			if sum != nil {
				if perr := a.printSummary(sum); perr != nil {
					return perr
				}
			}
			a.printAlerts()
			return err
		},
	}
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report without writing")
	cmd.Flags().IntVar(&opts.MaxErrors, "max-errors", 0, "abort after this many row errors (server default 50)")
	return cmd
}

func (a *app) printSummary(sum *importer.ImportSummary) error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SHEET\tINSERTED\tUPDATED\tSKIPPED\tERRORS")
	for _, s := range sum.Sheets {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", s.Name, s.Inserted, s.Updated, s.Skipped, s.Errors)
	}
	fmt.Fprintf(tw, "total\t%d\t%d\t%d\t%d\n", sum.Inserted, sum.Updated, sum.Skipped, sum.Errors)
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, s := range sum.Sheets {
		for _, e := range s.Samples {
			fmt.Fprintf(a.out, "  %s row %d: %s\n", e.Sheet, e.Row, e.Message)
		}
	}
	if sum.DryRun {
		fmt.Fprintln(a.out, "dry run: nothing was written")
	}
	return nil
}
