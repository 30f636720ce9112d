package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen-cli/internal/export"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/store"
)

var (
	exportOut      string
	exportFormat   string
	exportStatus   string
	exportMinScore int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export leads to a CSV or XLSX file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		leads, err := st.ListLeads(ctx, store.Filter{
			Status:   model.Status(exportStatus),
			MinScore: exportMinScore,
		})
		if err != nil {
			return err
		}

		switch exportFormat {
		case "csv":
			err = export.CSV(leads, exportOut)
		case "xlsx":
			err = export.XLSX(leads, exportOut)
		default:
			return eris.Errorf("unknown export format %q (csv or xlsx)", exportFormat)
		}
		if err != nil {
			return err
		}

		fmt.Printf("exported %d leads to %s\n", len(leads), exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "leads.csv", "output file path")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "export format: csv or xlsx")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "filter by status")
	exportCmd.Flags().IntVar(&exportMinScore, "min-score", 0, "filter by minimum score")
	rootCmd.AddCommand(exportCmd)
}
