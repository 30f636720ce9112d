package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/store"
)

var (
	leadsStatus   string
	leadsCity     string
	leadsCategory string
	leadsMinScore int
	leadsLimit    int
	leadsFormat   string
	leadsSearch   string
	statusNote    string
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List and search stored leads",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		var leads []model.Lead
		if leadsSearch != "" {
			leads, err = st.SearchLeads(ctx, leadsSearch)
		} else {
			leads, err = st.ListLeads(ctx, store.Filter{
				Status:   model.Status(leadsStatus),
				City:     leadsCity,
				Category: leadsCategory,
				MinScore: leadsMinScore,
				Limit:    leadsLimit,
			})
		}
		if err != nil {
			return err
		}

		return printLeads(leads, leadsFormat)
	},
}

var leadStatusCmd = &cobra.Command{
	Use:   "status <lead-id> <new-status>",
	Short: "Transition a lead to a new status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid lead id %q", args[0])
		}
		status := model.Status(args[1])
		if !model.ValidStatus(status) {
			return fmt.Errorf("invalid status %q (one of: new, qualified, contacted, converted, rejected)", args[1])
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.UpdateStatus(ctx, id, status, statusNote); err != nil {
			return err
		}
		fmt.Printf("lead %d -> %s\n", id, status)
		return nil
	},
}

func printLeads(leads []model.Lead, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(leads)
	case "yaml":
		return yaml.NewEncoder(os.Stdout).Encode(leads)
	default:
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSCORE\tSTATUS\tNAME\tCITY\tCATEGORY\tEMAIL")
		for _, l := range leads {
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
				l.ID, l.Score, l.Status, l.Name, l.City, l.Category, l.Email)
		}
		return w.Flush()
	}
}

func init() {
	leadsCmd.Flags().StringVar(&leadsStatus, "status", "", "filter by status")
	leadsCmd.Flags().StringVar(&leadsCity, "city", "", "filter by city")
	leadsCmd.Flags().StringVar(&leadsCategory, "category", "", "filter by category")
	leadsCmd.Flags().IntVar(&leadsMinScore, "min-score", 0, "filter by minimum score")
	leadsCmd.Flags().IntVar(&leadsLimit, "limit", 50, "maximum rows")
	leadsCmd.Flags().StringVar(&leadsFormat, "format", "table", "output format: table, json, yaml")
	leadsCmd.Flags().StringVar(&leadsSearch, "search", "", "free-text search over name, category, city")

	leadStatusCmd.Flags().StringVar(&statusNote, "note", "", "note recorded with the status change")

	leadsCmd.AddCommand(leadStatusCmd)
	rootCmd.AddCommand(leadsCmd)
}
