package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen-cli/internal/ratelimit"
)

var crmMinScore int

var crmSyncCmd = &cobra.Command{
	Use:   "crm-sync",
	Short: "Push qualified leads to the configured CRM targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		limits := ratelimit.NewRegistry(ratelimit.Limits{
			ScraperPerMinute: cfg.Limits.ScraperPerMinute,
			AIPerMinute:      cfg.Limits.AIPerMinute,
			EmailPerMinute:   cfg.Limits.EmailPerMinute,
			CRMPerMinute:     cfg.Limits.CRMPerMinute,
		})

		syncer, err := initSyncer(st, limits)
		if err != nil {
			return err
		}

		minScore := crmMinScore
		if minScore == 0 {
			minScore = cfg.Pipeline.MinScore
		}

		result, err := syncer.Sync(ctx, minScore)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	crmSyncCmd.Flags().IntVar(&crmMinScore, "min-score", 0, "minimum score to sync (default from config)")
	rootCmd.AddCommand(crmSyncCmd)
}
