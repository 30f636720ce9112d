package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen-cli/internal/pipeline"
)

var (
	genQuery       string
	genMaxResults  int
	genMinRating   float64
	genAutoQualify bool
	genMinScore    int
)

var generateCmd = &cobra.Command{
	Use:     "generate",
	Aliases: []string{"run"},
	Short:   "Run the lead generation pipeline for one search query",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		minScore := genMinScore
		if minScore == 0 {
			minScore = cfg.Pipeline.MinScore
		}
		minRating := genMinRating
		if minRating == 0 {
			minRating = cfg.Pipeline.MinRating
		}

		stats, err := env.Pipeline.Run(ctx, pipeline.Params{
			Query:       genQuery,
			MaxResults:  genMaxResults,
			MinRating:   minRating,
			AutoQualify: genAutoQualify,
			MinScore:    minScore,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

func init() {
	generateCmd.Flags().StringVar(&genQuery, "query", "", "search query, e.g. \"plumbers in Austin TX\"")
	generateCmd.Flags().IntVar(&genMaxResults, "max-results", 20, "maximum businesses to scrape")
	generateCmd.Flags().Float64Var(&genMinRating, "min-rating", 0, "minimum star rating (default from config)")
	generateCmd.Flags().BoolVar(&genAutoQualify, "auto-qualify", false, "mark leads at or above --min-score as qualified")
	generateCmd.Flags().IntVar(&genMinScore, "min-score", 0, "qualification score threshold (default from config)")
	generateCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(generateCmd)
}
