// Package pipeline orchestrates one lead-generation run: scrape, enrich,
// persist, and optionally auto-qualify.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/enrich"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/scraper"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// Params configures one pipeline run.
type Params struct {
	Query       string
	MaxResults  int
	MinRating   float64
	AutoQualify bool
	MinScore    int
}

// Stats summarizes one pipeline run. Success is false only when scraping
// produced nothing; per-record failures are counted, not fatal.
type Stats struct {
	TotalScraped int  `json:"total_scraped"`
	Saved        int  `json:"saved"`
	Qualified    int  `json:"qualified"`
	Duplicates   int  `json:"duplicates"`
	Errors       int  `json:"errors"`
	Success      bool `json:"success"`
}

// Pipeline wires the run stages together.
type Pipeline struct {
	scraper  *scraper.Scraper
	enricher *enrich.Engine
	store    store.Store
}

// New creates a Pipeline with explicit dependencies.
func New(sc *scraper.Scraper, en *enrich.Engine, st store.Store) *Pipeline {
	return &Pipeline{
		scraper:  sc,
		enricher: en,
		store:    st,
	}
}

// Run executes one full pass for the query. Individual record failures are
// logged and counted; the run continues. An error is returned only for
// conditions that invalidate the whole run.
func (p *Pipeline) Run(ctx context.Context, params Params) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}
	if err := ctx.Err(); err != nil {
		return stats, eris.Wrap(err, "pipeline: run cancelled")
	}
	runID := uuid.NewString()

	zap.L().Info("pipeline: run starting",
		zap.String("run_id", runID),
		zap.String("query", params.Query),
		zap.Int("max_results", params.MaxResults),
		zap.Float64("min_rating", params.MinRating),
		zap.Bool("auto_qualify", params.AutoQualify),
	)

	businesses := p.scraper.Scrape(ctx, params.Query, params.MaxResults, params.MinRating)
	stats.TotalScraped = len(businesses)
	if len(businesses) == 0 {
		zap.L().Warn("pipeline: no businesses scraped", zap.String("query", params.Query))
		return stats, nil
	}
	stats.Success = true

	for _, raw := range businesses {
		if err := ctx.Err(); err != nil {
			return stats, eris.Wrap(err, "pipeline: run cancelled")
		}

		lead := p.enricher.Enrich(ctx, raw)

		err := p.store.SaveLead(ctx, &lead)
		switch {
		case eris.Is(err, store.ErrDuplicateLead):
			stats.Duplicates++
			zap.L().Debug("pipeline: duplicate lead skipped",
				zap.String("name", lead.Name),
				zap.String("place_id", lead.PlaceID),
			)
			continue
		case err != nil:
			stats.Errors++
			zap.L().Error("pipeline: save failed",
				zap.String("name", lead.Name),
				zap.Error(err),
			)
			continue
		}
		stats.Saved++

		if params.AutoQualify && lead.Score >= params.MinScore {
			if err := p.store.UpdateStatus(ctx, lead.ID, model.StatusQualified, "auto-qualified by score"); err != nil {
				stats.Errors++
				zap.L().Error("pipeline: auto-qualify failed",
					zap.Int64("lead_id", lead.ID),
					zap.Error(err),
				)
				continue
			}
			stats.Qualified++
		}
	}

	zap.L().Info("pipeline: run complete",
		zap.String("run_id", runID),
		zap.Int("scraped", stats.TotalScraped),
		zap.Int("saved", stats.Saved),
		zap.Int("qualified", stats.Qualified),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("errors", stats.Errors),
		zap.Duration("duration", time.Since(start)),
	)
	return stats, nil
}
