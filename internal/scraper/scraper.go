// Package scraper turns raw maps-scraper output into pipeline input,
// applying validation, caching, rate limiting, and rating filters.
package scraper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/cache"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/ratelimit"
	"github.com/sells-group/leadgen-cli/internal/validate"
	"github.com/sells-group/leadgen-cli/pkg/gmaps"
)

// Scraper fetches businesses matching a search query. All failure modes
// degrade to an empty result list; the pipeline treats that the same as a
// search with no matches.
type Scraper struct {
	client    gmaps.Client
	cache     *cache.Cache
	limiter   *ratelimit.Limiter
	location  string
	searchTTL time.Duration
}

// New creates a Scraper with explicit dependencies.
func New(client gmaps.Client, c *cache.Cache, limiter *ratelimit.Limiter, location string, searchTTL time.Duration) *Scraper {
	return &Scraper{
		client:    client,
		cache:     c,
		limiter:   limiter,
		location:  location,
		searchTTL: searchTTL,
	}
}

// Scrape searches the maps service and returns businesses with rating at
// least minRating. Identical (query, maxResults, minRating) calls within the
// cache TTL issue at most one external call.
func (s *Scraper) Scrape(ctx context.Context, query string, maxResults int, minRating float64) []model.RawBusiness {
	start := time.Now()

	if err := validate.SearchQuery(query); err != nil {
		zap.L().Error("scraper: invalid search query", zap.String("query", query), zap.Error(err))
		return nil
	}

	zap.L().Info("scraper: searching",
		zap.String("query", query),
		zap.Int("max_results", maxResults),
		zap.Float64("min_rating", minRating),
	)

	cacheKey := fmt.Sprintf("maps_search:%s:%d:%.1f", query, maxResults, minRating)
	var cached []model.RawBusiness
	if found, err := s.cache.Get(ctx, cacheKey, s.searchTTL, &cached); err != nil {
		zap.L().Warn("scraper: cache read failed", zap.Error(err))
	} else if found {
		zap.L().Info("scraper: cache hit", zap.String("query", query), zap.Int("results", len(cached)))
		return cached
	}

	if err := s.limiter.Wait(ctx); err != nil {
		zap.L().Error("scraper: rate limit wait cancelled", zap.Error(err))
		return nil
	}

	apiStart := time.Now()
	places, err := s.client.Search(ctx, gmaps.SearchRequest{
		Query:      query,
		MaxResults: maxResults,
		Location:   s.location,
	})
	if err != nil {
		zap.L().Error("scraper: maps search failed",
			zap.String("service", "gmaps"),
			zap.Duration("duration", time.Since(apiStart)),
			zap.Error(err),
		)
		return nil
	}

	zap.L().Info("scraper: scraped businesses",
		zap.Int("count", len(places)),
		zap.Duration("duration", time.Since(apiStart)),
	)

	// Keep only rated businesses at or above the floor. A missing rating
	// compares as zero and is dropped.
	filtered := make([]model.RawBusiness, 0, len(places))
	for _, p := range places {
		var rating float64
		if p.TotalScore != nil {
			rating = *p.TotalScore
		}
		if rating < minRating {
			continue
		}
		filtered = append(filtered, toRawBusiness(p, rating))
	}

	zap.L().Info("scraper: rating filter applied",
		zap.Int("kept", len(filtered)),
		zap.Int("dropped", len(places)-len(filtered)),
	)

	if err := s.cache.Set(ctx, cacheKey, filtered); err != nil {
		zap.L().Warn("scraper: cache write failed", zap.Error(err))
	}

	zap.L().Info("scraper: search complete",
		zap.String("query", query),
		zap.Duration("duration", time.Since(start)),
	)
	return filtered
}

func toRawBusiness(p gmaps.Place, rating float64) model.RawBusiness {
	country := p.CountryCode
	if country == "" {
		country = "US"
	}
	return model.RawBusiness{
		Name:        p.Title,
		Category:    p.CategoryName,
		Address:     p.Address,
		City:        p.City,
		State:       p.State,
		PostalCode:  p.PostalCode,
		Country:     country,
		Phone:       p.Phone,
		Website:     p.Website,
		Rating:      rating,
		ReviewCount: p.ReviewsCount,
		MapsURL:     p.URL,
		PlaceID:     p.PlaceID,
		IsClaimed:   !p.ClaimThisBusiness,
		IsOpen:      !p.TemporarilyClosed,
		PriceLevel:  p.PriceLevel,
	}
}
