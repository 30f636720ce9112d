// Package enrich scores scraped businesses with an AI relevance analysis,
// resolves contact emails, and drafts outreach messages. Enrichment never
// fails a record: every error path degrades to a usable lead.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/cache"
	"github.com/sells-group/leadgen-cli/internal/email"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/ratelimit"
	"github.com/sells-group/leadgen-cli/internal/validate"
	"github.com/sells-group/leadgen-cli/pkg/anthropic"
)

const analysisSystemPrompt = `You are a lead qualification analyst for a digital services agency.
Given a local business profile, assess how strong a prospect it is for web design,
SEO, and online marketing services. Respond with JSON only, no prose, matching:
{"score": <0-100>, "insights": [..], "concerns": [..], "recommended_services": [..]}`

// Engine enriches raw scraped businesses into persisted-ready leads.
type Engine struct {
	ai          anthropic.Client
	cache       *cache.Cache
	limiter     *ratelimit.Limiter
	resolver    *email.Resolver
	personalize *Personalizer

	model       string
	maxTokens   int64
	analysisTTL time.Duration
	minScore    int
}

// Options configures an Engine.
type Options struct {
	Model       string
	MaxTokens   int64
	AnalysisTTL time.Duration
	MinScore    int // outreach is drafted only at or above this score
}

// NewEngine creates an enrichment engine with explicit dependencies.
func NewEngine(ai anthropic.Client, c *cache.Cache, limiter *ratelimit.Limiter, resolver *email.Resolver, p *Personalizer, opts Options) *Engine {
	return &Engine{
		ai:          ai,
		cache:       c,
		limiter:     limiter,
		resolver:    resolver,
		personalize: p,
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		analysisTTL: opts.AnalysisTTL,
		minScore:    opts.MinScore,
	}
}

// Enrich converts a raw business into a lead. It never returns an error:
// any failure in email resolution, analysis, or outreach degrades to a
// baseline lead that a human can review.
func (e *Engine) Enrich(ctx context.Context, raw model.RawBusiness) model.Lead {
	lead := model.Lead{
		Name:        raw.Name,
		Category:    raw.Category,
		Address:     raw.Address,
		City:        raw.City,
		State:       raw.State,
		PostalCode:  raw.PostalCode,
		Country:     raw.Country,
		Phone:       raw.Phone,
		Website:     raw.Website,
		Rating:      raw.Rating,
		ReviewCount: raw.ReviewCount,
		MapsURL:     raw.MapsURL,
		PlaceID:     raw.PlaceID,
		IsClaimed:   raw.IsClaimed,
		IsOpen:      raw.IsOpen,
		PriceLevel:  raw.PriceLevel,
		Status:      model.StatusNew,
		Source:      "google_maps",
		ScrapedAt:   time.Now().UTC(),
	}

	e.resolveEmail(ctx, &lead, raw)

	analysis := e.safeAnalyze(ctx, raw)
	lead.Score = analysis.Score
	lead.Insights = analysis.Insights
	lead.Concerns = analysis.Concerns
	lead.RecommendedServices = analysis.RecommendedServices

	if lead.Score >= e.minScore {
		msg, err := e.personalize.Outreach(ctx, lead)
		if err != nil {
			zap.L().Warn("enrich: outreach generation failed",
				zap.String("business", raw.Name),
				zap.Error(err),
			)
		} else {
			lead.OutreachMessage = msg
		}
	}

	return lead
}

// resolveEmail fills lead contact email fields. A website value containing
// "@" is treated as an email address someone typed into the listing.
func (e *Engine) resolveEmail(ctx context.Context, lead *model.Lead, raw model.RawBusiness) {
	if strings.Contains(raw.Website, "@") {
		candidate := strings.TrimPrefix(raw.Website, "mailto:")
		if validate.Email(candidate) {
			lead.Email = candidate
			lead.EmailConfidence = 100
			lead.Website = ""
		}
		return
	}

	if raw.Website == "" {
		return
	}

	first, last := nameParts(raw.Name)
	res := e.resolver.Find(ctx, raw.Website, first, last)
	if res.Email == "" {
		return
	}
	lead.Email = res.Email
	lead.EmailGuessed = res.Guessed
	lead.EmailConfidence = res.Confidence
}

// nameParts splits a business name into rough first/last tokens for
// providers that match on people fields.
func nameParts(name string) (first, last string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	first = parts[0]
	if len(parts) > 1 {
		last = parts[len(parts)-1]
	}
	return first, last
}

// safeAnalyze guards the analysis path against panics from decode edge
// cases so a single bad record cannot abort a run.
func (e *Engine) safeAnalyze(ctx context.Context, raw model.RawBusiness) (analysis model.Analysis) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("enrich: analysis panicked",
				zap.String("business", raw.Name),
				zap.Any("panic", r),
			)
			analysis = FallbackAnalysis()
		}
	}()
	return e.analyze(ctx, raw)
}

// analyze produces the AI assessment for a business, reusing a cached
// analysis for the same category/city/rating segment when available.
func (e *Engine) analyze(ctx context.Context, raw model.RawBusiness) model.Analysis {
	// Segment-level key: similar businesses in the same city at the same
	// rating share one analysis, trading precision for API cost.
	cacheKey := fmt.Sprintf("ai_analysis:%s:%s:%.1f", raw.Category, raw.City, raw.Rating)

	var cached model.Analysis
	if found, err := e.cache.Get(ctx, cacheKey, e.analysisTTL, &cached); err != nil {
		zap.L().Warn("enrich: analysis cache read failed", zap.Error(err))
	} else if found {
		zap.L().Debug("enrich: analysis cache hit", zap.String("key", cacheKey))
		return cached
	}

	reply, err := e.requestAnalysis(ctx, raw)
	if err != nil {
		zap.L().Warn("enrich: AI analysis call failed, flagging for manual review",
			zap.String("business", raw.Name),
			zap.Error(err),
		)
		return FallbackAnalysis()
	}

	analysis, err := parseAnalysis(reply)
	if err != nil {
		zap.L().Warn("enrich: unparseable AI analysis, using heuristic score",
			zap.String("business", raw.Name),
			zap.Error(err),
		)
		return heuristicAnalysis(raw)
	}

	if err := e.cache.Set(ctx, cacheKey, analysis); err != nil {
		zap.L().Warn("enrich: analysis cache write failed", zap.Error(err))
	}
	return analysis
}

// requestAnalysis performs the rate-limited AI call and returns the raw
// reply text. Parsing is the caller's concern: a transport failure and an
// unusable reply degrade differently.
func (e *Engine) requestAnalysis(ctx context.Context, raw model.RawBusiness) (string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(`Business profile:
Name: %s
Category: %s
City: %s, %s
Rating: %.1f (%d reviews)
Website: %s
Listing claimed: %t
Price level: %s`,
		validate.Sanitize(raw.Name, 200),
		validate.Sanitize(raw.Category, 100),
		validate.Sanitize(raw.City, 100), raw.State,
		raw.Rating, raw.ReviewCount,
		raw.Website,
		raw.IsClaimed,
		raw.PriceLevel,
	)

	resp, err := e.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		System: []anthropic.SystemBlock{{
			Text:         analysisSystemPrompt,
			CacheControl: &anthropic.CacheControl{TTL: "1h"},
		}},
		Messages: []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(e.model, "lead_analysis")

	return resp.Text(), nil
}

// parseAnalysis decodes the model's JSON reply, tolerating markdown fences.
func parseAnalysis(text string) (model.Analysis, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var a model.Analysis
	if err := json.Unmarshal([]byte(text), &a); err != nil {
		return model.Analysis{}, err
	}
	if a.Score < 0 {
		a.Score = 0
	}
	if a.Score > 100 {
		a.Score = 100
	}
	return a, nil
}

// heuristicAnalysis scores a business from listing signals alone, for when
// the AI reply cannot be parsed. Bands start at a neutral 55 and add capped
// bonuses for reputation and opportunity signals.
func heuristicAnalysis(raw model.RawBusiness) model.Analysis {
	score := 55.0

	ratingBonus := raw.Rating * 8
	if ratingBonus > 32 {
		ratingBonus = 32
	}
	score += ratingBonus

	reviewBonus := float64(raw.ReviewCount) / 15
	if reviewBonus > 18 {
		reviewBonus = 18
	}
	score += reviewBonus

	if raw.Website != "" {
		score += 8
	}
	// An unclaimed listing signals an owner not yet invested in their
	// online presence, which is exactly who the agency wants to reach.
	if !raw.IsClaimed {
		score += 7
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	insights := []string{
		fmt.Sprintf("Rated %.1f across %d reviews", raw.Rating, raw.ReviewCount),
	}
	if raw.Website == "" {
		insights = append(insights, "No website listed - strong web design opportunity")
	} else {
		insights = append(insights, "Has a website that may need modernization")
	}
	if !raw.IsClaimed {
		insights = append(insights, "Listing unclaimed - owner likely underinvested in online presence")
	} else {
		insights = append(insights, "Listing claimed - owner engages with their online profile")
	}

	return model.Analysis{
		Score:    int(score),
		Insights: insights,
	}
}

// FallbackAnalysis is the last-resort assessment used when enrichment hits
// an unrecoverable condition. Flagged for manual review.
func FallbackAnalysis() model.Analysis {
	return model.Analysis{
		Score:    50,
		Insights: []string{"Basic lead - manual review needed"},
	}
}
