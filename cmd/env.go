package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/cache"
	"github.com/sells-group/leadgen-cli/internal/crm"
	"github.com/sells-group/leadgen-cli/internal/email"
	"github.com/sells-group/leadgen-cli/internal/enrich"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/internal/ratelimit"
	"github.com/sells-group/leadgen-cli/internal/scraper"
	"github.com/sells-group/leadgen-cli/internal/store"
	anthropicpkg "github.com/sells-group/leadgen-cli/pkg/anthropic"
	"github.com/sells-group/leadgen-cli/pkg/gmaps"
	"github.com/sells-group/leadgen-cli/pkg/hunter"
	notionpkg "github.com/sells-group/leadgen-cli/pkg/notion"
	sfpkg "github.com/sells-group/leadgen-cli/pkg/salesforce"
	"github.com/sells-group/leadgen-cli/pkg/snov"
)

// pipelineEnv holds the initialized store, clients, and pipeline shared by
// the generate/serve commands.
type pipelineEnv struct {
	Store    store.Store
	Cache    *cache.Cache
	Pipeline *pipeline.Pipeline
	Limits   *ratelimit.Registry
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Cache != nil {
		_ = pe.Cache.Close()
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initPipeline sets up the store, cache, all API clients, and the pipeline.
// Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	c, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	limits := ratelimit.NewRegistry(ratelimit.Limits{
		ScraperPerMinute: cfg.Limits.ScraperPerMinute,
		AIPerMinute:      cfg.Limits.AIPerMinute,
		EmailPerMinute:   cfg.Limits.EmailPerMinute,
		CRMPerMinute:     cfg.Limits.CRMPerMinute,
	})

	mapsClient := gmaps.NewClient(cfg.Scraper.Token,
		gmaps.WithBaseURL(cfg.Scraper.BaseURL),
		gmaps.WithActorID(cfg.Scraper.ActorID),
		gmaps.WithTimeout(time.Duration(cfg.Scraper.TimeoutSecs)*time.Second),
	)
	sc := scraper.New(mapsClient, c, limits.Get(ratelimit.ServiceScraper),
		cfg.Scraper.Location, time.Duration(cfg.Cache.SearchTTLSecs)*time.Second)

	resolver := initResolver()

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	personalizer := enrich.NewPersonalizer(anthropicClient, limits.Get(ratelimit.ServiceAI),
		cfg.Anthropic.Model, cfg.Anthropic.MaxTokens, enrich.StyleProfessional)
	enricher := enrich.NewEngine(anthropicClient, c, limits.Get(ratelimit.ServiceAI), resolver, personalizer,
		enrich.Options{
			Model:       cfg.Anthropic.Model,
			MaxTokens:   cfg.Anthropic.MaxTokens,
			AnalysisTTL: time.Duration(cfg.Cache.AnalysisTTLSecs) * time.Second,
			MinScore:    cfg.Pipeline.MinScore,
		})

	return &pipelineEnv{
		Store:    st,
		Cache:    c,
		Pipeline: pipeline.New(sc, enricher, st),
		Limits:   limits,
	}, nil
}

// initResolver builds the email lookup cascade from whichever providers have
// credentials configured. With none, resolution falls through to pattern
// guessing.
func initResolver() *email.Resolver {
	httpClient := &http.Client{Timeout: 15 * time.Second}

	var providers []email.Provider
	var verifier email.Verifier
	if cfg.Email.HunterKey != "" {
		hc := hunter.NewClient(cfg.Email.HunterKey, hunter.WithHTTPClient(httpClient))
		providers = append(providers, email.NewHunterProvider(hc))
		verifier = email.NewHunterVerifier(hc)
	}
	if cfg.Email.SnovClientID != "" && cfg.Email.SnovClientSecret != "" {
		sc := snov.NewClient(cfg.Email.SnovClientID, cfg.Email.SnovClientSecret, snov.WithHTTPClient(httpClient))
		providers = append(providers, email.NewSnovProvider(sc))
	}
	if len(providers) == 0 {
		zap.L().Debug("no email lookup providers configured, using pattern guessing only")
	}
	return email.NewResolver(providers, verifier)
}

// initSalesforce authenticates against Salesforce with the configured JWT
// key. Returns nil when Salesforce is not configured.
func initSalesforce() (sfpkg.Client, error) {
	if cfg.Salesforce.ClientID == "" {
		return nil, nil
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	rps := float64(cfg.Limits.CRMPerMinute) / 60
	return sfpkg.NewClient(sf, sfpkg.WithRateLimit(rps)), nil
}

// initSyncer wires the CRM sync from whichever targets are configured.
func initSyncer(st store.Store, limits *ratelimit.Registry) (*crm.Syncer, error) {
	sfClient, err := initSalesforce()
	if err != nil {
		return nil, err
	}

	var notionClient notionpkg.Client
	if cfg.Notion.Token != "" && cfg.Notion.LeadDB != "" {
		notionClient = notionpkg.NewClient(cfg.Notion.Token, cfg.Notion.LeadDB)
	}

	if sfClient == nil && notionClient == nil {
		return nil, eris.New("no CRM target configured: set salesforce or notion credentials")
	}
	return crm.NewSyncer(st, sfClient, notionClient, limits.Get(ratelimit.ServiceCRM)), nil
}
