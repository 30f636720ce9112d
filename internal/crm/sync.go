// Package crm pushes qualified leads to external CRM targets. Targets are
// optional: a nil client simply skips that destination.
package crm

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/ratelimit"
	"github.com/sells-group/leadgen-cli/internal/store"
	"github.com/sells-group/leadgen-cli/pkg/notion"
	"github.com/sells-group/leadgen-cli/pkg/salesforce"
)

var titleCaser = cases.Title(language.English)

// Result summarizes one sync pass.
type Result struct {
	Pushed  int `json:"pushed"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Syncer mirrors qualified leads into Salesforce and Notion.
type Syncer struct {
	store   store.Store
	sf      salesforce.Client
	notion  notion.Client
	limiter *ratelimit.Limiter
}

// NewSyncer creates a Syncer. Either CRM client may be nil.
func NewSyncer(st store.Store, sf salesforce.Client, nt notion.Client, limiter *ratelimit.Limiter) *Syncer {
	return &Syncer{
		store:   st,
		sf:      sf,
		notion:  nt,
		limiter: limiter,
	}
}

// sfLeadRef is the slice element decoded from the dedupe SOQL query.
type sfLeadRef struct {
	Website string `json:"Website"`
}

// Sync pushes every qualified lead not yet synced. Per-lead failures are
// counted and the pass continues.
func (s *Syncer) Sync(ctx context.Context, minScore int) (*Result, error) {
	leads, err := s.store.ListLeads(ctx, store.Filter{
		Status:   model.StatusQualified,
		MinScore: minScore,
	})
	if err != nil {
		return nil, err
	}

	existing := s.existingWebsites(ctx)

	result := &Result{}
	for _, lead := range leads {
		if lead.CRMSyncedAt != nil {
			result.Skipped++
			continue
		}
		if lead.Website != "" && existing[lead.Website] {
			// Already in Salesforce from an earlier run. Stamp it so the
			// next pass skips the remote lookup.
			if err := s.store.MarkCRMSynced(ctx, lead.ID); err != nil {
				zap.L().Error("crm: mark synced failed", zap.Int64("lead_id", lead.ID), zap.Error(err))
			}
			result.Skipped++
			continue
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return result, err
		}

		if err := s.push(ctx, lead); err != nil {
			result.Errors++
			zap.L().Error("crm: push failed",
				zap.Int64("lead_id", lead.ID),
				zap.String("name", lead.Name),
				zap.Error(err),
			)
			continue
		}

		if err := s.store.MarkCRMSynced(ctx, lead.ID); err != nil {
			result.Errors++
			zap.L().Error("crm: mark synced failed", zap.Int64("lead_id", lead.ID), zap.Error(err))
			continue
		}
		result.Pushed++
	}

	zap.L().Info("crm: sync complete",
		zap.Int("pushed", result.Pushed),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", result.Errors),
	)
	return result, nil
}

// existingWebsites collects the websites of Lead records already in
// Salesforce, so re-runs after a local database reset do not create remote
// duplicates. A query failure disables the check for this pass only.
func (s *Syncer) existingWebsites(ctx context.Context) map[string]bool {
	if s.sf == nil {
		return nil
	}

	var refs []sfLeadRef
	if err := s.sf.Query(ctx, "SELECT Website FROM Lead WHERE LeadSource = 'Web'", &refs); err != nil {
		zap.L().Warn("crm: existing lead query failed, pushing without dedupe", zap.Error(err))
		return nil
	}

	existing := make(map[string]bool, len(refs))
	for _, r := range refs {
		if r.Website != "" {
			existing[r.Website] = true
		}
	}
	return existing
}

// push sends the lead to every configured target in parallel.
func (s *Syncer) push(ctx context.Context, lead model.Lead) error {
	g, gctx := errgroup.WithContext(ctx)
	if s.sf != nil {
		g.Go(func() error {
			_, err := s.sf.InsertOne(gctx, "Lead", salesforceRecord(lead))
			return err
		})
	}
	if s.notion != nil {
		g.Go(func() error {
			_, err := s.notion.CreateCard(gctx, notionCard(lead))
			return err
		})
	}
	return g.Wait()
}

// salesforceRecord maps a lead onto the standard Lead sObject. LastName is
// required by Salesforce; scraped listings carry no person name, so the
// business name stands in.
func salesforceRecord(lead model.Lead) map[string]any {
	record := map[string]any{
		"Company":     titleCaser.String(strings.ToLower(lead.Name)),
		"LastName":    titleCaser.String(strings.ToLower(lead.Name)),
		"City":        lead.City,
		"State":       lead.State,
		"PostalCode":  lead.PostalCode,
		"Country":     lead.Country,
		"Phone":       lead.Phone,
		"Website":     lead.Website,
		"LeadSource":  "Web",
		"Description": strings.Join(lead.Insights, "\n"),
	}
	if lead.Email != "" {
		record["Email"] = lead.Email
	}
	if lead.Category != "" {
		record["Industry"] = titleCaser.String(lead.Category)
	}
	return record
}

func notionCard(lead model.Lead) notion.Card {
	return notion.Card{
		Name:     titleCaser.String(strings.ToLower(lead.Name)),
		Category: titleCaser.String(lead.Category),
		City:     lead.City,
		Score:    lead.Score,
		Status:   string(lead.Status),
		Email:    lead.Email,
		Phone:    lead.Phone,
		Website:  lead.Website,
		MapsURL:  lead.MapsURL,
	}
}
