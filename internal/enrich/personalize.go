package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/ratelimit"
	"github.com/sells-group/leadgen-cli/internal/validate"
	"github.com/sells-group/leadgen-cli/pkg/anthropic"
)

// Style selects the voice of a generated outreach message.
type Style string

const (
	StyleProfessional Style = "professional"
	StyleFriendly     Style = "friendly"
	StyleDirect       Style = "direct"
)

var styleGuidance = map[Style]string{
	StyleProfessional: "Formal, respectful, and businesslike. No slang.",
	StyleFriendly:     "Warm and conversational, like a neighbor who happens to do this for a living.",
	StyleDirect:       "Short and to the point. Lead with the concrete opportunity.",
}

const outreachSystemPrompt = `You write short cold-outreach emails from a digital services agency
to local business owners. Reference specifics from the business profile. Keep it under 120 words,
no subject line, no signature placeholders. Output only the email body.`

// Personalizer drafts outreach messages for qualified leads.
type Personalizer struct {
	ai      anthropic.Client
	limiter *ratelimit.Limiter

	model     string
	maxTokens int64
	style     Style
}

// NewPersonalizer creates a Personalizer. An unknown style falls back to
// professional.
func NewPersonalizer(ai anthropic.Client, limiter *ratelimit.Limiter, modelID string, maxTokens int64, style Style) *Personalizer {
	if _, ok := styleGuidance[style]; !ok {
		style = StyleProfessional
	}
	return &Personalizer{
		ai:        ai,
		limiter:   limiter,
		model:     modelID,
		maxTokens: maxTokens,
		style:     style,
	}
}

// Outreach drafts a personalized message for the lead. On AI failure it
// returns a deterministic template so every qualified lead still ships with
// something sendable.
func (p *Personalizer) Outreach(ctx context.Context, lead model.Lead) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "enrich: outreach rate limit")
	}

	var signals []string
	if lead.Website == "" {
		signals = append(signals, "no website listed")
	}
	if !lead.IsClaimed {
		signals = append(signals, "maps listing unclaimed")
	}
	if lead.Rating >= 4.5 {
		signals = append(signals, "excellent reviews worth showcasing")
	}

	prompt := fmt.Sprintf(`Style: %s (%s)

Business profile:
Name: %s
Category: %s
City: %s
Rating: %.1f (%d reviews)
Opportunity signals: %s
Key insights: %s`,
		p.style, styleGuidance[p.style],
		validate.Sanitize(lead.Name, 200),
		validate.Sanitize(lead.Category, 100),
		validate.Sanitize(lead.City, 100),
		lead.Rating, lead.ReviewCount,
		strings.Join(signals, "; "),
		strings.Join(lead.Insights, "; "),
	)

	resp, err := p.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		System: []anthropic.SystemBlock{{
			Text:         outreachSystemPrompt,
			CacheControl: &anthropic.CacheControl{TTL: "1h"},
		}},
		Messages: []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		zap.L().Warn("enrich: outreach AI call failed, using template",
			zap.String("business", lead.Name),
			zap.Error(err),
		)
		return p.fallbackMessage(lead), nil
	}
	resp.Usage.LogCost(p.model, "outreach")

	msg := strings.TrimSpace(resp.Text())
	if msg == "" {
		return p.fallbackMessage(lead), nil
	}
	return msg, nil
}

// fallbackMessage builds a plain template message from listing facts.
func (p *Personalizer) fallbackMessage(lead model.Lead) string {
	opener := fmt.Sprintf("Hi, I came across %s", lead.Name)
	if lead.City != "" {
		opener += " in " + lead.City
	}
	body := opener + "."
	if lead.Rating > 0 {
		body += fmt.Sprintf(" Your %.1f-star rating across %d reviews stood out.", lead.Rating, lead.ReviewCount)
	}
	if lead.Website == "" {
		body += " I noticed you don't have a website listed, and we help local businesses build an online presence that turns searches into customers."
	} else {
		body += " We help local businesses get more out of their online presence, from search visibility to conversion."
	}
	body += " Would you be open to a quick chat this week?"
	return body
}

// Subject derives a short subject line for a lead's outreach email.
func Subject(lead model.Lead) string {
	if lead.Website == "" {
		return fmt.Sprintf("A website for %s", lead.Name)
	}
	return fmt.Sprintf("Growing %s online", lead.Name)
}
