package email

import (
	"context"

	"github.com/sells-group/leadgen-cli/pkg/hunter"
	"github.com/sells-group/leadgen-cli/pkg/snov"
)

// HunterProvider adapts the Hunter.io client to the Provider interface.
type HunterProvider struct {
	client hunter.Client
}

// NewHunterProvider wraps a Hunter.io client.
func NewHunterProvider(client hunter.Client) *HunterProvider {
	return &HunterProvider{client: client}
}

func (p *HunterProvider) Name() string { return "hunter" }

// FindEmail returns the highest-confidence address Hunter knows for the
// domain, preferring generic addresses when no person name is given.
func (p *HunterProvider) FindEmail(ctx context.Context, domain, firstName, lastName string) (*Lookup, error) {
	resp, err := p.client.DomainSearch(ctx, hunter.DomainSearchRequest{
		Domain:    domain,
		FirstName: firstName,
		LastName:  lastName,
		Limit:     10,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data.Emails) == 0 {
		return nil, nil
	}

	best := resp.Data.Emails[0]
	for _, e := range resp.Data.Emails[1:] {
		if e.Confidence > best.Confidence {
			best = e
		}
	}
	return &Lookup{Email: best.Value, Confidence: best.Confidence}, nil
}

// HunterVerifier adapts Hunter's email-verifier endpoint to the Verifier
// interface.
type HunterVerifier struct {
	client hunter.Client
}

// NewHunterVerifier wraps a Hunter.io client for deliverability checks.
func NewHunterVerifier(client hunter.Client) *HunterVerifier {
	return &HunterVerifier{client: client}
}

func (v *HunterVerifier) Verify(ctx context.Context, email string) (*Verification, error) {
	resp, err := v.client.VerifyEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return &Verification{
		Valid:    resp.Data.Result == "deliverable",
		Reason:   resp.Data.Result,
		Score:    resp.Data.Score,
		Provider: "hunter",
	}, nil
}

// SnovProvider adapts the Snov.io client to the Provider interface.
type SnovProvider struct {
	client snov.Client
}

// NewSnovProvider wraps a Snov.io client.
func NewSnovProvider(client snov.Client) *SnovProvider {
	return &SnovProvider{client: client}
}

func (p *SnovProvider) Name() string { return "snov" }

// FindEmail returns the first valid address Snov knows for the domain, or
// the first address of any status when none is marked valid. Snov does not
// report numeric confidence, so status maps to a coarse score.
func (p *SnovProvider) FindEmail(ctx context.Context, domain, firstName, lastName string) (*Lookup, error) {
	emails, err := p.client.DomainEmails(ctx, domain, 10)
	if err != nil {
		return nil, err
	}
	if len(emails) == 0 {
		return nil, nil
	}

	for _, e := range emails {
		if e.Status == "valid" {
			return &Lookup{Email: e.Address, Confidence: 90}, nil
		}
	}
	return &Lookup{Email: emails[0].Address, Confidence: 50}, nil
}
