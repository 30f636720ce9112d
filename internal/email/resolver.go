// Package email discovers contact addresses for business domains through an
// ordered cascade of lookup providers, ending in a synthesized guess.
package email

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadgen-cli/internal/validate"
)

// Lookup is a single provider result.
type Lookup struct {
	Email      string
	Confidence int // 0-100
}

// Provider is one external email-lookup backend. Implementations return
// (nil, nil) when they have no candidate for the domain.
type Provider interface {
	Name() string
	FindEmail(ctx context.Context, domain, firstName, lastName string) (*Lookup, error)
}

// Resolution is the outcome of a resolver cascade. Guessed distinguishes a
// synthesized pattern address from a provider-verified lookup so callers can
// weigh the two differently.
type Resolution struct {
	Email      string `json:"email"`
	Confidence int    `json:"confidence"`
	Provider   string `json:"provider"`
	Guessed    bool   `json:"guessed"`
}

// Verification is the structured result of a deliverability check.
type Verification struct {
	Valid    bool   `json:"valid"`
	Reason   string `json:"reason"`
	Score    int    `json:"score"`
	Provider string `json:"provider"`
}

// Verifier performs an external deliverability check. Optional.
type Verifier interface {
	Verify(ctx context.Context, email string) (*Verification, error)
}

// minProviderInterval spaces consecutive calls to the same provider.
const minProviderInterval = 500 * time.Millisecond

// Resolver tries providers in configuration order; the first plausible
// address wins. Given a non-empty domain it always produces a best guess.
type Resolver struct {
	providers []Provider
	verifier  Verifier
	spacing   map[string]*rate.Limiter
}

// NewResolver creates a Resolver over the given providers, in order.
func NewResolver(providers []Provider, verifier Verifier) *Resolver {
	spacing := make(map[string]*rate.Limiter, len(providers))
	for _, p := range providers {
		spacing[p.Name()] = rate.NewLimiter(rate.Every(minProviderInterval), 1)
	}
	return &Resolver{
		providers: providers,
		verifier:  verifier,
		spacing:   spacing,
	}
}

// CleanDomain strips scheme, path, and query from a website value, leaving
// the bare host. Returns "" when no plausible domain remains.
func CleanDomain(website string) string {
	domain := strings.TrimPrefix(website, "http://")
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "www.")
	if i := strings.IndexAny(domain, "/?"); i >= 0 {
		domain = domain[:i]
	}
	domain = strings.TrimSpace(domain)
	if domain == "" || !strings.Contains(domain, ".") {
		return ""
	}
	return domain
}

// Find resolves a contact address for domain. Provider failures are logged
// and skipped; if every provider comes up empty (or none is configured) the
// result is a synthesized info@ address marked as guessed.
func (r *Resolver) Find(ctx context.Context, domain, firstName, lastName string) Resolution {
	domain = CleanDomain(domain)
	if domain == "" {
		return Resolution{}
	}

	for _, p := range r.providers {
		if lim := r.spacing[p.Name()]; lim != nil {
			if err := lim.Wait(ctx); err != nil {
				break
			}
		}

		lookup, err := p.FindEmail(ctx, domain, firstName, lastName)
		if err != nil {
			zap.L().Warn("email: provider lookup failed",
				zap.String("provider", p.Name()),
				zap.String("domain", domain),
				zap.Error(err),
			)
			continue
		}
		if lookup == nil || lookup.Email == "" || !validate.Email(lookup.Email) {
			continue
		}

		zap.L().Info("email: found via provider",
			zap.String("provider", p.Name()),
			zap.String("domain", domain),
			zap.Int("confidence", lookup.Confidence),
		)
		return Resolution{
			Email:      lookup.Email,
			Confidence: lookup.Confidence,
			Provider:   p.Name(),
		}
	}

	zap.L().Debug("email: no provider result, synthesizing pattern", zap.String("domain", domain))
	return Resolution{
		Email:    "info@" + domain,
		Provider: "pattern",
		Guessed:  true,
	}
}

// Verify checks email format and, when an external verifier is configured,
// deliverability. It always returns a structured result.
func (r *Resolver) Verify(ctx context.Context, email string) Verification {
	if !validate.Email(email) {
		return Verification{Valid: false, Reason: "invalid_format"}
	}

	if r.verifier != nil {
		v, err := r.verifier.Verify(ctx, email)
		if err != nil {
			zap.L().Debug("email: external verification failed", zap.Error(err))
		} else if v != nil {
			return *v
		}
	}

	return Verification{
		Valid:    true,
		Reason:   "format_valid",
		Score:    50,
		Provider: "basic",
	}
}
