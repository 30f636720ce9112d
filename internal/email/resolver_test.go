package email

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider implements Provider for testing.
type mockProvider struct {
	name   string
	lookup *Lookup
	err    error
	calls  int
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) FindEmail(_ context.Context, _, _, _ string) (*Lookup, error) {
	m.calls++
	return m.lookup, m.err
}

func TestFindFirstProviderWins(t *testing.T) {
	first := &mockProvider{name: "first", lookup: &Lookup{Email: "owner@example.com", Confidence: 85}}
	second := &mockProvider{name: "second", lookup: &Lookup{Email: "other@example.com", Confidence: 99}}
	r := NewResolver([]Provider{first, second}, nil)

	res := r.Find(context.Background(), "example.com", "", "")

	assert.Equal(t, "owner@example.com", res.Email)
	assert.Equal(t, 85, res.Confidence)
	assert.Equal(t, "first", res.Provider)
	assert.False(t, res.Guessed)
	assert.Equal(t, 0, second.calls)
}

func TestFindFallsThroughOnProviderError(t *testing.T) {
	failing := &mockProvider{name: "failing", err: eris.New("quota exceeded")}
	working := &mockProvider{name: "working", lookup: &Lookup{Email: "hello@example.com", Confidence: 70}}
	r := NewResolver([]Provider{failing, working}, nil)

	res := r.Find(context.Background(), "example.com", "", "")

	assert.Equal(t, "hello@example.com", res.Email)
	assert.Equal(t, "working", res.Provider)
	assert.Equal(t, 1, failing.calls)
}

func TestFindSkipsMalformedProviderResult(t *testing.T) {
	bad := &mockProvider{name: "bad", lookup: &Lookup{Email: "not-an-email", Confidence: 95}}
	r := NewResolver([]Provider{bad}, nil)

	res := r.Find(context.Background(), "example.com", "", "")

	assert.True(t, res.Guessed)
	assert.Equal(t, "info@example.com", res.Email)
}

func TestFindGuessesWhenAllProvidersEmpty(t *testing.T) {
	empty := &mockProvider{name: "empty"}
	r := NewResolver([]Provider{empty}, nil)

	res := r.Find(context.Background(), "https://www.example.com/about?ref=maps", "", "")

	assert.Equal(t, "info@example.com", res.Email)
	assert.Equal(t, "pattern", res.Provider)
	assert.True(t, res.Guessed)
	assert.Equal(t, 0, res.Confidence)
}

func TestFindWithNoProvidersStillGuesses(t *testing.T) {
	r := NewResolver(nil, nil)

	res := r.Find(context.Background(), "example.com", "", "")

	require.Equal(t, "info@example.com", res.Email)
	assert.True(t, res.Guessed)
}

func TestFindEmptyDomain(t *testing.T) {
	r := NewResolver(nil, nil)

	assert.Empty(t, r.Find(context.Background(), "", "", "").Email)
	assert.Empty(t, r.Find(context.Background(), "https://", "", "").Email)
	assert.Empty(t, r.Find(context.Background(), "localhost", "", "").Email)
}

func TestCleanDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/path", "example.com"},
		{"http://example.com?q=1", "example.com"},
		{"https://www.example.com", "example.com"},
		{"example.com", "example.com"},
		{"https://sub.example.co.uk/a/b", "sub.example.co.uk"},
		{"no-dot", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanDomain(tt.in), tt.in)
	}
}

// mockVerifier implements Verifier for testing.
type mockVerifier struct {
	result *Verification
	err    error
}

func (m *mockVerifier) Verify(_ context.Context, _ string) (*Verification, error) {
	return m.result, m.err
}

func TestVerifyInvalidFormat(t *testing.T) {
	r := NewResolver(nil, &mockVerifier{})

	v := r.Verify(context.Background(), "not-an-email")
	assert.False(t, v.Valid)
	assert.Equal(t, "invalid_format", v.Reason)
}

func TestVerifyUsesExternalVerifier(t *testing.T) {
	r := NewResolver(nil, &mockVerifier{result: &Verification{
		Valid: true, Reason: "deliverable", Score: 92, Provider: "hunter",
	}})

	v := r.Verify(context.Background(), "owner@example.com")
	assert.True(t, v.Valid)
	assert.Equal(t, "deliverable", v.Reason)
	assert.Equal(t, 92, v.Score)
}

func TestVerifyFallsBackToFormatCheck(t *testing.T) {
	r := NewResolver(nil, &mockVerifier{err: eris.New("api down")})

	v := r.Verify(context.Background(), "owner@example.com")
	assert.True(t, v.Valid)
	assert.Equal(t, "format_valid", v.Reason)
	assert.Equal(t, "basic", v.Provider)
}

func TestVerifyWithoutVerifier(t *testing.T) {
	r := NewResolver(nil, nil)

	v := r.Verify(context.Background(), "owner@example.com")
	assert.True(t, v.Valid)
	assert.Equal(t, "format_valid", v.Reason)
}
