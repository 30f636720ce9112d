package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/cache"
	"github.com/sells-group/leadgen-cli/internal/email"
	"github.com/sells-group/leadgen-cli/internal/enrich"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/ratelimit"
	"github.com/sells-group/leadgen-cli/internal/scraper"
	"github.com/sells-group/leadgen-cli/internal/store"
	"github.com/sells-group/leadgen-cli/pkg/anthropic"
	"github.com/sells-group/leadgen-cli/pkg/gmaps"
)

// mockMaps implements gmaps.Client for testing.
type mockMaps struct {
	places []gmaps.Place
	err    error
}

func (m *mockMaps) Search(_ context.Context, _ gmaps.SearchRequest) ([]gmaps.Place, error) {
	return m.places, m.err
}

// proseAI implements anthropic.Client and replies with unparseable prose,
// forcing the enrichment engine onto its heuristic path.
type proseAI struct{}

func (proseAI) CreateMessage(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "what a lovely business"}},
	}, nil
}

// mockStore implements store.Store with in-memory duplicate tracking.
type mockStore struct {
	nextID      int64
	seenPlaces  map[string]bool
	saved       []model.Lead
	failNames   map[string]bool
	transitions []string
}

func newMockStore() *mockStore {
	return &mockStore{
		seenPlaces: map[string]bool{},
		failNames:  map[string]bool{},
	}
}

func (m *mockStore) Migrate(context.Context) error { return nil }
func (m *mockStore) Close() error                  { return nil }

func (m *mockStore) SaveLead(_ context.Context, lead *model.Lead) error {
	if m.failNames[lead.Name] {
		return eris.New("disk full")
	}
	if m.seenPlaces[lead.PlaceID] {
		return store.ErrDuplicateLead
	}
	m.seenPlaces[lead.PlaceID] = true
	m.nextID++
	lead.ID = m.nextID
	m.saved = append(m.saved, *lead)
	return nil
}

func (m *mockStore) GetLead(context.Context, int64) (*model.Lead, error) {
	return nil, store.ErrNotFound
}

func (m *mockStore) ListLeads(context.Context, store.Filter) ([]model.Lead, error) {
	return m.saved, nil
}

func (m *mockStore) SearchLeads(context.Context, string) ([]model.Lead, error) {
	return nil, nil
}

func (m *mockStore) UpdateStatus(_ context.Context, id int64, status model.Status, _ string) error {
	m.transitions = append(m.transitions, string(status))
	return nil
}

func (m *mockStore) MarkCRMSynced(context.Context, int64) error { return nil }

func (m *mockStore) Stats(context.Context) (*model.Stats, error) {
	return &model.Stats{}, nil
}

func rating(v float64) *float64 { return &v }

func newTestPipeline(t *testing.T, maps gmaps.Client, st store.Store) *Pipeline {
	t.Helper()
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	limiter := ratelimit.NewLimiter(1000, time.Minute)
	sc := scraper.New(maps, c, limiter, "", time.Hour)
	resolver := email.NewResolver(nil, nil)
	p := enrich.NewPersonalizer(proseAI{}, limiter, "m", 256, enrich.StyleProfessional)
	en := enrich.NewEngine(proseAI{}, c, limiter, resolver, p, enrich.Options{
		Model:       "m",
		MaxTokens:   256,
		AnalysisTTL: time.Hour,
		MinScore:    60,
	})
	return New(sc, en, st)
}

func TestRunEndToEnd(t *testing.T) {
	maps := &mockMaps{places: []gmaps.Place{
		// Heuristic score 100: maxed rating, reviews, website, unclaimed.
		{Title: "Strong Lead", PlaceID: "p1", TotalScore: rating(5.0), ReviewsCount: 300,
			Website: "https://strong.example.com", ClaimThisBusiness: true},
		// Heuristic score 83: no reviews, no website, claimed.
		{Title: "Weak Lead", PlaceID: "p2", TotalScore: rating(3.5)},
		// Same place ID as the first: counted as a duplicate.
		{Title: "Strong Lead Again", PlaceID: "p1", TotalScore: rating(5.0)},
		// Store rejects this one.
		{Title: "Broken", PlaceID: "p3", TotalScore: rating(4.0)},
	}}
	st := newMockStore()
	st.failNames["Broken"] = true
	p := newTestPipeline(t, maps, st)

	stats, err := p.Run(context.Background(), Params{
		Query:       "roofers in Austin",
		MaxResults:  20,
		MinRating:   3.0,
		AutoQualify: true,
		MinScore:    90,
	})
	require.NoError(t, err)

	assert.Equal(t, &Stats{
		TotalScraped: 4,
		Saved:        2,
		Qualified:    1,
		Duplicates:   1,
		Errors:       1,
		Success:      true,
	}, stats)
	assert.Equal(t, []string{"qualified"}, st.transitions)
}

func TestRunZeroScrapeIsFailure(t *testing.T) {
	st := newMockStore()
	p := newTestPipeline(t, &mockMaps{}, st)

	stats, err := p.Run(context.Background(), Params{Query: "nothing here", MaxResults: 5, MinRating: 3.0})
	require.NoError(t, err)
	assert.False(t, stats.Success)
	assert.Zero(t, stats.TotalScraped)
	assert.Empty(t, st.saved)
}

func TestRunScraperErrorIsFailure(t *testing.T) {
	st := newMockStore()
	p := newTestPipeline(t, &mockMaps{err: eris.New("actor down")}, st)

	stats, err := p.Run(context.Background(), Params{Query: "plumbers in Austin", MaxResults: 5, MinRating: 3.0})
	require.NoError(t, err)
	assert.False(t, stats.Success)
}

func TestRunWithoutAutoQualifyLeavesStatusNew(t *testing.T) {
	maps := &mockMaps{places: []gmaps.Place{
		{Title: "Lead", PlaceID: "p1", TotalScore: rating(5.0), ReviewsCount: 300,
			Website: "https://x.example.com", ClaimThisBusiness: true},
	}}
	st := newMockStore()
	p := newTestPipeline(t, maps, st)

	stats, err := p.Run(context.Background(), Params{Query: "cafes in Austin", MaxResults: 5, MinRating: 3.0})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Saved)
	assert.Zero(t, stats.Qualified)
	assert.Empty(t, st.transitions)
	require.Len(t, st.saved, 1)
	assert.Equal(t, model.StatusNew, st.saved[0].Status)
}

func TestRunCancelledContext(t *testing.T) {
	maps := &mockMaps{places: []gmaps.Place{
		{Title: "Lead", PlaceID: "p1", TotalScore: rating(5.0)},
	}}
	st := newMockStore()
	p := newTestPipeline(t, maps, st)

	ctx, cancel := context.WithCancel(context.Background())
	prime, err := p.Run(ctx, Params{Query: "cafes in Austin", MaxResults: 5, MinRating: 3.0})
	require.NoError(t, err)
	require.True(t, prime.Success)

	cancel()
	_, err = p.Run(ctx, Params{Query: "cafes in Austin", MaxResults: 5, MinRating: 3.0})
	assert.Error(t, err)
}
