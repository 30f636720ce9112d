package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "leads.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleLead(placeID string) *model.Lead {
	return &model.Lead{
		Name:                "Hill Country Roofing",
		Category:            "Roofer",
		City:                "Austin",
		State:               "TX",
		Country:             "US",
		Phone:               "+15125550001",
		Website:             "https://roofing.example.com",
		Email:               "info@roofing.example.com",
		EmailGuessed:        true,
		EmailConfidence:     40,
		Rating:              4.6,
		ReviewCount:         88,
		PlaceID:             placeID,
		IsClaimed:           true,
		IsOpen:              true,
		Score:               77,
		Insights:            []string{"growing area"},
		Concerns:            []string{"seasonal demand"},
		RecommendedServices: []string{"SEO", "ads"},
		OutreachMessage:     "Hi there",
		Status:              model.StatusNew,
		Source:              "google_maps",
		ScrapedAt:           time.Now().UTC().Truncate(time.Second),
	}
}

func TestSaveAndGetLead(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	lead := sampleLead("p-1")
	require.NoError(t, s.SaveLead(ctx, lead))
	require.NotZero(t, lead.ID)

	got, err := s.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, lead.Name, got.Name)
	assert.Equal(t, lead.Score, got.Score)
	assert.Equal(t, lead.Insights, got.Insights)
	assert.Equal(t, lead.Concerns, got.Concerns)
	assert.Equal(t, lead.RecommendedServices, got.RecommendedServices)
	assert.Equal(t, lead.Email, got.Email)
	assert.True(t, got.EmailGuessed)
	assert.Equal(t, 40, got.EmailConfidence)
	assert.Equal(t, model.StatusNew, got.Status)
	assert.Nil(t, got.CRMSyncedAt)
}

func TestSaveLeadDuplicatePlaceID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveLead(ctx, sampleLead("dup")))

	err := s.SaveLead(ctx, sampleLead("dup"))
	assert.True(t, eris.Is(err, ErrDuplicateLead))

	leads, err := s.ListLeads(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, leads, 1)
}

func TestGetLeadNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetLead(context.Background(), 9999)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestListLeadsFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := sampleLead("a")
	a.City = "Austin"
	a.Score = 90
	b := sampleLead("b")
	b.City = "Dallas"
	b.Score = 50
	c := sampleLead("c")
	c.City = "Austin"
	c.Score = 70
	c.Category = "Plumber"
	for _, l := range []*model.Lead{a, b, c} {
		require.NoError(t, s.SaveLead(ctx, l))
	}

	austin, err := s.ListLeads(ctx, Filter{City: "Austin"})
	require.NoError(t, err)
	require.Len(t, austin, 2)
	// Ordered by score descending.
	assert.Equal(t, 90, austin[0].Score)

	high, err := s.ListLeads(ctx, Filter{MinScore: 60})
	require.NoError(t, err)
	assert.Len(t, high, 2)

	plumbers, err := s.ListLeads(ctx, Filter{Category: "Plumber"})
	require.NoError(t, err)
	assert.Len(t, plumbers, 1)

	limited, err := s.ListLeads(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSearchLeads(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveLead(ctx, sampleLead("p-1")))

	byName, err := s.SearchLeads(ctx, "Hill Country")
	require.NoError(t, err)
	assert.Len(t, byName, 1)

	byCity, err := s.SearchLeads(ctx, "Austin")
	require.NoError(t, err)
	assert.Len(t, byCity, 1)

	none, err := s.SearchLeads(ctx, "nonexistent")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpdateStatusAppendsNotes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	lead := sampleLead("p-1")
	require.NoError(t, s.SaveLead(ctx, lead))

	require.NoError(t, s.UpdateStatus(ctx, lead.ID, model.StatusQualified, "looks strong"))
	require.NoError(t, s.UpdateStatus(ctx, lead.ID, model.StatusContacted, "sent email"))

	got, err := s.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusContacted, got.Status)
	assert.Contains(t, got.Notes, "new -> qualified: looks strong")
	assert.Contains(t, got.Notes, "qualified -> contacted: sent email")

	var count int
	require.NoError(t, s.db.QueryRow(
		"SELECT COUNT(*) FROM interactions WHERE lead_id = ?", lead.ID).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestUpdateStatusInvalid(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	lead := sampleLead("p-1")
	require.NoError(t, s.SaveLead(ctx, lead))

	assert.Error(t, s.UpdateStatus(ctx, lead.ID, model.Status("archived"), ""))
	assert.True(t, eris.Is(s.UpdateStatus(ctx, 404, model.StatusQualified, ""), ErrNotFound))
}

func TestMarkCRMSynced(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	lead := sampleLead("p-1")
	require.NoError(t, s.SaveLead(ctx, lead))

	require.NoError(t, s.MarkCRMSynced(ctx, lead.ID))
	got, err := s.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CRMSyncedAt)

	assert.True(t, eris.Is(s.MarkCRMSynced(ctx, 404), ErrNotFound))
}

func TestStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := sampleLead("a")
	a.Score = 80
	b := sampleLead("b")
	b.Score = 60
	b.City = "Dallas"
	require.NoError(t, s.SaveLead(ctx, a))
	require.NoError(t, s.SaveLead(ctx, b))
	require.NoError(t, s.UpdateStatus(ctx, a.ID, model.StatusQualified, ""))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalLeads)
	assert.Equal(t, 70.0, stats.AvgScore)
	assert.Equal(t, 1, stats.ByStatus["new"])
	assert.Equal(t, 1, stats.ByStatus["qualified"])
	assert.Equal(t, 1, stats.TopCities["Austin"])
	assert.Equal(t, 1, stats.TopCities["Dallas"])
	assert.Equal(t, 2, stats.TopCategories["Roofer"])
}
