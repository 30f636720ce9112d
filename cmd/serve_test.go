package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/cache"
	"github.com/sells-group/leadgen-cli/internal/config"
	"github.com/sells-group/leadgen-cli/internal/email"
	"github.com/sells-group/leadgen-cli/internal/enrich"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/internal/ratelimit"
	"github.com/sells-group/leadgen-cli/internal/scraper"
	"github.com/sells-group/leadgen-cli/internal/store"
	"github.com/sells-group/leadgen-cli/pkg/gmaps"
)

// apiStore implements store.Store over a fixed lead list, recording the
// filters and transitions it receives.
type apiStore struct {
	leads       []model.Lead
	lastFilter  store.Filter
	lastSearch  string
	transitions []string
}

func (s *apiStore) Migrate(context.Context) error { return nil }
func (s *apiStore) Close() error                  { return nil }

func (s *apiStore) SaveLead(context.Context, *model.Lead) error { return nil }

func (s *apiStore) GetLead(_ context.Context, id int64) (*model.Lead, error) {
	for i := range s.leads {
		if s.leads[i].ID == id {
			return &s.leads[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *apiStore) ListLeads(_ context.Context, f store.Filter) ([]model.Lead, error) {
	s.lastFilter = f
	return s.leads, nil
}

func (s *apiStore) SearchLeads(_ context.Context, query string) ([]model.Lead, error) {
	s.lastSearch = query
	return s.leads, nil
}

func (s *apiStore) UpdateStatus(_ context.Context, id int64, status model.Status, _ string) error {
	if _, err := s.GetLead(context.Background(), id); err != nil {
		return err
	}
	s.transitions = append(s.transitions, string(status))
	return nil
}

func (s *apiStore) MarkCRMSynced(context.Context, int64) error { return nil }

func (s *apiStore) Stats(context.Context) (*model.Stats, error) {
	return &model.Stats{TotalLeads: len(s.leads)}, nil
}

// recordingMaps implements gmaps.Client, signalling each search on a channel.
type recordingMaps struct {
	requests chan gmaps.SearchRequest
}

func (m *recordingMaps) Search(_ context.Context, req gmaps.SearchRequest) ([]gmaps.Place, error) {
	m.requests <- req
	return nil, nil
}

func apiLead(id int64, score int) model.Lead {
	return model.Lead{
		ID:     id,
		Name:   fmt.Sprintf("Lead %d", id),
		City:   "Austin",
		Score:  score,
		Status: model.StatusQualified,
	}
}

func testServer(t *testing.T, st store.Store, p *pipeline.Pipeline) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(newRouter(context.Background(), st, p))
	t.Cleanup(srv.Close)
	return srv
}

func TestAPIHealth(t *testing.T) {
	srv := testServer(t, &apiStore{}, nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestAPIListLeads(t *testing.T) {
	st := &apiStore{leads: []model.Lead{apiLead(1, 85), apiLead(2, 70)}}
	srv := testServer(t, st, nil)

	resp, err := http.Get(srv.URL + "/api/leads?status=qualified&min_score=70&limit=5")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var leads []model.Lead
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&leads))
	assert.Len(t, leads, 2)

	assert.Equal(t, model.StatusQualified, st.lastFilter.Status)
	assert.Equal(t, 70, st.lastFilter.MinScore)
	assert.Equal(t, 5, st.lastFilter.Limit)
}

func TestAPIListLeadsCapsLimit(t *testing.T) {
	st := &apiStore{}
	srv := testServer(t, st, nil)

	resp, err := http.Get(srv.URL + "/api/leads?limit=9999")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 100, st.lastFilter.Limit)

	resp, err = http.Get(srv.URL + "/api/leads")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 100, st.lastFilter.Limit)
}

func TestAPIListLeadsSearch(t *testing.T) {
	st := &apiStore{leads: []model.Lead{apiLead(1, 85)}}
	srv := testServer(t, st, nil)

	resp, err := http.Get(srv.URL + "/api/leads?search=roofing")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "roofing", st.lastSearch)
}

func TestAPIGetLead(t *testing.T) {
	st := &apiStore{leads: []model.Lead{apiLead(7, 90)}}
	srv := testServer(t, st, nil)

	resp, err := http.Get(srv.URL + "/api/leads/7")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var lead model.Lead
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&lead))
	assert.Equal(t, int64(7), lead.ID)
	assert.Equal(t, 90, lead.Score)
}

func TestAPIGetLeadNotFound(t *testing.T) {
	srv := testServer(t, &apiStore{}, nil)

	resp, err := http.Get(srv.URL + "/api/leads/42")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIGetLeadBadID(t *testing.T) {
	srv := testServer(t, &apiStore{}, nil)

	resp, err := http.Get(srv.URL + "/api/leads/abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func patchStatus(t *testing.T, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPatch, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAPIUpdateStatus(t *testing.T) {
	st := &apiStore{leads: []model.Lead{apiLead(1, 85)}}
	srv := testServer(t, st, nil)

	resp := patchStatus(t, srv.URL+"/api/leads/1/status", `{"status":"contacted","note":"called twice"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"contacted"}, st.transitions)
}

func TestAPIUpdateStatusRejectsUnknown(t *testing.T) {
	st := &apiStore{leads: []model.Lead{apiLead(1, 85)}}
	srv := testServer(t, st, nil)

	resp := patchStatus(t, srv.URL+"/api/leads/1/status", `{"status":"archived"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, st.transitions)

	resp = patchStatus(t, srv.URL+"/api/leads/1/status", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIUpdateStatusNotFound(t *testing.T) {
	srv := testServer(t, &apiStore{}, nil)

	resp := patchStatus(t, srv.URL+"/api/leads/9/status", `{"status":"contacted"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIStats(t *testing.T) {
	st := &apiStore{leads: []model.Lead{apiLead(1, 85), apiLead(2, 70)}}
	srv := testServer(t, st, nil)

	resp, err := http.Get(srv.URL + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats model.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 2, stats.TotalLeads)
}

func TestAPIGenerateStartsRun(t *testing.T) {
	cfg = &config.Config{Pipeline: config.PipelineConfig{MinScore: 60, MinRating: 3.5}}

	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	maps := &recordingMaps{requests: make(chan gmaps.SearchRequest, 1)}
	limiter := ratelimit.NewLimiter(1000, time.Minute)
	sc := scraper.New(maps, c, limiter, "", time.Hour)
	en := enrich.NewEngine(nil, c, limiter, email.NewResolver(nil, nil), nil, enrich.Options{})
	p := pipeline.New(sc, en, &apiStore{})

	srv := testServer(t, &apiStore{}, p)

	resp, err := http.Post(srv.URL+"/api/generate", "application/json",
		strings.NewReader(`{"query":"roofers in Austin","max_results":5}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	select {
	case req := <-maps.requests:
		assert.Equal(t, "roofers in Austin", req.Query)
		assert.Equal(t, 5, req.MaxResults)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline run never reached the scraper")
	}
}

func TestAPIGenerateRequiresQuery(t *testing.T) {
	cfg = &config.Config{Pipeline: config.PipelineConfig{MinScore: 60, MinRating: 3.5}}
	srv := testServer(t, &apiStore{}, nil)

	resp, err := http.Post(srv.URL+"/api/generate", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/generate", "application/json", strings.NewReader(`not json`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
