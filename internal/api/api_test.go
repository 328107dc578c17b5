package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kafadas/kinjo/internal/auth"
	"github.com/kafadas/kinjo/internal/metrics"
	"github.com/kafadas/kinjo/internal/model"
	"github.com/kafadas/kinjo/internal/narrative"
	"github.com/kafadas/kinjo/internal/reflection"
	"github.com/kafadas/kinjo/internal/services"
	"github.com/kafadas/kinjo/internal/store"
	"github.com/kafadas/kinjo/internal/store/sqlite"
	"github.com/kafadas/kinjo/internal/trends"
)

const (
	testKey  = "sk_test"
	testUser = "user-1"
)

type stubGenerator struct {
	out *narrative.Narrative
	err error
}

func (g stubGenerator) Generate(context.Context, narrative.Request) (*narrative.Narrative, error) {
	return g.out, g.err
}

type stubHealth struct{ ok bool }

func (s stubHealth) IsHealthy() bool             { return s.ok }
func (s stubHealth) Components() map[string]bool { return map[string]bool{"store": s.ok} }

type env struct {
	srv *httptest.Server
	st  store.Store
}

func newEnv(t *testing.T, gen narrative.Generator) *env {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "kinjo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	st := sqlite.NewWithDB(db)

	m := metrics.New(prometheus.NewRegistry())
	log := zerolog.Nop()
	profiles := services.NewProfileService(st, log)
	router := NewRouter(Deps{
		Auth:        auth.NewStatic(map[string]string{testKey: testUser}),
		Trends:      trends.NewService(st, profiles, m, log),
		Reflections: reflection.NewService(st, profiles, log, reflection.Options{Narrative: gen, Debounce: time.Minute, Metrics: m}),
		Profiles:    profiles,
		Moments:     services.NewMomentService(st),
		Categories:  services.NewCategoryService(st),
		People:      services.NewPeopleService(st, log),
		Health:      stubHealth{ok: true},
		Metrics:     m,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &env{srv: srv, st: st}
}

func (e *env) do(t *testing.T, method, path string, body interface{}) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func TestAuthRequired(t *testing.T) {
	e := newEnv(t, nil)

	resp, err := http.Get(e.srv.URL + "/api/streak")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest("GET", e.srv.URL+"/api/streak", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	for _, p := range []string{"/api/health", "/metrics"} {
		resp, err = http.Get(e.srv.URL + p)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, p)
	}
}

func TestHealth(t *testing.T) {
	e := newEnv(t, nil)
	code, body := e.do(t, "GET", "/api/health", nil)
	require.Equal(t, http.StatusOK, code)
	var out struct {
		Status     string          `json:"status"`
		Components map[string]bool `json:"components"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "healthy", out.Status)
	assert.True(t, out.Components["store"])
}

func TestCaptureAndTrends(t *testing.T) {
	e := newEnv(t, nil)

	code, body := e.do(t, "PUT", "/api/me", map[string]string{"timeZone": "Asia/Tokyo"})
	require.Equal(t, http.StatusOK, code, string(body))
	code, _ = e.do(t, "PUT", "/api/me", map[string]string{"timeZone": "Nowhere/Special"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = e.do(t, "POST", "/api/categories", map[string]string{"name": "Small Gifts"})
	require.Equal(t, http.StatusCreated, code, string(body))
	var cat model.Category
	require.NoError(t, json.Unmarshal(body, &cat))
	assert.Equal(t, "small-gifts", cat.Slug)
	code, _ = e.do(t, "POST", "/api/categories", map[string]string{"name": "small gifts"})
	assert.Equal(t, http.StatusConflict, code)

	now := time.Now().UTC()
	for i, action := range []string{"given", "received", "given"} {
		code, body = e.do(t, "POST", "/api/moments", map[string]interface{}{
			"happenedAt": now.Add(-time.Duration(i) * time.Hour),
			"action":     action,
			"categoryId": cat.CategoryID,
		})
		require.Equal(t, http.StatusCreated, code, string(body))
	}
	code, _ = e.do(t, "POST", "/api/moments", map[string]interface{}{"happenedAt": now, "action": "ignored"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = e.do(t, "GET", "/api/trends/daily?range=7d", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	var series trends.DailySeries
	require.NoError(t, json.Unmarshal(body, &series))
	assert.Len(t, series.Days, 7)
	assert.Equal(t, 3, series.Total)
	assert.Equal(t, "Asia/Tokyo", series.Timezone)

	code, body = e.do(t, "GET", "/api/trends/daily?range=7d&action=received", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &series))
	assert.Equal(t, 1, series.Total)

	code, body = e.do(t, "GET", "/api/trends/categories?range=30d", nil)
	require.Equal(t, http.StatusOK, code)
	var shares struct {
		Categories []trends.CategoryShare `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(body, &shares))
	require.Len(t, shares.Categories, 1)
	assert.Equal(t, 100.0, shares.Categories[0].Pct)

	code, _ = e.do(t, "GET", "/api/trends/gaps?range=all", nil)
	assert.Equal(t, http.StatusOK, code)

	code, body = e.do(t, "GET", "/api/streak", nil)
	require.Equal(t, http.StatusOK, code)
	var streak model.Streak
	require.NoError(t, json.Unmarshal(body, &streak))
	assert.GreaterOrEqual(t, streak.Current, 1)

	code, _ = e.do(t, "GET", "/api/trends/daily?start=2024-02-10&end=2024-02-01", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = e.do(t, "GET", "/api/trends/daily?range=14d", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestMaintenance(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	from, err := e.st.Categories().Create(ctx, &model.Category{UserID: testUser, Name: "Old", Slug: "old"})
	require.NoError(t, err)
	to, err := e.st.Categories().Create(ctx, &model.Category{UserID: testUser, Name: "New", Slug: "new"})
	require.NoError(t, err)
	m, err := e.st.Moments().Create(ctx, &model.Moment{UserID: testUser, HappenedAt: time.Now().UTC(), Action: model.ActionGiven, CategoryID: &from.CategoryID})
	require.NoError(t, err)

	code, body := e.do(t, "POST", "/api/categories/"+from.CategoryID+"/reassign", map[string]string{"to": to.CategoryID})
	require.Equal(t, http.StatusOK, code, string(body))
	assert.JSONEq(t, `{"moved":1}`, string(body))

	code, _ = e.do(t, "DELETE", "/api/moments/"+m.MomentID, nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = e.do(t, "DELETE", "/api/moments/"+m.MomentID, nil)
	assert.Equal(t, http.StatusNotFound, code)

	var ids []string
	for _, name := range []string{"Aiko", "Bo"} {
		code, body = e.do(t, "POST", "/api/people", map[string]interface{}{"displayName": name})
		require.Equal(t, http.StatusCreated, code)
		var p model.Person
		require.NoError(t, json.Unmarshal(body, &p))
		ids = append(ids, p.PersonID)
	}
	code, body = e.do(t, "POST", "/api/people/"+ids[1]+"/merge", map[string]string{"into": ids[0]})
	require.Equal(t, http.StatusOK, code, string(body))
	code, _ = e.do(t, "POST", "/api/people/"+ids[0]+"/merge", map[string]string{"into": ids[1]})
	assert.Equal(t, http.StatusConflict, code)

	code, body = e.do(t, "GET", "/api/people", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"mergedInto":"`+ids[0]+`"`)
}

func TestReflections(t *testing.T) {
	e := newEnv(t, stubGenerator{out: &narrative.Narrative{Summary: "ai summary", Suggestions: []string{"call Person A"}}})

	code, body := e.do(t, "GET", "/api/reflections/7d", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	var r model.Reflection
	require.NoError(t, json.Unmarshal(body, &r))
	assert.Equal(t, model.ModelRule, r.Model)
	assert.Equal(t, reflection.QuietSummary, r.Summary)

	_, err := e.st.Moments().Create(context.Background(), &model.Moment{UserID: testUser, HappenedAt: time.Now().UTC(), Action: model.ActionGiven})
	require.NoError(t, err)

	code, body = e.do(t, "POST", "/api/reflections/7d/regenerate", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	require.NoError(t, json.Unmarshal(body, &r))
	assert.Equal(t, model.ModelAI, r.Model)
	assert.Equal(t, "ai summary", r.Summary)

	code, body = e.do(t, "POST", "/api/reflections/7d/regenerate", nil)
	assert.Equal(t, http.StatusNoContent, code)
	assert.Empty(t, body)

	code, _ = e.do(t, "GET", "/api/reflections/14d", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestReflections_NarrativeErrors(t *testing.T) {
	e := newEnv(t, stubGenerator{err: context.DeadlineExceeded})
	_, err := e.st.Moments().Create(context.Background(), &model.Moment{UserID: testUser, HappenedAt: time.Now().UTC(), Action: model.ActionGiven})
	require.NoError(t, err)

	code, _ := e.do(t, "POST", "/api/reflections/30d/regenerate", nil)
	assert.Equal(t, http.StatusGatewayTimeout, code)

	e = newEnv(t, nil)
	code, _ = e.do(t, "POST", "/api/reflections/30d/regenerate", nil)
	assert.Equal(t, http.StatusBadGateway, code)
	code, _ = e.do(t, "POST", "/api/reflections/30d/regenerate", nil)
	assert.Equal(t, http.StatusBadGateway, code, "no provider is not a debounce")
}
