package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/facultyhub/internal/api"
	"github.com/ajitpratap0/facultyhub/internal/directory"
	"github.com/ajitpratap0/facultyhub/internal/models"
	"github.com/ajitpratap0/facultyhub/internal/news"
	"github.com/ajitpratap0/facultyhub/internal/store"
)

// stubFetcher counts on-demand fetches and reports a fixed result.
type stubFetcher struct {
	calls  atomic.Int32
	result news.Result
}

func (f *stubFetcher) FetchAndStore(_ context.Context) news.Result {
	f.calls.Add(1)
	return f.result
}

// newTestServer creates a test HTTP server backed by a transactional memory store.
func newTestServer(t *testing.T, authToken string) (*httptest.Server, *store.MemoryStore, *stubFetcher) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	st := store.NewMemoryStore(store.WithReplicaSet(true))
	engine := directory.NewEngine(st, directory.NewTxDetector(st, false, logger), logger)
	fetcher := &stubFetcher{result: news.Result{Inserted: 3, Processed: 5}}
	srv := api.NewServer(engine, fetcher, logger, authToken)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, st, fetcher
}

func doRequest(t *testing.T, method, url, body, token string) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func upsert(t *testing.T, ts *httptest.Server, body string) models.Professor {
	t.Helper()
	resp := doRequest(t, http.MethodPost, ts.URL+"/api/datas/update", body, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[models.Professor](t, resp)
}

func TestAPI_Healthz(t *testing.T) {
	ts, _, _ := newTestServer(t, "")

	resp := doRequest(t, http.MethodGet, ts.URL+"/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[map[string]string](t, resp)["status"])
}

func TestAPI_UpsertCreatesBranchAndDepartment(t *testing.T) {
	ts, st, _ := newTestServer(t, "")

	prof := upsert(t, ts, `{"email":"asha@uni.example","name":"Asha","branch":"ai","branchName":"Artificial Intelligence","departmentId":"cse","departmentName":"Computer Science"}`)
	assert.NotEmpty(t, prof.ID)
	assert.Equal(t, "ai", prof.Branch)

	b, err := st.GetBranch(context.Background(), "ai")
	require.NoError(t, err)
	assert.Equal(t, "Artificial Intelligence", b.Name)

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/directory", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	dir := decode[models.Directory](t, resp)
	require.Len(t, dir.Departments, 1)
	assert.Equal(t, []string{"ai"}, dir.Departments[0].Branches)
	assert.Contains(t, dir.Professors, prof.ID)
	assert.Contains(t, dir.Branches, "ai")
}

func TestAPI_LegacyRoutes(t *testing.T) {
	ts, _, _ := newTestServer(t, "")

	resp := doRequest(t, http.MethodPost, ts.URL+"/datas/update", `{"email":"x@uni.example","branch":"b1"}`, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	prof := decode[models.Professor](t, resp)

	for _, path := range []string{"/mock-data", "/api/mock-data"} {
		resp := doRequest(t, http.MethodGet, ts.URL+path, "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		dir := decode[models.Directory](t, resp)
		assert.Contains(t, dir.Professors, prof.ID, path)
	}

	resp = doRequest(t, http.MethodDelete, ts.URL+"/professors/"+prof.ID, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "b1", body["removedBranch"])
}

func TestAPI_UpsertValidation(t *testing.T) {
	ts, _, _ := newTestServer(t, "")

	cases := map[string]string{
		"missing email": `{"name":"No Email"}`,
		"blank email":   `{"email":"   "}`,
		"unknown field": `{"email":"a@uni.example","favouriteColour":"blue"}`,
		"malformed":     `{"email":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := doRequest(t, http.MethodPost, ts.URL+"/api/datas/update", body, "")
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, decode[map[string]string](t, resp)["error"])
		})
	}
}

func TestAPI_DeleteProfessorNotFound(t *testing.T) {
	ts, _, _ := newTestServer(t, "")

	resp := doRequest(t, http.MethodDelete, ts.URL+"/api/professors/does-not-exist", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "professor not found", decode[map[string]string](t, resp)["error"])
}

func TestAPI_DeleteDepartmentByIDAndName(t *testing.T) {
	ts, st, _ := newTestServer(t, "")
	ctx := context.Background()

	upsert(t, ts, `{"email":"a@uni.example","branch":"vlsi","departmentId":"ece","departmentName":"Electronics"}`)
	upsert(t, ts, `{"email":"b@uni.example","branch":"comms","departmentId":"ece"}`)
	upsert(t, ts, `{"email":"c@uni.example","branch":"ai","departmentId":"cse","departmentName":"Computer Science"}`)

	resp := doRequest(t, http.MethodDelete, ts.URL+"/api/departments/ece", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "ece", body["departmentId"])
	assert.EqualValues(t, 2, body["professorsDeleted"])
	assert.Equal(t, true, body["atomic"])

	n, err := st.CountProfessors(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	resp = doRequest(t, http.MethodDelete, ts.URL+"/departments/Computer%20Science", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cse", decode[map[string]any](t, resp)["departmentId"])

	resp = doRequest(t, http.MethodDelete, ts.URL+"/api/departments/ece", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_ListNewsLimits(t *testing.T) {
	ts, st, _ := newTestServer(t, "")
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	items := make([]models.NewsItem, 0, 120)
	for i := range 120 {
		items = append(items, models.NewNewsItem("item", "", "https://news.example/"+strconv.Itoa(i),
			now.Add(-time.Duration(i)*time.Minute), now, models.DefaultNewsRetention))
	}
	_, err := st.InsertNewsIfAbsent(context.Background(), items)
	require.NoError(t, err)

	cases := map[string]int{
		"":           20,
		"?limit=5":   5,
		"?limit=0":   20,
		"?limit=-3":  20,
		"?limit=abc": 20,
		"?limit=500": 100,
	}
	for query, want := range cases {
		resp := doRequest(t, http.MethodGet, ts.URL+"/api/news"+query, "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		got := decode[[]models.NewsItem](t, resp)
		assert.Len(t, got, want, query)
	}

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/news?limit=2", "", "")
	got := decode[[]models.NewsItem](t, resp)
	require.Len(t, got, 2)
	assert.True(t, got[0].PublishedAt.After(got[1].PublishedAt), "newest first")
}

func TestAPI_ListCompanies(t *testing.T) {
	ts, st, _ := newTestServer(t, "")
	_, err := st.InsertCompanies(context.Background(), []string{"Globex", "Acme"})
	require.NoError(t, err)

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/companies", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.ElementsMatch(t, []models.Company{{Name: "Acme"}, {Name: "Globex"}}, decode[[]models.Company](t, resp))
}

func TestAPI_FetchNewsTrigger(t *testing.T) {
	ts, _, fetcher := newTestServer(t, "")

	resp := doRequest(t, http.MethodPost, ts.URL+"/internal/fetch-news", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, news.Result{Inserted: 3, Processed: 5}, decode[news.Result](t, resp))
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestAPI_AuthGuardsMutations(t *testing.T) {
	const token = "s3cret-token"
	ts, _, fetcher := newTestServer(t, token)

	// Reads stay open.
	resp := doRequest(t, http.MethodGet, ts.URL+"/api/directory", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	guarded := []struct{ method, path, body string }{
		{http.MethodPost, "/api/datas/update", `{"email":"a@uni.example"}`},
		{http.MethodDelete, "/api/professors/x", ""},
		{http.MethodDelete, "/api/departments/x", ""},
		{http.MethodPost, "/internal/fetch-news", ""},
	}
	for _, g := range guarded {
		resp := doRequest(t, g.method, ts.URL+g.path, g.body, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, g.path)
		resp.Body.Close()

		resp = doRequest(t, g.method, ts.URL+g.path, g.body, "wrong")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, g.path)
		resp.Body.Close()
	}
	assert.Zero(t, fetcher.calls.Load())

	resp = doRequest(t, http.MethodPost, ts.URL+"/api/datas/update", `{"email":"a@uni.example"}`, token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_DebugVars(t *testing.T) {
	ts, _, _ := newTestServer(t, "")
	upsert(t, ts, `{"email":"m@uni.example"}`)

	resp := doRequest(t, http.MethodGet, ts.URL+"/debug/vars", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	vars := decode[map[string]any](t, resp)
	assert.Contains(t, vars, "facultyhub_professors_upserted_total")
}
