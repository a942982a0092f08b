package manifest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/spkg/pkg/repo"
)

func serveJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func newRepoServer(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	for path, h := range routes {
		r.Get(path, h)
	}
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		assets  int
	}{
		{"valid", `{"available":[{"file":"/foo.lic","md5":"abc","last_commit":1000,"header":"/foo.md"}]}`, false, 1},
		{"empty list", `{"available":[]}`, false, 0},
		{"not json", `<html>`, true, 0},
		{"array document", `[1,2]`, true, 0},
		{"missing available", `{"scripts":[]}`, true, 0},
		{"available not array", `{"available":{"file":"/x"}}`, true, 0},
		{"null available", `{"available":null}`, true, 0},
		{"error field", `{"available":[],"error":"repository disabled"}`, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, m.Available, tt.assets)
		})
	}
}

func TestParse_KeepsExtraFields(t *testing.T) {
	m, err := Parse([]byte(`{"available":[],"maintainer":"ops","version":2}`))
	require.NoError(t, err)
	assert.Equal(t, "ops", m.Extra["maintainer"])
	assert.Equal(t, float64(2), m.Extra["version"])
	assert.NotContains(t, m.Extra, "available")
}

func TestFetcher_FetchOK(t *testing.T) {
	srv := newRepoServer(t, map[string]http.HandlerFunc{
		"/manifest.json": serveJSON(`{"available":[{"file":"/foo.lic","last_commit":1000}]}`),
	})
	logger, _ := test.NewNullLogger()
	f := NewFetcher(srv.Client(), logger)

	r := f.Refresh(context.Background(), repo.Repository{Name: "core", URL: srv.URL + "/"})
	assert.Equal(t, repo.Ready, r.State)
	assert.True(t, r.HasManifest())
	assert.Empty(t, r.Err)
	require.Len(t, r.Available, 1)
	assert.Equal(t, "foo.lic", r.Available[0].Name())
	assert.Equal(t, int64(1000), r.Available[0].LastCommit)
}

func TestFetcher_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f := NewFetcher(nil, logrus.New())
	res := f.Fetch(context.Background(), repo.Repository{Name: "gone", URL: url})
	assert.Equal(t, NetworkFailure, res.Outcome)
	assert.NotEmpty(t, res.Message)

	r := Apply(repo.Repository{Name: "gone", URL: url}, res)
	assert.Equal(t, repo.Unreachable, r.State)
	assert.NotNil(t, r.Available)
	assert.Empty(t, r.Available)
	assert.Equal(t, res.Message, r.Err)
}

func TestFetcher_StatusIsNetworkFailure(t *testing.T) {
	srv := newRepoServer(t, nil)
	f := NewFetcher(srv.Client(), logrus.New())

	res := f.Fetch(context.Background(), repo.Repository{Name: "core", URL: srv.URL})
	assert.Equal(t, NetworkFailure, res.Outcome)
	assert.Contains(t, res.Message, "404")
}

func TestFetcher_MalformedIsLogged(t *testing.T) {
	srv := newRepoServer(t, map[string]http.HandlerFunc{
		"/manifest.json": serveJSON(`{"scripts":[]}`),
	})
	logger, hook := test.NewNullLogger()
	f := NewFetcher(srv.Client(), logger)

	r := f.Refresh(context.Background(), repo.Repository{Name: "core", URL: srv.URL})
	assert.Equal(t, repo.Misconfigured, r.State)
	assert.Nil(t, r.Available)
	assert.Contains(t, r.Err, "no available list")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "core", entry.Data["repo"])
}

func TestFetcher_RefreshAll(t *testing.T) {
	good := newRepoServer(t, map[string]http.HandlerFunc{
		"/manifest.json": serveJSON(`{"available":[{"file":"/foo.lic"}]}`),
	})
	bad := newRepoServer(t, map[string]http.HandlerFunc{
		"/manifest.json": serveJSON(`{"error":"disabled"}`),
	})
	f := NewFetcher(nil, logrus.New())

	repos := f.RefreshAll(context.Background(), []repo.Repository{
		{Name: "good", URL: good.URL},
		{Name: "bad", URL: bad.URL},
	})
	require.Len(t, repos, 2)
	assert.Equal(t, repo.Ready, repos[0].State)
	assert.Equal(t, repo.Misconfigured, repos[1].State)
	assert.Contains(t, repos[1].Err, "disabled")
}

func TestFetcher_FetchHeader(t *testing.T) {
	srv := newRepoServer(t, map[string]http.HandlerFunc{
		"/docs/foo.md": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("# foo\n"))
		},
	})
	f := NewFetcher(srv.Client(), logrus.New())
	r := repo.Repository{Name: "core", URL: srv.URL}

	assert.Equal(t, "# foo\n", f.FetchHeader(context.Background(), r, repo.Asset{File: "/foo.lic", Header: "/docs/foo.md"}))

	// Failures come back as the text itself.
	body := f.FetchHeader(context.Background(), r, repo.Asset{File: "/bar.lic", Header: "/docs/bar.md"})
	assert.Contains(t, body, "404")

	body = f.FetchHeader(context.Background(), r, repo.Asset{File: "/baz.lic"})
	assert.Equal(t, "baz.lic has no documentation header", body)
}
