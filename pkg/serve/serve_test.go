package serve

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScripts(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo.lic"), []byte("echo foo\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo.md"), []byte("# foo\nDoes foo.\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bar.lic"), []byte("echo bar\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0755))

	stamp := time.Unix(1000, 0)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "foo.lic"), stamp, stamp))
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	writeScripts(t, dir)

	doc, err := Build(dir)
	require.NoError(t, err)
	require.Len(t, doc.Available, 2)

	bar, foo := doc.Available[0], doc.Available[1]
	assert.Equal(t, "/bar.lic", bar.File)
	assert.Empty(t, bar.Header)

	assert.Equal(t, "/foo.lic", foo.File)
	assert.Equal(t, "/foo.md", foo.Header)
	assert.Equal(t, int64(1000), foo.LastCommit)
	sum := md5.Sum([]byte("echo foo\n"))
	assert.Equal(t, hex.EncodeToString(sum[:]), foo.MD5)
}

func TestBuild_MissingDir(t *testing.T) {
	_, err := Build(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestHandler(t *testing.T) {
	dir := t.TempDir()
	writeScripts(t, dir)
	logger, _ := test.NewNullLogger()

	srv := httptest.NewServer(NewHandler(dir, logger))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/manifest.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var doc Document
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Len(t, doc.Available, 2)

	resp, err = http.Get(srv.URL + "/foo.lic")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "echo foo\n", string(body))

	resp, err = http.Get(srv.URL + "/missing.lic")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
