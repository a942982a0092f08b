package cmd

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/spkg/pkg/serve"
)

type env struct {
	t    *testing.T
	home string
}

func newEnv(t *testing.T) *env {
	return &env{t: t, home: t.TempDir()}
}

// run executes spkg with --home pointing at the test's home directory.
func (e *env) run(args ...string) (int, string, string) {
	e.t.Helper()
	var stdout, stderr bytes.Buffer
	args = append([]string{"--home", e.home}, args...)
	code := Execute(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// publish serves files as a repository and returns its URL.
func publish(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	logger, _ := test.NewNullLogger()
	srv := httptest.NewServer(serve.NewHandler(dir, logger))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestRepoLifecycle(t *testing.T) {
	e := newEnv(t)
	url := publish(t, map[string]string{"foo.lic": "echo foo\n"})

	code, out, _ := e.run("repo", "list")
	assert.Equal(t, Success, code)
	assert.Contains(t, out, "No repositories configured yet.")

	code, out, _ = e.run("repo", "add", "core", url)
	require.Equal(t, Success, code)
	assert.Contains(t, out, "Added repository core")

	code, out, _ = e.run("repo", "list")
	assert.Equal(t, Success, code)
	assert.Contains(t, out, "core")
	assert.Contains(t, out, url)

	code, out, _ = e.run("repo", "list", "--check")
	assert.Equal(t, Success, code)
	assert.Contains(t, out, "ok")

	code, out, _ = e.run("repo", "info", "core")
	assert.Equal(t, Success, code)
	assert.Contains(t, out, "Scripts:")
	assert.Contains(t, out, filepath.Join(e.home, "repos", "core"))

	code, out, _ = e.run("repo", "rm", "core")
	assert.Equal(t, Success, code)
	assert.Contains(t, out, "Removed repository core")

	code, _, errOut := e.run("repo", "info", "core")
	assert.Equal(t, Failure, code)
	assert.Contains(t, errOut, "Error: no repository named core")
	assert.Contains(t, errOut, "Hint:")
}

func TestRepoAddRejectsBadURL(t *testing.T) {
	e := newEnv(t)

	code, _, errOut := e.run("repo", "add", "x", "ftp://bad")
	assert.Equal(t, Failure, code)
	assert.Contains(t, errOut, "must be http(s)")

	_, err := os.Stat(filepath.Join(e.home, "repos.yaml"))
	assert.True(t, os.IsNotExist(err))
}

func TestRepoAddDuplicate(t *testing.T) {
	e := newEnv(t)

	code, _, _ := e.run("repo", "add", "core", "https://a.example.com")
	require.Equal(t, Success, code)

	code, _, errOut := e.run("repo", "add", "core", "https://b.example.com")
	assert.Equal(t, Failure, code)
	assert.Contains(t, errOut, "already exists")
}

func TestUsageErrors(t *testing.T) {
	e := newEnv(t)

	code, _, errOut := e.run("repo", "add", "only-name")
	assert.Equal(t, BadArgs, code)
	assert.Contains(t, errOut, "--help")

	code, _, _ = e.run("script", "list", "--no-such-flag")
	assert.Equal(t, BadArgs, code)

	code, _, _ = e.run("bogus")
	assert.Equal(t, BadArgs, code)
}

func TestScriptInstallAndUpdate(t *testing.T) {
	e := newEnv(t)
	url := publish(t, map[string]string{
		"foo.lic": "echo foo\n",
		"foo.md":  "Foo does things.\n",
	})
	code, _, _ := e.run("repo", "add", "core", url)
	require.Equal(t, Success, code)

	code, out, _ := e.run("script", "list")
	assert.Equal(t, Success, code)
	assert.Contains(t, out, "foo.lic")
	assert.Contains(t, out, "not installed")

	code, out, _ = e.run("script", "info", "foo")
	assert.Equal(t, Success, code)
	assert.Contains(t, out, "Repository:")
	assert.Contains(t, out, "Foo does things.")

	code, out, _ = e.run("script", "install", "foo")
	require.Equal(t, Success, code)
	assert.Contains(t, out, "Installed foo.lic from core")

	installed := filepath.Join(e.home, "scripts", "foo.lic")
	data, err := os.ReadFile(installed)
	require.NoError(t, err)
	assert.Equal(t, "echo foo\n", string(data))

	code, _, errOut := e.run("script", "install", "foo")
	assert.Equal(t, Failure, code)
	assert.Contains(t, errOut, "already installed")
	assert.Contains(t, errOut, "script update foo")

	code, out, _ = e.run("script", "update", "foo")
	assert.Equal(t, Success, code)
	assert.Contains(t, out, "Updated foo.lic from core")
}

func TestScriptInstallPerRepoLayout(t *testing.T) {
	e := newEnv(t)
	url := publish(t, map[string]string{"foo.lic": "echo foo\n"})
	code, _, _ := e.run("repo", "add", "core", url)
	require.Equal(t, Success, code)

	code, _, _ = e.run("--layout", "per-repo", "script", "install", "foo")
	require.Equal(t, Success, code)
	assert.FileExists(t, filepath.Join(e.home, "scripts", "core", "foo.lic"))
}

func TestScriptInstallAmbiguous(t *testing.T) {
	e := newEnv(t)
	urlA := publish(t, map[string]string{"bar.lic": "a\n"})
	urlB := publish(t, map[string]string{"bar.lic": "b\n"})
	for name, url := range map[string]string{"repoA": urlA, "repoB": urlB} {
		code, _, _ := e.run("repo", "add", name, url)
		require.Equal(t, Success, code)
	}

	code, _, errOut := e.run("script", "install", "bar")
	assert.Equal(t, Failure, code)
	assert.Contains(t, errOut, "ambiguous script bar.lic")
	assert.Contains(t, errOut, "repoA")
	assert.Contains(t, errOut, "repoB")
	assert.Contains(t, errOut, "--repo=")

	code, out, _ := e.run("script", "install", "--repo=repoB", "bar")
	assert.Equal(t, Success, code)
	assert.Contains(t, out, "from repoB")

	data, err := os.ReadFile(filepath.Join(e.home, "scripts", "bar.lic"))
	require.NoError(t, err)
	assert.Equal(t, "b\n", string(data))
}

func TestScriptListSkipsUnreachable(t *testing.T) {
	e := newEnv(t)
	url := publish(t, map[string]string{"foo.lic": "echo foo\n"})
	dead := httptest.NewServer(nil)
	deadURL := dead.URL
	dead.Close()

	e.run("repo", "add", "core", url)
	e.run("repo", "add", "dead", deadURL)

	code, out, errOut := e.run("script", "list")
	assert.Equal(t, Success, code)
	assert.Contains(t, out, "foo.lic")
	assert.Contains(t, out, "Skipped dead: unreachable")
	assert.Contains(t, errOut, "Repository manifest unavailable")
}

func TestReportUnexpectedError(t *testing.T) {
	var buf bytes.Buffer
	code := report(&buf, pkgerrors.New("boom"))
	assert.Equal(t, UnexpectedError, code)
	assert.Contains(t, buf.String(), "Unexpected error: boom")
	assert.Contains(t, buf.String(), "cmd_test.go")

	buf.Reset()
	assert.Equal(t, "", truncatedTrace(os.ErrNotExist))
}

func TestVersion(t *testing.T) {
	e := newEnv(t)
	code, out, _ := e.run("version")
	assert.Equal(t, Success, code)
	assert.Contains(t, out, "spkg dev")
}
