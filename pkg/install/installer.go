// Package install downloads resolved scripts into the local script directory.
package install

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/spkg/pkg/errs"
	"github.com/mattsolo1/spkg/pkg/repo"
	"github.com/mattsolo1/spkg/pkg/resolve"
)

// Status describes the local copy of an advertised script.
type Status int

const (
	NotInstalled Status = iota
	Installed
	// Modified means the local file does not match the advertised checksum.
	Modified
)

func (s Status) String() string {
	switch s {
	case Installed:
		return "installed"
	case Modified:
		return "modified"
	default:
		return "not installed"
	}
}

// Result describes a completed install.
type Result struct {
	Repository repo.Repository
	Asset      repo.Asset
	Path       string
	Bytes      int64
	Replaced   bool
}

// Installer resolves scripts and writes them below scriptDir.
type Installer struct {
	scriptDir string
	layout    Layout
	resolver  *resolve.Resolver
	client    *http.Client
	log       logrus.FieldLogger
}

// New creates an Installer. A nil client gets a 30 second timeout.
func New(scriptDir string, layout Layout, resolver *resolve.Resolver, client *http.Client, log logrus.FieldLogger) *Installer {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Installer{
		scriptDir: scriptDir,
		layout:    layout,
		resolver:  resolver,
		client:    client,
		log:       log.WithField("component", "install"),
	}
}

// Path returns where a from r is installed.
func (i *Installer) Path(r repo.Repository, a repo.Asset) string {
	return i.layout.Target(i.scriptDir, r, a)
}

// Status inspects the local copy of a from r.
func (i *Installer) Status(r repo.Repository, a repo.Asset) Status {
	path := i.Path(r, a)
	if _, err := os.Stat(path); err != nil {
		return NotInstalled
	}
	if a.MD5 == "" {
		return Installed
	}
	sum, err := fileMD5(path)
	if err != nil || !strings.EqualFold(sum, a.MD5) {
		return Modified
	}
	return Installed
}

// Install resolves name among sources and downloads it. An existing target
// is only replaced when overwrite is set.
func (i *Installer) Install(ctx context.Context, name string, sources []repo.Repository, overwrite bool) (*Result, error) {
	r, asset, err := i.resolver.Resolve(ctx, name, sources)
	if err != nil {
		return nil, err
	}

	path := i.Path(r, asset)
	_, statErr := os.Stat(path)
	exists := statErr == nil
	if exists && !overwrite {
		return nil, errs.New(errs.AlreadyExists, errs.ErrExists, "%s is already installed at %s", asset.Name(), path).
			WithHint("use `spkg script update %s` to replace it", name)
	}

	n, err := i.Download(ctx, r, asset, path)
	if err != nil {
		return nil, err
	}

	i.log.WithFields(logrus.Fields{
		"script":   asset.Name(),
		"repo":     r.Name,
		"path":     path,
		"replaced": exists,
	}).Info("Installed script")

	return &Result{Repository: r, Asset: asset, Path: path, Bytes: n, Replaced: exists}, nil
}

// Update is Install with overwrite.
func (i *Installer) Update(ctx context.Context, name string, sources []repo.Repository) (*Result, error) {
	return i.Install(ctx, name, sources, true)
}

// Download streams a from r into localPath. The data goes to a temporary file
// in the same directory first, so localPath is either replaced completely or
// left untouched.
func (i *Installer) Download(ctx context.Context, r repo.Repository, a repo.Asset, localPath string) (int64, error) {
	source := r.Resolve(a.File)
	fail := func(err error, format string, args ...interface{}) (int64, error) {
		return 0, errs.Wrap(err, errs.Transfer, nil, format, args...)
	}

	dir := filepath.Dir(localPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fail(err, "creating %s", dir)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return fail(err, "downloading %s", source)
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return 0, errs.Wrap(err, errs.Network, nil, "downloading %s", source)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, errs.Wrap(fmt.Errorf("server returned %s", resp.Status), errs.Network, nil, "downloading %s", source)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(localPath)+".*.part")
	if err != nil {
		return fail(err, "writing %s", localPath)
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	h := md5.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), resp.Body)
	if err != nil {
		return fail(err, "downloading %s", source)
	}

	if a.MD5 != "" {
		if sum := hex.EncodeToString(h.Sum(nil)); !strings.EqualFold(sum, a.MD5) {
			return 0, errs.New(errs.Transfer, errs.ErrChecksum, "checksum mismatch for %s: got %s, want %s", a.Name(), sum, a.MD5)
		}
	}

	if err := tmp.Chmod(0644); err != nil {
		return fail(err, "writing %s", localPath)
	}
	if err := tmp.Close(); err != nil {
		return fail(err, "writing %s", localPath)
	}
	if err := os.Rename(tmp.Name(), localPath); err != nil {
		os.Remove(tmp.Name())
		return fail(err, "writing %s", localPath)
	}
	committed = true

	i.log.WithFields(logrus.Fields{
		"url":   source,
		"path":  localPath,
		"bytes": n,
	}).Debug("Downloaded asset")
	return n, nil
}

func fileMD5(path string) (string, error) {
	fd, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer fd.Close()

	h := md5.New()
	if _, err := io.Copy(h, fd); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
