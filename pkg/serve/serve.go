// Package serve publishes a local directory of scripts as a repository.
package serve

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/spkg/pkg/manifest"
	"github.com/mattsolo1/spkg/pkg/repo"
)

// HeaderExt is the extension of documentation fragments. A script foo.lic
// is documented by foo.md next to it.
const HeaderExt = ".md"

// Document is the JSON body served as the manifest.
type Document struct {
	Available []repo.Asset `json:"available"`
}

// Build scans dir (non-recursively) and describes every script in it.
func Build(dir string) (*Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "reading %s", dir)
	}

	headers := make(map[string]bool)
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), HeaderExt) {
			headers[e.Name()] = true
		}
	}

	doc := &Document{Available: []repo.Asset{}}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || name == manifest.FileName || headers[name] {
			continue
		}

		asset, err := describe(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		asset.File = "/" + name

		header := strings.TrimSuffix(name, filepath.Ext(name)) + HeaderExt
		if headers[header] {
			asset.Header = "/" + header
		}
		doc.Available = append(doc.Available, asset)
	}

	return doc, nil
}

func describe(path string) (repo.Asset, error) {
	fd, err := os.Open(path)
	if err != nil {
		return repo.Asset{}, pkgerrors.Wrapf(err, "opening %s", path)
	}
	defer fd.Close()

	info, err := fd.Stat()
	if err != nil {
		return repo.Asset{}, pkgerrors.Wrapf(err, "stat %s", path)
	}

	h := md5.New()
	if _, err := io.Copy(h, fd); err != nil {
		return repo.Asset{}, pkgerrors.Wrapf(err, "hashing %s", path)
	}

	return repo.Asset{
		MD5:        hex.EncodeToString(h.Sum(nil)),
		LastCommit: info.ModTime().Unix(),
	}, nil
}

// NewHandler returns a router serving dir as a repository.
func NewHandler(dir string, log logrus.FieldLogger) http.Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "serve")

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/"+manifest.FileName, func(w http.ResponseWriter, req *http.Request) {
		doc, err := Build(dir)
		if err != nil {
			log.WithError(err).Error("Building manifest failed")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(doc); err != nil {
			log.WithError(err).Warn("Writing manifest failed")
		}
	})

	r.Handle("/*", http.FileServer(http.Dir(dir)))
	return r
}

func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, req)
			log.WithFields(logrus.Fields{
				"method":   req.Method,
				"path":     req.URL.Path,
				"status":   ww.Status(),
				"bytes":    ww.BytesWritten(),
				"duration": time.Since(start),
			}).Debug("Served request")
		})
	}
}
