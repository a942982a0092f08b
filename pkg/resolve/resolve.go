// Package resolve decides which repository supplies a script.
package resolve

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/spkg/pkg/errs"
	"github.com/mattsolo1/spkg/pkg/repo"
)

// ScriptExt is appended to script names given without an extension.
const ScriptExt = ".lic"

// Normalize turns a script name into the filename advertised by manifests.
func Normalize(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return name + ScriptExt
}

// Refresher fetches the manifest of a repository and annotates it.
type Refresher interface {
	Refresh(ctx context.Context, r repo.Repository) repo.Repository
}

// Resolver picks the single repository offering a script.
type Resolver struct {
	fetcher Refresher
	log     logrus.FieldLogger
}

// New creates a Resolver that fetches missing manifests through fetcher.
func New(fetcher Refresher, log logrus.FieldLogger) *Resolver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Resolver{
		fetcher: fetcher,
		log:     log.WithField("component", "resolve"),
	}
}

// Prepare fetches the manifest of every repository that has no usable one
// yet and warns about those still unusable afterwards.
func (r *Resolver) Prepare(ctx context.Context, repos []repo.Repository) []repo.Repository {
	out := make([]repo.Repository, len(repos))
	for i, rp := range repos {
		if !rp.HasManifest() {
			rp = r.fetcher.Refresh(ctx, rp)
		}
		if !rp.HasManifest() {
			r.log.WithFields(logrus.Fields{
				"repo":  rp.Name,
				"state": rp.State.String(),
				"error": rp.Err,
			}).Warn("Repository manifest unavailable")
		}
		out[i] = rp
	}
	return out
}

// Resolve returns the one repository among repos advertising name, together
// with its asset. Zero or several matches are errors; there is no ranking.
func (r *Resolver) Resolve(ctx context.Context, name string, repos []repo.Repository) (repo.Repository, repo.Asset, error) {
	filename := Normalize(name)
	repos = r.Prepare(ctx, repos)

	var (
		matches []repo.Repository
		assets  []repo.Asset
	)
	for _, rp := range repos {
		if a, ok := rp.Find(filename); ok {
			matches = append(matches, rp)
			assets = append(assets, a)
		}
	}

	switch {
	case len(repos) == 1 && len(matches) == 0:
		return repo.Repository{}, repo.Asset{}, errs.New(errs.Resolution, errs.ErrNotAdvertised,
			"repository %s does not advertise %s", repos[0].Name, filename)
	case len(matches) > 1:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Name
		}
		return repo.Repository{}, repo.Asset{}, errs.New(errs.Resolution, errs.ErrAmbiguous,
			"ambiguous script %s: offered by %s", filename, strings.Join(names, ", ")).
			WithHint("pick one with --repo=<name> (one of: %s)", strings.Join(names, ", "))
	case len(matches) == 0:
		return repo.Repository{}, repo.Asset{}, errs.New(errs.Resolution, errs.ErrNoSuchScript,
			"script %s not found in any repository", filename).
			WithHint("see `spkg script list` for available scripts")
	}

	r.log.WithFields(logrus.Fields{
		"script": filename,
		"repo":   matches[0].Name,
	}).Debug("Resolved script")
	return matches[0], assets[0], nil
}
