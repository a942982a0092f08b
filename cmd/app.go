package cmd

import (
	"context"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/spkg/pkg/config"
	"github.com/mattsolo1/spkg/pkg/errs"
	"github.com/mattsolo1/spkg/pkg/install"
	"github.com/mattsolo1/spkg/pkg/logging"
	"github.com/mattsolo1/spkg/pkg/manifest"
	"github.com/mattsolo1/spkg/pkg/repo"
	"github.com/mattsolo1/spkg/pkg/resolve"
)

// app bundles the components one command works with. The layout is picked
// here, once, and handed to the installer.
type app struct {
	settings  *config.Settings
	log       *logrus.Logger
	repos     *repo.Manager
	fetcher   *manifest.Fetcher
	resolver  *resolve.Resolver
	installer *install.Installer
	out       io.Writer
}

func newApp(cmd *cobra.Command) (*app, error) {
	settings, err := config.Load(rootFlags)
	if err != nil {
		return nil, err
	}

	log, err := logging.New(settings.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return nil, errs.Wrap(err, errs.Config, nil, "invalid log level")
	}

	layout, err := install.LayoutByName(settings.Layout)
	if err != nil {
		return nil, errs.Wrap(err, errs.Config, nil, "invalid layout")
	}

	repos, err := repo.NewManager(settings.Home, log)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: settings.HTTPTimeout}
	fetcher := manifest.NewFetcher(client, log)
	resolver := resolve.New(fetcher, log)

	log.WithFields(logrus.Fields{
		"home":       settings.Home,
		"script_dir": settings.ScriptDir,
		"layout":     layout.Name(),
	}).Debug("Loaded settings")

	return &app{
		settings:  settings,
		log:       log,
		repos:     repos,
		fetcher:   fetcher,
		resolver:  resolver,
		installer: install.New(settings.ScriptDir, layout, resolver, client, log),
		out:       cmd.OutOrStdout(),
	}, nil
}

// sources returns the candidate repositories: the one named by --repo, or
// every known repository.
func (a *app) sources(name string) ([]repo.Repository, error) {
	if name != "" {
		r, err := a.repos.Lookup(name)
		if err != nil {
			return nil, err
		}
		return []repo.Repository{r}, nil
	}
	return a.repos.List()
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
