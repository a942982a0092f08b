package repo

import (
	"iter"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/spkg/pkg/errs"
)

// ConfigFile is the name of the repository mapping inside the home directory.
const ConfigFile = "repos.yaml"

// Manager persists the known repositories. All read-modify-write cycles on
// the backing file are serialized by mu; other processes are not coordinated.
type Manager struct {
	reposDir   string
	configPath string
	mu         sync.Mutex
	log        logrus.FieldLogger
}

// NewManager opens the repository config below home.
func NewManager(home string, log logrus.FieldLogger) (*Manager, error) {
	if strings.TrimSpace(home) == "" {
		return nil, errs.New(errs.Config, errs.ErrMissingHome, "no base directory configured").
			WithHint("set SPKG_HOME or pass --home")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	reposDir := filepath.Join(home, "repos")
	if err := os.MkdirAll(reposDir, 0755); err != nil {
		return nil, pkgerrors.Wrap(err, "creating repos directory")
	}

	return &Manager{
		reposDir:   reposDir,
		configPath: filepath.Join(home, ConfigFile),
		log:        log.WithField("component", "repo"),
	}, nil
}

// Path returns the location of the backing file.
func (m *Manager) Path() string {
	return m.configPath
}

// Dir returns the local directory belonging to repository name.
func (m *Manager) Dir(name string) string {
	return filepath.Join(m.reposDir, name)
}

// Read loads the persisted mapping. A missing or empty file is an empty mapping.
func (m *Manager) Read() (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load()
}

// Atomic runs fn on a copy of the current state under the lock. If fn fails
// nothing is written. If fn returns a nil state the original is written back
// unchanged; otherwise the returned state replaces it.
func (m *Manager) Atomic(fn func(*State) (*State, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.load()
	if err != nil {
		return err
	}

	next, err := fn(current.clone())
	if err != nil {
		return err
	}
	if next == nil {
		next = current
	}

	return m.save(next)
}

// Create registers a new repository under name.
func (m *Manager) Create(name, rawURL string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := validateURL(rawURL); err != nil {
		return err
	}

	err := m.Atomic(func(st *State) (*State, error) {
		if _, exists := st.Get(name); exists {
			return nil, errs.New(errs.Config, errs.ErrDuplicate, "repository %s already exists", name).
				WithHint("remove it first with `spkg repo rm %s`", name)
		}
		if err := os.MkdirAll(m.Dir(name), 0755); err != nil {
			return nil, pkgerrors.Wrapf(err, "creating directory for %s", name)
		}
		st.Set(name, Entry{URL: rawURL})
		return st, nil
	})
	if err != nil {
		return err
	}

	m.log.WithFields(logrus.Fields{
		"repo": name,
		"url":  rawURL,
	}).Debug("Added repository")
	return nil
}

// Remove deletes the entry for name.
func (m *Manager) Remove(name string) error {
	err := m.Atomic(func(st *State) (*State, error) {
		if !st.Delete(name) {
			return nil, notFound(name)
		}
		return st, nil
	})
	if err != nil {
		return err
	}

	// Only an empty directory goes away with the entry.
	if err := os.Remove(m.Dir(name)); err != nil && !os.IsNotExist(err) {
		m.log.WithField("repo", name).WithError(err).Debug("Keeping repository directory")
	}

	m.log.WithField("repo", name).Debug("Removed repository")
	return nil
}

// Lookup returns the repository registered as name.
func (m *Manager) Lookup(name string) (Repository, error) {
	st, err := m.Read()
	if err != nil {
		return Repository{}, err
	}
	if _, ok := st.Get(name); !ok {
		return Repository{}, notFound(name)
	}
	return st.repository(name), nil
}

// All yields the known repositories in insertion order. Each iteration
// re-reads the backing file.
func (m *Manager) All() iter.Seq2[Repository, error] {
	return func(yield func(Repository, error) bool) {
		st, err := m.Read()
		if err != nil {
			yield(Repository{}, err)
			return
		}
		for _, name := range st.names {
			if !yield(st.repository(name), nil) {
				return
			}
		}
	}
}

// List collects All into a slice.
func (m *Manager) List() ([]Repository, error) {
	var repos []Repository
	for r, err := range m.All() {
		if err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, nil
}

func (m *Manager) load() (*State, error) {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, pkgerrors.Wrap(err, "reading repository config")
	}
	return parseState(data)
}

func (m *Manager) save(st *State) error {
	data, err := st.marshal()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.configPath), ".repos-*.yaml")
	if err != nil {
		return pkgerrors.Wrap(err, "writing repository config")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return pkgerrors.Wrap(err, "writing repository config")
	}
	if err := tmp.Close(); err != nil {
		return pkgerrors.Wrap(err, "writing repository config")
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return pkgerrors.Wrap(err, "writing repository config")
	}
	if err := os.Rename(tmp.Name(), m.configPath); err != nil {
		return pkgerrors.Wrap(err, "writing repository config")
	}
	return nil
}

func notFound(name string) *errs.Error {
	return errs.New(errs.Config, errs.ErrNotFound, "no repository named %s", name).
		WithHint("see `spkg repo list` for known repositories")
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return errs.New(errs.Config, errs.ErrInvalidName, "invalid repository name %q", name)
	}
	return nil
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return errs.Wrap(err, errs.Config, errs.ErrInvalidURL, "invalid repository url %q", rawURL)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errs.New(errs.Config, errs.ErrInvalidURL, "invalid repository url %q: must be http(s)", rawURL)
	}
	return nil
}
