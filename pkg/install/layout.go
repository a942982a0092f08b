package install

import (
	"fmt"
	"path/filepath"

	"github.com/mattsolo1/spkg/pkg/repo"
)

// Layout decides where a script lands inside the script directory. It is
// picked once at startup for the host environment.
type Layout interface {
	Name() string
	Target(scriptDir string, r repo.Repository, a repo.Asset) string
}

// Flat installs every script directly into the script directory.
type Flat struct{}

func (Flat) Name() string { return "flat" }

func (Flat) Target(scriptDir string, _ repo.Repository, a repo.Asset) string {
	return filepath.Join(scriptDir, a.Name())
}

// PerRepository installs scripts into a subdirectory named after their repository.
type PerRepository struct{}

func (PerRepository) Name() string { return "per-repo" }

func (PerRepository) Target(scriptDir string, r repo.Repository, a repo.Asset) string {
	return filepath.Join(scriptDir, r.Name, a.Name())
}

// LayoutByName returns the layout called name.
func LayoutByName(name string) (Layout, error) {
	switch name {
	case "", Flat{}.Name():
		return Flat{}, nil
	case PerRepository{}.Name():
		return PerRepository{}, nil
	default:
		return nil, fmt.Errorf("unknown layout %q (want %q or %q)", name, Flat{}.Name(), PerRepository{}.Name())
	}
}
