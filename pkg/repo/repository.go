package repo

import (
	"path"
	"strings"
)

// FetchState records what is known about a repository's manifest.
type FetchState int

const (
	// Unfetched means no manifest fetch was attempted yet.
	Unfetched FetchState = iota
	// Ready means the manifest was fetched and Available is usable.
	Ready
	// Unreachable means the manifest could not be fetched.
	Unreachable
	// Misconfigured means the manifest was fetched but is unusable.
	Misconfigured
)

func (s FetchState) String() string {
	switch s {
	case Ready:
		return "ok"
	case Unreachable:
		return "unreachable"
	case Misconfigured:
		return "misconfigured"
	default:
		return "unfetched"
	}
}

// Asset describes one installable script advertised by a manifest.
type Asset struct {
	File       string `json:"file"`
	MD5        string `json:"md5,omitempty"`
	LastCommit int64  `json:"last_commit,omitempty"`
	Header     string `json:"header,omitempty"`
}

// Name is the base filename of the asset, used for matching script names.
func (a Asset) Name() string {
	return path.Base(a.File)
}

// Repository is a named remote source of scripts. Only Name, URL and Extra
// are persisted; the rest is derived from the last manifest fetch.
type Repository struct {
	Name  string
	URL   string
	Extra map[string]interface{}

	Available []Asset
	Meta      map[string]interface{}
	Err       string
	State     FetchState
}

// HasManifest reports whether Available comes from a usable manifest.
func (r Repository) HasManifest() bool {
	return r.State == Ready
}

// Find returns the advertised asset whose base filename is name.
func (r Repository) Find(name string) (Asset, bool) {
	for _, a := range r.Available {
		if a.Name() == name {
			return a, true
		}
	}
	return Asset{}, false
}

// Resolve joins a repository-relative path onto the repository URL.
func (r Repository) Resolve(rel string) string {
	base := strings.TrimSuffix(r.URL, "/")
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}
	return base + rel
}
