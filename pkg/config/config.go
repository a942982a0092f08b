// Package config resolves spkg's settings from flags, the environment and
// an optional settings.yaml in the home directory.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mattsolo1/spkg/pkg/errs"
)

const (
	// SettingsFile is read from the home directory when present.
	SettingsFile = "settings.yaml"

	DefaultHome        = "~/.spkg"
	DefaultLayout      = "flat"
	DefaultHTTPTimeout = 30 * time.Second
	DefaultLogLevel    = "warning"

	EnvHome      = "SPKG_HOME"
	EnvScriptDir = "SPKG_SCRIPT_DIR"
	EnvLayout    = "SPKG_LAYOUT"
	EnvLogLevel  = "SPKG_LOG_LEVEL"
)

// Settings is the resolved configuration of one spkg invocation.
type Settings struct {
	Home        string        `yaml:"-"`
	ScriptDir   string        `yaml:"script_dir"`
	Layout      string        `yaml:"layout"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	LogLevel    string        `yaml:"log_level"`
}

// Load resolves settings. Non-zero fields of flags win over the
// environment, which wins over settings.yaml, which wins over defaults.
func Load(flags Settings) (*Settings, error) {
	return load(flags, os.Getenv)
}

func load(flags Settings, getenv func(string) string) (*Settings, error) {
	home, err := expand(first(flags.Home, getenv(EnvHome), DefaultHome))
	if err != nil || home == "" {
		return nil, errs.Wrap(err, errs.Config, errs.ErrMissingHome, "cannot determine base directory").
			WithHint("set %s or pass --home", EnvHome)
	}

	file, err := readFile(filepath.Join(home, SettingsFile))
	if err != nil {
		return nil, err
	}

	s := &Settings{
		Home:      home,
		ScriptDir: first(flags.ScriptDir, getenv(EnvScriptDir), file.ScriptDir, filepath.Join(home, "scripts")),
		Layout:    first(flags.Layout, getenv(EnvLayout), file.Layout, DefaultLayout),
		LogLevel:  first(flags.LogLevel, getenv(EnvLogLevel), file.LogLevel, DefaultLogLevel),
	}

	s.ScriptDir, err = expand(s.ScriptDir)
	if err != nil {
		return nil, errs.Wrap(err, errs.Config, nil, "expanding script directory %s", s.ScriptDir)
	}

	switch {
	case flags.HTTPTimeout > 0:
		s.HTTPTimeout = flags.HTTPTimeout
	case file.HTTPTimeout > 0:
		s.HTTPTimeout = file.HTTPTimeout
	default:
		s.HTTPTimeout = DefaultHTTPTimeout
	}

	return s, nil
}

func readFile(path string) (*Settings, error) {
	s := &Settings{}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, pkgerrors.Wrapf(err, "reading %s", path)
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, errs.Wrap(err, errs.Config, errs.ErrMalformed, "parsing %s", path)
	}
	return s, nil
}

func expand(path string) (string, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", nil
	}
	return filepath.Abs(path)
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
