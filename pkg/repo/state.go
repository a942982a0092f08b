package repo

import (
	"bytes"
	"sort"

	"github.com/mitchellh/mapstructure"
	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mattsolo1/spkg/pkg/errs"
)

// Entry is the persisted part of a repository.
type Entry struct {
	URL   string                 `mapstructure:"url"`
	Extra map[string]interface{} `mapstructure:",remain"`
}

// State is the persisted mapping of repository name to Entry. It keeps the
// order in which names were inserted.
type State struct {
	names   []string
	entries map[string]Entry
}

// NewState returns an empty state.
func NewState() *State {
	return &State{entries: make(map[string]Entry)}
}

func (s *State) Len() int { return len(s.names) }

// Names returns the repository names in insertion order.
func (s *State) Names() []string {
	return append([]string(nil), s.names...)
}

func (s *State) Get(name string) (Entry, bool) {
	e, ok := s.entries[name]
	return e, ok
}

// Set inserts or replaces name. New names go to the end.
func (s *State) Set(name string, e Entry) {
	if _, ok := s.entries[name]; !ok {
		s.names = append(s.names, name)
	}
	s.entries[name] = e
}

// Delete removes name and reports whether it was present.
func (s *State) Delete(name string) bool {
	if _, ok := s.entries[name]; !ok {
		return false
	}
	delete(s.entries, name)
	for i, n := range s.names {
		if n == name {
			s.names = append(s.names[:i:i], s.names[i+1:]...)
			break
		}
	}
	return true
}

func (s *State) clone() *State {
	c := NewState()
	for _, name := range s.names {
		e := s.entries[name]
		if e.Extra != nil {
			extra := make(map[string]interface{}, len(e.Extra))
			for k, v := range e.Extra {
				extra[k] = v
			}
			e.Extra = extra
		}
		c.Set(name, e)
	}
	return c
}

func (s *State) repository(name string) Repository {
	e := s.entries[name]
	return Repository{Name: name, URL: e.URL, Extra: e.Extra}
}

func parseState(data []byte) (*State, error) {
	st := NewState()
	if len(bytes.TrimSpace(data)) == 0 {
		return st, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errs.Wrap(err, errs.Config, errs.ErrMalformed, "parsing repository config")
	}
	if len(doc.Content) == 0 {
		return st, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errs.New(errs.Config, errs.ErrMalformed, "parsing repository config: top level is not a mapping")
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		if val.Kind != yaml.MappingNode {
			return nil, errs.New(errs.Config, errs.ErrMalformed, "parsing repository config: entry %q is not a mapping", key.Value)
		}

		var raw map[string]interface{}
		if err := val.Decode(&raw); err != nil {
			return nil, errs.Wrap(err, errs.Config, errs.ErrMalformed, "parsing repository config: entry %q", key.Value)
		}

		var e Entry
		if err := mapstructure.Decode(raw, &e); err != nil {
			return nil, errs.Wrap(err, errs.Config, errs.ErrMalformed, "parsing repository config: entry %q", key.Value)
		}
		if len(e.Extra) == 0 {
			e.Extra = nil
		}
		st.Set(key.Value, e)
	}

	return st, nil
}

func (s *State) marshal() ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}

	for _, name := range s.names {
		e := s.entries[name]
		val := &yaml.Node{Kind: yaml.MappingNode}
		val.Content = append(val.Content, scalar("url"), scalar(e.URL))

		keys := make([]string, 0, len(e.Extra))
		for k := range e.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			v := &yaml.Node{}
			if err := v.Encode(e.Extra[k]); err != nil {
				return nil, pkgerrors.Wrapf(err, "encoding field %s of %s", k, name)
			}
			val.Content = append(val.Content, scalar(k), v)
		}

		root.Content = append(root.Content, scalar(name), val)
	}

	if len(root.Content) == 0 {
		return []byte{}, nil
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, pkgerrors.Wrap(err, "encoding repository config")
	}
	if err := enc.Close(); err != nil {
		return nil, pkgerrors.Wrap(err, "encoding repository config")
	}
	return buf.Bytes(), nil
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}
