// Package environ holds the variables scripts read through env(name).
package environ

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// FileName is the env store looked up in a workspace or home directory.
	FileName = ".env.rd.json"
	// DefaultNamespace is selected when none is requested.
	DefaultNamespace = "default"
)

// Source resolves variable names. The interpreter only reads from it.
type Source interface {
	Lookup(name string) (string, bool)
	Label() string
}

// Store is a namespaced variable file:
//
//	{"default": {"TOKEN": "abc"}, "prod": {"TOKEN": "xyz"}}
type Store struct {
	path     string
	vars     map[string]map[string]string
	selected string
}

// New returns an empty store that saves to path.
func New(path string) *Store {
	return &Store{
		path:     path,
		vars:     map[string]map[string]string{DefaultNamespace: {}},
		selected: DefaultNamespace,
	}
}

// Open loads the store at path. A missing file yields an empty store.
func Open(path string) (*Store, error) {
	s := New(path)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	if err := s.Load(data); err != nil {
		return nil, fmt.Errorf("parse env file %s: %w", path, err)
	}
	return s, nil
}

// Load replaces the store contents with data. Blank input is an empty store.
func (s *Store) Load(data []byte) error {
	vars := map[string]map[string]string{}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &vars); err != nil {
			return err
		}
	}
	if _, ok := vars[DefaultNamespace]; !ok {
		vars[DefaultNamespace] = map[string]string{}
	}
	for ns, values := range vars {
		if values == nil {
			vars[ns] = map[string]string{}
		}
	}
	s.vars = vars
	return nil
}

// Locate picks the env file for a workspace: dir/.env.rd.json when it
// exists, otherwise the one in home. ok is false when neither exists; path
// is then the workspace candidate.
func Locate(dir, home string) (path string, ok bool) {
	candidates := []string{}
	if dir != "" {
		candidates = append(candidates, filepath.Join(dir, FileName))
	}
	if home != "" {
		candidates = append(candidates, filepath.Join(home, FileName))
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, true
		}
	}
	if len(candidates) == 0 {
		return FileName, false
	}
	return candidates[0], false
}

// Path returns the file the store saves to.
func (s *Store) Path() string { return s.path }

// Selected returns the active namespace.
func (s *Store) Selected() string { return s.selected }

// Select switches the active namespace. Unknown namespaces are an error.
func (s *Store) Select(ns string) error {
	if ns == "" {
		ns = DefaultNamespace
	}
	if _, ok := s.vars[ns]; !ok {
		return fmt.Errorf("undefined namespace %q", ns)
	}
	s.selected = ns
	return nil
}

// Lookup resolves name in the active namespace.
func (s *Store) Lookup(name string) (string, bool) {
	return s.LookupIn(s.selected, name)
}

// LookupIn resolves name in ns.
func (s *Store) LookupIn(ns, name string) (string, bool) {
	v, ok := s.vars[ns][name]
	return v, ok
}

// Label names the source in hover text and messages.
func (s *Store) Label() string {
	return s.path + ":" + s.selected
}

// Set assigns name in the active namespace.
func (s *Store) Set(name, value string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("variable name is empty")
	}
	values, ok := s.vars[s.selected]
	if !ok {
		return fmt.Errorf("can't set variable %q: undefined namespace %q", name, s.selected)
	}
	values[name] = value
	return nil
}

// Unset removes name from the active namespace and reports whether it existed.
func (s *Store) Unset(name string) bool {
	values := s.vars[s.selected]
	if _, ok := values[name]; !ok {
		return false
	}
	delete(values, name)
	return true
}

// AddNamespace creates ns if it does not exist.
func (s *Store) AddNamespace(ns string) {
	if _, ok := s.vars[ns]; !ok {
		s.vars[ns] = map[string]string{}
	}
}

// Namespaces lists namespace names sorted, with the default first.
func (s *Store) Namespaces() []string {
	out := make([]string, 0, len(s.vars))
	for ns := range s.vars {
		if ns != DefaultNamespace {
			out = append(out, ns)
		}
	}
	sort.Strings(out)
	return append([]string{DefaultNamespace}, out...)
}

// Names lists the variables of the active namespace sorted.
func (s *Store) Names() []string {
	out := make([]string, 0, len(s.vars[s.selected]))
	for name := range s.vars[s.selected] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ValuesOf returns the value of name in every namespace that defines it.
func (s *Store) ValuesOf(name string) map[string]string {
	out := map[string]string{}
	for ns, values := range s.vars {
		if v, ok := values[name]; ok {
			out[ns] = v
		}
	}
	return out
}

// AllNames lists every variable defined in any namespace, sorted.
func (s *Store) AllNames() []string {
	seen := map[string]struct{}{}
	for _, values := range s.vars {
		for name := range values {
			seen[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// MissingFrom returns the namespaces that do not define name, sorted. It
// is empty when name is defined nowhere.
func (s *Store) MissingFrom(name string) []string {
	defined := s.ValuesOf(name)
	if len(defined) == 0 {
		return nil
	}
	var out []string
	for _, ns := range s.Namespaces() {
		if _, ok := defined[ns]; !ok {
			out = append(out, ns)
		}
	}
	return out
}

// Marshal returns the store as indented JSON.
func (s *Store) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s.vars, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Save writes the store to its path, creating parent directories.
func (s *Store) Save() error {
	data, err := s.Marshal()
	if err != nil {
		return fmt.Errorf("encode env file: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create env dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write env file %s: %w", s.path, err)
	}
	return nil
}
