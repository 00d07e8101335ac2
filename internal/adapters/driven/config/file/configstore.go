package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// DirName is the configuration directory under the user's home.
const DirName = ".smartmarket"

const configFile = "config.toml"

// ConfigStore keeps config.toml in memory as flat dot keys
// ("search.semantic_weight"). Tables are rebuilt on Save.
type ConfigStore struct {
	path string

	mu     sync.RWMutex
	values map[string]any
}

// NewConfigStore opens dir/config.toml, creating dir if needed. An empty
// dir means ~/.smartmarket. The file itself is only written by Save.
func NewConfigStore(dir string) (*ConfigStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locating home directory: %w", err)
		}
		dir = filepath.Join(home, DirName)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}

	s := &ConfigStore{path: filepath.Join(dir, configFile)}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.path
}

// Load replaces the in-memory values with the file content, dropping
// unsaved changes. A missing file is an empty configuration.
func (s *ConfigStore) Load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		raw, err = nil, nil
	}
	if err != nil {
		return err
	}

	tree := map[string]any{}
	if err := toml.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.values = flattenMap(tree, "")
	s.mu.Unlock()
	return nil
}

// Save writes the values as TOML tables. The file is replaced atomically
// with mode 0600.
func (s *ConfigStore) Save() error {
	s.mu.RLock()
	tree, err := expandMap(s.values)
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	out, err := toml.Marshal(tree)
	if err != nil {
		return err
	}
	return replaceFile(s.path, out, 0o600)
}

// Keys returns every key, sorted.
func (s *ConfigStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Get retrieves a configuration value by key.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores a value in memory. Call Save to persist.
func (s *ConfigStore) Set(key string, value any) error {
	if !validKey(key) {
		return fmt.Errorf("invalid config key %q", key)
	}
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	return nil
}

// Delete removes key in memory and reports whether it was set.
func (s *ConfigStore) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.values[key]
	delete(s.values, key)
	return ok
}

// GetString returns "" unless key holds a string.
func (s *ConfigStore) GetString(key string) string {
	v, _ := s.Get(key)
	str, _ := v.(string)
	return str
}

// GetBool returns false unless key holds a boolean.
func (s *ConfigStore) GetBool(key string) bool {
	v, _ := s.Get(key)
	b, _ := v.(bool)
	return b
}

// GetInt returns key as an integer, truncating floats.
func (s *ConfigStore) GetInt(key string) int {
	v, _ := s.Get(key)
	n, _ := number(v)
	return int(n)
}

// GetFloat returns key as a float.
func (s *ConfigStore) GetFloat(key string) float64 {
	v, _ := s.Get(key)
	n, _ := number(v)
	return n
}

// GetDuration reads a Go duration ("30m") or a number of seconds, given
// either as a TOML number or a string.
func (s *ConfigStore) GetDuration(key string) time.Duration {
	v, _ := s.Get(key)
	if str, ok := v.(string); ok {
		if d, err := time.ParseDuration(str); err == nil {
			return d
		}
		secs, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return 0
		}
		v = secs
	}
	secs, _ := number(v)
	return time.Duration(secs * float64(time.Second))
}

// GetStringSlice returns the string elements of an array value.
func (s *ConfigStore) GetStringSlice(key string) []string {
	v, _ := s.Get(key)
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// number converts the numeric types go-toml and callers produce.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func validKey(key string) bool {
	return key != "" && !strings.HasPrefix(key, ".") && !strings.HasSuffix(key, ".")
}

// flattenMap turns {"a": {"b": 1}} into {"a.b": 1}.
func flattenMap(tree map[string]any, prefix string) map[string]any {
	out := make(map[string]any, len(tree))
	for k, v := range tree {
		if prefix != "" {
			k = prefix + "." + k
		}
		table, ok := v.(map[string]any)
		if !ok {
			out[k] = v
			continue
		}
		for sub, sv := range flattenMap(table, k) {
			out[sub] = sv
		}
	}
	return out
}

// expandMap rebuilds the tables flattenMap produced. A key that is both a
// value and a table prefix ("a" and "a.b") is an error.
func expandMap(flat map[string]any) (map[string]any, error) {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	root := map[string]any{}
	for _, key := range keys {
		path := strings.Split(key, ".")
		table := root
		for _, name := range path[:len(path)-1] {
			switch child := table[name].(type) {
			case nil:
				next := map[string]any{}
				table[name] = next
				table = next
			case map[string]any:
				table = child
			default:
				return nil, fmt.Errorf("config key %q conflicts with value %q", key, name)
			}
		}
		leaf := path[len(path)-1]
		if _, taken := table[leaf]; taken {
			return nil, fmt.Errorf("config key %q conflicts with a table", key)
		}
		table[leaf] = flat[key]
	}
	return root, nil
}

// replaceFile writes data beside path and renames it into place.
func replaceFile(path string, data []byte, perm fs.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.toml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Chmod(perm)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
