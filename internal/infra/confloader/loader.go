package confloader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "SVCREG_"

// envNestSeparator separates nesting levels in environment keys.
const envNestSeparator = "__"

// dropInPattern selects drop-in files inside the drop-in directory.
const dropInPattern = "*.{yaml,yml}"

// Source names reported by Origins.
const (
	OriginEnv = "env"
	OriginMap = "map"
)

// Loader merges configuration layers and remembers which layer set each
// key.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	dropInDir string
	origins   map[string]string
}

// Option is a function that configures the Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the main configuration file. It must exist.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// WithDropInDir sets a directory whose *.yaml files are layered over the
// main file in lexical order, e.g. /etc/svcreg/conf.d. A missing
// directory is not an error.
func WithDropInDir(dir string) Option {
	return func(l *Loader) {
		l.dropInDir = dir
	}
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
		origins:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load layers the main file, the drop-ins and the environment, in that
// order, and unmarshals the result into target. Fields of target that no
// layer sets keep their current value, so callers pass a struct
// pre-filled with defaults.
func (l *Loader) Load(target any) error {
	if err := l.LoadFile(l.filePath); err != nil {
		return err
	}
	if err := l.LoadDropIns(); err != nil {
		return err
	}
	if err := l.LoadEnv(); err != nil {
		return err
	}
	if err := l.Unmarshal(target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// LoadFile layers a YAML file. An empty path is a no-op.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	layer := koanf.New(".")
	if err := layer.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load config file %s: %w", path, err)
	}
	return l.merge(layer, path)
}

// LoadDropIns layers the files listed by DropIns.
func (l *Loader) LoadDropIns() error {
	files, err := l.DropIns()
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := l.LoadFile(f); err != nil {
			return err
		}
	}
	return nil
}

// DropIns lists the drop-in files that Load would read, sorted. Glob
// skips unreadable directories, so a missing drop-in dir yields none.
func (l *Loader) DropIns() ([]string, error) {
	if l.dropInDir == "" {
		return nil, nil
	}
	names, err := doublestar.Glob(os.DirFS(l.dropInDir), dropInPattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("list drop-ins in %s: %w", l.dropInDir, err)
	}
	sort.Strings(names)
	files := make([]string, 0, len(names))
	for _, n := range names {
		files = append(files, filepath.Join(l.dropInDir, n))
	}
	return files, nil
}

// LoadEnv layers environment variables carrying the prefix. A double
// underscore nests, a single one stays in the key:
// SVCREG_SECURITY__POLICY_FILE=/etc/svcreg/policy.yaml sets
// security.policy_file.
func (l *Loader) LoadEnv() error {
	transform := func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, l.envPrefix))
		return strings.ReplaceAll(s, envNestSeparator, ".")
	}
	layer := koanf.New(".")
	if err := layer.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return l.merge(layer, OriginEnv)
}

// LoadMap layers a map of dotted keys, e.g. values taken from
// command-line flags.
func (l *Loader) LoadMap(data map[string]any) error {
	layer := koanf.New(".")
	if err := layer.Load(mapProvider(data), nil); err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	return l.merge(layer, OriginMap)
}

func (l *Loader) merge(layer *koanf.Koanf, origin string) error {
	if err := l.k.Merge(layer); err != nil {
		return fmt.Errorf("merge %s: %w", origin, err)
	}
	for _, key := range layer.Keys() {
		l.origins[key] = origin
	}
	return nil
}

// Unmarshal unmarshals the merged configuration into target using koanf
// tags.
func (l *Loader) Unmarshal(target any) error {
	return l.k.Unmarshal("", target)
}

// Origins maps every key set by a layer to the layer that set it last: a
// file path, OriginEnv or OriginMap.
func (l *Loader) Origins() map[string]string {
	out := make(map[string]string, len(l.origins))
	for k, v := range l.origins {
		out[k] = v
	}
	return out
}

// GetString returns a string value from the configuration.
func (l *Loader) GetString(key string) string {
	return l.k.String(key)
}

// GetBool returns a bool value from the configuration.
func (l *Loader) GetBool(key string) bool {
	return l.k.Bool(key)
}
