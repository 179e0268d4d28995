// Package appconfig keeps an application's settings in a YAML file under the
// user's config directory.
//
//	cfg, err := appconfig.New("myapp", map[string]any{"theme": "light"})
//	if err != nil {
//	    return err
//	}
//	cfg.Set("theme", "dark")
//	err = cfg.Save()
//
// Changes live in memory until Save is called.
package appconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/hengadev/errsx"
	"gopkg.in/yaml.v3"

	"github.com/hengadev/miscutils"
)

// FileName is the name of the config file inside the app directory.
const FileName = "config.yaml"

var (
	ErrUnsupportedFormat = errors.New("unsupported config format")
	ErrInvalidConfig     = errors.New("invalid app config")
)

// Config is a string-keyed settings map backed by a YAML file. It is safe
// for concurrent use.
type Config struct {
	mu       sync.RWMutex
	appName  string
	dir      string
	defaults map[string]any
	data     map[string]any
	store    *miscutils.FileStore
	logger   *slog.Logger
}

// Option configures a Config.
type Option func(*Config) error

// WithDir stores the config file in dir instead of the user config
// directory.
func WithDir(dir string) Option {
	return func(c *Config) error {
		if dir == "" {
			return fmt.Errorf("%w: directory cannot be empty", ErrInvalidConfig)
		}
		c.dir = dir
		return nil
	}
}

// WithLogger sets the logger Watch reports reload problems to.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) error {
		if logger == nil {
			return fmt.Errorf("%w: logger cannot be nil", ErrInvalidConfig)
		}
		c.logger = logger
		return nil
	}
}

// New opens the config of appName. When no file exists yet the data starts
// as a copy of defaults; nothing is written until Save.
func New(appName string, defaults map[string]any, opts ...Option) (*Config, error) {
	c := &Config{
		appName:  appName,
		defaults: maps.Clone(defaults),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	if c.dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("%w: locate user config directory: %w", ErrInvalidConfig, err)
		}
		c.dir = filepath.Join(base, appName)
	}
	c.store = miscutils.NewFileStore(filepath.Join(c.dir, FileName))

	data, err := c.load()
	if err != nil {
		return nil, err
	}
	c.data = data
	return c, nil
}

func (c *Config) validate() error {
	var errs errsx.Map
	switch {
	case c.appName == "":
		errs.Set("app_name", "app name cannot be empty")
	case c.appName == "." || c.appName == "..":
		errs.Set("app_name", fmt.Sprintf("app name %q is not a directory name", c.appName))
	case strings.ContainsAny(c.appName, `/\`):
		errs.Set("app_name", fmt.Sprintf("app name %q cannot contain path separators", c.appName))
	}
	for key := range c.defaults {
		if key == "" {
			errs.Set("defaults", "default keys cannot be empty")
			break
		}
	}
	if err := errs.AsError(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) load() (map[string]any, error) {
	raw, err := c.store.ReadBytes(context.Background())
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return c.initial(), nil
	}
	data, err := decode(raw, ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.store.Path(), err)
	}
	return data, nil
}

func (c *Config) initial() map[string]any {
	if c.defaults == nil {
		return make(map[string]any)
	}
	return maps.Clone(c.defaults)
}

// AppName returns the name the config was opened with.
func (c *Config) AppName() string { return c.appName }

// Dir returns the directory holding the config file.
func (c *Config) Dir() string { return c.dir }

// Path returns the config file path.
func (c *Config) Path() string { return c.store.Path() }

// Get returns the value stored under key.
func (c *Config) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	return v, ok
}

// GetString returns the value under key when it is a string.
func (c *Config) GetString(key string) (string, bool) {
	v, ok := c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Set stores val under key in memory.
func (c *Config) Set(key string, val any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = val
}

// Delete removes key in memory.
func (c *Config) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Keys returns the keys in sorted order.
func (c *Config) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.data))
}

// Data returns a copy of the settings.
func (c *Config) Data() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.data)
}

// Clear empties the settings. The file keeps its contents until Save.
func (c *Config) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]any)
}

// Reset replaces the settings with the defaults.
func (c *Config) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = c.initial()
}

// Save writes the settings to the config file.
func (c *Config) Save() error {
	c.mu.RLock()
	raw, err := yaml.Marshal(c.data)
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.Path(), err)
	}
	return c.store.WriteBytes(context.Background(), raw)
}

// Import replaces the settings with those in path, a .yaml, .yml or .json
// file.
func (c *Config) Import(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !supported(ext) {
		return fmt.Errorf("%w: %q, want .yaml, .yml or .json", ErrUnsupportedFormat, filepath.Base(path))
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	data, err := decode(raw, ext)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
	return nil
}

// Export copies the saved config file to path.
func (c *Config) Export(path string) error {
	raw, err := os.ReadFile(c.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("export: %s has not been saved yet: %w", c.Path(), err)
	}
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return miscutils.NewFileStore(path).WriteBytes(context.Background(), raw)
}

// ExportTo copies the saved config file into dir, keeping its name.
func (c *Config) ExportTo(dir string) error {
	return c.Export(filepath.Join(dir, FileName))
}

// Watch reloads the settings whenever the config file is written by anyone
// and passes a copy of them to fn. It blocks until ctx is done.
func (c *Config) Watch(ctx context.Context, fn func(map[string]any)) error {
	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer watcher.Close()

	// Saves rename a temporary file over the target, so the directory is
	// watched rather than the file.
	if err := watcher.Add(c.dir); err != nil {
		return fmt.Errorf("watch %s: %w", c.dir, err)
	}

	target := filepath.Clean(c.Path())
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			data, err := c.load()
			if err != nil {
				c.logger.Warn("config reload failed", "app", c.appName, "path", target, "error", err)
				continue
			}
			c.mu.Lock()
			c.data = data
			c.mu.Unlock()
			if fn != nil {
				fn(maps.Clone(data))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("config watcher error", "app", c.appName, "error", err)

		case <-ctx.Done():
			return nil
		}
	}
}

func supported(ext string) bool {
	switch ext {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

func decode(raw []byte, ext string) (map[string]any, error) {
	data := make(map[string]any)
	var err error
	if ext == ".json" {
		err = json.Unmarshal(raw, &data)
	} else {
		err = yaml.Unmarshal(raw, &data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if data == nil {
		data = make(map[string]any)
	}
	return data, nil
}
