package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Level distinguishes the user-wide config file from a per-workspace one.
type Level string

const (
	LevelUser      Level = "user"
	LevelWorkspace Level = "workspace"
)

// File is the on-disk YAML document.
type File struct {
	Providers []Provider `yaml:"providers" json:"providers"`
	Defaults  *Defaults  `yaml:"defaults,omitempty" json:"defaults,omitempty"`
}

// FileStore reads and writes provider configuration from one YAML file.
// Loads go through an in-memory cache; saves update the cache after writing.
type FileStore struct {
	path  string
	level Level

	mu    sync.RWMutex
	cache *File
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store for an explicit path and level.
func NewFileStore(path string, level Level) *FileStore {
	return &FileStore{path: path, level: level}
}

// UserStore creates the user-level store at <config dir>/openllm/config.yaml.
func UserStore() (*FileStore, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return nil, fmt.Errorf("locating user config dir: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return NewFileStore(filepath.Join(dir, "openllm", "config.yaml"), LevelUser), nil
}

// WorkspaceStore creates the workspace-level store at
// <root>/.config/openllm/config.yaml.
func WorkspaceStore(workspaceRoot string) *FileStore {
	return NewFileStore(filepath.Join(workspaceRoot, ".config", "openllm", "config.yaml"), LevelWorkspace)
}

// Path returns the config file path.
func (s *FileStore) Path() string { return s.path }

// Level returns the store level.
func (s *FileStore) Level() Level { return s.level }

// Exists reports whether the config file is present on disk.
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// source returns the Source stamped onto loaded providers.
func (s *FileStore) source() Source {
	if s.level == LevelWorkspace {
		return SourceNativeWorkspace
	}
	return SourceNativeUser
}

// load reads the file from disk. A missing file is an empty config, not an
// error. Unknown YAML keys are tolerated.
func (s *FileStore) load() (*File, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	for i := range f.Providers {
		f.Providers[i].Source = s.source()
	}
	return &f, nil
}

// save writes the file to disk, creating parent directories, then updates
// the cache.
func (s *FileStore) save(f *File) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("serializing config: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.cache = cloneFile(f)
	s.mu.Unlock()
	return nil
}

// config returns the cached file, loading it on first access.
func (s *FileStore) config() (*File, error) {
	s.mu.RLock()
	if s.cache != nil {
		f := cloneFile(s.cache)
		s.mu.RUnlock()
		return f, nil
	}
	s.mu.RUnlock()

	f, err := s.load()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cache = cloneFile(f)
	s.mu.Unlock()
	return f, nil
}

// Reload discards the cache and re-reads the file from disk.
func (s *FileStore) Reload() (*File, error) {
	f, err := s.load()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cache = cloneFile(f)
	s.mu.Unlock()
	return f, nil
}

// Providers returns all providers in the file.
func (s *FileStore) Providers(ctx context.Context) ([]Provider, error) {
	f, err := s.config()
	if err != nil {
		return nil, err
	}
	return f.Providers, nil
}

// UpdateProvider replaces an existing provider, matched case-insensitively.
func (s *FileStore) UpdateProvider(ctx context.Context, name string, p Provider) error {
	f, err := s.config()
	if err != nil {
		return err
	}
	lower := strings.ToLower(name)
	for i := range f.Providers {
		if strings.ToLower(f.Providers[i].Name) == lower {
			f.Providers[i] = p
			return s.save(f)
		}
	}
	return fmt.Errorf("%w: %s", ErrProviderNotFound, name)
}

// AddProvider adds a new provider. Names collide case-insensitively.
func (s *FileStore) AddProvider(ctx context.Context, p Provider) error {
	f, err := s.config()
	if err != nil {
		return err
	}
	lower := strings.ToLower(p.Name)
	for i := range f.Providers {
		if strings.ToLower(f.Providers[i].Name) == lower {
			return fmt.Errorf("%w: %s", ErrProviderExists, p.Name)
		}
	}
	f.Providers = append(f.Providers, p)
	return s.save(f)
}

// RemoveProvider deletes a provider, matched case-insensitively.
func (s *FileStore) RemoveProvider(ctx context.Context, name string) error {
	f, err := s.config()
	if err != nil {
		return err
	}
	lower := strings.ToLower(name)
	kept := f.Providers[:0]
	for _, p := range f.Providers {
		if strings.ToLower(p.Name) != lower {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(f.Providers) {
		return fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	f.Providers = kept
	return s.save(f)
}

// Defaults returns the file's default settings, or nil when unset.
func (s *FileStore) Defaults() (*Defaults, error) {
	f, err := s.config()
	if err != nil {
		return nil, err
	}
	return f.Defaults, nil
}

// SetDefaults replaces the file's default settings.
func (s *FileStore) SetDefaults(d Defaults) error {
	f, err := s.config()
	if err != nil {
		return err
	}
	f.Defaults = &d
	return s.save(f)
}

// Backup copies the config file to <path>.backup. Returns "" without error
// when no file exists yet.
func (s *FileStore) Backup() (string, error) {
	if !s.Exists() {
		return "", nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", s.path, err)
	}
	backupPath := s.path + ".backup"
	if err := os.WriteFile(backupPath, data, 0o600); err != nil {
		return "", fmt.Errorf("writing %s: %w", backupPath, err)
	}
	return backupPath, nil
}

// ExportJSON serializes the config as indented JSON for migration.
func (s *FileStore) ExportJSON() (string, error) {
	f, err := s.config()
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serializing config: %w", err)
	}
	return string(data), nil
}

// ImportJSON replaces the config with a JSON document, for migration from
// a host application export.
func (s *FileStore) ImportJSON(doc string) error {
	var f File
	if err := json.Unmarshal([]byte(doc), &f); err != nil {
		return fmt.Errorf("parsing import: %w", err)
	}
	return s.save(&f)
}

// ImportProviders replaces the provider list, keeping defaults.
func (s *FileStore) ImportProviders(providers []Provider) error {
	f, err := s.config()
	if err != nil {
		return err
	}
	f.Providers = providers
	return s.save(f)
}

func cloneFile(f *File) *File {
	out := &File{Providers: make([]Provider, len(f.Providers))}
	copy(out.Providers, f.Providers)
	if f.Defaults != nil {
		d := *f.Defaults
		out.Defaults = &d
	}
	return out
}
