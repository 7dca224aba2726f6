// Package config loads livedoc.toml, the .env file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/phobologic/livedoc/internal/lang"
	"github.com/phobologic/livedoc/internal/model"
)

// FileName is the configuration file looked up from the working directory.
const FileName = "livedoc.toml"

const (
	defaultStore  = ".livedoc/livedoc.db"
	defaultOutDir = "build/docs"
)

// ErrNotFound is returned by Find when no configuration file exists.
var ErrNotFound = errors.New("no " + FileName + " found")

type fileConfig struct {
	Store         string            `toml:"store"`
	CacheDir      string            `toml:"cache_dir"`
	OutDir        string            `toml:"out_dir"`
	DocExtensions []string          `toml:"doc_extensions"`
	Jobs          int               `toml:"jobs"`
	Repos         []repoConfig      `toml:"repo"`
	Comments      map[string]string `toml:"comments"`
}

type repoConfig struct {
	ID         string   `toml:"id"`
	Root       string   `toml:"root"`
	Name       string   `toml:"name"`
	Visibility string   `toml:"visibility"`
	Default    bool     `toml:"default"`
	Docs       []string `toml:"docs"`
}

// envConfig holds overrides read from the environment (and .env).
type envConfig struct {
	Store    string `env:"LIVEDOC_STORE"`
	CacheDir string `env:"LIVEDOC_CACHE_DIR"`
	OutDir   string `env:"LIVEDOC_OUT_DIR"`
	Jobs     int    `env:"LIVEDOC_JOBS"`
}

// Config is the validated configuration for one run. All paths are absolute.
type Config struct {
	Path          string
	Dir           string
	Store         string
	CacheDir      string // Empty disables the extraction cache
	OutDir        string
	DocExtensions []string
	Jobs          int
	Repos         []model.Repo
	Comments      map[string]string
}

// Table returns the built-in comment-marker table extended with the
// configured overrides.
func (c *Config) Table() lang.Table {
	return lang.DefaultTable().With(c.Comments)
}

// Find walks up from startDir looking for livedoc.toml.
func Find(startDir string) (string, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", ErrNotFound
}

// Load reads and validates the configuration at path. A .env file next to
// it is loaded first; LIVEDOC_* variables override file values.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// A missing .env is normal.
	_ = godotenv.Load(filepath.Join(filepath.Dir(absPath), ".env"))

	var overrides envConfig
	if err := env.Parse(&overrides); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg, err := Parse(string(data), absPath)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv(overrides)
	return cfg, nil
}

// Parse decodes and validates TOML text as if read from path.
func Parse(data, path string) (*Config, error) {
	var fc fileConfig
	meta, err := toml.Decode(data, &fc)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}
	if !meta.IsDefined("repo") || len(fc.Repos) == 0 {
		return nil, fmt.Errorf("%s: at least one [[repo]] is required", path)
	}

	dir := filepath.Dir(path)
	cfg := &Config{
		Path:          path,
		Dir:           dir,
		Store:         resolvePath(dir, firstNonEmpty(fc.Store, defaultStore)),
		OutDir:        resolvePath(dir, firstNonEmpty(fc.OutDir, defaultOutDir)),
		DocExtensions: fc.DocExtensions,
		Jobs:          fc.Jobs,
		Comments:      fc.Comments,
	}
	if fc.CacheDir != "" {
		cfg.CacheDir = resolvePath(dir, fc.CacheDir)
	}
	if len(cfg.DocExtensions) == 0 {
		cfg.DocExtensions = []string{".md"}
	}
	for i, ext := range cfg.DocExtensions {
		cfg.DocExtensions[i] = lang.NormalizeExt(ext)
	}

	for i, rc := range fc.Repos {
		if strings.TrimSpace(rc.Root) == "" {
			return nil, fmt.Errorf("%s: repo %d: missing root", path, i+1)
		}
		vis := model.Visibility(strings.ToLower(firstNonEmpty(rc.Visibility, string(model.Public))))
		cfg.Repos = append(cfg.Repos, model.Repo{
			ID:         strings.TrimSpace(rc.ID),
			Root:       resolvePath(dir, rc.Root),
			Name:       rc.Name,
			Visibility: vis,
			Default:    rc.Default,
			Docs:       rc.Docs,
		})
	}
	if err := ValidateRepos(cfg.Repos); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ValidateRepos checks ids, visibility and that at most one repo is the
// default.
func ValidateRepos(repos []model.Repo) error {
	seen := make(map[string]struct{}, len(repos))
	var defaults []string
	for i, r := range repos {
		if r.ID == "" {
			return fmt.Errorf("repo %d: missing id", i+1)
		}
		if strings.ContainsAny(r.ID, "/# \t") {
			return fmt.Errorf("repo %q: id must not contain '/', '#' or whitespace", r.ID)
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("repo %q: duplicate id", r.ID)
		}
		seen[r.ID] = struct{}{}

		switch r.Visibility {
		case model.Public, model.Unlisted, model.Private:
		default:
			return fmt.Errorf("repo %q: unknown visibility %q", r.ID, r.Visibility)
		}
		if r.Default {
			defaults = append(defaults, r.ID)
		}
	}
	if len(defaults) > 1 {
		return fmt.Errorf("more than one default repo: %s", strings.Join(defaults, ", "))
	}
	return nil
}

func (c *Config) applyEnv(e envConfig) {
	if e.Store != "" {
		c.Store = resolvePath(c.Dir, e.Store)
	}
	if e.CacheDir != "" {
		c.CacheDir = resolvePath(c.Dir, e.CacheDir)
	}
	if e.OutDir != "" {
		c.OutDir = resolvePath(c.Dir, e.OutDir)
	}
	if e.Jobs > 0 {
		c.Jobs = e.Jobs
	}
}

func resolvePath(dir, p string) string {
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, p)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
