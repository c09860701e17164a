package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/runtime-bundler/internal/failure"
)

// Config holds the settings of both pipelines.
type Config struct {
	// Runtime describes the guest runtime distribution and the bundle directory.
	Runtime RuntimeConfig `yaml:"runtime"`
	// Package describes the target library and how it is built.
	Package PackageConfig `yaml:"package"`
	// Assets describes the compiled application scanned by asset-list.
	Assets AssetsConfig `yaml:"assets"`
	// Timeout bounds every HTTP request.
	Timeout time.Duration `yaml:"timeout"`
}

// RuntimeConfig locates the guest runtime distribution.
type RuntimeConfig struct {
	// ArchiveURL is the distribution archive (.tar.bz2, .tar.gz or .tar.xz).
	ArchiveURL string `yaml:"archive_url"`
	// LockURL is where the runtime lock file is fetched from.
	// When empty, the lock file shipped inside the archive is read from BundleDir.
	LockURL string `yaml:"lock_url"`
	// BundleDir is recreated on every packaging build.
	BundleDir string `yaml:"bundle_dir"`
	// BootFiles is the whitelist of archive files kept in BundleDir.
	BootFiles []string `yaml:"boot_files"`
	// LockFilename is the name of the lock file inside the archive.
	LockFilename string `yaml:"lock_filename"`
}

// PackageConfig describes the library shipped with the runtime.
type PackageConfig struct {
	// Name is the distribution name of the target library.
	Name string `yaml:"name"`
	// Version pins the target library.
	Version string `yaml:"version"`
	// IndexURL overrides the package index used by FetchCommand.
	IndexURL string `yaml:"index_url"`
	// ArtifactExt selects bundle files that are package artifacts.
	ArtifactExt string `yaml:"artifact_ext"`
	// FetchCommand builds artifacts; supports {requirement}, {dir} and {index_url}.
	FetchCommand []string `yaml:"fetch_command"`
	// CompileCommand rewrites artifacts in place; supports {dir}.
	CompileCommand []string `yaml:"compile_command"`
	// ManifestPath is where the package manifest is written.
	ManifestPath string `yaml:"manifest_path"`
	// ResolveMode is either ResolveTransitive or ResolveShallow.
	ResolveMode string `yaml:"resolve_mode"`
}

// AssetsConfig describes the compiled application output.
type AssetsConfig struct {
	// DistRoot holds one output directory per language.
	DistRoot string `yaml:"dist_root"`
	// Languages is the enumerated set accepted by --lang.
	Languages []string `yaml:"languages"`
	// Blacklist contains basenames that are never precached.
	Blacklist []string `yaml:"blacklist"`
	// ExternalAssetsFile lists already-published assets, as {"files": [...]}.
	ExternalAssetsFile string `yaml:"external_assets_file"`
	// ManifestFilename is the asset manifest written into the output directory.
	ManifestFilename string `yaml:"manifest_filename"`
	// RevisionEnv lists CI variables checked, in order, for the commit hash.
	RevisionEnv []string `yaml:"revision_env"`
}

// Resolve modes.
const (
	// ResolveTransitive expands dependencies until no new names appear.
	ResolveTransitive = "transitive"
	// ResolveShallow expands the direct dependencies of remote packages only.
	ResolveShallow = "shallow"
)

const (
	// DefaultConfigFilename is looked up when --config is not given.
	DefaultConfigFilename = "bundler.yaml"

	// DefaultEnvFilename is loaded into the environment when present.
	DefaultEnvFilename = ".env"

	// DefaultTimeout bounds every HTTP request.
	DefaultTimeout = 30 * time.Second

	// DefaultFilePermissions is used for config files.
	DefaultFilePermissions = 0o600

	defaultRuntimeVersion = "0.27.3"
)

// Default returns the settings used to package the mechaphlowers library with Pyodide.
func Default() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			ArchiveURL: "https://github.com/pyodide/pyodide/releases/download/" +
				defaultRuntimeVersion + "/pyodide-core-" + defaultRuntimeVersion + ".tar.bz2",
			LockURL:   "https://cdn.jsdelivr.net/pyodide/v" + defaultRuntimeVersion + "/full/pyodide-lock.json",
			BundleDir: filepath.Join("public", "pyodide"),
			BootFiles: []string{
				"pyodide.asm.wasm",
				"pyodide.asm.js",
				"pyodide.mjs",
				"python_stdlib.zip",
				"pyodide-lock.json",
			},
			LockFilename: "pyodide-lock.json",
		},
		Package: PackageConfig{
			Name:           "mechaphlowers",
			Version:        "0.2.0",
			ArtifactExt:    ".whl",
			FetchCommand:   []string{"pip", "wheel", "{requirement}", "-w", "{dir}"},
			CompileCommand: []string{"pyodide", "py-compile", "--compression-level", "6", "{dir}"},
			ManifestPath:   filepath.Join("src", "python-packages.json"),
			ResolveMode:    ResolveTransitive,
		},
		Assets: AssetsConfig{
			DistRoot:           filepath.Join("dist", "phlowers-stellar-app", "browser"),
			Languages:          []string{"en", "fr"},
			Blacklist:          []string{"service-worker.js"},
			ExternalAssetsFile: filepath.Join("scripts", "external_assets.json"),
			ManifestFilename:   "assets_list.json",
			RevisionEnv:        []string{"GIT_COMMIT_SHA", "GITHUB_SHA", "CI_COMMIT_SHA"},
		},
		Timeout: DefaultTimeout,
	}
}

var (
	errConfigIsNotSet   = errors.New("configuration is not set")
	errRequired         = errors.New("value is required")
	errBadURL           = errors.New("must be an absolute http(s) URL")
	errUnknownMode      = errors.New("unknown resolve mode")
	errUnknownLanguage  = errors.New("language is not in the configured set")
	errBadArtifactExt   = errors.New("artifact extension must start with a dot")
	errPathSeparator    = errors.New("must be a bare file name")
	errNoLanguages      = errors.New("at least one language must be configured")
	errEmptyBootFileSet = errors.New("at least one boot file must be configured")
)

// Load reads path over Default. An empty path returns Default unchanged,
// or DefaultConfigFilename when it exists in the working directory.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultConfigFilename); err != nil {
			return cfg, nil
		}

		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, failure.Configuration("read settings", path, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(contents))
	decoder.KnownFields(true)

	if err = decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, failure.Configuration("decode settings", path, err)
	}

	return cfg, nil
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return failure.Configuration("save settings", path, errConfigIsNotSet)
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return failure.Filesystem("write settings", path, err)
	}

	return nil
}

// LoadEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{DefaultEnvFilename}
	}

	for _, name := range files {
		if err := godotenv.Load(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}

			return failure.Configuration("load environment", name, err)
		}
	}

	return nil
}

// ValidatePackaging checks everything bundle-runtime needs and fills defaults.
func ValidatePackaging(cfg *Config) error {
	if cfg == nil {
		return failure.Configuration("validate", "settings", errConfigIsNotSet)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.Package.ResolveMode == "" {
		cfg.Package.ResolveMode = ResolveTransitive
	}

	if err := validateURL("runtime.archive_url", cfg.Runtime.ArchiveURL); err != nil {
		return err
	}

	if cfg.Runtime.LockURL != "" {
		if err := validateURL("runtime.lock_url", cfg.Runtime.LockURL); err != nil {
			return err
		}
	}

	if cfg.Package.IndexURL != "" {
		if err := validateURL("package.index_url", cfg.Package.IndexURL); err != nil {
			return err
		}
	}

	required := map[string]string{
		"runtime.bundle_dir":    cfg.Runtime.BundleDir,
		"runtime.lock_filename": cfg.Runtime.LockFilename,
		"package.name":          cfg.Package.Name,
		"package.manifest_path": cfg.Package.ManifestPath,
	}
	for _, key := range sortedKeys(required) {
		if strings.TrimSpace(required[key]) == "" {
			return failure.Configuration("validate", key, errRequired)
		}
	}

	if len(cfg.Runtime.BootFiles) == 0 {
		return failure.Configuration("validate", "runtime.boot_files", errEmptyBootFileSet)
	}

	for _, name := range cfg.Runtime.BootFiles {
		if name == "" || strings.ContainsAny(name, `/\`) {
			return failure.Configuration("validate", "runtime.boot_files "+name, errPathSeparator)
		}
	}

	if len(cfg.Package.FetchCommand) == 0 {
		return failure.Configuration("validate", "package.fetch_command", errRequired)
	}

	if !strings.HasPrefix(cfg.Package.ArtifactExt, ".") {
		return failure.Configuration("validate", "package.artifact_ext", errBadArtifactExt)
	}

	switch cfg.Package.ResolveMode {
	case ResolveTransitive, ResolveShallow:
	default:
		return failure.Configuration("validate", "package.resolve_mode "+cfg.Package.ResolveMode, errUnknownMode)
	}

	return nil
}

// ValidateAssets checks the asset-list settings and the language selector.
func ValidateAssets(cfg *Config, language string) error {
	if cfg == nil {
		return failure.Configuration("validate", "settings", errConfigIsNotSet)
	}

	if len(cfg.Assets.Languages) == 0 {
		return failure.Configuration("validate", "assets.languages", errNoLanguages)
	}

	if strings.TrimSpace(language) == "" {
		return failure.Configuration("validate", "--lang", errRequired)
	}

	if !slices.Contains(cfg.Assets.Languages, language) {
		return failure.Configuration(
			"validate",
			fmt.Sprintf("--lang %q (allowed: %s)", language, strings.Join(cfg.Assets.Languages, ", ")),
			errUnknownLanguage,
		)
	}

	if strings.TrimSpace(cfg.Assets.DistRoot) == "" {
		return failure.Configuration("validate", "assets.dist_root", errRequired)
	}

	if cfg.Assets.ManifestFilename == "" || strings.ContainsAny(cfg.Assets.ManifestFilename, `/\`) {
		return failure.Configuration("validate", "assets.manifest_filename", errPathSeparator)
	}

	if strings.TrimSpace(cfg.Assets.ExternalAssetsFile) == "" {
		return failure.Configuration("validate", "assets.external_assets_file", errRequired)
	}

	return nil
}

// OutputDir returns the compiled output directory for language.
func (c *AssetsConfig) OutputDir(language string) string {
	return filepath.Join(c.DistRoot, language)
}

func validateURL(key, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return failure.Configuration("validate", key, errRequired)
	}

	parsed, err := url.ParseRequestURI(raw)
	if err != nil {
		return failure.Configuration("validate", key, err)
	}

	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return failure.Configuration("validate", key+" "+raw, errBadURL)
	}

	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}
