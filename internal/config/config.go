package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"scadforge/internal/paths"
)

// CurrentVersion is the config schema version written by Save
const CurrentVersion = 1

// EnvPrefix prefixes every environment override, e.g. SCADFORGE_RENDER_CONCURRENCY
const EnvPrefix = "SCADFORGE"

// Config represents the complete scadforge configuration
type Config struct {
	Version     int    `json:"version" mapstructure:"version"`
	ProjectRoot string `json:"projectRoot" mapstructure:"projectRoot"`

	VM         VMConfig         `json:"vm" mapstructure:"vm"`
	Library    LibraryConfig    `json:"library" mapstructure:"library"`
	ImportScan ImportScanConfig `json:"importScan" mapstructure:"importScan"`
	Engine     EngineConfig     `json:"engine" mapstructure:"engine"`
	Render     RenderConfig     `json:"render" mapstructure:"render"`
	Watch      WatchConfig      `json:"watch" mapstructure:"watch"`
	Export     ExportConfig     `json:"export" mapstructure:"export"`
	Logging    LoggingConfig    `json:"logging" mapstructure:"logging"`
}

// VMConfig contains the layout of the per-render filesystem
type VMConfig struct {
	ProjectRoot string `json:"projectRoot" mapstructure:"projectRoot"`
	OutputDir   string `json:"outputDir" mapstructure:"outputDir"`
	TempDir     string `json:"tempDir" mapstructure:"tempDir"`
}

// LibraryConfig contains where library and other external files come from
type LibraryConfig struct {
	Prefix       string `json:"prefix" mapstructure:"prefix"`
	Dir          string `json:"dir" mapstructure:"dir"`
	BaseURL      string `json:"baseURL" mapstructure:"baseURL"`
	CacheEntries int    `json:"cacheEntries" mapstructure:"cacheEntries"`
}

// ImportScanConfig contains import collection limits
type ImportScanConfig struct {
	MaxFiles int `json:"maxFiles" mapstructure:"maxFiles"`
}

// EngineConfig contains the geometry engine invocation
type EngineConfig struct {
	Command   []string `json:"command" mapstructure:"command"`
	TimeoutMs int      `json:"timeoutMs" mapstructure:"timeoutMs"`
	Rebase    bool     `json:"rebase" mapstructure:"rebase"`
}

// RenderConfig contains orchestration settings
type RenderConfig struct {
	Concurrency     int  `json:"concurrency" mapstructure:"concurrency"`
	PreviewFallback bool `json:"previewFallback" mapstructure:"previewFallback"`
	Cache           bool `json:"cache" mapstructure:"cache"`
	CacheTtlSeconds int  `json:"cacheTtlSeconds" mapstructure:"cacheTtlSeconds"`
	HistoryDays     int  `json:"historyDays" mapstructure:"historyDays"`
}

// WatchConfig contains the polling settings of render --watch
type WatchConfig struct {
	PollIntervalMs int `json:"pollIntervalMs" mapstructure:"pollIntervalMs"`
	DebounceMs     int `json:"debounceMs" mapstructure:"debounceMs"`
}

// ExportConfig contains where rendered meshes are written
type ExportConfig struct {
	Dir    string   `json:"dir" mapstructure:"dir"`
	PerRun bool     `json:"perRun" mapstructure:"perRun"`
	S3     S3Config `json:"s3" mapstructure:"s3"`
}

// S3Config contains the S3-compatible export target
type S3Config struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	Endpoint  string `json:"endpoint" mapstructure:"endpoint"`
	Region    string `json:"region" mapstructure:"region"`
	AccessKey string `json:"accessKey,omitempty" mapstructure:"accessKey"`
	SecretKey string `json:"secretKey,omitempty" mapstructure:"secretKey"`
	Bucket    string `json:"bucket" mapstructure:"bucket"`
	Prefix    string `json:"prefix" mapstructure:"prefix"`
	UseSSL    bool   `json:"useSSL" mapstructure:"useSSL"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:     CurrentVersion,
		ProjectRoot: ".",
		VM: VMConfig{
			ProjectRoot: "/project",
			OutputDir:   "/out",
		},
		Library: LibraryConfig{
			Prefix:       "/SFLibs",
			Dir:          "SFLibs",
			CacheEntries: 512,
		},
		ImportScan: ImportScanConfig{
			MaxFiles: 10000,
		},
		Engine: EngineConfig{
			Command:   []string{"openscad", "--export-format", "binstl", "-o", "{output}", "{input}"},
			TimeoutMs: 300000,
			Rebase:    true,
		},
		Render: RenderConfig{
			Concurrency:     4,
			PreviewFallback: true,
			Cache:           true,
			CacheTtlSeconds: 7 * 24 * 3600,
			HistoryDays:     30,
		},
		Watch: WatchConfig{
			PollIntervalMs: 500,
			DebounceMs:     300,
		},
		Export: ExportConfig{
			Dir: "exports",
			S3: S3Config{
				Region: "us-east-1",
				UseSSL: true,
			},
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// setDefaults registers every key with viper so environment overrides
// apply even when the config file omits the key
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("version", d.Version)
	v.SetDefault("projectRoot", d.ProjectRoot)

	v.SetDefault("vm.projectRoot", d.VM.ProjectRoot)
	v.SetDefault("vm.outputDir", d.VM.OutputDir)
	v.SetDefault("vm.tempDir", d.VM.TempDir)

	v.SetDefault("library.prefix", d.Library.Prefix)
	v.SetDefault("library.dir", d.Library.Dir)
	v.SetDefault("library.baseURL", d.Library.BaseURL)
	v.SetDefault("library.cacheEntries", d.Library.CacheEntries)

	v.SetDefault("importScan.maxFiles", d.ImportScan.MaxFiles)

	v.SetDefault("engine.command", d.Engine.Command)
	v.SetDefault("engine.timeoutMs", d.Engine.TimeoutMs)
	v.SetDefault("engine.rebase", d.Engine.Rebase)

	v.SetDefault("render.concurrency", d.Render.Concurrency)
	v.SetDefault("render.previewFallback", d.Render.PreviewFallback)
	v.SetDefault("render.cache", d.Render.Cache)
	v.SetDefault("render.cacheTtlSeconds", d.Render.CacheTtlSeconds)
	v.SetDefault("render.historyDays", d.Render.HistoryDays)

	v.SetDefault("watch.pollIntervalMs", d.Watch.PollIntervalMs)
	v.SetDefault("watch.debounceMs", d.Watch.DebounceMs)

	v.SetDefault("export.dir", d.Export.Dir)
	v.SetDefault("export.perRun", d.Export.PerRun)
	v.SetDefault("export.s3.enabled", d.Export.S3.Enabled)
	v.SetDefault("export.s3.endpoint", d.Export.S3.Endpoint)
	v.SetDefault("export.s3.region", d.Export.S3.Region)
	v.SetDefault("export.s3.accessKey", d.Export.S3.AccessKey)
	v.SetDefault("export.s3.secretKey", d.Export.S3.SecretKey)
	v.SetDefault("export.s3.bucket", d.Export.S3.Bucket)
	v.SetDefault("export.s3.prefix", d.Export.S3.Prefix)
	v.SetDefault("export.s3.useSSL", d.Export.S3.UseSSL)

	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
}

// LoadConfig loads configuration from .scadforge/config.json, layering
// defaults, the file, <projectRoot>/.env and SCADFORGE_* variables
func LoadConfig(projectRoot string) (*Config, error) {
	envFile := filepath.Join(projectRoot, ".env")
	if _, err := os.Stat(envFile); err == nil {
		// Variables already set in the environment win over the file
		if err := godotenv.Load(envFile); err != nil {
			return nil, &ConfigError{Field: ".env", Message: err.Error()}
		}
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(paths.DataDir(projectRoot))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing file leaves defaults and environment in effect
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration to .scadforge/config.json. S3 credentials
// are never written; they belong in the environment.
func (c *Config) Save(projectRoot string) error {
	dir, err := paths.EnsureDataDir(projectRoot)
	if err != nil {
		return err
	}

	out := *c
	out.Export.S3.AccessKey = ""
	out.Export.S3.SecretKey = ""

	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}

	vmRoot := paths.NormalizeAbs(c.VM.ProjectRoot)
	if !paths.IsAbs(c.VM.ProjectRoot) || vmRoot == "/" {
		return &ConfigError{Field: "vm.projectRoot", Message: "must be an absolute directory below /"}
	}
	libPrefix := paths.NormalizeAbs(c.Library.Prefix)
	if !paths.IsAbs(c.Library.Prefix) || libPrefix == "/" {
		return &ConfigError{Field: "library.prefix", Message: "must be an absolute directory below /"}
	}
	if paths.HasPrefix(libPrefix, vmRoot) || paths.HasPrefix(vmRoot, libPrefix) {
		return &ConfigError{Field: "library.prefix", Message: "must not overlap vm.projectRoot"}
	}
	outDir := paths.NormalizeAbs(c.VM.OutputDir)
	if outDir == "/" || paths.HasPrefix(outDir, vmRoot) || paths.HasPrefix(outDir, libPrefix) {
		return &ConfigError{Field: "vm.outputDir", Message: "must be a separate directory below /"}
	}

	if len(c.Engine.Command) == 0 || strings.TrimSpace(c.Engine.Command[0]) == "" {
		return &ConfigError{Field: "engine.command", Message: "must name the engine binary"}
	}
	if c.Engine.TimeoutMs <= 0 {
		return &ConfigError{Field: "engine.timeoutMs", Message: "must be positive"}
	}
	if c.Render.Concurrency < 1 {
		return &ConfigError{Field: "render.concurrency", Message: "must be at least 1"}
	}
	if c.Watch.PollIntervalMs <= 0 {
		return &ConfigError{Field: "watch.pollIntervalMs", Message: "must be positive"}
	}
	if c.Watch.DebounceMs < 0 {
		return &ConfigError{Field: "watch.debounceMs", Message: "must not be negative"}
	}
	if c.ImportScan.MaxFiles < 1 {
		return &ConfigError{Field: "importScan.maxFiles", Message: "must be at least 1"}
	}

	switch c.Logging.Format {
	case "json", "human":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be json or human"}
	}

	if c.Export.S3.Enabled {
		if c.Export.S3.Endpoint == "" || c.Export.S3.Bucket == "" {
			return &ConfigError{Field: "export.s3", Message: "endpoint and bucket are required when enabled"}
		}
	}
	return nil
}

// EngineTimeout returns the engine timeout as a duration
func (c *Config) EngineTimeout() time.Duration {
	return time.Duration(c.Engine.TimeoutMs) * time.Millisecond
}

// CacheTTL returns the render cache TTL; zero means entries never expire
func (c *Config) CacheTTL() time.Duration {
	if c.Render.CacheTtlSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Render.CacheTtlSeconds) * time.Second
}

// ResolvePath makes a config path relative to the project root absolute
func ResolvePath(projectRoot, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(projectRoot, p)
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
