package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultLogLevel      = "info"
	defaultLogFormat     = "line"
	defaultListen        = "0.0.0.0:49090"
	defaultNamespace     = "mktxp"
	defaultScrapeTimeout = 10 * time.Second
	defaultPprofListen   = "127.0.0.1:6060"

	// SourceREST reads records from the RouterOS REST API.
	SourceREST = "rest"
	// SourceHost reads records from the local machine.
	SourceHost = "host"
)

var namespacePattern = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)

// ValidNamespace reports whether namespace can prefix Prometheus metric names.
// Params: namespace candidate.
// Returns: true when namespace follows the metric name grammar.
func ValidNamespace(namespace string) bool {
	return namespacePattern.MatchString(namespace)
}

// Duration wraps time.Duration for TOML parsing.
// Params: text duration string (e.g. "5s", "1m").
// Returns: parse error on invalid duration.
type Duration struct {
	time.Duration
}

// UnmarshalText parses TOML duration values.
// Params: text is raw duration bytes from TOML.
// Returns: error when value is not a valid Go duration.
func (d *Duration) UnmarshalText(text []byte) error {
	value := strings.TrimSpace(string(text))
	if value == "" {
		d.Duration = 0
		return nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value, err)
	}

	d.Duration = parsed
	return nil
}

// Config represents the root exporter configuration.
// Params: TOML document sections.
// Returns: validated runtime configuration.
type Config struct {
	Exporter ExporterConfig `toml:"exporter"`
	Log      LogConfig      `toml:"log"`
	Pprof    PprofConfig    `toml:"pprof"`
	Routers  []RouterConfig `toml:"router"`
}

// ExporterConfig defines the metrics HTTP endpoint.
// Params: listen address, metric namespace and default per-collector timeout.
// Returns: exporter settings.
type ExporterConfig struct {
	Listen        string   `toml:"listen"`
	Namespace     string   `toml:"namespace"`
	ScrapeTimeout Duration `toml:"scrape_timeout"`
}

// PprofConfig defines optional runtime pprof HTTP endpoint.
// Params: enabled flag and listen address in host:port format.
// Returns: pprof runtime settings.
type PprofConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// LogConfig contains console/file logging configuration.
// Params: console and file sink options.
// Returns: logger sink settings.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig defines one logging sink.
// Params: sink options from TOML.
// Returns: sink setup.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
}

// RouterConfig defines one scraped device.
// Params: identity, credentials, record source kind and collector patterns.
// Returns: one router runtime config.
type RouterConfig struct {
	Name               string   `toml:"name"`
	Address            string   `toml:"address"`
	Username           string   `toml:"username"`
	Password           string   `toml:"password"`
	Source             string   `toml:"source"`
	Root               string   `toml:"root"`
	Timeout            Duration `toml:"timeout"`
	InsecureSkipVerify bool     `toml:"insecure_skip_verify"`
	Collectors         []string `toml:"collectors"`
}

// Load reads, expands, validates, and returns config from path.
// Params: path to TOML config file or directory with *.toml files.
// Returns: validated config pointer or error.
func Load(path string) (*Config, error) {
	raw, err := readConfigSource(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(raw))

	var cfg Config
	if err := toml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("decode TOML %q: %w", path, err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// readConfigSource reads one TOML file or concatenates *.toml files from directory.
// Params: path to config file or directory.
// Returns: raw TOML bytes or error.
func readConfigSource(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config %q: %w", path, err)
	}

	if !info.IsDir() {
		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("read config %q: %w", path, readErr)
		}
		return raw, nil
	}

	return readConfigDir(path)
}

// readConfigDir concatenates config snippets from one directory.
// Params: path to directory that contains *.toml files.
// Returns: concatenated TOML content or error.
func readConfigDir(path string) ([]byte, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read config dir %q: %w", path, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".toml") {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("read config dir %q: no *.toml files", path)
	}

	var builder strings.Builder
	for _, name := range files {
		filePath := filepath.Join(path, name)
		raw, readErr := os.ReadFile(filePath)
		if readErr != nil {
			return nil, fmt.Errorf("read config %q: %w", filePath, readErr)
		}
		builder.Write(raw)
		if len(raw) == 0 || raw[len(raw)-1] != '\n' {
			builder.WriteByte('\n')
		}
		builder.WriteByte('\n')
	}

	return []byte(builder.String()), nil
}

// applyDefaults fills defaults for optional configuration fields.
// Params: receiver config pointer.
// Returns: none.
func (c *Config) applyDefaults() {
	c.Log.Console.Level = lowerOrDefault(c.Log.Console.Level, defaultLogLevel)
	c.Log.Console.Format = lowerOrDefault(c.Log.Console.Format, defaultLogFormat)
	c.Log.File.Level = lowerOrDefault(c.Log.File.Level, defaultLogLevel)
	c.Log.File.Format = lowerOrDefault(c.Log.File.Format, "json")

	if !c.Log.Console.Enabled && !c.Log.File.Enabled {
		c.Log.Console.Enabled = true
	}

	if strings.TrimSpace(c.Exporter.Listen) == "" {
		c.Exporter.Listen = defaultListen
	}
	c.Exporter.Namespace = strings.TrimSpace(c.Exporter.Namespace)
	if c.Exporter.Namespace == "" {
		c.Exporter.Namespace = defaultNamespace
	}
	if c.Exporter.ScrapeTimeout.Duration == 0 {
		c.Exporter.ScrapeTimeout.Duration = defaultScrapeTimeout
	}

	if c.Pprof.Enabled && strings.TrimSpace(c.Pprof.Listen) == "" {
		c.Pprof.Listen = defaultPprofListen
	}

	for idx := range c.Routers {
		router := &c.Routers[idx]
		router.Name = strings.TrimSpace(router.Name)
		router.Address = strings.TrimRight(strings.TrimSpace(router.Address), "/")
		router.Source = lowerOrDefault(router.Source, SourceREST)
		if router.Timeout.Duration == 0 {
			router.Timeout.Duration = c.Exporter.ScrapeTimeout.Duration
		}
		if len(router.Collectors) == 0 {
			router.Collectors = []string{"*"}
		}
	}
}

// validate checks config consistency and required fields.
// Params: receiver config pointer.
// Returns: validation error for invalid or incomplete config.
func (c *Config) validate() error {
	if err := validateSink("log.console", c.Log.Console, false); err != nil {
		return err
	}
	if err := validateSink("log.file", c.Log.File, true); err != nil {
		return err
	}
	if err := validateExporterConfig("exporter", c.Exporter); err != nil {
		return err
	}
	if err := validatePprofConfig("pprof", c.Pprof); err != nil {
		return err
	}

	if len(c.Routers) == 0 {
		return fmt.Errorf("at least one [[router]] section is required")
	}

	seen := make(map[string]int, len(c.Routers))
	for idx, router := range c.Routers {
		path := fmt.Sprintf("router[%d]", idx)
		if router.Name == "" {
			return fmt.Errorf("%s.name is required", path)
		}
		if prev, ok := seen[router.Name]; ok {
			return fmt.Errorf("%s.name %q duplicates router[%d]", path, router.Name, prev)
		}
		seen[router.Name] = idx

		if err := validateRouterConfig(path, router); err != nil {
			return err
		}
	}

	return nil
}

// validateExporterConfig validates listen address and timeouts of the metrics endpoint.
// Params: path config prefix for errors; cfg exporter section.
// Returns: validation error or nil.
func validateExporterConfig(path string, cfg ExporterConfig) error {
	if _, _, err := net.SplitHostPort(cfg.Listen); err != nil {
		return fmt.Errorf("%s.listen must be host:port: %w", path, err)
	}
	if err := validateNonNegativeDurationField(path+".scrape_timeout", cfg.ScrapeTimeout.Duration); err != nil {
		return err
	}
	if !ValidNamespace(cfg.Namespace) {
		return fmt.Errorf("%s.namespace %q must be a metric name prefix", path, cfg.Namespace)
	}
	return nil
}

// validateRouterConfig validates one router section.
// Params: path config prefix for errors; router normalized section.
// Returns: validation error or nil.
func validateRouterConfig(path string, router RouterConfig) error {
	switch router.Source {
	case SourceREST:
		if router.Address == "" {
			return fmt.Errorf("%s.address is required for source %q", path, SourceREST)
		}
		parsed, err := url.Parse(router.Address)
		if err != nil {
			return fmt.Errorf("%s.address: %w", path, err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("%s.address must be an http(s) URL, got %q", path, router.Address)
		}
		if parsed.Host == "" {
			return fmt.Errorf("%s.address has no host", path)
		}
	case SourceHost:
	default:
		return fmt.Errorf("%s.source: unsupported value %q", path, router.Source)
	}

	if err := validateNonNegativeDurationField(path+".timeout", router.Timeout.Duration); err != nil {
		return err
	}

	for idx, pattern := range router.Collectors {
		if strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(pattern), "!")) == "" {
			return fmt.Errorf("%s.collectors[%d] cannot be empty", path, idx)
		}
	}
	return nil
}

// validateSink validates one logging sink configuration.
// Params: name is sink path for errors; sink is sink config; requirePath means path required when enabled.
// Returns: validation error or nil.
func validateSink(name string, sink LogSinkConfig, requirePath bool) error {
	if sink.Enabled && requirePath && strings.TrimSpace(sink.Path) == "" {
		return fmt.Errorf("%s.path is required when sink is enabled", name)
	}

	if err := validateLogLevel(sink.Level); err != nil {
		return fmt.Errorf("%s.level: %w", name, err)
	}
	if err := validateLogFormat(sink.Format); err != nil {
		return fmt.Errorf("%s.format: %w", name, err)
	}

	return nil
}

// validateLogLevel validates known log levels.
// Params: level is lower-case level name.
// Returns: error when level is unsupported.
func validateLogLevel(level string) error {
	switch strings.TrimSpace(strings.ToLower(level)) {
	case "info", "warn", "error", "panic", "debug":
		return nil
	default:
		return fmt.Errorf("unsupported value %q", level)
	}
}

// validateLogFormat validates supported sink formats.
// Params: format is lower-case format name.
// Returns: error when format is unsupported.
func validateLogFormat(format string) error {
	switch strings.TrimSpace(strings.ToLower(format)) {
	case "line", "json":
		return nil
	default:
		return fmt.Errorf("unsupported value %q", format)
	}
}

// validatePprofConfig validates optional pprof endpoint.
// Params: path config prefix for errors; cfg pprof section.
// Returns: validation error or nil.
func validatePprofConfig(path string, cfg PprofConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if strings.TrimSpace(cfg.Listen) == "" {
		return fmt.Errorf("%s.listen cannot be empty when enabled", path)
	}
	if _, _, err := net.SplitHostPort(cfg.Listen); err != nil {
		return fmt.Errorf("%s.listen must be host:port: %w", path, err)
	}
	return nil
}

// validateNonNegativeDurationField validates that duration is not negative.
// Params: fieldPath full config field path; value duration value.
// Returns: validation error or nil.
func validateNonNegativeDurationField(fieldPath string, value time.Duration) error {
	if value < 0 {
		return fmt.Errorf("%s cannot be negative", fieldPath)
	}
	return nil
}

// lowerOrDefault returns a trimmed lower-case value or default fallback.
// Params: value to normalize; fallback value when empty.
// Returns: normalized value.
func lowerOrDefault(value, fallback string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return fallback
	}
	return normalized
}
