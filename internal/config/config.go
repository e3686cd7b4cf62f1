package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Backend names accepted by index_groups.<name>.backend.
const (
	BackendDatabase       = "database"
	BackendEmbedded       = "embedded"
	BackendElasticsearch7 = "elasticsearch7"
	BackendElasticsearch8 = "elasticsearch8"
	BackendOpenSearch2    = "opensearch2"
)

// Indexing modes.
const (
	ModeSync  = "sync"
	ModeAsync = "async"
)

// Config holds the searchcore service configuration.
type Config struct {
	HTTP        HTTPConfig                  `yaml:"http"`
	Auth        AuthConfig                  `yaml:"auth"`
	Logging     LoggingConfig               `yaml:"logging"`
	Redis       RedisConfig                 `yaml:"redis"`
	Search      SearchConfig                `yaml:"search"`
	Indexing    IndexingConfig              `yaml:"indexing"`
	IndexGroups map[string]IndexGroupConfig `yaml:"index_groups"`
	Schema      []ObjectTypeConfig          `yaml:"schema"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. Empty APIKeys disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// RedisConfig holds the object store and event queue connection settings.
type RedisConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	// CacheSizeMB sizes the server-assisted client cache used for hydration, per
	// connection. 0 disables it. Requires RESP3 (Redis 6+).
	CacheSizeMB int `yaml:"cache_size_mb"`
	CacheTTLSec int `yaml:"cache_ttl_sec"`
}

// SearchConfig holds query and backend call settings shared by every index group.
type SearchConfig struct {
	DefaultPageSize  int `yaml:"default_page_size"`
	MaxPageSize      int `yaml:"max_page_size"`
	BackendTimeoutMs int `yaml:"backend_timeout_ms"`
	BulkBatchSize    int `yaml:"bulk_batch_size"`
}

// IndexingConfig holds change propagation settings.
type IndexingConfig struct {
	Mode          string `yaml:"mode"` // sync, async
	QueueKey      string `yaml:"queue_key"`
	Workers       int    `yaml:"workers"`
	PopTimeoutSec int    `yaml:"pop_timeout_sec"`
}

// IndexGroupConfig binds object types to one backend.
type IndexGroupConfig struct {
	Backend  string                `yaml:"backend"`
	Types    []string              `yaml:"types"`
	Database DatabaseBackendConfig `yaml:"database"`
	Cluster  ClusterBackendConfig  `yaml:"cluster"`
	Embedded EmbeddedBackendConfig `yaml:"embedded"`
}

// IsCluster reports whether the group uses an Elasticsearch or OpenSearch dialect.
func (g IndexGroupConfig) IsCluster() bool {
	switch g.Backend {
	case BackendElasticsearch7, BackendElasticsearch8, BackendOpenSearch2:
		return true
	}
	return false
}

// DatabaseBackendConfig holds SQLite settings.
type DatabaseBackendConfig struct {
	Path     string `yaml:"path"` // empty = in-memory
	MaxConns int    `yaml:"max_conns"`
}

// ClusterBackendConfig holds Elasticsearch / OpenSearch settings.
type ClusterBackendConfig struct {
	Addresses       []string `yaml:"addresses"`
	Username        string   `yaml:"username"`
	Password        string   `yaml:"password"`
	APIKey          string   `yaml:"api_key"`
	IndexPrefix     string   `yaml:"index_prefix"`
	Shards          int      `yaml:"shards"`
	Replicas        int      `yaml:"replicas"`
	RefreshInterval string   `yaml:"refresh_interval"`
	MaxResultWindow int      `yaml:"max_result_window"`
	BulkRatePerSec  float64  `yaml:"bulk_rate_per_sec"` // 0 = unlimited
	MaxRetries      int      `yaml:"max_retries"`
}

// EmbeddedBackendConfig holds bleve settings.
type EmbeddedBackendConfig struct {
	Dir string `yaml:"dir"` // empty = in-memory
}

// ObjectTypeConfig declares one searchable object type.
type ObjectTypeConfig struct {
	Type   string        `yaml:"type"`
	Fields []FieldConfig `yaml:"fields"`
}

// FieldConfig declares one field of an object type.
type FieldConfig struct {
	Name     string  `yaml:"name"`
	Kind     string  `yaml:"kind"`
	Type     string  `yaml:"type"`
	Boost    float64 `yaml:"boost"`
	Nullable bool    `yaml:"nullable"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a YAML document.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Redis.ReadinessTimeout <= 0 {
		c.Redis.ReadinessTimeout = 10
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "searchcore:"
	}
	if c.Redis.CacheSizeMB > 0 && c.Redis.CacheTTLSec <= 0 {
		c.Redis.CacheTTLSec = 30
	}
	if c.Search.DefaultPageSize <= 0 {
		c.Search.DefaultPageSize = 20
	}
	if c.Search.MaxPageSize <= 0 {
		c.Search.MaxPageSize = 100
	}
	if c.Search.BackendTimeoutMs <= 0 {
		c.Search.BackendTimeoutMs = 10000
	}
	if c.Search.BulkBatchSize <= 0 {
		c.Search.BulkBatchSize = 500
	}
	if c.Indexing.Mode == "" {
		c.Indexing.Mode = ModeSync
	}
	if c.Indexing.QueueKey == "" {
		c.Indexing.QueueKey = "events"
	}
	if c.Indexing.Workers <= 0 {
		c.Indexing.Workers = 4
	}
	if c.Indexing.PopTimeoutSec <= 0 {
		c.Indexing.PopTimeoutSec = 5
	}
	for name, g := range c.IndexGroups {
		if g.Database.MaxConns <= 0 {
			g.Database.MaxConns = 4
		}
		if g.Cluster.MaxRetries <= 0 {
			g.Cluster.MaxRetries = 3
		}
		c.IndexGroups[name] = g
	}
}

// Validate checks the configuration for correctness. Field specs are validated when the
// schema registry is built.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	return c.ValidateCore()
}

// ValidateCore checks everything except the HTTP server settings.
func (c *Config) ValidateCore() error {
	if len(c.Redis.Addrs) == 0 {
		return fmt.Errorf("redis.addrs is required")
	}
	if c.Search.DefaultPageSize > c.Search.MaxPageSize {
		return fmt.Errorf("search.default_page_size %d exceeds search.max_page_size %d",
			c.Search.DefaultPageSize, c.Search.MaxPageSize)
	}
	switch c.Indexing.Mode {
	case ModeSync, ModeAsync:
	default:
		return fmt.Errorf("indexing.mode must be %q or %q, got %q", ModeSync, ModeAsync, c.Indexing.Mode)
	}
	if len(c.Schema) == 0 {
		return fmt.Errorf("schema declares no object types")
	}
	if len(c.IndexGroups) == 0 {
		return fmt.Errorf("index_groups is required")
	}

	declared := make(map[string]bool, len(c.Schema))
	for _, ot := range c.Schema {
		declared[ot.Type] = true
	}
	owner := make(map[string]string)
	for _, name := range c.GroupNames() {
		g := c.IndexGroups[name]
		switch g.Backend {
		case BackendDatabase, BackendEmbedded:
		case BackendElasticsearch7, BackendElasticsearch8, BackendOpenSearch2:
			if len(g.Cluster.Addresses) == 0 {
				return fmt.Errorf("index_groups.%s.cluster.addresses is required", name)
			}
		default:
			return fmt.Errorf("index_groups.%s.backend: unknown backend %q", name, g.Backend)
		}
		if len(g.Types) == 0 {
			return fmt.Errorf("index_groups.%s.types is empty", name)
		}
		for _, key := range g.Types {
			if !declared[key] {
				return fmt.Errorf("index_groups.%s: type %q is not declared in schema", name, key)
			}
			if prev, dup := owner[key]; dup {
				return fmt.Errorf("type %q is assigned to index groups %s and %s", key, prev, name)
			}
			owner[key] = name
		}
	}
	for _, ot := range c.Schema {
		if _, ok := owner[ot.Type]; !ok {
			return fmt.Errorf("schema type %q belongs to no index group", ot.Type)
		}
	}
	return nil
}

// GroupNames returns the index group names sorted alphabetically.
func (c *Config) GroupNames() []string {
	names := make([]string, 0, len(c.IndexGroups))
	for name := range c.IndexGroups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
