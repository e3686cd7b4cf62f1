package searchcore

import (
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchcore/internal/config"
)

// Backend names a search engine a Client indexes into.
type Backend string

// Supported backends.
const (
	Database       Backend = config.BackendDatabase
	Embedded       Backend = config.BackendEmbedded
	Elasticsearch7 Backend = config.BackendElasticsearch7
	Elasticsearch8 Backend = config.BackendElasticsearch8
	OpenSearch2    Backend = config.BackendOpenSearch2
)

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	cfg     config.Config
	backend config.IndexGroupConfig
	logger  *zap.Logger
	err     error
}

func newClientConfig() *clientConfig {
	return &clientConfig{
		backend: config.IndexGroupConfig{Backend: config.BackendEmbedded},
		logger:  zap.NewNop(),
	}
}

// WithRedis sets the object store and event queue addresses.
func WithRedis(password string, addrs ...string) Option {
	return func(c *clientConfig) {
		c.cfg.Redis.Addrs = addrs
		c.cfg.Redis.Password = password
	}
}

// WithKeyPrefix namespaces every Redis key the client writes.
func WithKeyPrefix(prefix string) Option {
	return func(c *clientConfig) {
		c.cfg.Redis.KeyPrefix = prefix
	}
}

// WithCache enables the Redis client-side cache (sizeMB per connection) for hydrating
// search hits. Redis invalidates entries on every write; ttlSec bounds their lifetime.
func WithCache(sizeMB, ttlSec int) Option {
	return func(c *clientConfig) {
		c.cfg.Redis.CacheSizeMB = sizeMB
		c.cfg.Redis.CacheTTLSec = ttlSec
	}
}

// WithDatabase indexes into SQLite FTS5 at path. An empty path keeps the index in memory.
func WithDatabase(path string) Option {
	return func(c *clientConfig) {
		c.backend.Backend = config.BackendDatabase
		c.backend.Database.Path = path
	}
}

// WithEmbedded indexes into bleve under dir. An empty dir keeps the index in memory.
// This is the default backend.
func WithEmbedded(dir string) Option {
	return func(c *clientConfig) {
		c.backend.Backend = config.BackendEmbedded
		c.backend.Embedded.Dir = dir
	}
}

// WithCluster indexes into an Elasticsearch or OpenSearch cluster.
func WithCluster(b Backend, addrs ...string) Option {
	return func(c *clientConfig) {
		c.backend.Backend = string(b)
		c.backend.Cluster.Addresses = addrs
	}
}

// WithClusterAuth sets basic or API key credentials for the cluster backend.
func WithClusterAuth(username, password, apiKey string) Option {
	return func(c *clientConfig) {
		c.backend.Cluster.Username = username
		c.backend.Cluster.Password = password
		c.backend.Cluster.APIKey = apiKey
	}
}

// WithAsyncIndexing queues change events in Redis and applies them with n workers.
func WithAsyncIndexing(workers int) Option {
	return func(c *clientConfig) {
		c.cfg.Indexing.Mode = config.ModeAsync
		c.cfg.Indexing.Workers = workers
	}
}

// WithPageSize sets the default and maximum number of hits per page.
func WithPageSize(def, maxSize int) Option {
	return func(c *clientConfig) {
		c.cfg.Search.DefaultPageSize = def
		c.cfg.Search.MaxPageSize = maxSize
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Declare registers T as the object type key. T's fields are read from its search
// struct tags; see NewIndex.
func Declare[T any](key string) Option {
	return func(c *clientConfig) {
		meta, err := schemaFor[T]()
		if err != nil {
			if c.err == nil {
				c.err = err
			}
			return
		}
		c.cfg.Schema = append(c.cfg.Schema, config.ObjectTypeConfig{Type: key, Fields: meta.fields})
	}
}

// build renders the options as a validated service configuration with a single index group.
func (c *clientConfig) build() (config.Config, error) {
	if c.err != nil {
		return config.Config{}, c.err
	}
	cfg := c.cfg
	group := c.backend
	for _, ot := range cfg.Schema {
		group.Types = append(group.Types, ot.Type)
	}
	cfg.IndexGroups = map[string]config.IndexGroupConfig{defaultGroup: group}
	cfg.ApplyDefaults()
	if err := cfg.ValidateCore(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

const defaultGroup = "default"
