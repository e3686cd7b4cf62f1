package searchcore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/searchcore/internal/config"
)

func TestNew_NoAddress(t *testing.T) {
	_, err := New(context.Background())
	if err == nil || !strings.Contains(err.Error(), "WithRedis") {
		t.Fatalf("err = %v, want missing address error", err)
	}
}

func TestNew_InvalidDeclaration(t *testing.T) {
	_, err := New(context.Background(), WithRedis("", "localhost:6379"), Declare[noPK]("bad"))
	if err == nil || !strings.Contains(err.Error(), "pk") {
		t.Fatalf("err = %v, want schema error", err)
	}
}

func TestClientOptions(t *testing.T) {
	cc := newClientConfig()
	for _, o := range []Option{
		WithRedis("secret", "a:6379", "b:6379"),
		WithKeyPrefix("app:"),
		WithCache(100, 5),
		WithCluster(OpenSearch2, "http://os:9200"),
		WithClusterAuth("admin", "pw", ""),
		WithAsyncIndexing(2),
		WithPageSize(10, 50),
		Declare[article]("article"),
		Declare[product]("product"),
	} {
		o(cc)
	}

	cfg, err := cc.build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := cfg.Redis.Addrs; len(got) != 2 || cfg.Redis.Password != "secret" {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	if cfg.Redis.KeyPrefix != "app:" || cfg.Redis.CacheSizeMB != 100 {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	if cfg.Indexing.Mode != config.ModeAsync || cfg.Indexing.Workers != 2 {
		t.Errorf("indexing = %+v", cfg.Indexing)
	}
	if cfg.Search.DefaultPageSize != 10 || cfg.Search.MaxPageSize != 50 {
		t.Errorf("search = %+v", cfg.Search)
	}

	g, ok := cfg.IndexGroups[defaultGroup]
	if !ok {
		t.Fatalf("groups = %v", cfg.GroupNames())
	}
	if g.Backend != config.BackendOpenSearch2 || g.Cluster.Username != "admin" {
		t.Errorf("group = %+v", g)
	}
	if strings.Join(g.Types, ",") != "article,product" {
		t.Errorf("types = %v", g.Types)
	}
}

func TestClientOptions_DefaultsToEmbedded(t *testing.T) {
	cc := newClientConfig()
	WithRedis("", "localhost:6379")(cc)
	Declare[article]("article")(cc)

	cfg, err := cc.build()
	if err != nil {
		t.Fatal(err)
	}
	if g := cfg.IndexGroups[defaultGroup]; g.Backend != config.BackendEmbedded || g.Embedded.Dir != "" {
		t.Errorf("group = %+v", g)
	}
	if cfg.Indexing.Mode != config.ModeSync {
		t.Errorf("mode = %q", cfg.Indexing.Mode)
	}
	if _, err := cfg.Registry(); err != nil {
		t.Errorf("registry: %v", err)
	}
}

func TestClientOptions_NoTypes(t *testing.T) {
	cc := newClientConfig()
	WithRedis("", "localhost:6379")(cc)
	WithDatabase("")(cc)
	if _, err := cc.build(); err == nil {
		t.Fatal("expected error without declared types")
	}
}

func TestClientOptions_InvalidFieldSurfacesAsConfigError(t *testing.T) {
	cc := newClientConfig()
	WithRedis("", "localhost:6379")(cc)
	Declare[badKind]("bad")(cc)
	cfg, err := cc.build()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.Registry(); !errors.Is(err, ErrConfig) {
		t.Errorf("err = %v, want ErrConfig", err)
	}
}
