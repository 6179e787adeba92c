// Package mcp parses MCP command configuration and wires the protocol
// loader, compiler, resolver and transport together.
package mcp

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	platformcmd "github.com/louisbranch/tx3-mcp/internal/platform/cmd"
	"github.com/louisbranch/tx3-mcp/internal/platform/timeouts"
	"github.com/louisbranch/tx3-mcp/internal/services/mcp/domain"
	"github.com/louisbranch/tx3-mcp/internal/services/mcp/protocols"
	"github.com/louisbranch/tx3-mcp/internal/services/mcp/service"
	"github.com/louisbranch/tx3-mcp/internal/services/mcp/storage"
	"github.com/louisbranch/tx3-mcp/internal/services/mcp/storage/sqlite"
	"github.com/louisbranch/tx3-mcp/internal/services/mcp/trp"
	"github.com/louisbranch/tx3-mcp/internal/tx3"
	"github.com/louisbranch/tx3-mcp/internal/tx3/execcompiler"
)

// Config holds MCP command configuration.
type Config struct {
	TRPURL          string        `env:"TRP_URL"`
	TRPKey          string        `env:"TRP_KEY"`
	RegistryURL     string        `env:"TX3_REGISTRY_URL"`
	ProtocolsDir    string        `env:"TX3_MCP_PROTOCOLS_DIR"    envDefault:"./protocols"`
	Transport       string        `env:"TX3_MCP_TRANSPORT"        envDefault:"stdio"`
	Address         string        `env:"ADDRESS"                  envDefault:"127.0.0.1"`
	Port            int           `env:"PORT"                     envDefault:"3000"`
	CompilerCommand string        `env:"TX3_MCP_COMPILER_CMD"`
	CachePath       string        `env:"TX3_MCP_CACHE_PATH"`
	CacheMaxAge     time.Duration `env:"TX3_MCP_CACHE_MAX_AGE"    envDefault:"720h"`
	UpstreamTimeout time.Duration `env:"TX3_MCP_UPSTREAM_TIMEOUT" envDefault:"30s"`
	AllowedHosts    []string      `env:"TX3_MCP_ALLOWED_HOSTS"    envSeparator:","`
}

// ParseConfig parses environment and flags into a Config. Flags win over
// the environment. The resolver key is only read from the environment.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.TRPURL, "trp-url", cfg.TRPURL, "TRP resolver endpoint")
	fs.StringVar(&cfg.RegistryURL, "registry-url", cfg.RegistryURL, "tx3 registry GraphQL endpoint; overrides -protocols-dir")
	fs.StringVar(&cfg.ProtocolsDir, "protocols-dir", cfg.ProtocolsDir, "directory of .tx3 protocol files")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	fs.StringVar(&cfg.Address, "address", cfg.Address, "HTTP bind address (for HTTP transport)")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP port (for HTTP transport)")
	fs.StringVar(&cfg.CompilerCommand, "compiler", cfg.CompilerCommand, "protocol compiler command")
	fs.StringVar(&cfg.CachePath, "cache", cfg.CachePath, "SQLite compile cache path; empty disables the cache")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first missing or malformed setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.TRPURL) == "" {
		return errors.New("TRP_URL is required")
	}
	if strings.TrimSpace(c.TRPKey) == "" {
		return errors.New("TRP_KEY is required")
	}
	switch service.TransportKind(c.Transport) {
	case service.TransportStdio, service.TransportHTTP:
	default:
		return fmt.Errorf("transport %q is not supported", c.Transport)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d is out of range", c.Port)
	}
	return nil
}

// HTTPAddr is the listen address of the HTTP transport.
func (c Config) HTTPAddr() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

func (c Config) upstreamTimeout() time.Duration {
	if c.UpstreamTimeout <= 0 {
		return timeouts.Upstream
	}
	return c.UpstreamTimeout
}

// Run starts the MCP server and blocks until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	return platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceMCP, func(ctx context.Context) error {
		dispatcher, closeFn, err := newDispatcher(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeFn()

		return service.Run(ctx, dispatcher, service.Config{
			Transport:    service.TransportKind(cfg.Transport),
			HTTPAddr:     cfg.HTTPAddr(),
			AllowedHosts: cfg.AllowedHosts,
		})
	})
}

// newDispatcher builds the dispatcher and returns a function releasing the
// resources it holds.
func newDispatcher(ctx context.Context, cfg Config) (*domain.Dispatcher, func(), error) {
	loader, err := newLoader(cfg)
	if err != nil {
		return nil, nil, err
	}
	compiler, closeFn, err := newCompiler(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	resolver, err := trp.New(cfg.TRPURL, cfg.TRPKey, nil, cfg.upstreamTimeout())
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	dispatcher, err := domain.NewDispatcher(loader, compiler, resolver)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return dispatcher, closeFn, nil
}

func newLoader(cfg Config) (protocols.Loader, error) {
	if url := strings.TrimSpace(cfg.RegistryURL); url != "" {
		log.Printf("loading protocols from registry %s", url)
		return protocols.NewRegistryLoader(url, nil, cfg.upstreamTimeout())
	}
	loader, err := protocols.NewDirLoader(cfg.ProtocolsDir)
	if err != nil {
		return nil, err
	}
	log.Printf("loaded protocols from %s", loader.Dir())
	return loader, nil
}

// newCompiler returns the protocol compiler, wrapped in the SQLite compile
// cache when a cache path is configured.
func newCompiler(ctx context.Context, cfg Config) (tx3.Compiler, func(), error) {
	compiler := execcompiler.New(cfg.CompilerCommand, nil)
	if strings.TrimSpace(cfg.CachePath) == "" {
		return compiler, func() {}, nil
	}

	store, err := sqlite.Open(cfg.CachePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open compile cache: %w", err)
	}
	closeFn := func() {
		if err := store.Close(); err != nil {
			log.Printf("close compile cache: %v", err)
		}
	}
	if cfg.CacheMaxAge > 0 {
		removed, err := store.PruneManifests(ctx, time.Now().Add(-cfg.CacheMaxAge))
		if err != nil {
			log.Printf("prune compile cache: %v", err)
		} else if removed > 0 {
			log.Printf("pruned %d compiled protocols from cache", removed)
		}
	}
	cached, err := storage.NewCachingCompiler(compiler, store)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return cached, closeFn, nil
}
