package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Environment variable names. Every knob has a default; a worker or
// replay server starts with an empty environment.
const (
	EnvDBPath       = "ARCHIVIST_DB_PATH"
	EnvBlobDir      = "ARCHIVIST_BLOB_DIR"
	EnvBlobBaseURL  = "ARCHIVIST_BLOB_BASE_URL"
	EnvRegionCap    = "ARCHIVIST_REGION_CAP"
	EnvGlobalCap    = "ARCHIVIST_GLOBAL_CAP"
	EnvLease        = "ARCHIVIST_LEASE"
	EnvMaxBody      = "ARCHIVIST_MAX_BODY"
	EnvFetchTimeout = "ARCHIVIST_FETCH_TIMEOUT"
	EnvUserAgent    = "ARCHIVIST_USER_AGENT"
	EnvListen       = "ARCHIVIST_LISTEN"
)

type Config struct {
	//===============
	// Storage
	//===============
	// Path of the shared sqlite database
	dbPath string
	// Local directory containers are appended into
	blobDir string
	// Base URL of the HTTP blob store replay reads from.
	// Empty means read containers from blobDir directly.
	blobBaseURL string

	//===============
	// Politeness
	//===============
	// Admissions per (domain, region) per window
	perRegionCap int
	// Admissions per domain across all regions per window
	globalCap int

	//===============
	// Frontier
	//===============
	// How long a claimed URL stays invisible to other workers
	leaseDuration time.Duration

	//===============
	// Fetch
	//===============
	// Maximum stored body size in bytes; larger bodies are truncated
	maxBodySize int64
	// Deadline of a single fetch, connection to last byte
	fetchTimeout time.Duration
	// User agent sent on every request. In raw string
	userAgent string

	//===============
	// Replay
	//===============
	// Listen address of the replay HTTP server
	listenAddr string
}

// WithDefault creates a new Config with default values for all fields.
func WithDefault() *Config {
	defaultConfig := Config{
		dbPath:        "data/archivist.db",
		blobDir:       "data/blobs",
		blobBaseURL:   "",
		perRegionCap:  5,
		globalCap:     10,
		leaseDuration: 60 * time.Second,
		maxBodySize:   10 << 20, // 10 MiB
		fetchTimeout:  30 * time.Second,
		userAgent:     "archivist/1.0",
		listenAddr:    ":3001",
	}
	return &defaultConfig
}

// FromEnv builds the config from defaults overridden by environment
// variables.
func FromEnv() (Config, error) {
	cfg := WithDefault()

	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.dbPath = v
	}
	if v := os.Getenv(EnvBlobDir); v != "" {
		cfg.blobDir = v
	}
	if v := os.Getenv(EnvBlobBaseURL); v != "" {
		cfg.blobBaseURL = v
	}
	if v := os.Getenv(EnvUserAgent); v != "" {
		cfg.userAgent = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		cfg.listenAddr = v
	}

	if v := os.Getenv(EnvRegionCap); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvRegionCap, err)
		}
		cfg.perRegionCap = n
	}
	if v := os.Getenv(EnvGlobalCap); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvGlobalCap, err)
		}
		cfg.globalCap = n
	}
	if v := os.Getenv(EnvMaxBody); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvMaxBody, err)
		}
		cfg.maxBodySize = n
	}
	if v := os.Getenv(EnvLease); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvLease, err)
		}
		cfg.leaseDuration = d
	}
	if v := os.Getenv(EnvFetchTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvFetchTimeout, err)
		}
		cfg.fetchTimeout = d
	}

	return cfg.Build()
}

func (c *Config) WithDBPath(path string) *Config {
	c.dbPath = path
	return c
}

func (c *Config) WithBlobDir(dir string) *Config {
	c.blobDir = dir
	return c
}

func (c *Config) WithBlobBaseURL(baseURL string) *Config {
	c.blobBaseURL = baseURL
	return c
}

func (c *Config) WithPerRegionCap(limit int) *Config {
	c.perRegionCap = limit
	return c
}

func (c *Config) WithGlobalCap(limit int) *Config {
	c.globalCap = limit
	return c
}

func (c *Config) WithLeaseDuration(lease time.Duration) *Config {
	c.leaseDuration = lease
	return c
}

func (c *Config) WithMaxBodySize(size int64) *Config {
	c.maxBodySize = size
	return c
}

func (c *Config) WithFetchTimeout(timeout time.Duration) *Config {
	c.fetchTimeout = timeout
	return c
}

func (c *Config) WithUserAgent(agent string) *Config {
	c.userAgent = agent
	return c
}

func (c *Config) WithListenAddr(addr string) *Config {
	c.listenAddr = addr
	return c
}

func (c *Config) Build() (Config, error) {
	if c.dbPath == "" {
		return Config{}, fmt.Errorf("%w: db path cannot be empty", ErrInvalidConfig)
	}
	if c.blobDir == "" && c.blobBaseURL == "" {
		return Config{}, fmt.Errorf("%w: need a blob dir or a blob base url", ErrInvalidConfig)
	}
	if c.perRegionCap <= 0 || c.globalCap <= 0 {
		return Config{}, fmt.Errorf("%w: rate caps must be positive", ErrInvalidConfig)
	}
	if c.globalCap < c.perRegionCap {
		return Config{}, fmt.Errorf("%w: global cap below per-region cap", ErrInvalidConfig)
	}
	if c.leaseDuration <= 0 {
		return Config{}, fmt.Errorf("%w: lease duration must be positive", ErrInvalidConfig)
	}
	return *c, nil
}

func (c Config) DBPath() string {
	return c.dbPath
}

func (c Config) BlobDir() string {
	return c.blobDir
}

func (c Config) BlobBaseURL() string {
	return c.blobBaseURL
}

func (c Config) PerRegionCap() int {
	return c.perRegionCap
}

func (c Config) GlobalCap() int {
	return c.globalCap
}

func (c Config) LeaseDuration() time.Duration {
	return c.leaseDuration
}

func (c Config) MaxBodySize() int64 {
	return c.maxBodySize
}

func (c Config) FetchTimeout() time.Duration {
	return c.fetchTimeout
}

func (c Config) UserAgent() string {
	return c.userAgent
}

func (c Config) ListenAddr() string {
	return c.listenAddr
}
