package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/mikeydub/go-rediscache/env"
)

const (
	DefaultHost      = "127.0.0.1"
	DefaultPort      = 6379
	DefaultDB        = 0
	DefaultOpTimeout = 3 * time.Second
)

// Where a Config came from
const (
	SourceEnv     = "env"
	SourceDefault = "default"
)

var ErrInvalidConfig = errors.New("invalid redis configuration")

// ConfigurationError is returned when the connection string can't be used. It is the only
// cache error that should abort startup.
type ConfigurationError struct {
	Value string
	Err   error
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrInvalidConfig, redactURI(e.Value), e.Err)
}

func (e ConfigurationError) Unwrap() error {
	return e.Err
}

func (e ConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Config describes how to reach the redis server backing a Cache.
type Config struct {
	Addr        string
	Username    string
	Password    string
	DB          int
	TLS         *tls.Config
	KeyPrefix   string
	DisplayName string
	OpTimeout   time.Duration
	Source      string
}

// DefaultConfig is the local development instance.
func DefaultConfig() Config {
	return Config{
		Addr:        net.JoinHostPort(DefaultHost, strconv.Itoa(DefaultPort)),
		DB:          DefaultDB,
		DisplayName: "cache",
		OpTimeout:   DefaultOpTimeout,
		Source:      SourceDefault,
	}
}

// ParseConfig selects the connection target. An empty uri selects the local default. A uri with
// a scheme (redis:// or rediss://) is parsed as a full connection URL; anything else must be a
// host:port pair, in which case password is used as the credential.
func ParseConfig(uri, password string) (Config, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return DefaultConfig(), nil
	}

	cfg := DefaultConfig()
	cfg.Source = SourceEnv

	if strings.Contains(uri, "://") {
		opts, err := redis.ParseURL(uri)
		if err != nil {
			return Config{}, ConfigurationError{Value: uri, Err: err}
		}
		cfg.Addr = opts.Addr
		cfg.Username = opts.Username
		cfg.Password = opts.Password
		cfg.DB = opts.DB
		cfg.TLS = opts.TLSConfig
		if cfg.Password == "" {
			cfg.Password = password
		}
		return cfg, nil
	}

	host, port, err := net.SplitHostPort(uri)
	if err != nil {
		return Config{}, ConfigurationError{Value: uri, Err: err}
	}
	if p, err := strconv.Atoi(port); err != nil || p <= 0 || p > 65535 {
		return Config{}, ConfigurationError{Value: uri, Err: fmt.Errorf("invalid port %q", port)}
	}
	if host == "" {
		host = DefaultHost
	}

	cfg.Addr = net.JoinHostPort(host, port)
	cfg.Password = password
	return cfg, nil
}

func init() {
	env.RegisterValidation("REDIS_URL", "omitempty,url|hostname_port")
	env.RegisterValidation("REDIS_TIMEOUT", "omitempty,numeric")
}

// ConfigFromEnv reads REDIS_URL, REDIS_PASS, REDIS_TIMEOUT and CACHE_KEY_PREFIX.
func ConfigFromEnv(ctx context.Context) (Config, error) {
	cfg, err := ParseConfig(env.GetString(ctx, "REDIS_URL"), env.GetString(ctx, "REDIS_PASS"))
	if err != nil {
		return Config{}, err
	}

	if secs := env.GetFloat64(ctx, "REDIS_TIMEOUT"); secs > 0 {
		cfg.OpTimeout = time.Duration(secs * float64(time.Second))
	}
	cfg.KeyPrefix = env.GetString(ctx, "CACHE_KEY_PREFIX")

	return cfg, nil
}

func (c Config) options() *redis.Options {
	return &redis.Options{
		Addr:      c.Addr,
		Username:  c.Username,
		Password:  c.Password,
		DB:        c.DB,
		TLSConfig: c.TLS,
	}
}

// redactURI hides any credential embedded in a connection string.
func redactURI(uri string) string {
	scheme := strings.Index(uri, "://")
	at := strings.LastIndex(uri, "@")
	if scheme < 0 || at < scheme {
		return uri
	}
	return uri[:scheme+3] + "xxxxx" + uri[at:]
}
