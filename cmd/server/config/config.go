// Package config reads the server's configuration from the environment.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig holds the public HTTP listener settings.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// SagaConfig holds the orchestrator's retry and timeout tuning.
type SagaConfig struct {
	StepTimeout      time.Duration
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
}

// HTTPConfig holds ingress rate limiting settings. A zero interval disables
// the limiter.
type HTTPConfig struct {
	RateLimitInterval time.Duration
	RateLimitBurst    int
}

// ObservabilityConfig holds the HTTP address for the metrics endpoint.
type ObservabilityConfig struct {
	Addr string
}

// RedisConfig holds Redis connection settings. An empty URL means Redis is
// not used.
type RedisConfig struct {
	URL                string
	KeyPrefix          string
	DialTimeout        *time.Duration
	ReadTimeout        *time.Duration
	WriteTimeout       *time.Duration
	PoolSize           *int
	MinIdleConns       *int
	MaxRetries         *int
	HealthcheckTimeout time.Duration
	TLSConfig          *tls.Config
}

// LoadServer reads the public HTTP server settings from env.
func LoadServer() (ServerConfig, error) {
	cfg := ServerConfig{
		Addr:            stringWithDefault("HTTP_ADDR", ":8080"),
		ShutdownTimeout: 10 * time.Second,
	}
	if d, err := optionalDuration("HTTP_SHUTDOWN_TIMEOUT"); err != nil {
		return cfg, err
	} else if d != nil {
		cfg.ShutdownTimeout = *d
	}
	return cfg, nil
}

// LoadSaga reads orchestrator tuning from env, applying defaults for unset
// values.
func LoadSaga() (SagaConfig, error) {
	cfg := SagaConfig{
		StepTimeout:      30 * time.Second,
		RetryMaxAttempts: 3,
		RetryBaseDelay:   100 * time.Millisecond,
		RetryMaxDelay:    5 * time.Second,
	}

	if d, err := optionalDuration("SAGA_STEP_TIMEOUT"); err != nil {
		return cfg, err
	} else if d != nil {
		cfg.StepTimeout = *d
	}
	if n, err := optionalInt("SAGA_RETRY_MAX_ATTEMPTS"); err != nil {
		return cfg, err
	} else if n != nil {
		cfg.RetryMaxAttempts = *n
	}
	if d, err := optionalDuration("SAGA_RETRY_BASE_DELAY"); err != nil {
		return cfg, err
	} else if d != nil {
		cfg.RetryBaseDelay = *d
	}
	if d, err := optionalDuration("SAGA_RETRY_MAX_DELAY"); err != nil {
		return cfg, err
	} else if d != nil {
		cfg.RetryMaxDelay = *d
	}
	return cfg, nil
}

// LoadHTTP reads ingress rate limit settings from env. Both values must be
// set together; leaving them unset disables rate limiting.
func LoadHTTP() (HTTPConfig, error) {
	interval, err := optionalDuration("HTTP_RATE_LIMIT_INTERVAL")
	if err != nil {
		return HTTPConfig{}, err
	}
	burst, err := optionalInt("HTTP_RATE_LIMIT_BURST")
	if err != nil {
		return HTTPConfig{}, err
	}
	if (interval == nil) != (burst == nil) {
		return HTTPConfig{}, errors.New("HTTP_RATE_LIMIT_INTERVAL and HTTP_RATE_LIMIT_BURST must be set together")
	}
	if interval == nil {
		return HTTPConfig{}, nil
	}
	return HTTPConfig{RateLimitInterval: *interval, RateLimitBurst: *burst}, nil
}

// LoadObservability reads the metrics HTTP server address from env.
func LoadObservability() (ObservabilityConfig, error) {
	return ObservabilityConfig{Addr: stringWithDefault("OBS_ADDR", ":9100")}, nil
}

// GetDatabaseURL returns the optional Postgres DSN from env.
func GetDatabaseURL() string {
	return strings.TrimSpace(os.Getenv("DATABASE_URL"))
}

// LoadRedis reads Redis config from env. URL being empty means Redis is not
// configured.
func LoadRedis() (RedisConfig, error) {
	cfg := RedisConfig{
		URL:                strings.TrimSpace(os.Getenv("REDIS_URL")),
		KeyPrefix:          strings.TrimSpace(os.Getenv("REDIS_KEY_PREFIX")),
		HealthcheckTimeout: 3 * time.Second,
	}
	if cfg.URL == "" {
		return cfg, nil
	}

	var err error
	if cfg.DialTimeout, err = optionalDuration("REDIS_DIAL_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.ReadTimeout, err = optionalDuration("REDIS_READ_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.WriteTimeout, err = optionalDuration("REDIS_WRITE_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.PoolSize, err = optionalInt("REDIS_POOL_SIZE"); err != nil {
		return cfg, err
	}
	if cfg.MinIdleConns, err = optionalInt("REDIS_MIN_IDLE_CONNS"); err != nil {
		return cfg, err
	}
	if cfg.MaxRetries, err = optionalInt("REDIS_MAX_RETRIES"); err != nil {
		return cfg, err
	}
	if d, err := optionalDuration("REDIS_HEALTHCHECK_TIMEOUT"); err != nil {
		return cfg, err
	} else if d != nil {
		cfg.HealthcheckTimeout = *d
	}
	if cfg.TLSConfig, err = loadRedisTLSFromEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadRedisTLSFromEnv() (*tls.Config, error) {
	caFile := strings.TrimSpace(os.Getenv("REDIS_TLS_CA_FILE"))
	certFile := strings.TrimSpace(os.Getenv("REDIS_TLS_CERT_FILE"))
	keyFile := strings.TrimSpace(os.Getenv("REDIS_TLS_KEY_FILE"))
	serverName := strings.TrimSpace(os.Getenv("REDIS_TLS_SERVER_NAME"))
	insecureStr := strings.TrimSpace(os.Getenv("REDIS_TLS_INSECURE_SKIP_VERIFY"))

	if caFile == "" && certFile == "" && keyFile == "" && serverName == "" && insecureStr == "" {
		return nil, nil
	}
	if (certFile == "") != (keyFile == "") {
		return nil, errors.New("REDIS_TLS_CERT_FILE and REDIS_TLS_KEY_FILE must be set together")
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: serverName,
	}

	if insecureStr != "" {
		insecure, err := strconv.ParseBool(insecureStr)
		if err != nil {
			return nil, fmt.Errorf("REDIS_TLS_INSECURE_SKIP_VERIFY: %w", err)
		}
		tlsConfig.InsecureSkipVerify = insecure
	}

	if caFile != "" {
		pemData, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("read REDIS_TLS_CA_FILE: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemData) {
			return nil, errors.New("REDIS_TLS_CA_FILE contains no valid certificates")
		}
		tlsConfig.RootCAs = pool
	}

	if certFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("load redis TLS keypair: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

func stringWithDefault(name, fallback string) string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	return raw
}

func optionalDuration(name string) (*time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}

func optionalInt(name string) (*int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}
