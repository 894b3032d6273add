package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"storefront/internal/resilience"
)

// Services this binary can serve.
const (
	ServicePayment   = "payment"
	ServiceShipping  = "shipping"
	ServiceFavourite = "favourite"
	ServiceOrder     = "order"
)

// AppConfig holds the settings every service needs.
type AppConfig struct {
	ServiceName string
	AppEnv      string
	LogMode     string
	HTTPAddr    string
	GRPCAddr    string
	DatabaseURL string
}

// RemoteConfig holds outbound client settings and peer base URLs.
type RemoteConfig struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	UserURL        string
	ProductURL     string
	OrderURL       string
}

// EnrichConfig holds the read-path toggles.
type EnrichConfig struct {
	Enabled          bool
	OrderItemDetails bool
	Concurrency      int
}

// RedisConfig holds Redis connection and behavior settings.
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
	EnableOTel         bool
	TLSConfig          *tls.Config
}

// GRPCConfig holds ingress rate limiting settings. A zero interval disables
// the limiter.
type GRPCConfig struct {
	RateLimitInterval time.Duration
	RateLimitBurst    int
}

// ObservabilityConfig holds the HTTP address for the metrics endpoint.
type ObservabilityConfig struct {
	Addr string
}

// LoadApp reads the service identity and listen addresses from env.
func LoadApp() (AppConfig, error) {
	name, err := requiredString("SERVICE_NAME")
	if err != nil {
		return AppConfig{}, err
	}
	switch name {
	case ServicePayment, ServiceShipping, ServiceFavourite, ServiceOrder:
	default:
		return AppConfig{}, fmt.Errorf("SERVICE_NAME %q is not one of payment, shipping, favourite, order", name)
	}
	return AppConfig{
		ServiceName: name,
		AppEnv:      optionalString("APP_ENV", "development"),
		LogMode:     optionalString("LOG_MODE", "development"),
		HTTPAddr:    optionalString("HTTP_ADDR", ":8080"),
		GRPCAddr:    optionalString("GRPC_ADDR", ":50051"),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
	}, nil
}

// LoadRemote reads client timeouts and the peers the given service calls.
func LoadRemote(service string) (RemoteConfig, error) {
	cfg := RemoteConfig{}
	var err error
	if cfg.ConnectTimeout, err = durationOr("REMOTE_CONNECT_TIMEOUT", 2*time.Second); err != nil {
		return cfg, err
	}
	if cfg.ReadTimeout, err = durationOr("REMOTE_READ_TIMEOUT", 3*time.Second); err != nil {
		return cfg, err
	}

	var needs []string
	switch service {
	case ServicePayment:
		needs = []string{"ORDER_SERVICE_URL"}
	case ServiceShipping:
		needs = []string{"PRODUCT_SERVICE_URL", "ORDER_SERVICE_URL"}
	case ServiceFavourite:
		needs = []string{"USER_SERVICE_URL", "PRODUCT_SERVICE_URL"}
	case ServiceOrder:
		needs = []string{"USER_SERVICE_URL"}
	}
	for _, name := range needs {
		raw, err := requiredURL(name)
		if err != nil {
			return cfg, err
		}
		switch name {
		case "USER_SERVICE_URL":
			cfg.UserURL = raw
		case "PRODUCT_SERVICE_URL":
			cfg.ProductURL = raw
		case "ORDER_SERVICE_URL":
			cfg.OrderURL = raw
		}
	}
	return cfg, nil
}

// LoadEnrich reads the read-path toggles.
func LoadEnrich() (EnrichConfig, error) {
	cfg := EnrichConfig{}
	var err error
	if cfg.Enabled, err = boolOr("ENRICH_ENABLED", true); err != nil {
		return cfg, err
	}
	if cfg.OrderItemDetails, err = boolOr("ENRICH_ORDER_ITEM_DETAILS", true); err != nil {
		return cfg, err
	}
	concurrency, err := optionalInt("ENRICH_CONCURRENCY")
	if err != nil {
		return cfg, err
	}
	if concurrency != nil {
		cfg.Concurrency = *concurrency
	}
	return cfg, nil
}

// LoadResilience builds the default dependency policy from env and reads
// per-dependency overrides from RESILIENCE_CONFIG_FILE when set.
func LoadResilience() (resilience.Config, map[string]resilience.Config, error) {
	cfg := resilience.DefaultConfig()
	if err := applyResilienceEnv(&cfg); err != nil {
		return cfg, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, fmt.Errorf("resilience defaults: %w", err)
	}

	path := strings.TrimSpace(os.Getenv("RESILIENCE_CONFIG_FILE"))
	if path == "" {
		return cfg, nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, nil, fmt.Errorf("read RESILIENCE_CONFIG_FILE: %w", err)
	}
	overrides, err := resilience.ParseOverrides(data, cfg)
	if err != nil {
		return cfg, nil, fmt.Errorf("RESILIENCE_CONFIG_FILE: %w", err)
	}
	return cfg, overrides, nil
}

func applyResilienceEnv(cfg *resilience.Config) error {
	ints := []struct {
		name string
		dst  *int
	}{
		{"RESILIENCE_RETRY_MAX_ATTEMPTS", &cfg.Retry.MaxAttempts},
		{"RESILIENCE_BREAKER_WINDOW", &cfg.Breaker.Window},
		{"RESILIENCE_BREAKER_MIN_CALLS", &cfg.Breaker.MinCalls},
		{"RESILIENCE_BREAKER_HALF_OPEN_PROBES", &cfg.Breaker.HalfOpenProbes},
		{"RESILIENCE_BULKHEAD_MAX_CONCURRENT", &cfg.Bulkhead.MaxConcurrent},
		{"RESILIENCE_RATE_LIMIT_BURST", &cfg.RateLimit.Burst},
	}
	for _, f := range ints {
		v, err := optionalInt(f.name)
		if err != nil {
			return err
		}
		if v != nil {
			*f.dst = *v
		}
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"RESILIENCE_RETRY_BASE_DELAY", &cfg.Retry.BaseDelay},
		{"RESILIENCE_RETRY_MAX_DELAY", &cfg.Retry.MaxDelay},
		{"RESILIENCE_BREAKER_COOLDOWN", &cfg.Breaker.Cooldown},
		{"RESILIENCE_BULKHEAD_MAX_WAIT", &cfg.Bulkhead.MaxWait},
		{"RESILIENCE_RATE_LIMIT_INTERVAL", &cfg.RateLimit.Interval},
	}
	for _, f := range durations {
		v, err := optionalDuration(f.name)
		if err != nil {
			return err
		}
		if v != nil {
			*f.dst = *v
		}
	}

	ratio, err := optionalFloat("RESILIENCE_BREAKER_FAILURE_RATIO")
	if err != nil {
		return err
	}
	if ratio != nil {
		cfg.Breaker.FailureRatio = *ratio
	}
	return nil
}

// LoadRedis reads Redis config from env.
func LoadRedis() (RedisConfig, error) {
	cfg := RedisConfig{
		KeyPrefix: strings.TrimSpace(os.Getenv("REDIS_KEY_PREFIX")),
	}
	var err error
	if cfg.URL, err = requiredString("REDIS_URL"); err != nil {
		return cfg, err
	}

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
	if cfg.HealthcheckTimeout, err = durationOr("REDIS_HEALTHCHECK_TIMEOUT", 2*time.Second); err != nil {
		return cfg, err
	}
	if cfg.EnableOTel, err = optionalBool("REDIS_OTEL"); err != nil {
		return cfg, err
	}
	if cfg.TLSConfig, err = loadRedisTLSFromEnv(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// LoadGRPC reads gRPC ingress rate limit settings from env.
func LoadGRPC() (GRPCConfig, error) {
	cfg := GRPCConfig{}
	var err error
	if cfg.RateLimitInterval, err = durationOr("GRPC_RATE_LIMIT_INTERVAL", 0); err != nil {
		return cfg, err
	}
	burst, err := optionalInt("GRPC_RATE_LIMIT_BURST")
	if err != nil {
		return cfg, err
	}
	if burst != nil {
		cfg.RateLimitBurst = *burst
	}
	if cfg.RateLimitInterval > 0 && cfg.RateLimitBurst == 0 {
		return cfg, errors.New("GRPC_RATE_LIMIT_BURST is required when GRPC_RATE_LIMIT_INTERVAL is set")
	}
	return cfg, nil
}

// LoadObservability reads metrics HTTP server address from env.
func LoadObservability() (ObservabilityConfig, error) {
	return ObservabilityConfig{Addr: optionalString("OBS_ADDR", ":9090")}, nil
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

func optionalString(name, fallback string) string {
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

func durationOr(name string, fallback time.Duration) (time.Duration, error) {
	val, err := optionalDuration(name)
	if err != nil || val == nil {
		return fallback, err
	}
	return *val, nil
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

func optionalFloat(name string) (*float64, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}

func optionalBool(name string) (bool, error) {
	return boolOr(name, false)
}

func boolOr(name string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return val, nil
}

func requiredString(name string) (string, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return raw, nil
}

func requiredURL(name string) (string, error) {
	raw, err := requiredString(name)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
	}
	return strings.TrimRight(raw, "/"), nil
}
