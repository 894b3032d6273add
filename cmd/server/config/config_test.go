package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadApp_Defaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "payment")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("GRPC_ADDR", "")

	cfg, err := LoadApp()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServiceName != ServicePayment || cfg.HTTPAddr != ":8080" || cfg.GRPCAddr != ":50051" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadApp_RejectsUnknownService(t *testing.T) {
	t.Setenv("SERVICE_NAME", "inventory")
	if _, err := LoadApp(); err == nil {
		t.Fatalf("expected unknown service error")
	}
	t.Setenv("SERVICE_NAME", "")
	if _, err := LoadApp(); err == nil {
		t.Fatalf("expected missing service error")
	}
}

func TestLoadRemote_RequiresPeersPerService(t *testing.T) {
	t.Setenv("PRODUCT_SERVICE_URL", "http://products:8500/")
	t.Setenv("ORDER_SERVICE_URL", "")

	if _, err := LoadRemote(ServiceShipping); err == nil {
		t.Fatalf("expected missing order url error")
	}

	t.Setenv("ORDER_SERVICE_URL", "http://orders:8300")
	cfg, err := LoadRemote(ServiceShipping)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ProductURL != "http://products:8500" || cfg.OrderURL != "http://orders:8300" {
		t.Fatalf("unexpected urls: %+v", cfg)
	}
	if cfg.ConnectTimeout != 2*time.Second || cfg.ReadTimeout != 3*time.Second {
		t.Fatalf("unexpected timeouts: %+v", cfg)
	}
}

func TestLoadRemote_RejectsRelativeURL(t *testing.T) {
	t.Setenv("USER_SERVICE_URL", "users:8700")
	if _, err := LoadRemote(ServiceOrder); err == nil {
		t.Fatalf("expected absolute url error")
	}
}

func TestLoadEnrich_Defaults(t *testing.T) {
	cfg, err := LoadEnrich()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Enabled || !cfg.OrderItemDetails {
		t.Fatalf("expected enrichment enabled by default: %+v", cfg)
	}

	t.Setenv("ENRICH_ORDER_ITEM_DETAILS", "false")
	t.Setenv("ENRICH_CONCURRENCY", "4")
	cfg, err = LoadEnrich()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OrderItemDetails || cfg.Concurrency != 4 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadResilience_EnvAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resilience.yaml")
	data := []byte("dependencies:\n  product:\n    retry:\n      maxAttempts: 1\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("RESILIENCE_RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("RESILIENCE_BREAKER_FAILURE_RATIO", "0.25")
	t.Setenv("RESILIENCE_BREAKER_COOLDOWN", "30s")
	t.Setenv("RESILIENCE_CONFIG_FILE", path)

	defaults, overrides, err := LoadResilience()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if defaults.Retry.MaxAttempts != 5 || defaults.Breaker.FailureRatio != 0.25 || defaults.Breaker.Cooldown != 30*time.Second {
		t.Fatalf("unexpected defaults: %+v", defaults)
	}
	product, ok := overrides["product"]
	if !ok || product.Retry.MaxAttempts != 1 {
		t.Fatalf("unexpected overrides: %+v", overrides)
	}
	if product.Breaker.Cooldown != 30*time.Second {
		t.Fatalf("override should inherit env defaults, got %v", product.Breaker.Cooldown)
	}
}

func TestLoadResilience_InvalidValues(t *testing.T) {
	t.Setenv("RESILIENCE_BREAKER_FAILURE_RATIO", "1.5")
	if _, _, err := LoadResilience(); err == nil {
		t.Fatalf("expected ratio validation error")
	}
	t.Setenv("RESILIENCE_BREAKER_FAILURE_RATIO", "")
	t.Setenv("RESILIENCE_RETRY_MAX_ATTEMPTS", "zero")
	if _, _, err := LoadResilience(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadRedis_WithOptionalFields(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("REDIS_HEALTHCHECK_TIMEOUT", "1s")
	t.Setenv("REDIS_DIAL_TIMEOUT", "3s")
	t.Setenv("REDIS_READ_TIMEOUT", "4s")
	t.Setenv("REDIS_WRITE_TIMEOUT", "5s")
	t.Setenv("REDIS_POOL_SIZE", "9")
	t.Setenv("REDIS_MIN_IDLE_CONNS", "2")
	t.Setenv("REDIS_MAX_RETRIES", "3")
	t.Setenv("REDIS_OTEL", "true")

	cfg, err := LoadRedis()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HealthcheckTimeout != time.Second {
		t.Fatalf("unexpected healthcheck timeout: %v", cfg.HealthcheckTimeout)
	}
	if cfg.DialTimeout == nil || *cfg.DialTimeout != 3*time.Second {
		t.Fatalf("unexpected dial timeout: %v", cfg.DialTimeout)
	}
	if cfg.ReadTimeout == nil || *cfg.ReadTimeout != 4*time.Second {
		t.Fatalf("unexpected read timeout: %v", cfg.ReadTimeout)
	}
	if cfg.WriteTimeout == nil || *cfg.WriteTimeout != 5*time.Second {
		t.Fatalf("unexpected write timeout: %v", cfg.WriteTimeout)
	}
	if cfg.PoolSize == nil || *cfg.PoolSize != 9 {
		t.Fatalf("unexpected pool size: %v", cfg.PoolSize)
	}
	if cfg.MinIdleConns == nil || *cfg.MinIdleConns != 2 {
		t.Fatalf("unexpected min idle: %v", cfg.MinIdleConns)
	}
	if cfg.MaxRetries == nil || *cfg.MaxRetries != 3 {
		t.Fatalf("unexpected max retries: %v", cfg.MaxRetries)
	}
	if !cfg.EnableOTel {
		t.Fatalf("expected otel enabled")
	}
}

func TestLoadRedis_MissingURL(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	if _, err := LoadRedis(); err == nil {
		t.Fatalf("expected missing url error")
	}
}

func TestLoadRedis_BadHealthcheckTimeout(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("REDIS_HEALTHCHECK_TIMEOUT", "bad")
	if _, err := LoadRedis(); err == nil {
		t.Fatalf("expected error for bad healthcheck timeout")
	}
}

func TestLoadGRPC(t *testing.T) {
	cfg, err := LoadGRPC()
	if err != nil || cfg.RateLimitInterval != 0 {
		t.Fatalf("expected disabled limiter, got %+v (%v)", cfg, err)
	}

	t.Setenv("GRPC_RATE_LIMIT_INTERVAL", "10ms")
	if _, err := LoadGRPC(); err == nil {
		t.Fatalf("expected missing burst error")
	}

	t.Setenv("GRPC_RATE_LIMIT_BURST", "5")
	cfg, err = LoadGRPC()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RateLimitInterval != 10*time.Millisecond || cfg.RateLimitBurst != 5 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadObservability_Default(t *testing.T) {
	t.Setenv("OBS_ADDR", "")
	cfg, _ := LoadObservability()
	if cfg.Addr != ":9090" {
		t.Fatalf("unexpected addr: %s", cfg.Addr)
	}
}

func TestLoadRedisTLS_NoSettingsReturnsNil(t *testing.T) {
	if cfg, err := loadRedisTLSFromEnv(); err != nil || cfg != nil {
		t.Fatalf("expected nil tls config, got %#v err %v", cfg, err)
	}
}

func TestLoadRedisTLS_MismatchedKeyPair(t *testing.T) {
	t.Setenv("REDIS_TLS_CERT_FILE", "cert")
	if _, err := loadRedisTLSFromEnv(); err == nil {
		t.Fatalf("expected cert/key mismatch error")
	}
}

func TestLoadRedisTLS_InsecureTrue(t *testing.T) {
	t.Setenv("REDIS_TLS_INSECURE_SKIP_VERIFY", "true")
	cfg, err := loadRedisTLSFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil || !cfg.InsecureSkipVerify {
		t.Fatalf("expected insecure tls config, got %#v", cfg)
	}
}

func TestLoadRedisTLS_ReadCAError(t *testing.T) {
	t.Setenv("REDIS_TLS_CA_FILE", "/no/such/file")
	if _, err := loadRedisTLSFromEnv(); err == nil {
		t.Fatalf("expected read error for missing CA file")
	}
}

func TestOptionalHelpers(t *testing.T) {
	t.Setenv("X_OPT_DUR", "-1ms")
	if _, err := optionalDuration("X_OPT_DUR"); err == nil {
		t.Fatalf("expected negative duration error")
	}
	t.Setenv("X_OPT_INT", "-1")
	if _, err := optionalInt("X_OPT_INT"); err == nil {
		t.Fatalf("expected negative int error")
	}
	t.Setenv("X_OPT_FLOAT", "x")
	if _, err := optionalFloat("X_OPT_FLOAT"); err == nil {
		t.Fatalf("expected float parse error")
	}
	t.Setenv("X_OPT_BOOL", "notbool")
	if _, err := optionalBool("X_OPT_BOOL"); err == nil {
		t.Fatalf("expected bool parse error")
	}
}
