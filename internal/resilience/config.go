package resilience

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full policy set applied to one dependency.
type Config struct {
	Retry     RetryConfig     `yaml:"retry"`
	Breaker   BreakerSettings `yaml:"breaker"`
	Bulkhead  BulkheadConfig  `yaml:"bulkhead"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseDelay   time.Duration `yaml:"baseDelay"`
	MaxDelay    time.Duration `yaml:"maxDelay"`
}

type BreakerSettings struct {
	Window         int           `yaml:"window"`
	MinCalls       int           `yaml:"minCalls"`
	FailureRatio   float64       `yaml:"failureRatio"`
	Cooldown       time.Duration `yaml:"cooldown"`
	HalfOpenProbes int           `yaml:"halfOpenProbes"`
}

// BulkheadConfig with MaxConcurrent 0 disables the bulkhead.
type BulkheadConfig struct {
	MaxConcurrent int           `yaml:"maxConcurrent"`
	MaxWait       time.Duration `yaml:"maxWait"`
}

// RateLimitConfig with a zero Interval disables outbound rate limiting.
type RateLimitConfig struct {
	Interval time.Duration `yaml:"interval"`
	Burst    int           `yaml:"burst"`
}

// DefaultConfig returns the policy used for dependencies without overrides.
func DefaultConfig() Config {
	return Config{
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   100 * time.Millisecond,
			MaxDelay:    time.Second,
		},
		Breaker: BreakerSettings{
			Window:         10,
			MinCalls:       5,
			FailureRatio:   0.5,
			Cooldown:       10 * time.Second,
			HalfOpenProbes: 3,
		},
		Bulkhead: BulkheadConfig{
			MaxConcurrent: 25,
		},
	}
}

// Validate rejects settings that cannot describe a working policy.
func (c Config) Validate() error {
	var errs []error
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry.maxAttempts must be >= 1"))
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		errs = append(errs, errors.New("retry delays must be >= 0"))
	}
	if c.Breaker.Window < 1 {
		errs = append(errs, errors.New("breaker.window must be >= 1"))
	}
	if c.Breaker.MinCalls < 1 || c.Breaker.MinCalls > c.Breaker.Window {
		errs = append(errs, errors.New("breaker.minCalls must be between 1 and breaker.window"))
	}
	if c.Breaker.FailureRatio <= 0 || c.Breaker.FailureRatio > 1 {
		errs = append(errs, errors.New("breaker.failureRatio must be in (0, 1]"))
	}
	if c.Breaker.Cooldown <= 0 {
		errs = append(errs, errors.New("breaker.cooldown must be > 0"))
	}
	if c.Breaker.HalfOpenProbes < 1 {
		errs = append(errs, errors.New("breaker.halfOpenProbes must be >= 1"))
	}
	if c.Bulkhead.MaxConcurrent < 0 || c.Bulkhead.MaxWait < 0 {
		errs = append(errs, errors.New("bulkhead settings must be >= 0"))
	}
	if c.RateLimit.Interval < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rateLimit settings must be >= 0"))
	}
	return errors.Join(errs...)
}

type overridesFile struct {
	Dependencies map[string]yaml.Node `yaml:"dependencies"`
}

// ParseOverrides reads per-dependency overrides of the form
//
//	dependencies:
//	  product:
//	    retry:
//	      maxAttempts: 2
//
// Fields a dependency does not mention keep their value from defaults.
func ParseOverrides(data []byte, defaults Config) (map[string]Config, error) {
	var file overridesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse resilience overrides: %w", err)
	}
	out := make(map[string]Config, len(file.Dependencies))
	for name, node := range file.Dependencies {
		cfg := defaults
		if err := node.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("resilience overrides for %s: %w", name, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("resilience overrides for %s: %w", name, err)
		}
		out[name] = cfg
	}
	return out, nil
}
