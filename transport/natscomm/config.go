package natscomm

import (
	"fmt"
	"strings"
	"time"

	"github.com/arloliu/jacobi/internal/kvutil"
	"github.com/arloliu/jacobi/types"
)

// Config configures a NATS communicator.
//
// All duration fields accept standard Go duration strings like "30s", "5m".
type Config struct {
	// URL is the NATS server URL. Only used by callers that dial themselves;
	// Open takes an established connection.
	URL string `yaml:"url"`

	// SubjectPrefix is the first subject token of every message.
	SubjectPrefix string `yaml:"subjectPrefix"`

	// RunID separates concurrent runs on the same server. Every worker of a
	// run must use the same value. Must be a single subject token.
	RunID string `yaml:"runId"`

	// Bucket is the KV bucket for rank claims, readiness and progress.
	// Defaults to "<SubjectPrefix>-<RunID>".
	Bucket string `yaml:"bucket"`

	// ClaimTTL is the lease on a rank claim; renewed every ClaimTTL/3.
	// Also the bucket TTL, so stale keys of a crashed run vanish after it.
	ClaimTTL time.Duration `yaml:"claimTtl"`

	// StartupTimeout bounds rank claiming and the readiness rendezvous.
	StartupTimeout time.Duration `yaml:"startupTimeout"`

	// ProgressInterval is how often workers publish progress snapshots.
	ProgressInterval time.Duration `yaml:"progressInterval"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:              "nats://127.0.0.1:4222",
		SubjectPrefix:    "jacobi",
		RunID:            "default",
		ClaimTTL:         30 * time.Second,
		StartupTimeout:   60 * time.Second,
		ProgressInterval: time.Second,
	}
}

// SetDefaults fills in missing configuration values.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.URL == "" {
		cfg.URL = defaults.URL
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = defaults.SubjectPrefix
	}
	if cfg.RunID == "" {
		cfg.RunID = defaults.RunID
	}
	if cfg.Bucket == "" {
		cfg.Bucket = kvutil.BucketName(cfg.SubjectPrefix, cfg.RunID)
	}
	if cfg.ClaimTTL == 0 {
		cfg.ClaimTTL = defaults.ClaimTTL
	}
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = defaults.StartupTimeout
	}
	if cfg.ProgressInterval == 0 {
		cfg.ProgressInterval = defaults.ProgressInterval
	}
}

// Validate checks configuration constraints.
//
// Returns:
//   - error: ErrInvalidConfig wrapping the first violated rule, nil if valid
func (cfg *Config) Validate() error {
	if !validToken(cfg.SubjectPrefix) {
		return fmt.Errorf("%w: subject prefix %q must be a non-empty token without '.', '*', '>' or spaces",
			types.ErrInvalidConfig, cfg.SubjectPrefix)
	}
	if !validToken(cfg.RunID) {
		return fmt.Errorf("%w: run id %q must be a non-empty token without '.', '*', '>' or spaces",
			types.ErrInvalidConfig, cfg.RunID)
	}
	if cfg.Bucket == "" {
		return fmt.Errorf("%w: bucket is required", types.ErrInvalidConfig)
	}
	if cfg.ClaimTTL < time.Second {
		return fmt.Errorf("%w: ClaimTTL (%v) must be >= 1s", types.ErrInvalidConfig, cfg.ClaimTTL)
	}
	if cfg.StartupTimeout <= 0 {
		return fmt.Errorf("%w: StartupTimeout must be > 0, got %v", types.ErrInvalidConfig, cfg.StartupTimeout)
	}
	if cfg.ProgressInterval <= 0 {
		return fmt.Errorf("%w: ProgressInterval must be > 0, got %v", types.ErrInvalidConfig, cfg.ProgressInterval)
	}

	return nil
}

// ValidateWithWarnings logs warnings for non-recommended values.
func (cfg *Config) ValidateWithWarnings(logger types.Logger) {
	if cfg.ProgressInterval >= cfg.ClaimTTL {
		logger.Warn("ProgressInterval is not below ClaimTTL; progress keys may expire between updates",
			"progress_interval", cfg.ProgressInterval, "claim_ttl", cfg.ClaimTTL)
	}
	if cfg.StartupTimeout < cfg.ClaimTTL/3 {
		logger.Warn("StartupTimeout is shorter than one claim renewal period",
			"startup_timeout", cfg.StartupTimeout, "claim_ttl", cfg.ClaimTTL)
	}
}

func validToken(s string) bool {
	return s != "" && !strings.ContainsAny(s, ".*> \t\r\n")
}
