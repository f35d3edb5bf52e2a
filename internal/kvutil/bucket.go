// Package kvutil provides helpers for the per-run JetStream KeyValue bucket.
//
// Every distributed run shares one bucket. It holds rank claims, readiness
// markers and progress reports, all keyed by rank.
package kvutil

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Key prefixes used inside a run bucket.
const (
	RankKeyPrefix     = "rank"
	ReadyKeyPrefix    = "ready"
	ProgressKeyPrefix = "progress"
)

// RankKey returns "<prefix>.<rank>".
func RankKey(prefix string, rank int) string {
	return fmt.Sprintf("%s.%d", prefix, rank)
}

// BucketName derives a valid bucket name from a subject prefix and run id.
//
// Bucket names only allow letters, digits, '-' and '_'; anything else is
// replaced with '_'.
func BucketName(prefix, runID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, prefix+"-"+runID)
}

// RunBucketConfig returns the bucket configuration for one run.
//
// ttl bounds how long an abandoned key survives; live keys are refreshed by
// their owners well within it.
func RunBucketConfig(bucket string, ttl time.Duration) jetstream.KeyValueConfig {
	return jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "jacobi run coordination",
		History:     1,
		TTL:         ttl,
		Storage:     jetstream.MemoryStorage,
	}
}

// EnsureKVBucketWithRetry creates or opens a KV bucket with retry logic.
//
// Every worker of a run calls this at startup, so creation races are the
// normal case. ErrBucketExists falls back to opening the bucket; other
// failures are retried with exponential backoff.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - js: JetStream context
//   - config: KV bucket configuration
//   - maxRetries: Maximum number of attempts (default: 3)
//
// Returns:
//   - jetstream.KeyValue: The KV bucket instance
//   - error: Any error that occurred after all retries
func EnsureKVBucketWithRetry(
	ctx context.Context,
	js jetstream.JetStream,
	config jetstream.KeyValueConfig,
	maxRetries int,
) (jetstream.KeyValue, error) {
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var lastErr error

	for attempt := range maxRetries {
		kv, err := js.CreateKeyValue(ctx, config)
		if err == nil {
			return kv, nil
		}

		if errors.Is(err, jetstream.ErrBucketExists) {
			kv, err := js.KeyValue(ctx, config.Bucket)
			if err == nil {
				return kv, nil
			}
			lastErr = fmt.Errorf("bucket exists but failed to open: %w", err)
		} else {
			lastErr = err
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("context cancelled during KV bucket creation: %w", ctx.Err())
		}

		// 10ms, 20ms, 40ms...
		if attempt < maxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * 10 * time.Millisecond //nolint:gosec // attempt is bounded by maxRetries
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("failed to create/open KV bucket %s after %d attempts: %w",
		config.Bucket, maxRetries, lastErr)
}

// DeleteKeys removes keys, ignoring keys that are already gone.
//
// Returns the first other error after attempting every key.
func DeleteKeys(ctx context.Context, kv jetstream.KeyValue, keys ...string) error {
	var firstErr error
	for _, key := range keys {
		if err := kv.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) && firstErr == nil {
			firstErr = fmt.Errorf("delete %s: %w", key, err)
		}
	}

	return firstErr
}
