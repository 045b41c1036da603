package config

import (
	"log/slog"
	"sort"

	"github.com/jpalmerr/fetchstore"
)

// BuildOptions converts parsed configuration into store options.
//
// The returned options configure method, headers, body, retries, retry delay,
// timeout and transform; logger is attached when non-nil. Store-level
// validation still happens in [fetchstore.New].
func BuildOptions(cfg *Config, logger *slog.Logger) []fetchstore.Option {
	var opts []fetchstore.Option

	if cfg.Method != "" {
		opts = append(opts, fetchstore.WithMethod(cfg.Method))
	}

	if len(cfg.Headers) > 0 {
		opts = append(opts, fetchstore.WithHeaders(mapToKeyValuePairs(cfg.Headers)...))
	}

	if cfg.Body != "" {
		opts = append(opts, fetchstore.WithBody([]byte(cfg.Body)))
	}

	if cfg.Retries > 0 {
		opts = append(opts, fetchstore.WithRetries(cfg.Retries))
	}

	if cfg.RetryDelay != 0 {
		opts = append(opts, fetchstore.WithRetryDelay(cfg.RetryDelay.Duration()))
	}

	if cfg.Timeout != 0 {
		opts = append(opts, fetchstore.WithTimeout(cfg.Timeout.Duration()))
	}

	if transform := BuildTransform(cfg.Transform); transform != nil {
		opts = append(opts, fetchstore.WithTransform(transform))
	}

	if logger != nil {
		opts = append(opts, fetchstore.WithLogger(logger))
	}

	return opts
}

// BuildTransform converts a TransformConfig into a transform over generically
// decoded bodies. Returns nil for the identity.
func BuildTransform(tc TransformConfig) func(any) any {
	if tc.Empty() {
		return nil
	}

	var steps []func(any) any
	if tc.Path != "" {
		steps = append(steps, fetchstore.JSONPath(tc.Path))
	}
	if tc.Limit > 0 {
		steps = append(steps, fetchstore.Limit(tc.Limit))
	}
	return fetchstore.Chain(steps...)
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	// sort keys for deterministic ordering
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
