// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ragcore

import (
	"context"
	"time"
)

// RetryConfig bounds the retry helper used by the Semantic Searcher's
// ANN backend call; the lexical searchers make a single attempt.
// Exhausting retries still degrades to the searcher's "empty result"
// sentinel; Retry returns the final attempt's error, or ctx.Err() when
// ctx is cancelled between attempts.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func (c *RetryConfig) SetDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 50 * time.Millisecond
	}
}

// Retry calls fn up to cfg.MaxAttempts times with linear backoff,
// returning the last error if every attempt fails, or ctx.Err() if ctx
// is cancelled while waiting between attempts.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	cfg.SetDefaults()

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.BaseDelay * time.Duration(attempt)):
			}
		}
		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
	}
	return lastErr
}
