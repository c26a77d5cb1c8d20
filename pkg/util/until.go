// Copyright 2021 Ewout Prangsma
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
//
// Author Ewout Prangsma
//

package util

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	maxUntilCanceledDelay = time.Second * 5
)

// UntilCanceled continues to call the given callback
// until the given context is canceled.
// The callback is called every interval. After a failure
// the delay grows until the callback succeeds again.
// A wakeup channel (may be nil) triggers the next call immediately.
func UntilCanceled(ctx context.Context, log zerolog.Logger, description string, interval time.Duration, wakeup <-chan struct{}, cb func() error) error {
	delay := interval
	for {
		if ctx.Err() != nil {
			// Context canceled
			return nil
		}
		if err := cb(); err != nil {
			log.Warn().Err(err).Msgf("%s failed", description)
			delay = time.Duration(float64(delay) * 1.5)
			if delay > maxUntilCanceledDelay {
				delay = maxUntilCanceledDelay
			}
		} else {
			delay = interval
		}
		select {
		case <-ctx.Done():
			// Context canceled
			log.Info().Msgf("Stopping %s; context canceled", description)
			return nil
		case <-wakeup:
			// Continue now
		case <-time.After(delay):
			// Continue
		}
	}
}
