// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package transport

import (
	"context"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"

	"github.com/ttsam-rt/ttsam-rt/internal/bus"
)

const maxDialBackoff = 5 * time.Second

// DialBusWithBackoff retries bus.Connect with exponential backoff (starting at
// 100ms, doubling, capped at maxDialBackoff) until it succeeds or ctx is canceled. An
// empty address is passed straight through to bus.Connect, which treats it as a
// deliberate "no outward bus" configuration and returns immediately.
func DialBusWithBackoff(ctx context.Context, address string) (*bus.Client, error) {
	if address == "" {
		return bus.Connect(address)
	}

	backoff := 100 * time.Millisecond
	for {
		client, err := bus.Connect(address)
		if err == nil {
			return client, nil
		}
		cclog.Warnf("transport: bus dial failed, retrying in %s: %v", backoff, err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxDialBackoff {
			backoff = maxDialBackoff
		}
	}
}
