// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package transport is the ingest boundary: a WaveformSource/PickSource pair that
// either subscribes to the NATS bus or replays a recorded line-delimited JSON stream,
// plus the exponential-backoff dial helper the pipeline uses to establish the outward
// NATS connection without spinning on a down broker.
package transport

import (
	"context"

	"github.com/ttsam-rt/ttsam-rt/pkg/seis"
)

// WaveformSource delivers WaveformPackets to onPacket until ctx is canceled or the
// source is exhausted (a replay file reaching EOF).
type WaveformSource interface {
	Run(ctx context.Context, onPacket func(seis.WaveformPacket)) error
}

// PickSource delivers Picks to onPick until ctx is canceled or the source is exhausted.
type PickSource interface {
	Run(ctx context.Context, onPick func(seis.Pick)) error
}
