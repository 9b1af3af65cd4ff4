// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/time/rate"

	"github.com/ttsam-rt/ttsam-rt/pkg/seis"
)

// streamRecord is one line of a replay fixture: either a waveform packet or a pick,
// tagged by Kind.
type streamRecord struct {
	Kind   string              `json:"kind"`
	Packet *seis.WaveformPacket `json:"packet,omitempty"`
	Pick   *seis.Pick           `json:"pick,omitempty"`
}

// TextStreamSource replays a line-delimited JSON fixture at a bounded rate, for
// deterministic local testing and the replay CLI. Each line is a streamRecord,
// {"kind":"waveform","packet":{...}} or {"kind":"pick","pick":{...}}; lines of any
// other kind are skipped, so the bare Pick lines reportlog.Writer writes to the pick
// log are not replayed as-is. The rate limiter is
// golang.org/x/time/rate rather than a hand-rolled ticker, the same library family the
// example pack's HTTP-facing repos reach for to cap outbound request rates.
type TextStreamSource struct {
	r       io.Reader
	limiter *rate.Limiter
}

// NewTextStreamSource wraps r, emitting at most recordsPerSecond records/sec. A
// non-positive recordsPerSecond disables throttling (replay as fast as possible).
func NewTextStreamSource(r io.Reader, recordsPerSecond float64) *TextStreamSource {
	var limiter *rate.Limiter
	if recordsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(recordsPerSecond), 1)
	}
	return &TextStreamSource{r: r, limiter: limiter}
}

// RunCombined scans the stream once, dispatching each record to onPacket or onPick.
// It returns nil at EOF, or the scanning/decoding error, or ctx.Err() if canceled.
func (s *TextStreamSource) RunCombined(ctx context.Context, onPacket func(seis.WaveformPacket), onPick func(seis.Pick)) error {
	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec streamRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("transport: decode replay line: %w", err)
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		switch rec.Kind {
		case "waveform":
			if rec.Packet != nil && onPacket != nil {
				onPacket(*rec.Packet)
			}
		case "pick":
			if rec.Pick != nil && onPick != nil {
				onPick(*rec.Pick)
			}
		}
	}
	return scanner.Err()
}
