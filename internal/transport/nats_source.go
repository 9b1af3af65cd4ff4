// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package transport

import (
	"context"
	"encoding/json"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"

	"github.com/ttsam-rt/ttsam-rt/internal/bus"
	"github.com/ttsam-rt/ttsam-rt/internal/telemetry/metrics"
	"github.com/ttsam-rt/ttsam-rt/pkg/seis"
)

// NatsWaveformSource subscribes to a waveform subject and decodes each message as a
// seis.WaveformPacket.
type NatsWaveformSource struct {
	Client  *bus.Client
	Subject string
}

func (s *NatsWaveformSource) Run(ctx context.Context, onPacket func(seis.WaveformPacket)) error {
	err := s.Client.Subscribe(s.Subject, func(_ string, data []byte) {
		var p seis.WaveformPacket
		if err := json.Unmarshal(data, &p); err != nil {
			metrics.DroppedPackets.WithLabelValues("malformed").Inc()
			cclog.Warnf("transport: malformed waveform packet: %v", err)
			return
		}
		onPacket(p)
	})
	if err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

// NatsPickSource subscribes to a pick subject and decodes each message as a seis.Pick.
type NatsPickSource struct {
	Client  *bus.Client
	Subject string
}

func (s *NatsPickSource) Run(ctx context.Context, onPick func(seis.Pick)) error {
	err := s.Client.Subscribe(s.Subject, func(_ string, data []byte) {
		var p seis.Pick
		if err := json.Unmarshal(data, &p); err != nil {
			cclog.Warnf("transport: malformed pick: %v", err)
			return
		}
		onPick(p)
	})
	if err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}
