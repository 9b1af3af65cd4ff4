// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package transport

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttsam-rt/ttsam-rt/pkg/seis"
)

func TestTextStreamSourceDispatchesByKind(t *testing.T) {
	data := `{"kind":"waveform","packet":{"station_id":"A","channel_id":"Z","sample_rate_hz":100,"start_time":0,"end_time":0.01,"samples":[1],"gain":1}}
{"kind":"pick","pick":{"station_id":"A","phase":"P","pick_time":1}}
`
	src := NewTextStreamSource(strings.NewReader(data), 0)

	var packets []seis.WaveformPacket
	var picks []seis.Pick
	err := src.RunCombined(context.Background(),
		func(p seis.WaveformPacket) { packets = append(packets, p) },
		func(p seis.Pick) { picks = append(picks, p) },
	)
	require.NoError(t, err)
	require.Len(t, packets, 1)
	require.Len(t, picks, 1)
	assert.Equal(t, "A", packets[0].StationID)
	assert.Equal(t, seis.PhaseP, picks[0].Phase)
}

func TestTextStreamSourceStopsOnCancel(t *testing.T) {
	data := `{"kind":"pick","pick":{"station_id":"A","phase":"P","pick_time":1}}
`
	src := NewTextStreamSource(strings.NewReader(data), 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := src.RunCombined(ctx, nil, nil)
	assert.Error(t, err)
}
