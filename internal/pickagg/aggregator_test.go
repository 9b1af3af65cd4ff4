// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package pickagg

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttsam-rt/ttsam-rt/internal/config"
	"github.com/ttsam-rt/ttsam-rt/pkg/seis"
)

type fakeClock struct{ t float64 }

func (c *fakeClock) now() float64   { return c.t }
func (c *fakeClock) advance(d float64) { c.t += d }

func newTestAggregator(cfg config.Config) (*Aggregator, *fakeClock) {
	a := New(cfg, nil)
	fc := &fakeClock{t: 1000}
	a.clock = fc.now
	return a, fc
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.TriggerMinStations = 2
	cfg.TriggerWindowSeconds = 5
	cfg.EventLingerSeconds = 2
	cfg.EventDrainSeconds = 2
	cfg.InitialDelaySeconds = 0
	cfg.TickIntervalSeconds = 1
	return cfg
}

func TestTriggerPromotesEventOnceThresholdMet(t *testing.T) {
	a, fc := newTestAggregator(testConfig())

	a.AddPick(seis.Pick{StationID: "A", Phase: seis.PhaseP, PickTime: fc.now()})
	assert.Nil(t, a.event)

	a.AddPick(seis.Pick{StationID: "B", Phase: seis.PhaseP, PickTime: fc.now()})
	require.NotNil(t, a.event)
	assert.ElementsMatch(t, []string{"A", "B"}, a.event.stationOrder)
}

func TestDuplicatePickIsDeduplicated(t *testing.T) {
	a, fc := newTestAggregator(testConfig())
	a.AddPick(seis.Pick{StationID: "A", Phase: seis.PhaseP, PickTime: fc.now()})
	a.AddPick(seis.Pick{StationID: "A", Phase: seis.PhaseP, PickTime: fc.now()})
	assert.Len(t, a.recent, 1)
}

func TestNearDuplicatePickKeepsHigherWeight(t *testing.T) {
	a, fc := newTestAggregator(testConfig())
	a.AddPick(seis.Pick{StationID: "A", Phase: seis.PhaseP, PickTime: fc.now(), Weight: 0.3})
	a.AddPick(seis.Pick{StationID: "A", Phase: seis.PhaseP, PickTime: fc.now() + 0.2, Weight: 0.9})
	require.Len(t, a.recent, 1)
	assert.Equal(t, 0.9, a.recent[0].pick.Weight)

	// A later, lower-weight near-duplicate (still within EpsilonPickSeconds) must not
	// displace the higher-weight record already kept.
	a.AddPick(seis.Pick{StationID: "A", Phase: seis.PhaseP, PickTime: fc.now() + 0.3, Weight: 0.1})
	require.Len(t, a.recent, 1)
	assert.Equal(t, 0.9, a.recent[0].pick.Weight)
}

func TestInitialDelayAnchoredToEarliestPickTimeNotArrival(t *testing.T) {
	cfg := testConfig()
	cfg.InitialDelaySeconds = 3
	a, fc := newTestAggregator(cfg)
	fc.t = 101 // all three picks are processed at the same wall-clock instant, well after their sensor timestamps

	a.AddPick(seis.Pick{StationID: "S1", Phase: seis.PhaseP, PickTime: 100.00, Weight: 1})
	a.AddPick(seis.Pick{StationID: "S2", Phase: seis.PhaseP, PickTime: 100.50, Weight: 1})
	a.AddPick(seis.Pick{StationID: "S3", Phase: seis.PhaseP, PickTime: 101.00, Weight: 1})
	require.NotNil(t, a.event)
	assert.Equal(t, 100.00, a.event.firstPickTime)

	a.pump()
	_, ok := a.Ticks().tryPop()
	assert.False(t, ok, "first tick must wait until first_pick_time + InitialDelaySeconds, not arrival time + InitialDelaySeconds")

	fc.t = 103
	a.pump()
	tr, ok := a.Ticks().tryPop()
	require.True(t, ok)
	assert.Equal(t, 0, tr.TickIndex)
}

func TestTriggerWindowPrunesStalePicks(t *testing.T) {
	a, fc := newTestAggregator(testConfig())
	a.AddPick(seis.Pick{StationID: "A", Phase: seis.PhaseP, PickTime: fc.now()})
	fc.advance(10) // past TriggerWindowSeconds=5
	a.AddPick(seis.Pick{StationID: "B", Phase: seis.PhaseP, PickTime: fc.now()})
	assert.Nil(t, a.event, "A's pick should have been pruned before B arrived")
}

func TestEventTicksThenDrainsToTerminal(t *testing.T) {
	cfg := testConfig()
	a, fc := newTestAggregator(cfg)

	a.AddPick(seis.Pick{StationID: "A", Phase: seis.PhaseP, PickTime: fc.now()})
	a.AddPick(seis.Pick{StationID: "B", Phase: seis.PhaseP, PickTime: fc.now()})
	require.NotNil(t, a.event)

	a.pump() // InitialDelaySeconds=0, immediate first tick
	tr, ok := a.Ticks().tryPop()
	require.True(t, ok)
	assert.False(t, tr.Terminal)
	assert.Equal(t, 0, tr.TickIndex)

	fc.advance(1)
	a.pump()
	tr2, ok := a.Ticks().tryPop()
	require.True(t, ok)
	assert.False(t, tr2.Terminal)
	assert.Equal(t, 1, tr2.TickIndex)

	// advance past EventLingerSeconds+EventDrainSeconds with no new picks
	fc.advance(cfg.EventLingerSeconds + cfg.EventDrainSeconds + 1)
	a.pump()
	tr3, ok := a.Ticks().tryPop()
	require.True(t, ok)
	assert.True(t, tr3.Terminal)
	assert.Nil(t, a.event)
}

func TestLatePickRejectedAfterDrainWindow(t *testing.T) {
	cfg := testConfig()
	a, fc := newTestAggregator(cfg)
	a.AddPick(seis.Pick{StationID: "A", Phase: seis.PhaseP, PickTime: fc.now()})
	a.AddPick(seis.Pick{StationID: "B", Phase: seis.PhaseP, PickTime: fc.now()})
	require.NotNil(t, a.event)

	fc.advance(cfg.EventLingerSeconds + cfg.EventDrainSeconds + 1)
	before := len(a.event.picks)
	a.AddPick(seis.Pick{StationID: "C", Phase: seis.PhaseP, PickTime: fc.now()})
	assert.Len(t, a.event.picks, before, "late pick should not be folded into the event")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	a, _ := newTestAggregator(testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
