// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pickagg is the Pick Aggregator / Event Trigger module: it deduplicates
// incoming phase picks, runs the co-pick trigger predicate that promotes a cluster of
// nearby-in-time, nearby-in-space P picks to an active event, and drives that event's
// tick schedule (including its terminal tick) into a bounded handoff queue for the
// tensor assembler. The state-machine-over-a-cooperative-timer shape is grounded on the
// teacher's internal/taskManager, which drives its job-lifecycle services off a single
// gocron scheduler tick rather than one goroutine per job.
package pickagg

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"

	"github.com/ttsam-rt/ttsam-rt/internal/config"
	"github.com/ttsam-rt/ttsam-rt/internal/telemetry/metrics"
	"github.com/ttsam-rt/ttsam-rt/pkg/seis"
)

// pollInterval is how often Run re-evaluates the active event's tick schedule. A flat
// 100ms poll keeps the scheduling logic a single cooperative loop instead of a
// per-event timer goroutine, the same trade the teacher's taskManager makes.
const pollInterval = 100 * time.Millisecond

// Clock returns the current time as a Unix timestamp in seconds. Tests inject a fake
// clock to drive the event lifecycle deterministically.
type Clock func() float64

func systemClock() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// StationLocator resolves a station's static metadata, used only for the trigger
// predicate's spatial check.
type StationLocator interface {
	Lookup(stationID string) (seis.StationMeta, bool)
}

type pickRecord struct {
	pick     seis.Pick
	arrival  float64 // Clock() time the pick was processed, used for the trigger window
}

type activeEvent struct {
	id                   int64
	startedAt            float64
	firstPickTime        float64 // earliest Pick.PickTime in the triggering set; anchors InitialDelaySeconds
	lastPickAt           float64
	tickIndex            int
	nextTickAt           float64
	running              bool
	picks                []seis.Pick
	stationOrder         []string
	seenStations         map[string]bool
	stationFirstPickTime map[string]float64 // per-station earliest Pick.PickTime, for the tensor's seconds_since_first_pick column
}

// Aggregator implements pick dedup, the co-pick trigger, and the event tick schedule.
type Aggregator struct {
	cfg     config.Config
	clock   Clock
	stations StationLocator

	mu          sync.Mutex
	recent      []pickRecord // P picks seen while idle, pruned to TriggerWindowSeconds
	dedup       map[string]dedupEntry
	event       *activeEvent
	nextEventID int64

	queue *tickQueue
}

// dedupEntry remembers the pick_time/weight of the most recently kept pick for one
// station+phase(+event) key. A later pick for the same key within EpsilonPickSeconds is
// a near-duplicate, resolved by keeping whichever has the higher weight (spec.md
// §4.2/§8), rather than dropping every later pick outright.
type dedupEntry struct {
	pickTime float64
	weight   float64
}

// New constructs an Aggregator. stations may be nil, in which case the trigger's
// spatial check is skipped (any cluster of distinct stations qualifies).
func New(cfg config.Config, stations StationLocator) *Aggregator {
	return &Aggregator{
		cfg:         cfg,
		clock:       systemClock,
		stations:    stations,
		dedup:       make(map[string]dedupEntry),
		nextEventID: 1,
		queue:       newTickQueue(8),
	}
}

// Ticks returns the bounded queue consumers read TickRequests from.
func (a *Aggregator) Ticks() *tickQueue {
	return a.queue
}

func dedupKey(eventID int64, p seis.Pick) string {
	return p.StationID + "|" + string(p.Phase) + "|" + itoa(eventID)
}

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// AddPick submits one phase pick. It deduplicates against the current event (or, while
// idle, against the trigger-candidate window), rejects picks that arrive too late for
// an already-draining event, and otherwise either folds the pick into the active event
// or evaluates the co-pick trigger predicate.
func (a *Aggregator) AddPick(p seis.Pick) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock()
	eventID := int64(0)
	if a.event != nil {
		eventID = a.event.id
	}

	key := dedupKey(eventID, p)

	if prev, ok := a.dedup[key]; ok && math.Abs(p.PickTime-prev.pickTime) <= a.cfg.EpsilonPickSeconds {
		if p.Weight <= prev.weight {
			metrics.PicksDeduplicated.Inc()
			return
		}
		// Higher-weight revision of an already-kept pick: replace its stored record
		// rather than admitting a second one for the same arrival.
		if a.event != nil {
			if now-a.event.lastPickAt > a.cfg.EventLingerSeconds {
				metrics.PicksRejectedLate.Inc()
				return
			}
			a.dedup[key] = dedupEntry{pickTime: p.PickTime, weight: p.Weight}
			for i := range a.event.picks {
				if a.event.picks[i].StationID == p.StationID && a.event.picks[i].Phase == p.Phase {
					a.event.picks[i] = p
					break
				}
			}
			if p.Phase == seis.PhaseP {
				a.event.stationFirstPickTime[p.StationID] = p.PickTime
			}
			a.event.lastPickAt = now
			metrics.PicksAccepted.Inc()
			return
		}
		a.dedup[key] = dedupEntry{pickTime: p.PickTime, weight: p.Weight}
		for i := range a.recent {
			if a.recent[i].pick.StationID == p.StationID && a.recent[i].pick.Phase == p.Phase {
				a.recent[i].pick = p
				a.recent[i].arrival = now
				break
			}
		}
		metrics.PicksAccepted.Inc()
		return
	}

	a.dedup[key] = dedupEntry{pickTime: p.PickTime, weight: p.Weight}

	if a.event != nil {
		if now-a.event.lastPickAt > a.cfg.EventLingerSeconds {
			metrics.PicksRejectedLate.Inc()
			return
		}
		a.event.picks = append(a.event.picks, p)
		a.event.lastPickAt = now
		if p.Phase == seis.PhaseP && !a.event.seenStations[p.StationID] {
			a.event.seenStations[p.StationID] = true
			a.event.stationOrder = append(a.event.stationOrder, p.StationID)
			a.event.stationFirstPickTime[p.StationID] = p.PickTime
		}
		metrics.PicksAccepted.Inc()
		return
	}

	metrics.PicksAccepted.Inc()

	if p.Phase != seis.PhaseP {
		return
	}

	a.recent = append(a.recent, pickRecord{pick: p, arrival: now})
	a.pruneRecentLocked(now)

	if cluster, ok := a.evaluateTriggerLocked(); ok {
		a.startEventLocked(now, cluster)
	}
}

func (a *Aggregator) pruneRecentLocked(now float64) {
	cutoff := now - a.cfg.TriggerWindowSeconds
	kept := a.recent[:0]
	for _, r := range a.recent {
		if r.arrival >= cutoff {
			kept = append(kept, r)
		}
	}
	a.recent = kept
}

// evaluateTriggerLocked checks whether the current recent-picks window satisfies the
// co-pick trigger predicate: at least TriggerMinStations distinct stations, all mutually
// within TriggerSpatialKm of one another (skipped if no StationLocator is configured).
func (a *Aggregator) evaluateTriggerLocked() ([]seis.Pick, bool) {
	byStation := make(map[string]seis.Pick)
	for _, r := range a.recent {
		if _, ok := byStation[r.pick.StationID]; !ok {
			byStation[r.pick.StationID] = r.pick
		}
	}
	if len(byStation) < a.cfg.TriggerMinStations {
		return nil, false
	}

	if a.stations != nil {
		metas := make([]seis.StationMeta, 0, len(byStation))
		for id := range byStation {
			if m, ok := a.stations.Lookup(id); ok {
				metas = append(metas, m)
			}
		}
		if len(metas) >= 2 {
			for i := 0; i < len(metas); i++ {
				for j := i + 1; j < len(metas); j++ {
					d := haversineKm(metas[i].Latitude, metas[i].Longitude, metas[j].Latitude, metas[j].Longitude)
					if d > a.cfg.TriggerSpatialKm {
						return nil, false
					}
				}
			}
		}
	}

	cluster := make([]seis.Pick, 0, len(byStation))
	for _, p := range byStation {
		cluster = append(cluster, p)
	}
	return cluster, true
}

func (a *Aggregator) startEventLocked(now float64, cluster []seis.Pick) {
	ev := &activeEvent{
		id:                   a.nextEventID,
		startedAt:            now,
		lastPickAt:           now,
		seenStations:         make(map[string]bool),
		stationFirstPickTime: make(map[string]float64),
	}
	a.nextEventID++

	for i, p := range cluster {
		if i == 0 || p.PickTime < ev.firstPickTime {
			ev.firstPickTime = p.PickTime
		}
		ev.picks = append(ev.picks, p)
		if !ev.seenStations[p.StationID] {
			ev.seenStations[p.StationID] = true
			ev.stationOrder = append(ev.stationOrder, p.StationID)
			ev.stationFirstPickTime[p.StationID] = p.PickTime
		}
	}

	a.event = ev
	a.recent = nil
	a.dedup = make(map[string]dedupEntry)
	metrics.EventsStarted.Inc()
	cclog.Infof("pickagg: event %d started with %d stations, first_pick_time=%.3f", ev.id, len(ev.stationOrder), ev.firstPickTime)
}

// Run drives the active event's tick schedule until ctx is canceled.
func (a *Aggregator) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.pump()
		}
	}
}

func (a *Aggregator) pump() {
	a.mu.Lock()
	defer a.mu.Unlock()

	ev := a.event
	if ev == nil {
		return
	}
	now := a.clock()

	if !ev.running {
		if now < ev.firstPickTime+a.cfg.InitialDelaySeconds {
			return
		}
		ev.running = true
		ev.nextTickAt = now
	}

	if now < ev.nextTickAt {
		return
	}

	terminal := now-ev.lastPickAt >= a.cfg.EventDrainSeconds

	order := append([]string(nil), ev.stationOrder...)
	firstPick := make(map[string]float64, len(ev.stationFirstPickTime))
	for k, v := range ev.stationFirstPickTime {
		firstPick[k] = v
	}
	sort.Slice(order, func(i, j int) bool {
		ti, tj := firstPick[order[i]], firstPick[order[j]]
		if ti != tj {
			return ti < tj
		}
		return order[i] < order[j]
	})
	tr := seis.TickRequest{
		EventID:              ev.id,
		TickIndex:            ev.tickIndex,
		WaveEndTime:          now,
		StationPickOrder:     order,
		StationFirstPickTime: firstPick,
		PicksCount:           len(ev.picks),
		Terminal:             terminal,
	}

	label := "false"
	if terminal {
		label = "true"
	}
	if a.queue.push(tr) {
		metrics.TicksEmitted.WithLabelValues(label).Inc()
	}

	ev.tickIndex++
	if terminal {
		cclog.Infof("pickagg: event %d drained after %d ticks", ev.id, ev.tickIndex)
		a.event = nil
		return
	}
	ev.nextTickAt = now + a.cfg.TickIntervalSeconds
}
