// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package housekeeping runs the forecaster's periodic maintenance jobs on a
// go-co-op/gocron scheduler, the same library and Start/RegisterX/Shutdown shape as
// the teacher's internal/taskManager: one scheduler instance, one registration
// function per job, jobs added before Start is called. The job set itself is new
// (pick-log rotation, event-index vacuuming) since this process has no archive or LDAP
// sync to run.
package housekeeping

import (
	"os"
	"path/filepath"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/go-co-op/gocron/v2"
)

// EventIndex is the subset of eventindex.Index housekeeping needs.
type EventIndex interface {
	Vacuum() error
}

// Manager owns the gocron scheduler and the registered jobs.
type Manager struct {
	s gocron.Scheduler
}

// New creates the scheduler but does not start it.
func New() (*Manager, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Manager{s: s}, nil
}

// RegisterPickLogRetention prunes pick-log files older than maxAge from dir once a day
// at 03:00, mirroring the teacher's RegisterCompressionService's daily-at-fixed-hour
// cadence.
func (m *Manager) RegisterPickLogRetention(dir string, maxAge time.Duration) {
	cclog.Info("housekeeping: register pick log retention")
	m.s.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(3, 0, 0))),
		gocron.NewTask(func() {
			prunePickLogs(dir, maxAge)
		}),
	)
}

func prunePickLogs(dir string, maxAge time.Duration) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			cclog.Warnf("housekeeping: pick log retention: readdir %s: %v", dir, err)
		}
		return
	}
	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(dir, e.Name())
			if err := os.Remove(path); err != nil {
				cclog.Warnf("housekeeping: removing stale pick log %s: %v", path, err)
			}
		}
	}
}

// RegisterEventIndexVacuum vacuums the sqlite event index every interval, keeping the
// database file compact as old event rows accumulate.
func (m *Manager) RegisterEventIndexVacuum(idx EventIndex, interval time.Duration) {
	cclog.Info("housekeeping: register event index vacuum")
	m.s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if err := idx.Vacuum(); err != nil {
				cclog.Warnf("housekeeping: event index vacuum: %v", err)
			}
		}),
	)
}

// Start begins running registered jobs.
func (m *Manager) Start() {
	m.s.Start()
}

// Shutdown stops the scheduler and waits for any in-flight job to finish.
func (m *Manager) Shutdown() error {
	return m.s.Shutdown()
}
