// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package eventindex persists a lightweight per-event summary row to a sqlite database
// alongside the line-delimited report logs: first-tick time, last-tick time, tick
// count, and the highest intensity label ever reported. This is a feature the
// distilled spec never named but the original system's scale implies: one process
// running for months accumulates thousands of event report logs, and "which events hit
// intensity >= 5-" is a query the line-delimited logs alone cannot answer without a
// full scan. Grounded on the teacher's config.Init, which opens its SQL backing store
// with jmoiron/sqlx and mattn/go-sqlite3 at startup the same way.
package eventindex

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ttsam-rt/ttsam-rt/pkg/seis"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	event_id INTEGER PRIMARY KEY,
	first_tick_time TEXT NOT NULL,
	last_tick_time TEXT NOT NULL,
	tick_count INTEGER NOT NULL DEFAULT 0,
	max_intensity TEXT NOT NULL DEFAULT '0',
	terminal INTEGER NOT NULL DEFAULT 0
);
`

// Index wraps a sqlite-backed event summary table.
type Index struct {
	db *sqlx.DB
}

// Open opens (creating if necessary) the sqlite database at path and ensures the
// events table exists.
func Open(path string) (*Index, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("eventindex: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventindex: migrate: %w", err)
	}
	return &Index{db: db}, nil
}

// EventSummary is one row of the events table.
type EventSummary struct {
	EventID       int64  `db:"event_id"`
	FirstTickTime string `db:"first_tick_time"`
	LastTickTime  string `db:"last_tick_time"`
	TickCount     int    `db:"tick_count"`
	MaxIntensity  string `db:"max_intensity"`
	Terminal      bool   `db:"terminal"`
}

// RecordReport upserts the summary row for r.EventID, extending tick_count and
// max_intensity. terminal marks the tick that drained the event. It never errors the
// caller out of the report pipeline: an index write failure is logged by the caller,
// not propagated as a reason to skip the report log itself.
func (idx *Index) RecordReport(r seis.Report, terminalTick bool) error {
	maxIntensity := "0"
	for _, label := range r.PerTarget {
		if seis.IntensityRank(label) > seis.IntensityRank(maxIntensity) {
			maxIntensity = label
		}
	}

	terminal := 0
	if terminalTick {
		terminal = 1
	}

	_, err := idx.db.Exec(`
		INSERT INTO events (event_id, first_tick_time, last_tick_time, tick_count, max_intensity, terminal)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(event_id) DO UPDATE SET
			last_tick_time = excluded.last_tick_time,
			tick_count = tick_count + 1,
			max_intensity = CASE WHEN instr(',0,1,2,3,4,5-,5+,6-,6+,7,', ',' || excluded.max_intensity || ',')
				> instr(',0,1,2,3,4,5-,5+,6-,6+,7,', ',' || max_intensity || ',')
				THEN excluded.max_intensity ELSE max_intensity END,
			terminal = MAX(terminal, excluded.terminal)
	`, r.EventID, r.ReportTime, r.ReportTime, maxIntensity, terminal)
	if err != nil {
		return fmt.Errorf("eventindex: record event %d: %w", r.EventID, err)
	}
	return nil
}

// ListEvents returns up to limit event summaries, most recently updated first.
func (idx *Index) ListEvents(limit int) ([]EventSummary, error) {
	var rows []EventSummary
	err := idx.db.Select(&rows, `SELECT * FROM events ORDER BY last_tick_time DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("eventindex: list: %w", err)
	}
	return rows, nil
}

// Get returns one event's summary.
func (idx *Index) Get(eventID int64) (EventSummary, error) {
	var row EventSummary
	err := idx.db.Get(&row, `SELECT * FROM events WHERE event_id = ?`, eventID)
	if err != nil {
		if err == sql.ErrNoRows {
			return EventSummary{}, fmt.Errorf("eventindex: event %d not found", eventID)
		}
		return EventSummary{}, err
	}
	return row, nil
}

func (idx *Index) Close() error {
	return idx.db.Close()
}

// Vacuum reclaims space left by deleted/updated rows. Called periodically by
// housekeeping.Manager, not after every write.
func (idx *Index) Vacuum() error {
	_, err := idx.db.Exec(`VACUUM`)
	return err
}
