// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package reportlog appends Reports and Picks to line-delimited JSON files on disk: one
// file per event under the configured report directory, one file per UTC day under the
// configured pick directory. No library in the example pack offers an append-only
// line-delimited JSON log, so this is built directly on os.OpenFile/encoding/json; the
// mutex-guarded *os.File-per-key shape mirrors how the teacher's pkg/log package keeps
// a single process-wide writer instead of reopening files per call.
package reportlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ttsam-rt/ttsam-rt/internal/telemetry/metrics"
	"github.com/ttsam-rt/ttsam-rt/pkg/seis"
)

// Writer appends Reports and Picks as line-delimited JSON under reportDir/pickDir.
type Writer struct {
	reportDir string
	pickDir   string

	mu      sync.Mutex
	reports map[int64]*os.File
	picks   map[string]*os.File
}

func New(reportDir, pickDir string) *Writer {
	return &Writer{
		reportDir: reportDir,
		pickDir:   pickDir,
		reports:   make(map[int64]*os.File),
		picks:     make(map[string]*os.File),
	}
}

// WriteReport appends r to <reportDir>/<timestamp>_<event_id>.log (see reportFilename),
// creating the file and directory on first use. A write failure is returned to the caller and also counted, so a full
// disk degrades observably instead of the process exiting.
func (w *Writer) WriteReport(r seis.Report) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.reportFileLocked(r.EventID)
	if err != nil {
		metrics.ReportWriteErrors.Inc()
		return err
	}
	if err := appendJSONLine(f, r); err != nil {
		metrics.ReportWriteErrors.Inc()
		return err
	}
	metrics.ReportsWritten.Inc()
	return nil
}

// WritePick appends p to logs/pick/<YYYY-MM-DD>.log, bucketed by the UTC date of
// p.PickTime interpreted as a Unix timestamp.
func (w *Writer) WritePick(p seis.Pick) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	day := time.Unix(int64(p.PickTime), 0).UTC().Format("2006-01-02")
	f, err := w.pickFileLocked(day)
	if err != nil {
		return err
	}
	return appendJSONLine(f, p)
}

// reportFilename formats spec.md §6's file naming: the UTC timestamp of the event's
// first report, then the event id, so readers can list and order events from the
// directory listing alone.
func reportFilename(eventID int64, firstReportTime time.Time) string {
	return fmt.Sprintf("%s_%d.log", firstReportTime.UTC().Format("2006-01-02T15:04:05"), eventID)
}

func (w *Writer) reportFileLocked(eventID int64) (*os.File, error) {
	if f, ok := w.reports[eventID]; ok {
		return f, nil
	}
	if err := os.MkdirAll(w.reportDir, 0o755); err != nil {
		return nil, fmt.Errorf("reportlog: mkdir %s: %w", w.reportDir, err)
	}
	path := filepath.Join(w.reportDir, reportFilename(eventID, time.Now()))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("reportlog: open %s: %w", path, err)
	}
	w.reports[eventID] = f
	return f, nil
}

func (w *Writer) pickFileLocked(day string) (*os.File, error) {
	if f, ok := w.picks[day]; ok {
		return f, nil
	}
	if err := os.MkdirAll(w.pickDir, 0o755); err != nil {
		return nil, fmt.Errorf("reportlog: mkdir %s: %w", w.pickDir, err)
	}
	path := filepath.Join(w.pickDir, day+".log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("reportlog: open %s: %w", path, err)
	}
	w.picks[day] = f
	return f, nil
}

func appendJSONLine(f *os.File, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = f.Write(b)
	return err
}

// Close closes every file handle the writer opened; lines are written unbuffered, so
// there is nothing to flush.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var firstErr error
	for _, f := range w.reports {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, f := range w.picks {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ListEvents returns the event IDs with a report log under reportDir, newest first,
// for any tool that needs to enumerate past events without a database.
func ListEvents(reportDir string) ([]int64, error) {
	entries, err := os.ReadDir(reportDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var ids []int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if ext != ".log" {
			continue
		}
		base := name[:len(name)-len(ext)]
		underscore := strings.LastIndex(base, "_")
		if underscore < 0 {
			continue
		}
		var id int64
		if _, err := fmt.Sscanf(base[underscore+1:], "%d", &id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if ids[j] > ids[i] {
				ids[i], ids[j] = ids[j], ids[i]
			}
		}
	}
	return ids, nil
}

// findReportFile locates the file logs/report/<timestamp>_<eventID>.log under
// reportDir, since the timestamp prefix is fixed at file-creation time and is not
// otherwise derivable from eventID alone.
func findReportFile(reportDir string, eventID int64) (string, error) {
	entries, err := os.ReadDir(reportDir)
	if err != nil {
		return "", err
	}
	suffix := fmt.Sprintf("_%d.log", eventID)
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			return filepath.Join(reportDir, e.Name()), nil
		}
	}
	return "", os.ErrNotExist
}

// ReadReports reads every report line for eventID from reportDir, in append order.
func ReadReports(reportDir string, eventID int64) ([]seis.Report, error) {
	path, err := findReportFile(reportDir, eventID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reports []seis.Report
	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		var r seis.Report
		if err := dec.Decode(&r); err != nil {
			break
		}
		reports = append(reports, r)
	}
	return reports, nil
}
