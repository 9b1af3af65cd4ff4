// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package reportlog

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttsam-rt/ttsam-rt/pkg/seis"
)

func TestWriteAndReadReports(t *testing.T) {
	dir := t.TempDir()
	w := New(filepath.Join(dir, "report"), filepath.Join(dir, "pick"))
	defer w.Close()

	require.NoError(t, w.WriteReport(seis.Report{EventID: 1, TickIndex: 0, PerTarget: map[string]string{"A": "3"}}))
	require.NoError(t, w.WriteReport(seis.Report{EventID: 1, TickIndex: 1, PerTarget: map[string]string{"A": "4"}}))

	reports, err := ReadReports(filepath.Join(dir, "report"), 1)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, 0, reports[0].TickIndex)
	assert.Equal(t, 1, reports[1].TickIndex)
	assert.Equal(t, "3", reports[0].PerTarget["A"])
	assert.Equal(t, "4", reports[1].PerTarget["A"])
}

func TestReportFileNameCarriesTimestampPrefix(t *testing.T) {
	dir := t.TempDir()
	w := New(filepath.Join(dir, "report"), filepath.Join(dir, "pick"))
	defer w.Close()

	require.NoError(t, w.WriteReport(seis.Report{EventID: 42}))

	entries, err := os.ReadDir(filepath.Join(dir, "report"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Regexp(t, regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}_42\.log$`), entries[0].Name())
}

func TestReportJSONFlattensPerTargetAndIncludesWaveTime(t *testing.T) {
	dir := t.TempDir()
	w := New(filepath.Join(dir, "report"), filepath.Join(dir, "pick"))
	defer w.Close()

	require.NoError(t, w.WriteReport(seis.Report{
		EventID:     7,
		WaveEndTime: 12.5,
		PerTarget:   map[string]string{"Taipei": "4"},
	}))

	entries, err := os.ReadDir(filepath.Join(dir, "report"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(filepath.Join(dir, "report", entries[0].Name()))
	require.NoError(t, err)

	assert.Contains(t, string(data), `"wave_time":12.5`)
	assert.Contains(t, string(data), `"wave_endt":12.5`)
	assert.Contains(t, string(data), `"Taipei":"4"`)
	assert.NotContains(t, string(data), "per_target")
}

func TestListEventsNewestFirst(t *testing.T) {
	dir := t.TempDir()
	w := New(filepath.Join(dir, "report"), filepath.Join(dir, "pick"))
	defer w.Close()

	require.NoError(t, w.WriteReport(seis.Report{EventID: 1}))
	require.NoError(t, w.WriteReport(seis.Report{EventID: 5}))
	require.NoError(t, w.WriteReport(seis.Report{EventID: 3}))

	ids, err := ListEvents(filepath.Join(dir, "report"))
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 3, 1}, ids)
}

func TestListEventsMissingDir(t *testing.T) {
	ids, err := ListEvents("/nonexistent/path/for/test")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestWritePick(t *testing.T) {
	dir := t.TempDir()
	w := New(filepath.Join(dir, "report"), filepath.Join(dir, "pick"))
	defer w.Close()
	require.NoError(t, w.WritePick(seis.Pick{StationID: "A", Phase: seis.PhaseP, PickTime: 1700000000}))
}
