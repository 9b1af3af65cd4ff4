// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package eventindex

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttsam-rt/ttsam-rt/pkg/seis"
)

func TestRecordAndGetEvent(t *testing.T) {
	idx, err := Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.RecordReport(seis.Report{
		EventID:    1,
		ReportTime: "2026-08-01T00:00:00Z",
		PerTarget:  map[string]string{"A": "3"},
	}, false))
	require.NoError(t, idx.RecordReport(seis.Report{
		EventID:    1,
		ReportTime: "2026-08-01T00:00:01Z",
		PerTarget:  map[string]string{"A": "5-"},
	}, true))

	row, err := idx.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 2, row.TickCount)
	assert.Equal(t, "5-", row.MaxIntensity)
	assert.True(t, row.Terminal)
}

func TestListEvents(t *testing.T) {
	idx, err := Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.RecordReport(seis.Report{EventID: 1, ReportTime: "2026-08-01T00:00:00Z"}, false))
	require.NoError(t, idx.RecordReport(seis.Report{EventID: 2, ReportTime: "2026-08-01T00:00:01Z"}, false))

	rows, err := idx.ListEvents(10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}
