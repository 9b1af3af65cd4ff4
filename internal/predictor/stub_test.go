// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package predictor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttsam-rt/ttsam-rt/pkg/seis"
)

func sampleInput() seis.InferenceInput {
	return seis.InferenceInput{
		Mask: []bool{true},
		Waveform: [][][]seis.Float{
			{{1, 2, 3}, {1, 2, 3}, {1, 2, 3}},
		},
		TargetRows: [][]seis.Float{{0, 0, 0}},
	}
}

func TestStubIsDeterministic(t *testing.T) {
	s := NewStub(42)
	out1, err := s.Predict(context.Background(), sampleInput())
	require.NoError(t, err)
	out2, err := s.Predict(context.Background(), sampleInput())
	require.NoError(t, err)
	assert.Equal(t, out1, out2)
}

func TestStubRespectsContextTimeout(t *testing.T) {
	s := &Stub{Latency: 50 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := s.Predict(ctx, sampleInput())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStubInjectedFailure(t *testing.T) {
	s := &Stub{FailEvery: 2}
	_, err := s.Predict(context.Background(), sampleInput())
	require.NoError(t, err)
	_, err = s.Predict(context.Background(), sampleInput())
	assert.ErrorIs(t, err, ErrInjectedFailure)
}
