// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package runtimeevent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/cgraph/pkg/bridge"
)

func TestQueryEvents_AggregatesCountAndErrors(t *testing.T) {
	s := NewStore(nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	s.Record(Observation{FunctionKey: "m:f/1", At: base, Duration: 10 * time.Millisecond})
	s.Record(Observation{FunctionKey: "m:f/1", At: base.Add(time.Second), Duration: 20 * time.Millisecond, Errored: true})

	out, err := s.QueryEvents(context.Background(), bridge.EventQueryTemplate{FunctionKeys: []string{"m:f/1"}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(2), out[0].Count)
	assert.Equal(t, int64(1), out[0].ErrorCount)
	assert.Equal(t, 15*time.Millisecond, out[0].AvgDuration)
}

func TestQueryEvents_OmitsKeysWithNoObservations(t *testing.T) {
	s := NewStore(nil)
	out, err := s.QueryEvents(context.Background(), bridge.EventQueryTemplate{FunctionKeys: []string{"m:unknown/0"}})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestQueryEvents_FiltersByTimeRange(t *testing.T) {
	s := NewStore(nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Record(Observation{FunctionKey: "m:f/0", At: base, Duration: time.Millisecond})
	s.Record(Observation{FunctionKey: "m:f/0", At: base.Add(time.Hour), Duration: time.Millisecond})

	out, err := s.QueryEvents(context.Background(), bridge.EventQueryTemplate{
		FunctionKeys: []string{"m:f/0"},
		Since:        base.Add(30 * time.Minute),
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].Count)
}
