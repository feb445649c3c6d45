// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/cgraph/pkg/bridge"
)

type fakeEventBridge struct {
	summaries map[string]bridge.EventSummary
}

func (f *fakeEventBridge) QueryEvents(ctx context.Context, template bridge.EventQueryTemplate) ([]bridge.EventSummary, error) {
	out := make([]bridge.EventSummary, 0, len(template.FunctionKeys))
	for _, k := range template.FunctionKeys {
		if s, ok := f.summaries[k]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func correlateDataset() Dataset {
	records := []Record{
		{"module_name": "m1", "name": "a", "arity": 1},
		{"module_name": "m1", "name": "b", "arity": 0},
	}
	return Dataset{Records: records}
}

func TestExecuteCorrelated_JoinsEventSummaryByFunctionKey(t *testing.T) {
	bridgeImpl := &fakeEventBridge{summaries: map[string]bridge.EventSummary{
		"m1:a/1": {FunctionKey: "m1:a/1", Count: 42},
	}}
	spec := CorrelatedSpec{Static: FindFunctions().Build()}

	out, err := ExecuteCorrelated(context.Background(), spec, correlateDataset(), bridgeImpl)
	require.NoError(t, err)
	require.Len(t, out, 2)

	var withEvents, withoutEvents Record
	for _, r := range out {
		if r["name"] == "a" {
			withEvents = r
		} else {
			withoutEvents = r
		}
	}
	summary, ok := withEvents["events"].(bridge.EventSummary)
	require.True(t, ok)
	assert.Equal(t, int64(42), summary.Count)
	assert.Nil(t, withoutEvents["events"])
}

func TestExecuteCorrelated_NilBridgeIsUnsupportedQuery(t *testing.T) {
	spec := CorrelatedSpec{Static: FindFunctions().Build()}
	_, err := ExecuteCorrelated(context.Background(), spec, correlateDataset(), nil)
	require.Error(t, err)
	var qerr *QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, "unsupported_query", qerr.Kind)
}
