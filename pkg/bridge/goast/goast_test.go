// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package goast

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/cgraph/pkg/synast"
)

const sampleSource = `package sample

func Add(a, b int) int {
	if a > b {
		return a
	}
	return b
}
`

func TestParse_ExtractsFunctionDeclaration(t *testing.T) {
	b := New(nil)
	funcs, err := b.Parse(context.Background(), "sample.go", sampleSource)
	require.NoError(t, err)
	require.Len(t, funcs, 1)

	fn := funcs[0]
	assert.Equal(t, "sample", fn.Module)
	assert.Equal(t, "Add", fn.Name)
	assert.Equal(t, 2, fn.Arity)
	assert.NotNil(t, fn.Body)
	assert.Equal(t, synast.TagBlock, fn.Body.Tag)
}

const methodSource = `package sample

type Counter struct{ n int }

func (c *Counter) Incr(delta int) {
	c.n = c.n + delta
}
`

func TestParse_ExtractsMethodWithReceiverArity(t *testing.T) {
	b := New(nil)
	funcs, err := b.Parse(context.Background(), "sample.go", methodSource)
	require.NoError(t, err)
	require.Len(t, funcs, 1)
	assert.Equal(t, "Counter.Incr", funcs[0].Name)
	assert.Equal(t, 2, funcs[0].Arity) // receiver + delta
}

func TestParse_EmptyFileYieldsNoFunctions(t *testing.T) {
	b := New(nil)
	funcs, err := b.Parse(context.Background(), "empty.go", "package sample\n")
	require.NoError(t, err)
	assert.Empty(t, funcs)
}
