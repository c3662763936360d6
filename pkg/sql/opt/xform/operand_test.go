// Copyright 2026 The Rift Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package xform

import (
	"testing"

	"github.com/riftdb/rift/pkg/sql/opt"
	"github.com/riftdb/rift/pkg/sql/opt/memo"
	"github.com/riftdb/rift/pkg/sql/opt/props/physical"
	"github.com/stretchr/testify/require"
)

func TestFlattenPatternOrdinals(t *testing.T) {
	// select(join(scan, scan'), any)
	left := Op(opt.ScanOp)
	right := Op(opt.ScanOp)
	join := Op(opt.InnerJoinOp, left, right)
	other := Any()
	root := Op(opt.SelectOp, join, other)

	operands, err := flattenPattern(root)
	require.NoError(t, err)
	require.Equal(t, []*Operand{root, join, left, right, other}, operands)

	require.Equal(t, 0, root.ordinalInRule)
	require.Equal(t, 1, join.ordinalInRule)
	require.Equal(t, 2, left.ordinalInRule)
	require.Equal(t, 3, right.ordinalInRule)
	require.Equal(t, 4, other.ordinalInRule)

	require.Nil(t, root.parent)
	require.Equal(t, root, join.parent)
	require.Equal(t, 0, join.ordinalInParent)
	require.Equal(t, 1, other.ordinalInParent)
	require.Equal(t, join, right.parent)
	require.Equal(t, 1, right.ordinalInParent)
}

func TestSolveOrder(t *testing.T) {
	// Starting from an inner operand, the solve order ascends through the
	// ancestor chain and then fills in the remaining operands in pattern
	// order.
	left := Op(opt.ScanOp)
	right := Op(opt.ScanOp)
	join := Op(opt.InnerJoinOp, left, right)
	other := Any()
	root := Op(opt.SelectOp, join, other)

	_, err := flattenPattern(root)
	require.NoError(t, err)

	require.Equal(t, []int{0, 1, 2, 3, 4}, root.solveOrder)
	require.Equal(t, []int{1, 0, 2, 3, 4}, join.solveOrder)
	require.Equal(t, []int{2, 1, 0, 3, 4}, left.solveOrder)
	require.Equal(t, []int{3, 1, 0, 2, 4}, right.solveOrder)
	require.Equal(t, []int{4, 0, 1, 2, 3}, other.solveOrder)
}

func TestFlattenPatternRejectsReuse(t *testing.T) {
	shared := Op(opt.ScanOp)
	_, err := flattenPattern(Op(opt.SelectOp, shared))
	require.NoError(t, err)
	_, err = flattenPattern(Op(opt.LimitOp, shared))
	require.Error(t, err)
}

func TestOperandMatches(t *testing.T) {
	m := memo.New()
	scan := m.NewExpr(opt.ScanOp, nil, physical.MinRequired, "a")
	sid := m.Register(scan)
	ref := m.SubsetRef(sid)

	require.True(t, Op(opt.ScanOp).Matches(scan))
	require.False(t, Op(opt.SelectOp).Matches(scan))
	require.True(t, Any().Matches(scan))
	require.False(t, Any().Matches(ref))
	require.True(t, Subset().Matches(ref))
	require.False(t, Subset().Matches(scan))
	require.False(t, Op(opt.ScanOp).Matches(ref))
}
