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

package memo

import "github.com/riftdb/rift/pkg/sql/opt"

// Stats is derived metadata for an equivalence class, shared by every member
// since all members compute the same result. It is computed lazily and
// cached on the class; the commit protocol invalidates it when the class
// gains a new member or is merged.
type Stats struct {
	// RowCount is the estimated number of rows produced by any member of the
	// class.
	RowCount float64
}

const unknownRowCount = 1000

// selectivity applied for any filtering operator when no better information
// is available.
const unknownSelectivity = 1.0 / 3.0

// GroupStats returns the cached statistics for the class, computing them
// from the class's first member if the cache is cold. The estimate is
// deliberately crude; the costing model that refines it lives outside this
// core.
func (m *Memo) GroupStats(gid GroupID) *Stats {
	gid = m.ResolveGroup(gid)
	g := &m.groups[gid]
	if g.stats != nil {
		return g.stats
	}
	// Install the default before descending into inputs: a self-referential
	// member (a node whose input subset is in its own class) must not recurse
	// forever.
	stats := &Stats{RowCount: unknownRowCount}
	g.stats = stats
	if len(g.members) > 0 {
		stats.RowCount = m.estimateRowCount(m.exprs[g.members[0]])
	}
	return stats
}

func (m *Memo) estimateRowCount(e *Expr) float64 {
	switch e.op {
	case opt.ScanOp, opt.IndexScanOp:
		return unknownRowCount

	case opt.SelectOp:
		return m.inputRowCount(e, 0) * unknownSelectivity

	case opt.InnerJoinOp, opt.MergeJoinOp, opt.HashJoinOp:
		return m.inputRowCount(e, 0) * m.inputRowCount(e, 1) * unknownSelectivity

	case opt.UnionOp:
		var total float64
		for i := 0; i < e.InputCount(); i++ {
			total += m.inputRowCount(e, i)
		}
		return total

	case opt.LimitOp:
		if n, ok := e.private.(int); ok {
			return float64(n)
		}
		return m.inputRowCount(e, 0)

	default:
		if e.InputCount() > 0 {
			return m.inputRowCount(e, 0)
		}
		return unknownRowCount
	}
}

func (m *Memo) inputRowCount(e *Expr, i int) float64 {
	if i >= e.InputCount() {
		return unknownRowCount
	}
	return m.GroupStats(m.GroupOf(e.Input(i))).RowCount
}
