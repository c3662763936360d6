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

import (
	"bytes"
	"fmt"
)

// String formats the memo for debugging: one line per class, one indented
// line per subset listing its requirement and members. Obsolete classes and
// re-homed subsets print their forwarding target instead of stale contents.
func (m *Memo) String() string {
	var buf bytes.Buffer
	for gid := GroupID(1); int(gid) < len(m.groups); gid++ {
		g := &m.groups[gid]
		if g.forwardTo != 0 {
			fmt.Fprintf(&buf, "G%d: merged into G%d\n", gid, m.ResolveGroup(gid))
			continue
		}
		fmt.Fprintf(&buf, "G%d:\n", gid)
		for _, sid := range g.subsets {
			s := &m.subsets[sid]
			if s.forwardTo != 0 {
				fmt.Fprintf(&buf, "  s%d: re-homed to s%d\n", sid, m.ResolveSubset(sid))
				continue
			}
			fmt.Fprintf(&buf, "  s%d %s:", sid, m.props[s.required])
			for _, eid := range s.members {
				e := m.exprs[eid]
				fmt.Fprintf(&buf, " %s", m.formatExpr(e))
				if m.IsPruned(e) {
					buf.WriteString("!pruned")
				}
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

func (m *Memo) formatExpr(e *Expr) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "e%d:%s", e.id, e.op)
	if e.private != nil {
		fmt.Fprintf(&buf, "(%v)", e.private)
	}
	if len(e.inputs) > 0 {
		buf.WriteByte('[')
		for i, in := range e.inputs {
			if i > 0 {
				buf.WriteByte(',')
			}
			fmt.Fprintf(&buf, "s%d", m.ResolveSubset(in))
		}
		buf.WriteByte(']')
	}
	return buf.String()
}
