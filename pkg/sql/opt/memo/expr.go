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

	"github.com/riftdb/rift/pkg/sql/opt"
)

// ExprID identifies an expression within the memo. IDs are stable for the
// lifetime of the memo and are never reused, even for expressions that
// become unreachable.
type ExprID uint32

// GroupID identifies an equivalence class within the memo. The zero value is
// reserved as invalid.
type GroupID uint32

// SubsetID identifies an equivalence subset within the memo. The zero value
// is reserved as invalid.
type SubsetID uint32

// PropsID identifies an interned set of required physical properties. The
// zero value is reserved as invalid; MinPropsID identifies the empty
// property set.
type PropsID uint32

// MinPropsID is the PropsID of the empty (require-nothing) property set. It
// is always the first set interned into a memo.
const MinPropsID PropsID = 1

// Expr is one concrete expression node: one way to compute part of the
// query. Each input references an equivalence subset rather than a concrete
// child, which is what lets a single node stand for every combination of
// interchangeable alternatives below it.
//
// An Expr is immutable once constructed. It may become unreachable when no
// live subset references it anymore, but it is never physically deleted.
type Expr struct {
	id       ExprID
	op       opt.Operator
	inputs   []SubsetID
	provided PropsID

	// hints carries planner hints attached by the query or propagated from a
	// matched expression during rule firing.
	hints []string

	// private is operator-specific payload (e.g. the table for a scan). It
	// participates in the expression fingerprint.
	private interface{}
}

// ID returns the expression's stable identity.
func (e *Expr) ID() ExprID { return e.id }

// Op returns the node-kind tag used for pattern matching.
func (e *Expr) Op() opt.Operator { return e.op }

// InputCount returns the number of input subsets.
func (e *Expr) InputCount() int { return len(e.inputs) }

// Input returns the i-th input subset reference. The returned SubsetID may
// designate a forwarded subset; resolve it through the memo before use.
func (e *Expr) Input(i int) SubsetID { return e.inputs[i] }

// Provided returns the interned physical properties this node provides.
func (e *Expr) Provided() PropsID { return e.provided }

// Hints returns the planner hints attached to this node.
func (e *Expr) Hints() []string { return e.hints }

// Private returns the operator-specific payload.
func (e *Expr) Private() interface{} { return e.private }

// IsSubset implements the RelView interface.
func (e *Expr) IsSubset() bool { return false }

func (e *Expr) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "e%d:%s", e.id, e.op)
	if e.private != nil {
		fmt.Fprintf(&buf, "(%v)", e.private)
	}
	return buf.String()
}

// fingerprint uniquely identifies the expression's structure: operator,
// resolved input subsets, provided properties and private payload. Two
// expressions with equal fingerprints are interned to a single ExprID.
func (m *Memo) fingerprint(op opt.Operator, inputs []SubsetID, provided PropsID, private interface{}) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d [", uint8(op))
	for i, in := range inputs {
		if i > 0 {
			buf.WriteByte(' ')
		}
		fmt.Fprintf(&buf, "s%d", m.ResolveSubset(in))
	}
	fmt.Fprintf(&buf, "] p%d", provided)
	if private != nil {
		fmt.Fprintf(&buf, " %v", private)
	}
	return buf.String()
}

// SubsetRef is a RelView over a whole equivalence subset. A pattern operand
// can declare that it matches the subset itself rather than any one concrete
// member; the binding slot then holds a SubsetRef. All accessors resolve
// forwarding through the memo, so a SubsetRef stays usable across class
// merges.
type SubsetRef struct {
	memo *Memo
	id   SubsetID
}

// Subset returns the referenced subset, resolved through any forwarding.
func (s SubsetRef) Subset() SubsetID { return s.memo.ResolveSubset(s.id) }

// Stale returns true if the referenced subset or its class has been merged
// away since the reference was taken.
func (s SubsetRef) Stale() bool { return s.memo.IsStale(s.id) }

// Op implements the RelView interface. A subset reference has no node kind.
func (s SubsetRef) Op() opt.Operator { return opt.UnknownOp }

// InputCount implements the RelView interface. A subset reference exposes no
// inputs; descending through it requires picking a concrete member first.
func (s SubsetRef) InputCount() int { return 0 }

// Input implements the RelView interface.
func (s SubsetRef) Input(i int) SubsetID {
	panic(fmt.Sprintf("subset reference has no input %d", i))
}

// IsSubset implements the RelView interface.
func (s SubsetRef) IsSubset() bool { return true }

func (s SubsetRef) String() string {
	return fmt.Sprintf("s%d", s.memo.ResolveSubset(s.id))
}

// RelView is one position reachable by the pattern matcher: either a
// concrete expression node (*Expr) or an equivalence subset (SubsetRef).
// This mirrors the way the matcher treats "a node" and "any member of a
// subset" uniformly in binding slots.
type RelView interface {
	Op() opt.Operator
	InputCount() int
	Input(i int) SubsetID
	IsSubset() bool
	String() string
}

var _ RelView = (*Expr)(nil)
var _ RelView = SubsetRef{}
