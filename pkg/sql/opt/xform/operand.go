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
	"github.com/cockroachdb/errors"
	"github.com/riftdb/rift/pkg/sql/opt"
	"github.com/riftdb/rift/pkg/sql/opt/memo"
)

// ChildPolicy determines how a pattern operand's child operands are matched
// against the inputs of a candidate parent.
type ChildPolicy uint8

const (
	// PolicyAny places no constraint on the candidate's inputs. Operands with
	// no child operands use this policy.
	PolicyAny ChildPolicy = iota

	// PolicyOrdered matches each child operand against the parent input at
	// the child's ordinal position.
	PolicyOrdered

	// PolicyUnordered matches each child operand against any input position
	// of the parent. The concrete children seen by the rule body are then
	// reported through the call's reconstructed-children table, since the
	// true input subsets cannot disambiguate among same-shaped children.
	PolicyUnordered
)

// operandKind determines what a pattern operand accepts.
type operandKind uint8

const (
	// matchOp accepts a concrete expression with a specific operator.
	matchOp operandKind = iota

	// matchAnyExpr accepts any concrete expression.
	matchAnyExpr

	// matchSubset accepts an equivalence subset reference rather than any one
	// concrete member.
	matchSubset
)

// Operand describes one matchable position in a rule's pattern tree.
// Operands are immutable once the owning rule is installed into an Explorer;
// an Operand value must not be shared between rules.
type Operand struct {
	kind   operandKind
	op     opt.Operator
	policy ChildPolicy

	children        []*Operand
	parent          *Operand
	ordinalInParent int

	// ordinalInRule is the operand's index in the pattern's pre-order
	// flattening; the binding array is indexed by it.
	ordinalInRule int

	// solveOrder arranges all operand ordinals such that each operand, once
	// visited, is reachable from an already-bound parent (descending) or an
	// already-bound child (ascending). Computed at install time.
	solveOrder []int

	installed bool
}

// Op returns an operand matching expressions with the given operator, with
// child operands matched in order against the expression's inputs.
func Op(op opt.Operator, children ...*Operand) *Operand {
	policy := PolicyAny
	if len(children) > 0 {
		policy = PolicyOrdered
	}
	return &Operand{kind: matchOp, op: op, policy: policy, children: children}
}

// OpUnordered is like Op, but each child operand may match any input
// position of the candidate.
func OpUnordered(op opt.Operator, children ...*Operand) *Operand {
	return &Operand{kind: matchOp, op: op, policy: PolicyUnordered, children: children}
}

// Any returns an operand matching any single concrete expression without
// constraining its kind or its children.
func Any() *Operand {
	return &Operand{kind: matchAnyExpr, policy: PolicyAny}
}

// Subset returns an operand matching an equivalence subset reference. Subset
// operands are leaves: descending through a subset requires picking a
// concrete member, which is what a non-subset operand does.
func Subset() *Operand {
	return &Operand{kind: matchSubset, policy: PolicyAny}
}

// Matches returns true if the candidate passes the operand's kind test. The
// test is resolved with a single tag comparison.
func (o *Operand) Matches(rel memo.RelView) bool {
	switch o.kind {
	case matchSubset:
		return rel.IsSubset()
	case matchAnyExpr:
		return !rel.IsSubset()
	default:
		return !rel.IsSubset() && rel.Op() == o.op
	}
}

// Policy returns the operand's child-matching policy.
func (o *Operand) Policy() ChildPolicy { return o.policy }

// flattenPattern assigns ordinals and parent links across the pattern tree
// and returns the operands in pre-order. It fails if any operand is already
// part of an installed rule.
func flattenPattern(root *Operand) ([]*Operand, error) {
	var operands []*Operand
	var walk func(o *Operand, parent *Operand, ordinalInParent int) error
	walk = func(o *Operand, parent *Operand, ordinalInParent int) error {
		if o.installed {
			return errors.AssertionFailedf("pattern operand reused across rules")
		}
		o.installed = true
		o.parent = parent
		o.ordinalInParent = ordinalInParent
		o.ordinalInRule = len(operands)
		operands = append(operands, o)
		for i, child := range o.children {
			if err := walk(child, o, i); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root, nil, 0); err != nil {
		return nil, err
	}
	for _, o := range operands {
		o.solveOrder = computeSolveOrder(o, len(operands))
	}
	return operands, nil
}

// computeSolveOrder builds the solve order for a search starting at the
// given operand: the operand itself, then its ancestor chain up to the
// pattern root, then the remaining operands in pattern order. Starting from
// an inner operand, the search first ascends to the root through parent
// indexes, then descends into the remaining positions; this minimizes the
// branching factor compared to always re-descending from the root.
func computeSolveOrder(start *Operand, count int) []int {
	order := make([]int, 0, count)
	seen := make([]bool, count)
	for o := start; o != nil; o = o.parent {
		order = append(order, o.ordinalInRule)
		seen[o.ordinalInRule] = true
	}
	for i := 0; i < count; i++ {
		if !seen[i] {
			order = append(order, i)
		}
	}
	return order
}
