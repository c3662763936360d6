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
	"context"

	"github.com/RoaringBitmap/roaring"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/riftdb/rift/pkg/sql/opt/memo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RuleCall is one in-flight matching attempt: one rule, one starting
// expression, one binding array. It is created per attempt and discarded
// when the attempt completes, whether it matched, fired or was rejected; no
// state is carried across attempts.
type RuleCall struct {
	e *Explorer

	rule     Rule
	operands []*Operand

	// operand0 is the operand the search starts from; its solve order drives
	// the recursion.
	operand0 *Operand

	// bindings holds the matched position for each operand, indexed by
	// ordinalInRule and populated in solve order. Slots are write-before-read
	// at each solve position, so backtracking needs no explicit unbind.
	bindings []memo.RelView

	// boundSubsets snapshots, per binding slot, the subset the binding was
	// found through. A firing between bind time and fire time can merge that
	// subset away; onMatch re-checks each snapshot for staleness rather than
	// the binding's current (possibly re-homed) subset, so a match the graph
	// moved under is skipped while the moved node itself stays matchable.
	boundSubsets []memo.SubsetID

	// childRels overrides the children visible to the rule body for parents
	// matched under PolicyUnordered, keyed by the parent expression. See
	// ChildExprs.
	childRels map[memo.ExprID][]memo.RelView

	// generated collects the expressions produced by this call, for debug
	// logging only.
	generated []*memo.Expr

	// id distinguishes this call in trace output.
	id uint64
}

// Rule returns the rule being applied.
func (rc *RuleCall) Rule() Rule { return rc.rule }

// ID returns the call's identity within the session, for tracing.
func (rc *RuleCall) ID() uint64 { return rc.id }

// Memo returns the memo being searched. Rule bodies use it to construct
// replacement expressions.
func (rc *RuleCall) Memo() *memo.Memo { return rc.e.mem }

// Explorer returns the owning search session. A rule body may use it to
// trigger nested matching on expressions it has just registered.
func (rc *RuleCall) Explorer() *Explorer { return rc.e }

// Binding returns the position bound to the operand with the given ordinal.
// The returned view must not be used to mutate the memo.
func (rc *RuleCall) Binding(i int) memo.RelView { return rc.bindings[i] }

// BoundExpr returns the concrete expression bound to the operand with the
// given ordinal, which must not be a subset operand.
func (rc *RuleCall) BoundExpr(i int) *memo.Expr {
	ex, ok := rc.bindings[i].(*memo.Expr)
	if !ok {
		panic(errors.AssertionFailedf(
			"operand %d of rule %s is bound to a subset, not an expression", i, rc.rule.Name()))
	}
	return ex
}

// Root returns the expression bound to the pattern's root operand.
func (rc *RuleCall) Root() *memo.Expr { return rc.BoundExpr(0) }

// ChildExprs returns the children of a bound parent expression as the rule
// body should see them. For parents matched under PolicyUnordered it returns
// the reconstructed list with each matched child substituted at its
// operand's declared ordinal; otherwise it returns the parent's input
// subsets.
//
// Known limitation: when an unordered parent has more than two children and
// more than one child slot is unresolved, which sibling occupies which
// remaining position is ambiguous. The unresolved slots hold the parent's
// input subsets in input order; no further disambiguation is defined.
func (rc *RuleCall) ChildExprs(parent *memo.Expr) []memo.RelView {
	if override, ok := rc.childRels[parent.ID()]; ok {
		return append([]memo.RelView(nil), override...)
	}
	return rc.defaultChildren(parent)
}

func (rc *RuleCall) defaultChildren(parent *memo.Expr) []memo.RelView {
	children := make([]memo.RelView, parent.InputCount())
	for i := range children {
		children[i] = rc.e.mem.SubsetRef(parent.Input(i))
	}
	return children
}

func (rc *RuleCall) setChildRels(parent *memo.Expr, children []memo.RelView) {
	if rc.childRels == nil {
		rc.childRels = make(map[memo.ExprID][]memo.RelView)
	}
	rc.childRels[parent.ID()] = children
}

// match starts the search with the starting operand's slot bound to start.
// The caller has verified that start satisfies the operand.
func (rc *RuleCall) match(start memo.RelView) {
	rc.bind(rc.operand0.solveOrder[0], start)
	rc.matchRecurse(1)
}

// bind records a binding along with the subset it is reached through.
func (rc *RuleCall) bind(ordinal int, rel memo.RelView) {
	rc.bindings[ordinal] = rel
	switch t := rel.(type) {
	case *memo.Expr:
		sid, _ := rc.e.mem.HomeSubset(t)
		rc.boundSubsets[ordinal] = sid
	case memo.SubsetRef:
		rc.boundSubsets[ordinal] = t.Subset()
	}
}

// matchRecurse extends the binding array at the given solve position,
// recursing once per candidate successor. On a complete binding it applies
// the rule's side condition and fires.
//
// The traversal direction at each step is fixed by solve-order adjacency:
// the step ascends when the operand at this position is the pattern parent
// of the operand at the previous position, and descends otherwise.
func (rc *RuleCall) matchRecurse(solve int) {
	if solve == len(rc.operands) {
		// All operands are bound. Ask the rule whether it matches; this gives
		// it the chance to apply side conditions. Rejection is silent.
		if rc.rule.Matches(rc) {
			rc.onMatch()
		}
		return
	}

	mem := rc.e.mem
	ordinal := rc.operand0.solveOrder[solve]
	prevOrdinal := rc.operand0.solveOrder[solve-1]
	ascending := ordinal < prevOrdinal
	operand := rc.operands[ordinal]
	prevOperand := rc.operands[prevOrdinal]
	previous := rc.bindings[prevOrdinal]

	var parentOperand *Operand
	var successors []memo.RelView
	if ascending {
		if prevOperand.parent != operand {
			panic(errors.AssertionFailedf(
				"rule %s: solve order ascends from operand %d to non-parent operand %d",
				rc.rule.Name(), prevOrdinal, ordinal))
		}
		if prevOperand.kind != matchSubset && previous.IsSubset() {
			// The engine bound a subset reference where the pattern declared a
			// concrete expression. The pattern and the engine disagree about
			// the graph's structure; this is a configuration error, not a
			// rejected match.
			panic(errors.AssertionFailedf(
				"rule %s: operand %d expects an expression but %s is bound to a subset",
				rc.rule.Name(), prevOrdinal, previous))
		}
		parentOperand = operand
		for _, parent := range mem.ParentExprs(rc.boundSubset(previous)) {
			successors = append(successors, parent)
		}
	} else {
		parentOperand = operand.parent
		parentRel := rc.bindings[parentOperand.ordinalInRule]
		switch {
		case parentOperand.policy == PolicyUnordered:
			// An unordered child can match at any input position.
			if operand.kind == matchSubset {
				for i := 0; i < parentRel.InputCount(); i++ {
					successors = append(successors, mem.SubsetRef(parentRel.Input(i)))
				}
			} else {
				// Deduplicate: a subset appearing twice among the inputs is
				// traversed once, and an expression appearing in several input
				// subsets is proposed once.
				seenSubsets := roaring.New()
				seenExprs := roaring.New()
				for i := 0; i < parentRel.InputCount(); i++ {
					sid := mem.ResolveSubset(parentRel.Input(i))
					if !seenSubsets.CheckedAdd(uint32(sid)) {
						continue
					}
					for _, member := range mem.Members(sid) {
						if !seenExprs.CheckedAdd(uint32(member.ID())) {
							continue
						}
						successors = append(successors, member)
					}
				}
			}

		case operand.ordinalInParent < parentRel.InputCount():
			sid := mem.ResolveSubset(parentRel.Input(operand.ordinalInParent))
			if operand.kind == matchSubset {
				// Any sibling subset whose properties satisfy this input's
				// properties can stand in for it.
				for _, sib := range mem.SiblingSubsets(sid) {
					successors = append(successors, mem.SubsetRef(sib))
				}
			} else {
				for _, member := range mem.Members(sid) {
					successors = append(successors, member)
				}
			}

		default:
			// The operand requires the parent to have an input at an ordinal
			// beyond the parent's arity. The pattern cannot match this parent;
			// not an error.
		}
	}

	for _, rel := range successors {
		if !operand.Matches(rel) {
			continue
		}
		if ascending && operand.policy != PolicyUnordered {
			// The parent index only proves that previous's subset is *some*
			// input of the candidate. Verify it is the input at the child
			// operand's declared ordinal.
			if prevOperand.ordinalInParent >= rel.InputCount() {
				continue
			}
			input := rel.Input(prevOperand.ordinalInParent)
			if prevExpr, ok := previous.(*memo.Expr); ok {
				if !mem.SubsetContains(input, prevExpr) {
					continue
				}
			}
		}

		if parentOperand.policy == PolicyUnordered {
			// Record the reconstructed children for whichever of {candidate,
			// previous} is the parent in this step, substituting the matched
			// child at its declared ordinal.
			if ascending {
				parent := rel.(*memo.Expr)
				children := rc.defaultChildren(parent)
				if ord := prevOperand.ordinalInParent; ord < len(children) {
					children[ord] = previous
				}
				rc.setChildRels(parent, children)
			} else {
				parent := rc.bindings[parentOperand.ordinalInRule].(*memo.Expr)
				children, ok := rc.childRels[parent.ID()]
				if !ok {
					children = rc.defaultChildren(parent)
				}
				if ord := operand.ordinalInParent; ord < len(children) {
					children[ord] = rel
				}
				rc.setChildRels(parent, children)
			}
		}

		rc.bind(ordinal, rel)
		rc.matchRecurse(solve + 1)
	}
}

// boundSubset returns the subset to ascend from: the reference itself for a
// subset binding, the home subset for an expression binding.
func (rc *RuleCall) boundSubset(rel memo.RelView) memo.SubsetID {
	if ref, ok := rel.(memo.SubsetRef); ok {
		return ref.Subset()
	}
	ex := rel.(*memo.Expr)
	sid, ok := rc.e.mem.SubsetFor(ex)
	if !ok {
		panic(errors.AssertionFailedf(
			"rule %s: cannot ascend from unregistered expression %s", rc.rule.Name(), ex))
	}
	return sid
}

// onMatch fires the rule over a complete, side-condition-satisfying binding.
// The graph may have mutated since parts of the binding were found, so every
// bound position is re-validated first; any staleness skips the firing
// silently. A failure inside the rule body is fatal to the whole search.
func (rc *RuleCall) onMatch() {
	e := rc.e
	e.checkCancel()

	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok || isCancellation(err) {
				panic(r)
			}
			panic(errors.Wrapf(err, "applying rule %s to %s", rc.rule.Name(), rc.formatBindings()))
		}
	}()

	if e.isRuleExcluded(rc.rule.Name()) {
		e.log.Debug("rule not fired due to exclusion filter",
			zap.Stringer("rule", rc.rule.Name()))
		return
	}
	if rc.isExcludedByHint() {
		e.log.Debug("rule not fired due to exclusion hint",
			zap.Stringer("rule", rc.rule.Name()))
		return
	}

	mem := e.mem
	for i, rel := range rc.bindings {
		switch t := rel.(type) {
		case *memo.Expr:
			sid := rc.boundSubsets[i]
			if sid == 0 {
				e.log.Debug("rule not fired: operand has no subset",
					zap.Stringer("rule", rc.rule.Name()), zap.Int("operand", i))
				return
			}
			if mem.IsStale(sid) {
				e.log.Debug("rule not fired: operand was bound through an obsolete subset",
					zap.Stringer("rule", rc.rule.Name()), zap.Int("operand", i))
				return
			}
			if mem.IsPruned(t) {
				e.log.Debug("rule not fired: operand is pruned",
					zap.Stringer("rule", rc.rule.Name()), zap.Int("operand", i))
				return
			}
		case memo.SubsetRef:
			if mem.IsStale(rc.boundSubsets[i]) {
				e.log.Debug("rule not fired: operand subset belongs to obsolete class",
					zap.Stringer("rule", rc.rule.Name()), zap.Int("operand", i))
				return
			}
		}
	}

	if e.cfg.TraceMatches {
		e.log.Info("apply rule",
			zap.Uint64("call", rc.id),
			zap.Stringer("rule", rc.rule.Name()),
			zap.String("bindings", string(rc.formatBindings())))
	}

	e.notifyAttempted(rc, true /* pre */)

	if e.log.Core().Enabled(zapcore.DebugLevel) {
		rc.generated = make([]*memo.Expr, 0, 1)
	}

	e.pushCall(rc)
	func() {
		defer e.popCall()
		if err := rc.rule.OnMatch(rc); err != nil {
			panic(err)
		}
	}()

	if rc.generated != nil {
		e.log.Debug("rule call finished",
			zap.Uint64("call", rc.id),
			zap.Int("generated", len(rc.generated)))
		rc.generated = nil
	}

	e.notifyAttempted(rc, false /* pre */)
}

// isExcludedByHint applies the per-node exclusion: a hint of the form
// "exclude:<rule name>" on the root binding suppresses that rule.
func (rc *RuleCall) isExcludedByHint() bool {
	root, ok := rc.bindings[0].(*memo.Expr)
	if !ok {
		return false
	}
	want := "exclude:" + string(rc.rule.Name())
	for _, h := range root.Hints() {
		if h == want {
			return true
		}
	}
	return false
}

// EquivPair is one additional equivalence a rule has independently proven:
// Expr computes the same result as EquivTo.
type EquivPair struct {
	Expr    *memo.Expr
	EquivTo *memo.Expr
}

// HintPropagator carries planner hints from the matched root onto a
// replacement before the replacement is registered.
type HintPropagator func(m *memo.Memo, from memo.RelView, to *memo.Expr)

// InheritHints copies the matched root's hints onto the replacement. It is
// a no-op if the replacement is already registered (a repeated commit of the
// same replacement) or carries hints of its own.
func InheritHints(m *memo.Memo, from memo.RelView, to *memo.Expr) {
	ex, ok := from.(*memo.Expr)
	if !ok || len(ex.Hints()) == 0 || len(to.Hints()) != 0 || m.IsRegistered(to) {
		return
	}
	m.SetHints(to, append([]string(nil), ex.Hints()...))
}

// Transform is TransformTo with no extra equivalences and default hint
// propagation.
func (rc *RuleCall) Transform(replacement *memo.Expr) {
	rc.TransformTo(replacement, nil, InheritHints)
}

// TransformTo is the commit protocol: it publishes a replacement expression
// the rule has proven equivalent to the matched root. The replacement and
// any explicit equivalences are registered, classes are merged as needed,
// and cached derived metadata is invalidated. A rule body may call it zero
// or more times per firing; each call is a distinct proposed replacement.
// Registration is idempotent: committing an identical replacement twice adds
// no duplicate members.
//
// A replacement whose own inputs include the matched root (the wrap-in-place
// shape) leaves the root pruned, so future search does not loop through the
// self-reference. Substitution rules requesting automatic pruning have the
// root pruned unconditionally.
func (rc *RuleCall) TransformTo(
	replacement *memo.Expr, equiv []EquivPair, propagate HintPropagator,
) {
	e := rc.e
	mem := e.mem

	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok || isCancellation(err) {
				panic(r)
			}
			panic(errors.Wrapf(err, "rule %s transforming to %s", rc.rule.Name(), replacement))
		}
	}()

	root := rc.Root()
	if propagate != nil {
		propagate(mem, rc.bindings[0], replacement)
	}

	if e.cfg.TraceMatches {
		e.log.Info("transform to",
			zap.Uint64("call", rc.id),
			zap.Stringer("rule", rc.rule.Name()),
			zap.String("replacement", replacement.String()))
	}
	if rc.generated != nil {
		rc.generated = append(rc.generated, replacement)
	}

	e.notifyProduced(rc, replacement, true /* pre */)

	// Register explicit equivalences before the replacement: registering the
	// replacement implicitly registers its descendants, so equivalences
	// registered first avoid redundant class churn.
	for _, pair := range equiv {
		mem.EnsureRegistered(pair.Expr, pair.EquivTo)
	}
	mem.EnsureRegistered(replacement, root)
	mem.InvalidateMetadata(root)

	for i := 0; i < replacement.InputCount(); i++ {
		if mem.SubsetContains(replacement.Input(i), root) {
			mem.Prune(root)
			break
		}
	}
	if sub, ok := rc.rule.(SubstitutionRule); ok && sub.AutoPruneOld() {
		mem.Prune(root)
	}

	e.notifyProduced(rc, replacement, false /* pre */)
}

func (rc *RuleCall) formatBindings() redact.RedactableString {
	var buf redact.StringBuilder
	buf.SafeString("[")
	for i, b := range rc.bindings {
		if i > 0 {
			buf.SafeString(" ")
		}
		if b == nil {
			buf.SafeString("?")
			continue
		}
		buf.Print(b)
	}
	buf.SafeString("]")
	return buf.RedactableString()
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (e *Explorer) notifyAttempted(rc *RuleCall, pre bool) {
	if e.listener == nil {
		return
	}
	e.listener.RuleAttempted(&RuleAttemptedEvent{
		Session: e.session,
		Root:    rc.bindings[0],
		Call:    rc,
		Pre:     pre,
	})
}

func (e *Explorer) notifyProduced(rc *RuleCall, replacement *memo.Expr, pre bool) {
	if e.listener == nil {
		return
	}
	e.listener.RuleProduced(&RuleProductionEvent{
		Session:     e.session,
		Replacement: replacement,
		Call:        rc,
		Pre:         pre,
	})
}
