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

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/riftdb/rift/pkg/sql/opt"
	"github.com/riftdb/rift/pkg/sql/opt/memo"
	"go.uber.org/zap"
)

// Explorer runs rule matching and firing over a memo. One Explorer is one
// search session: single-threaded, depth-first, cooperatively cancellable.
//
// The memo is the only shared mutable resource. It is mutated exclusively by
// the commit protocol on the search goroutine, so no locking is involved;
// instead, every read of graph structure during matching re-checks for
// staleness, because a firing can merge classes between the time a node is
// found and the time it is used later in the same recursive search.
type Explorer struct {
	mem      *memo.Memo
	cfg      Config
	excluded map[opt.RuleName]struct{}

	rules     []*installedRule
	ruleIndex map[opt.RuleName]*installedRule

	// operandIndex maps an operator to the pattern operands that accept
	// expressions with that operator; anyOperands holds the operands that
	// accept any expression. ExploreExpr consults these rather than scanning
	// every operand of every rule.
	operandIndex map[opt.Operator][]operandRef
	anyOperands  []operandRef

	listener Listener
	log      *zap.Logger
	session  uuid.UUID

	// ctx is the context of the innermost active entry point. Cancellation is
	// checked once per firing attempt and aborts the entire search.
	ctx context.Context

	// ruleCallStack tracks in-flight rule calls. Firing a rule can trigger
	// nested matching on a newly registered expression before the outer
	// firing returns; the explicit stack lets diagnostics and cancellation
	// observe the correct nesting.
	ruleCallStack []*RuleCall

	nextCallID uint64
}

type installedRule struct {
	rule     Rule
	operands []*Operand
}

type operandRef struct {
	rule    *installedRule
	operand *Operand
}

// New returns an Explorer over the given memo.
func New(mem *memo.Memo, cfg Config) *Explorer {
	return &Explorer{
		mem:          mem,
		cfg:          cfg,
		excluded:     cfg.excluded(),
		ruleIndex:    make(map[opt.RuleName]*installedRule),
		operandIndex: make(map[opt.Operator][]operandRef),
		log:          zap.NewNop(),
		session:      uuid.New(),
	}
}

// Memo returns the memo being searched.
func (e *Explorer) Memo() *memo.Memo { return e.mem }

// Session returns the session identity carried on emitted events.
func (e *Explorer) Session() uuid.UUID { return e.session }

// SetListener installs an event sink. A nil listener (the default) has no
// overhead beyond a nil check.
func (e *Explorer) SetListener(l Listener) { e.listener = l }

// SetLogger installs a logger. The default is a no-op logger.
func (e *Explorer) SetLogger(l *zap.Logger) { e.log = l }

// AddRule installs a rule: its pattern is flattened, ordinals are assigned
// and each operand's solve order is computed. A rule must be installed
// before it can be applied.
func (e *Explorer) AddRule(r Rule) error {
	name := r.Name()
	if _, ok := e.ruleIndex[name]; ok {
		return errors.AssertionFailedf("rule %s installed twice", name)
	}
	operands, err := flattenPattern(r.Pattern())
	if err != nil {
		return errors.Wrapf(err, "installing rule %s", name)
	}
	ir := &installedRule{rule: r, operands: operands}
	e.rules = append(e.rules, ir)
	e.ruleIndex[name] = ir
	for _, o := range operands {
		switch o.kind {
		case matchOp:
			e.operandIndex[o.op] = append(e.operandIndex[o.op], operandRef{rule: ir, operand: o})
		case matchAnyExpr:
			e.anyOperands = append(e.anyOperands, operandRef{rule: ir, operand: o})
		}
		// Subset operands never start a search from a concrete expression.
	}
	return nil
}

// ApplyRule matches the rule's pattern with its root operand bound to the
// given expression, firing the rule once per valid binding. The expression
// must satisfy the root operand; callers that cannot guarantee this should
// use ExploreExpr. Returns an error only for fatal conditions: pattern
// configuration inconsistency, rule body failure, or cancellation.
func (e *Explorer) ApplyRule(ctx context.Context, r Rule, root *memo.Expr) error {
	ir, ok := e.ruleIndex[r.Name()]
	if !ok {
		return errors.AssertionFailedf("rule %s is not installed", r.Name())
	}
	return e.applyAt(ctx, ir, ir.operands[0], root)
}

// ApplyRuleAt is ApplyRule starting from an arbitrary operand of the
/// pattern: the operand's slot is bound to start and the search ascends and
// descends from there following the operand's solve order. This is the form
// the scheduling loop uses when a newly registered expression matches an
// inner operand of a rule.
func (e *Explorer) ApplyRuleAt(ctx context.Context, r Rule, operandOrdinal int, start memo.RelView) error {
	ir, ok := e.ruleIndex[r.Name()]
	if !ok {
		return errors.AssertionFailedf("rule %s is not installed", r.Name())
	}
	if operandOrdinal < 0 || operandOrdinal >= len(ir.operands) {
		return errors.AssertionFailedf(
			"rule %s has no operand %d", r.Name(), operandOrdinal)
	}
	return e.applyAt(ctx, ir, ir.operands[operandOrdinal], start)
}

/// ExploreExpr tries every installed rule against the given expression: each
// operand that accepts the expression starts one matching attempt. This is a
// minimal driver; which rule/operand pair is most worth trying next is the
// scheduling loop's concern, not this package's.
func (e *Explorer) ExploreExpr(ctx context.Context, ex *memo.Expr) error {
	for _, ref := range e.operandIndex[ex.Op()] {
		if err := e.applyAt(ctx, ref.rule, ref.operand, ex); err != nil {
			return err
		}
	}
	for _, ref := range e.anyOperands {
		if err := e.applyAt(ctx, ref.rule, ref.operand, ex); err != nil {
			return err
		}
	}
	return nil
}

func (e *Explorer) applyAt(
	ctx context.Context, ir *installedRule, operand0 *Operand, start memo.RelView,
) (err error) {
	defer func() { err = opt.CatchPlannerError(recover(), err) }()

	if !operand0.Matches(start) {
		return errors.AssertionFailedf(
			"%s does not satisfy operand %d of rule %s",
			start, operand0.ordinalInRule, ir.rule.Name())
	}

	prevCtx := e.ctx
	e.ctx = ctx
	defer func() { e.ctx = prevCtx }()

	rc := e.newRuleCall(ir, operand0)
	rc.match(start)
	return nil
}

func (e *Explorer) newRuleCall(ir *installedRule, operand0 *Operand) *RuleCall {
	e.nextCallID++
	return &RuleCall{
		e:            e,
		rule:         ir.rule,
		operands:     ir.operands,
		operand0:     operand0,
		bindings:     make([]memo.RelView, len(ir.operands)),
		boundSubsets: make([]memo.SubsetID, len(ir.operands)),
		id:           e.nextCallID,
	}
}

// Depth returns the number of in-flight rule calls. Non-zero depth inside a
// rule body means the body was reached through nested firing.
func (e *Explorer) Depth() int { return len(e.ruleCallStack) }

// checkCancel panics with the context error if the session has been
// cancelled. The panic propagates through all nested recursion unwrapped and
// surfaces from the outermost entry point.
func (e *Explorer) checkCancel() {
	if err := e.ctx.Err(); err != nil {
		panic(err)
	}
}

// isRuleExcluded applies the static exclusion filter.
func (e *Explorer) isRuleExcluded(name opt.RuleName) bool {
	_, ok := e.excluded[name]
	return ok
}

func (e *Explorer) pushCall(rc *RuleCall) {
	e.ruleCallStack = append(e.ruleCallStack, rc)
}

func (e *Explorer) popCall() {
	e.ruleCallStack = e.ruleCallStack[:len(e.ruleCallStack)-1]
}
