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

import "github.com/riftdb/rift/pkg/sql/opt"

// Rule is one rewrite rule: a pattern over the memo plus a body that
// publishes replacement expressions through the commit protocol.
//
// The body contract: for a match it accepts, OnMatch calls
// RuleCall.TransformTo with a semantically equivalent replacement, zero or
// more times. It must not mutate the binding array. It may read bound
// expressions' children, including the reconstructed-children override when
// the corresponding operand's policy is PolicyUnordered. A non-nil error
// aborts the entire search; it is never retried and never treated as "no
// match".
type Rule interface {
	// Name identifies the rule in diagnostics and exclusion filters.
	Name() opt.RuleName

	// Pattern returns the root pattern operand. The engine takes ownership of
	// the operand tree when the rule is installed.
	Pattern() *Operand

	// Matches is the rule's side-condition predicate, invoked once over each
	// complete binding. Returning false rejects the binding silently.
	Matches(rc *RuleCall) bool

	// OnMatch is the rule body, invoked once per accepted binding.
	OnMatch(rc *RuleCall) error
}

// SubstitutionRule is implemented by rules whose replacement always
// supersedes the matched expression. When AutoPruneOld returns true, the
// commit protocol prunes the matched root after each transformation.
type SubstitutionRule interface {
	Rule

	AutoPruneOld() bool
}

// RuleDef is a convenience Rule implementation for rules defined as plain
// values, used heavily in tests and by the demo command.
type RuleDef struct {
	RuleName    opt.RuleName
	RulePattern *Operand

	// SideCondition may be nil, in which case every complete binding is
	// accepted.
	SideCondition func(rc *RuleCall) bool

	Body func(rc *RuleCall) error

	// AutoPrune makes the rule a substitution rule.
	AutoPrune bool
}

var _ SubstitutionRule = (*RuleDef)(nil)

// Name implements the Rule interface.
func (r *RuleDef) Name() opt.RuleName { return r.RuleName }

// Pattern implements the Rule interface.
func (r *RuleDef) Pattern() *Operand { return r.RulePattern }

// Matches implements the Rule interface.
func (r *RuleDef) Matches(rc *RuleCall) bool {
	return r.SideCondition == nil || r.SideCondition(rc)
}

// OnMatch implements the Rule interface.
func (r *RuleDef) OnMatch(rc *RuleCall) error { return r.Body(rc) }

// AutoPruneOld implements the SubstitutionRule interface.
func (r *RuleDef) AutoPruneOld() bool { return r.AutoPrune }
