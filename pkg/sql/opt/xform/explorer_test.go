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
	"fmt"
	"strings"
	"testing"

	"github.com/riftdb/rift/pkg/sql/opt"
	"github.com/riftdb/rift/pkg/sql/opt/memo"
	"github.com/riftdb/rift/pkg/sql/opt/props/physical"

	"github.com/cockroachdb/datadriven"
)

// TestExplorer runs the data-driven exploration tests. The commands are:
//
//	build
//	  Each input line is "<label>: <op>(<args>)". Args are labels of
//	  previously built expressions (bound through their home subsets) or,
//	  for scan and limit, a literal private value.
//
//	apply rule=<name> root=<label>
//	  Matches and fires the named built-in rule with the labeled expression
//	  as the binding for the pattern root.
//
//	explore expr=<label>
//	  Tries every registered rule at every operand the expression matches.
//
//	merge a=<label> b=<label>
//	  Declares the two expressions' classes equivalent.
//
//	prune expr=<label>
//	  Marks the expression pruned.
//
//	memo
//	  Dumps the memo.
func TestExplorer(t *testing.T) {
	datadriven.Walk(t, "testdata", func(t *testing.T, path string) {
		st := newExplorerTestState(t)
		datadriven.RunTest(t, path, st.run)
	})
}

type explorerTestState struct {
	mem    *memo.Memo
	e      *Explorer
	rules  []Rule
	labels map[string]*memo.Expr
	log    []string
}

func newExplorerTestState(t *testing.T) *explorerTestState {
	st := &explorerTestState{
		mem:    memo.New(),
		labels: make(map[string]*memo.Expr),
	}
	st.e = New(st.mem, Config{})
	st.e.SetListener(st)
	st.rules = builtinRules()
	for _, r := range st.rules {
		if err := st.e.AddRule(r); err != nil {
			t.Fatal(err)
		}
	}
	return st
}

func (st *explorerTestState) RuleAttempted(ev *RuleAttemptedEvent) {
	if !ev.Pre {
		return
	}
	st.log = append(st.log, fmt.Sprintf("attempt %s root=%s", ev.Call.Rule().Name(), ev.Root))
}

func (st *explorerTestState) RuleProduced(ev *RuleProductionEvent) {
	if !ev.Pre {
		return
	}
	st.log = append(st.log, fmt.Sprintf("produce %s => %s", ev.Call.Rule().Name(), ev.Replacement))
}

func (st *explorerTestState) run(t *testing.T, d *datadriven.TestData) string {
	st.log = nil
	switch d.Cmd {
	case "build":
		for _, line := range strings.Split(strings.TrimSpace(d.Input), "\n") {
			if err := st.buildLine(line); err != nil {
				d.Fatalf(t, "%v", err)
			}
		}
		return st.mem.String()

	case "apply":
		var ruleName, root string
		d.ScanArgs(t, "rule", &ruleName)
		d.ScanArgs(t, "root", &root)
		r := st.mustRule(t, d, ruleName)
		if err := st.e.ApplyRule(context.Background(), r, st.mustLabel(t, d, root)); err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return st.result()

	case "explore":
		var label string
		d.ScanArgs(t, "expr", &label)
		if err := st.e.ExploreExpr(context.Background(), st.mustLabel(t, d, label)); err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return st.result()

	case "merge":
		var a, b string
		d.ScanArgs(t, "a", &a)
		d.ScanArgs(t, "b", &b)
		ea, eb := st.mustLabel(t, d, a), st.mustLabel(t, d, b)
		sa, ok := st.mem.SubsetFor(ea)
		if !ok {
			d.Fatalf(t, "%s is not registered", a)
		}
		sb, ok := st.mem.SubsetFor(eb)
		if !ok {
			d.Fatalf(t, "%s is not registered", b)
		}
		st.mem.MergeGroups(st.mem.GroupOf(sa), st.mem.GroupOf(sb))
		return st.mem.String()

	case "prune":
		var label string
		d.ScanArgs(t, "expr", &label)
		st.mem.Prune(st.mustLabel(t, d, label))
		return st.mem.String()

	case "memo":
		return st.mem.String()

	default:
		d.Fatalf(t, "unknown command: %s", d.Cmd)
		return ""
	}
}

func (st *explorerTestState) result() string {
	var sb strings.Builder
	for _, line := range st.log {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteString(st.mem.String())
	return sb.String()
}

// buildLine parses "<label>: <op>(<args>)" and registers the expression.
func (st *explorerTestState) buildLine(line string) error {
	label, rest, ok := strings.Cut(strings.TrimSpace(line), ":")
	if !ok {
		return fmt.Errorf("expected <label>: <op>(<args>): %q", line)
	}
	label = strings.TrimSpace(label)
	rest = strings.TrimSpace(rest)

	open := strings.IndexByte(rest, '(')
	if open < 0 || !strings.HasSuffix(rest, ")") {
		return fmt.Errorf("expected <op>(<args>): %q", rest)
	}
	opName := rest[:open]
	var args []string
	if inner := strings.TrimSpace(rest[open+1 : len(rest)-1]); inner != "" {
		args = strings.Split(inner, ",")
		for i := range args {
			args[i] = strings.TrimSpace(args[i])
		}
	}

	var e *memo.Expr
	switch opName {
	case "scan":
		if len(args) != 1 {
			return fmt.Errorf("scan takes one table name")
		}
		e = st.mem.NewExpr(opt.ScanOp, nil, physical.MinRequired, args[0])
	case "limit":
		if len(args) != 2 {
			return fmt.Errorf("limit takes an input and a count")
		}
		in, err := st.inputSubset(args[0])
		if err != nil {
			return err
		}
		e = st.mem.NewExpr(opt.LimitOp, []memo.SubsetID{in}, physical.MinRequired, args[1])
	default:
		op, err := opForName(opName)
		if err != nil {
			return err
		}
		inputs := make([]memo.SubsetID, len(args))
		for i, a := range args {
			in, err := st.inputSubset(a)
			if err != nil {
				return err
			}
			inputs[i] = in
		}
		e = st.mem.NewExpr(op, inputs, physical.MinRequired, nil)
	}
	st.mem.Register(e)
	st.labels[label] = e
	return nil
}

func (st *explorerTestState) inputSubset(label string) (memo.SubsetID, error) {
	e, ok := st.labels[label]
	if !ok {
		return 0, fmt.Errorf("unknown label %q", label)
	}
	s, ok := st.mem.SubsetFor(e)
	if !ok {
		return 0, fmt.Errorf("%q is not registered", label)
	}
	return s, nil
}

func opForName(name string) (opt.Operator, error) {
	switch name {
	case "select":
		return opt.SelectOp, nil
	case "project":
		return opt.ProjectOp, nil
	case "join":
		return opt.InnerJoinOp, nil
	case "union":
		return opt.UnionOp, nil
	case "sort":
		return opt.SortOp, nil
	default:
		return opt.UnknownOp, fmt.Errorf("unknown operator %q", name)
	}
}

func (st *explorerTestState) mustLabel(t *testing.T, d *datadriven.TestData, label string) *memo.Expr {
	e, ok := st.labels[label]
	if !ok {
		d.Fatalf(t, "unknown label %q", label)
	}
	return e
}

func (st *explorerTestState) mustRule(t *testing.T, d *datadriven.TestData, name string) Rule {
	for _, r := range st.rules {
		if string(r.Name()) == name {
			return r
		}
	}
	d.Fatalf(t, "unknown rule %q", name)
	return nil
}

// builtinRules are the canned rules the data-driven tests fire.
func builtinRules() []Rule {
	wrapLimit := &RuleDef{
		RuleName:    "wrap-limit",
		RulePattern: Op(opt.SelectOp, Any()),
		Body: func(rc *RuleCall) error {
			root := rc.Root()
			rootSubset, _ := rc.Memo().SubsetFor(root)
			wrap := rc.Memo().NewExpr(
				opt.LimitOp, []memo.SubsetID{rootSubset}, physical.MinRequired, "10")
			rc.Transform(wrap)
			return nil
		},
	}
	commuteJoin := &RuleDef{
		RuleName:    "commute-join",
		RulePattern: Op(opt.InnerJoinOp, Subset(), Subset()),
		Body: func(rc *RuleCall) error {
			root := rc.Root()
			swapped := rc.Memo().NewExpr(
				opt.InnerJoinOp,
				[]memo.SubsetID{root.Input(1), root.Input(0)},
				physical.MinRequired, nil)
			rc.Transform(swapped)
			return nil
		},
	}
	elideSelect := &RuleDef{
		RuleName:    "elide-select",
		RulePattern: Op(opt.SelectOp, Op(opt.ScanOp)),
		AutoPrune:   true,
		Body: func(rc *RuleCall) error {
			child := rc.BoundExpr(1)
			childSubset, _ := rc.Memo().SubsetFor(child)
			replacement := rc.Memo().NewExpr(
				opt.ProjectOp, []memo.SubsetID{childSubset}, physical.MinRequired, nil)
			rc.Transform(replacement)
			return nil
		},
	}
	return []Rule{wrapLimit, commuteJoin, elideSelect}
}
