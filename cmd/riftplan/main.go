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

// riftplan is a command-line harness for the plan search engine: it builds a
// demonstration memo, runs a small rule set over it and prints the resulting
// equivalence classes. It exists to make the engine's behavior observable
// without wiring up a full planner.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/riftdb/rift/pkg/sql/opt"
	"github.com/riftdb/rift/pkg/sql/opt/memo"
	"github.com/riftdb/rift/pkg/sql/opt/props/physical"
	"github.com/riftdb/rift/pkg/sql/opt/xform"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	inputPath  string
	trace      bool
)

func main() {
	root := &cobra.Command{
		Use:          "riftplan",
		Short:        "harness for the rift plan search engine",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "",
		"path to a TOML engine configuration file")
	root.PersistentFlags().BoolVar(&trace, "trace", false,
		"log every rule match and transformation")

	explore := &cobra.Command{
		Use:   "explore",
		Short: "run the demonstration rule set and dump the memo",
		Args:  cobra.NoArgs,
	}
	explore.Flags().StringVar(&inputPath, "input", "",
		"path to a TOML graph description (default: built-in demo graph)")
	explore.RunE = func(cmd *cobra.Command, args []string) error {
		return runExplore(cmd.Context())
	}
	root.AddCommand(explore)

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func runExplore(ctx context.Context) error {
	cfg := xform.Config{}
	if configPath != "" {
		var err error
		cfg, err = xform.LoadConfig(configPath)
		if err != nil {
			return err
		}
	}
	if trace {
		cfg.TraceMatches = true
	}

	mem := memo.New()
	e := xform.New(mem, cfg)
	if trace {
		log, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()
		e.SetLogger(log)
	}

	roots, err := buildGraph(mem, inputPath)
	if err != nil {
		return err
	}
	for _, r := range demoRules() {
		if err := e.AddRule(r); err != nil {
			return err
		}
	}
	for _, ex := range roots {
		if err := e.ExploreExpr(ctx, ex); err != nil {
			return err
		}
	}

	fmt.Printf("session %s explored %d expressions\n", e.Session(), mem.ExprCount()-1)
	fmt.Print(mem.String())
	return nil
}

// graphSpec is the TOML shape of an input graph: an ordered list of nodes,
// each referencing earlier nodes by label.
//
//	[[node]]
//	label = "a"
//	op = "scan"
//	private = "t1"
//
//	[[node]]
//	label = "j"
//	op = "join"
//	inputs = ["a", "a"]
type graphSpec struct {
	Nodes []nodeSpec `toml:"node"`
}

type nodeSpec struct {
	Label   string   `toml:"label"`
	Op      string   `toml:"op"`
	Inputs  []string `toml:"inputs"`
	Private string   `toml:"private"`
}

var opNames = map[string]opt.Operator{
	"scan":    opt.ScanOp,
	"select":  opt.SelectOp,
	"project": opt.ProjectOp,
	"join":    opt.InnerJoinOp,
	"union":   opt.UnionOp,
	"limit":   opt.LimitOp,
}

// buildGraph registers the described graph into the memo and returns its
// nodes in description order. With no input path it builds the demo shape
// select(join(scan a, scan b)).
func buildGraph(mem *memo.Memo, path string) ([]*memo.Expr, error) {
	spec := graphSpec{Nodes: []nodeSpec{
		{Label: "a", Op: "scan", Private: "a"},
		{Label: "b", Op: "scan", Private: "b"},
		{Label: "j", Op: "join", Inputs: []string{"a", "b"}},
		{Label: "s", Op: "select", Inputs: []string{"j"}},
	}}
	if path != "" {
		spec = graphSpec{}
		meta, err := toml.DecodeFile(path, &spec)
		if err != nil {
			return nil, fmt.Errorf("loading graph %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown key %q in graph %s", undecoded[0], path)
		}
	}

	labels := make(map[string]memo.SubsetID, len(spec.Nodes))
	exprs := make([]*memo.Expr, 0, len(spec.Nodes))
	for _, n := range spec.Nodes {
		op, ok := opNames[n.Op]
		if !ok {
			return nil, fmt.Errorf("node %q: unknown operator %q", n.Label, n.Op)
		}
		var inputs []memo.SubsetID
		for _, in := range n.Inputs {
			sid, ok := labels[in]
			if !ok {
				return nil, fmt.Errorf("node %q: unknown input %q", n.Label, in)
			}
			inputs = append(inputs, sid)
		}
		var private interface{}
		if n.Private != "" {
			private = n.Private
		}
		ex := mem.NewExpr(op, inputs, physical.MinRequired, private)
		labels[n.Label] = mem.Register(ex)
		exprs = append(exprs, ex)
	}
	return exprs, nil
}

// demoRules is a minimal rule set: one exploration rule (join commutation),
// one implementation rule (hash join) and one substitution (scan to index
// scan when an ordering could be useful).
func demoRules() []xform.Rule {
	commuteJoin := &xform.RuleDef{
		RuleName:    "commute-join",
		RulePattern: xform.Op(opt.InnerJoinOp, xform.Subset(), xform.Subset()),
		SideCondition: func(rc *xform.RuleCall) bool {
			// Commuting twice would just re-register the original.
			root := rc.Root()
			return root.Input(0) != root.Input(1)
		},
		Body: func(rc *xform.RuleCall) error {
			root := rc.Root()
			swapped := rc.Memo().NewExpr(
				opt.InnerJoinOp,
				[]memo.SubsetID{root.Input(1), root.Input(0)},
				physical.MinRequired, root.Private())
			rc.Transform(swapped)
			return nil
		},
	}
	implementJoin := &xform.RuleDef{
		RuleName:    "implement-hash-join",
		RulePattern: xform.Op(opt.InnerJoinOp, xform.Subset(), xform.Subset()),
		Body: func(rc *xform.RuleCall) error {
			root := rc.Root()
			hj := rc.Memo().NewExpr(
				opt.HashJoinOp,
				[]memo.SubsetID{root.Input(0), root.Input(1)},
				physical.MinRequired, root.Private())
			rc.Transform(hj)
			return nil
		},
	}
	implementScan := &xform.RuleDef{
		RuleName:    "implement-index-scan",
		RulePattern: xform.Op(opt.ScanOp),
		Body: func(rc *xform.RuleCall) error {
			root := rc.Root()
			idx := rc.Memo().NewExpr(
				opt.IndexScanOp, nil,
				&physical.Required{Ordering: physical.Ordering{+1}},
				root.Private())
			rc.Transform(idx)
			return nil
		},
	}
	return []xform.Rule{commuteJoin, implementJoin, implementScan}
}
