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

/*
Package opt contains the cost-based plan search core. The planner maintains a
memo: a graph of equivalence classes, each holding the set of expression nodes
proven to compute the same result, partitioned into subsets by required
physical properties. Transformation rules describe tree-shaped patterns over
that graph; the engine finds every binding of memo nodes to pattern operands,
checks the rule's side conditions, and fires the rule once per valid binding.
A fired rule publishes its replacement expression back into the memo through a
commit protocol that registers the replacement, merges equivalence classes,
and invalidates derived state.

This package holds the leaf types shared by the memo and the search engine:
the Operator tag that classifies expression nodes, rule names, and the
panic-to-error boundary used at exported entry points. The memo itself lives
in the memo subpackage; pattern operands, the backtracking matcher, and the
commit protocol live in xform.
*/
package opt
