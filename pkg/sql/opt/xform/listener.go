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
	"github.com/google/uuid"
	"github.com/riftdb/rift/pkg/sql/opt/memo"
)

// RuleAttemptedEvent is emitted around each rule firing: once with Pre set
// before the rule body runs, once after it returns.
type RuleAttemptedEvent struct {
	// Session identifies the search session.
	Session uuid.UUID

	// Root is the binding of the pattern's root operand.
	Root memo.RelView

	// Call is the in-flight rule call.
	Call *RuleCall

	// Pre is true for the event emitted before the rule body runs.
	Pre bool
}

// RuleProductionEvent is emitted around each commit of a replacement: once
// with Pre set before registration, once after the replacement has been
// merged into the memo.
type RuleProductionEvent struct {
	Session uuid.UUID

	// Replacement is the expression the rule proposed.
	Replacement *memo.Expr

	Call *RuleCall
	Pre  bool
}

// Listener observes rule firings and productions, for tracing. All methods
// run synchronously on the search goroutine and must not mutate the memo.
// A nil listener costs one nil check per event site.
type Listener interface {
	RuleAttempted(ev *RuleAttemptedEvent)
	RuleProduced(ev *RuleProductionEvent)
}
