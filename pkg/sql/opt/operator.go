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

package opt

import "fmt"

// Operator describes the kind of an expression node. Pattern operands test
// candidates against an Operator tag; the test is a single comparison, never
// a chain of type assertions.
type Operator uint8

const (
	// UnknownOp is the zero value and is never a valid node kind.
	UnknownOp Operator = iota

	// -- Logical operators --

	ScanOp
	SelectOp
	ProjectOp
	InnerJoinOp
	UnionOp
	LimitOp

	// -- Physical operators --

	SortOp
	IndexScanOp
	MergeJoinOp
	HashJoinOp

	// NumOperators must be last.
	NumOperators
)

// operatorInfo stores static information about an operator.
type operatorInfo struct {
	// name of the operator, used when printing expressions.
	name string

	// logical is true for operators produced by query translation and false
	// for operators introduced by implementation rules.
	logical bool
}

// operatorTab stores static information about all operators.
var operatorTab = [NumOperators]operatorInfo{
	UnknownOp:   {name: "unknown"},
	ScanOp:      {name: "scan", logical: true},
	SelectOp:    {name: "select", logical: true},
	ProjectOp:   {name: "project", logical: true},
	InnerJoinOp: {name: "inner-join", logical: true},
	UnionOp:     {name: "union", logical: true},
	LimitOp:     {name: "limit", logical: true},
	SortOp:      {name: "sort"},
	IndexScanOp: {name: "index-scan"},
	MergeJoinOp: {name: "merge-join"},
	HashJoinOp:  {name: "hash-join"},
}

func (op Operator) String() string {
	if op >= NumOperators {
		return fmt.Sprintf("operator(%d)", uint8(op))
	}
	return operatorTab[op].name
}

// IsLogical returns true if the operator comes from the logical algebra
// rather than from an implementation rule.
func (op Operator) IsLogical() bool {
	return op < NumOperators && operatorTab[op].logical
}

// SafeValue implements the redact.SafeValue interface.
func (op Operator) SafeValue() {}
