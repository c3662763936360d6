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

import "math"

// Cost is the estimated execution cost of an expression. The best member of
// a subset for a given set of required properties is the member with the
// lowest cost.
type Cost float64

// MaxCost is the maximum possible estimated cost. An expression subtree that
// cannot provide the required properties costs MaxCost.
var MaxCost = Cost(math.Inf(+1))

// Less returns true if this cost is lower than the given cost.
func (c Cost) Less(other Cost) bool {
	// Two plans with the same cost can have slightly different floating point
	// results depending on how the costs were summed. Consider them equal if
	// they are within a small relative tolerance.
	const fuzz = 1e-10
	return float64(c) < float64(other)*(1-fuzz)
}
