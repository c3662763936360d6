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

import (
	"runtime"

	"github.com/cockroachdb/errors"
)

// CatchPlannerError catches runtime panics raised by planner internals and
// returns them as errors. The planner propagates fatal conditions internally
// as panics rather than threading error returns through the recursive
// matcher; this only works because the search is single-threaded and holds
// no locks. Call in a defer at every exported entry point:
//
//	defer func() { err = opt.CatchPlannerError(recover(), err) }()
func CatchPlannerError(r interface{}, current error) error {
	if r == nil {
		return current
	}
	err, ok := r.(error)
	if !ok {
		// Not an error object. The go runtime throws plain strings for
		// unrecoverable conditions (bad goroutine state, allocator failure);
		// re-panic rather than pretend we can continue.
		panic(r)
	}
	if errors.HasInterface(err, (*runtime.Error)(nil)) {
		return errors.HandleAsAssertionFailure(err)
	}
	return err
}
