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

// RuleName identifies a transformation rule. Rule names are static program
// identifiers, not user data, so they are safe to include unredacted in logs
// and error messages.
type RuleName string

func (r RuleName) String() string { return string(r) }

// SafeValue implements the redact.SafeValue interface.
func (r RuleName) SafeValue() {}
