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

package physical

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSatisfies(t *testing.T) {
	ord := func(cols ...OrderingColumn) Ordering { return Ordering(cols) }

	testCases := []struct {
		provided Required
		required Required
		expected bool
	}{
		{Required{}, Required{}, true},
		{Required{Ordering: ord(+1)}, Required{}, true},
		{Required{}, Required{Ordering: ord(+1)}, false},
		{Required{Ordering: ord(+1, +2)}, Required{Ordering: ord(+1)}, true},
		{Required{Ordering: ord(+1)}, Required{Ordering: ord(+1, +2)}, false},
		{Required{Ordering: ord(-1)}, Required{Ordering: ord(+1)}, false},
		{Required{Ordering: ord(+2, +1)}, Required{Ordering: ord(+1)}, false},
		{Required{Distribution: "east"}, Required{Distribution: "east"}, true},
		{Required{Distribution: "east"}, Required{Distribution: "west"}, false},
		{Required{Distribution: "east"}, Required{}, true},
		{Required{}, Required{Distribution: "east"}, false},
		{
			Required{Ordering: ord(+1, -2), Distribution: "east"},
			Required{Ordering: ord(+1), Distribution: "east"},
			true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.provided.String()+"/"+tc.required.String(), func(t *testing.T) {
			require.Equal(t, tc.expected, tc.provided.Satisfies(&tc.required))
		})
	}
}

func TestDefinedAndEquals(t *testing.T) {
	require.False(t, (&Required{}).Defined())
	require.True(t, (&Required{Ordering: Ordering{+1}}).Defined())
	require.True(t, (&Required{Distribution: "east"}).Defined())

	a := &Required{Ordering: Ordering{+1, -2}}
	b := &Required{Ordering: Ordering{+1, -2}}
	require.True(t, a.Equals(b))
	require.False(t, a.Equals(&Required{Ordering: Ordering{+1}}))
	require.Equal(t, a.Fingerprint(), b.Fingerprint())
}
