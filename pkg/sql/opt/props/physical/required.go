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
	"bytes"
	"fmt"
)

// OrderingColumn is the ColumnID for a column that is part of an ordering,
// with its sign indicating the direction: positive for ascending, negative
// for descending.
type OrderingColumn int32

// Descending returns true if the column is ordered descending.
func (c OrderingColumn) Descending() bool { return c < 0 }

// ID returns the ColumnID regardless of direction.
func (c OrderingColumn) ID() int32 {
	if c < 0 {
		return int32(-c)
	}
	return int32(c)
}

func (c OrderingColumn) String() string {
	if c.Descending() {
		return fmt.Sprintf("-%d", c.ID())
	}
	return fmt.Sprintf("+%d", c.ID())
}

// Ordering defines the order of rows provided or required by an expression.
// An empty Ordering matches any row order.
type Ordering []OrderingColumn

// Provides returns true if rows sorted according to this ordering are also
// sorted according to the other ordering, i.e. the other ordering is a
// prefix of this one.
func (o Ordering) Provides(other Ordering) bool {
	if len(other) > len(o) {
		return false
	}
	for i := range other {
		if o[i] != other[i] {
			return false
		}
	}
	return true
}

func (o Ordering) String() string {
	var buf bytes.Buffer
	for i, col := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(col.String())
	}
	return buf.String()
}

// Required properties are interesting characteristics of an expression that
// impact its layout or location, but not its logical content. Physical
// properties exist outside the relational algebra, and arise both from the
// query itself and from the selection of specific implementations during
// optimization (e.g. a merge join requires sorted inputs).
//
// Each equivalence class in the memo is partitioned into subsets by required
// properties: the members of a subset are exactly the class's nodes whose
// provided properties satisfy the subset's requirement.
type Required struct {
	// Ordering specifies the sort order of result rows. If empty, no
	// particular ordering is required or provided.
	Ordering Ordering

	// Distribution names where result rows must be located. If empty, no
	// particular distribution is required or provided.
	Distribution string
}

// MinRequired are the default physical properties that require nothing and
// provide nothing.
var MinRequired = &Required{}

// Defined is true if any property is defined. If none is, then this is the
// minimum set of properties and empty subsets need not be created for it.
func (p *Required) Defined() bool {
	return len(p.Ordering) != 0 || p.Distribution != ""
}

// Satisfies returns true if an expression providing these properties also
// provides the other properties: the other ordering must be a prefix of this
// ordering, and the other distribution must be unset or equal.
func (p *Required) Satisfies(other *Required) bool {
	if !p.Ordering.Provides(other.Ordering) {
		return false
	}
	return other.Distribution == "" || other.Distribution == p.Distribution
}

// Equals returns true if the two sets of properties are identical. Identical
// properties always map to the same interned PropsID in the memo.
func (p *Required) Equals(other *Required) bool {
	if len(p.Ordering) != len(other.Ordering) || p.Distribution != other.Distribution {
		return false
	}
	for i := range p.Ordering {
		if p.Ordering[i] != other.Ordering[i] {
			return false
		}
	}
	return true
}

func (p *Required) String() string {
	if !p.Defined() {
		return "[]"
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	if len(p.Ordering) != 0 {
		fmt.Fprintf(&buf, "ordering: %s", p.Ordering)
	}
	if p.Distribution != "" {
		if len(p.Ordering) != 0 {
			buf.WriteByte(' ')
		}
		fmt.Fprintf(&buf, "distribution: %s", p.Distribution)
	}
	buf.WriteByte(']')
	return buf.String()
}

// Fingerprint returns a string that uniquely identifies the property set; the
// memo uses it as the interning key for PropsIDs.
func (p *Required) Fingerprint() string { return p.String() }
