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

import (
	"github.com/RoaringBitmap/roaring"
	"github.com/cockroachdb/errors"
	"github.com/riftdb/rift/pkg/sql/opt"
	"github.com/riftdb/rift/pkg/sql/opt/props/physical"
)

// Memo is the data structure searched and mutated by the rule engine: a set
// of equivalence classes, each partitioned into subsets by required physical
// properties.
//
// Classes and subsets live in arena slices and are addressed by dense
// integer IDs, never by pointer. A class merge does not move or delete the
// losing entries; it sets a forwarding ID on them. Every traversal step must
// resolve forwarding before trusting cached structure, because the graph can
// mutate between the time a node is found and the time it is used later in
// the same search.
type Memo struct {
	// groups and subsets are indexed by GroupID and SubsetID. Entry 0 of each
	// is unused so that the zero ID means "invalid".
	groups  []group
	subsets []subset

	// exprs is indexed by ExprID. Expressions are immutable once registered,
	// so handing out *Expr is safe across graph mutation.
	exprs []*Expr

	// home maps each expression to the subset it was registered into, aligned
	// with exprs. Zero means the expression is constructed but not registered.
	home []SubsetID

	// exprMap interns registered expressions by structural fingerprint, which
	// makes re-registration of an identical replacement a no-op.
	exprMap map[string]ExprID

	// props interns required physical property sets. Indexed by PropsID with
	// entry 0 unused; entry 1 is always the empty property set.
	props    []*physical.Required
	propsMap map[string]PropsID

	// pruned is the set of expressions considered to have zero importance.
	// Advisory state: the matcher consults it and the commit protocol adds to
	// it, but pruned expressions are never physically removed.
	pruned *roaring.Bitmap

	// metadataEpoch increments whenever cached derived metadata is
	// invalidated. Consumers caching statistics key their caches on it.
	metadataEpoch uint64
}

// group is one equivalence class: a set of expressions proven to compute the
// same result. Membership only grows, except that the entire class can be
// forwarded to a surviving class when two classes are proven equivalent.
type group struct {
	// forwardTo is non-zero once the class has been merged away. An obsolete
	// class must never be matched against.
	forwardTo GroupID

	// members lists every expression in the class, in registration order.
	members   []ExprID
	memberSet *roaring.Bitmap

	// subsets lists the class's subsets, one per distinct requirement that
	// has been requested so far.
	subsets []SubsetID

	// stats is lazily computed derived metadata, dropped on invalidation.
	stats *Stats
}

// subset is the partition of a class selected by one required property set.
// Its members are exactly the class's expressions whose provided properties
// satisfy the requirement.
type subset struct {
	// forwardTo is non-zero once the subset has been re-homed into a
	// surviving class by a merge.
	forwardTo SubsetID

	group    GroupID
	required PropsID

	members   []ExprID
	memberSet *roaring.Bitmap

	// parents indexes the expressions elsewhere in the memo that reference
	// this subset as an input. The ascending direction of the pattern matcher
	// walks this index.
	parents *roaring.Bitmap

	// best caches the lowest cost member found so far, zero if none costed.
	best     ExprID
	bestCost Cost
}

// New returns an empty memo.
func New() *Memo {
	m := &Memo{
		groups:   make([]group, 1),
		subsets:  make([]subset, 1),
		exprs:    make([]*Expr, 1),
		home:     make([]SubsetID, 1),
		exprMap:  make(map[string]ExprID),
		props:    make([]*physical.Required, 1),
		propsMap: make(map[string]PropsID),
		pruned:   roaring.New(),
	}
	if id := m.InternProps(physical.MinRequired); id != MinPropsID {
		panic(errors.AssertionFailedf("empty property set interned to id %d", id))
	}
	return m
}

// InternProps returns the PropsID for the given property set, allocating one
// if the set has not been seen before.
func (m *Memo) InternProps(p *physical.Required) PropsID {
	fp := p.Fingerprint()
	if id, ok := m.propsMap[fp]; ok {
		return id
	}
	id := PropsID(len(m.props))
	m.props = append(m.props, p)
	m.propsMap[fp] = id
	return id
}

// Props returns the interned property set for the given ID.
func (m *Memo) Props(id PropsID) *physical.Required {
	return m.props[id]
}

// NewExpr constructs a new, unregistered expression node. The node does not
// belong to any equivalence class until it is passed to Register or
// EnsureRegistered.
func (m *Memo) NewExpr(
	op opt.Operator, inputs []SubsetID, provided *physical.Required, private interface{},
) *Expr {
	e := &Expr{
		id:       ExprID(len(m.exprs)),
		op:       op,
		inputs:   inputs,
		provided: m.InternProps(provided),
		private:  private,
	}
	m.exprs = append(m.exprs, e)
	m.home = append(m.home, 0)
	return e
}

// SetHints replaces the hints on an expression. Expressions are immutable
// once registered, so hints can only be set before registration; this is the
// window hint propagation runs in.
func (m *Memo) SetHints(e *Expr, hints []string) {
	if m.home[e.id] != 0 {
		panic(errors.AssertionFailedf("cannot set hints on registered expression %v", e))
	}
	e.hints = hints
}

// Expr returns the expression with the given ID.
func (m *Memo) Expr(id ExprID) *Expr { return m.exprs[id] }

// ExprCount returns the number of constructed expressions plus one (IDs are
// allocated from 1).
func (m *Memo) ExprCount() int { return len(m.exprs) }

// SubsetRef returns a RelView over the given subset.
func (m *Memo) SubsetRef(id SubsetID) SubsetRef { return SubsetRef{memo: m, id: id} }

// ResolveGroup follows the forwarding chain from a possibly obsolete class
// to the surviving class.
func (m *Memo) ResolveGroup(id GroupID) GroupID {
	for m.groups[id].forwardTo != 0 {
		id = m.groups[id].forwardTo
	}
	return id
}

// ResolveSubset follows the forwarding chain from a possibly re-homed subset
// to the surviving subset.
func (m *Memo) ResolveSubset(id SubsetID) SubsetID {
	for m.subsets[id].forwardTo != 0 {
		id = m.subsets[id].forwardTo
	}
	return id
}

// IsStale returns true if the subset or its owning class has been merged
// away. A match found through a stale subset was valid when found, but must
// not fire.
func (m *Memo) IsStale(id SubsetID) bool {
	s := &m.subsets[id]
	return s.forwardTo != 0 || m.groups[s.group].forwardTo != 0
}

// GroupOf returns the surviving class that owns the given subset.
func (m *Memo) GroupOf(id SubsetID) GroupID {
	return m.ResolveGroup(m.subsets[m.ResolveSubset(id)].group)
}

// SubsetProps returns the required properties of the given subset.
func (m *Memo) SubsetProps(id SubsetID) *physical.Required {
	return m.props[m.subsets[m.ResolveSubset(id)].required]
}

// SubsetFor returns the subset the expression was registered into, resolved
// through forwarding. ok is false if the expression was never registered.
func (m *Memo) SubsetFor(e *Expr) (SubsetID, bool) {
	id := m.home[e.id]
	if id == 0 {
		return 0, false
	}
	return m.ResolveSubset(id), true
}

// HomeSubset is SubsetFor without forwarding resolution. Merges keep member
// homes current, so the result is live as of the call; a caller that must
// detect later merges snapshots the ID and re-checks IsStale.
func (m *Memo) HomeSubset(e *Expr) (SubsetID, bool) {
	id := m.home[e.id]
	return id, id != 0
}

// IsRegistered returns true if the expression belongs to a class.
func (m *Memo) IsRegistered(e *Expr) bool {
	return m.home[e.id] != 0
}

// SubsetContains returns true if the expression is a member of the subset,
// resolved through forwarding.
func (m *Memo) SubsetContains(id SubsetID, e *Expr) bool {
	return m.subsets[m.ResolveSubset(id)].memberSet.Contains(uint32(e.id))
}

// EnsureSubset returns the subset of the given class for the given
// requirement, creating it lazily on first request. A newly created subset
// is populated with the class members whose provided properties satisfy the
// requirement.
func (m *Memo) EnsureSubset(gid GroupID, required PropsID) SubsetID {
	gid = m.ResolveGroup(gid)
	g := &m.groups[gid]
	for _, sid := range g.subsets {
		if m.subsets[sid].required == required {
			return sid
		}
	}
	sid := SubsetID(len(m.subsets))
	m.subsets = append(m.subsets, subset{
		group:     gid,
		required:  required,
		memberSet: roaring.New(),
		parents:   roaring.New(),
	})
	g.subsets = append(g.subsets, sid)
	req := m.props[required]
	for _, eid := range g.members {
		if m.props[m.exprs[eid].provided].Satisfies(req) {
			m.addMember(sid, eid)
		}
	}
	return sid
}

func (m *Memo) addMember(sid SubsetID, eid ExprID) {
	s := &m.subsets[sid]
	if s.memberSet.Contains(uint32(eid)) {
		return
	}
	s.memberSet.Add(uint32(eid))
	s.members = append(s.members, eid)
}

// Register adds the expression to the memo. If an identical expression is
// already registered, no new membership is created and the existing home
// subset is returned. Otherwise a fresh equivalence class is allocated for
// the expression and its home subset (keyed by its provided properties) is
// returned.
func (m *Memo) Register(e *Expr) SubsetID {
	if sid, ok := m.HomeSubset(e); ok {
		return m.ResolveSubset(sid)
	}
	fp := m.fingerprint(e.op, e.inputs, e.provided, e.private)
	if existing, ok := m.exprMap[fp]; ok {
		// Identical structure already present: alias this expression to the
		// canonical one's home rather than adding a duplicate member.
		sid := m.home[existing]
		m.home[e.id] = sid
		return m.ResolveSubset(sid)
	}

	gid := GroupID(len(m.groups))
	m.groups = append(m.groups, group{memberSet: roaring.New()})
	sid := m.addToGroup(e, gid)
	m.exprMap[fp] = e.id
	return sid
}

// addToGroup makes the expression a member of the class: it joins every
// subset whose requirement its provided properties satisfy, its home subset
// is created if missing, and the parent index of each of its inputs gains an
// entry for it.
func (m *Memo) addToGroup(e *Expr, gid GroupID) SubsetID {
	gid = m.ResolveGroup(gid)
	home := m.EnsureSubset(gid, e.provided)

	g := &m.groups[gid]
	if !g.memberSet.Contains(uint32(e.id)) {
		g.memberSet.Add(uint32(e.id))
		g.members = append(g.members, e.id)
		provided := m.props[e.provided]
		for _, sid := range g.subsets {
			if provided.Satisfies(m.props[m.subsets[sid].required]) {
				m.addMember(sid, e.id)
			}
		}
	}

	m.home[e.id] = home
	for _, in := range e.inputs {
		m.subsets[m.ResolveSubset(in)].parents.Add(uint32(e.id))
	}
	return home
}

// EnsureRegistered registers the expression and asserts that it is
// equivalent to equivTo, merging their classes if they differ. This is the
// registration primitive the commit protocol uses: registering a replacement
// implicitly registers any of its descendants not already present (their
// subsets must exist for the replacement to reference them), and merging
// forwards the losing class to the survivor.
func (m *Memo) EnsureRegistered(e *Expr, equivTo *Expr) SubsetID {
	sid := m.Register(e)
	equivSid, ok := m.HomeSubset(equivTo)
	if !ok {
		panic(errors.AssertionFailedf("equivalence target %v is not registered", equivTo))
	}
	m.MergeGroups(m.GroupOf(sid), m.GroupOf(equivSid))
	home, _ := m.SubsetFor(e)
	return home
}

// MergeGroups merges two equivalence classes, forwarding the younger class
// to the older one. Every subset of the losing class is re-homed onto the
// survivor's subset with the same requirement, carrying its members and its
// parent index. Returns the surviving class.
func (m *Memo) MergeGroups(a, b GroupID) GroupID {
	a = m.ResolveGroup(a)
	b = m.ResolveGroup(b)
	if a == b {
		return a
	}
	survivor, loser := a, b
	if loser < survivor {
		survivor, loser = loser, survivor
	}

	// Move members first so that re-homed subsets and lazily created survivor
	// subsets both see the full membership.
	loserMembers := m.groups[loser].members
	for _, eid := range loserMembers {
		e := m.exprs[eid]
		g := &m.groups[survivor]
		if g.memberSet.Contains(uint32(eid)) {
			continue
		}
		g.memberSet.Add(uint32(eid))
		g.members = append(g.members, eid)
		provided := m.props[e.provided]
		for _, sid := range g.subsets {
			if provided.Satisfies(m.props[m.subsets[sid].required]) {
				m.addMember(sid, eid)
			}
		}
	}

	loserSubsets := m.groups[loser].subsets
	for _, lsid := range loserSubsets {
		target := m.EnsureSubset(survivor, m.subsets[lsid].required)
		ls := &m.subsets[lsid]
		m.subsets[target].parents.Or(ls.parents)
		ls.forwardTo = target
	}
	// Re-home the moved members so future matches bind them through live
	// subsets. Bindings taken before the merge hold the forwarded subset and
	// fail their staleness check at firing time.
	for _, eid := range loserMembers {
		m.home[eid] = m.ResolveSubset(m.home[eid])
	}
	m.groups[loser].forwardTo = survivor
	m.groups[survivor].stats = nil
	return survivor
}

// Members returns the concrete member expressions of the subset, resolved
// through forwarding. The returned slice is a copy; it stays valid while the
// graph mutates, though its contents may go stale.
func (m *Memo) Members(id SubsetID) []*Expr {
	s := &m.subsets[m.ResolveSubset(id)]
	out := make([]*Expr, len(s.members))
	for i, eid := range s.members {
		out[i] = m.exprs[eid]
	}
	return out
}

// ParentExprs returns the expressions that reference the subset as an input:
// the candidates for one ascending step of the matcher. The returned slice
// is a copy in increasing ExprID order.
func (m *Memo) ParentExprs(id SubsetID) []*Expr {
	s := &m.subsets[m.ResolveSubset(id)]
	out := make([]*Expr, 0, s.parents.GetCardinality())
	it := s.parents.Iterator()
	for it.HasNext() {
		out = append(out, m.exprs[ExprID(it.Next())])
	}
	return out
}

// SiblingSubsets returns the subsets of the given subset's class whose
// required properties satisfy the given subset's requirement, the given
// subset included. These are the positions a subset-kind operand can bind to
// in place of the specific input subset.
func (m *Memo) SiblingSubsets(id SubsetID) []SubsetID {
	id = m.ResolveSubset(id)
	req := m.props[m.subsets[id].required]
	gid := m.ResolveGroup(m.subsets[id].group)
	var out []SubsetID
	for _, sid := range m.groups[gid].subsets {
		if m.props[m.subsets[sid].required].Satisfies(req) {
			out = append(out, sid)
		}
	}
	return out
}

// Subsets returns all subsets of a class.
func (m *Memo) Subsets(gid GroupID) []SubsetID {
	out := m.groups[m.ResolveGroup(gid)].subsets
	return append([]SubsetID(nil), out...)
}

// GroupMembers returns all member expressions of a class.
func (m *Memo) GroupMembers(gid GroupID) []*Expr {
	g := &m.groups[m.ResolveGroup(gid)]
	out := make([]*Expr, len(g.members))
	for i, eid := range g.members {
		out[i] = m.exprs[eid]
	}
	return out
}

// Prune marks the expression as having zero importance. Pruned expressions
// are skipped at firing time and are never worth exploring again; they are
// not physically removed.
func (m *Memo) Prune(e *Expr) {
	m.pruned.Add(uint32(e.id))
}

// IsPruned returns true if the expression has been pruned.
func (m *Memo) IsPruned(e *Expr) bool {
	return m.pruned.Contains(uint32(e.id))
}

// PrunedCount returns the number of pruned expressions.
func (m *Memo) PrunedCount() int {
	return int(m.pruned.GetCardinality())
}

// RatchetBest records the cost of a member and keeps the subset's cached
// best member if the new cost is lower than the best seen so far.
func (m *Memo) RatchetBest(id SubsetID, e *Expr, cost Cost) {
	s := &m.subsets[m.ResolveSubset(id)]
	if s.best == 0 || cost.Less(s.bestCost) {
		s.best = e.id
		s.bestCost = cost
	}
}

// Best returns the cached lowest cost member of the subset, or nil if no
// member has been costed yet.
func (m *Memo) Best(id SubsetID) (*Expr, Cost) {
	s := &m.subsets[m.ResolveSubset(id)]
	if s.best == 0 {
		return nil, MaxCost
	}
	return m.exprs[s.best], s.bestCost
}

// MetadataEpoch returns the current metadata epoch. Consumers caching
// derived metadata must drop their caches when the epoch moves.
func (m *Memo) MetadataEpoch() uint64 { return m.metadataEpoch }

// InvalidateMetadata drops cached derived metadata rooted at the given
// expression's class and advances the metadata epoch. Called by the commit
// protocol after a class gains a new member.
func (m *Memo) InvalidateMetadata(root *Expr) {
	if sid, ok := m.SubsetFor(root); ok {
		m.groups[m.GroupOf(sid)].stats = nil
	}
	m.metadataEpoch++
}
