// Package interval implements the per-subtree disjoint-interval set
// (spec §4.1, component C1): a record of which reference intervals,
// keyed by (rank, begin, end), have already been scheduled for a
// query subtree, with an idempotent insert.
package interval

import (
	"github.com/cockroachdb/errors"
	"github.com/google/btree"
)

// DefaultDegree is the B-tree minimum degree used for each per-rank
// tree, matching the teacher's own interval B-tree default
// (pkg/util/interval.DefaultBTreeMinimumDegree) — benchmarked there to
// perform best for interval workloads of this shape.
const DefaultDegree = 32

// ErrInvalidInterval is returned by Insert when begin >= end.
var ErrInvalidInterval = errors.New("interval: empty or reversed interval")

// item is a single half-open interval [Begin, End) stored in one
// rank's B-tree, ordered by Begin.
type item struct {
	begin, end int64
}

func (a item) Less(than btree.Item) bool {
	b := than.(item)
	return a.begin < b.begin
}

// overlaps reports whether a and b, as half-open intervals, share any
// point.
func (a item) overlaps(b item) bool {
	return a.begin < b.end && b.begin < a.end
}

// Set is a DisjointIntervalSet: a collection of non-overlapping
// half-open intervals per rank, supporting idempotent insertion.
// The zero value is ready to use.
type Set struct {
	degree int
	byRank map[int32]*btree.BTree
}

// New returns an empty Set using DefaultDegree per-rank trees.
func New() *Set {
	return NewWithDegree(DefaultDegree)
}

// NewWithDegree returns an empty Set whose per-rank B-trees use the
// given minimum degree.
func NewWithDegree(degree int) *Set {
	return &Set{degree: degree, byRank: make(map[int32]*btree.BTree)}
}

// Insert records [begin, end) on rank, returning true and mutating
// the set iff no previously recorded interval on that rank overlaps
// it. On false the set is unchanged (Insert is then a no-op, matching
// spec §4.1). Returns ErrInvalidInterval if begin >= end.
func (s *Set) Insert(rank int32, begin, end int64) (bool, error) {
	if begin >= end {
		return false, ErrInvalidInterval
	}
	if s.byRank == nil {
		s.byRank = make(map[int32]*btree.BTree)
	}
	t, ok := s.byRank[rank]
	if !ok {
		t = btree.New(s.degreeOrDefault())
		s.byRank[rank] = t
	}

	candidate := item{begin: begin, end: end}
	if s.overlapsAny(t, candidate) {
		return false, nil
	}
	t.ReplaceOrInsert(candidate)
	return true, nil
}

func (s *Set) degreeOrDefault() int {
	if s.degree <= 0 {
		return DefaultDegree
	}
	return s.degree
}

// overlapsAny scans every interval ordered by Begin, stopping as soon
// as it reaches one that starts at or after candidate.end (and
// everything after it, being ordered by Begin, starts even later, so
// none of them can overlap candidate either). Trees here hold few,
// typically non-adjacent intervals per subtree, so a linear Ascend
// scan is simpler than, and performs comparably to, maintaining
// max-end augmentation for this workload.
func (s *Set) overlapsAny(t *btree.BTree, candidate item) bool {
	found := false
	t.Ascend(func(i btree.Item) bool {
		existing := i.(item)
		if existing.begin >= candidate.end {
			return false
		}
		if existing.overlaps(candidate) {
			found = true
			return false
		}
		return true
	})
	return found
}

// Clone returns an independent snapshot of s. Required by the
// splitter (spec §4.5): both halves of a split subtree inherit the
// pre-split committed work, then diverge independently. google/btree's
// Clone is an O(1) copy-on-write snapshot, so this is cheap even
// though the two returned sets are fully independent from the
// caller's point of view.
func (s *Set) Clone() *Set {
	clone := &Set{degree: s.degreeOrDefault(), byRank: make(map[int32]*btree.BTree, len(s.byRank))}
	for rank, t := range s.byRank {
		clone.byRank[rank] = t.Clone()
	}
	return clone
}

// Len returns the total number of recorded intervals across all
// ranks, for testing and metrics.
func (s *Set) Len() int {
	n := 0
	for _, t := range s.byRank {
		n += t.Len()
	}
	return n
}
