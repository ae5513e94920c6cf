package kafkaqueue

import "sort"

type partitionKey struct {
	topic     string
	partition int
}

// offsetTracker orders acknowledgements for one partition. Offsets are
// fetched in ascending order but resolved in any order; only the prefix in
// which every offset is resolved may be committed.
type offsetTracker struct {
	pending  []int64
	resolved map[int64]bool
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{resolved: make(map[int64]bool)}
}

// add records a fetched offset. A redelivered offset that is already
// pending is ignored.
func (t *offsetTracker) add(offset int64) {
	i, found := t.find(offset)
	if found {
		return
	}
	t.pending = append(t.pending, 0)
	copy(t.pending[i+1:], t.pending[i:])
	t.pending[i] = offset
}

// resolve marks offset done and returns the highest offset that is now safe
// to commit. ok is false while an earlier offset is unresolved.
func (t *offsetTracker) resolve(offset int64) (commit int64, ok bool) {
	if _, found := t.find(offset); !found {
		return 0, false
	}
	t.resolved[offset] = true

	for len(t.pending) > 0 && t.resolved[t.pending[0]] {
		commit, ok = t.pending[0], true
		delete(t.resolved, commit)
		t.pending = t.pending[1:]
	}
	return commit, ok
}

func (t *offsetTracker) find(offset int64) (int, bool) {
	i := sort.Search(len(t.pending), func(i int) bool { return t.pending[i] >= offset })
	return i, i < len(t.pending) && t.pending[i] == offset
}
