package pipeline

// seenSet is a bounded in-process dedup filter for tail mode. When the
// capacity is reached the oldest entry is evicted, so a uid can in theory
// be reprocessed after capacity newer events; the database unique key still
// makes that reprocessing a no-op.
type seenSet struct {
	capacity int
	order    []string
	next     int
	members  map[string]struct{}
}

func newSeenSet(capacity int) *seenSet {
	if capacity <= 0 {
		capacity = 8192
	}
	return &seenSet{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		members:  make(map[string]struct{}, capacity),
	}
}

// Contains reports whether uid is currently tracked.
func (s *seenSet) Contains(uid string) bool {
	_, ok := s.members[uid]
	return ok
}

// Add tracks uid, evicting the oldest entry once full.
func (s *seenSet) Add(uid string) {
	if _, ok := s.members[uid]; ok {
		return
	}
	if len(s.order) < s.capacity {
		s.order = append(s.order, uid)
	} else {
		delete(s.members, s.order[s.next])
		s.order[s.next] = uid
		s.next = (s.next + 1) % s.capacity
	}
	s.members[uid] = struct{}{}
}

// Len returns the number of tracked uids.
func (s *seenSet) Len() int {
	return len(s.members)
}
