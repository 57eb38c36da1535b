package platform

// GroupSet describes which groups of a device a category applies to.
// Entries use one of three shapes: a single group, an explicit list or a
// contiguous inclusive range.
type GroupSet struct {
	list       []int
	start, end int
}

// Single is a GroupSet holding one group.
func Single(g int) GroupSet {
	return GroupSet{list: []int{g}}
}

// List is a GroupSet holding the given groups in order.
func List(groups ...int) GroupSet {
	cp := make([]int, len(groups))
	copy(cp, groups)
	return GroupSet{list: cp}
}

// Range is a GroupSet holding start..end inclusive.
func Range(start, end int) GroupSet {
	return GroupSet{start: start, end: end}
}

// Groups materialises the set. The returned slice is the caller's.
func (s GroupSet) Groups() []int {
	if s.list != nil {
		out := make([]int, len(s.list))
		copy(out, s.list)
		return out
	}
	if s.end < s.start {
		return []int{}
	}
	out := make([]int, 0, s.end-s.start+1)
	for g := s.start; g <= s.end; g++ {
		out = append(out, g)
	}
	return out
}

// Contains reports whether g is in the set.
func (s GroupSet) Contains(g int) bool {
	if s.list != nil {
		for _, n := range s.list {
			if n == g {
				return true
			}
		}
		return false
	}
	return g >= s.start && g <= s.end
}
