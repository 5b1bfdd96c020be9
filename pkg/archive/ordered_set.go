// SPDX-License-Identifier: MPL-2.0

package archive

import "slices"

// orderedSet is an insertion-ordered set. The zero value is ready to use.
type orderedSet[T comparable] struct {
	items []T
	index map[T]struct{}
}

func (s *orderedSet[T]) add(v T) {
	if s.index == nil {
		s.index = make(map[T]struct{})
	}
	if _, ok := s.index[v]; ok {
		return
	}
	s.index[v] = struct{}{}
	s.items = append(s.items, v)
}

func (s *orderedSet[T]) contains(v T) bool {
	_, ok := s.index[v]
	return ok
}

func (s *orderedSet[T]) len() int { return len(s.items) }

// clone returns a deep copy sharing no backing storage with s.
func (s *orderedSet[T]) clone() orderedSet[T] {
	c := orderedSet[T]{items: slices.Clone(s.items)}
	if len(s.items) > 0 {
		c.index = make(map[T]struct{}, len(s.items))
		for _, v := range s.items {
			c.index[v] = struct{}{}
		}
	}
	return c
}

// values returns the elements in insertion order as a fresh slice.
func (s *orderedSet[T]) values() []T {
	return slices.Clone(s.items)
}

// sameElements compares two sets ignoring insertion order.
func (s *orderedSet[T]) sameElements(o *orderedSet[T]) bool {
	if len(s.items) != len(o.items) {
		return false
	}
	for _, v := range s.items {
		if !o.contains(v) {
			return false
		}
	}
	return true
}
