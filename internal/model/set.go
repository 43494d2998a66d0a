package model

import "sort"

// BundleSet is a set of bundle identifiers
type BundleSet map[string]struct{}

// NewBundleSet builds a set from the given identifiers
func NewBundleSet(ids ...string) BundleSet {
	s := make(BundleSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is a member
func (s BundleSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id into the set
func (s BundleSet) Add(id string) {
	s[id] = struct{}{}
}

// Remove deletes id from the set
func (s BundleSet) Remove(id string) {
	delete(s, id)
}

// Clone returns an independent copy
func (s BundleSet) Clone() BundleSet {
	c := make(BundleSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// Sorted returns the members in ascending order
func (s BundleSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
