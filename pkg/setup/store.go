// SPDX-License-Identifier: MPL-2.0

package setup

import (
	"maps"
	"slices"
	"strings"
)

// Store maps configuration keys to string values.
//
// A Store belongs to a single resolution session. It is not safe for
// concurrent use.
type Store struct {
	values map[string]string
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{values: make(map[string]string)}
}

// Get returns the value for key and whether the key is present.
func (s *Store) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Value returns the value for key, or the empty string if absent.
func (s *Store) Value(key string) string {
	return s.values[key]
}

// Has reports whether key is present, even with an empty value.
func (s *Store) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Set unconditionally assigns value to key.
func (s *Store) Set(key, value string) {
	s.values[key] = value
}

// SetDefault assigns value to key only if key is absent, and returns the
// value that is in effect afterwards.
func (s *Store) SetDefault(key, value string) string {
	if cur, ok := s.values[key]; ok {
		return cur
	}
	s.values[key] = value
	return value
}

// IsBlank reports whether key is absent or holds only whitespace.
func (s *Store) IsBlank(key string) bool {
	return strings.TrimSpace(s.values[key]) == ""
}

// Keys returns all keys in sorted order.
func (s *Store) Keys() []string {
	return slices.Sorted(maps.Keys(s.values))
}

// Len returns the number of keys.
func (s *Store) Len() int { return len(s.values) }

// Snapshot returns a copy of the store contents.
func (s *Store) Snapshot() map[string]string {
	return maps.Clone(s.values)
}
