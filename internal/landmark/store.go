// Package landmark implements the plane landmark store: a dense,
// index-stable vector of map landmarks. Index i always corresponds to
// the smoother's l_i variable; invalidating a landmark never renumbers
// the rest.
package landmark

import (
	"math/rand"
	"sync"

	"github.com/golang/geo/r3"

	"github.com/sg47/plane-slam/internal/cloud"
	"github.com/sg47/plane-slam/internal/geometry"
)

// Landmark is a plane registered in the global map.
type Landmark struct {
	Coefficients [4]float64
	Cloud        cloud.Cloud
	Centroid     r3.Vector
	Color        cloud.Color
	Valid        bool
}

// Plane returns the landmark's current coefficients as an OrientedPlane.
func (l Landmark) Plane() geometry.OrientedPlane {
	c := l.Coefficients
	return geometry.FromCoefficients(c[0], c[1], c[2], c[3])
}

// RandomColor returns a landmark color with components uniform in
// [0,255] and alpha fixed at 255, matching the rng_.uniform(0,255) color
// assignment in GTMapping::addFirstFrame/updateLandmarks.
func RandomColor() cloud.Color {
	return cloud.Color{
		R: uint8(rand.Intn(256)),
		G: uint8(rand.Intn(256)),
		B: uint8(rand.Intn(256)),
		A: 255,
	}
}

// Store is the dense, ordered landmark vector. Storage is a plain slice:
// index equality with the smoother's l_i symbol is part of the contract,
// so nothing here ever reorders or removes entries.
type Store struct {
	mu    sync.Mutex
	items []Landmark
}

// NewStore returns an empty landmark store.
func NewStore() *Store {
	return &Store{}
}

// Append adds a new landmark and returns its index.
func (s *Store) Append(l Landmark) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, l)
	return len(s.items) - 1
}

// Get returns a copy of the landmark at i and whether i was in range.
func (s *Store) Get(i int) (Landmark, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.items) {
		return Landmark{}, false
	}
	return s.items[i], true
}

// SetCoefficients updates the plane coefficients of landmark i.
func (s *Store) SetCoefficients(i int, abcd [4]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= 0 && i < len(s.items) {
		s.items[i].Coefficients = abcd
	}
}

// SetCloud replaces the inlier cloud of landmark i and recomputes its
// centroid.
func (s *Store) SetCloud(i int, c cloud.Cloud) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= 0 && i < len(s.items) {
		s.items[i].Cloud = c
		s.items[i].Centroid = cloud.Centroid3(c)
	}
}

// Invalidate marks landmark i as no longer live for matching, publishing
// or merging. The slot and its index are kept forever.
func (s *Store) Invalidate(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= 0 && i < len(s.items) {
		s.items[i].Valid = false
	}
}

// Len returns the number of landmark slots (valid or not).
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// IterValid calls fn with the index and a copy of every valid landmark,
// in index order.
func (s *Store) IterValid(fn func(i int, l Landmark)) {
	s.mu.Lock()
	items := make([]Landmark, len(s.items))
	copy(items, s.items)
	s.mu.Unlock()
	for i, l := range items {
		if l.Valid {
			fn(i, l)
		}
	}
}

// All returns a copy of every landmark slot, valid or not, in index
// order — the snapshot handed to Engine.Landmarks()/control.Observer.
func (s *Store) All() []Landmark {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Landmark, len(s.items))
	copy(out, s.items)
	return out
}

// Clear empties the store, leaving it as NewStore returns it.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}
