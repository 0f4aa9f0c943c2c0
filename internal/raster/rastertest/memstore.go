// Package rastertest provides an in-memory raster.Store for tests.
package rastertest

import (
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geoquery/internal/raster"
)

// Store keeps grids in memory keyed by path.
type Store struct {
	mu     sync.Mutex
	grids  map[string]*raster.Grid
	writes []string
}

// New returns an empty Store.
func New() *Store {
	return &Store{grids: make(map[string]*raster.Grid)}
}

// Put stores a copy of g at path.
func (s *Store) Put(path string, g *raster.Grid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grids[path] = g.Clone()
}

// Get returns the grid stored at path, or nil.
func (s *Store) Get(path string) *raster.Grid {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grids[path]
}

// Writes returns the paths passed to Write, in call order.
func (s *Store) Writes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes...)
}

// Read implements raster.Store.
func (s *Store) Read(path string) (*raster.Grid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grids[path]
	if !ok {
		return nil, eris.Errorf("rastertest: no raster at %s", path)
	}
	return g.Clone(), nil
}

// Write implements raster.Store.
func (s *Store) Write(path string, g *raster.Grid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grids[path] = g.Clone()
	s.writes = append(s.writes, path)
	return nil
}

// Exists implements raster.Store.
func (s *Store) Exists(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.grids[path]
	return ok
}

var _ raster.Store = (*Store)(nil)
