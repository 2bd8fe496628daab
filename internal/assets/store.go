package assets

import (
	"context"
	"sync"
)

// Store loads the artifacts at most once per process and hands the same
// result, success or failure, to every caller.
type Store struct {
	paths  Paths
	once   sync.Once
	handle *Handle
	err    error
}

func NewStore(paths Paths) *Store {
	return &Store{paths: paths}
}

func (s *Store) Get(ctx context.Context) (*Handle, error) {
	s.once.Do(func() {
		s.handle, s.err = Load(ctx, s.paths)
	})
	return s.handle, s.err
}

func (s *Store) Paths() Paths {
	return s.paths
}
