package workspace

import "golang.org/x/sync/errgroup"

// Future is a deferred handle whose Get joins the background work and
// yields its result, matching the "deferred future" shape spec.md §4.5
// describes for scan operations. It wraps a single-task errgroup.Group
// rather than a bare channel so the active-jobs query and workspace scan
// this package defers share the same join/error-propagation idiom as the
// worker pools in this package (spec.md §4.5/§4.8).
type Future[T any] struct {
	g     errgroup.Group
	value T
}

// Go starts fn in a new goroutine and returns a Future for its result.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{}
	f.g.Go(func() error {
		v, err := fn()
		f.value = v
		return err
	})
	return f
}

// Get blocks until fn has completed and returns its result.
func (f *Future[T]) Get() (T, error) {
	err := f.g.Wait()
	return f.value, err
}
