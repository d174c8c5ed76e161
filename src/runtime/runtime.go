// Package runtime declares the parallel_for entry point the core treats as
// an external collaborator interface: the IR never calls it itself, it
// only exists so a backend lowering this IR's output can recognize the
// convention and wire it to an actual thread pool. Carried here as a
// documented, uncalled type, not an implementation — the scheduler itself
// is out of scope.
package runtime

import "context"

// ParallelFor is the shape a backend is expected to provide for a lowered
// loop body; thorin-go never invokes it.
type ParallelFor func(ctx context.Context, lo, hi int, body func(i int) error) error
