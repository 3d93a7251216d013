package scheduler

// Signal is the C6→C7 "services-changed" channel: buffered size 1, written
// by Checker with a non-blocking send (dirty-coalescing — a pending signal
// is never duplicated) and read by Poller alongside its own ticker. Per
// spec.md §9, this decouples the two workers: C6 never touches the Route
// Registry directly, and C7 remains its sole writer.
type Signal chan struct{}

// NewSignal returns a fresh, empty signal channel shared between one
// Checker and one Poller.
func NewSignal() Signal {
	return make(Signal, 1)
}

// Notify sends a non-blocking, coalescing wakeup. Called by Checker after a
// tick that flips an enabled flag, and by the admin control plane after any
// mutating operation, so C7 remains the Registry's sole writer even though
// both C6 and C8 can trigger it to run sooner.
func (s Signal) Notify() {
	select {
	case s <- struct{}{}:
	default:
	}
}
