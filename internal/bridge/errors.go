package bridge

import "errors"

var (
	// ErrNotStarted is returned by Run when the supervisor has no live
	// child process. The caller must Start first (the session registry
	// does this on its behalf).
	ErrNotStarted = errors.New("bridge: process not started")

	// ErrStreamClosed reports that the child closed its output before a
	// sentinel was seen. Run absorbs it; only ReadFrame surfaces it.
	ErrStreamClosed = errors.New("bridge: stream closed before sentinel")
)
