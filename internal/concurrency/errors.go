package concurrency

import "errors"

var (
	// ErrAlreadyStarted is returned by Manager.Start if called more than
	// once on the same manager.
	ErrAlreadyStarted = errors.New("concurrency: manager already started")

	// ErrDispatcherUnset names the condition of a Manager built with a nil
	// dispatcher. No method returns it: Start handles a nil dispatcher like
	// an HTTP-mode one, logging HTTPUnsupported and arming no tick.
	ErrDispatcherUnset = errors.New("concurrency: dispatcher not resolved")

	// ErrHTTPUnsupported is the terminal condition entered when the
	// resolved dispatcher does not support dynamic concurrency (an
	// HTTP-mode worker pool). It is logged once and the manager does not
	// arm a tick.
	ErrHTTPUnsupported = errors.New("concurrency: dispatcher does not support dynamic concurrency")

	// ErrDisposed is returned by operations attempted after Dispose.
	ErrDisposed = errors.New("concurrency: disposed")
)
