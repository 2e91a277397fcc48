// Package control runs host-issued control requests against a single
// application handler.
//
// The host sends control_request{id, action, args}; the plane runs the
// handler in its own goroutine and replies with exactly one
// control_result{id, ok, result} or control_result{id, ok:false,
// error:{message}}. The id is echoed unchanged. A handler that panics is
// reported as a failure. Requests that arrive while no handler is
// installed are ignored.
package control
