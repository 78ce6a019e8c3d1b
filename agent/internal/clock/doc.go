// Package clock abstracts the time operations used by the scheduler and the
// retry loop so tests can drive them deterministically.
//
// Real() wraps the time package. Fake(t) returns a FakeClock whose time only
// moves when Advance is called; AfterFunc callbacks registered on it fire
// synchronously inside Advance, in deadline order.
package clock
