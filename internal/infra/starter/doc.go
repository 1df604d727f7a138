// Package starter asks the platform to bring up a missing service when a
// lookup finds nothing registered.
//
// The registry never waits for a start; it only fires the request. Start
// storms are damped per iface/instance with a token bucket.
package starter
