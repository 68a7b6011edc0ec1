// Package strategy defines the backend-selection interface and implements
// the algorithms available for it:
//
//   - Round Robin: sequential distribution across a healthy snapshot
//   - Least Response Time: routes to the record with the lowest EMA latency
//   - Random: uniform random selection
//
// All strategies operate over the caller-supplied snapshot only; they hold
// no reference to the registry and re-check health defensively where the
// spec requires it.
package strategy
