// Package registry tracks the set of backend servers known to the load
// balancer along with their health, latency, and slowness-cooldown state.
// It holds the mutable heart of the system: every other component either
// mutates a Record through the Registry or reads an immutable snapshot of
// it.
package registry
