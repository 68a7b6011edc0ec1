// Package healthmonitor periodically probes every backend tracked by the
// registry and applies the result, respecting slowness-cooldown dominance.
package healthmonitor
