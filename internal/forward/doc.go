// Package forward implements the forwarding engine: it selects a healthy
// backend via a strategy, proxies the incoming request to it, classifies
// the outcome, and retries on transport failure.
package forward
