// Package ingress exposes the catch-all forwarding surface: it translates
// an incoming *http.Request into a forward.Request, hands it to the
// forwarding engine, and writes the resulting forward.Response back to the
// caller.
package ingress
