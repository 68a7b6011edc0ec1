// Package discovery supplies the registry with the current set of backend
// URLs, either from a fixed list or from a text file re-read on demand.
package discovery
