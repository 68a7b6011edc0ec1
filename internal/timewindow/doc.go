// Package timewindow implements a thread-safe sliding window over recent
// response-time samples, used to compute a slow-response ratio without
// rescanning the whole history on every query.
package timewindow
