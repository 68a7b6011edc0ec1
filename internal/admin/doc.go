// Package admin exposes the read-only inspection endpoints: per-backend
// health projections, the active selection strategy, aggregate stats, and
// discovery source metadata. Nothing here touches the forwarding path.
package admin
