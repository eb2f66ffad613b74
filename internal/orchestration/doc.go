// Package orchestration turns a campaign request into a concrete, timed
// execution plan across heterogeneous channels and arms the deferred
// triggers that carry it out.
//
// The planner owns strategy selection (sequential, parallel, staged, and the
// fixed-decision-tree "optimal"), duration estimation, and per-channel
// audience preparation. The scheduler owns trigger lifecycle: each channel
// execution moves through Pending → Armed → Fired | Cancelled, and triggers
// for one plan can be cancelled as a group.
package orchestration
