// Package buffer allocates and recycles the per-port signal buffers a driver
// hands to nodes. Buffers are created when a processing plan is built and
// reused across rebuilds, so the tick path itself never allocates.
package buffer
